// AngelaMos | 2026
// security.go

package core

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"

	"github.com/carterperez-dev/accountd/internal/config"
)

var ErrUnsupportedHash = errors.New("unsupported password hash")

type argonParams struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
}

// PasswordHasher produces argon2id digests in the $argon2id$ encoded form and
// still verifies bcrypt digests written by older deployments.
type PasswordHasher struct {
	params    argonParams
	saltLen   uint32
	dummyHash string
}

func NewPasswordHasher(cfg config.PasswordConfig) (*PasswordHasher, error) {
	h := &PasswordHasher{
		params: argonParams{
			memory:  cfg.Memory,
			time:    cfg.Time,
			threads: cfg.Threads,
			keyLen:  cfg.KeyLen,
		},
		saltLen: cfg.SaltLen,
	}

	if h.params.memory == 0 || h.params.time == 0 ||
		h.params.threads == 0 || h.params.keyLen == 0 || h.saltLen == 0 {
		return nil, fmt.Errorf("password hasher: %w", ErrInvalidInput)
	}

	dummy, err := h.Hash("dummy_password_for_timing_attack_prevention")
	if err != nil {
		return nil, fmt.Errorf("generate dummy hash: %w", err)
	}
	h.dummyHash = dummy

	return h, nil
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, h.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey(
		[]byte(password),
		salt,
		h.params.time,
		h.params.memory,
		h.params.threads,
		h.params.keyLen,
	)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.memory,
		h.params.time,
		h.params.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (h *PasswordHasher) Verify(password, encodedHash string) (bool, error) {
	if isBcrypt(encodedHash) {
		err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("verify bcrypt hash: %w", err)
		}
		return true, nil
	}

	params, salt, key, err := decodeHash(encodedHash)
	if err != nil {
		return false, err
	}

	otherKey := argon2.IDKey(
		[]byte(password),
		salt,
		params.time,
		params.memory,
		params.threads,
		params.keyLen,
	)

	return subtle.ConstantTimeCompare(key, otherKey) == 1, nil
}

// NeedsRehash reports whether encodedHash was produced by another algorithm
// or with parameters other than the hasher's current ones.
func (h *PasswordHasher) NeedsRehash(encodedHash string) bool {
	if isBcrypt(encodedHash) {
		return true
	}

	params, _, _, err := decodeHash(encodedHash)
	if err != nil {
		return true
	}

	return *params != h.params
}

// VerifyTimingSafe always spends one verification, using a dummy digest when
// encodedHash is empty. The returned string is a fresh digest when the
// stored one should be upgraded, otherwise empty.
func (h *PasswordHasher) VerifyTimingSafe(
	password, encodedHash string,
) (bool, string, error) {
	if encodedHash == "" {
		//nolint:errcheck // result discarded; only the elapsed time matters
		_, _ = h.Verify(password, h.dummyHash)
		return false, "", nil
	}

	valid, err := h.Verify(password, encodedHash)
	if err != nil || !valid {
		return false, "", err
	}

	if !h.NeedsRehash(encodedHash) {
		return true, "", nil
	}

	newHash, err := h.Hash(password)
	if err != nil {
		//nolint:nilerr // password verified; rehash failure is non-critical
		return true, "", nil
	}

	return true, newHash, nil
}

func isBcrypt(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, "$2a$") ||
		strings.HasPrefix(encodedHash, "$2b$") ||
		strings.HasPrefix(encodedHash, "$2y$")
}

func decodeHash(encodedHash string) (*argonParams, []byte, []byte, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return nil, nil, nil, fmt.Errorf("invalid hash format: %w", ErrUnsupportedHash)
	}

	if parts[1] != "argon2id" {
		return nil, nil, nil, fmt.Errorf("algorithm %s: %w", parts[1], ErrUnsupportedHash)
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid version: %w", err)
	}

	if version != argon2.Version {
		return nil, nil, nil, fmt.Errorf("incompatible version %d: %w", version, ErrUnsupportedHash)
	}

	params := &argonParams{}
	_, err := fmt.Sscanf(
		parts[3],
		"m=%d,t=%d,p=%d",
		&params.memory,
		&params.time,
		&params.threads,
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid params: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("decode salt: %w", err)
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("decode hash: %w", err)
	}

	//nolint:gosec // G115: argon2 key length is always small
	params.keyLen = uint32(len(key))

	return params, salt, key, nil
}

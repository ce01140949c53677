// AngelaMos | 2026
// security_test.go

package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/carterperez-dev/accountd/internal/config"
)

func testPasswordConfig() config.PasswordConfig {
	return config.PasswordConfig{
		Memory:  8 * 1024,
		Time:    1,
		Threads: 1,
		KeyLen:  32,
		SaltLen: 16,
	}
}

func newTestHasher(t *testing.T) *PasswordHasher {
	t.Helper()
	h, err := NewPasswordHasher(testPasswordConfig())
	require.NoError(t, err)
	return h
}

func TestHashIsSaltedAndEncoded(t *testing.T) {
	h := newTestHasher(t)

	first, err := h.Hash("correct horse")
	require.NoError(t, err)
	second, err := h.Hash("correct horse")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasPrefix(first, "$argon2id$v=19$m=8192,t=1,p=1$"))
	assert.NotContains(t, first, "correct horse")
}

func TestVerify(t *testing.T) {
	h := newTestHasher(t)

	digest, err := h.Hash("s3cret")
	require.NoError(t, err)

	ok, err := h.Verify("s3cret", digest)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("wrong", digest)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.Verify("s3cret", "not-a-hash")
	require.ErrorIs(t, err, ErrUnsupportedHash)
}

func TestVerifyLegacyBcrypt(t *testing.T) {
	h := newTestHasher(t)

	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy"), bcrypt.MinCost)
	require.NoError(t, err)

	ok, err := h.Verify("legacy", string(legacy))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("other", string(legacy))
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, h.NeedsRehash(string(legacy)))
}

func TestNeedsRehashOnParameterChange(t *testing.T) {
	h := newTestHasher(t)
	digest, err := h.Hash("pw")
	require.NoError(t, err)
	assert.False(t, h.NeedsRehash(digest))

	cfg := testPasswordConfig()
	cfg.Time = 2
	stronger, err := NewPasswordHasher(cfg)
	require.NoError(t, err)
	assert.True(t, stronger.NeedsRehash(digest))
}

func TestVerifyTimingSafe(t *testing.T) {
	h := newTestHasher(t)

	ok, upgraded, err := h.VerifyTimingSafe("anything", "")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, upgraded)

	digest, err := h.Hash("pw")
	require.NoError(t, err)

	ok, upgraded, err = h.VerifyTimingSafe("pw", digest)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, upgraded)

	legacy, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)

	ok, upgraded, err = h.VerifyTimingSafe("pw", string(legacy))
	require.NoError(t, err)
	assert.True(t, ok)
	require.NotEmpty(t, upgraded)

	ok, err = h.Verify("pw", upgraded)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewPasswordHasherRejectsZeroParams(t *testing.T) {
	_, err := NewPasswordHasher(config.PasswordConfig{})
	require.ErrorIs(t, err, ErrInvalidInput)
}

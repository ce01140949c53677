// AngelaMos | 2026
// token.go

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/carterperez-dev/accountd/internal/config"
	"github.com/carterperez-dev/accountd/internal/core"
)

const (
	claimType     = "type"
	claimFamilyID = "family_id"
)

// TokenCodec signs and verifies HMAC JWTs with one process-wide secret.
type TokenCodec struct {
	key jwk.Key
	alg jwa.SignatureAlgorithm
	now func() time.Time
}

type CodecOption func(*TokenCodec)

func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		c.now = now
	}
}

func NewTokenCodec(cfg config.AuthConfig, opts ...CodecOption) (*TokenCodec, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("token codec: secret key is empty")
	}

	alg, err := signatureAlgorithm(cfg.Algorithm)
	if err != nil {
		return nil, err
	}

	key, err := jwk.Import([]byte(cfg.SecretKey))
	if err != nil {
		return nil, fmt.Errorf("import signing key: %w", err)
	}

	c := &TokenCodec{key: key, alg: alg, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func signatureAlgorithm(name string) (jwa.SignatureAlgorithm, error) {
	switch name {
	case "HS256":
		return jwa.HS256(), nil
	case "HS384":
		return jwa.HS384(), nil
	case "HS512":
		return jwa.HS512(), nil
	default:
		var none jwa.SignatureAlgorithm
		return none, fmt.Errorf("unsupported signing algorithm %q", name)
	}
}

func (c *TokenCodec) IssueAccess(subject string, ttl time.Duration) (string, error) {
	now := c.now()

	token, err := jwt.NewBuilder().
		JwtID(uuid.NewString()).
		Subject(subject).
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		Claim(claimType, string(TokenAccess)).
		Build()
	if err != nil {
		return "", fmt.Errorf("build access token: %w", err)
	}

	return c.sign(token)
}

func (c *TokenCodec) IssueRefresh(
	subject string,
	ttl time.Duration,
	jti, familyID string,
) (string, error) {
	now := c.now()

	token, err := jwt.NewBuilder().
		JwtID(jti).
		Subject(subject).
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		Claim(claimType, string(TokenRefresh)).
		Claim(claimFamilyID, familyID).
		Build()
	if err != nil {
		return "", fmt.Errorf("build refresh token: %w", err)
	}

	return c.sign(token)
}

func (c *TokenCodec) sign(token jwt.Token) (string, error) {
	signed, err := jwt.Sign(token, jwt.WithKey(c.alg, c.key))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return string(signed), nil
}

// Decode verifies signature and expiry and requires the type claim to equal
// expected. Every failure wraps core.ErrTokenInvalid.
func (c *TokenCodec) Decode(raw string, expected TokenType) (*Claims, error) {
	token, err := jwt.Parse(
		[]byte(raw),
		jwt.WithKey(c.alg, c.key),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(c.now)),
	)
	if err != nil {
		return nil, fmt.Errorf("decode token: %w", core.ErrTokenInvalid)
	}

	var tokenType string
	if err := token.Get(claimType, &tokenType); err != nil ||
		TokenType(tokenType) != expected {
		return nil, fmt.Errorf("decode token: wrong type: %w", core.ErrTokenInvalid)
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, fmt.Errorf("decode token: missing subject: %w", core.ErrTokenInvalid)
	}

	exp, ok := token.Expiration()
	if !ok {
		return nil, fmt.Errorf("decode token: missing expiry: %w", core.ErrTokenInvalid)
	}

	claims := &Claims{
		Subject:   subject,
		Type:      expected,
		ExpiresAt: exp,
	}
	claims.JTI, _ = token.JwtID()
	claims.IssuedAt, _ = token.IssuedAt()

	if expected == TokenRefresh {
		if claims.JTI == "" {
			return nil, fmt.Errorf("decode token: missing jti: %w", core.ErrTokenInvalid)
		}
		if err := token.Get(claimFamilyID, &claims.FamilyID); err != nil ||
			claims.FamilyID == "" {
			return nil, fmt.Errorf("decode token: missing family: %w", core.ErrTokenInvalid)
		}
	}

	return claims, nil
}

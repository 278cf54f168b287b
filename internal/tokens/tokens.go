package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/phishers-marketplace/marketplace-api/internal/config"
	"github.com/phishers-marketplace/marketplace-api/internal/models"
	"github.com/phishers-marketplace/marketplace-api/pkg/middleware"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carried by access tokens. Subject is the user's email.
type Claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// GenerateAccessToken creates a signed JWT access token for the user
func GenerateAccessToken(cfg *config.Config, u *models.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name: u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return jt.SignedString([]byte(cfg.Security.JWTSecret))
}

// Parse verifies signature, algorithm and expiry.
func Parse(secret, token string) (*Claims, error) {
	var c Claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || c.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &c, nil
}

// VerifiedToken is what the auth middleware stores in the request context.
type VerifiedToken struct {
	c *Claims
}

// Claims decodes the verified claims into v (a *Claims or *map[string]interface{}).
func (t *VerifiedToken) Claims(v interface{}) error {
	switch dst := v.(type) {
	case *Claims:
		*dst = *t.c
	case *map[string]interface{}:
		m := map[string]interface{}{"sub": t.c.Subject, "name": t.c.Name}
		if t.c.ExpiresAt != nil {
			m["exp"] = t.c.ExpiresAt.Unix()
		}
		if t.c.IssuedAt != nil {
			m["iat"] = t.c.IssuedAt.Unix()
		}
		*dst = m
	default:
		return fmt.Errorf("unsupported claims target %T", v)
	}
	return nil
}

// Subject returns the email the token was issued for.
func (t *VerifiedToken) Subject() string { return t.c.Subject }

// ExpiresAt returns the token's expiry, zero when absent.
func (t *VerifiedToken) ExpiresAt() time.Time {
	if t.c.ExpiresAt == nil {
		return time.Time{}
	}
	return t.c.ExpiresAt.Time
}

// HMACVerifier checks tokens issued by GenerateAccessToken.
type HMACVerifier struct {
	secret string
}

func NewVerifier(secret string) *HMACVerifier { return &HMACVerifier{secret: secret} }

func (v *HMACVerifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	c, err := Parse(v.secret, raw)
	if err != nil {
		return nil, err
	}
	return &VerifiedToken{c: c}, nil
}

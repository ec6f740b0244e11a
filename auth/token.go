package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenTTL = 7 * 24 * time.Hour
)

type (
	claims struct {
		jwt.RegisteredClaims
		Username string `json:"username"`
	}

	// TokenIssuer signs bearer tokens with HMAC-SHA256.
	TokenIssuer struct {
		secret []byte
		ttl    time.Duration
		now    func() time.Time
	}
)

// NewTokenIssuer returns an issuer for secret. now may be nil.
func NewTokenIssuer(secret string, now func() time.Time) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("auth: token secret cannot be empty")
	}
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{secret: []byte(secret), ttl: TokenTTL, now: now}, nil
}

// Issue returns a token for username and the moment it expires.
func (t *TokenIssuer) Issue(username string) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Username: username,
	})
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("unable to sign token, cause %w", err)
	}
	return signed, exp, nil
}

// Verify returns the username inside token or Unauthorized.
func (t *TokenIssuer) Verify(token string) (string, error) {
	var c claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	_, err := parser.ParseWithClaims(token, &c, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil {
		return "", Unauthorized{cause: err}
	}
	if c.Username == "" {
		return "", Unauthorized{cause: errors.New("token without username")}
	}
	return c.Username, nil
}

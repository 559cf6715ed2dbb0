package sessionauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned by Parse for any malformed, unsigned, or
// expired token.
var ErrInvalidToken = errors.New("sessionauth: invalid token")

// Claims identifies the session a token was issued for.
type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies session tokens with a single HMAC key.
type Issuer struct {
	key []byte
	ttl time.Duration
}

// NewIssuer builds an Issuer with the given signing key and token lifetime.
func NewIssuer(key []byte, ttl time.Duration) *Issuer {
	return &Issuer{key: key, ttl: ttl}
}

// Generate issues a token for sessionID.
func (i *Issuer) Generate(sessionID string) (string, error) {
	now := time.Now()
	claims := Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("sessionauth: sign: %w", err)
	}
	return signed, nil
}

// Parse verifies tokenStr and returns the session id it was issued for.
func (i *Issuer) Parse(tokenStr string) (string, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return i.key, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	return claims.SessionID, nil
}

// Package authtest signs identity provider tokens for tests. The engine only
// validates tokens; minting lives here so production code never issues them.
package authtest

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token describes a provider token. Zero values fall back to a token issued
// now and valid for an hour.
type Token struct {
	Secret    string
	Issuer    string
	Audience  []string
	ProfileID string
	Username  string
	Email     string
	Picture   string
	IssuedAt  time.Time
	TTL       time.Duration
}

// Sign returns the HS256 encoding of tok.
func Sign(tok Token) (string, error) {
	issued := tok.IssuedAt
	if issued.IsZero() {
		issued = time.Now()
	}
	ttl := tok.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	claims := jwt.MapClaims{
		"sub": tok.ProfileID,
		"iat": jwt.NewNumericDate(issued),
		"nbf": jwt.NewNumericDate(issued),
		"exp": jwt.NewNumericDate(issued.Add(ttl)),
	}
	if tok.Issuer != "" {
		claims["iss"] = tok.Issuer
	}
	if len(tok.Audience) > 0 {
		claims["aud"] = tok.Audience
	}
	if tok.Username != "" {
		claims["preferred_username"] = tok.Username
	}
	if tok.Email != "" {
		claims["email"] = tok.Email
	}
	if tok.Picture != "" {
		claims["picture"] = tok.Picture
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(tok.Secret))
}

// MustSign is Sign for tests.
func MustSign(t testing.TB, tok Token) string {
	t.Helper()

	signed, err := Sign(tok)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
)

// NewCSRFToken generates a random CSRF token and the digest that binds it
// to one specific token pair. The raw token travels in the response body
// and later in the X-CSRF-Token header; only the digest is embedded in the
// signed session and access tokens, so the cookie alone never reveals it.
func NewCSRFToken() (token, digest string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	token = base64.RawURLEncoding.EncodeToString(buf)
	return token, HashCSRFToken(token), nil
}

// HashCSRFToken returns the hex SHA-256 digest of a raw CSRF token.
func HashCSRFToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// MatchCSRF compares a presented raw token against the digest bound to the
// verified session, in constant time.
func MatchCSRF(digest, presented string) bool {
	if digest == "" || presented == "" {
		return false
	}
	actual := HashCSRFToken(presented)
	if len(actual) != len(digest) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(actual), []byte(digest)) == 1
}

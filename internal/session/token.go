package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// tokenBytes gives 128 bits of entropy, enough that a token cannot be
// brute-forced within a session's lifetime.
const tokenBytes = 16

// NewToken returns an unguessable URL-safe session token. The QR payload
// is exactly this string.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("token entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

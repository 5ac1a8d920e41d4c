package utils

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateInviteToken returns a URL-safe token with 16 bytes of
// entropy. Uniqueness is enforced by the database; callers regenerate
// on the (negligible) chance of a collision.
func GenerateInviteToken() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

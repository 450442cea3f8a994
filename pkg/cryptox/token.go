// Package cryptox produces the unguessable state tokens that key pending
// authorizations.
package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// TokenSize128 is 128 bits of entropy, 22 characters once encoded. Enough
// for a single-use CSRF token with a ten minute lifetime.
const TokenSize128 = 16

// GenerateToken draws size random bytes and encodes them as base64url
// without padding, so the result is safe inside a query string.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("cryptox: token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("cryptox: read random: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

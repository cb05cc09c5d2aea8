package internal

import (
	"crypto/rand"
	"encoding/base64"
)

const opaqueTokenSize = 32

// NewOpaqueToken returns a URL-safe random token suitable for e-mail links.
func NewOpaqueToken() (string, error) {
	var raw [opaqueTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

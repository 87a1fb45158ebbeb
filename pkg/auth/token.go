package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const resetTokenBytes = 32

// NewResetToken returns a hex-encoded token from cryptographically secure
// random bytes, suitable for password-reset links.
func NewResetToken() (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateSecret returns lengthInBytes random bytes, hex encoded. It seeds the server's token
// signing secret.
func GenerateSecret(lengthInBytes int) (string, error) {
	if lengthInBytes < 16 {
		return "", fmt.Errorf("secret must be at least 16 bytes, got %d", lengthInBytes)
	}
	b := make([]byte, lengthInBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

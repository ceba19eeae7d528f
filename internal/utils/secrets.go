package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateSecret returns n random bytes hex-encoded
func GenerateSecret(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateJWTSecrets returns independent 256-bit access and refresh secrets
func GenerateJWTSecrets() (access, refresh string, err error) {
	if access, err = GenerateSecret(32); err != nil {
		return "", "", fmt.Errorf("failed to generate access secret: %w", err)
	}
	if refresh, err = GenerateSecret(32); err != nil {
		return "", "", fmt.Errorf("failed to generate refresh secret: %w", err)
	}
	return access, refresh, nil
}

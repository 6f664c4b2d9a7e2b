package security

import (
	"crypto/rand"
	"errors"
)

// Secret lengths used across the application.
const (
	PasswordDefaultLength = 16
	CSRFTokenLength       = 32
	SessionIDLength       = 48
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Largest multiple of len(alphanumeric) below 256; bytes at or above it are
// rejected so every character is equally likely.
const rejectAbove = 256 - 256%len(alphanumeric)

// GenerateSecret returns a random alphanumeric string drawn from crypto/rand.
func GenerateSecret(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("secret length must be positive")
	}

	out := make([]byte, 0, length)
	buf := make([]byte, length+length/4+1)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= rejectAbove {
				continue
			}
			out = append(out, alphanumeric[int(b)%len(alphanumeric)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

package utils

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/rotisserie/eris"
	"golang.org/x/crypto/bcrypt"
)

// GenerateAPIKey creates a random URL-safe key of the given length
func GenerateAPIKey(length int) (string, error) {
	if length < 16 {
		length = 16
	}

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", eris.Wrap(err, "failed to read random bytes")
	}

	key := base64.RawURLEncoding.EncodeToString(b)
	return key[:length], nil
}

// HashAPIKey returns the bcrypt hash to put into API_KEY_HASH
func HashAPIKey(key string) (string, error) {
	if key == "" {
		return "", eris.New("API key must not be empty")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", eris.Wrap(err, "failed to hash API key")
	}

	return string(hashed), nil
}

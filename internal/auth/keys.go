package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidKey = errors.New("key must be between 8 and 72 bytes")

// GenerateKey generates a secure random login key.
func GenerateKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return "npc_" + base64.RawURLEncoding.EncodeToString(b), nil
}

// ValidateKey checks a key fits bcrypt's limits and is not trivially short.
func ValidateKey(key string) error {
	if len(key) < 8 || len(key) > 72 {
		return ErrInvalidKey
	}
	return nil
}

// KeyID is the lookup digest of a key. It identifies the credential row
// without revealing the key; the bcrypt hash is what proves it.
func KeyID(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8])
}

// HashKey returns the bcrypt hash of a key.
func HashKey(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckKey reports whether key matches hash.
func CheckKey(hash, key string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}

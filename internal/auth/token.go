// Package auth issues the local API token and guards HTTP routes with it.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const tokenFileName = "api_token"

// LoadOrCreateToken reads the API token from dir/api_token, or generates and
// persists a new 256-bit hex-encoded token if the file is missing or empty.
func LoadOrCreateToken(dir string) (string, error) {
	path := filepath.Join(dir, tokenFileName)

	data, err := os.ReadFile(path)
	if err == nil {
		if tok := strings.TrimSpace(string(data)); tok != "" {
			return tok, nil
		}
	}

	return RotateToken(dir)
}

// RotateToken generates a new token, replacing the existing one. Clients
// holding the old token are rejected from then on.
func RotateToken(dir string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("create token dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, tokenFileName), []byte(token), 0600); err != nil {
		return "", fmt.Errorf("write token: %w", err)
	}
	return token, nil
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Verifier checks presented tokens against the configured one. Only the
// SHA-256 of the token is kept in memory.
type Verifier struct {
	hash [sha256.Size]byte
}

// NewVerifier creates a Verifier for token.
func NewVerifier(token string) *Verifier {
	return &Verifier{hash: sha256.Sum256([]byte(token))}
}

// Valid reports whether token matches, in constant time.
func (v *Verifier) Valid(token string) bool {
	got := sha256.Sum256([]byte(token))
	return subtle.ConstantTimeCompare(got[:], v.hash[:]) == 1
}

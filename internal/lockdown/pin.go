package lockdown

import (
	"golang.org/x/crypto/bcrypt"
)

const pinKey = "lockdown_pin"

// pinRecord is stored apart from the lockdown state; it is owned by settings.
type pinRecord struct {
	Hash string `json:"hash"` // bcrypt
}

func hashPIN(pin string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func matchPIN(stored, pin string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(pin)) == nil
}

func validPIN(pin string, minLen, maxLen int) bool {
	if len(pin) < minLen || len(pin) > maxLen {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

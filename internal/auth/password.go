package auth

import (
	"golang.org/x/crypto/bcrypt"

	"rollbook/internal/apperr"
)

// HashSecret returns a salted bcrypt digest of a password, PIN or security answer.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckSecret reports whether secret matches the stored digest.
func CheckSecret(hash, secret string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// ValidatePIN accepts exactly four ASCII digits.
func ValidatePIN(pin string) error {
	if len(pin) != 4 {
		return apperr.Validation("PIN must be exactly 4 digits")
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return apperr.Validation("PIN must be exactly 4 digits")
		}
	}
	return nil
}

// HashPIN validates then hashes a student PIN.
func HashPIN(pin string) (string, error) {
	if err := ValidatePIN(pin); err != nil {
		return "", err
	}
	return HashSecret(pin)
}

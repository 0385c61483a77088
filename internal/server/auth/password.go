package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Password length bounds enforced at registration, reset, and change.
const (
	MinPasswordLength = 6
	MaxPasswordLength = 128
)

var ErrPasswordLength = errors.New("password must be between 6 and 128 characters")

// ValidatePassword checks the length bounds for a candidate password.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return ErrPasswordLength
	}
	return nil
}

// HashPassword produces a salted bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored hash. The
// comparison is done by bcrypt itself, never by raw string equality.
func CheckPassword(hash, password string) bool {
	if hash == "" || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

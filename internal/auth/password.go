package auth

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// IsLegacyHash reports whether stored is a plaintext password left over from
// accounts created before hashing was introduced.
func IsLegacyHash(stored string) bool {
	return !strings.HasPrefix(stored, "$2")
}

// CheckPassword reports whether password matches the stored hash. Legacy
// plaintext values are compared in constant time; callers should re-hash them
// after a successful login.
func CheckPassword(stored, password string) bool {
	if stored == "" {
		return false
	}
	if IsLegacyHash(stored) {
		return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
}

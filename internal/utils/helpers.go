package utils

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

func HashSecret(secret string) ([]byte, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return hashed, nil
}

// ValidateSecret validates a secret against its bcrypt hash
func ValidateSecret(secret string, hashedSecret []byte) bool {
	return bcrypt.CompareHashAndPassword(hashedSecret, []byte(secret)) == nil
}

// IsBcryptHash reports whether value already looks like a bcrypt hash
func IsBcryptHash(value string) bool {
	if len(value) != 60 {
		return false
	}
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}

// EnsureHashed returns value unchanged when it is already a bcrypt hash, otherwise its hash
func EnsureHashed(value string) (string, error) {
	if IsBcryptHash(value) {
		return value, nil
	}
	hashed, err := HashSecret(value)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

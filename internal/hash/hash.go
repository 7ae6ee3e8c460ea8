package hash

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	memory      = 19 * 1024
	iterations  = 2
	parallelism = 1
	keyLength   = 32
	saltLength  = 16
)

var ErrEmptyPassword = errors.New("password is empty")

func NewSalt() (string, error) {
	b := make([]byte, saltLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return base64.RawStdEncoding.EncodeToString(b), nil
}

// HashPassword derives the stored hash for password under salt. The same
// inputs always produce the same output.
func HashPassword(password, salt string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	rawSalt, err := base64.RawStdEncoding.DecodeString(salt)
	if err != nil || len(rawSalt) == 0 {
		return "", fmt.Errorf("decode salt: invalid salt")
	}
	sum := argon2.IDKey([]byte(password), rawSalt, iterations, memory, parallelism, keyLength)
	return base64.RawStdEncoding.EncodeToString(sum), nil
}

func CheckPassword(storedHash, salt, password string) (bool, error) {
	computed, err := HashPassword(password, salt)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1, nil
}

// NewCredentials salts and hashes a fresh password.
func NewCredentials(password string) (passwordHash, salt string, err error) {
	salt, err = NewSalt()
	if err != nil {
		return "", "", err
	}
	passwordHash, err = HashPassword(password, salt)
	if err != nil {
		return "", "", err
	}
	return passwordHash, salt, nil
}

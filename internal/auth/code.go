package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// CodeLength is the number of digits in a login code
const CodeLength = 6

// GenerateLoginCode returns a 6-digit numeric code from crypto/rand
func GenerateLoginCode() (string, error) {
	b := make([]byte, CodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate login code: %w", err)
	}

	for i := range b {
		b[i] = '0' + (b[i] % 10)
	}

	return string(b), nil
}

// HashLoginCode returns the hex-encoded SHA-256 of a code. Codes are
// stored hashed so a database read never yields the plaintext.
func HashLoginCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// CodeEqual compares a submitted code against a stored hash in constant time
func CodeEqual(storedHash, submittedCode string) bool {
	submittedHash := HashLoginCode(submittedCode)
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(submittedHash)) == 1
}

// Package crypto implements server-side password and token hashing.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters (tuned for server-side hashing).
const (
	argonTime    uint32 = 3         // iterations
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 32
)

// TokenLen is the plaintext length of issued bearer tokens.
const TokenLen = 250

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// HashSecret returns the Argon2id hash of secret using the provided salt.
// Used for both passwords and bearer tokens; the cost is deliberate.
func HashSecret(secret, salt []byte) []byte {
	return argon2.IDKey(secret, salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// VerifySecret verifies secret against the expected Argon2id hash and salt.
func VerifySecret(secret, salt, expected []byte) bool {
	got := HashSecret(secret, salt)
	return subtle.ConstantTimeCompare(got, expected) == 1
}

// NewToken returns a fresh high-entropy bearer token of TokenLen characters.
func NewToken() (string, error) {
	raw, err := RandBytes(TokenLen)
	if err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(raw)
	return s[:TokenLen], nil
}

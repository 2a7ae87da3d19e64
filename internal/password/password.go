// Package password implements salted PBKDF2 hashing, the account
// password strength policy, and generation of one-time passwords for
// newly created or reset accounts.
package password

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/pbkdf2"
)

const (
	iterations = 100_000
	keyLength  = 32
	saltLength = 16

	// MinLength is the shortest password the strength policy accepts.
	MinLength = 8

	generateAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*"
)

// Hasher derives and verifies password hashes. The zero value is ready
// to use.
type Hasher struct{}

// Hash derives a PBKDF2-SHA256 digest under a fresh random salt and
// encodes both as a single "salt:hexdigest" string. An error is
// returned only when the secure random source is unavailable; callers
// must treat that as fatal rather than fall back to weaker randomness.
func (Hasher) Hash(password string) (string, error) {
	salt, err := randomSalt()
	if err != nil {
		return "", err
	}
	return hashWithSalt(password, salt), nil
}

// Verify recomputes the digest for password under the salt embedded in
// stored and compares in constant time. Malformed stored hashes verify
// as false, never as an error.
func (Hasher) Verify(password, stored string) bool {
	salt, digest, ok := strings.Cut(stored, ":")
	if !ok || salt == "" || digest == "" {
		return false
	}
	want, err := hex.DecodeString(digest)
	if err != nil || len(want) != keyLength {
		return false
	}
	got := pbkdf2.Key([]byte(password), []byte(salt), iterations, keyLength, sha256.New)
	return hmac.Equal(got, want)
}

// IsStrong reports whether password satisfies the local strength
// policy: at least MinLength runes with upper, lower, digit, and
// punctuation classes all present.
func (Hasher) IsStrong(password string) bool {
	if len(password) < MinLength {
		return false
	}
	var upper, lower, digit, punct bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			punct = true
		}
	}
	return upper && lower && digit && punct
}

// Generate draws length characters from a fixed alphanumeric and
// punctuation alphabet using crypto/rand. Used for system-generated
// initial and reset passwords.
func (Hasher) Generate(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("password length must be positive, got %d", length)
	}
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	out := make([]byte, length)
	for i, b := range raw {
		out[i] = generateAlphabet[int(b)%len(generateAlphabet)]
	}
	return string(out), nil
}

func hashWithSalt(password, salt string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), iterations, keyLength, sha256.New)
	return salt + ":" + hex.EncodeToString(key)
}

func randomSalt() (string, error) {
	raw := make([]byte, saltLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

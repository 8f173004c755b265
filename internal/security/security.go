// Package security provides the hashing, randomness and time sources the
// lending services depend on.
package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

// SHA256Hasher hashes secrets into a 64-character lowercase hex digest.
type SHA256Hasher struct{}

// Hash returns the hex-encoded SHA-256 digest of plain.
func (SHA256Hasher) Hash(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// RandomDigits draws decimal digits from crypto/rand.
type RandomDigits struct{}

var ten = big.NewInt(10)

// Digits returns n uniformly random decimal digits.
func (RandomDigits) Digits(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("digit count must be positive, got %d", n)
	}
	buf := make([]byte, n)
	for i := range buf {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("failed to read random digit: %w", err)
		}
		buf[i] = byte('0' + d.Int64())
	}
	return string(buf), nil
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

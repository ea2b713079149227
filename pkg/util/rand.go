// Package util contains any functions used across the application that don't
// match any other package
package util

import (
	"crypto/rand"
	"encoding/hex"
	mrand "math/rand/v2"
)

const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// RandStr returns a short non-cryptographic random string, used for
// request IDs
func RandStr(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = charset[mrand.IntN(len(charset))]
	}

	return string(b)
}

// GenerateToken returns n cryptographically random bytes hex-encoded
func GenerateToken(n int) (string, error) {
	b := make([]byte, n)

	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}

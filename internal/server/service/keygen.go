package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const keyCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var charsetSize = big.NewInt(int64(len(keyCharset)))

// GenerateKey returns length characters drawn uniformly from the 62-char
// alphanumeric alphabet using crypto/rand. It never checks for collisions.
func GenerateKey(length int) (string, error) {
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, charsetSize)
		if err != nil {
			return "", fmt.Errorf("crypto/rand failure: %w", err)
		}
		result[i] = keyCharset[n.Int64()]
	}
	return string(result), nil
}

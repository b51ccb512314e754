package util

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

var tokenAlphabet = []rune("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789")

// RandomToken generates an n-character token drawn uniformly from the
// 62-symbol alphanumeric alphabet.
func RandomToken(n int) (string, error) {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		idx, err := RandomIntn(len(tokenAlphabet))
		if err != nil {
			return "", fmt.Errorf("generating random token index: %w", err)
		}
		sb.WriteRune(tokenAlphabet[idx])
	}
	return sb.String(), nil
}

// RandomDigits generates an n-character numeric string, each digit drawn
// uniformly from 0-9.
func RandomDigits(n int) (string, error) {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		d, err := RandomIntn(10)
		if err != nil {
			return "", fmt.Errorf("generating random digit: %w", err)
		}
		sb.WriteByte(byte('0' + d))
	}
	return sb.String(), nil
}

func RandomIntn(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, fmt.Errorf("generating random number: %w", err)
	}
	return int(n.Int64()), nil
}

func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generating random bytes: %w", err)
	}
	return b, nil
}

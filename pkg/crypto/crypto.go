package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"math/big"
)

const digits = "0123456789"

// GenerateToken returns a random URL-safe token of the requested byte length.
func GenerateToken(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("crypto: token length must be positive")
	}
	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}

// InviteCode returns a random code suitable for team invite links.
func InviteCode() (string, error) {
	return GenerateToken(9)
}

// RandomDigits returns n random decimal digits.
func RandomDigits(n int) (string, error) {
	if n <= 0 {
		return "", errors.New("crypto: digit count must be positive")
	}
	out := make([]byte, n)
	max := big.NewInt(int64(len(digits)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = digits[idx.Int64()]
	}
	return string(out), nil
}

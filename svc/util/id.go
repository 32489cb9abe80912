package util

import (
	"crypto/rand"
	"math/big"

	"github.com/pkg/errors"
)

const (
	base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	IDLength    = 8
)

var base62Size = big.NewInt(int64(len(base62Chars)))

// NewID draws IDLength symbols uniformly from the base62 alphabet.
// Uniqueness is checked by the store on insert, not here.
func NewID() (string, error) {
	buf := make([]byte, IDLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, base62Size)
		if err != nil {
			return "", errors.Wrap(err, "rand fail")
		}
		buf[i] = base62Chars[n.Int64()]
	}
	return string(buf), nil
}

func ValidID(id string) bool {
	if len(id) != IDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if !(c >= '0' && c <= '9' || c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z') {
			return false
		}
	}
	return true
}

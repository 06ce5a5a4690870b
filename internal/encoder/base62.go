// Package encoder maps counter values to short aliases.
package encoder

import (
	"errors"
	"strings"
)

// Alphabet is the alias alphabet: digits, then lowercase, then uppercase.
const Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

const base = uint64(len(Alphabet))

var ErrInvalidCharacter = errors.New("alias contains a character outside the base62 alphabet")

// Encode converts a number to a base62 string, most significant digit first.
// Encode(0) is the empty string; callers must never hand out an empty alias.
func Encode(num uint64) string {
	var buf [11]byte // 62^11 > 2^64
	i := len(buf)
	for num > 0 {
		i--
		buf[i] = Alphabet[num%base]
		num /= base
	}
	return string(buf[i:])
}

// Decode converts a base62 string back to a number.
func Decode(encoded string) (uint64, error) {
	var num uint64
	for i := 0; i < len(encoded); i++ {
		idx := strings.IndexByte(Alphabet, encoded[i])
		if idx < 0 {
			return 0, ErrInvalidCharacter
		}
		num = num*base + uint64(idx)
	}
	return num, nil
}

// IsValid reports whether s is non-empty and uses only the base62 alphabet.
func IsValid(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(Alphabet, s[i]) < 0 {
			return false
		}
	}
	return true
}

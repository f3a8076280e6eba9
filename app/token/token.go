// Package token generates collision-checked random identifiers for shares and
// short codes. A probe callback reports if a candidate is already taken; the
// generator retries until a free one is found. No retry bound is enforced,
// at the configured lengths repeated collision is astronomically unlikely.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Generate returns a unique hex token of the given length in characters.
// probe returns true for taken candidates.
func Generate(probe func(string) bool, length int) string {
	for {
		candidate := Hex(length)
		if !probe(candidate) {
			return candidate
		}
	}
}

// GenerateCode returns a unique mixed-case alphanumeric code of the given
// length, probing the same way as Generate.
func GenerateCode(probe func(string) bool, length int) string {
	for {
		buf := make([]byte, length)
		for i := range buf {
			n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
			if err != nil {
				panic("token: random source failed: " + err.Error())
			}
			buf[i] = codeAlphabet[n.Int64()]
		}
		candidate := string(buf)
		if !probe(candidate) {
			return candidate
		}
	}
}

// Hex returns length hex characters from a cryptographically secure source.
func Hex(length int) string {
	buf := make([]byte, (length+1)/2)
	if _, err := rand.Read(buf); err != nil {
		panic("token: random source failed: " + err.Error())
	}
	return hex.EncodeToString(buf)[:length]
}

// AccessKey returns an opaque token suitable for temporary share access.
func AccessKey() string { return Hex(32) }

// Package codec implements the canonical encoding and content-hashing layer
// (component C1): a deterministic textual encoding of typed objects and the
// SHA-256 hash over that encoding used as the object's address.
package codec

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// Hash is the lowercase hex SHA-256 digest of a canonical encoding. It never
// carries a leading "0x" and is always 64 characters long.
type Hash string

// IdHash is a Hash computed over only the id-marked fields of a recipe.
// It is a distinct type so the two hash spaces are never interchanged by
// accident at compile time.
type IdHash string

// ErrInvalidHash is returned when a string fails to parse as a hash.
var ErrInvalidHash = errors.New("codec: invalid hash")

// Sum computes the canonical Hash of already-canonicalized bytes.
func Sum(canonical []byte) Hash {
	sum := sha256.Sum256(canonical)
	return Hash(hex.EncodeToString(sum[:]))
}

// SumId computes the canonical IdHash of already-canonicalized id-object bytes.
func SumId(canonical []byte) IdHash {
	sum := sha256.Sum256(canonical)
	return IdHash(hex.EncodeToString(sum[:]))
}

// Valid reports whether h looks like a well-formed hash: 64 lowercase hex
// characters.
func (h Hash) Valid() bool {
	return isHex64(string(h))
}

// Valid reports whether h looks like a well-formed id-hash.
func (h IdHash) Valid() bool {
	return isHex64(string(h))
}

func isHex64(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}

// ParseHash validates and returns s as a Hash.
func ParseHash(s string) (Hash, error) {
	if !isHex64(s) {
		return "", ErrInvalidHash
	}
	return Hash(s), nil
}

// Bytes decodes the hex hash back to its 32 raw bytes.
func (h Hash) Bytes() ([]byte, error) {
	return hex.DecodeString(string(h))
}

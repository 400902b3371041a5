package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Short returns the first 12 hex characters
func (h Hash) Short() string {
	if len(h) < 12 {
		return string(h)
	}
	return string(h[:12])
}

// ComputeArrayHash fingerprints float arrays bit for bit, in order
func ComputeArrayHash(arrays ...[]float64) Hash {
	h := sha256.New()
	buf := make([]byte, 8)
	for _, arr := range arrays {
		binary.LittleEndian.PutUint64(buf, uint64(len(arr)))
		h.Write(buf)
		for _, v := range arr {
			binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
			h.Write(buf)
		}
	}
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

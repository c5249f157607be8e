package dag

import (
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/zeebo/blake3"
)

// Hash is the content fingerprint of a chunk.
// Two hashes are equal iff their string forms are.
type Hash string

// Zero is the zero value of a Hash.
// It stands for "no hash,"
// e.g. a head that does not exist.
var Zero Hash

// MaxHashLen is the longest string accepted as a Hash.
const MaxHashLen = 64

// HashFunc computes a Hash from serialized chunk data.
type HashFunc func([]byte) Hash

func (h Hash) String() string {
	return string(h)
}

// IsZero tells whether h is the zero Hash.
func (h Hash) IsZero() bool {
	return h == Zero
}

// Valid tells whether h is well-formed:
// between 1 and MaxHashLen characters,
// each one a digit or a lowercase letter from a to v.
// This is the alphabet of lowercase base32hex,
// and a superset of lowercase hex.
func (h Hash) Valid() bool {
	if len(h) == 0 || len(h) > MaxHashLen {
		return false
	}
	for i := 0; i < len(h); i++ {
		c := h[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'v') {
			return false
		}
	}
	return true
}

// ParseHash converts s to a Hash,
// returning a *HashError if it is not well-formed.
func ParseHash(s string) (Hash, error) {
	h := Hash(s)
	if !h.Valid() {
		return Zero, &HashError{Key: s, Hash: s}
	}
	return h, nil
}

var base32hex = base32.HexEncoding.WithPadding(base32.NoPadding)

// Blake3 is the default HashFunc.
// It produces the lowercase base32hex encoding of the first 20 bytes of the BLAKE3 digest:
// 32 characters.
func Blake3(b []byte) Hash {
	sum := blake3.Sum256(b)
	return Hash(strings.ToLower(base32hex.EncodeToString(sum[:20])))
}

// SHA256 is a HashFunc producing the lowercase hex SHA2-256 digest:
// 64 characters.
func SHA256(b []byte) Hash {
	sum := sha256.Sum256(b)
	return Hash(hex.EncodeToString(sum[:]))
}

// NewFakeHasher produces a HashFunc for tests.
// It ignores its input and returns a new hash on each call,
// derived from a counter private to the returned function:
// face0000000000000000000000000001, face0000000000000000000000000002, and so on.
// Two fake hashers produce the same sequence.
func NewFakeHasher() HashFunc {
	var n uint64
	return func([]byte) Hash {
		return Hash(fmt.Sprintf("face%028d", atomic.AddUint64(&n, 1)))
	}
}

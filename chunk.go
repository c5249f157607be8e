package dag

import (
	"github.com/pkg/errors"
)

// Refs is the ordered list of hashes a chunk refers to.
// It is also the form in which a chunk's refs are persisted
// (under its meta key).
type Refs []Hash

// Chunk is an immutable node in the graph.
type Chunk struct {
	Hash Hash
	Data Value
	Refs Refs
}

// NewChunk creates a Chunk with the given data and refs.
// Its hash is hashFn applied to the serialized data;
// refs do not contribute to it.
// A nil refs is normalized to an empty Refs.
func NewChunk(data Value, refs []Hash, hashFn HashFunc) Chunk {
	b, err := Encode(data)
	if err != nil {
		// Encode can only fail for a Value type outside the closed set,
		// which Native already rejects with a panic.
		panic(errors.Wrap(err, "encoding chunk data"))
	}
	return Chunk{
		Hash: hashFn(b),
		Data: data,
		Refs: normalizeRefs(refs),
	}
}

func normalizeRefs(refs []Hash) Refs {
	out := make(Refs, len(refs))
	copy(out, refs)
	return out
}

// Equal tells whether c and other have the same hash,
// deeply equal data,
// and the same refs in the same order.
func (c Chunk) Equal(other Chunk) bool {
	return c.Hash == other.Hash && Equal(c.Data, other.Data) && c.Refs.Equal(other.Refs)
}

// Equal tells whether r and other are the same sequence.
// A nil Refs equals an empty one.
func (r Refs) Equal(other Refs) bool {
	if len(r) != len(other) {
		return false
	}
	for i := range r {
		if r[i] != other[i] {
			return false
		}
	}
	return true
}

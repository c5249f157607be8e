package dag

import (
	"strings"
)

// KeyKind identifies which kind of entity a substrate key holds.
type KeyKind int

// The kinds of substrate keys.
const (
	KindChunkData KeyKind = iota + 1
	KindChunkMeta
	KindChunkRefCount
	KindHead
)

const (
	chunkPrefix = "c/"
	headPrefix  = "h/"

	dataSuffix     = "d"
	metaSuffix     = "m"
	refCountSuffix = "r"
)

func (k KeyKind) String() string {
	switch k {
	case KindChunkData:
		return "data"
	case KindChunkMeta:
		return "meta"
	case KindChunkRefCount:
		return "refcount"
	case KindHead:
		return "head"
	}
	return "unknown"
}

// ChunkDataKey is the key for the data of the chunk with the given hash.
func ChunkDataKey(h Hash) string {
	return chunkKey(h, dataSuffix)
}

// ChunkMetaKey is the key for the refs of the chunk with the given hash.
func ChunkMetaKey(h Hash) string {
	return chunkKey(h, metaSuffix)
}

// ChunkRefCountKey is the key for the reference count of the chunk with the given hash.
func ChunkRefCountKey(h Hash) string {
	return chunkKey(h, refCountSuffix)
}

// HeadKey is the key for the head with the given name.
func HeadKey(name string) string {
	return headPrefix + name
}

func chunkKey(h Hash, suffix string) string {
	return chunkPrefix + string(h) + "/" + suffix
}

// ParsedKey is the result of ParseKey.
// Hash is set for the chunk kinds,
// Name for KindHead.
type ParsedKey struct {
	Kind KeyKind
	Hash Hash
	Name string
}

// ParseKey is the inverse of ChunkDataKey, ChunkMetaKey, ChunkRefCountKey, and HeadKey.
// A key with the wrong shape produces a *KeyError.
// A chunk key with the right shape but an empty or malformed hash produces a *HashError.
func ParseKey(key string) (ParsedKey, error) {
	switch {
	case strings.HasPrefix(key, headPrefix):
		return ParsedKey{Kind: KindHead, Name: key[len(headPrefix):]}, nil

	case strings.HasPrefix(key, chunkPrefix):
		parts := strings.Split(key, "/")
		if len(parts) != 3 {
			return ParsedKey{}, &KeyError{Key: key}
		}

		var kind KeyKind
		switch parts[2] {
		case dataSuffix:
			kind = KindChunkData
		case metaSuffix:
			kind = KindChunkMeta
		case refCountSuffix:
			kind = KindChunkRefCount
		default:
			return ParsedKey{}, &KeyError{Key: key}
		}

		h := Hash(parts[1])
		if !h.Valid() {
			return ParsedKey{}, &HashError{Key: key, Hash: parts[1]}
		}
		return ParsedKey{Kind: kind, Hash: h}, nil
	}

	return ParsedKey{}, &KeyError{Key: key}
}

// Package kvmap implements dag.KV transactions over a Go map.
// It is the shared core of the in-memory and single-file backends.
package kvmap

import (
	"context"
	"sort"
	"strings"

	"github.com/bobg/dag"
)

// Map is a snapshot of a whole key-value store.
type Map map[string][]byte

// Clone returns a copy of m
// (sharing value slices, which are never modified in place).
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ReadTx reads from a Map.
// The caller must keep the Map from changing for the life of the transaction.
type ReadTx struct {
	M Map
}

var _ dag.ReadTx = ReadTx{}

// Get implements dag.ReadTx.
func (tx ReadTx) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := tx.M[key]
	return copyBytes(v), ok, nil
}

// Scan implements dag.ReadTx.
func (tx ReadTx) Scan(ctx context.Context, prefix string, f func(string, []byte) error) error {
	return scan(ctx, sortedKeys(tx.M, prefix), func(k string) ([]byte, bool) {
		v, ok := tx.M[k]
		return v, ok
	}, f)
}

// WriteTx is a transaction whose writes are buffered
// on top of a base Map.
// Its reads see the base plus its own writes.
// Nothing touches the base until the caller applies the buffered writes with Commit.
type WriteTx struct {
	base    Map
	writes  Map
	deletes map[string]struct{}
}

var _ dag.WriteTx = &WriteTx{}

// NewWriteTx produces a new WriteTx on top of base.
func NewWriteTx(base Map) *WriteTx {
	return &WriteTx{
		base:    base,
		writes:  make(Map),
		deletes: make(map[string]struct{}),
	}
}

// Get implements dag.ReadTx.
func (tx *WriteTx) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := tx.get(key)
	return copyBytes(v), ok, nil
}

func (tx *WriteTx) get(key string) ([]byte, bool) {
	if v, ok := tx.writes[key]; ok {
		return v, true
	}
	if _, ok := tx.deletes[key]; ok {
		return nil, false
	}
	v, ok := tx.base[key]
	return v, ok
}

// Scan implements dag.ReadTx.
// The set of keys visited is fixed when Scan begins.
func (tx *WriteTx) Scan(ctx context.Context, prefix string, f func(string, []byte) error) error {
	keys := sortedKeys(tx.base, prefix)
	for k := range tx.writes {
		if strings.HasPrefix(k, prefix) {
			if _, ok := tx.base[k]; !ok {
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return scan(ctx, keys, tx.get, f)
}

// Put implements dag.WriteTx.
func (tx *WriteTx) Put(_ context.Context, key string, val []byte) error {
	delete(tx.deletes, key)
	tx.writes[key] = copyBytes(val)
	return nil
}

// Delete implements dag.WriteTx.
func (tx *WriteTx) Delete(_ context.Context, key string) error {
	delete(tx.writes, key)
	tx.deletes[key] = struct{}{}
	return nil
}

// Commit applies the transaction's writes to m.
func (tx *WriteTx) Commit(m Map) {
	for k := range tx.deletes {
		delete(m, k)
	}
	for k, v := range tx.writes {
		m[k] = v
	}
}

func sortedKeys(m Map, prefix string) []string {
	var keys []string
	for k := range m {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func scan(ctx context.Context, keys []string, get func(string) ([]byte, bool), f func(string, []byte) error) error {
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, ok := get(k)
		if !ok {
			continue
		}
		if err := f(k, copyBytes(v)); err != nil {
			return err
		}
	}
	return nil
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

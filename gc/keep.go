package gc

import (
	"context"
	"sync"

	"github.com/bobg/dag"
)

// Keep is a set of hashes to protect from garbage collection.
type Keep interface {
	// Add adds a single hash to the Keep.
	// It returns true if it was newly added and false if it was already present.
	Add(context.Context, dag.Hash) (bool, error)

	// Contains tells whether a hash is in the Keep.
	Contains(context.Context, dag.Hash) (bool, error)
}

// MemKeep is an in-memory Keep.
// It is safe for concurrent use.
type MemKeep struct {
	mu sync.Mutex
	m  map[dag.Hash]struct{}
}

var _ Keep = &MemKeep{}

// NewMemKeep produces a new, empty MemKeep.
func NewMemKeep() *MemKeep {
	return &MemKeep{m: make(map[dag.Hash]struct{})}
}

// Add implements Keep.
func (k *MemKeep) Add(_ context.Context, h dag.Hash) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, ok := k.m[h]; ok {
		return false, nil
	}
	k.m[h] = struct{}{}
	return true, nil
}

// Contains implements Keep.
func (k *MemKeep) Contains(_ context.Context, h dag.Hash) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	_, ok := k.m[h]
	return ok, nil
}

// Len tells how many hashes are in the Keep.
func (k *MemKeep) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.m)
}

// Package mem implements an in-memory dag.KV.
package mem

import (
	"context"
	"sync"

	"github.com/bobg/dag"
	"github.com/bobg/dag/internal/kvmap"
	"github.com/bobg/dag/store"
)

var _ dag.KV = &KV{}

// KV is a memory-based implementation of dag.KV.
// Readers share a lock;
// a writer holds it exclusively for the duration of its transaction.
type KV struct {
	mu sync.RWMutex
	m  kvmap.Map
}

// New produces a new, empty KV.
func New() *KV {
	return &KV{m: make(kvmap.Map)}
}

// View implements dag.KV.
func (kv *KV) View(ctx context.Context, f func(dag.ReadTx) error) error {
	kv.mu.RLock()
	defer kv.mu.RUnlock()

	return f(kvmap.ReadTx{M: kv.m})
}

// Update implements dag.KV.
func (kv *KV) Update(ctx context.Context, f func(dag.WriteTx) error) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	tx := kvmap.NewWriteTx(kv.m)
	if err := f(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.Commit(kv.m)
	return nil
}

// Close implements dag.KV.
func (kv *KV) Close() error {
	return nil
}

// Len tells how many keys are in the store.
func (kv *KV) Len() int {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	return len(kv.m)
}

func init() {
	store.Register("mem", func(context.Context, map[string]interface{}) (dag.KV, error) {
		return New(), nil
	})
}

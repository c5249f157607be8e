package dag

import (
	"context"
)

// ReadTx is a read transaction on a KV.
// It sees a consistent snapshot of the store,
// plus (in a WriteTx) the transaction's own writes.
type ReadTx interface {
	// Get gets the value stored at key.
	// The boolean is false if there is none.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Scan calls a function for each key having the given prefix,
	// in ascending key order,
	// together with its value.
	// If the callback returns an error,
	// Scan exits with that error.
	// The callback must not modify the store or start another Scan.
	Scan(ctx context.Context, prefix string, f func(key string, val []byte) error) error
}

// WriteTx is a read-write transaction on a KV.
type WriteTx interface {
	ReadTx

	// Put stores val at key,
	// replacing any value already there.
	Put(ctx context.Context, key string, val []byte) error

	// Delete removes key.
	// It is not an error if key is absent.
	Delete(ctx context.Context, key string) error
}

// KV is an ordered key-value store with atomic transactions.
// It is the substrate on which a Store is built.
//
// A transaction object is valid only inside the callback it is passed to.
type KV interface {
	// View runs f in a read-only transaction.
	// Multiple View calls may run concurrently.
	View(ctx context.Context, f func(ReadTx) error) error

	// Update runs f in a read-write transaction.
	// If f returns nil, its writes are committed atomically;
	// otherwise none of them are, and Update returns f's error.
	// Update excludes other writers for its duration.
	Update(ctx context.Context, f func(WriteTx) error) error

	// Close releases the resources held by the KV.
	Close() error
}

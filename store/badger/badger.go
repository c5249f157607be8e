// Package badger implements a dag.KV on BadgerDB.
package badger

import (
	"context"
	"sync"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"

	"github.com/bobg/dag"
	"github.com/bobg/dag/store"
)

var _ dag.KV = &KV{}

// KV is a BadgerDB-based implementation of dag.KV.
type KV struct {
	db *badgerdb.DB

	// Badger detects conflicting writers only at commit time.
	// Serializing them here means in-process writers wait rather than fail.
	wmu sync.Mutex
}

// New produces a new KV using db for storage.
func New(db *badgerdb.DB) *KV {
	return &KV{db: db}
}

// Open opens (creating if necessary) a BadgerDB in dir
// and produces a KV on it.
// An empty dir means an in-memory database.
// Closing the KV closes the database.
func Open(dir string) (*KV, error) {
	opts := badgerdb.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "opening badger db in %q", dir)
	}
	return New(db), nil
}

// View implements dag.KV.
func (kv *KV) View(_ context.Context, f func(dag.ReadTx) error) error {
	return kv.db.View(func(txn *badgerdb.Txn) error {
		return f(&tx{txn: txn})
	})
}

// Update implements dag.KV.
// A commit-time conflict with another writer
// (possible only from another process sharing the database)
// is reported as dag.ErrConflict.
func (kv *KV) Update(ctx context.Context, f func(dag.WriteTx) error) error {
	kv.wmu.Lock()
	defer kv.wmu.Unlock()

	err := kv.db.Update(func(txn *badgerdb.Txn) error {
		if err := f(&tx{txn: txn}); err != nil {
			return err
		}
		return ctx.Err()
	})
	if errors.Is(err, badgerdb.ErrConflict) {
		return errors.Wrap(dag.ErrConflict, "committing badger transaction")
	}
	return err
}

// Close implements dag.KV.
func (kv *KV) Close() error {
	return kv.db.Close()
}

type tx struct {
	txn *badgerdb.Txn
}

func (t *tx) Get(_ context.Context, key string) ([]byte, bool, error) {
	item, err := t.txn.Get([]byte(key))
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "getting %s", key)
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, errors.Wrapf(err, "copying value of %s", key)
	}
	return val, true, nil
}

func (t *tx) Scan(ctx context.Context, prefix string, f func(string, []byte) error) error {
	it := t.txn.NewIterator(badgerdb.DefaultIteratorOptions)
	defer it.Close()

	p := []byte(prefix)
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		item := it.Item()
		key := string(item.KeyCopy(nil))
		val, err := item.ValueCopy(nil)
		if err != nil {
			return errors.Wrapf(err, "copying value of %s", key)
		}
		if err := f(key, val); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) Put(_ context.Context, key string, val []byte) error {
	return errors.Wrapf(t.txn.Set([]byte(key), val), "setting %s", key)
}

func (t *tx) Delete(_ context.Context, key string) error {
	return errors.Wrapf(t.txn.Delete([]byte(key)), "deleting %s", key)
}

func init() {
	store.Register("badger", func(_ context.Context, conf map[string]interface{}) (dag.KV, error) {
		dir, _ := conf["dir"].(string)
		return Open(dir)
	})
}

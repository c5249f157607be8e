// Package file implements a dag.KV as a single snapshot file.
package file

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/bobg/flock"
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"github.com/bobg/dag"
	"github.com/bobg/dag/internal/kvmap"
	"github.com/bobg/dag/store"
)

var _ dag.KV = &KV{}

// KV is a file-based implementation of dag.KV.
// The whole store lives in one CBOR-encoded file beneath root,
// rewritten (via a temporary file and a rename) on every committed Update.
// A lock file excludes other processes sharing the same root.
type KV struct {
	root    string
	flocker flock.Locker

	// Held while the file lock is,
	// so at most one goroutine per KV holds the file lock at a time.
	mu sync.Mutex
}

const (
	dataFileBaseName = "dag.cbor"
	lockFileBaseName = "dag.lock"
)

// The snapshot is one CBOR map holding every key in the store.
var decMode cbor.DecMode

func init() {
	var err error
	decMode, err = cbor.DecOptions{MaxMapPairs: math.MaxInt32}.DecMode()
	if err != nil {
		panic(errors.Wrap(err, "initializing CBOR decoder"))
	}
}

// New produces a new KV storing data beneath root,
// which is created if necessary.
func New(root string) (*KV, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errors.Wrapf(err, "ensuring %s exists", root)
	}
	f, err := os.OpenFile(filepath.Join(root, lockFileBaseName), os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "creating lock file")
	}
	if err := f.Close(); err != nil {
		return nil, errors.Wrap(err, "closing lock file")
	}
	return &KV{root: root}, nil
}

func (kv *KV) dataFilePath() string {
	return filepath.Join(kv.root, dataFileBaseName)
}

func (kv *KV) lockFilePath() string {
	return filepath.Join(kv.root, lockFileBaseName)
}

func (kv *KV) lock() error {
	kv.mu.Lock()
	if err := kv.flocker.Lock(kv.lockFilePath()); err != nil {
		kv.mu.Unlock()
		return err
	}
	return nil
}

func (kv *KV) unlock() error {
	defer kv.mu.Unlock()
	return kv.flocker.Unlock(kv.lockFilePath())
}

// View implements dag.KV.
// The transaction reads a private snapshot loaded from the file.
func (kv *KV) View(ctx context.Context, f func(dag.ReadTx) error) error {
	if err := kv.lock(); err != nil {
		return errors.Wrap(err, "locking")
	}
	m, err := kv.load()
	kv.unlock()
	if err != nil {
		return err
	}
	return f(kvmap.ReadTx{M: m})
}

// Update implements dag.KV.
// It holds the lock for the whole transaction,
// excluding readers as well as other writers.
func (kv *KV) Update(ctx context.Context, f func(dag.WriteTx) error) error {
	if err := kv.lock(); err != nil {
		return errors.Wrap(err, "locking")
	}
	defer kv.unlock()

	m, err := kv.load()
	if err != nil {
		return err
	}

	tx := kvmap.NewWriteTx(m)
	if err := f(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.Commit(m)

	return kv.save(m)
}

// Close implements dag.KV.
func (kv *KV) Close() error {
	return nil
}

// File lock must be held.
func (kv *KV) load() (kvmap.Map, error) {
	b, err := os.ReadFile(kv.dataFilePath())
	if errors.Is(err, os.ErrNotExist) {
		return make(kvmap.Map), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading data file")
	}
	var m kvmap.Map
	if err := decMode.Unmarshal(b, &m); err != nil {
		return nil, errors.Wrap(err, "decoding data file")
	}
	if m == nil {
		m = make(kvmap.Map)
	}
	return m, nil
}

// File lock must be held.
func (kv *KV) save(m kvmap.Map) error {
	b, err := cbor.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "encoding data file")
	}

	tmp, err := os.CreateTemp(kv.root, dataFileBaseName+".*")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	tmpname := tmp.Name()
	defer os.Remove(tmpname) // no-op after the rename

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "writing %s", tmpname)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "syncing %s", tmpname)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "closing %s", tmpname)
	}
	return errors.Wrap(os.Rename(tmpname, kv.dataFilePath()), "replacing data file")
}

func init() {
	store.Register("file", func(_ context.Context, conf map[string]interface{}) (dag.KV, error) {
		root, ok := conf["root"].(string)
		if !ok {
			return nil, errors.New(`missing "root" parameter`)
		}
		return New(root)
	})
}

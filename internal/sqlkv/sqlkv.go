// Package sqlkv implements dag.KV on a database/sql database
// holding a single two-column table.
// It is the shared core of the sqlite3 and pg backends,
// which supply a Dialect.
package sqlkv

import (
	"context"
	"database/sql"
	"sync"

	"github.com/bobg/sqlutil"
	"github.com/pkg/errors"

	"github.com/bobg/dag"
)

// Dialect describes the differences between databases.
type Dialect struct {
	// Schema creates the kv table if it does not exist.
	// The table must have a text primary key column "key",
	// ordered bytewise,
	// and a binary column "value".
	Schema string

	// Isolation is the isolation level for read-write transactions.
	Isolation sql.IsolationLevel

	// ReadIsolation is the isolation level for read transactions.
	// It must give each transaction a single snapshot
	// across all of its statements.
	ReadIsolation sql.IsolationLevel

	// ReadOnly tells whether read transactions can be flagged as read-only.
	ReadOnly bool

	// IsConflict, if non-nil, tells whether a database error
	// means the transaction lost a race with a concurrent one.
	IsConflict func(error) bool
}

var _ dag.KV = &KV{}

// KV is a database/sql-based implementation of dag.KV.
type KV struct {
	db *sql.DB
	d  Dialect

	wmu sync.Mutex
}

// New produces a new KV using db for storage,
// first creating its table if needed.
func New(ctx context.Context, db *sql.DB, d Dialect) (*KV, error) {
	if _, err := db.ExecContext(ctx, d.Schema); err != nil {
		return nil, errors.Wrap(err, "creating schema")
	}
	return &KV{db: db, d: d}, nil
}

// View implements dag.KV.
func (kv *KV) View(ctx context.Context, f func(dag.ReadTx) error) error {
	sqltx, err := kv.db.BeginTx(ctx, &sql.TxOptions{Isolation: kv.d.ReadIsolation, ReadOnly: kv.d.ReadOnly})
	if err != nil {
		return errors.Wrap(err, "beginning read transaction")
	}
	defer sqltx.Rollback()

	return f(&tx{tx: sqltx})
}

// Update implements dag.KV.
func (kv *KV) Update(ctx context.Context, f func(dag.WriteTx) error) error {
	kv.wmu.Lock()
	defer kv.wmu.Unlock()

	sqltx, err := kv.db.BeginTx(ctx, &sql.TxOptions{Isolation: kv.d.Isolation})
	if err != nil {
		return errors.Wrap(err, "beginning write transaction")
	}
	defer sqltx.Rollback() // no-op after Commit

	if err := f(&tx{tx: sqltx}); err != nil {
		return err
	}
	err = sqltx.Commit()
	if err != nil && kv.d.IsConflict != nil && kv.d.IsConflict(err) {
		return errors.Wrap(dag.ErrConflict, err.Error())
	}
	return errors.Wrap(err, "committing")
}

// Close implements dag.KV.
// It closes the underlying database.
func (kv *KV) Close() error {
	return kv.db.Close()
}

type tx struct {
	tx *sql.Tx
}

func (t *tx) Get(ctx context.Context, key string) ([]byte, bool, error) {
	const q = `SELECT value FROM kv WHERE key = $1`

	var val []byte
	err := t.tx.QueryRowContext(ctx, q, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "getting %s", key)
	}
	return val, true, nil
}

// Scan reads all matching rows before invoking f,
// so that f can issue queries of its own on the same transaction.
func (t *tx) Scan(ctx context.Context, prefix string, f func(string, []byte) error) error {
	type pair struct {
		key string
		val []byte
	}
	var pairs []pair

	collect := func(key string, val []byte) {
		pairs = append(pairs, pair{key: key, val: val})
	}

	var err error
	if end, ok := prefixEnd(prefix); ok {
		const q = `SELECT key, value FROM kv WHERE key >= $1 AND key < $2 ORDER BY key`
		err = sqlutil.ForQueryRows(ctx, t.tx, q, prefix, end, collect)
	} else {
		const q = `SELECT key, value FROM kv WHERE key >= $1 ORDER BY key`
		err = sqlutil.ForQueryRows(ctx, t.tx, q, prefix, collect)
	}
	if err != nil {
		return errors.Wrapf(err, "scanning prefix %q", prefix)
	}

	for _, p := range pairs {
		if err := f(p.key, p.val); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) Put(ctx context.Context, key string, val []byte) error {
	const q = `INSERT INTO kv (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = excluded.value`

	if val == nil {
		val = []byte{}
	}
	_, err := t.tx.ExecContext(ctx, q, key, val)
	return errors.Wrapf(err, "putting %s", key)
}

func (t *tx) Delete(ctx context.Context, key string) error {
	const q = `DELETE FROM kv WHERE key = $1`

	_, err := t.tx.ExecContext(ctx, q, key)
	return errors.Wrapf(err, "deleting %s", key)
}

// prefixEnd returns the smallest string greater than every string having the given prefix.
// The boolean is false if there is none
// (the prefix is empty or all 0xff bytes).
func prefixEnd(prefix string) (string, bool) {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1]), true
		}
	}
	return "", false
}

// Package sqlite3 implements a dag.KV on SQLite.
package sqlite3

import (
	"context"
	"database/sql"
	"net/url"

	_ "github.com/mattn/go-sqlite3" // register the sqlite3 type for sql.Open
	"github.com/pkg/errors"

	"github.com/bobg/dag"
	"github.com/bobg/dag/internal/sqlkv"
	"github.com/bobg/dag/store"
)

// Schema is the SQL that New executes.
// It creates the `kv` table if it does not exist.
// (If it does exist, it must have the columns and constraints described here.)
const Schema = `
CREATE TABLE IF NOT EXISTS kv (
  key TEXT PRIMARY KEY NOT NULL,
  value BLOB NOT NULL
);
`

var dialect = sqlkv.Dialect{
	Schema:        Schema,
	Isolation:     sql.LevelDefault, // SQLite transactions are serializable
	ReadIsolation: sql.LevelDefault,
}

// New produces a new dag.KV using db for storage.
// It expects to create the `kv` table,
// or for that table already to exist with the correct schema.
// (See Schema.)
func New(ctx context.Context, db *sql.DB) (*sqlkv.KV, error) {
	return sqlkv.New(ctx, db, dialect)
}

// Open opens the SQLite database in the file at path
// (in write-ahead-log mode, so readers and the writer do not block one another)
// and produces a dag.KV on it.
// Closing the KV closes the database.
func Open(ctx context.Context, path string) (*sqlkv.KV, error) {
	q := url.Values{}
	q.Set("_busy_timeout", "5000")
	q.Set("_journal_mode", "WAL")
	conn := "file:" + path + "?" + q.Encode()

	db, err := sql.Open("sqlite3", conn)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	kv, err := New(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return kv, nil
}

func init() {
	store.Register("sqlite3", func(ctx context.Context, conf map[string]interface{}) (dag.KV, error) {
		if path, ok := conf["path"].(string); ok {
			return Open(ctx, path)
		}
		conn, ok := conf["conn"].(string)
		if !ok {
			return nil, errors.New(`missing "path" or "conn" parameter`)
		}
		db, err := sql.Open("sqlite3", conn)
		if err != nil {
			return nil, errors.Wrap(err, "opening db")
		}
		return New(ctx, db)
	})
}

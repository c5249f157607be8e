// Package pg implements a dag.KV on PostgreSQL.
package pg

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/bobg/dag"
	"github.com/bobg/dag/internal/sqlkv"
	"github.com/bobg/dag/store"
)

// Schema is the SQL that New executes.
// It creates the `kv` table if it does not exist.
// (If it does exist, it must have the columns, constraints, and collation described here.
// The "C" collation makes keys sort bytewise.)
const Schema = `
CREATE TABLE IF NOT EXISTS kv (
  key TEXT COLLATE "C" PRIMARY KEY NOT NULL,
  value BYTEA NOT NULL
);
`

var dialect = sqlkv.Dialect{
	Schema:        Schema,
	Isolation:     sql.LevelSerializable,
	ReadIsolation: sql.LevelRepeatableRead, // the default, READ COMMITTED, snapshots per statement
	ReadOnly:      true,
	IsConflict:    isSerializationFailure,
}

// New produces a new dag.KV using db for storage.
// It expects to create the `kv` table,
// or for that table already to exist with the correct schema.
// (See Schema.)
func New(ctx context.Context, db *sql.DB) (*sqlkv.KV, error) {
	return sqlkv.New(ctx, db, dialect)
}

// SQLSTATE 40001 is serialization_failure.
func isSerializationFailure(err error) bool {
	var pqerr *pq.Error
	return errors.As(err, &pqerr) && pqerr.Code == "40001"
}

func init() {
	store.Register("pg", func(ctx context.Context, conf map[string]interface{}) (dag.KV, error) {
		conn, ok := conf["conn"].(string)
		if !ok {
			return nil, errors.New(`missing "conn" parameter`)
		}
		db, err := sql.Open("postgres", conn)
		if err != nil {
			return nil, errors.Wrap(err, "opening db")
		}
		return New(ctx, db)
	})
}

package store

import (
	"bytes"
	"context"

	"github.com/pkg/errors"

	"github.com/bobg/dag"
)

// Sync makes dst an exact copy of src:
// every key in src is written to dst (unless dst already has the same value),
// and every key in dst that is not in src is deleted.
// It reads src in a single transaction and writes dst in a single transaction,
// so dst ends up holding a consistent snapshot of src.
// It returns the number of keys written and deleted.
//
// This is how to move a store from one backend to another.
// The two must be distinct KVs.
func Sync(ctx context.Context, dst, src dag.KV) (written, deleted int, err error) {
	err = src.View(ctx, func(stx dag.ReadTx) error {
		return dst.Update(ctx, func(dtx dag.WriteTx) error {
			written, deleted = 0, 0

			var extra []string
			err := dtx.Scan(ctx, "", func(key string, _ []byte) error {
				_, ok, err := stx.Get(ctx, key)
				if err != nil {
					return errors.Wrapf(err, "reading %s from source", key)
				}
				if !ok {
					extra = append(extra, key)
				}
				return nil
			})
			if err != nil {
				return errors.Wrap(err, "scanning destination")
			}
			for _, key := range extra {
				if err := dtx.Delete(ctx, key); err != nil {
					return errors.Wrapf(err, "deleting %s", key)
				}
				deleted++
			}

			return stx.Scan(ctx, "", func(key string, val []byte) error {
				got, ok, err := dtx.Get(ctx, key)
				if err != nil {
					return errors.Wrapf(err, "reading %s from destination", key)
				}
				if ok && bytes.Equal(got, val) {
					return nil
				}
				if err := dtx.Put(ctx, key, val); err != nil {
					return errors.Wrapf(err, "writing %s", key)
				}
				written++
				return nil
			})
		})
	})
	return written, deleted, err
}

package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/bobg/dag"
)

// ConcurrentReads checks that read transactions on kv
// can run alongside one another and alongside a writer,
// each seeing a consistent state.
func ConcurrentReads(ctx context.Context, t *testing.T, kv dag.KV) {
	const n = 16

	err := kv.Update(ctx, func(tx dag.WriteTx) error {
		for i := 0; i < n; i++ {
			if err := tx.Put(ctx, fmt.Sprintf("r/%02d", i), []byte("0")); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	g, gctx := errgroup.WithContext(ctx)

	// The writer changes every key in one transaction,
	// so a reader must see all old values or all new ones.
	g.Go(func() error {
		for round := 1; round <= 5; round++ {
			val := []byte(fmt.Sprintf("%d", round))
			err := kv.Update(gctx, func(tx dag.WriteTx) error {
				for i := 0; i < n; i++ {
					if err := tx.Put(gctx, fmt.Sprintf("r/%02d", i), val); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	for i := 0; i < 8; i++ {
		g.Go(func() error {
			for j := 0; j < 5; j++ {
				err := kv.View(gctx, func(tx dag.ReadTx) error {
					var (
						first string
						count int
					)
					err := tx.Scan(gctx, "r/", func(key string, val []byte) error {
						if count == 0 {
							first = string(val)
						} else if string(val) != first {
							return errors.Errorf("inconsistent read: %s is %q, want %q", key, val, first)
						}
						count++
						return nil
					})
					if err != nil {
						return err
					}
					if count != n {
						return errors.Errorf("scan saw %d keys, want %d", count, n)
					}
					return nil
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	err = kv.Update(ctx, func(tx dag.WriteTx) error {
		for i := 0; i < n; i++ {
			if err := tx.Delete(ctx, fmt.Sprintf("r/%02d", i)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

// Snapshot checks that a read transaction on kv
// sees the state as of its first read
// even when a writer commits partway through it.
// The writer runs inside the read transaction,
// so kv must not block writers while a reader is open.
func Snapshot(ctx context.Context, t *testing.T, kv dag.KV) {
	put := func(val string) error {
		return kv.Update(ctx, func(tx dag.WriteTx) error {
			for _, key := range []string{"s/1", "s/2"} {
				if err := tx.Put(ctx, key, []byte(val)); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err := put("old"); err != nil {
		t.Fatal(err)
	}

	err := kv.View(ctx, func(tx dag.ReadTx) error {
		got, _, err := tx.Get(ctx, "s/1")
		if err != nil {
			return err
		}
		if string(got) != "old" {
			return errors.Errorf("got %q for s/1, want \"old\"", got)
		}

		if err := put("new"); err != nil {
			return errors.Wrap(err, "writing during read transaction")
		}

		got, _, err = tx.Get(ctx, "s/2")
		if err != nil {
			return err
		}
		if string(got) != "old" {
			return errors.Errorf("got %q for s/2 after a concurrent commit, want \"old\"", got)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	err = kv.View(ctx, func(tx dag.ReadTx) error {
		got, _, err := tx.Get(ctx, "s/2")
		if err != nil {
			return err
		}
		if string(got) != "new" {
			return errors.Errorf("got %q for s/2 in a later transaction, want \"new\"", got)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	err = kv.Update(ctx, func(tx dag.WriteTx) error {
		for _, key := range []string{"s/1", "s/2"} {
			if err := tx.Delete(ctx, key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

// All runs every conformance test in this package on kv.
func All(ctx context.Context, t *testing.T, kv dag.KV) {
	KV(ctx, t, kv)
	t.Run("concurrent", func(t *testing.T) { ConcurrentReads(ctx, t, kv) })
	t.Run("scenario", func(t *testing.T) { Scenario(ctx, t, kv) })
	t.Run("shared", func(t *testing.T) { Shared(ctx, t, kv) })
}

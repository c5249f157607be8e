// Package testutil holds conformance tests for dag.KV implementations.
// Each backend's package tests call them on a fresh, empty KV.
package testutil

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/bobg/dag"
)

// KV checks the basic transaction semantics of a dag.KV:
// reads and writes,
// ordered prefix scans,
// visibility of a transaction's own writes,
// and rollback when the transaction function fails.
func KV(ctx context.Context, t *testing.T, kv dag.KV) {
	t.Run("readwrite", func(t *testing.T) { readWrite(ctx, t, kv) })
	t.Run("ownwrites", func(t *testing.T) { ownWrites(ctx, t, kv) })
	t.Run("rollback", func(t *testing.T) { rollback(ctx, t, kv) })
}

var testPairs = map[string]string{
	"c/abc/d": "data",
	"c/abc/m": "meta",
	"c/abd/r": "count",
	"h/main":  "head",
	"h/":      "empty head",
	"b":       "before",
	"d":       "after",
}

func readWrite(ctx context.Context, t *testing.T, kv dag.KV) {
	err := kv.Update(ctx, func(tx dag.WriteTx) error {
		for k, v := range testPairs {
			if err := tx.Put(ctx, k, []byte(v)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	err = kv.View(ctx, func(tx dag.ReadTx) error {
		for k, want := range testPairs {
			got, ok, err := tx.Get(ctx, k)
			if err != nil {
				return err
			}
			if !ok {
				return errors.Errorf("key %s not found", k)
			}
			if string(got) != want {
				return errors.Errorf("got %q for %s, want %q", got, k, want)
			}
		}
		_, ok, err := tx.Get(ctx, "c/abc/r")
		if err != nil {
			return err
		}
		if ok {
			return errors.New("found absent key c/abc/r")
		}

		cases := []struct {
			prefix string
			want   []string
		}{
			{prefix: "c/", want: []string{"c/abc/d", "c/abc/m", "c/abd/r"}},
			{prefix: "c/abc/", want: []string{"c/abc/d", "c/abc/m"}},
			{prefix: "h/", want: []string{"h/", "h/main"}},
			{prefix: "x", want: nil},
			{prefix: "", want: []string{"b", "c/abc/d", "c/abc/m", "c/abd/r", "d", "h/", "h/main"}},
		}
		for _, c := range cases {
			var got []string
			err := tx.Scan(ctx, c.prefix, func(key string, val []byte) error {
				if string(val) != testPairs[key] {
					return errors.Errorf("scan got %q for %s, want %q", val, key, testPairs[key])
				}
				got = append(got, key)
				return nil
			})
			if err != nil {
				return err
			}
			if diff := cmp.Diff(c.want, got); diff != "" {
				return errors.Errorf("scanning prefix %q, mismatch (-want +got):\n%s", c.prefix, diff)
			}
		}

		stop := errors.New("stop")
		var n int
		err = tx.Scan(ctx, "", func(string, []byte) error {
			n++
			if n == 2 {
				return stop
			}
			return nil
		})
		if !errors.Is(err, stop) {
			return errors.Errorf("got error %v from interrupted scan, want %v", err, stop)
		}
		if n != 2 {
			return errors.Errorf("interrupted scan visited %d keys, want 2", n)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	err = kv.Update(ctx, func(tx dag.WriteTx) error {
		for k := range testPairs {
			if err := tx.Delete(ctx, k); err != nil {
				return err
			}
		}
		return tx.Delete(ctx, "never-written")
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := dump(ctx, t, kv); len(got) != 0 {
		t.Errorf("after deleting everything, store has %v", got)
	}
}

func ownWrites(ctx context.Context, t *testing.T, kv dag.KV) {
	err := kv.Update(ctx, func(tx dag.WriteTx) error {
		return tx.Put(ctx, "k1", []byte("old"))
	})
	if err != nil {
		t.Fatal(err)
	}

	err = kv.Update(ctx, func(tx dag.WriteTx) error {
		if err := tx.Put(ctx, "k1", []byte("new")); err != nil {
			return err
		}
		if err := tx.Put(ctx, "k2", []byte("two")); err != nil {
			return err
		}
		got, ok, err := tx.Get(ctx, "k1")
		if err != nil {
			return err
		}
		if !ok || string(got) != "new" {
			return errors.Errorf("got %q, %v for k1 in writing transaction, want \"new\", true", got, ok)
		}

		if err := tx.Delete(ctx, "k2"); err != nil {
			return err
		}
		_, ok, err = tx.Get(ctx, "k2")
		if err != nil {
			return err
		}
		if ok {
			return errors.New("deleted key k2 still visible in writing transaction")
		}
		return tx.Put(ctx, "k3", []byte("three"))
	})
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]string{"k1": "new", "k3": "three"}
	if diff := cmp.Diff(want, dump(ctx, t, kv)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	err = kv.Update(ctx, func(tx dag.WriteTx) error {
		if err := tx.Delete(ctx, "k1"); err != nil {
			return err
		}
		return tx.Delete(ctx, "k3")
	})
	if err != nil {
		t.Fatal(err)
	}
}

func rollback(ctx context.Context, t *testing.T, kv dag.KV) {
	err := kv.Update(ctx, func(tx dag.WriteTx) error {
		return tx.Put(ctx, "keep", []byte("kept"))
	})
	if err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err = kv.Update(ctx, func(tx dag.WriteTx) error {
		if err := tx.Put(ctx, "discard", []byte("discarded")); err != nil {
			return err
		}
		if err := tx.Delete(ctx, "keep"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got error %v, want %v", err, boom)
	}

	want := map[string]string{"keep": "kept"}
	if diff := cmp.Diff(want, dump(ctx, t, kv)); diff != "" {
		t.Errorf("mismatch after rollback (-want +got):\n%s", diff)
	}

	err = kv.Update(ctx, func(tx dag.WriteTx) error {
		return tx.Delete(ctx, "keep")
	})
	if err != nil {
		t.Fatal(err)
	}
}

func dump(ctx context.Context, t *testing.T, kv dag.KV) map[string]string {
	m := make(map[string]string)
	err := kv.View(ctx, func(tx dag.ReadTx) error {
		return tx.Scan(ctx, "", func(key string, val []byte) error {
			m[key] = string(val)
			return nil
		})
	})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

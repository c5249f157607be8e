package store_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bobg/dag"
	. "github.com/bobg/dag/store"
	"github.com/bobg/dag/store/mem"
)

func TestSync(t *testing.T) {
	ctx := context.Background()

	src, dst := mem.New(), mem.New()

	err := src.Update(ctx, func(tx dag.WriteTx) error {
		for _, k := range []string{"a", "b", "c"} {
			if err := tx.Put(ctx, k, []byte(k+k)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	err = dst.Update(ctx, func(tx dag.WriteTx) error {
		if err := tx.Put(ctx, "a", []byte("aa")); err != nil {
			return err
		}
		if err := tx.Put(ctx, "b", []byte("stale")); err != nil {
			return err
		}
		return tx.Put(ctx, "z", []byte("zz"))
	})
	if err != nil {
		t.Fatal(err)
	}

	written, deleted, err := Sync(ctx, dst, src)
	if err != nil {
		t.Fatal(err)
	}
	if written != 2 {
		t.Errorf("got %d written, want 2", written)
	}
	if deleted != 1 {
		t.Errorf("got %d deleted, want 1", deleted)
	}

	want := dump(ctx, t, src)
	got := dump(ctx, t, dst)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	kv, err := Create(ctx, "mem", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := kv.(*mem.KV); !ok {
		t.Errorf("got %T, want *mem.KV", kv)
	}

	if _, err = Create(ctx, "nonesuch", nil); err == nil {
		t.Error("got no error for unknown backend")
	}

	_, err = CreateNested(ctx, map[string]interface{}{"nested": map[string]interface{}{}}, "nested")
	if err == nil {
		t.Error("got no error for nested config without type")
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

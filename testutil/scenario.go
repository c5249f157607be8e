package testutil

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/bobg/dag"
)

// Scenario runs a dag.Store on kv through the life of a small graph:
// chunk A, chunk B referring to A,
// head "main" set to B, then moved to A, then removed.
// It checks reference counts and deletions along the way,
// and that no chunk keys remain at the end.
func Scenario(ctx context.Context, t *testing.T, kv dag.KV) {
	s, err := dag.New(kv)
	if err != nil {
		t.Fatal(err)
	}

	var (
		a = dag.NewChunk(dag.String("A"), nil, dag.Blake3)
		b = dag.NewChunk(dag.String("B"), []dag.Hash{a.Hash}, dag.Blake3)
	)

	err = s.Update(ctx, func(w *dag.Write) error {
		if err := w.PutChunk(ctx, a); err != nil {
			return err
		}
		if err := w.PutChunk(ctx, b); err != nil {
			return err
		}
		return w.SetHead(ctx, "main", b.Hash, dag.Zero)
	})
	if err != nil {
		t.Fatal(err)
	}
	wantCounts(ctx, t, s, map[dag.Hash]int{a.Hash: 1, b.Hash: 1})

	err = s.View(ctx, func(r *dag.Read) error {
		got, err := r.GetChunk(ctx, b.Hash)
		if err != nil {
			return err
		}
		if !got.Equal(b) {
			t.Errorf("got chunk %+v, want %+v", got, b)
		}
		h, err := r.GetHead(ctx, "main")
		if err != nil {
			return err
		}
		if h != b.Hash {
			t.Errorf("got head %s, want %s", h, b.Hash)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	err = s.Update(ctx, func(w *dag.Write) error {
		return w.SetHead(ctx, "main", a.Hash, b.Hash)
	})
	if err != nil {
		t.Fatal(err)
	}
	wantCounts(ctx, t, s, map[dag.Hash]int{a.Hash: 1})
	err = s.View(ctx, func(r *dag.Read) error {
		_, err := r.GetChunk(ctx, b.Hash)
		if !errors.Is(err, dag.ErrNotFound) {
			t.Errorf("got error %v for collected chunk, want ErrNotFound", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	err = s.Update(ctx, func(w *dag.Write) error {
		return w.RemoveHead(ctx, "main", a.Hash)
	})
	if err != nil {
		t.Fatal(err)
	}
	wantCounts(ctx, t, s, map[dag.Hash]int{})

	err = kv.View(ctx, func(tx dag.ReadTx) error {
		return tx.Scan(ctx, "", func(key string, _ []byte) error {
			t.Errorf("key %s remains", key)
			return nil
		})
	})
	if err != nil {
		t.Fatal(err)
	}
}

// Shared checks that a chunk reachable from two roots
// survives the removal of one
// and is collected with the other.
func Shared(ctx context.Context, t *testing.T, kv dag.KV) {
	s, err := dag.New(kv)
	if err != nil {
		t.Fatal(err)
	}

	var (
		leaf  = dag.NewChunk(dag.Number(1), nil, dag.SHA256)
		left  = dag.NewChunk(dag.String("left"), []dag.Hash{leaf.Hash}, dag.SHA256)
		right = dag.NewChunk(dag.String("right"), []dag.Hash{leaf.Hash}, dag.SHA256)
	)

	err = s.Update(ctx, func(w *dag.Write) error {
		for _, c := range []dag.Chunk{leaf, left, right} {
			if err := w.PutChunk(ctx, c); err != nil {
				return err
			}
		}
		if err := w.SetHead(ctx, "left", left.Hash, dag.Zero); err != nil {
			return err
		}
		return w.SetHead(ctx, "right", right.Hash, dag.Zero)
	})
	if err != nil {
		t.Fatal(err)
	}
	wantCounts(ctx, t, s, map[dag.Hash]int{leaf.Hash: 2, left.Hash: 1, right.Hash: 1})

	err = s.Update(ctx, func(w *dag.Write) error {
		return w.RemoveHead(ctx, "left", left.Hash)
	})
	if err != nil {
		t.Fatal(err)
	}
	wantCounts(ctx, t, s, map[dag.Hash]int{leaf.Hash: 1, right.Hash: 1})

	err = s.Update(ctx, func(w *dag.Write) error {
		return w.RemoveHead(ctx, "right", right.Hash)
	})
	if err != nil {
		t.Fatal(err)
	}
	wantCounts(ctx, t, s, map[dag.Hash]int{})
}

// wantCounts checks that the counted chunks in s are exactly those in want,
// and that each has its data.
func wantCounts(ctx context.Context, t *testing.T, s *dag.Store, want map[dag.Hash]int) {
	t.Helper()

	err := s.View(ctx, func(r *dag.Read) error {
		got := make(map[dag.Hash]int)
		err := r.ListRefCounts(ctx, func(h dag.Hash, n int) error {
			got[h] = n
			return nil
		})
		if err != nil {
			return err
		}
		for h, n := range want {
			if got[h] != n {
				t.Errorf("got count %d for %s, want %d", got[h], h, n)
			}
			ok, err := r.HasChunk(ctx, h)
			if err != nil {
				return err
			}
			if !ok {
				t.Errorf("counted chunk %s has no data", h)
			}
		}
		for h, n := range got {
			if _, ok := want[h]; !ok {
				t.Errorf("unexpected count %d for %s", n, h)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

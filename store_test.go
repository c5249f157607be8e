package dag_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/bobg/dag"
	"github.com/bobg/dag/store/mem"
	"github.com/bobg/dag/testutil"
)

func newStore(t *testing.T, opts ...dag.Option) (*dag.Store, *mem.KV) {
	kv := mem.New()
	s, err := dag.New(kv, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return s, kv
}

func put(ctx context.Context, t *testing.T, s *dag.Store, chunks ...dag.Chunk) {
	err := s.Update(ctx, func(w *dag.Write) error {
		for _, c := range chunks {
			if err := w.PutChunk(ctx, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func setHead(ctx context.Context, s *dag.Store, name string, newHash, old dag.Hash) error {
	return s.Update(ctx, func(w *dag.Write) error {
		return w.SetHead(ctx, name, newHash, old)
	})
}

func counts(ctx context.Context, t *testing.T, s *dag.Store) map[dag.Hash]int {
	m := make(map[dag.Hash]int)
	err := s.View(ctx, func(r *dag.Read) error {
		return r.ListRefCounts(ctx, func(h dag.Hash, n int) error {
			m[h] = n
			return nil
		})
	})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestScenario(t *testing.T) {
	ctx := context.Background()
	testutil.Scenario(ctx, t, mem.New())
	testutil.Shared(ctx, t, mem.New())
}

func TestConflict(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	var (
		a = dag.NewChunk(dag.String("a"), nil, dag.Blake3)
		b = dag.NewChunk(dag.String("b"), nil, dag.Blake3)
	)
	put(ctx, t, s, a, b)
	if err := setHead(ctx, s, "main", a.Hash, dag.Zero); err != nil {
		t.Fatal(err)
	}

	// Absent vs. absent is also a compare-and-set.
	err := setHead(ctx, s, "main", b.Hash, dag.Zero)
	if !errors.Is(err, dag.ErrConflict) {
		t.Fatalf("got error %v, want ErrConflict", err)
	}
	if !dag.IsRetryable(err) {
		t.Error("conflict not retryable")
	}
	var cerr *dag.ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("got %T, want *ConflictError", err)
	}
	want := dag.ConflictError{Head: "main", Expected: dag.Zero, Actual: a.Hash}
	if diff := cmp.Diff(want, *cerr); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(map[dag.Hash]int{a.Hash: 1}, counts(ctx, t, s)); diff != "" {
		t.Errorf("counts changed by failed SetHead (-want +got):\n%s", diff)
	}

	// Retry with the freshly read head.
	err = s.Update(ctx, func(w *dag.Write) error {
		cur, err := w.GetHead(ctx, "main")
		if err != nil {
			return err
		}
		return w.SetHead(ctx, "main", b.Hash, cur)
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[dag.Hash]int{b.Hash: 1}, counts(ctx, t, s)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	err = setHead(ctx, s, "missing", dag.Zero, b.Hash)
	if !errors.Is(err, dag.ErrConflict) {
		t.Errorf("got error %v removing absent head, want ErrConflict", err)
	}
}

func TestDanglingRef(t *testing.T) {
	ctx := context.Background()
	s, kv := newStore(t)

	var (
		missing = dag.Blake3([]byte("never put"))
		b       = dag.NewChunk(dag.String("b"), []dag.Hash{missing}, dag.Blake3)
	)

	err := setHead(ctx, s, "main", missing, dag.Zero)
	if !errors.Is(err, dag.ErrDanglingRef) {
		t.Errorf("got error %v, want ErrDanglingRef", err)
	}
	if dag.IsRetryable(err) {
		t.Error("dangling ref is retryable")
	}

	err = s.Update(ctx, func(w *dag.Write) error {
		if err := w.PutChunk(ctx, b); err != nil {
			return err
		}
		return w.SetHead(ctx, "main", b.Hash, dag.Zero)
	})
	if !errors.Is(err, dag.ErrDanglingRef) {
		t.Errorf("got error %v, want ErrDanglingRef", err)
	}
	if n := kv.Len(); n != 0 {
		t.Errorf("aborted transaction left %d keys", n)
	}
}

func TestDecrefAbsent(t *testing.T) {
	ctx := context.Background()
	s, kv := newStore(t)

	a := dag.NewChunk(dag.String("a"), nil, dag.Blake3)
	put(ctx, t, s, a)

	// A head written behind the store's back has no count to release.
	b, err := dag.Encode(dag.String(a.Hash))
	if err != nil {
		t.Fatal(err)
	}
	err = kv.Update(ctx, func(tx dag.WriteTx) error {
		return tx.Put(ctx, dag.HeadKey("main"), b)
	})
	if err != nil {
		t.Fatal(err)
	}

	err = setHead(ctx, s, "main", dag.Zero, a.Hash)
	if !errors.Is(err, dag.ErrDecrefAbsent) {
		t.Errorf("got error %v, want ErrDecrefAbsent", err)
	}
}

func TestInconsistent(t *testing.T) {
	ctx := context.Background()
	s, kv := newStore(t)

	a := dag.NewChunk(dag.String("a"), nil, dag.Blake3)
	put(ctx, t, s, a)

	err := kv.Update(ctx, func(tx dag.WriteTx) error {
		return tx.Delete(ctx, dag.ChunkMetaKey(a.Hash))
	})
	if err != nil {
		t.Fatal(err)
	}

	err = s.View(ctx, func(r *dag.Read) error {
		_, err := r.GetChunk(ctx, a.Hash)
		return err
	})
	if !errors.Is(err, dag.ErrInconsistent) {
		t.Errorf("got error %v from GetChunk, want ErrInconsistent", err)
	}

	err = setHead(ctx, s, "main", a.Hash, dag.Zero)
	if !errors.Is(err, dag.ErrInconsistent) {
		t.Errorf("got error %v from SetHead, want ErrInconsistent", err)
	}
}

func TestAbortRollsBack(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	var (
		a = dag.NewChunk(dag.String("a"), nil, dag.Blake3)
		b = dag.NewChunk(dag.String("b"), []dag.Hash{a.Hash}, dag.Blake3)
	)
	put(ctx, t, s, a, b)
	if err := setHead(ctx, s, "main", b.Hash, dag.Zero); err != nil {
		t.Fatal(err)
	}
	before := counts(ctx, t, s)

	boom := errors.New("boom")
	err := s.Update(ctx, func(w *dag.Write) error {
		if err := w.SetHead(ctx, "main", a.Hash, b.Hash); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got error %v, want %v", err, boom)
	}

	if diff := cmp.Diff(before, counts(ctx, t, s)); diff != "" {
		t.Errorf("aborted retarget changed counts (-want +got):\n%s", diff)
	}
	err = s.View(ctx, func(r *dag.Read) error {
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
}

func TestSetHeadSame(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	a := dag.NewChunk(dag.String("a"), nil, dag.Blake3)
	put(ctx, t, s, a)
	if err := setHead(ctx, s, "main", a.Hash, dag.Zero); err != nil {
		t.Fatal(err)
	}
	if err := setHead(ctx, s, "main", a.Hash, a.Hash); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[dag.Hash]int{a.Hash: 1}, counts(ctx, t, s)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	// Two heads on one root count twice.
	if err := setHead(ctx, s, "other", a.Hash, dag.Zero); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[dag.Hash]int{a.Hash: 2}, counts(ctx, t, s)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestInvalidHash(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	err := setHead(ctx, s, "main", "NOT/A/HASH", dag.Zero)
	var herr *dag.HashError
	if !errors.As(err, &herr) {
		t.Errorf("got error %v, want *HashError", err)
	}

	err = s.Update(ctx, func(w *dag.Write) error {
		return w.PutChunk(ctx, dag.Chunk{Hash: "", Data: dag.Null{}})
	})
	if !errors.As(err, &herr) {
		t.Errorf("got error %v, want *HashError", err)
	}
}

func TestPutLiveChunk(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	var (
		a = dag.NewChunk(dag.String("a"), nil, dag.Blake3)
		b = dag.NewChunk(dag.String("b"), []dag.Hash{a.Hash}, dag.Blake3)
	)
	put(ctx, t, s, a, b)
	if err := setHead(ctx, s, "main", b.Hash, dag.Zero); err != nil {
		t.Fatal(err)
	}

	// Same chunk again: no-op.
	put(ctx, t, s, b)
	if diff := cmp.Diff(map[dag.Hash]int{a.Hash: 1, b.Hash: 1}, counts(ctx, t, s)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	bad := dag.Chunk{Hash: b.Hash, Data: b.Data}
	err := s.Update(ctx, func(w *dag.Write) error {
		return w.PutChunk(ctx, bad)
	})
	if !errors.Is(err, dag.ErrInconsistent) {
		t.Errorf("got error %v, want ErrInconsistent", err)
	}
}

func TestLargeChunks(t *testing.T) {
	ctx := context.Background()
	s, kv := newStore(t)

	var deep dag.Value = dag.String("leaf")
	for i := 0; i < 40; i++ {
		deep = dag.Array{deep}
	}
	long := make(dag.Array, 200000)
	for i := range long {
		long[i] = dag.Number(i)
	}

	var (
		a     = dag.NewChunk(deep, nil, dag.Blake3)
		b     = dag.NewChunk(long, []dag.Hash{a.Hash}, dag.Blake3)
		many  = make([]dag.Hash, 140000)
		wide dag.Chunk
	)
	for i := range many {
		many[i] = a.Hash
	}
	wide = dag.NewChunk(dag.String("many refs"), many, dag.Blake3)

	put(ctx, t, s, a, b, wide)
	if err := setHead(ctx, s, "deep", b.Hash, dag.Zero); err != nil {
		t.Fatal(err)
	}
	if err := setHead(ctx, s, "wide", wide.Hash, dag.Zero); err != nil {
		t.Fatal(err)
	}

	// A fresh Store has nothing cached.
	s2, err := dag.New(kv)
	if err != nil {
		t.Fatal(err)
	}
	err = s2.View(ctx, func(r *dag.Read) error {
		for _, want := range []dag.Chunk{a, b, wide} {
			got, err := r.GetChunk(ctx, want.Hash)
			if err != nil {
				return err
			}
			if !got.Equal(want) {
				t.Errorf("chunk %s changed in round trip", want.Hash)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(map[dag.Hash]int{a.Hash: 140001, b.Hash: 1, wide.Hash: 1}, counts(ctx, t, s)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestTooDeep(t *testing.T) {
	ctx := context.Background()
	s, kv := newStore(t)

	var v dag.Value = dag.Null{}
	for i := 0; i <= dag.MaxNestedLevels; i++ {
		v = dag.Array{v}
	}
	c := dag.NewChunk(v, nil, dag.Blake3)
	err := s.Update(ctx, func(w *dag.Write) error {
		return w.PutChunk(ctx, c)
	})
	if err == nil {
		t.Fatal("got no error putting a chunk nested too deep")
	}
	if n := kv.Len(); n != 0 {
		t.Errorf("store has %d keys after rejected put, want 0", n)
	}
}

func TestSweepUncounted(t *testing.T) {
	ctx := context.Background()
	s, kv := newStore(t)

	var (
		a     = dag.NewChunk(dag.String("a"), nil, dag.Blake3)
		stray = dag.NewChunk(dag.String("stray"), []dag.Hash{a.Hash}, dag.Blake3)
		lone  = dag.NewChunk(dag.String("lone"), nil, dag.Blake3)
	)
	put(ctx, t, s, a, stray, lone)
	if err := setHead(ctx, s, "main", a.Hash, dag.Zero); err != nil {
		t.Fatal(err)
	}

	var n int
	err := s.Update(ctx, func(w *dag.Write) error {
		var err error
		n, err = w.SweepUncounted(ctx)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("swept %d chunks, want 2", n)
	}

	var got []dag.Hash
	err = s.View(ctx, func(r *dag.Read) error {
		return r.ListChunks(ctx, func(h dag.Hash) error {
			got = append(got, h)
			return nil
		})
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]dag.Hash{a.Hash}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if kv.Len() != 4 { // a's data, meta, and count, plus the head
		t.Errorf("got %d keys, want 4", kv.Len())
	}
}

func TestListHeads(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	a := dag.NewChunk(dag.String("a"), nil, dag.Blake3)
	put(ctx, t, s, a)
	for _, name := range []string{"zz", "", "main", "feature/x"} {
		if err := setHead(ctx, s, name, a.Hash, dag.Zero); err != nil {
			t.Fatal(err)
		}
	}

	type pair struct {
		Name string
		Hash dag.Hash
	}
	var got []pair
	err := s.View(ctx, func(r *dag.Read) error {
		return r.ListHeads(ctx, func(name string, h dag.Hash) error {
			got = append(got, pair{Name: name, Hash: h})
			return nil
		})
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []pair{{"", a.Hash}, {"feature/x", a.Hash}, {"main", a.Hash}, {"zz", a.Hash}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	err = s.View(ctx, func(r *dag.Read) error {
		h, err := r.GetHead(ctx, "absent")
		if err != nil {
			return err
		}
		if !h.IsZero() {
			t.Errorf("got %s for absent head, want Zero", h)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestDeepChain(t *testing.T) {
	const depth = 20000

	ctx := context.Background()
	s, kv := newStore(t, dag.WithLogger(logrus.New()))

	fake := dag.NewFakeHasher()
	err := s.Update(ctx, func(w *dag.Write) error {
		var prev []dag.Hash
		for i := 0; i < depth; i++ {
			c := dag.NewChunk(dag.Number(i), prev, fake)
			if err := w.PutChunk(ctx, c); err != nil {
				return err
			}
			prev = []dag.Hash{c.Hash}
		}
		return w.SetHead(ctx, "main", prev[0], dag.Zero)
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := len(counts(ctx, t, s)); got != depth {
		t.Errorf("got %d counted chunks, want %d", got, depth)
	}

	err = s.Update(ctx, func(w *dag.Write) error {
		cur, err := w.GetHead(ctx, "main")
		if err != nil {
			return err
		}
		return w.RemoveHead(ctx, "main", cur)
	})
	if err != nil {
		t.Fatal(err)
	}
	if n := kv.Len(); n != 0 {
		t.Errorf("%d keys remain", n)
	}
}

func TestCache(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t, dag.WithCacheSize(8))

	a := dag.NewChunk(dag.Map{"k": dag.Array{dag.Number(1)}}, nil, dag.Blake3)
	put(ctx, t, s, a)
	if err := setHead(ctx, s, "main", a.Hash, dag.Zero); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		err := s.View(ctx, func(r *dag.Read) error {
			got, err := r.GetChunk(ctx, a.Hash)
			if err != nil {
				return err
			}
			if !got.Equal(a) {
				t.Errorf("got %+v, want %+v", got, a)
			}
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	if err := setHead(ctx, s, "main", dag.Zero, a.Hash); err != nil {
		t.Fatal(err)
	}
	err := s.View(ctx, func(r *dag.Read) error {
		_, err := r.GetChunk(ctx, a.Hash)
		return err
	})
	if !errors.Is(err, dag.ErrNotFound) {
		t.Errorf("got error %v for collected chunk, want ErrNotFound", err)
	}
}

func TestLogging(t *testing.T) {
	ctx := context.Background()
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	s, _ := newStore(t, dag.WithLogger(log))

	var (
		a = dag.NewChunk(dag.String("a"), nil, dag.Blake3)
		b = dag.NewChunk(dag.String("b"), nil, dag.Blake3)
	)
	put(ctx, t, s, a, b)
	if err := setHead(ctx, s, "main", a.Hash, dag.Zero); err != nil {
		t.Fatal(err)
	}
	hook.Reset()
	if err := setHead(ctx, s, "main", b.Hash, a.Hash); err != nil {
		t.Fatal(err)
	}

	var collected, moved bool
	for _, e := range hook.AllEntries() {
		switch e.Message {
		case "collected chunk":
			collected = e.Data["hash"] == a.Hash
		case "moved head":
			moved = e.Data["head"] == "main" && e.Data["old"] == a.Hash && e.Data["new"] == b.Hash
		}
	}
	if !collected {
		t.Error("no collected-chunk entry for the old root")
	}
	if !moved {
		t.Error("no moved-head entry")
	}
}

package gc

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/bobg/dag"
)

// Report is the result of Verify.
type Report struct {
	// Reachable is the number of distinct hashes reachable from some head.
	Reachable int

	// Mismatches lists reachable chunks whose stored reference count
	// differs from the number of heads and chunk refs pointing at them.
	Mismatches []Mismatch

	// Unreachable lists chunks that have a reference count
	// but cannot be reached from any head.
	Unreachable []dag.Hash

	// Uncounted lists chunks that are neither counted nor reachable.
	// These are not faults:
	// they are chunks put but never attached to a head,
	// awaiting Run.
	Uncounted []dag.Hash

	// Dangling lists refs (and heads) pointing at chunks that are not in the store.
	Dangling []Dangling
}

// Mismatch is a reference count that disagrees with the graph.
type Mismatch struct {
	Hash     dag.Hash
	Stored   int
	Expected int
}

// Dangling is a pointer to a missing chunk.
// From is the referring chunk,
// or Zero when the pointer is the head named Head.
type Dangling struct {
	From dag.Hash
	Head string
	To   dag.Hash
}

// OK tells whether the report shows no faults.
func (rep *Report) OK() bool {
	return len(rep.Mismatches) == 0 && len(rep.Unreachable) == 0 && len(rep.Dangling) == 0
}

// Verify audits the store in r.
// It recomputes every chunk's expected reference count
// (one for each head pointing at it,
// plus one for each occurrence in the refs of a reachable chunk)
// and compares it with the stored count.
// Everything is read from the single snapshot r.
func Verify(ctx context.Context, r *dag.Read) (*Report, error) {
	var (
		rep      = new(Report)
		k        = NewMemKeep()
		expected = make(map[dag.Hash]int)
		missing  = make(map[dag.Hash]struct{})
		headsAt  = make(map[dag.Hash][]string)
	)

	err := r.ListHeads(ctx, func(name string, h dag.Hash) error {
		headsAt[h] = append(headsAt[h], name)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing heads")
	}

	type edge struct {
		from, to dag.Hash
	}
	var chunkEdges []edge

	onEdge := func(from, to dag.Hash) {
		expected[to]++
		if !from.IsZero() {
			chunkEdges = append(chunkEdges, edge{from: from, to: to})
		}
	}
	onDangling := func(_, to dag.Hash) error {
		missing[to] = struct{}{}
		return nil
	}
	if err := walk(ctx, r, k, onEdge, onDangling); err != nil {
		return nil, err
	}
	for h := range missing {
		for _, name := range headsAt[h] {
			rep.Dangling = append(rep.Dangling, Dangling{Head: name, To: h})
		}
	}
	for _, e := range chunkEdges {
		if _, ok := missing[e.to]; ok {
			rep.Dangling = append(rep.Dangling, Dangling{From: e.from, To: e.to})
		}
	}
	rep.Reachable = k.Len()

	stored := make(map[dag.Hash]int)
	err = r.ListRefCounts(ctx, func(h dag.Hash, n int) error {
		stored[h] = n
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing reference counts")
	}

	for h, want := range expected {
		got := stored[h]
		if _, ok := missing[h]; ok && got == 0 {
			continue
		}
		if got != want {
			rep.Mismatches = append(rep.Mismatches, Mismatch{Hash: h, Stored: got, Expected: want})
		}
	}
	for h := range stored {
		if _, ok := expected[h]; !ok {
			rep.Unreachable = append(rep.Unreachable, h)
		}
	}

	err = r.ListChunks(ctx, func(h dag.Hash) error {
		if _, ok := expected[h]; ok {
			return nil
		}
		if _, ok := stored[h]; ok {
			return nil
		}
		rep.Uncounted = append(rep.Uncounted, h)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing chunks")
	}

	sort.Slice(rep.Mismatches, func(i, j int) bool { return rep.Mismatches[i].Hash < rep.Mismatches[j].Hash })
	sort.Slice(rep.Unreachable, func(i, j int) bool { return rep.Unreachable[i] < rep.Unreachable[j] })
	sort.Slice(rep.Dangling, func(i, j int) bool {
		a, b := rep.Dangling[i], rep.Dangling[j]
		if a.To != b.To {
			return a.To < b.To
		}
		if a.From != b.From {
			return a.From < b.From
		}
		return a.Head < b.Head
	})

	return rep, nil
}

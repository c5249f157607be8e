// Package gc checks and maintains the reachability invariants of a dag.Store.
//
// Ordinary collection needs nothing from this package:
// moving a head with dag.Write.SetHead adjusts reference counts
// and deletes unreachable chunks in the same transaction.
// What remains is
// sweeping chunks that were put but never attached to a head (Run),
// computing the reachable set (Mark),
// and auditing stored reference counts against the graph (Verify).
package gc

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/bobg/dag"
)

// Run deletes the chunks in s that were never reachable from any head.
// It returns the number of chunks deleted.
//
// Run must not race with a writer
// that has committed chunks it has not yet attached to a head.
func Run(ctx context.Context, s *dag.Store, log logrus.FieldLogger) (int, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	var n int
	err := s.Update(ctx, func(w *dag.Write) error {
		var err error
		n, err = w.SweepUncounted(ctx)
		return err
	})
	if err != nil {
		return 0, errors.Wrap(err, "sweeping uncounted chunks")
	}

	log.WithField("count", n).Info("gc done")
	return n, nil
}

// Mark adds to k every hash reachable from a head in r.
// A chunk already in k is not traversed again,
// so k may be shared across calls.
// A reachable hash with no chunk in the store is an error
// (dag.ErrDanglingRef).
func Mark(ctx context.Context, r *dag.Read, k Keep) error {
	return walk(ctx, r, k, nil, func(from, to dag.Hash) error {
		return errors.Wrapf(dag.ErrDanglingRef, "%s refers to missing chunk %s", from, to)
	})
}

// walk traverses the graph from every head in r,
// adding each reachable hash to k.
// It calls onEdge (if non-nil) for every head and every ref of every reachable chunk,
// with a zero "from" hash for heads.
// It calls onDangling for every reachable hash without a chunk
// (whose parent is from, zero for a head).
func walk(ctx context.Context, r *dag.Read, k Keep, onEdge func(from, to dag.Hash), onDangling func(from, to dag.Hash) error) error {
	type item struct {
		from, to dag.Hash
	}
	var stack []item

	err := r.ListHeads(ctx, func(_ string, h dag.Hash) error {
		stack = append(stack, item{to: h})
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "listing heads")
	}

	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if onEdge != nil {
			onEdge(it.from, it.to)
		}

		added, err := k.Add(ctx, it.to)
		if err != nil {
			return errors.Wrapf(err, "adding %s", it.to)
		}
		if !added {
			continue
		}

		c, err := r.GetChunk(ctx, it.to)
		if errors.Is(err, dag.ErrNotFound) {
			if err := onDangling(it.from, it.to); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "getting %s", it.to)
		}
		for i := len(c.Refs) - 1; i >= 0; i-- {
			stack = append(stack, item{from: it.to, to: c.Refs[i]})
		}
	}

	return nil
}

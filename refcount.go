package dag

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Each chunk is either uncounted
// (no reference-count key; eligible for collection)
// or live with a count n >= 1.
// A count is never stored as zero:
// reaching zero deletes the chunk outright.

// RefCount gets the reference count of the chunk with the given hash.
// It is 0 if the chunk is uncounted or absent.
func (r *Read) RefCount(ctx context.Context, h Hash) (int, error) {
	b, ok, err := r.tx.Get(ctx, ChunkRefCountKey(h))
	if err != nil {
		return 0, errors.Wrapf(err, "reading refcount for %s", h)
	}
	if !ok {
		return 0, nil
	}
	return decodeCount(h, b)
}

func decodeCount(h Hash, b []byte) (int, error) {
	var n uint64
	if err := decMode.Unmarshal(b, &n); err != nil {
		return 0, errors.Wrapf(err, "decoding refcount for %s", h)
	}
	if n == 0 {
		return 0, errors.Wrapf(ErrInconsistent, "zero refcount stored for %s", h)
	}
	return int(n), nil
}

// ListRefCounts calls a function for each counted chunk in the store,
// in lexicographic order by hash,
// together with its reference count.
func (r *Read) ListRefCounts(ctx context.Context, f func(Hash, int) error) error {
	return r.scanChunkKeys(ctx, func(pk ParsedKey, val []byte) error {
		if pk.Kind != KindChunkRefCount {
			return nil
		}
		n, err := decodeCount(pk.Hash, val)
		if err != nil {
			return err
		}
		return f(pk.Hash, n)
	})
}

func (w *Write) setRefCount(ctx context.Context, h Hash, n int) error {
	b, err := encMode.Marshal(uint64(n))
	if err != nil {
		return errors.Wrapf(err, "encoding refcount for %s", h)
	}
	return errors.Wrapf(w.tx.Put(ctx, ChunkRefCountKey(h), b), "writing refcount for %s", h)
}

// incref increments the reference count of h.
// If h was uncounted,
// it becomes live with a count of 1,
// and each of its refs is incremented in turn.
// The traversal uses an explicit stack rather than recursion,
// so graph depth is bounded only by memory.
func (w *Write) incref(ctx context.Context, h Hash) error {
	stack := []Hash{h}

	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n, err := w.RefCount(ctx, h)
		if err != nil {
			return err
		}
		if n == 0 {
			ok, err := w.HasChunk(ctx, h)
			if err != nil {
				return err
			}
			if !ok {
				return errors.Wrapf(ErrDanglingRef, "incref %s", h)
			}
			refs, ok, err := w.getRefs(ctx, h)
			if err != nil {
				return err
			}
			if !ok {
				return errors.Wrapf(ErrInconsistent, "chunk %s has data but no meta", h)
			}
			for i := len(refs) - 1; i >= 0; i-- {
				stack = append(stack, refs[i])
			}
		}
		if err := w.setRefCount(ctx, h, n+1); err != nil {
			return err
		}
	}

	return nil
}

// decref decrements the reference count of h.
// If the count reaches zero,
// the chunk is deleted
// and each of its refs is decremented in turn.
// Decrementing an uncounted chunk is an error
// (ErrDecrefAbsent).
func (w *Write) decref(ctx context.Context, h Hash) error {
	stack := []Hash{h}

	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n, err := w.RefCount(ctx, h)
		if err != nil {
			return err
		}
		switch {
		case n == 0:
			return errors.Wrapf(ErrDecrefAbsent, "decref %s", h)

		case n > 1:
			if err := w.setRefCount(ctx, h, n-1); err != nil {
				return err
			}

		default:
			refs, ok, err := w.getRefs(ctx, h)
			if err != nil {
				return err
			}
			if !ok {
				return errors.Wrapf(ErrInconsistent, "counted chunk %s has no meta", h)
			}
			if err := w.deleteChunk(ctx, h); err != nil {
				return err
			}
			w.s.log.WithFields(logrus.Fields{"hash": h, "refs": len(refs)}).Debug("collected chunk")
			for i := len(refs) - 1; i >= 0; i-- {
				stack = append(stack, refs[i])
			}
		}
	}

	return nil
}

func (w *Write) deleteChunk(ctx context.Context, h Hash) error {
	for _, key := range []string{ChunkDataKey(h), ChunkMetaKey(h), ChunkRefCountKey(h)} {
		if err := w.tx.Delete(ctx, key); err != nil {
			return errors.Wrapf(err, "deleting %s", key)
		}
	}
	return nil
}

// SweepUncounted deletes every chunk in the store that has no reference count:
// chunks that were put but never became reachable from a head.
// It returns the number of chunks deleted.
//
// Do not call this in a transaction that has put chunks
// it has not yet attached to a head,
// or it will delete them.
func (w *Write) SweepUncounted(ctx context.Context) (int, error) {
	var (
		uncounted []Hash
		last      Hash
		counted   bool
		seen      bool
	)

	// Keys for a chunk are adjacent in scan order (c/<hash>/d, c/<hash>/m, c/<hash>/r).
	flush := func() {
		if seen && !counted {
			uncounted = append(uncounted, last)
		}
	}
	err := w.scanChunkKeys(ctx, func(pk ParsedKey, _ []byte) error {
		if pk.Hash != last || !seen {
			flush()
			last, counted, seen = pk.Hash, false, true
		}
		if pk.Kind == KindChunkRefCount {
			counted = true
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "scanning chunks")
	}
	flush()

	for _, h := range uncounted {
		if err := w.deleteChunk(ctx, h); err != nil {
			return 0, err
		}
		w.s.log.WithField("hash", h).Debug("swept uncounted chunk")
	}
	return len(uncounted), nil
}

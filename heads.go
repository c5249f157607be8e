package dag

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// GetHead gets the hash that the named head points to.
// It returns Zero if there is no such head.
func (r *Read) GetHead(ctx context.Context, name string) (Hash, error) {
	b, ok, err := r.tx.Get(ctx, HeadKey(name))
	if err != nil {
		return Zero, errors.Wrapf(err, "reading head %s", name)
	}
	if !ok {
		return Zero, nil
	}
	var s string
	if err := decMode.Unmarshal(b, &s); err != nil {
		return Zero, errors.Wrapf(err, "decoding head %s", name)
	}
	return Hash(s), nil
}

// ListHeads calls a function for each head in the store,
// in lexicographic order by name.
func (r *Read) ListHeads(ctx context.Context, f func(name string, h Hash) error) error {
	return r.tx.Scan(ctx, headPrefix, func(key string, val []byte) error {
		pk, err := ParseKey(key)
		if err != nil {
			return err
		}
		var s string
		if err := decMode.Unmarshal(val, &s); err != nil {
			return errors.Wrapf(err, "decoding head %s", pk.Name)
		}
		return f(pk.Name, Hash(s))
	})
}

// SetHead points the named head at newHash,
// provided it currently points at expectedOld.
// Zero for either hash means "no head":
// SetHead(ctx, name, h, Zero) creates a head,
// and SetHead(ctx, name, Zero, old) removes one.
//
// If the head is not at expectedOld,
// the result is a *ConflictError
// (which satisfies errors.Is(err, ErrConflict)).
// The caller should reread the head and try again.
//
// Otherwise newHash's reference count is incremented
// (making it and everything it refers to reachable,
// if it was not already),
// and then expectedOld's is decremented,
// collecting any chunks that are no longer reachable.
// The new root must already be in the store,
// or have been put in this transaction;
// if it is not,
// the error is ErrDanglingRef.
func (w *Write) SetHead(ctx context.Context, name string, newHash, expectedOld Hash) error {
	if !newHash.IsZero() && !newHash.Valid() {
		return &HashError{Key: HeadKey(name), Hash: string(newHash)}
	}

	current, err := w.GetHead(ctx, name)
	if err != nil {
		return err
	}
	if current != expectedOld {
		return &ConflictError{Head: name, Expected: expectedOld, Actual: current}
	}
	if newHash == current {
		return nil
	}

	key := HeadKey(name)
	if newHash.IsZero() {
		err = w.tx.Delete(ctx, key)
	} else {
		var b []byte
		b, err = encMode.Marshal(string(newHash))
		if err != nil {
			return errors.Wrapf(err, "encoding head %s", name)
		}
		err = w.tx.Put(ctx, key, b)
	}
	if err != nil {
		return errors.Wrapf(err, "writing head %s", name)
	}

	// Increment before decrementing,
	// so that chunks shared by the old and new roots
	// never transiently reach zero.
	if !newHash.IsZero() {
		if err := w.incref(ctx, newHash); err != nil {
			return errors.Wrapf(err, "moving head %s to %s", name, newHash)
		}
	}
	if !current.IsZero() {
		if err := w.decref(ctx, current); err != nil {
			return errors.Wrapf(err, "moving head %s from %s", name, current)
		}
	}

	w.s.log.WithFields(logrus.Fields{"head": name, "old": current, "new": newHash}).Debug("moved head")

	return nil
}

// RemoveHead removes the named head,
// provided it currently points at expectedOld.
// It is the same as SetHead(ctx, name, Zero, expectedOld).
func (w *Write) RemoveHead(ctx context.Context, name string, expectedOld Hash) error {
	return w.SetHead(ctx, name, Zero, expectedOld)
}

package dag

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is the error returned
	// when trying to get a chunk that is not in the store.
	ErrNotFound = errors.New("not found")

	// ErrConflict is the error for a concurrency conflict:
	// a head was not at its expected value during SetHead,
	// or the underlying key-value store refused to commit a transaction
	// because of a concurrent one.
	// The caller should reread and retry.
	ErrConflict = errors.New("conflict")

	// ErrDanglingRef means a chunk was about to become reachable
	// but there is no data for it.
	ErrDanglingRef = errors.New("dangling ref")

	// ErrDecrefAbsent means a reference count was to be decremented
	// for a chunk that has none.
	ErrDecrefAbsent = errors.New("decref of uncounted chunk")

	// ErrInconsistent means the store's keys for a chunk do not agree with one another,
	// e.g. data with no meta.
	ErrInconsistent = errors.New("inconsistent store")
)

// KeyError is the error for a malformed substrate key.
type KeyError struct {
	Key string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf(`Invalid key. Got "%s"`, e.Key)
}

// HashError is the error for a key whose shape is right
// but whose hash segment is empty or malformed.
type HashError struct {
	Key  string
	Hash string
}

func (e *HashError) Error() string {
	return fmt.Sprintf(`Invalid hash. Got "%s"`, e.Hash)
}

// ConflictError is the error from SetHead
// when the head's current value is not the expected one.
// It satisfies errors.Is(err, ErrConflict).
type ConflictError struct {
	Head             string
	Expected, Actual Hash
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("head %q is at %q, expected %q", e.Head, e.Actual, e.Expected)
}

// Is lets errors.Is match ErrConflict.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// IsRetryable tells whether err is a concurrency conflict,
// meaning the transaction can be retried after rereading the affected heads.
// Format errors and consistency faults are never retryable.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

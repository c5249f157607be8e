// Package dag is a content-addressable store for a directed acyclic graph of chunks,
// with reference-counted garbage collection.
//
// A chunk is an immutable node holding a data value
// and an ordered list of refs:
// the hashes of other chunks.
// A chunk's hash is computed from its serialized data alone,
// so two chunks with the same data have the same hash
// no matter what they refer to.
//
// Since the hash of some data changes when the data does,
// it is hard to keep track of "the current version" of anything by hash alone.
// So the store also keeps _heads_:
// named, mutable pointers to root chunks.
// A writer builds a new version of its graph by putting new chunks
// and then moving a head from the old root to the new one.
// Heads are updated with compare-and-set semantics,
// so a writer that lost a race finds out about it
// (see ErrConflict and IsRetryable).
//
// Every chunk reachable from some head carries a reference count,
// stored alongside its data.
// Moving a head increments the count of the new root
// (and, the first time a chunk becomes reachable, the counts of everything it refers to)
// and then decrements the count of the old root.
// A chunk whose count drops to zero is deleted immediately,
// and the deletion cascades to the chunks it refers to.
// All of this happens inside a single transaction of the underlying key-value store,
// so a crash can never leave the graph half-collected.
//
// The key-value store itself is pluggable
// (see KV, and the backends in the store subpackages).
// Entities are laid out on it like this:
//
//	c/<hash>/d  chunk data
//	c/<hash>/m  chunk refs
//	c/<hash>/r  chunk reference count
//	h/<name>    head
package dag

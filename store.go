package dag

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Store is a chunk store with heads and reference-counted garbage collection,
// built on a KV.
// All access is through transactions:
// see View and Update.
type Store struct {
	kv    KV
	log   logrus.FieldLogger
	cache *lru.Cache // encoded data (as a string) -> decoded Value
}

// Option is the type of an option to New.
type Option func(*Store) error

// WithLogger tells the Store where to log.
// The default is logrus.StandardLogger().
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) error {
		s.log = l
		return nil
	}
}

// WithCacheSize makes the Store keep up to n decoded chunk data values in memory,
// sparing the cost of decoding them again.
// The store is still consulted on every GetChunk,
// so the cache never makes a deleted chunk visible.
// Callers must not modify the Data of chunks they get.
func WithCacheSize(n int) Option {
	return func(s *Store) error {
		if n <= 0 {
			s.cache = nil
			return nil
		}
		c, err := lru.New(n)
		if err != nil {
			return errors.Wrap(err, "creating cache")
		}
		s.cache = c
		return nil
	}
}

// New produces a new Store on top of kv.
// The Store takes ownership of kv:
// nothing else should modify it.
func New(kv KV, opts ...Option) (*Store, error) {
	s := &Store{kv: kv, log: logrus.StandardLogger()}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// View runs f in a read transaction.
func (s *Store) View(ctx context.Context, f func(*Read) error) error {
	return s.kv.View(ctx, func(tx ReadTx) error {
		return f(&Read{s: s, tx: tx})
	})
}

// Update runs f in a read-write transaction.
// If f returns an error,
// nothing it did is committed.
// This includes reference-count changes made by SetHead:
// they commit or abort together with everything else in the transaction.
func (s *Store) Update(ctx context.Context, f func(*Write) error) error {
	return s.kv.Update(ctx, func(tx WriteTx) error {
		return f(&Write{Read: Read{s: s, tx: tx}, tx: tx})
	})
}

// Close closes the underlying KV.
func (s *Store) Close() error {
	return s.kv.Close()
}

// Read is a read transaction on a Store.
type Read struct {
	s  *Store
	tx ReadTx
}

// Write is a read-write transaction on a Store.
type Write struct {
	Read
	tx WriteTx
}

// GetChunk gets the chunk with the given hash.
// It returns ErrNotFound if there is none.
// If the chunk's data and meta keys disagree about whether it exists,
// the error is ErrInconsistent.
func (r *Read) GetChunk(ctx context.Context, h Hash) (Chunk, error) {
	dataBytes, ok, err := r.tx.Get(ctx, ChunkDataKey(h))
	if err != nil {
		return Chunk{}, errors.Wrapf(err, "reading data for %s", h)
	}
	refs, metaOK, err := r.getRefs(ctx, h)
	if err != nil {
		return Chunk{}, err
	}
	if ok != metaOK {
		return Chunk{}, errors.Wrapf(ErrInconsistent, "chunk %s: data present %v, meta present %v", h, ok, metaOK)
	}
	if !ok {
		return Chunk{}, ErrNotFound
	}

	data, err := r.decodeData(h, dataBytes)
	if err != nil {
		return Chunk{}, err
	}
	return Chunk{Hash: h, Data: data, Refs: refs}, nil
}

func (r *Read) decodeData(h Hash, b []byte) (Value, error) {
	if r.s.cache != nil {
		if got, ok := r.s.cache.Get(string(b)); ok {
			return got.(Value), nil
		}
	}
	v, err := Decode(b)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding data for %s", h)
	}
	if r.s.cache != nil {
		r.s.cache.Add(string(b), v)
	}
	return v, nil
}

// HasChunk tells whether the store has data for the chunk with the given hash.
func (r *Read) HasChunk(ctx context.Context, h Hash) (bool, error) {
	_, ok, err := r.tx.Get(ctx, ChunkDataKey(h))
	return ok, errors.Wrapf(err, "reading data for %s", h)
}

func (r *Read) getRefs(ctx context.Context, h Hash) (Refs, bool, error) {
	b, ok, err := r.tx.Get(ctx, ChunkMetaKey(h))
	if err != nil {
		return nil, false, errors.Wrapf(err, "reading meta for %s", h)
	}
	if !ok {
		return nil, false, nil
	}
	var refs []string
	if err := decMode.Unmarshal(b, &refs); err != nil {
		return nil, false, errors.Wrapf(err, "decoding meta for %s", h)
	}
	out := make(Refs, 0, len(refs))
	for _, ref := range refs {
		out = append(out, Hash(ref))
	}
	return out, true, nil
}

// ListChunks calls a function for the hash of each chunk in the store,
// in lexicographic order,
// whether or not it is reachable from any head.
func (r *Read) ListChunks(ctx context.Context, f func(Hash) error) error {
	return r.scanChunkKeys(ctx, func(pk ParsedKey, _ []byte) error {
		if pk.Kind != KindChunkData {
			return nil
		}
		return f(pk.Hash)
	})
}

func (r *Read) scanChunkKeys(ctx context.Context, f func(ParsedKey, []byte) error) error {
	return r.tx.Scan(ctx, chunkPrefix, func(key string, val []byte) error {
		pk, err := ParseKey(key)
		if err != nil {
			return err
		}
		return f(pk, val)
	})
}

// PutChunk writes c's data and refs to the store.
// It does not give c a reference count:
// c is not protected from garbage collection
// until it becomes reachable from a head
// (see SetHead).
//
// Data nested or sized past the limits of CheckLimits is rejected.
//
// Putting a chunk that is already live is a no-op if its refs are unchanged,
// and ErrInconsistent if they differ,
// since the counts of its old refs would no longer be accounted for.
func (w *Write) PutChunk(ctx context.Context, c Chunk) error {
	if !c.Hash.Valid() {
		return &HashError{Key: ChunkDataKey(c.Hash), Hash: string(c.Hash)}
	}
	for _, ref := range c.Refs {
		if !ref.Valid() {
			return &HashError{Key: ChunkMetaKey(c.Hash), Hash: string(ref)}
		}
	}
	if len(c.Refs) > MaxArrayLen {
		return errors.Errorf("chunk %s has %d refs, max is %d", c.Hash, len(c.Refs), MaxArrayLen)
	}
	if err := CheckLimits(c.Data); err != nil {
		return errors.Wrapf(err, "checking data for %s", c.Hash)
	}

	n, err := w.RefCount(ctx, c.Hash)
	if err != nil {
		return err
	}
	if n > 0 {
		oldRefs, ok, err := w.getRefs(ctx, c.Hash)
		if err != nil {
			return err
		}
		if ok && oldRefs.Equal(c.Refs) {
			return nil
		}
		return errors.Wrapf(ErrInconsistent, "live chunk %s put again with different refs", c.Hash)
	}

	data, err := Encode(c.Data)
	if err != nil {
		return errors.Wrapf(err, "encoding data for %s", c.Hash)
	}
	refs := make([]string, 0, len(c.Refs))
	for _, ref := range c.Refs {
		refs = append(refs, string(ref))
	}
	meta, err := encMode.Marshal(refs)
	if err != nil {
		return errors.Wrapf(err, "encoding meta for %s", c.Hash)
	}

	if err := w.tx.Put(ctx, ChunkDataKey(c.Hash), data); err != nil {
		return errors.Wrapf(err, "writing data for %s", c.Hash)
	}
	return errors.Wrapf(w.tx.Put(ctx, ChunkMetaKey(c.Hash), meta), "writing meta for %s", c.Hash)
}

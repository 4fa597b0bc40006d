// Package datastore wraps the embedded ordered key-value engine. It is the
// only package allowed to touch the on-disk handle; everything above it
// works in terms of point gets, ascending range scans, and atomic batches.
package datastore

// Op is a single mutation inside a Batch.
type Op struct {
	Key    []byte
	Value  []byte
	Delete bool
}

// Batch is an ordered set of mutations applied atomically: a concurrent
// reader never observes part of a batch, and a crash leaves either all of
// it or none of it.
type Batch struct {
	ops []Op
}

// Put appends a write of key=value.
func (b *Batch) Put(key, value []byte) {
	b.ops = append(b.ops, Op{Key: key, Value: value})
}

// Delete appends a deletion of key. Deleting an absent key is a no-op.
func (b *Batch) Delete(key []byte) {
	b.ops = append(b.ops, Op{Key: key, Delete: true})
}

// Len reports the number of pending mutations.
func (b *Batch) Len() int { return len(b.ops) }

// Ops exposes the pending mutations to backend implementations.
func (b *Batch) Ops() []Op { return b.ops }

// Iterator walks a key range in ascending byte order. Each Scan call
// returns a fresh iterator positioned before the first entry; the iterator
// does not reflect writes made after the scan started (snapshot or
// best-effort consistency, documented per backend).
type Iterator interface {
	// Next advances to the next entry, returning false at the end of
	// the range or on error.
	Next() bool
	// Key returns the current key. Valid only until the next call to
	// Next; copy if retained.
	Key() []byte
	// Value returns the current value, with the same lifetime as Key.
	Value() []byte
	// Err returns the first error hit while iterating, if any.
	Err() error
	// Release frees engine resources. Safe to call more than once.
	Release()
}

// Datastore defines the engine operations the store is built on. Engine
// errors are propagated untranslated; retry policy belongs to callers.
type Datastore interface {
	// Get performs a point lookup. found is false for absent keys.
	Get(key []byte) (value []byte, found bool, err error)
	// Scan iterates [start, end) in ascending order. A nil end means
	// unbounded.
	Scan(start, end []byte) Iterator
	// Write applies the batch atomically.
	Write(b *Batch) error
	// DeleteRange removes every key in [start, end).
	DeleteRange(start, end []byte) error
	// Close releases the on-disk handle. Called exactly once at
	// process shutdown.
	Close() error
}

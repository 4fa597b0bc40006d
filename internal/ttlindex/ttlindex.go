// Package ttlindex maintains the secondary time-ordered keyspace mapping
// expiry timestamps back to record keys, so the sweeper can find every
// expired key with one bounded range scan instead of walking the primary
// keyspace.
//
// The index never writes on its own: Upsert and Clear only append
// operations to a caller-owned batch, which lets the record store commit a
// value mutation and its index mutation as one atomic write. The invariant
// is at most one live index entry per key, upheld by always retiring the
// previous entry in the same batch that adds a new one.
package ttlindex

import (
	"github.com/UltraSive/ttlkv/internal/codec"
	"github.com/UltraSive/ttlkv/internal/datastore"
)

// Index is a view over the TTL keyspace of a datastore.
type Index struct {
	ds datastore.Datastore
}

// New returns an Index reading through ds.
func New(ds datastore.Datastore) *Index {
	return &Index{ds: ds}
}

// Upsert appends ops that retire the key's previous index entry (oldAt > 0)
// and add one at newAt.
func (ix *Index) Upsert(b *datastore.Batch, key []byte, oldAt, newAt int64) {
	if oldAt > 0 && oldAt != newAt {
		b.Delete(codec.EncodeTTLKey(oldAt, key))
	}
	b.Put(codec.EncodeTTLKey(newAt, key), key)
}

// Clear appends the op retiring the key's index entry at oldAt. No ops are
// added when the key carries no TTL (oldAt <= 0).
func (ix *Index) Clear(b *datastore.Batch, key []byte, oldAt int64) {
	if oldAt > 0 {
		b.Delete(codec.EncodeTTLKey(oldAt, key))
	}
}

// DueBefore returns a cursor over every index entry with expiry <= now, in
// ascending expiry order.
func (ix *Index) DueBefore(now int64) *Cursor {
	start, end := codec.TTLRange(now)
	return &Cursor{it: ix.ds.Scan(start, end)}
}

// Cursor iterates (expiresAt, key) pairs from the index. A corrupt entry
// does not stop the cursor: Next reports it through Corrupt so the caller
// can log and skip.
type Cursor struct {
	it        datastore.Iterator
	expiresAt int64
	key       []byte
	corrupt   []byte
}

// Next advances the cursor. When it returns true, either Key/ExpiresAt
// hold the next entry or Corrupt holds the raw bytes of an undecodable
// one.
func (c *Cursor) Next() bool {
	if !c.it.Next() {
		return false
	}
	at, key, err := codec.DecodeTTLKey(c.it.Key())
	if err != nil {
		c.corrupt = append([]byte(nil), c.it.Key()...)
		c.key = nil
		return true
	}
	c.corrupt = nil
	c.expiresAt = at
	c.key = append(c.key[:0], key...)
	return true
}

// ExpiresAt returns the current entry's expiry timestamp.
func (c *Cursor) ExpiresAt() int64 { return c.expiresAt }

// Key returns the current entry's record key, nil when the entry is
// corrupt.
func (c *Cursor) Key() []byte { return c.key }

// Corrupt returns the raw index key when the current entry failed to
// decode, nil otherwise.
func (c *Cursor) Corrupt() []byte { return c.corrupt }

// Err returns the first engine error hit while iterating.
func (c *Cursor) Err() error { return c.it.Err() }

// Release frees the underlying iterator.
func (c *Cursor) Release() { c.it.Release() }

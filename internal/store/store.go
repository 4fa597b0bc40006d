// Package store is the TTL-aware record store. It composes the key codec,
// the storage adapter and the TTL index into the public contract: point
// and prefix reads with lazy expiration, writes that co-mutate the value
// and its TTL-index entry in one atomic batch, and the sweep primitive the
// background cleaner drives.
package store

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/UltraSive/ttlkv/internal/codec"
	"github.com/UltraSive/ttlkv/internal/datastore"
	"github.com/UltraSive/ttlkv/internal/ttlindex"
)

// Entry is one result of a prefix read.
type Entry struct {
	Key    []byte
	Record Record
}

// Store coordinates all access to the two keyspaces. It owns no state of
// its own beyond configuration; every mutation goes through one atomic
// datastore batch.
type Store struct {
	ds      datastore.Datastore
	idx     *ttlindex.Index
	log     *zap.SugaredLogger
	metrics *Metrics
	now     func() time.Time

	// Counter read-modify-writes are the one place the engine's batch
	// primitive is not enough; a process-local lock covers them.
	counterMu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Store) { s.log = log }
}

// WithMetrics attaches operation counters.
func WithMetrics(m *Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithClock overrides the time source, for expiry tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New builds a Store over ds.
func New(ds datastore.Datastore, opts ...Option) *Store {
	s := &Store{
		ds:  ds,
		idx: ttlindex.New(ds),
		log: zap.NewNop().Sugar(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the record stored under key. An expired record is reclaimed
// (record plus TTL-index entry, one batch) before reporting not-found, so
// an expired key is never visible regardless of sweep state.
func (s *Store) Get(key []byte) (Record, bool, error) {
	if len(key) == 0 {
		return Record{}, false, fmt.Errorf("%w: empty key", ErrInvalidArgument)
	}
	s.metrics.read()
	rec, found, err := s.read(key)
	if err != nil || !found {
		return Record{}, false, err
	}
	if rec.expired(s.now().UnixNano()) {
		if err := s.reclaim(key, rec.ExpiresAt); err != nil {
			return Record{}, false, err
		}
		return Record{}, false, nil
	}
	return rec, true, nil
}

// GetByPrefix returns every live entry whose key starts with prefix, in
// ascending key order. Entries discovered expired during the scan are
// filtered out and reclaimed. An empty prefix scans the whole keyspace.
func (s *Store) GetByPrefix(prefix []byte) ([]Entry, error) {
	s.metrics.read()
	start, end := codec.RecordRange(prefix)
	it := s.ds.Scan(start, end)

	var entries []Entry
	var dead []expiredKey
	nowNano := s.now().UnixNano()
	for it.Next() {
		key := append([]byte(nil), codec.DecodeKey(it.Key())...)
		rec, err := decodeRecord(it.Value())
		if err != nil {
			it.Release()
			return nil, fmt.Errorf("%w: key %q", err, key)
		}
		if rec.expired(nowNano) {
			dead = append(dead, expiredKey{key: key, expiresAt: rec.ExpiresAt})
			continue
		}
		entries = append(entries, Entry{Key: key, Record: rec})
	}
	err := it.Err()
	it.Release()
	if err != nil {
		return nil, err
	}

	for _, d := range dead {
		if err := s.reclaim(d.key, d.expiresAt); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// Set writes an opaque value under key. ttl <= 0 stores a non-expiring
// record and clears any stale TTL state from a previous write. The
// returned flag reports whether the key was created rather than
// overwritten.
func (s *Store) Set(key, value []byte, ttl time.Duration) (created bool, err error) {
	return s.put(key, value, KindString, ttl)
}

// SetInt writes an integer counter record, for use with Increment and
// Decrement.
func (s *Store) SetInt(key []byte, n int64, ttl time.Duration) (created bool, err error) {
	return s.put(key, []byte(strconv.FormatInt(n, 10)), KindInteger, ttl)
}

func (s *Store) put(key, value []byte, kind Kind, ttl time.Duration) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("%w: empty key", ErrInvalidArgument)
	}
	nowNano := s.now().UnixNano()
	old, found, err := s.read(key)
	if err != nil {
		return false, err
	}
	live := found && !old.expired(nowNano)

	rec := Record{Value: value, Kind: kind}
	b := new(datastore.Batch)
	oldAt := int64(0)
	if found {
		oldAt = old.ExpiresAt
	}
	if ttl > 0 {
		rec.ExpiresAt = nowNano + ttl.Nanoseconds()
		s.idx.Upsert(b, key, oldAt, rec.ExpiresAt)
	} else {
		s.idx.Clear(b, key, oldAt)
	}
	b.Put(codec.EncodeKey(key), encodeRecord(rec))
	if err := s.ds.Write(b); err != nil {
		return false, err
	}
	s.metrics.write()
	return !live, nil
}

// Delete removes key and any TTL-index entry in one batch. Deleting an
// absent key succeeds.
func (s *Store) Delete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("%w: empty key", ErrInvalidArgument)
	}
	old, found, err := s.read(key)
	if err != nil {
		return err
	}
	b := new(datastore.Batch)
	b.Delete(codec.EncodeKey(key))
	if found {
		s.idx.Clear(b, key, old.ExpiresAt)
	}
	if err := s.ds.Write(b); err != nil {
		return err
	}
	s.metrics.delete()
	return nil
}

// DeleteByPrefix removes every key starting with prefix together with its
// TTL-index entries, in a single batch.
func (s *Store) DeleteByPrefix(prefix []byte) error {
	start, end := codec.RecordRange(prefix)
	it := s.ds.Scan(start, end)

	b := new(datastore.Batch)
	for it.Next() {
		key := append([]byte(nil), codec.DecodeKey(it.Key())...)
		b.Delete(codec.EncodeKey(key))
		if rec, err := decodeRecord(it.Value()); err == nil {
			s.idx.Clear(b, key, rec.ExpiresAt)
		}
	}
	err := it.Err()
	it.Release()
	if err != nil {
		return err
	}
	if b.Len() == 0 {
		return nil
	}
	if err := s.ds.Write(b); err != nil {
		return err
	}
	s.metrics.delete()
	return nil
}

// Flush removes every record and every TTL-index entry. The engine
// instance itself stays open; only the two keyspaces are cleared.
func (s *Store) Flush() error {
	start, end := codec.RecordRange(nil)
	if err := s.ds.DeleteRange(start, end); err != nil {
		return err
	}
	start, end = codec.TTLKeyspace()
	if err := s.ds.DeleteRange(start, end); err != nil {
		return err
	}
	s.metrics.delete()
	return nil
}

// GetTTL reports the remaining TTL for key. hasTTL is false for a
// non-expiring key. An absent or expired key yields ErrKeyNotFound, the
// expired case being reclaimed first.
func (s *Store) GetTTL(key []byte) (remaining time.Duration, hasTTL bool, err error) {
	if len(key) == 0 {
		return 0, false, fmt.Errorf("%w: empty key", ErrInvalidArgument)
	}
	rec, found, err := s.read(key)
	if err != nil {
		return 0, false, err
	}
	if !found {
		return 0, false, ErrKeyNotFound
	}
	if !rec.HasTTL() {
		return 0, false, nil
	}
	nowNano := s.now().UnixNano()
	if rec.ExpiresAt <= nowNano {
		if err := s.reclaim(key, rec.ExpiresAt); err != nil {
			return 0, false, err
		}
		return 0, false, ErrKeyNotFound
	}
	return time.Duration(rec.ExpiresAt - nowNano), true, nil
}

// SetTTL sets or overwrites the expiry of an existing key. The record and
// its index entry move in one batch.
func (s *Store) SetTTL(key []byte, ttl time.Duration) error {
	if len(key) == 0 {
		return fmt.Errorf("%w: empty key", ErrInvalidArgument)
	}
	if ttl <= 0 {
		return fmt.Errorf("%w: ttl must be positive", ErrInvalidArgument)
	}
	rec, err := s.requireLive(key)
	if err != nil {
		return err
	}
	oldAt := rec.ExpiresAt
	rec.ExpiresAt = s.now().UnixNano() + ttl.Nanoseconds()

	b := new(datastore.Batch)
	s.idx.Upsert(b, key, oldAt, rec.ExpiresAt)
	b.Put(codec.EncodeKey(key), encodeRecord(rec))
	if err := s.ds.Write(b); err != nil {
		return err
	}
	s.metrics.write()
	return nil
}

// ClearTTL makes key persist indefinitely. A key without TTL is left
// untouched; an absent key yields ErrKeyNotFound.
func (s *Store) ClearTTL(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("%w: empty key", ErrInvalidArgument)
	}
	rec, err := s.requireLive(key)
	if err != nil {
		return err
	}
	if !rec.HasTTL() {
		return nil
	}
	oldAt := rec.ExpiresAt
	rec.ExpiresAt = 0

	b := new(datastore.Batch)
	s.idx.Clear(b, key, oldAt)
	b.Put(codec.EncodeKey(key), encodeRecord(rec))
	if err := s.ds.Write(b); err != nil {
		return err
	}
	s.metrics.write()
	return nil
}

// Increment adds delta to the integer counter at key. An absent key is
// created from def when given, otherwise ErrKeyNotFound. The record's TTL
// is preserved.
func (s *Store) Increment(key []byte, delta int64, def *int64) (int64, error) {
	return s.addCounter(key, delta, def)
}

// Decrement subtracts delta from the integer counter at key, with the
// same absent-key handling as Increment.
func (s *Store) Decrement(key []byte, delta int64, def *int64) (int64, error) {
	return s.addCounter(key, -delta, def)
}

func (s *Store) addCounter(key []byte, delta int64, def *int64) (int64, error) {
	if len(key) == 0 {
		return 0, fmt.Errorf("%w: empty key", ErrInvalidArgument)
	}
	s.counterMu.Lock()
	defer s.counterMu.Unlock()

	nowNano := s.now().UnixNano()
	rec, found, err := s.read(key)
	if err != nil {
		return 0, err
	}
	if found && rec.expired(nowNano) {
		if err := s.reclaim(key, rec.ExpiresAt); err != nil {
			return 0, err
		}
		found = false
	}

	var n int64
	if found {
		cur, err := rec.Int()
		if err != nil {
			return 0, err
		}
		n = cur + delta
	} else {
		if def == nil {
			return 0, ErrKeyNotFound
		}
		n = *def + delta
		rec = Record{Kind: KindInteger}
	}
	rec.Value = []byte(strconv.FormatInt(n, 10))

	b := new(datastore.Batch)
	b.Put(codec.EncodeKey(key), encodeRecord(rec))
	if err := s.ds.Write(b); err != nil {
		return 0, err
	}
	s.metrics.write()
	return n, nil
}

// SweepExpired is the active expiration path: it walks the TTL index for
// entries due at or before now and reclaims each key in its own atomic
// batch. Corrupt index entries are logged and skipped. A key already
// reclaimed by the lazy path is a no-op. max bounds the number of index
// entries examined per call; max <= 0 means unbounded.
func (s *Store) SweepExpired(now time.Time, max int) (int, error) {
	nowNano := now.UnixNano()
	cur := s.idx.DueBefore(nowNano)

	type candidate struct {
		key       []byte
		expiresAt int64
	}
	var due []candidate
	for cur.Next() {
		if raw := cur.Corrupt(); raw != nil {
			s.log.Warnw("skipping corrupt ttl index entry", "raw", fmt.Sprintf("%x", raw))
			continue
		}
		due = append(due, candidate{
			key:       append([]byte(nil), cur.Key()...),
			expiresAt: cur.ExpiresAt(),
		})
		if max > 0 && len(due) >= max {
			break
		}
	}
	err := cur.Err()
	cur.Release()
	if err != nil {
		return 0, err
	}

	reclaimed := 0
	for _, c := range due {
		rec, found, err := s.read(c.key)
		if err != nil {
			s.log.Warnw("sweep: read failed", "key", string(c.key), "err", err)
			continue
		}
		b := new(datastore.Batch)
		// The due entry itself is always safe to retire: a re-set key
		// carries a fresh index entry at a different timestamp.
		s.idx.Clear(b, c.key, c.expiresAt)
		if found && rec.expired(nowNano) {
			b.Delete(codec.EncodeKey(c.key))
			if rec.ExpiresAt != c.expiresAt {
				s.idx.Clear(b, c.key, rec.ExpiresAt)
			}
			reclaimed++
		}
		if err := s.ds.Write(b); err != nil {
			s.log.Warnw("sweep: reclaim failed", "key", string(c.key), "err", err)
			if found && rec.expired(nowNano) {
				reclaimed--
			}
		}
	}
	s.metrics.swept(reclaimed)
	return reclaimed, nil
}

type expiredKey struct {
	key       []byte
	expiresAt int64
}

// read fetches and decodes the record without expiry handling.
func (s *Store) read(key []byte) (Record, bool, error) {
	raw, found, err := s.ds.Get(codec.EncodeKey(key))
	if err != nil || !found {
		return Record{}, false, err
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		return Record{}, false, fmt.Errorf("%w: key %q", err, key)
	}
	return rec, true, nil
}

// requireLive fetches a record, reclaiming it and returning ErrKeyNotFound
// when expired.
func (s *Store) requireLive(key []byte) (Record, error) {
	rec, found, err := s.read(key)
	if err != nil {
		return Record{}, err
	}
	if !found {
		return Record{}, ErrKeyNotFound
	}
	if rec.expired(s.now().UnixNano()) {
		if err := s.reclaim(key, rec.ExpiresAt); err != nil {
			return Record{}, err
		}
		return Record{}, ErrKeyNotFound
	}
	return rec, nil
}

// reclaim deletes a key's record and TTL-index entry in one batch. Racing
// reclaims are harmless: deleting absent keys succeeds.
func (s *Store) reclaim(key []byte, expiresAt int64) error {
	b := new(datastore.Batch)
	b.Delete(codec.EncodeKey(key))
	s.idx.Clear(b, key, expiresAt)
	if err := s.ds.Write(b); err != nil {
		return err
	}
	s.metrics.lazyExpired()
	return nil
}

// Package codec defines the byte layout of the two on-disk keyspaces.
//
// Record keys and TTL-index keys live in disjoint regions of a single
// engine instance, separated by a one-byte keyspace tag. Record keys keep
// the logical key verbatim after the tag, so a prefix relationship between
// logical keys is preserved byte-for-byte and prefix queries compile down
// to a single half-open range scan. TTL-index keys order by expiry first
// (fixed-width big-endian), then by the logical key.
package codec

import (
	"encoding/binary"
	"errors"
)

const (
	// Keyspace tags. TTL sorts after records; neither is 0xFF so both
	// keyspaces always have a finite upper bound.
	recordTag = byte('r')
	ttlTag    = byte('t')

	ttlHeaderLen = 1 + 8 // tag + big-endian expiry
)

// ErrCorruptIndex reports TTL-index bytes that do not decode. It should
// never occur absent external tampering with the database files.
var ErrCorruptIndex = errors.New("ttlkv: corrupt ttl index entry")

// EncodeKey maps a logical key into the record keyspace.
func EncodeKey(key []byte) []byte {
	out := make([]byte, 1+len(key))
	out[0] = recordTag
	copy(out[1:], key)
	return out
}

// DecodeKey strips the record keyspace tag from an encoded key.
func DecodeKey(b []byte) []byte {
	if len(b) < 1 || b[0] != recordTag {
		return nil
	}
	return b[1:]
}

// EncodeTTLKey maps (expiresAt, key) into the TTL keyspace. expiresAt is
// Unix nanoseconds; big-endian layout makes byte order equal numeric order.
func EncodeTTLKey(expiresAt int64, key []byte) []byte {
	out := make([]byte, ttlHeaderLen+len(key))
	out[0] = ttlTag
	binary.BigEndian.PutUint64(out[1:ttlHeaderLen], uint64(expiresAt))
	copy(out[ttlHeaderLen:], key)
	return out
}

// DecodeTTLKey is the inverse of EncodeTTLKey.
func DecodeTTLKey(b []byte) (expiresAt int64, key []byte, err error) {
	if len(b) < ttlHeaderLen || b[0] != ttlTag {
		return 0, nil, ErrCorruptIndex
	}
	return int64(binary.BigEndian.Uint64(b[1:ttlHeaderLen])), b[ttlHeaderLen:], nil
}

// PrefixUpperBound returns the smallest byte string greater than every
// string having b as a prefix, for use as the exclusive end of a range
// scan. Returns nil when no such bound exists (b empty or all 0xFF).
func PrefixUpperBound(b []byte) []byte {
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] != 0xFF {
			end := make([]byte, i+1)
			copy(end, b[:i+1])
			end[i]++
			return end
		}
	}
	return nil
}

// RecordRange returns the bounds of the record keyspace region covering
// all logical keys with the given prefix. An empty prefix covers the whole
// keyspace.
func RecordRange(prefix []byte) (start, end []byte) {
	start = EncodeKey(prefix)
	return start, PrefixUpperBound(start)
}

// TTLRange returns the bounds of the TTL keyspace holding every index
// entry with expiresAt <= now.
func TTLRange(now int64) (start, end []byte) {
	return EncodeTTLKey(0, nil), EncodeTTLKey(now+1, nil)
}

// TTLKeyspace returns the bounds of the entire TTL keyspace.
func TTLKeyspace() (start, end []byte) {
	return []byte{ttlTag}, PrefixUpperBound([]byte{ttlTag})
}

package store

import (
	"encoding/binary"
	"strconv"

	"github.com/golang/snappy"
)

// Kind distinguishes opaque byte values from integer counters.
type Kind byte

const (
	KindString  Kind = 0
	KindInteger Kind = 1
)

const (
	flagInteger = 1 << 0
	flagSnappy  = 1 << 1

	recordHeaderLen = 1 + 8 // flags + big-endian expiry

	// Values below this size are not worth a compression attempt.
	compressMinLen = 64
)

// Record is a stored value with its expiration metadata.
type Record struct {
	Value []byte
	Kind  Kind
	// ExpiresAt is the absolute expiry in Unix nanoseconds, 0 when the
	// record never expires.
	ExpiresAt int64
}

// HasTTL reports whether the record carries an expiry.
func (r Record) HasTTL() bool { return r.ExpiresAt > 0 }

func (r Record) expired(now int64) bool {
	return r.ExpiresAt > 0 && r.ExpiresAt <= now
}

// Int parses the record as an integer counter.
func (r Record) Int() (int64, error) {
	if r.Kind != KindInteger {
		return 0, ErrInvalidValueType
	}
	n, err := strconv.ParseInt(string(r.Value), 10, 64)
	if err != nil {
		return 0, ErrCorruptRecord
	}
	return n, nil
}

// encodeRecord lays a record out as flags byte, 8-byte big-endian expiry,
// payload. Larger payloads are snappy-compressed when that actually
// shrinks them, marked by a flag bit.
func encodeRecord(r Record) []byte {
	var flags byte
	if r.Kind == KindInteger {
		flags |= flagInteger
	}
	payload := r.Value
	if len(payload) >= compressMinLen {
		if enc := snappy.Encode(nil, payload); len(enc) < len(payload) {
			payload = enc
			flags |= flagSnappy
		}
	}
	out := make([]byte, recordHeaderLen+len(payload))
	out[0] = flags
	binary.BigEndian.PutUint64(out[1:recordHeaderLen], uint64(r.ExpiresAt))
	copy(out[recordHeaderLen:], payload)
	return out
}

func decodeRecord(b []byte) (Record, error) {
	if len(b) < recordHeaderLen {
		return Record{}, ErrCorruptRecord
	}
	flags := b[0]
	r := Record{
		ExpiresAt: int64(binary.BigEndian.Uint64(b[1:recordHeaderLen])),
	}
	if flags&flagInteger != 0 {
		r.Kind = KindInteger
	}
	payload := b[recordHeaderLen:]
	if flags&flagSnappy != 0 {
		dec, err := snappy.Decode(nil, payload)
		if err != nil {
			return Record{}, ErrCorruptRecord
		}
		r.Value = dec
		return r, nil
	}
	r.Value = append([]byte(nil), payload...)
	return r, nil
}

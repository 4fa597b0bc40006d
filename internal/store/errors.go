package store

import "errors"

var (
	// ErrKeyNotFound reports a TTL or counter operation against an
	// absent (or already expired) key.
	ErrKeyNotFound = errors.New("ttlkv: key not found")
	// ErrInvalidArgument reports malformed input rejected before any
	// storage access.
	ErrInvalidArgument = errors.New("ttlkv: invalid argument")
	// ErrInvalidValueType reports a counter operation against a
	// non-integer record.
	ErrInvalidValueType = errors.New("ttlkv: value is not an integer")
	// ErrCorruptRecord reports record bytes that do not decode.
	ErrCorruptRecord = errors.New("ttlkv: corrupt record")
)

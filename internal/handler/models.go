package handler

import (
	json "github.com/goccy/go-json"
)

// SetRequest creates or overwrites a key. Value may be a JSON string
// (opaque bytes) or a JSON integer (counter record). TTL is in seconds;
// zero or negative means the key never expires.
type SetRequest struct {
	Key   string          `json:"key" validate:"required"`
	Value json.RawMessage `json:"value" validate:"required"`
	TTL   int64           `json:"ttl"`
}

// DeleteKeysRequest scopes DELETE /keys to a prefix. An absent body means
// flush.
type DeleteKeysRequest struct {
	Prefix string `json:"prefix"`
}

// SetTTLRequest updates a key's TTL in seconds. A negative TTL clears the
// expiry so the key persists indefinitely.
type SetTTLRequest struct {
	Key string `json:"key" validate:"required"`
	TTL int64  `json:"ttl"`
}

// CounterRequest drives the inc/dec endpoints. Default, when present, is
// the starting value for an absent key.
type CounterRequest struct {
	Value   int64  `json:"value"`
	Default *int64 `json:"default,omitempty"`
}

type entryResponse struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

type getResponse struct {
	Value json.RawMessage `json:"value"`
}

type keysResponse struct {
	Entries []entryResponse `json:"entries"`
}

type ttlResponse struct {
	// TTL is the remaining whole seconds, or -1 when the key never
	// expires.
	TTL int64 `json:"ttl"`
}

type counterResponse struct {
	Value int64 `json:"value"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type errorResponse struct {
	Error string `json:"error"`
}

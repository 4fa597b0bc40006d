package store

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCodecSmallValue(t *testing.T) {
	in := Record{Value: []byte("v"), Kind: KindString, ExpiresAt: 42}
	out, err := decodeRecord(encodeRecord(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestRecordCodecCompressibleValue(t *testing.T) {
	in := Record{Value: bytes.Repeat([]byte("abcd"), 256)}
	enc := encodeRecord(in)
	assert.Less(t, len(enc), len(in.Value), "repetitive payload should compress")

	out, err := decodeRecord(enc)
	require.NoError(t, err)
	assert.Equal(t, in.Value, out.Value)
}

func TestRecordCodecIncompressibleValueStoredRaw(t *testing.T) {
	// High-entropy payload above the threshold; the codec must fall
	// back to storing it uncompressed rather than growing it.
	value := make([]byte, 128)
	for i := range value {
		value[i] = byte(i*37 + 11)
	}
	in := Record{Value: value}
	enc := encodeRecord(in)
	assert.Equal(t, recordHeaderLen+len(value), len(enc))

	out, err := decodeRecord(enc)
	require.NoError(t, err)
	assert.Equal(t, value, out.Value)
}

func TestRecordCodecIntegerKind(t *testing.T) {
	in := Record{Value: []byte("123"), Kind: KindInteger}
	out, err := decodeRecord(encodeRecord(in))
	require.NoError(t, err)
	assert.Equal(t, KindInteger, out.Kind)
	n, err := out.Int()
	require.NoError(t, err)
	assert.Equal(t, int64(123), n)
}

func TestRecordIntOnStringValue(t *testing.T) {
	r := Record{Value: []byte("123"), Kind: KindString}
	_, err := r.Int()
	assert.ErrorIs(t, err, ErrInvalidValueType)
}

func TestDecodeRecordTruncated(t *testing.T) {
	_, err := decodeRecord([]byte{0x00, 0x01})
	assert.ErrorIs(t, err, ErrCorruptRecord)
	_, err = decodeRecord(nil)
	assert.ErrorIs(t, err, ErrCorruptRecord)
}

package ttlindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UltraSive/ttlkv/internal/datastore"
)

func openIndex(t *testing.T) (*Index, datastore.Datastore) {
	t.Helper()
	ds, err := datastore.NewLevelDBMem()
	require.NoError(t, err)
	t.Cleanup(func() { _ = ds.Close() })
	return New(ds), ds
}

func collect(t *testing.T, c *Cursor) (keys []string, expiries []int64) {
	t.Helper()
	defer c.Release()
	for c.Next() {
		require.Nil(t, c.Corrupt())
		keys = append(keys, string(c.Key()))
		expiries = append(expiries, c.ExpiresAt())
	}
	require.NoError(t, c.Err())
	return keys, expiries
}

func TestUpsertAndDueBefore(t *testing.T) {
	ix, ds := openIndex(t)

	b := new(datastore.Batch)
	ix.Upsert(b, []byte("late"), 0, 300)
	ix.Upsert(b, []byte("early"), 0, 100)
	ix.Upsert(b, []byte("mid"), 0, 200)
	require.NoError(t, ds.Write(b))

	keys, expiries := collect(t, ix.DueBefore(200))
	assert.Equal(t, []string{"early", "mid"}, keys)
	assert.Equal(t, []int64{100, 200}, expiries)

	keys, _ = collect(t, ix.DueBefore(99))
	assert.Empty(t, keys)
}

func TestUpsertRetiresPreviousEntry(t *testing.T) {
	ix, ds := openIndex(t)

	b := new(datastore.Batch)
	ix.Upsert(b, []byte("k"), 0, 100)
	require.NoError(t, ds.Write(b))

	b = new(datastore.Batch)
	ix.Upsert(b, []byte("k"), 100, 500)
	require.NoError(t, ds.Write(b))

	// One live entry per key: the old one must be gone.
	keys, expiries := collect(t, ix.DueBefore(1000))
	assert.Equal(t, []string{"k"}, keys)
	assert.Equal(t, []int64{500}, expiries)
}

func TestClear(t *testing.T) {
	ix, ds := openIndex(t)

	b := new(datastore.Batch)
	ix.Upsert(b, []byte("k"), 0, 100)
	require.NoError(t, ds.Write(b))

	b = new(datastore.Batch)
	ix.Clear(b, []byte("k"), 100)
	require.NoError(t, ds.Write(b))

	keys, _ := collect(t, ix.DueBefore(1000))
	assert.Empty(t, keys)
}

func TestClearWithoutTTLAddsNoOps(t *testing.T) {
	ix, _ := openIndex(t)
	b := new(datastore.Batch)
	ix.Clear(b, []byte("k"), 0)
	assert.Zero(t, b.Len())
}

func TestCursorSkipsCorruptEntry(t *testing.T) {
	ix, ds := openIndex(t)

	b := new(datastore.Batch)
	ix.Upsert(b, []byte("good"), 0, 100)
	// Truncated index key, as if the file were tampered with.
	b.Put([]byte("t\x00\x00\x01"), nil)
	require.NoError(t, ds.Write(b))

	c := ix.DueBefore(1_000_000_000_000_000_000)
	defer c.Release()

	var good []string
	corrupt := 0
	for c.Next() {
		if c.Corrupt() != nil {
			corrupt++
			continue
		}
		good = append(good, string(c.Key()))
	}
	require.NoError(t, c.Err())
	assert.Equal(t, 1, corrupt)
	assert.Equal(t, []string{"good"}, good)
}

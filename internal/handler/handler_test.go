package handler

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UltraSive/ttlkv/internal/datastore"
	"github.com/UltraSive/ttlkv/internal/info"
	"github.com/UltraSive/ttlkv/internal/store"
	"github.com/UltraSive/ttlkv/internal/upstream"
)

func newTestAPI(t *testing.T, opts ...Option) http.Handler {
	t.Helper()
	ds, err := datastore.NewLevelDBMem()
	require.NoError(t, err)
	t.Cleanup(func() { ds.Close() })

	h := New(store.New(ds), info.Info{Version: "test", Backend: "leveldb-mem"}, opts...)
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func do(t *testing.T, api http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	api.ServeHTTP(w, req)
	return w
}

func decodeInto(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestSetAndGetKey(t *testing.T) {
	api := newTestAPI(t)

	w := do(t, api, http.MethodPost, "/keys", map[string]any{"key": "greeting", "value": "hello"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, api, http.MethodGet, "/keys/greeting", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got getResponse
	decodeInto(t, w, &got)
	assert.Equal(t, `"hello"`, string(got.Value))

	// Overwriting an existing key answers 200, not 201.
	w = do(t, api, http.MethodPost, "/keys", map[string]any{"key": "greeting", "value": "hi"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetMissingKey(t *testing.T) {
	api := newTestAPI(t)
	w := do(t, api, http.MethodGet, "/keys/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSetValidation(t *testing.T) {
	api := newTestAPI(t)

	w := do(t, api, http.MethodPost, "/keys", map[string]any{"value": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, api, http.MethodPost, "/keys", map[string]any{"key": "k", "value": []int{1, 2}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIntegerValuesRenderAsNumbers(t *testing.T) {
	api := newTestAPI(t)

	w := do(t, api, http.MethodPost, "/keys", map[string]any{"key": "hits", "value": 42})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, api, http.MethodGet, "/keys/hits", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got getResponse
	decodeInto(t, w, &got)
	assert.Equal(t, "42", string(got.Value))
}

func TestIncrementDecrement(t *testing.T) {
	api := newTestAPI(t)

	def := int64(100)
	w := do(t, api, http.MethodPost, "/keys/hits/inc", CounterRequest{Value: 5, Default: &def})
	require.Equal(t, http.StatusOK, w.Code)
	var got counterResponse
	decodeInto(t, w, &got)
	assert.Equal(t, int64(100), got.Value)

	w = do(t, api, http.MethodPost, "/keys/hits/inc", CounterRequest{Value: 5})
	decodeInto(t, w, &got)
	assert.Equal(t, int64(105), got.Value)

	w = do(t, api, http.MethodPost, "/keys/hits/dec", CounterRequest{Value: 30})
	decodeInto(t, w, &got)
	assert.Equal(t, int64(75), got.Value)
}

func TestIncrementStringValueRejected(t *testing.T) {
	api := newTestAPI(t)

	do(t, api, http.MethodPost, "/keys", map[string]any{"key": "name", "value": "bob"})
	w := do(t, api, http.MethodPost, "/keys/name/inc", CounterRequest{Value: 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteKeyIdempotent(t *testing.T) {
	api := newTestAPI(t)

	do(t, api, http.MethodPost, "/keys", map[string]any{"key": "tmp", "value": "x"})
	w := do(t, api, http.MethodDelete, "/keys/tmp", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, api, http.MethodGet, "/keys/tmp", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, api, http.MethodDelete, "/keys/tmp", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestListKeysByPrefix(t *testing.T) {
	api := newTestAPI(t)

	for _, k := range []string{"my:1", "my:2", "other"} {
		do(t, api, http.MethodPost, "/keys", map[string]any{"key": k, "value": "v-" + k})
	}

	w := do(t, api, http.MethodGet, "/keys?prefix=my:", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got keysResponse
	decodeInto(t, w, &got)
	require.Len(t, got.Entries, 2)
	assert.Equal(t, "my:1", got.Entries[0].Key)
	assert.Equal(t, "my:2", got.Entries[1].Key)
}

func TestDeleteByPrefixThenFlush(t *testing.T) {
	api := newTestAPI(t)

	for _, k := range []string{"my:1", "my:2", "other"} {
		do(t, api, http.MethodPost, "/keys", map[string]any{"key": k, "value": "x"})
	}

	w := do(t, api, http.MethodDelete, "/keys", DeleteKeysRequest{Prefix: "my:"})
	require.Equal(t, http.StatusOK, w.Code)

	var got keysResponse
	decodeInto(t, do(t, api, http.MethodGet, "/keys", nil), &got)
	require.Len(t, got.Entries, 1)
	assert.Equal(t, "other", got.Entries[0].Key)

	// No body flushes everything.
	w = do(t, api, http.MethodDelete, "/keys", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeInto(t, do(t, api, http.MethodGet, "/keys", nil), &got)
	assert.Empty(t, got.Entries)
}

func TestTTLRoundTrip(t *testing.T) {
	api := newTestAPI(t)

	do(t, api, http.MethodPost, "/keys", map[string]any{"key": "session", "value": "v", "ttl": 10})

	var got ttlResponse
	w := do(t, api, http.MethodGet, "/keys/session/ttl", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeInto(t, w, &got)
	assert.Equal(t, int64(10), got.TTL)

	// Negative TTL clears the expiry; the key stays.
	w = do(t, api, http.MethodPost, "/keys/ttl", SetTTLRequest{Key: "session", TTL: -1})
	require.Equal(t, http.StatusOK, w.Code)
	decodeInto(t, do(t, api, http.MethodGet, "/keys/session/ttl", nil), &got)
	assert.Equal(t, int64(-1), got.TTL)
}

func TestSetTTLErrors(t *testing.T) {
	api := newTestAPI(t)

	w := do(t, api, http.MethodPost, "/keys/ttl", SetTTLRequest{Key: "absent", TTL: 5})
	assert.Equal(t, http.StatusNotFound, w.Code)

	do(t, api, http.MethodPost, "/keys", map[string]any{"key": "k", "value": "v"})
	w = do(t, api, http.MethodPost, "/keys/ttl", SetTTLRequest{Key: "k", TTL: 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, api, http.MethodGet, "/keys/absent/ttl", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInfoEndpoint(t *testing.T) {
	api := newTestAPI(t)

	w := do(t, api, http.MethodGet, "/info", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got info.Info
	decodeInto(t, w, &got)
	assert.Equal(t, "leveldb-mem", got.Backend)
	assert.Equal(t, "test", got.Version)
}

func TestUpstreamReadThrough(t *testing.T) {
	var hits atomic.Int64
	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/keys/shared" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"value":"remote"}`))
	}))
	defer peer.Close()

	api := newTestAPI(t, WithUpstream(upstream.New(peer.URL, time.Second), 0))

	w := do(t, api, http.MethodGet, "/keys/shared", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got getResponse
	decodeInto(t, w, &got)
	assert.Equal(t, `"remote"`, string(got.Value))

	// Second read is served from the local store.
	w = do(t, api, http.MethodGet, "/keys/shared", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), hits.Load())

	// Keys the upstream lacks stay misses.
	w = do(t, api, http.MethodGet, "/keys/private", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// Package handler translates the REST surface into record store calls.
package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/UltraSive/ttlkv/internal/info"
	"github.com/UltraSive/ttlkv/internal/store"
	"github.com/UltraSive/ttlkv/internal/upstream"
)

// Handler serves the /keys API over a record store.
type Handler struct {
	store       *store.Store
	upstream    *upstream.Client // nil when no read-through is configured
	upstreamTTL time.Duration
	info        info.Info
	log         *zap.SugaredLogger
	validate    *validator.Validate
}

// Option configures a Handler.
type Option func(*Handler)

// WithUpstream enables read-through fill on cache misses; fetched values
// are stored locally with ttl.
func WithUpstream(client *upstream.Client, ttl time.Duration) Option {
	return func(h *Handler) {
		h.upstream = client
		h.upstreamTTL = ttl
	}
}

// WithLogger sets the handler logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(h *Handler) { h.log = log }
}

// New builds a Handler over s.
func New(s *store.Store, buildInfo info.Info, opts ...Option) *Handler {
	h := &Handler{
		store:    s,
		info:     buildInfo,
		log:      zap.NewNop().Sugar(),
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes mounts the API onto r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/keys", func(r chi.Router) {
		r.Get("/", h.listKeys)
		r.Post("/", h.setKey)
		r.Delete("/", h.deleteKeys)
		r.Post("/ttl", h.setTTL)
		r.Route("/{key}", func(r chi.Router) {
			r.Get("/", h.getKey)
			r.Delete("/", h.deleteKey)
			r.Get("/ttl", h.getTTL)
			r.Post("/inc", h.increment)
			r.Post("/dec", h.decrement)
		})
	})
	r.Get("/info", h.getInfo)
}

func (h *Handler) getKey(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	rec, found, err := h.store.Get([]byte(key))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if found {
		h.writeJSON(w, http.StatusOK, getResponse{Value: recordValue(rec)})
		return
	}
	if raw, ok := h.fillFromUpstream(key); ok {
		h.writeJSON(w, http.StatusOK, getResponse{Value: raw})
		return
	}
	h.writeError(w, store.ErrKeyNotFound)
}

// fillFromUpstream fetches a missing key from the configured upstream and
// stores it locally. Upstream trouble degrades to a plain miss.
func (h *Handler) fillFromUpstream(key string) (json.RawMessage, bool) {
	if h.upstream == nil {
		return nil, false
	}
	raw, ok, err := h.upstream.Fetch(key)
	if err != nil {
		h.log.Warnw("upstream fetch failed", "key", key, "err", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if isInt, n, b, err := decodeValue(raw); err == nil {
		if isInt {
			_, err = h.store.SetInt([]byte(key), n, h.upstreamTTL)
		} else {
			_, err = h.store.Set([]byte(key), b, h.upstreamTTL)
		}
		if err != nil {
			h.log.Warnw("upstream fill failed", "key", key, "err", err)
		}
	}
	return raw, true
}

func (h *Handler) listKeys(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	entries, err := h.store.GetByPrefix([]byte(prefix))
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp := keysResponse{Entries: make([]entryResponse, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, entryResponse{
			Key:   string(e.Key),
			Value: recordValue(e.Record),
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) setKey(w http.ResponseWriter, r *http.Request) {
	var req SetRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	isInt, n, b, err := decodeValue(req.Value)
	if err != nil {
		h.writeError(w, err)
		return
	}
	ttl := time.Duration(req.TTL) * time.Second
	if ttl < 0 {
		ttl = 0
	}
	var created bool
	if isInt {
		created, err = h.store.SetInt([]byte(req.Key), n, ttl)
	} else {
		created, err = h.store.Set([]byte(req.Key), b, ttl)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.writeJSON(w, status, successResponse{Success: true})
}

func (h *Handler) deleteKey(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete([]byte(chi.URLParam(r, "key"))); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// deleteKeys handles both prefix deletion and flush: a body with a
// non-empty prefix scopes the delete, anything else clears the store.
func (h *Handler) deleteKeys(w http.ResponseWriter, r *http.Request) {
	var req DeleteKeysRequest
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			h.writeError(w, errorf("invalid body: %v", err))
			return
		}
	}
	if req.Prefix == "" {
		err = h.store.Flush()
	} else {
		err = h.store.DeleteByPrefix([]byte(req.Prefix))
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *Handler) getTTL(w http.ResponseWriter, r *http.Request) {
	remaining, hasTTL, err := h.store.GetTTL([]byte(chi.URLParam(r, "key")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !hasTTL {
		h.writeJSON(w, http.StatusOK, ttlResponse{TTL: -1})
		return
	}
	// Round up so a freshly set TTL of n reads back as n.
	secs := int64((remaining + time.Second - 1) / time.Second)
	h.writeJSON(w, http.StatusOK, ttlResponse{TTL: secs})
}

// setTTL updates or clears a key's expiry. A negative TTL clears it (the
// key persists indefinitely); the key itself is never deleted here.
func (h *Handler) setTTL(w http.ResponseWriter, r *http.Request) {
	var req SetTTLRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	var err error
	if req.TTL < 0 {
		err = h.store.ClearTTL([]byte(req.Key))
	} else {
		err = h.store.SetTTL([]byte(req.Key), time.Duration(req.TTL)*time.Second)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *Handler) increment(w http.ResponseWriter, r *http.Request) {
	h.counterOp(w, r, h.store.Increment)
}

func (h *Handler) decrement(w http.ResponseWriter, r *http.Request) {
	h.counterOp(w, r, h.store.Decrement)
}

func (h *Handler) counterOp(w http.ResponseWriter, r *http.Request, op func([]byte, int64, *int64) (int64, error)) {
	var req CounterRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	n, err := op([]byte(chi.URLParam(r, "key")), req.Value, req.Default)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, counterResponse{Value: n})
}

func (h *Handler) getInfo(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.info)
}

// decodeBody decodes and validates a JSON request body, answering 400
// itself when that fails.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, errorf("invalid body: %v", err))
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		h.writeError(w, errorf("%v", err))
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warnw("response encode failed", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrKeyNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrInvalidArgument),
		errors.Is(err, store.ErrInvalidValueType),
		errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.log.Errorw("request failed", "err", err)
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// decodeValue interprets a JSON value as either an integer counter or an
// opaque string.
func decodeValue(raw json.RawMessage) (isInt bool, n int64, b []byte, err error) {
	if err := json.Unmarshal(raw, &n); err == nil {
		return true, n, nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return false, 0, []byte(s), nil
	}
	return false, 0, nil, errorf("value must be a string or an integer")
}

// recordValue renders a stored record as its JSON value.
func recordValue(rec store.Record) json.RawMessage {
	if rec.Kind == store.KindInteger {
		return json.RawMessage(rec.Value)
	}
	out, _ := json.Marshal(string(rec.Value))
	return out
}

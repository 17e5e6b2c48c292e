package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanko-field/storefront/internal/platform/auth"
)

var fixedTime = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store, err := NewRedisStore(client, "")
	require.NoError(t, err)
	return store, srv
}

func post(handler http.Handler, uid, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/bulk", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	if uid != "" {
		req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: uid}))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	code, _ := payload["error"].(string)
	return code
}

func TestMiddlewareReplaysStoredResponse(t *testing.T) {
	store, _ := newStore(t)
	calls := 0
	handler := Middleware(store, WithClock(func() time.Time { return fixedTime }))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"created":2}`))
	}))

	first := post(handler, "seller-1", "k-1", `{"items":[]}`)
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get(replayHeaderName))

	second := post(handler, "seller-1", "k-1", `{"items":[]}`)
	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get(replayHeaderName))
	assert.JSONEq(t, `{"created":2}`, second.Body.String())
}

func TestMiddlewareScopesKeysPerCaller(t *testing.T) {
	store, _ := newStore(t)
	calls := 0
	handler := Middleware(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	post(handler, "seller-1", "shared", `{}`)
	post(handler, "seller-2", "shared", `{}`)
	assert.Equal(t, 2, calls)
}

func TestMiddlewareRejectsReusedKeyWithDifferentBody(t *testing.T) {
	store, _ := newStore(t)
	handler := Middleware(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	post(handler, "seller-1", "k-1", `{"a":1}`)
	rec := post(handler, "seller-1", "k-1", `{"a":2}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "idempotency_key_conflict", errorCode(t, rec))
}

func TestMiddlewareWithoutKeyPassesThrough(t *testing.T) {
	store, srv := newStore(t)
	calls := 0
	handler := Middleware(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	post(handler, "seller-1", "", `{}`)
	post(handler, "seller-1", "", `{}`)
	assert.Equal(t, 2, calls)
	assert.Empty(t, srv.Keys())
}

func TestMiddlewareReleasesKeyOnServerError(t *testing.T) {
	store, _ := newStore(t)
	status := http.StatusServiceUnavailable
	calls := 0
	handler := Middleware(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(status)
	}))

	first := post(handler, "seller-1", "k-1", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, first.Code)

	status = http.StatusCreated
	second := post(handler, "seller-1", "k-1", `{}`)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, 2, calls)
}

func TestRedisStorePendingAndExpiry(t *testing.T) {
	store, srv := newStore(t)
	ctx := context.Background()

	res, err := store.Reserve(ctx, "k", "fp", fixedTime, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ReservationStateNew, res.State)

	res, err = store.Reserve(ctx, "k", "fp", fixedTime, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ReservationStatePending, res.State)

	srv.FastForward(2 * time.Minute)
	res, err = store.Reserve(ctx, "k", "fp", fixedTime, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ReservationStateNew, res.State)
}

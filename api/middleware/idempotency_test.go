package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/ministeam/ministeam-api/pkg/errors"
)

type replayStore struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newReplayStore() *replayStore {
	return &replayStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (s *replayStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (s *replayStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value.(string)
	s.ttls[key] = ttl
	return nil
}

func (s *replayStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.data[key]; taken {
		return false, nil
	}
	s.data[key] = value.(string)
	s.ttls[key] = ttl
	return true, nil
}

func (s *replayStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

func (s *replayStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func routed(method, path, pattern, body, key string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rc)
	return req.WithContext(WithUserID(ctx, "3f0c9d2e-0000-4000-8000-000000000001"))
}

func checkoutRequest(body, key string) *http.Request {
	return routed(http.MethodPost, "/api/v1/purchases", "/api/v1/purchases/*", body, key)
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestReplayTTLByRoute(t *testing.T) {
	cases := []struct {
		name    string
		method  string
		path    string
		pattern string
		ttl     time.Duration
		ok      bool
	}{
		{"checkout behind subrouter", http.MethodPost, "/api/v1/purchases", "/api/v1/purchases/*", checkoutReplayTTL, true},
		{"checkout full pattern", http.MethodPost, "/api/v1/purchases/", "/api/v1/purchases/", checkoutReplayTTL, true},
		{"payment status", http.MethodPatch, "/api/v1/purchases/abc/payment-status", "/api/v1/purchases/{purchaseId}/payment-status", paymentReplayTTL, true},
		{"purchase history", http.MethodGet, "/api/v1/purchases/my-purchases", "/api/v1/purchases/*", 0, false},
		{"cart add", http.MethodPost, "/api/v1/cart", "/api/v1/cart/*", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ttl, ok := replayTTL(routed(tc.method, tc.path, tc.pattern, "", ""))
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.ttl, ttl)
		})
	}
}

func TestIdempotencyWithoutHeaderRunsEveryTime(t *testing.T) {
	store := newReplayStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, checkoutRequest(`{"metodo_pago":"tarjeta"}`, ""))
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	require.Equal(t, 2, calls)
	require.Empty(t, store.data)
}

func TestIdempotencyReplaysFirstResponse(t *testing.T) {
	store := newReplayStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"p-1"}}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, checkoutRequest(`{"metodo_pago":"tarjeta"}`, "order-1"))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, checkoutRequest(`{"metodo_pago":"tarjeta"}`, "order-1"))

	require.Equal(t, 1, calls)
	require.Equal(t, http.StatusCreated, second.Code)
	require.Equal(t, "application/json", second.Header().Get("Content-Type"))
	require.Equal(t, "true", second.Header().Get(ReplayedHeader))
	require.Empty(t, first.Header().Get(ReplayedHeader))
	require.JSONEq(t, first.Body.String(), second.Body.String())
	for _, ttl := range store.ttls {
		require.Equal(t, checkoutReplayTTL, ttl)
	}
}

func TestIdempotencyRejectsDifferentBody(t *testing.T) {
	handler := Idempotency(newReplayStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), checkoutRequest(`{"metodo_pago":"tarjeta"}`, "order-2"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, checkoutRequest(`{"metodo_pago":"paypal"}`, "order-2"))

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, rec))
}

func TestIdempotencyDuplicateWhileInFlight(t *testing.T) {
	store := newReplayStore()
	var duplicate *httptest.ResponseRecorder
	var handler http.Handler
	handler = Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if duplicate == nil {
			duplicate = httptest.NewRecorder()
			handler.ServeHTTP(duplicate, checkoutRequest(`{"metodo_pago":"tarjeta"}`, "order-3"))
		}
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, checkoutRequest(`{"metodo_pago":"tarjeta"}`, "order-3"))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, http.StatusConflict, duplicate.Code)
	require.Equal(t, string(pkgerrors.CodeConflict), errorCode(t, duplicate))
}

func TestIdempotencyReleasesKeyAfterServerError(t *testing.T) {
	store := newReplayStore()
	status := http.StatusServiceUnavailable
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(status)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), checkoutRequest(`{}`, "order-4"))
	require.Empty(t, store.data)

	status = http.StatusCreated
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, checkoutRequest(`{}`, "order-4"))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, 2, calls)
	require.Len(t, store.data, 1)
}

func TestIdempotencyKeysAreScopedPerUser(t *testing.T) {
	store := newReplayStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), checkoutRequest(`{}`, "shared"))
	other := checkoutRequest(`{}`, "shared")
	other = other.WithContext(WithUserID(other.Context(), "3f0c9d2e-0000-4000-8000-000000000002"))
	handler.ServeHTTP(httptest.NewRecorder(), other)

	require.Equal(t, 2, calls)
}

func TestIdempotencyRejectsOversizedKey(t *testing.T) {
	handler := Idempotency(newReplayStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("handler must not run")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, checkoutRequest(`{}`, strings.Repeat("k", maxIdempotencyKey+1)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/ministeam/ministeam-api/pkg/errors"
)

type countingStore struct {
	mu      sync.Mutex
	hits    map[string]int64
	windows map[string]time.Duration
}

func newCountingStore() *countingStore {
	return &countingStore{hits: map[string]int64{}, windows: map[string]time.Duration{}}
}

func (s *countingStore) IncrWithTTL(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits[key]++
	s.windows[key] = window
	return s.hits[key], nil
}

func (s *countingStore) RateLimitKey(scope string) string {
	return "test:rate_limit:" + scope
}

func loginRequest(ip, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", strings.NewReader(body))
	req.RemoteAddr = ip + ":40000"
	return req
}

func TestAuthRateLimitKeepsBodyForHandler(t *testing.T) {
	store := newCountingStore()
	var seen string
	mw := AuthRateLimit(NewAuthRateLimitPolicy("login", time.Minute, 5, 5), store, nil)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		seen = string(raw)
		w.WriteHeader(http.StatusOK)
	}))

	body := `{"correo":"Ana@Example.com","contrasena":"hunter22"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("10.1.1.1", body))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, body, seen)
	require.Len(t, store.hits, 2)
	for key, window := range store.windows {
		require.True(t, strings.HasPrefix(key, "test:rate_limit:login:"), key)
		require.Equal(t, time.Minute, window)
		require.NotContains(t, strings.ToLower(key), "ana@example.com")
	}
}

func TestAuthRateLimitBlocksSameEmailAcrossIPs(t *testing.T) {
	handler := AuthRateLimit(NewAuthRateLimitPolicy("login", time.Minute, 0, 2), newCountingStore(), nil)(okHandler())

	codes := make([]int, 0, 3)
	for i, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		// Case and whitespace must not open a fresh bucket.
		email := []string{"dev@ministeam.io", " DEV@ministeam.io", "Dev@MiniSteam.io "}[i]
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest(ip, `{"correo":"`+email+`"}`))
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests {
			require.Equal(t, "60", rec.Header().Get("Retry-After"))
			var payload struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
			require.Equal(t, string(pkgerrors.CodeRateLimit), payload.Error.Code)
		}
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestAuthRateLimitBlocksByIP(t *testing.T) {
	handler := AuthRateLimit(NewAuthRateLimitPolicy("signup", time.Minute, 1, 0), newCountingStore(), nil)(okHandler())

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, loginRequest("192.168.0.9", `{"correo":"a@b.io"}`))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, loginRequest("192.168.0.9", `{"correo":"c@d.io"}`))
	other := httptest.NewRecorder()
	handler.ServeHTTP(other, loginRequest("192.168.0.10", `{"correo":"c@d.io"}`))

	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	require.Equal(t, http.StatusOK, other.Code)
}

func TestAuthRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	store := newCountingStore()
	handler := AuthRateLimit(NewAuthRateLimitPolicy("login", 0, 1, 1), store, nil)(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest("10.0.0.1", `{"correo":"x@y.io"}`))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	require.Empty(t, store.hits)
}

func TestClientIPPrefersForwardedHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "172.16.0.1:9999"
	require.Equal(t, "172.16.0.1", clientIP(req))

	req.Header.Set("X-Real-IP", "203.0.113.7")
	require.Equal(t, "203.0.113.7", clientIP(req))

	req.Header.Set("X-Forwarded-For", " 198.51.100.4 , 10.0.0.1")
	require.Equal(t, "198.51.100.4", clientIP(req))
}

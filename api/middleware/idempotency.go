package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/ministeam/ministeam-api/api/responses"
	pkgerrors "github.com/ministeam/ministeam-api/pkg/errors"
	"github.com/ministeam/ministeam-api/pkg/logger"
	pkgredis "github.com/ministeam/ministeam-api/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayedHeader    = "Idempotent-Replayed"

	checkoutReplayTTL = 7 * 24 * time.Hour
	paymentReplayTTL  = 24 * time.Hour
	maxIdempotencyKey = 128
)

// replayable lists the routes that accept Idempotency-Key. Patterns are
// chi route patterns, so path parameters match by name.
var replayable = []struct {
	method string
	match  func(pattern string) bool
	ttl    time.Duration
}{
	{http.MethodPost, func(p string) bool { return strings.TrimSuffix(p, "/") == "/api/v1/purchases" }, checkoutReplayTTL},
	{http.MethodPatch, func(p string) bool { return strings.HasSuffix(p, "/payment-status") }, paymentReplayTTL},
}

type replayState string

const (
	replayPending replayState = "pending"
	replayDone    replayState = "done"
)

// replayRecord is the JSON value kept under the idempotency key.
type replayRecord struct {
	State       replayState `json:"state"`
	Fingerprint string      `json:"fingerprint"`
	Status      int         `json:"status,omitempty"`
	ContentType string      `json:"content_type,omitempty"`
	Body        []byte      `json:"body,omitempty"`
}

// Idempotency replays the first response for a repeated Idempotency-Key on
// the replayable routes. The key is scoped to the caller and path. Reusing it
// with a different body is rejected, and a duplicate that arrives while the
// first request is still running gets 409. Server errors release the key.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := replayTTL(r)
			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if !ok || clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			if len(clientKey) > maxIdempotencyKey {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key is too long"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			key := store.IdempotencyKey(UserIDFromContext(ctx)+"|"+r.Method+"|"+r.URL.Path, clientKey)
			fingerprint := fingerprintOf(body)

			reserved, err := reserve(ctx, store, key, fingerprint, ttl)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency store"))
				return
			}
			if !reserved {
				replayExisting(ctx, store, logg, w, key, fingerprint)
				return
			}

			capture := &capturingWriter{ResponseWriter: w}
			next.ServeHTTP(capture, r)
			settle(ctx, store, logg, key, fingerprint, ttl, capture)
		})
	}
}

// replayTTL checks the chi pattern and the raw path. Middleware mounted above
// a subrouter only sees a partial pattern such as "/api/v1/purchases/*".
func replayTTL(r *http.Request) (time.Duration, bool) {
	candidates := []string{r.URL.Path}
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			candidates = append(candidates, p)
		}
	}
	for _, route := range replayable {
		if route.method != r.Method {
			continue
		}
		for _, c := range candidates {
			if route.match(c) {
				return route.ttl, true
			}
		}
	}
	return 0, false
}

// reserve claims key with a pending marker. false means someone already holds it.
func reserve(ctx context.Context, store pkgredis.IdempotencyStore, key, fingerprint string, ttl time.Duration) (bool, error) {
	marker, err := json.Marshal(replayRecord{State: replayPending, Fingerprint: fingerprint})
	if err != nil {
		return false, err
	}
	return store.SetNX(ctx, key, string(marker), ttl)
}

func replayExisting(ctx context.Context, store pkgredis.IdempotencyStore, logg *logger.Logger, w http.ResponseWriter, key, fingerprint string) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// The holder failed and released the key between SetNX and Get.
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key is still in progress"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency store"))
		return
	}

	var rec replayRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "corrupt idempotency record"))
		return
	}
	switch {
	case rec.Fingerprint != fingerprint:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "Idempotency-Key was already used with a different request body"))
	case rec.State != replayDone:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key is still in progress"))
	default:
		if rec.ContentType != "" {
			w.Header().Set("Content-Type", rec.ContentType)
		}
		w.Header().Set(ReplayedHeader, "true")
		w.WriteHeader(rec.Status)
		_, _ = w.Write(rec.Body)
	}
}

// settle stores the finished response, or frees the key after a server error
// so the client can retry with the same key.
func settle(ctx context.Context, store pkgredis.IdempotencyStore, logg *logger.Logger, key, fingerprint string, ttl time.Duration, capture *capturingWriter) {
	// The client may have gone away; the record must still be written.
	ctx = context.WithoutCancel(ctx)

	status := capture.statusCode()
	if status >= http.StatusInternalServerError {
		if err := store.Del(ctx, key); err != nil && logg != nil {
			logg.Error(ctx, "release idempotency key", err)
		}
		return
	}

	raw, err := json.Marshal(replayRecord{
		State:       replayDone,
		Fingerprint: fingerprint,
		Status:      status,
		ContentType: capture.Header().Get("Content-Type"),
		Body:        capture.body.Bytes(),
	})
	if err == nil {
		err = store.Set(ctx, key, string(raw), ttl)
	}
	if err != nil && logg != nil {
		logg.Error(ctx, "store idempotent response", err)
	}
}

func fingerprintOf(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

type capturingWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *capturingWriter) WriteHeader(status int) {
	if c.status == 0 {
		c.status = status
	}
	c.ResponseWriter.WriteHeader(status)
}

func (c *capturingWriter) Write(p []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(p)
	return c.ResponseWriter.Write(p)
}

func (c *capturingWriter) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

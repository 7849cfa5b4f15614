// Package responses writes the JSON envelopes every endpoint returns:
// {"data": ...} on success and {"error": {...}} on failure.
package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"

	zlog "github.com/rs/zerolog/log"

	pkgerrors "github.com/ministeam/ministeam-api/pkg/errors"
	"github.com/ministeam/ministeam-api/pkg/logger"
)

type Envelope struct {
	Data any `json:"data"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

var exposeDebug atomic.Bool

// EnableDebugDetails adds the inspected error chain to error bodies. Never
// enable it in production.
func EnableDebugDetails(enabled bool) {
	exposeDebug.Store(enabled)
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{Data: data})
}

func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteError maps err to its status via the pkg/errors policy. Untyped
// errors become INTERNAL_ERROR and never leak their text.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("nil error written as response")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unclassified error")
		err = typed
	}
	policy := pkgerrors.PolicyFor(typed.Code())

	body := ErrorBody{Code: string(typed.Code()), Message: policy.Fallback}
	if policy.ExposeMessage && typed.Message() != "" {
		body.Message = typed.Message()
	}
	if policy.ExposeDetails {
		body.Details = typed.Details()
	}

	report := pkgerrors.Inspect(err)
	if exposeDebug.Load() {
		body.Details = map[string]any{"details": body.Details, "debug": report}
	}

	if logg != nil {
		logCtx := logg.WithFields(ctx, report.Fields())
		if policy.Status >= http.StatusInternalServerError {
			logg.Error(logCtx, "request failed", err)
		} else {
			logg.Warn(logg.WithField(logCtx, "status", policy.Status), "request rejected")
		}
	}

	writeJSON(w, policy.Status, ErrorEnvelope{Error: body})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zlog.Error().Err(err).Int("status", status).Msg("encode response body")
	}
}

package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/ministeam/ministeam-api/pkg/errors"
	"github.com/ministeam/ministeam-api/pkg/pagination"
)

const maxPage = 1 << 20

// optional parses the query parameter key with parse. An absent or blank
// parameter yields nil.
func optional[T any](r *http.Request, key, kind string, parse func(string) (T, error)) (*T, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	value, err := parse(raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be "+kind).
			WithDetails(map[string]any{"field": key})
	}
	return &value, nil
}

// ParseQueryInt returns fallback when key is absent and rejects values
// outside [lo, hi].
func ParseQueryInt(r *http.Request, key string, fallback, lo, hi int) (int, error) {
	value, err := optional(r, key, "numeric", strconv.Atoi)
	if err != nil || value == nil {
		return fallback, err
	}
	if *value < lo || *value > hi {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").
			WithDetails(map[string]any{"field": key, "min": lo, "max": hi})
	}
	return *value, nil
}

// ParsePage reads page and limit. Zero values are left for the service
// defaults to fill in.
func ParsePage(r *http.Request) (pagination.Params, error) {
	page, err := ParseQueryInt(r, "page", 0, 1, maxPage)
	if err != nil {
		return pagination.Params{}, err
	}
	limit, err := ParseQueryInt(r, "limit", 0, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{Page: page, Limit: limit}, nil
}

func ParseQueryDecimal(r *http.Request, key string) (*decimal.Decimal, error) {
	return optional(r, key, "a number", decimal.NewFromString)
}

func ParseQueryBool(r *http.Request, key string) (*bool, error) {
	return optional(r, key, "a boolean", strconv.ParseBool)
}

func ParseQueryUUID(r *http.Request, key string) (*uuid.UUID, error) {
	return optional(r, key, "a uuid", uuid.Parse)
}

// ParseUUIDParam reads a chi URL parameter as a uuid.
func ParseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	value, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, name)))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid identifier").
			WithDetails(map[string]any{"field": name})
	}
	return value, nil
}

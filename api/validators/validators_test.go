package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/ministeam/ministeam-api/pkg/errors"
)

func TestParsePageDefaultsToZero(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/games", nil)
	params, err := ParsePage(req)
	require.NoError(t, err)
	require.Zero(t, params.Page)
	require.Zero(t, params.Limit)
}

func TestParsePageRejectsOutOfRange(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/games?page=1&limit=500", nil)
	_, err := ParsePage(req)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/games?page=abc", nil)
	_, err = ParsePage(req)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseOptionalQueryValues(t *testing.T) {
	genreID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/games?precio_min=9.99&activo=false&id_genero="+genreID.String(), nil)

	price, err := ParseQueryDecimal(req, "precio_min")
	require.NoError(t, err)
	require.Equal(t, "9.99", price.String())

	missing, err := ParseQueryDecimal(req, "precio_max")
	require.NoError(t, err)
	require.Nil(t, missing)

	active, err := ParseQueryBool(req, "activo")
	require.NoError(t, err)
	require.False(t, *active)

	parsed, err := ParseQueryUUID(req, "id_genero")
	require.NoError(t, err)
	require.Equal(t, genreID, *parsed)
}

func TestParseOptionalQueryValuesRejectGarbage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?precio_min=cheap&activo=maybe&id_genero=nope", nil)

	_, err := ParseQueryDecimal(req, "precio_min")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = ParseQueryBool(req, "activo")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = ParseQueryUUID(req, "id_genero")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("gameId", id.String())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/games/"+id.String(), nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	got, err := ParseUUIDParam(req, "gameId")
	require.NoError(t, err)
	require.Equal(t, id, got)

	_, err = ParseUUIDParam(req, "userId")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

type reviewBody struct {
	Puntuacion int    `json:"puntuacion" validate:"required,gte=1,lte=10"`
	Comentario string `json:"comentario" validate:"omitempty,max=2000"`
}

func TestDecodeJSONBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"puntuacion":8,"comentario":"great"}`))
	var body reviewBody
	require.NoError(t, DecodeJSONBody(req, &body))
	require.Equal(t, 8, body.Puntuacion)
}

func TestDecodeJSONBodyErrors(t *testing.T) {
	cases := map[string]string{
		"empty":   ``,
		"unknown": `{"puntuacion":8,"extra":true}`,
		"range":   `{"puntuacion":11}`,
		"syntax":  `{"puntuacion":`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
			var body reviewBody
			err := DecodeJSONBody(req, &body)
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
		})
	}
}

func TestDecodeJSONBodyReportsFieldByJSONName(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"puntuacion":0}`))
	var body reviewBody
	err := DecodeJSONBody(req, &body)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	require.Contains(t, details, "puntuacion")
}

func TestDecodeJSONBodyRejectsTrailingAndOversizedInput(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"puntuacion":8}{"puntuacion":9}`))
	var body reviewBody
	err := DecodeJSONBody(req, &body)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	huge := `{"puntuacion":8,"comentario":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(huge))
	err = DecodeJSONBody(req, &body)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Equal(t, "request body too large", pkgerrors.As(err).Message())
}

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"  zelda  ", 50, "zelda"},
		{"hollow\t\n  knight", 0, "hollow knight"},
		{"mario\x00kart", 0, "mariokart"},
		{"pokémon", 4, "poké"},
		{"dark souls", 5, "dark"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, SanitizeString(tc.in, tc.max), tc.in)
	}
}

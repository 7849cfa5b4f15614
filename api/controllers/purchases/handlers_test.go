package purchases

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ministeam/ministeam-api/api/middleware"
	"github.com/ministeam/ministeam-api/internal/checkout"
	purchasesvc "github.com/ministeam/ministeam-api/internal/purchases"
	"github.com/ministeam/ministeam-api/pkg/db/dbtest"
	"github.com/ministeam/ministeam-api/pkg/db/models"
	"github.com/ministeam/ministeam-api/pkg/outbox"
)

type openLocker struct{}

func (openLocker) LockKey(scope, id string) string { return scope + ":" + id }

func (openLocker) AcquireLock(context.Context, string, string, time.Duration) (bool, error) {
	return true, nil
}

func (openLocker) ReleaseLock(context.Context, string, string) (bool, error) { return true, nil }

func newCheckout(t *testing.T) (checkout.Service, *gorm.DB) {
	t.Helper()
	client, conn := dbtest.Client(t)
	events := outbox.NewWriter(outbox.NewRepository(conn), nil)
	ledger, err := purchasesvc.NewService(purchasesvc.ServiceParams{
		DB:     client,
		Repo:   purchasesvc.NewRepository(conn),
		Outbox: events,
	})
	require.NoError(t, err)
	svc, err := checkout.NewService(checkout.ServiceParams{
		DB:        client,
		Locker:    openLocker{},
		Outbox:    events,
		Purchases: ledger,
	})
	require.NoError(t, err)
	return svc, conn
}

func postCheckout(handler http.Handler, userID uuid.UUID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/purchases", strings.NewReader(body))
	ctx := middleware.WithUserID(req.Context(), userID.String())
	ctx = middleware.WithRole(ctx, "customer")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req.WithContext(ctx))
	return resp
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope.Error.Code
}

func TestCheckoutStatusMapping(t *testing.T) {
	svc, conn := newCheckout(t)
	handler := Checkout(svc, nil)
	user := dbtest.SeedUser(t, conn, "buyer")
	game := dbtest.SeedGame(t, conn, "Outer Rim", "29.99")

	resp := postCheckout(handler, user.ID, `{}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Equal(t, "VALIDATION_ERROR", errorCode(t, resp))

	resp = postCheckout(handler, user.ID, `{"metodo_pago":"tarjeta"}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Equal(t, "INVALID_STATE", errorCode(t, resp))

	var purchases int64
	require.NoError(t, conn.Model(&models.Purchase{}).Count(&purchases).Error)
	require.Zero(t, purchases)

	require.NoError(t, conn.Create(&models.CartItem{UserID: user.ID, GameID: game.ID, CreatedAt: time.Now()}).Error)
	resp = postCheckout(handler, user.ID, `{"metodo_pago":"tarjeta"}`)
	require.Equal(t, http.StatusCreated, resp.Code)

	var envelope struct {
		Data struct {
			ID    uuid.UUID `json:"id"`
			Total string    `json:"total"`
			Items []struct {
				GameID uuid.UUID `json:"game_id"`
			} `json:"items"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.NotEqual(t, uuid.Nil, envelope.Data.ID)
	require.True(t, decimal.RequireFromString("29.99").Equal(decimal.RequireFromString(envelope.Data.Total)))
	require.Len(t, envelope.Data.Items, 1)
	require.Equal(t, game.ID, envelope.Data.Items[0].GameID)
}

package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ministeam/ministeam-api/api/middleware"
	cartsvc "github.com/ministeam/ministeam-api/internal/cart"
	pkgerrors "github.com/ministeam/ministeam-api/pkg/errors"
)

type stubCartService struct {
	cart      *cartsvc.CartDTO
	err       error
	lastAdd   cartsvc.AddItemRequest
	lastUser  uuid.UUID
	removedID uuid.UUID
}

func (s *stubCartService) GetCart(ctx context.Context, userID uuid.UUID) (*cartsvc.CartDTO, error) {
	s.lastUser = userID
	return s.cart, s.err
}

func (s *stubCartService) AddItem(ctx context.Context, userID uuid.UUID, req cartsvc.AddItemRequest) (*cartsvc.CartDTO, error) {
	s.lastUser = userID
	s.lastAdd = req
	return s.cart, s.err
}

func (s *stubCartService) RemoveItem(ctx context.Context, userID, gameID uuid.UUID) (*cartsvc.CartDTO, error) {
	s.lastUser = userID
	s.removedID = gameID
	return s.cart, s.err
}

func (s *stubCartService) ClearCart(ctx context.Context, userID uuid.UUID) (*cartsvc.CartDTO, error) {
	s.lastUser = userID
	return s.cart, s.err
}

func withActor(req *http.Request, userID uuid.UUID) *http.Request {
	ctx := middleware.WithUserID(req.Context(), userID.String())
	ctx = middleware.WithRole(ctx, "customer")
	return req.WithContext(ctx)
}

func sampleCart() *cartsvc.CartDTO {
	cart := cartsvc.Summarize([]cartsvc.ItemDTO{
		{GameID: uuid.New(), Title: "Hades", Price: decimal.RequireFromString("24.99")},
		{GameID: uuid.New(), Title: "Celeste", Price: decimal.RequireFromString("19.99")},
	})
	return &cart
}

func TestCartFetchSuccess(t *testing.T) {
	userID := uuid.New()
	svc := &stubCartService{cart: sampleCart()}
	handler := CartFetch(svc, nil)

	req := withActor(httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil), userID)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data struct {
			Items     []json.RawMessage `json:"items"`
			Total     string            `json:"total"`
			ItemCount int               `json:"itemCount"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ItemCount != 2 || len(envelope.Data.Items) != 2 {
		t.Fatalf("unexpected item count: %d", envelope.Data.ItemCount)
	}
	if envelope.Data.Total != "44.98" {
		t.Fatalf("unexpected total: %s", envelope.Data.Total)
	}
	if svc.lastUser != userID {
		t.Fatalf("service called for %s, expected %s", svc.lastUser, userID)
	}
}

func TestCartFetchWithoutActor(t *testing.T) {
	handler := CartFetch(&stubCartService{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCartAddCreated(t *testing.T) {
	gameID := uuid.New()
	svc := &stubCartService{cart: sampleCart()}
	handler := CartAdd(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart", strings.NewReader(`{"id_juego":"`+gameID.String()+`"}`))
	req = withActor(req, uuid.New())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	if svc.lastAdd.GameID != gameID.String() {
		t.Fatalf("unexpected game id forwarded: %s", svc.lastAdd.GameID)
	}
}

func TestCartAddMapsServiceErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"owned", pkgerrors.New(pkgerrors.CodeConflict, "game already owned"), http.StatusConflict},
		{"missing", pkgerrors.New(pkgerrors.CodeNotFound, "game not found"), http.StatusNotFound},
		{"invalid", pkgerrors.New(pkgerrors.CodeValidation, "id_juego is required"), http.StatusBadRequest},
	}
	for _, tc := range cases {
		handler := CartAdd(&stubCartService{err: tc.err}, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cart", strings.NewReader(`{"id_juego":"`+uuid.NewString()+`"}`))
		req = withActor(req, uuid.New())
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != tc.want {
			t.Fatalf("%s: expected %d got %d", tc.name, tc.want, resp.Code)
		}
	}
}

func TestCartAddRejectsUnknownFields(t *testing.T) {
	svc := &stubCartService{cart: sampleCart()}
	handler := CartAdd(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart", strings.NewReader(`{"id_juego":"x","cantidad":2}`))
	req = withActor(req, uuid.New())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ministeam/ministeam-api/internal/genres"
	"github.com/ministeam/ministeam-api/internal/users"
	pkgAuth "github.com/ministeam/ministeam-api/pkg/auth"
	"github.com/ministeam/ministeam-api/pkg/auth/session"
	"github.com/ministeam/ministeam-api/pkg/config"
	"github.com/ministeam/ministeam-api/pkg/enums"
	"github.com/ministeam/ministeam-api/pkg/logger"
	"github.com/ministeam/ministeam-api/pkg/metrics"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubSessionManager struct{}

func (stubSessionManager) HasSession(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

type stubGenreService struct{}

func (stubGenreService) List(ctx context.Context) ([]genres.GenreDTO, error) {
	return []genres.GenreDTO{{ID: uuid.New(), Name: "RPG"}}, nil
}

func (stubGenreService) Get(ctx context.Context, id uuid.UUID) (*genres.GenreDTO, error) {
	return &genres.GenreDTO{ID: id, Name: "RPG"}, nil
}

func (stubGenreService) Create(ctx context.Context, req genres.CreateGenreRequest) (*genres.GenreDTO, error) {
	return &genres.GenreDTO{ID: uuid.New(), Name: req.Name}, nil
}

func (stubGenreService) Update(ctx context.Context, id uuid.UUID, req genres.UpdateGenreRequest) (*genres.GenreDTO, error) {
	return &genres.GenreDTO{ID: id}, nil
}

func (stubGenreService) Delete(ctx context.Context, id uuid.UUID) error {
	return nil
}

type stubUserService struct{}

func (stubUserService) Profile(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error) {
	return &users.UserDTO{ID: userID, Username: "player1", Role: enums.UserRoleCustomer}, nil
}

func (stubUserService) Get(ctx context.Context, id uuid.UUID) (*users.UserDTO, error) {
	return &users.UserDTO{ID: id}, nil
}

func (stubUserService) Update(ctx context.Context, actorID uuid.UUID, actorRole enums.UserRole, targetID uuid.UUID, req users.UpdateUserRequest) (*users.UserDTO, error) {
	return &users.UserDTO{ID: targetID}, nil
}

func (stubUserService) List(ctx context.Context, params users.ListParams) (*users.ListResult, error) {
	return &users.ListResult{}, nil
}

func (stubUserService) Delete(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (stubUserService) Stats(ctx context.Context) (*users.Stats, error) {
	return &users.Stats{Total: 3}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:                 "secret",
			Issuer:                 "issuer",
			ExpirationMinutes:      60,
			RefreshTokenTTLMinutes: 120,
		},
	}
}

func newTestRouter(cfg *config.Config, reg *prometheus.Registry) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	var gatherer prometheus.Gatherer
	var httpMetrics *metrics.HTTPMetrics
	if reg != nil {
		gatherer = reg
		httpMetrics = metrics.NewHTTPMetrics(reg)
	}
	return NewRouter(
		cfg,
		logg,
		stubPinger{},
		nil,
		stubSessionManager{},
		gatherer,
		httpMetrics,
		Services{
			Genres: stubGenreService{},
			Users:  stubUserService{},
		},
	)
}

func buildToken(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
		JTI:    session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthRoutes(t *testing.T) {
	router := newTestRouter(testConfig(), nil)
	for _, path := range []string{"/health/live", "/health/ready"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestPublicCatalogNeedsNoToken(t *testing.T) {
	router := newTestRouter(testConfig(), nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/genres", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"RPG"`) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestProtectedRoutesRejectMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig(), nil)
	cases := []struct{ method, path string }{
		{http.MethodGet, "/api/v1/cart"},
		{http.MethodPost, "/api/v1/purchases"},
		{http.MethodGet, "/api/v1/library"},
		{http.MethodGet, "/api/v1/users/profile"},
		{http.MethodPost, "/api/v1/genres"},
	}
	for _, tc := range cases {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(tc.method, tc.path, nil))
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401 got %d", tc.method, tc.path, resp.Code)
		}
	}
}

func TestProfileWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/profile", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleCustomer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, nil)

	customer := httptest.NewRequest(http.MethodGet, "/api/v1/users/stats", nil)
	customer.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleCustomer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, customer)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer got %d", resp.Code)
	}

	admin := httptest.NewRequest(http.MethodGet, "/api/v1/users/stats", nil)
	admin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleAdmin))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d", resp.Code)
	}

	create := httptest.NewRequest(http.MethodPost, "/api/v1/genres", strings.NewReader(`{"nombre":"Puzzle"}`))
	create.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleAdmin))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, create)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 for admin genre create got %d", resp.Code)
	}
}

func TestMetricsEndpointExportsRequestCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	router := newTestRouter(testConfig(), reg)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/genres", nil))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `ministeam_http_requests_total{method="GET",route="/api/v1/genres",status="200"} 1`) {
		t.Fatalf("request counter missing from metrics output:\n%s", resp.Body.String())
	}
}

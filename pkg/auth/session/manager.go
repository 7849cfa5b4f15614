// Package session ties each issued access token (by its jti) to a refresh
// token kept in redis. Deleting the entry revokes both.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ministeam/ministeam-api/pkg/config"
)

var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	errNoAccessID          = errors.New("session: access id is required")
)

// Backend is the redis surface sessions are stored on.
type Backend interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
}

// AccessSessionChecker is the read-only view the auth middleware uses.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// Manager stores only a digest of each refresh token, so a redis dump cannot
// be replayed against /refresh.
type Manager struct {
	backend Backend
	ttl     time.Duration
}

// NewManager requires the refresh TTL to outlive the access token TTL.
func NewManager(backend Backend, cfg config.JWTConfig) (*Manager, error) {
	if backend == nil {
		return nil, errors.New("session: backend is required")
	}
	refreshTTL := cfg.RefreshTokenTTL()
	accessTTL := cfg.AccessTokenTTL()
	switch {
	case refreshTTL <= 0:
		return nil, errors.New("session: refresh token ttl must be positive")
	case refreshTTL <= accessTTL:
		return nil, fmt.Errorf("session: refresh ttl %s must exceed access ttl %s", refreshTTL, accessTTL)
	}
	return &Manager{backend: backend, ttl: refreshTTL}, nil
}

// NewAccessID returns a fresh jti.
func NewAccessID() string {
	return uuid.NewString()
}

// Generate opens a session for accessID and returns its refresh token.
func (m *Manager) Generate(ctx context.Context, accessID string) (string, error) {
	if blank(accessID) {
		return "", errNoAccessID
	}
	return m.open(ctx, accessID)
}

// Rotate trades a valid (accessID, refresh) pair for a new pair. The old
// session is closed only after the new one is stored.
func (m *Manager) Rotate(ctx context.Context, accessID, refresh string) (string, string, error) {
	if blank(accessID) || blank(refresh) {
		return "", "", ErrInvalidRefreshToken
	}
	key := m.backend.AccessSessionKey(accessID)
	stored, err := m.backend.Get(ctx, key)
	if errors.Is(err, goredis.Nil) {
		return "", "", ErrInvalidRefreshToken
	}
	if err != nil {
		return "", "", fmt.Errorf("session: load: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(digest(refresh))) != 1 {
		return "", "", ErrInvalidRefreshToken
	}

	nextID := NewAccessID()
	nextRefresh, err := m.open(ctx, nextID)
	if err != nil {
		return "", "", err
	}
	if err := m.backend.Del(ctx, key); err != nil {
		return "", "", fmt.Errorf("session: close previous: %w", err)
	}
	return nextID, nextRefresh, nil
}

func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if blank(accessID) {
		return errNoAccessID
	}
	return m.backend.Del(ctx, m.backend.AccessSessionKey(accessID))
}

func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if blank(accessID) {
		return false, errNoAccessID
	}
	_, err := m.backend.Get(ctx, m.backend.AccessSessionKey(accessID))
	switch {
	case errors.Is(err, goredis.Nil):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

func (m *Manager) open(ctx context.Context, accessID string) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("session: random token: %w", err)
	}
	refresh := base64.RawURLEncoding.EncodeToString(raw)
	if err := m.backend.Set(ctx, m.backend.AccessSessionKey(accessID), digest(refresh), m.ttl); err != nil {
		return "", fmt.Errorf("session: store: %w", err)
	}
	return refresh, nil
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

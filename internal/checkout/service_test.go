package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ministeam/ministeam-api/internal/purchases"
	"github.com/ministeam/ministeam-api/pkg/db/dbtest"
	"github.com/ministeam/ministeam-api/pkg/db/models"
	"github.com/ministeam/ministeam-api/pkg/enums"
	pkgerrors "github.com/ministeam/ministeam-api/pkg/errors"
	"github.com/ministeam/ministeam-api/pkg/metrics"
	"github.com/ministeam/ministeam-api/pkg/outbox"
)

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]string
	released []string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]string{}}
}

func (f *fakeLocker) LockKey(scope, id string) string {
	return "ms:lock:" + scope + ":" + id
}

func (f *fakeLocker) AcquireLock(_ context.Context, key, token string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.held[key]; ok {
		return false, nil
	}
	f.held[key] = token
	return true, nil
}

func (f *fakeLocker) ReleaseLock(_ context.Context, key, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] != token {
		return false, nil
	}
	delete(f.held, key)
	f.released = append(f.released, key)
	return true, nil
}

type failingEmitter struct{}

func (failingEmitter) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error {
	return errors.New("outbox unavailable")
}

type harness struct {
	svc    Service
	conn   *gorm.DB
	locker *fakeLocker
	reg    *prometheus.Registry
}

func newHarness(t *testing.T, emitter outbox.Emitter) harness {
	t.Helper()
	client, conn := dbtest.Client(t)
	events := outbox.NewWriter(outbox.NewRepository(conn), nil)
	if emitter == nil {
		emitter = events
	}
	ledger, err := purchases.NewService(purchases.ServiceParams{
		DB:     client,
		Repo:   purchases.NewRepository(conn),
		Outbox: events,
	})
	require.NoError(t, err)
	locker := newFakeLocker()
	reg := prometheus.NewRegistry()
	svc, err := NewService(ServiceParams{
		DB:        client,
		Locker:    locker,
		Outbox:    emitter,
		Purchases: ledger,
		Metrics:   metrics.NewCheckoutMetrics(reg),
	})
	require.NoError(t, err)
	return harness{svc: svc, conn: conn, locker: locker, reg: reg}
}

func (h harness) addToCart(t *testing.T, userID, gameID uuid.UUID, at time.Time) {
	t.Helper()
	require.NoError(t, h.conn.Create(&models.CartItem{UserID: userID, GameID: gameID, CreatedAt: at}).Error)
}

func (h harness) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.conn.Model(model).Count(&n).Error)
	return n
}

func (h harness) outcomes(t *testing.T) map[string]float64 {
	t.Helper()
	families, err := h.reg.Gather()
	require.NoError(t, err)
	out := map[string]float64{}
	for _, family := range families {
		if family.GetName() != "ministeam_checkout_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			out[labelValue(metric, "outcome")] = metric.GetCounter().GetValue()
		}
	}
	return out
}

func labelValue(metric *dto.Metric, name string) string {
	for _, label := range metric.GetLabel() {
		if label.GetName() == name {
			return label.GetValue()
		}
	}
	return ""
}

func TestCheckoutConvertsCart(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	user := dbtest.SeedUser(t, h.conn, "buyer")
	cheap := dbtest.SeedGame(t, h.conn, "Cheap", "4.99")
	pricey := dbtest.SeedGame(t, h.conn, "Pricey", "59.99")
	base := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	h.addToCart(t, user.ID, cheap.ID, base)
	h.addToCart(t, user.ID, pricey.ID, base.Add(time.Minute))

	notes := "gift"
	purchase, err := h.svc.Execute(ctx, user.ID, Request{PaymentMethod: "card", Notes: &notes})
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusCompleted, purchase.PaymentStatus)
	require.True(t, decimal.RequireFromString("64.98").Equal(purchase.Total))
	require.Equal(t, "gift", *purchase.Notes)
	require.Len(t, purchase.Items, 2)
	require.Equal(t, "Pricey", purchase.Items[0].Title, "line items follow cart order")
	require.Equal(t, "Cheap", purchase.Items[1].Title)

	var entries []models.LibraryEntry
	require.NoError(t, h.conn.Where("user_id = ?", user.ID).Find(&entries).Error)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		require.Equal(t, purchase.ID, *entry.PurchaseID)
		require.Equal(t, enums.LibraryStatusNotStarted, entry.Status)
	}
	require.Zero(t, h.count(t, &models.CartItem{}))

	var events []models.OutboxEvent
	require.NoError(t, h.conn.Find(&events).Error)
	require.Len(t, events, 1)
	require.Equal(t, enums.EventPurchaseCompleted, events[0].EventType)
	require.Equal(t, purchase.ID, events[0].AggregateID)

	require.NoError(t, h.conn.Model(&models.Game{}).Where("id = ?", pricey.ID).Update("price", decimal.RequireFromString("10.00")).Error)
	var line models.PurchaseLineItem
	require.NoError(t, h.conn.Where("purchase_id = ? AND game_id = ?", purchase.ID, pricey.ID).First(&line).Error)
	require.True(t, decimal.RequireFromString("59.99").Equal(line.PricePaid), "price paid is a snapshot")

	require.Len(t, h.locker.released, 1)
	require.Empty(t, h.locker.held)
	require.Equal(t, float64(1), h.outcomes(t)[metrics.CheckoutOutcomeCompleted])
}

func TestCheckoutRejectsInvalidRequests(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	user := dbtest.SeedUser(t, h.conn, "empty")

	_, err := h.svc.Execute(ctx, user.ID, Request{PaymentMethod: "  "})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = h.svc.Execute(ctx, user.ID, Request{PaymentMethod: "card"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidState))
	require.Equal(t, "cart is empty", pkgerrors.As(err).Message())

	require.Zero(t, h.count(t, &models.Purchase{}))
	outcomes := h.outcomes(t)
	require.Equal(t, float64(1), outcomes[metrics.CheckoutOutcomeRejected])
	require.Equal(t, float64(1), outcomes[metrics.CheckoutOutcomeEmptyCart])
}

func TestCheckoutFailsWhileLockHeld(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	user := dbtest.SeedUser(t, h.conn, "racer")
	game := dbtest.SeedGame(t, h.conn, "Contested", "9.99")
	h.addToCart(t, user.ID, game.ID, time.Now().UTC())

	h.locker.held[h.locker.LockKey("checkout", user.ID.String())] = "other-request"

	_, err := h.svc.Execute(ctx, user.ID, Request{PaymentMethod: "card"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	require.Zero(t, h.count(t, &models.Purchase{}))
	require.Zero(t, h.count(t, &models.LibraryEntry{}))
	require.Equal(t, int64(1), h.count(t, &models.CartItem{}))
	require.Equal(t, float64(1), h.outcomes(t)[metrics.CheckoutOutcomeLocked])
}

func TestCheckoutConflictsOnOwnedGame(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	user := dbtest.SeedUser(t, h.conn, "owner")
	owned := dbtest.SeedGame(t, h.conn, "Already Mine", "15.00")
	fresh := dbtest.SeedGame(t, h.conn, "Fresh", "15.00")
	dbtest.SeedLibraryEntry(t, h.conn, user.ID, owned.ID)
	h.addToCart(t, user.ID, owned.ID, time.Now().UTC())
	h.addToCart(t, user.ID, fresh.ID, time.Now().UTC())

	_, err := h.svc.Execute(ctx, user.ID, Request{PaymentMethod: "card"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	require.Zero(t, h.count(t, &models.Purchase{}))
	require.Equal(t, int64(1), h.count(t, &models.LibraryEntry{}))
	require.Equal(t, int64(2), h.count(t, &models.CartItem{}))
	require.Empty(t, h.locker.held, "lock is released on failure")
}

func TestCheckoutRollsBackOnLateFailure(t *testing.T) {
	h := newHarness(t, failingEmitter{})
	ctx := context.Background()
	user := dbtest.SeedUser(t, h.conn, "unlucky")
	game := dbtest.SeedGame(t, h.conn, "Rollback", "20.00")
	h.addToCart(t, user.ID, game.ID, time.Now().UTC())

	_, err := h.svc.Execute(ctx, user.ID, Request{PaymentMethod: "card"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))

	require.Zero(t, h.count(t, &models.Purchase{}))
	require.Zero(t, h.count(t, &models.PurchaseLineItem{}))
	require.Zero(t, h.count(t, &models.LibraryEntry{}))
	require.Equal(t, int64(1), h.count(t, &models.CartItem{}))
	require.Equal(t, float64(1), h.outcomes(t)[metrics.CheckoutOutcomeFailed])
}

package purchases

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ministeam/ministeam-api/pkg/db/dbtest"
	"github.com/ministeam/ministeam-api/pkg/db/models"
	"github.com/ministeam/ministeam-api/pkg/enums"
	pkgerrors "github.com/ministeam/ministeam-api/pkg/errors"
	"github.com/ministeam/ministeam-api/pkg/outbox"
	"github.com/ministeam/ministeam-api/pkg/pagination"
)

var fixedNow = time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	client, conn := dbtest.Client(t)
	svc, err := NewService(ServiceParams{
		DB:     client,
		Repo:   NewRepository(conn),
		Outbox: outbox.NewWriter(outbox.NewRepository(conn), nil),
		Now:    func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return svc, conn
}

func seedPurchase(t *testing.T, conn *gorm.DB, userID uuid.UUID, status enums.PaymentStatus, createdAt time.Time, games ...*models.Game) *models.Purchase {
	t.Helper()
	total := decimal.Zero
	lines := make([]models.PurchaseLineItem, 0, len(games))
	for _, g := range games {
		total = total.Add(g.Price)
		lines = append(lines, models.PurchaseLineItem{GameID: g.ID, PricePaid: g.Price, Quantity: 1, Discount: decimal.Zero})
	}
	purchase := &models.Purchase{
		UserID:        userID,
		Total:         total,
		PaymentMethod: "card",
		PaymentStatus: status,
		CreatedAt:     createdAt,
	}
	require.NoError(t, NewRepository(conn).Create(context.Background(), purchase, lines))
	return purchase
}

func TestListAndGet(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	alice := dbtest.SeedUser(t, conn, "alice")
	bob := dbtest.SeedUser(t, conn, "bob")
	g1 := dbtest.SeedGame(t, conn, "Zeta", "10.00")
	g2 := dbtest.SeedGame(t, conn, "Alpha", "5.50")

	first := seedPurchase(t, conn, alice.ID, enums.PaymentStatusCompleted, fixedNow.Add(-2*time.Hour), g1, g2)
	second := seedPurchase(t, conn, alice.ID, enums.PaymentStatusPending, fixedNow.Add(-time.Hour), g2)
	seedPurchase(t, conn, bob.ID, enums.PaymentStatusCompleted, fixedNow, g1)

	mine, err := svc.ListMine(ctx, alice.ID, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, mine.Purchases, 2)
	require.Equal(t, second.ID, mine.Purchases[0].ID)
	require.Equal(t, int64(2), mine.Purchases[1].ItemsCount)
	require.Equal(t, "alice", mine.Purchases[0].Username)
	require.Equal(t, 10, mine.Pagination.Limit)

	got, err := svc.Get(ctx, alice.ID, enums.UserRoleCustomer, first.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	require.Equal(t, "Zeta", got.Items[0].Title, "line items keep insertion order")
	require.True(t, decimal.RequireFromString("15.50").Equal(got.Total))

	_, err = svc.Get(ctx, bob.ID, enums.UserRoleCustomer, first.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	_, err = svc.Get(ctx, bob.ID, enums.UserRoleAdmin, first.ID)
	require.NoError(t, err)
	_, err = svc.Get(ctx, alice.ID, enums.UserRoleCustomer, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	all, err := svc.ListAll(ctx, ListFilters{})
	require.NoError(t, err)
	require.Equal(t, int64(3), all.Pagination.Total)
	pending, err := svc.ListAll(ctx, ListFilters{Status: "pending"})
	require.NoError(t, err)
	require.Len(t, pending.Purchases, 1)
	_, err = svc.ListAll(ctx, ListFilters{Status: "settled"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestUpdatePaymentStatusQueuesEvent(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, conn, "payer")
	admin := dbtest.SeedUser(t, conn, "boss")
	game := dbtest.SeedGame(t, conn, "Billable", "20.00")
	purchase := seedPurchase(t, conn, user.ID, enums.PaymentStatusCompleted, fixedNow, game)

	_, err := svc.UpdatePaymentStatus(ctx, admin.ID, purchase.ID, UpdatePaymentStatusRequest{Status: "settled"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = svc.UpdatePaymentStatus(ctx, admin.ID, uuid.New(), UpdatePaymentStatusRequest{Status: "refunded"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	updated, err := svc.UpdatePaymentStatus(ctx, admin.ID, purchase.ID, UpdatePaymentStatusRequest{Status: "refunded"})
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusRefunded, updated.PaymentStatus)

	_, err = svc.UpdatePaymentStatus(ctx, admin.ID, purchase.ID, UpdatePaymentStatusRequest{Status: "refunded"})
	require.NoError(t, err)

	var events []models.OutboxEvent
	require.NoError(t, conn.Find(&events).Error)
	require.Len(t, events, 1, "repeating the same status queues nothing")
	require.Equal(t, enums.EventPaymentStatusChanged, events[0].EventType)
	require.Equal(t, purchase.ID, events[0].AggregateID)
}

func TestSalesStats(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, conn, "spender")
	hit := dbtest.SeedGame(t, conn, "Hit", "30.00")
	niche := dbtest.SeedGame(t, conn, "Niche", "12.00")
	seedPurchase(t, conn, user.ID, enums.PaymentStatusCompleted, fixedNow, hit, niche)
	seedPurchase(t, conn, dbtest.SeedUser(t, conn, "fan").ID, enums.PaymentStatusCompleted, fixedNow, hit)
	seedPurchase(t, conn, dbtest.SeedUser(t, conn, "late").ID, enums.PaymentStatusFailed, fixedNow, niche)

	stats, err := svc.SalesStats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.TotalPurchases)
	require.True(t, decimal.RequireFromString("72").Equal(stats.Revenue))
	require.Equal(t, int64(1), stats.ByStatus[enums.PaymentStatusFailed])
	require.Equal(t, int64(0), stats.ByStatus[enums.PaymentStatusPending])
	require.Len(t, stats.TopGames, 2)
	require.Equal(t, "Hit", stats.TopGames[0].Title)
	require.Equal(t, int64(2), stats.TopGames[0].Sold)
	require.True(t, decimal.RequireFromString("60").Equal(stats.TopGames[0].Revenue))
}

package library

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
	"github.com/ministeam/ministeam-api/pkg/pagination"
)

var fixedNow = time.Date(2025, 3, 10, 18, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(ServiceParams{
		Repo: NewRepository(conn),
		Now:  func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return svc, conn
}

func own(t *testing.T, conn *gorm.DB, userID, gameID uuid.UUID, acquired time.Time, minutes int, purchaseID *uuid.UUID) {
	t.Helper()
	require.NoError(t, conn.Create(&models.LibraryEntry{
		UserID:        userID,
		GameID:        gameID,
		PurchaseID:    purchaseID,
		Status:        enums.LibraryStatusNotStarted,
		MinutesPlayed: minutes,
		AcquiredAt:    acquired,
	}).Error)
}

func entryTitles(entries []EntryDTO) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Title)
	}
	return out
}

func TestGetLibrarySortsAndFilters(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, conn, "gamer")
	other := dbtest.SeedUser(t, conn, "other")
	a := dbtest.SeedGame(t, conn, "Apex Quest", "10")
	b := dbtest.SeedGame(t, conn, "Blade Run", "20")
	c := dbtest.SeedGame(t, conn, "Cave Story", "5")

	own(t, conn, user.ID, a.ID, fixedNow.Add(-3*time.Hour), 120, nil)
	own(t, conn, user.ID, b.ID, fixedNow.Add(-1*time.Hour), 10, nil)
	own(t, conn, user.ID, c.ID, fixedNow.Add(-2*time.Hour), 300, nil)
	own(t, conn, other.ID, a.ID, fixedNow, 0, nil)

	page, err := svc.GetLibrary(ctx, user.ID, Filters{})
	require.NoError(t, err)
	require.Equal(t, []string{"Blade Run", "Cave Story", "Apex Quest"}, entryTitles(page.Games))
	require.Equal(t, pagination.Meta{Page: 1, Limit: 20, Total: 3, TotalPages: 1}, page.Pagination)

	page, err = svc.GetLibrary(ctx, user.ID, Filters{Sort: "tiempo_jugado", Order: "DESC"})
	require.NoError(t, err)
	require.Equal(t, []string{"Cave Story", "Apex Quest", "Blade Run"}, entryTitles(page.Games))

	page, err = svc.GetLibrary(ctx, user.ID, Filters{Sort: "titulo", Order: "ASC", Page: pagination.Params{Page: 2, Limit: 2}})
	require.NoError(t, err)
	require.Equal(t, []string{"Cave Story"}, entryTitles(page.Games))
	require.Equal(t, 2, page.Pagination.TotalPages)

	_, err = svc.UpdateStatus(ctx, user.ID, a.ID, UpdateStatusRequest{Status: "installed"})
	require.NoError(t, err)
	page, err = svc.GetLibrary(ctx, user.ID, Filters{Status: "installed"})
	require.NoError(t, err)
	require.Equal(t, []string{"Apex Quest"}, entryTitles(page.Games))

	_, err = svc.GetLibrary(ctx, user.ID, Filters{Status: "playing"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	recent, err := svc.Recent(ctx, user.ID, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"Blade Run", "Cave Story"}, entryTitles(recent))
}

func TestEntryDetailsIncludePurchase(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, conn, "buyer")
	genre := dbtest.SeedGenre(t, conn, "Indie")
	game := dbtest.SeedGame(t, conn, "Hollow Depths", "14.99", dbtest.WithGenre(genre.ID))

	purchase := &models.Purchase{
		UserID:        user.ID,
		Total:         decimal.RequireFromString("12.50"),
		PaymentMethod: "card",
		PaymentStatus: enums.PaymentStatusCompleted,
	}
	require.NoError(t, conn.Create(purchase).Error)
	require.NoError(t, conn.Create(&models.PurchaseLineItem{
		PurchaseID: purchase.ID,
		GameID:     game.ID,
		PricePaid:  decimal.RequireFromString("12.50"),
		Quantity:   1,
		Discount:   decimal.Zero,
	}).Error)
	own(t, conn, user.ID, game.ID, fixedNow, 0, &purchase.ID)

	entry, err := svc.GetEntry(ctx, user.ID, game.ID)
	require.NoError(t, err)
	require.Equal(t, game.ID, entry.GameID)
	require.NotEqual(t, uuid.Nil, entry.ID)
	require.Equal(t, "Hollow Depths", entry.Title)
	require.Equal(t, enums.LibraryStatusNotStarted, entry.Status)
	require.NotNil(t, entry.GenreName)
	require.Equal(t, "Indie", *entry.GenreName)
	require.NotNil(t, entry.PurchaseID)
	require.Equal(t, purchase.ID, *entry.PurchaseID)
	require.True(t, decimal.RequireFromString("12.50").Equal(*entry.PurchaseTotal))
	require.True(t, decimal.RequireFromString("12.50").Equal(*entry.PricePaid))
	require.True(t, decimal.RequireFromString("14.99").Equal(entry.Price))
	require.NotNil(t, entry.PurchaseDate)

	owned, err := svc.OwnsGame(ctx, user.ID, game.ID)
	require.NoError(t, err)
	require.True(t, owned)
	owned, err = svc.OwnsGame(ctx, uuid.New(), game.ID)
	require.NoError(t, err)
	require.False(t, owned)

	_, err = svc.GetEntry(ctx, user.ID, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestStatusAndPlaytime(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, conn, "player")
	game := dbtest.SeedGame(t, conn, "Long Game", "30")
	second := dbtest.SeedGame(t, conn, "Short Game", "3")
	dbtest.SeedLibraryEntry(t, conn, user.ID, game.ID)
	dbtest.SeedLibraryEntry(t, conn, user.ID, second.ID)

	_, err := svc.UpdateStatus(ctx, user.ID, game.ID, UpdateStatusRequest{Status: "playing"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = svc.UpdateStatus(ctx, user.ID, uuid.New(), UpdateStatusRequest{Status: "installing"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	entry, err := svc.UpdateStatus(ctx, user.ID, game.ID, UpdateStatusRequest{Status: "installing"})
	require.NoError(t, err)
	require.Equal(t, enums.LibraryStatusInstalling, entry.Status)
	require.Equal(t, game.ID, entry.GameID)
	require.Equal(t, "Long Game", entry.Title)

	_, err = svc.AddPlaytime(ctx, user.ID, game.ID, AddPlaytimeRequest{Minutes: 0})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = svc.AddPlaytime(ctx, user.ID, game.ID, AddPlaytimeRequest{Minutes: -10})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = svc.AddPlaytime(ctx, user.ID, game.ID, AddPlaytimeRequest{Minutes: MaxSessionMinutes + 1})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = svc.AddPlaytime(ctx, user.ID, uuid.New(), AddPlaytimeRequest{Minutes: 5})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	entry, err = svc.AddPlaytime(ctx, user.ID, game.ID, AddPlaytimeRequest{Minutes: 45})
	require.NoError(t, err)
	require.Equal(t, 45, entry.MinutesPlayed)
	require.Equal(t, enums.LibraryStatusInstalling, entry.Status)
	entry, err = svc.AddPlaytime(ctx, user.ID, game.ID, AddPlaytimeRequest{Minutes: 15})
	require.NoError(t, err)
	require.Equal(t, 60, entry.MinutesPlayed)
	require.NotNil(t, entry.LastPlayedAt)
	require.True(t, fixedNow.Equal(*entry.LastPlayedAt))

	stats, err := svc.Stats(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.TotalGames)
	require.Equal(t, int64(60), stats.TotalMinutes)
	require.Equal(t, int64(1), stats.ByStatus[enums.LibraryStatusInstalling])
	require.Equal(t, int64(1), stats.ByStatus[enums.LibraryStatusNotStarted])
	require.Equal(t, int64(0), stats.ByStatus[enums.LibraryStatusUpdating])
}

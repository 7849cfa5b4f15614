package library

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ministeam/ministeam-api/pkg/db/models"
	"github.com/ministeam/ministeam-api/pkg/enums"
)

const entryColumns = `l.id, l.game_id, v.slug, v.title, v.image_url, v.platform, v.developer,
	g.name AS genre_name, l.status, l.minutes_played, l.acquired_at, l.last_played_at,
	l.purchase_id, p.created_at AS purchase_date, p.total AS purchase_total`

const detailColumns = entryColumns + `, v.description, v.release_date, v.publisher, v.age_rating,
	v.trailer_url, v.price, v.average_rating,
	(SELECT li.price_paid FROM purchase_line_items li
		WHERE li.purchase_id = l.purchase_id AND li.game_id = l.game_id) AS price_paid`

var sortColumns = map[string]string{
	"fecha_adquirido": "l.acquired_at",
	"tiempo_jugado":   "l.minutes_played",
	"titulo":          "v.title",
}

// Repository reads and writes library entries.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a library repository to db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type entryRow struct {
	ID            uuid.UUID
	GameID        uuid.UUID
	Slug          string
	Title         string
	ImageURL      *string
	Platform      string
	Developer     *string
	GenreName     *string
	Status        enums.LibraryStatus
	MinutesPlayed int
	AcquiredAt    time.Time
	LastPlayedAt  *time.Time
	PurchaseID    *uuid.UUID
	PurchaseDate  *time.Time
	PurchaseTotal *decimal.Decimal
}

func (r entryRow) toDTO() EntryDTO {
	return EntryDTO{
		ID:            r.ID,
		GameID:        r.GameID,
		Slug:          r.Slug,
		Title:         r.Title,
		ImageURL:      r.ImageURL,
		Platform:      r.Platform,
		Developer:     r.Developer,
		GenreName:     r.GenreName,
		Status:        r.Status,
		MinutesPlayed: r.MinutesPlayed,
		AcquiredAt:    r.AcquiredAt,
		LastPlayedAt:  r.LastPlayedAt,
		PurchaseID:    r.PurchaseID,
		PurchaseDate:  r.PurchaseDate,
		PurchaseTotal: r.PurchaseTotal,
	}
}

type detailRow struct {
	Entry         entryRow `gorm:"embedded"`
	Description   *string
	ReleaseDate   *time.Time
	Publisher     *string
	AgeRating     *string
	TrailerURL    *string
	Price         decimal.Decimal
	AverageRating decimal.Decimal
	PricePaid     *decimal.Decimal
}

func (r *Repository) base(ctx context.Context, userID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("library_entries l").
		Joins("JOIN games v ON v.id = l.game_id").
		Joins("LEFT JOIN genres g ON g.id = v.genre_id").
		Joins("LEFT JOIN purchases p ON p.id = l.purchase_id").
		Where("l.user_id = ?", userID)
}

// List returns one page of a user's library and the total entry count for the filters.
func (r *Repository) List(ctx context.Context, userID uuid.UUID, status enums.LibraryStatus, f Filters) ([]EntryDTO, int64, error) {
	query := r.base(ctx, userID)
	if status != "" {
		query = query.Where("l.status = ?", status)
	}
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []entryRow
	if err := query.Select(entryColumns).
		Order(orderClause(f.Sort, f.Order)).
		Limit(f.Page.Limit).
		Offset(f.Page.Offset()).
		Scan(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toDTOs(rows), total, nil
}

func orderClause(sortKey, order string) string {
	col, ok := sortColumns[sortKey]
	if !ok {
		col = sortColumns["fecha_adquirido"]
	}
	dir := "DESC"
	if strings.EqualFold(order, "ASC") {
		dir = "ASC"
	}
	return col + " " + dir + ", l.id ASC"
}

func toDTOs(rows []entryRow) []EntryDTO {
	out := make([]EntryDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDTO())
	}
	return out
}

// Recent returns the latest acquisitions.
func (r *Repository) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]EntryDTO, error) {
	var rows []entryRow
	if err := r.base(ctx, userID).
		Select(entryColumns).
		Order("l.acquired_at DESC, l.id ASC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return toDTOs(rows), nil
}

// FindEntry returns gorm.ErrRecordNotFound when the user does not own gameID.
func (r *Repository) FindEntry(ctx context.Context, userID, gameID uuid.UUID) (*EntryDetailDTO, error) {
	var rows []detailRow
	if err := r.base(ctx, userID).
		Select(detailColumns).
		Where("l.game_id = ?", gameID).
		Limit(1).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	row := rows[0]
	return &EntryDetailDTO{
		EntryDTO:      row.Entry.toDTO(),
		Description:   row.Description,
		ReleaseDate:   row.ReleaseDate,
		Publisher:     row.Publisher,
		AgeRating:     row.AgeRating,
		TrailerURL:    row.TrailerURL,
		Price:         row.Price,
		AverageRating: row.AverageRating,
		PricePaid:     row.PricePaid,
	}, nil
}

// Owns reports whether userID has gameID in the library.
func (r *Repository) Owns(ctx context.Context, userID, gameID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.LibraryEntry{}).
		Where("user_id = ? AND game_id = ?", userID, gameID).
		Count(&count).Error
	return count > 0, err
}

// OwnedAmong returns the subset of gameIDs already in the user's library.
func (r *Repository) OwnedAmong(ctx context.Context, userID uuid.UUID, gameIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(gameIDs) == 0 {
		return nil, nil
	}
	var owned []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.LibraryEntry{}).
		Where("user_id = ? AND game_id IN ?", userID, gameIDs).
		Pluck("game_id", &owned).Error
	return owned, err
}

// CreateBatch inserts entries in order. Callers run it inside the checkout transaction.
func (r *Repository) CreateBatch(ctx context.Context, entries []models.LibraryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&entries).Error
}

// UpdateStatus sets the install state and reports whether the entry exists.
func (r *Repository) UpdateStatus(ctx context.Context, userID, gameID uuid.UUID, status enums.LibraryStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.LibraryEntry{}).
		Where("user_id = ? AND game_id = ?", userID, gameID).
		UpdateColumn("status", status)
	return res.RowsAffected > 0, res.Error
}

// AddPlaytime increments minutes played and stamps last_played_at.
func (r *Repository) AddPlaytime(ctx context.Context, userID, gameID uuid.UUID, minutes int, playedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.LibraryEntry{}).
		Where("user_id = ? AND game_id = ?", userID, gameID).
		UpdateColumns(map[string]any{
			"minutes_played": gorm.Expr("minutes_played + ?", minutes),
			"last_played_at": playedAt,
		})
	return res.RowsAffected > 0, res.Error
}

type statusCount struct {
	Status  enums.LibraryStatus
	Count   int64
	Minutes int64
}

// Stats aggregates a user's library per status.
func (r *Repository) Stats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	var rows []statusCount
	if err := r.db.WithContext(ctx).
		Model(&models.LibraryEntry{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(minutes_played), 0) AS minutes").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	stats := &Stats{ByStatus: make(map[enums.LibraryStatus]int64, len(enums.LibraryStatuses()))}
	for _, status := range enums.LibraryStatuses() {
		stats.ByStatus[status] = 0
	}
	for _, row := range rows {
		stats.ByStatus[row.Status] = row.Count
		stats.TotalGames += row.Count
		stats.TotalMinutes += row.Minutes
	}
	return stats, nil
}

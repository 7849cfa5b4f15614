package games

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ministeam/ministeam-api/pkg/db/models"
	"github.com/ministeam/ministeam-api/pkg/pagination"
)

const gameColumns = `v.id, v.slug, v.title, v.description, v.price, v.stock, v.release_date,
	v.developer, v.publisher, v.genre_id, v.platform, v.age_rating, v.steam_app_id, v.rawg_id,
	v.image_url, v.trailer_url, v.is_active, v.average_rating, v.created_at, v.updated_at,
	g.name AS genre_name, g.description AS genre_description,
	(SELECT COUNT(*) FROM reviews r WHERE r.game_id = v.id) AS review_count`

var sortColumns = map[string]string{
	"fecha_agregado":        "v.created_at",
	"titulo":                "v.title",
	"precio":                "v.price",
	"calificacion_promedio": "v.average_rating",
	"fecha_lanzamiento":     "v.release_date",
}

// Repository reads and writes catalog games.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a game repository to db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type gameRow struct {
	ID               uuid.UUID
	Slug             string
	Title            string
	Description      *string
	Price            decimal.Decimal
	Stock            int
	ReleaseDate      *time.Time
	Developer        *string
	Publisher        *string
	GenreID          *uuid.UUID
	GenreName        *string
	GenreDescription *string
	Platform         string
	AgeRating        *string
	SteamAppID       *int64
	RawgID           *int64
	ImageURL         *string
	TrailerURL       *string
	IsActive         bool
	AverageRating    decimal.Decimal
	ReviewCount      int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (r gameRow) toDTO() GameDTO {
	return GameDTO{
		ID:               r.ID,
		Slug:             r.Slug,
		Title:            r.Title,
		Description:      r.Description,
		Price:            r.Price,
		Stock:            r.Stock,
		ReleaseDate:      r.ReleaseDate,
		Developer:        r.Developer,
		Publisher:        r.Publisher,
		GenreID:          r.GenreID,
		GenreName:        r.GenreName,
		GenreDescription: r.GenreDescription,
		Platform:         r.Platform,
		AgeRating:        r.AgeRating,
		SteamAppID:       r.SteamAppID,
		RawgID:           r.RawgID,
		ImageURL:         r.ImageURL,
		TrailerURL:       r.TrailerURL,
		IsActive:         r.IsActive,
		AverageRating:    r.AverageRating,
		ReviewCount:      r.ReviewCount,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func toDTOs(rows []gameRow) []GameDTO {
	out := make([]GameDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDTO())
	}
	return out
}

func (r *Repository) base(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("games v").
		Joins("LEFT JOIN genres g ON g.id = v.genre_id")
}

func (r *Repository) page(query *gorm.DB, p pagination.Params, order string) ([]GameDTO, int64, error) {
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []gameRow
	if err := query.Select(gameColumns).
		Order(order).
		Limit(p.Limit).
		Offset(p.Offset()).
		Scan(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toDTOs(rows), total, nil
}

// List applies filters and an allow-listed sort. Unknown sort keys fall back to fecha_agregado.
func (r *Repository) List(ctx context.Context, f ListFilters) ([]GameDTO, int64, error) {
	query := r.base(ctx)
	active := true
	if f.Active != nil {
		active = *f.Active
	}
	query = query.Where("v.is_active = ?", active)
	if f.Platform != "" {
		query = query.Where("v.platform = ?", f.Platform)
	}
	if f.PriceMin != nil {
		query = query.Where("v.price >= ?", *f.PriceMin)
	}
	if f.PriceMax != nil {
		query = query.Where("v.price <= ?", *f.PriceMax)
	}
	if f.GenreID != nil {
		query = query.Where("v.genre_id = ?", *f.GenreID)
	}
	return r.page(query, f.Page, orderClause(f.Sort, f.Order))
}

func orderClause(sortKey, order string) string {
	col, ok := sortColumns[sortKey]
	if !ok {
		col = sortColumns["fecha_agregado"]
	}
	dir := "DESC"
	if strings.EqualFold(order, "ASC") {
		dir = "ASC"
	}
	return col + " " + dir + ", v.id ASC"
}

// likeEscaper makes LIKE wildcards in user input match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// Search matches active games on title, description, developer or genre name.
func (r *Repository) Search(ctx context.Context, term string, p pagination.Params) ([]GameDTO, int64, error) {
	like := "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
	query := r.base(ctx).
		Where("v.is_active = ?", true).
		Where(`LOWER(v.title) LIKE ? ESCAPE '\' OR LOWER(COALESCE(v.description, '')) LIKE ? ESCAPE '\'
			OR LOWER(COALESCE(v.developer, '')) LIKE ? ESCAPE '\' OR LOWER(COALESCE(g.name, '')) LIKE ? ESCAPE '\'`,
			like, like, like, like)
	return r.page(query, p, "v.average_rating DESC, v.title ASC")
}

// ByGenre lists active games of one genre, best rated first.
func (r *Repository) ByGenre(ctx context.Context, genreID uuid.UUID, p pagination.Params) ([]GameDTO, int64, error) {
	query := r.base(ctx).
		Where("v.is_active = ?", true).
		Where("v.genre_id = ?", genreID)
	return r.page(query, p, "v.average_rating DESC, v.title ASC")
}

// TopRated returns active games that have at least one review, by rating then review count.
func (r *Repository) TopRated(ctx context.Context, limit int) ([]GameDTO, error) {
	var rows []gameRow
	err := r.base(ctx).
		Select(gameColumns).
		Where("v.is_active = ?", true).
		Where("v.average_rating > 0").
		Order("v.average_rating DESC, review_count DESC, v.title ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDTOs(rows), nil
}

// Featured returns recent well-rated releases.
func (r *Repository) Featured(ctx context.Context, since time.Time, limit int) ([]GameDTO, error) {
	var rows []gameRow
	err := r.base(ctx).
		Select(gameColumns).
		Where("v.is_active = ?", true).
		Where("v.release_date >= ?", since).
		Order("v.average_rating DESC, v.release_date DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDTOs(rows), nil
}

// Platforms lists the distinct platforms of active games.
func (r *Repository) Platforms(ctx context.Context) ([]string, error) {
	var out []string
	err := r.db.WithContext(ctx).
		Model(&models.Game{}).
		Where("is_active = ?", true).
		Distinct("platform").
		Order("platform ASC").
		Pluck("platform", &out).Error
	return out, err
}

// FindByID returns gorm.ErrRecordNotFound when no game matches. activeOnly hides soft-deleted games.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID, activeOnly bool) (*GameDTO, error) {
	return r.findOne(ctx, "v.id = ?", id, activeOnly)
}

// FindBySlug is FindByID keyed on slug.
func (r *Repository) FindBySlug(ctx context.Context, slug string, activeOnly bool) (*GameDTO, error) {
	return r.findOne(ctx, "v.slug = ?", slug, activeOnly)
}

func (r *Repository) findOne(ctx context.Context, cond string, arg any, activeOnly bool) (*GameDTO, error) {
	query := r.base(ctx).Select(gameColumns).Where(cond, arg)
	if activeOnly {
		query = query.Where("v.is_active = ?", true)
	}
	var rows []gameRow
	if err := query.Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	dto := rows[0].toDTO()
	return &dto, nil
}

// FindModel loads the raw game row regardless of status.
func (r *Repository) FindModel(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	var game models.Game
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&game).Error; err != nil {
		return nil, err
	}
	return &game, nil
}

// SlugTaken reports whether another game already uses slug.
func (r *Repository) SlugTaken(ctx context.Context, slug string, exclude uuid.UUID) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.Game{}).Where("slug = ?", slug)
	if exclude != uuid.Nil {
		query = query.Where("id <> ?", exclude)
	}
	var count int64
	err := query.Count(&count).Error
	return count > 0, err
}

// Create inserts a game.
func (r *Repository) Create(ctx context.Context, game *models.Game) error {
	return r.db.WithContext(ctx).Create(game).Error
}

// Update applies fields and reports whether the game exists.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, fields map[string]any) (bool, error) {
	if len(fields) == 0 {
		var count int64
		err := r.db.WithContext(ctx).Model(&models.Game{}).Where("id = ?", id).Count(&count).Error
		return count > 0, err
	}
	fields["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&models.Game{}).Where("id = ?", id).Updates(fields)
	return res.RowsAffected > 0, res.Error
}

// SoftDelete marks an active game inactive and reports whether one was changed.
func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Game{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]any{"is_active": false, "updated_at": time.Now().UTC()})
	return res.RowsAffected > 0, res.Error
}

// RecalculateRating stores the mean review score of a game rounded to one decimal, or zero without reviews.
func (r *Repository) RecalculateRating(ctx context.Context, gameID uuid.UUID) (decimal.Decimal, error) {
	var avg sql.NullFloat64
	if err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Select("AVG(score)").
		Where("game_id = ?", gameID).
		Row().
		Scan(&avg); err != nil {
		return decimal.Zero, err
	}
	rating := decimal.Zero
	if avg.Valid {
		rating = decimal.NewFromFloat(avg.Float64).Round(1)
	}
	err := r.db.WithContext(ctx).
		Model(&models.Game{}).
		Where("id = ?", gameID).
		UpdateColumn("average_rating", rating).Error
	return rating, err
}

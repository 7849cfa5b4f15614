package genres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ministeam/ministeam-api/pkg/db/models"
)

// Repository persists genres.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a genre repository to db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type genreRow struct {
	ID          uuid.UUID
	Name        string
	Description *string
	CreatedAt   time.Time
	GameCount   int64
}

func (r genreRow) toDTO() GenreDTO {
	return GenreDTO{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		GameCount:   r.GameCount,
		CreatedAt:   r.CreatedAt,
	}
}

func (r *Repository) withCounts(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("genres g").
		Select("g.id, g.name, g.description, g.created_at, COUNT(v.id) AS game_count").
		Joins("LEFT JOIN games v ON v.genre_id = g.id AND v.is_active = ?", true).
		Group("g.id, g.name, g.description, g.created_at")
}

// List returns every genre ordered by name.
func (r *Repository) List(ctx context.Context) ([]GenreDTO, error) {
	var rows []genreRow
	if err := r.withCounts(ctx).Order("g.name ASC").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]GenreDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDTO())
	}
	return out, nil
}

// FindByID returns gorm.ErrRecordNotFound when the genre is missing.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*GenreDTO, error) {
	var rows []genreRow
	if err := r.withCounts(ctx).Where("g.id = ?", id).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	dto := rows[0].toDTO()
	return &dto, nil
}

// Exists reports whether a genre with id exists.
func (r *Repository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Genre{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// NameTaken reports whether another genre already uses name.
func (r *Repository) NameTaken(ctx context.Context, name string, exclude uuid.UUID) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.Genre{}).Where("name = ?", name)
	if exclude != uuid.Nil {
		query = query.Where("id <> ?", exclude)
	}
	var count int64
	err := query.Count(&count).Error
	return count > 0, err
}

// Create inserts a genre.
func (r *Repository) Create(ctx context.Context, genre *models.Genre) error {
	return r.db.WithContext(ctx).Create(genre).Error
}

// Update applies fields and reports whether the genre exists.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, fields map[string]any) (bool, error) {
	if len(fields) == 0 {
		return r.Exists(ctx, id)
	}
	res := r.db.WithContext(ctx).Model(&models.Genre{}).Where("id = ?", id).Updates(fields)
	return res.RowsAffected > 0, res.Error
}

// Delete detaches games from the genre and removes it. Callers run it inside a transaction.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	if err := r.db.WithContext(ctx).
		Model(&models.Game{}).
		Where("genre_id = ?", id).
		UpdateColumn("genre_id", nil).Error; err != nil {
		return false, err
	}
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Genre{})
	return res.RowsAffected > 0, res.Error
}

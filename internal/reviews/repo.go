package reviews

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ministeam/ministeam-api/pkg/db/models"
	"github.com/ministeam/ministeam-api/pkg/pagination"
)

const reviewColumns = `r.id, r.user_id, u.username, r.game_id, v.title AS game_title, r.score,
	r.comment, r.recommended, r.created_at, r.updated_at`

// Repository persists reviews.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a review repository to db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type reviewRow struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Username    *string
	GameID      uuid.UUID
	GameTitle   string
	Score       int
	Comment     *string
	Recommended bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (r reviewRow) toDTO() ReviewDTO {
	dto := ReviewDTO{
		ID:          r.ID,
		UserID:      r.UserID,
		GameID:      r.GameID,
		GameTitle:   r.GameTitle,
		Score:       r.Score,
		Comment:     r.Comment,
		Recommended: r.Recommended,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.Username != nil {
		dto.Username = *r.Username
	}
	return dto
}

func (r *Repository) base(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("reviews r").
		Joins("JOIN games v ON v.id = r.game_id").
		Joins("LEFT JOIN users u ON u.id = r.user_id")
}

func (r *Repository) page(query *gorm.DB, p pagination.Params) ([]ReviewDTO, int64, error) {
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []reviewRow
	if err := query.Select(reviewColumns).
		Order("r.created_at DESC, r.id ASC").
		Limit(p.Limit).
		Offset(p.Offset()).
		Scan(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]ReviewDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDTO())
	}
	return out, total, nil
}

// ListForGame pages the reviews of a game, newest first.
func (r *Repository) ListForGame(ctx context.Context, gameID uuid.UUID, p pagination.Params) ([]ReviewDTO, int64, error) {
	return r.page(r.base(ctx).Where("r.game_id = ?", gameID), p)
}

// ListForUser pages the reviews written by a user, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID, p pagination.Params) ([]ReviewDTO, int64, error) {
	return r.page(r.base(ctx).Where("r.user_id = ?", userID), p)
}

// FindByID returns gorm.ErrRecordNotFound when the review is missing.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*ReviewDTO, error) {
	var rows []reviewRow
	if err := r.base(ctx).Select(reviewColumns).Where("r.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	dto := rows[0].toDTO()
	return &dto, nil
}

// FindModel loads the raw review row.
func (r *Repository) FindModel(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	var review models.Review
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&review).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

// Exists reports whether userID already reviewed gameID.
func (r *Repository) Exists(ctx context.Context, userID, gameID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Where("user_id = ? AND game_id = ?", userID, gameID).
		Count(&count).Error
	return count > 0, err
}

// Create inserts a review.
func (r *Repository) Create(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).Create(review).Error
}

// Update applies fields to a review.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now().UTC()
	return r.db.WithContext(ctx).Model(&models.Review{}).Where("id = ?", id).Updates(fields).Error
}

// Delete removes a review.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Review{}).Error
}

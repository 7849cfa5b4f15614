package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ministeam/ministeam-api/internal/games"
	"github.com/ministeam/ministeam-api/pkg/db"
	"github.com/ministeam/ministeam-api/pkg/db/models"
	"github.com/ministeam/ministeam-api/pkg/enums"
	pkgerrors "github.com/ministeam/ministeam-api/pkg/errors"
	"github.com/ministeam/ministeam-api/pkg/outbox"
	"github.com/ministeam/ministeam-api/pkg/outbox/payloads"
	"github.com/ministeam/ministeam-api/pkg/pagination"
)

const (
	defaultListLimit = 10
	minScore         = 1
	maxScore         = 10
)

type gameLoader interface {
	FindModel(ctx context.Context, id uuid.UUID) (*models.Game, error)
}

type ownershipChecker interface {
	Owns(ctx context.Context, userID, gameID uuid.UUID) (bool, error)
}

// Service manages reviews and keeps game ratings in step with them.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, req CreateReviewRequest) (*MutationResult, error)
	Update(ctx context.Context, userID, reviewID uuid.UUID, req UpdateReviewRequest) (*MutationResult, error)
	Delete(ctx context.Context, userID uuid.UUID, role enums.UserRole, reviewID uuid.UUID) (*MutationResult, error)
	ListForGame(ctx context.Context, gameID uuid.UUID, page pagination.Params) (*ListResult, error)
	ListMine(ctx context.Context, userID uuid.UUID, page pagination.Params) (*ListResult, error)
}

// ServiceParams groups review dependencies.
type ServiceParams struct {
	DB      db.TxRunner
	Repo    *Repository
	Games   gameLoader
	Library ownershipChecker
	Outbox  outbox.Emitter
}

type service struct {
	tx      db.TxRunner
	repo    *Repository
	games   gameLoader
	library ownershipChecker
	outbox  outbox.Emitter
}

// NewService builds the review service.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.DB == nil:
		return nil, fmt.Errorf("database client is required")
	case params.Repo == nil:
		return nil, fmt.Errorf("review repository is required")
	case params.Games == nil:
		return nil, fmt.Errorf("game loader is required")
	case params.Library == nil:
		return nil, fmt.Errorf("library checker is required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter is required")
	}
	return &service{
		tx:      params.DB,
		repo:    params.Repo,
		games:   params.Games,
		library: params.Library,
		outbox:  params.Outbox,
	}, nil
}

func validateScore(score int) error {
	if score < minScore || score > maxScore {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("puntuacion must be between %d and %d", minScore, maxScore))
	}
	return nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, req CreateReviewRequest) (*MutationResult, error) {
	gameID, err := uuid.Parse(strings.TrimSpace(req.GameID))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "id_juego must be a valid id")
	}
	if req.Score == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "puntuacion is required")
	}
	if err := validateScore(*req.Score); err != nil {
		return nil, err
	}

	if _, err := s.games.FindModel(ctx, gameID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "game not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load game")
	}
	owned, err := s.library.Owns(ctx, userID, gameID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check ownership")
	}
	if !owned {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only owners can review a game")
	}
	exists, err := s.repo.Exists(ctx, userID, gameID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check review")
	}
	if exists {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "game already reviewed")
	}

	recommended := true
	if req.Recommended != nil {
		recommended = *req.Recommended
	}
	review := &models.Review{
		UserID:      userID,
		GameID:      gameID,
		Score:       *req.Score,
		Comment:     req.Comment,
		Recommended: recommended,
	}

	var rating decimal.Decimal
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := NewRepository(tx).Create(ctx, review); err != nil {
			if db.IsUniqueViolation(err, "reviews_user_game_key") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "game already reviewed")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create review")
		}
		rating, err = games.RecalculateRating(ctx, tx, gameID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recalculate rating")
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventReviewCreated,
			AggregateType: enums.AggregateReview,
			AggregateID:   review.ID,
			Actor:         &outbox.ActorRef{UserID: userID},
			OccurredAt:    review.CreatedAt,
			Data: payloads.ReviewCreatedEvent{
				ReviewID:      review.ID,
				UserID:        userID,
				GameID:        gameID,
				Score:         review.Score,
				Recommended:   review.Recommended,
				AverageRating: rating,
				CreatedAt:     review.CreatedAt,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue review event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.result(ctx, review.ID, rating)
}

func (s *service) Update(ctx context.Context, userID, reviewID uuid.UUID, req UpdateReviewRequest) (*MutationResult, error) {
	review, err := s.load(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if review.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the author can edit a review")
	}
	fields := map[string]any{}
	if req.Score != nil {
		if err := validateScore(*req.Score); err != nil {
			return nil, err
		}
		fields["score"] = *req.Score
	}
	if req.Comment != nil {
		fields["comment"] = *req.Comment
	}
	if req.Recommended != nil {
		fields["recommended"] = *req.Recommended
	}

	var rating decimal.Decimal
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := NewRepository(tx).Update(ctx, reviewID, fields); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update review")
		}
		rating, err = games.RecalculateRating(ctx, tx, review.GameID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recalculate rating")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.result(ctx, reviewID, rating)
}

func (s *service) Delete(ctx context.Context, userID uuid.UUID, role enums.UserRole, reviewID uuid.UUID) (*MutationResult, error) {
	review, err := s.load(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if review.UserID != userID && role != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the author or an admin can delete a review")
	}
	var rating decimal.Decimal
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := NewRepository(tx).Delete(ctx, reviewID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete review")
		}
		rating, err = games.RecalculateRating(ctx, tx, review.GameID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recalculate rating")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &MutationResult{AverageRating: rating}, nil
}

func (s *service) ListForGame(ctx context.Context, gameID uuid.UUID, page pagination.Params) (*ListResult, error) {
	if _, err := s.games.FindModel(ctx, gameID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "game not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load game")
	}
	page = pagination.Normalize(page, defaultListLimit)
	list, total, err := s.repo.ListForGame(ctx, gameID, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list reviews")
	}
	return &ListResult{Reviews: list, Pagination: pagination.NewMeta(page, total)}, nil
}

func (s *service) ListMine(ctx context.Context, userID uuid.UUID, page pagination.Params) (*ListResult, error) {
	page = pagination.Normalize(page, defaultListLimit)
	list, total, err := s.repo.ListForUser(ctx, userID, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list reviews")
	}
	return &ListResult{Reviews: list, Pagination: pagination.NewMeta(page, total)}, nil
}

func (s *service) load(ctx context.Context, reviewID uuid.UUID) (*models.Review, error) {
	review, err := s.repo.FindModel(ctx, reviewID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load review")
	}
	return review, nil
}

func (s *service) result(ctx context.Context, reviewID uuid.UUID, rating decimal.Decimal) (*MutationResult, error) {
	review, err := s.repo.FindByID(ctx, reviewID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load review")
	}
	return &MutationResult{Review: review, AverageRating: rating}, nil
}

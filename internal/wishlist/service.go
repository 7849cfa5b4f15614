package wishlist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ministeam/ministeam-api/pkg/db"
	"github.com/ministeam/ministeam-api/pkg/db/models"
	pkgerrors "github.com/ministeam/ministeam-api/pkg/errors"
)

type gameLoader interface {
	FindModel(ctx context.Context, id uuid.UUID) (*models.Game, error)
}

type ownershipChecker interface {
	Owns(ctx context.Context, userID, gameID uuid.UUID) (bool, error)
}

// ServiceParams groups dependencies for the wishlist service.
type ServiceParams struct {
	WishlistRepo *Repository
	Games        gameLoader
	Library      ownershipChecker
}

// Service exposes business rules for wishlist management.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*WishlistDTO, error)
	Add(ctx context.Context, userID uuid.UUID, req AddItemRequest) (*WishlistDTO, error)
	Remove(ctx context.Context, userID, gameID uuid.UUID) (*WishlistDTO, error)
	Clear(ctx context.Context, userID uuid.UUID) (*WishlistDTO, error)
}

type service struct {
	repo    *Repository
	games   gameLoader
	library ownershipChecker
}

// NewService builds a wishlist service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.WishlistRepo == nil {
		return nil, fmt.Errorf("wishlist repo is required")
	}
	if params.Games == nil {
		return nil, fmt.Errorf("game loader is required")
	}
	if params.Library == nil {
		return nil, fmt.Errorf("library checker is required")
	}
	return &service{repo: params.WishlistRepo, games: params.Games, library: params.Library}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*WishlistDTO, error) {
	items, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load wishlist")
	}
	return &WishlistDTO{Items: items, Count: len(items)}, nil
}

// Add ensures the game is listed and not owned before saving it.
func (s *service) Add(ctx context.Context, userID uuid.UUID, req AddItemRequest) (*WishlistDTO, error) {
	raw := strings.TrimSpace(req.GameID)
	if raw == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "id_juego is required")
	}
	gameID, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "id_juego must be a valid id")
	}

	game, err := s.games.FindModel(ctx, gameID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load game")
	}
	if game == nil || !game.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "game not found")
	}

	owned, err := s.library.Owns(ctx, userID, gameID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check ownership")
	}
	if owned {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "game already in library")
	}

	saved, err := s.repo.Contains(ctx, userID, gameID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check wishlist")
	}
	if saved {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "game already in wishlist")
	}

	if err := s.repo.AddItem(ctx, &models.WishlistItem{UserID: userID, GameID: gameID}); err != nil {
		if db.IsUniqueViolation(err, "wishlist_items_user_game_key") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "game already in wishlist")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add wishlist item")
	}
	return s.Get(ctx, userID)
}

func (s *service) Remove(ctx context.Context, userID, gameID uuid.UUID) (*WishlistDTO, error) {
	removed, err := s.repo.RemoveItem(ctx, userID, gameID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove wishlist item")
	}
	if !removed {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "game not in wishlist")
	}
	return s.Get(ctx, userID)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) (*WishlistDTO, error) {
	if err := s.repo.Clear(ctx, userID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear wishlist")
	}
	return &WishlistDTO{Items: []ItemDTO{}, Count: 0}, nil
}

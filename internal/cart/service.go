package cart

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

// Service manages a user's shopping cart.
type Service interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
	AddItem(ctx context.Context, userID uuid.UUID, req AddItemRequest) (*CartDTO, error)
	RemoveItem(ctx context.Context, userID, gameID uuid.UUID) (*CartDTO, error)
	ClearCart(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
}

// ServiceParams groups cart dependencies.
type ServiceParams struct {
	Repo    *Repository
	Games   gameLoader
	Library ownershipChecker
}

type service struct {
	repo    *Repository
	games   gameLoader
	library ownershipChecker
}

// NewService builds the cart service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository is required")
	}
	if params.Games == nil {
		return nil, fmt.Errorf("game loader is required")
	}
	if params.Library == nil {
		return nil, fmt.Errorf("library checker is required")
	}
	return &service{repo: params.Repo, games: params.Games, library: params.Library}, nil
}

// Snapshot reads the cart inside tx, locking the rows where the database supports it.
func Snapshot(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (CartDTO, error) {
	items, err := NewRepository(tx).LockedItems(ctx, userID)
	if err != nil {
		return CartDTO{}, err
	}
	return Summarize(items), nil
}

func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	items, err := s.repo.Items(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	cart := Summarize(items)
	return &cart, nil
}

func (s *service) AddItem(ctx context.Context, userID uuid.UUID, req AddItemRequest) (*CartDTO, error) {
	raw := strings.TrimSpace(req.GameID)
	if raw == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "id_juego is required")
	}
	gameID, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "id_juego must be a valid id")
	}

	game, err := s.games.FindModel(ctx, gameID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "game not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load game")
	}
	if !game.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "game is not available")
	}

	owned, err := s.library.Owns(ctx, userID, gameID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check ownership")
	}
	if owned {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "game already in library")
	}

	inCart, err := s.repo.Contains(ctx, userID, gameID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check cart")
	}
	if inCart {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "game already in cart")
	}

	if err := s.repo.Add(ctx, &models.CartItem{UserID: userID, GameID: gameID}); err != nil {
		if db.IsUniqueViolation(err, "cart_items_user_game_key") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "game already in cart")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add cart item")
	}
	return s.GetCart(ctx, userID)
}

func (s *service) RemoveItem(ctx context.Context, userID, gameID uuid.UUID) (*CartDTO, error) {
	removed, err := s.repo.Remove(ctx, userID, gameID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart item")
	}
	if !removed {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "game not in cart")
	}
	return s.GetCart(ctx, userID)
}

func (s *service) ClearCart(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	if _, err := s.repo.Clear(ctx, userID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}
	empty := Summarize(nil)
	return &empty, nil
}

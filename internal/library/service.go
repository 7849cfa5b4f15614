package library

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ministeam/ministeam-api/pkg/enums"
	pkgerrors "github.com/ministeam/ministeam-api/pkg/errors"
	"github.com/ministeam/ministeam-api/pkg/pagination"
)

const (
	defaultListLimit   = 20
	defaultRecentLimit = 5
)

// Service manages owned games and their play state.
type Service interface {
	GetLibrary(ctx context.Context, userID uuid.UUID, filters Filters) (*Page, error)
	GetEntry(ctx context.Context, userID, gameID uuid.UUID) (*EntryDetailDTO, error)
	OwnsGame(ctx context.Context, userID, gameID uuid.UUID) (bool, error)
	UpdateStatus(ctx context.Context, userID, gameID uuid.UUID, req UpdateStatusRequest) (*EntryDetailDTO, error)
	AddPlaytime(ctx context.Context, userID, gameID uuid.UUID, req AddPlaytimeRequest) (*EntryDetailDTO, error)
	Stats(ctx context.Context, userID uuid.UUID) (*Stats, error)
	Recent(ctx context.Context, userID uuid.UUID, limit int) ([]EntryDTO, error)
}

// ServiceParams groups library dependencies.
type ServiceParams struct {
	Repo *Repository
	Now  func() time.Time
}

type service struct {
	repo *Repository
	now  func() time.Time
}

// NewService builds the library service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("library repository is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: params.Repo, now: now}, nil
}

func (s *service) GetLibrary(ctx context.Context, userID uuid.UUID, filters Filters) (*Page, error) {
	var status enums.LibraryStatus
	if raw := strings.TrimSpace(filters.Status); raw != "" {
		parsed, err := enums.ParseLibraryStatus(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid estado_actual filter")
		}
		status = parsed
	}
	filters.Page = pagination.Normalize(filters.Page, defaultListLimit)
	entries, total, err := s.repo.List(ctx, userID, status, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list library")
	}
	return &Page{Games: entries, Pagination: pagination.NewMeta(filters.Page, total)}, nil
}

func (s *service) GetEntry(ctx context.Context, userID, gameID uuid.UUID) (*EntryDetailDTO, error) {
	entry, err := s.repo.FindEntry(ctx, userID, gameID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "game not in library")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load library entry")
	}
	return entry, nil
}

func (s *service) OwnsGame(ctx context.Context, userID, gameID uuid.UUID) (bool, error) {
	owned, err := s.repo.Owns(ctx, userID, gameID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check ownership")
	}
	return owned, nil
}

func (s *service) UpdateStatus(ctx context.Context, userID, gameID uuid.UUID, req UpdateStatusRequest) (*EntryDetailDTO, error) {
	status, err := enums.ParseLibraryStatus(strings.TrimSpace(req.Status))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid estado_actual").
			WithDetails(map[string]any{"allowed": enums.LibraryStatuses()})
	}
	found, err := s.repo.UpdateStatus(ctx, userID, gameID, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update library status")
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "game not in library")
	}
	return s.GetEntry(ctx, userID, gameID)
}

func (s *service) AddPlaytime(ctx context.Context, userID, gameID uuid.UUID, req AddPlaytimeRequest) (*EntryDetailDTO, error) {
	if req.Minutes <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "minutos must be greater than zero")
	}
	if req.Minutes > MaxSessionMinutes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "minutos is too large").
			WithDetails(map[string]any{"max": MaxSessionMinutes})
	}
	found, err := s.repo.AddPlaytime(ctx, userID, gameID, req.Minutes, s.now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add playtime")
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "game not in library")
	}
	return s.GetEntry(ctx, userID, gameID)
}

func (s *service) Stats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	stats, err := s.repo.Stats(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "library stats")
	}
	return stats, nil
}

func (s *service) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]EntryDTO, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > pagination.MaxLimit {
		limit = pagination.MaxLimit
	}
	entries, err := s.repo.Recent(ctx, userID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recent library")
	}
	return entries, nil
}

package genres

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

// Service exposes genre reads and admin mutations.
type Service interface {
	List(ctx context.Context) ([]GenreDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*GenreDTO, error)
	Create(ctx context.Context, req CreateGenreRequest) (*GenreDTO, error)
	Update(ctx context.Context, id uuid.UUID, req UpdateGenreRequest) (*GenreDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ServiceParams groups genre service dependencies.
type ServiceParams struct {
	DB   db.TxRunner
	Repo *Repository
}

type service struct {
	tx   db.TxRunner
	repo *Repository
}

// NewService builds the genre service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database client is required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("genre repository is required")
	}
	return &service{tx: params.DB, repo: params.Repo}, nil
}

func (s *service) List(ctx context.Context) ([]GenreDTO, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list genres")
	}
	return list, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*GenreDTO, error) {
	genre, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "genre not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load genre")
	}
	return genre, nil
}

func (s *service) Create(ctx context.Context, req CreateGenreRequest) (*GenreDTO, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nombre is required")
	}
	if err := s.ensureNameFree(ctx, name, uuid.Nil); err != nil {
		return nil, err
	}
	genre := &models.Genre{Name: name, Description: req.Description}
	if err := s.repo.Create(ctx, genre); err != nil {
		return nil, mapWriteError(err, "create genre")
	}
	return s.Get(ctx, genre.ID)
}

func (s *service) Update(ctx context.Context, id uuid.UUID, req UpdateGenreRequest) (*GenreDTO, error) {
	fields := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "nombre cannot be empty")
		}
		if err := s.ensureNameFree(ctx, name, id); err != nil {
			return nil, err
		}
		fields["name"] = name
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	found, err := s.repo.Update(ctx, id, fields)
	if err != nil {
		return nil, mapWriteError(err, "update genre")
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "genre not found")
	}
	return s.Get(ctx, id)
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		deleted, err := NewRepository(tx).Delete(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete genre")
		}
		if !deleted {
			return pkgerrors.New(pkgerrors.CodeNotFound, "genre not found")
		}
		return nil
	})
}

func (s *service) ensureNameFree(ctx context.Context, name string, exclude uuid.UUID) error {
	taken, err := s.repo.NameTaken(ctx, name, exclude)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check genre name")
	}
	if taken {
		return pkgerrors.New(pkgerrors.CodeConflict, "genre name already exists")
	}
	return nil
}

func mapWriteError(err error, op string) error {
	if db.IsUniqueViolation(err, "genres_name_key") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "genre name already exists")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, op)
}

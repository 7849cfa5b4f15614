package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ministeam/ministeam-api/pkg/config"
	"github.com/ministeam/ministeam-api/pkg/db"
	"github.com/ministeam/ministeam-api/pkg/db/models"
	"github.com/ministeam/ministeam-api/pkg/enums"
	pkgerrors "github.com/ministeam/ministeam-api/pkg/errors"
	"github.com/ministeam/ministeam-api/pkg/pagination"
	"github.com/ministeam/ministeam-api/pkg/security"
)

const defaultListLimit = 10

// Service covers profile reads, self-service updates and admin user management.
type Service interface {
	Profile(ctx context.Context, userID uuid.UUID) (*UserDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*UserDTO, error)
	Update(ctx context.Context, actorID uuid.UUID, actorRole enums.UserRole, targetID uuid.UUID, req UpdateUserRequest) (*UserDTO, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (*Stats, error)
}

// ServiceParams bundles the users service dependencies.
type ServiceParams struct {
	Repo           *Repository
	PasswordConfig config.PasswordConfig
}

type service struct {
	repo        *Repository
	passwordCfg config.PasswordConfig
}

// NewService constructs the users service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("users repository is required")
	}
	return &service{repo: params.Repo, passwordCfg: params.PasswordConfig}, nil
}

func (s *service) Profile(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	return s.Get(ctx, userID)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	return FromModel(user), nil
}

func (s *service) Update(ctx context.Context, actorID uuid.UUID, actorRole enums.UserRole, targetID uuid.UUID, req UpdateUserRequest) (*UserDTO, error) {
	isAdmin := actorRole == enums.UserRoleAdmin
	if !isAdmin && actorID != targetID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot update another user")
	}

	fields := map[string]any{}
	username, email := "", ""
	if req.Username != nil {
		username = strings.TrimSpace(*req.Username)
		if username == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "nombre_usuario cannot be empty")
		}
		fields["username"] = username
	}
	if req.Email != nil {
		email = strings.ToLower(strings.TrimSpace(*req.Email))
		if email == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "correo cannot be empty")
		}
		fields["email"] = email
	}
	if req.Country != nil {
		country := strings.TrimSpace(*req.Country)
		if country == "" {
			fields["country"] = nil
		} else {
			fields["country"] = country
		}
	}
	if req.Password != nil {
		if err := security.CheckPasswordPolicy(*req.Password); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
		}
		hash, err := security.HashPassword(*req.Password, s.passwordCfg)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
		}
		fields["password_hash"] = hash
	}
	if req.IsActive != nil && isAdmin {
		fields["is_active"] = *req.IsActive
	}

	if username != "" || email != "" {
		existing, err := s.repo.FindConflicting(ctx, username, email, targetID)
		switch {
		case err == nil:
			return nil, ConflictFor(existing, username)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user uniqueness")
		}
	}

	found, err := s.repo.Update(ctx, targetID, fields)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "username or email already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update user")
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return s.Get(ctx, targetID)
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	params.Page = pagination.Normalize(params.Page, defaultListLimit)
	rows, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list users")
	}
	out := make([]UserDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return &ListResult{Users: out, Pagination: pagination.NewMeta(params.Page, total)}, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.repo.SoftDelete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete user")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return nil
}

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "user stats")
	}
	return &stats, nil
}

// ConflictFor reports which identity field another account already holds.
func ConflictFor(existing *models.User, username string) error {
	if existing != nil && existing.Username == username {
		return pkgerrors.New(pkgerrors.CodeConflict, "username already in use")
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "email already in use")
}

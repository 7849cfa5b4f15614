package games

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ministeam/ministeam-api/pkg/db"
	"github.com/ministeam/ministeam-api/pkg/db/models"
	pkgerrors "github.com/ministeam/ministeam-api/pkg/errors"
	"github.com/ministeam/ministeam-api/pkg/pagination"
)

const (
	defaultListLimit     = 12
	defaultTopRatedLimit = 10
	defaultFeaturedLimit = 6
	featuredWindow       = 6 * 30 * 24 * time.Hour
	defaultStock         = 999
	defaultPlatform      = "PC"
	releaseDateLayout    = "2006-01-02"
)

// Service exposes the public catalog and admin game management.
type Service interface {
	List(ctx context.Context, filters ListFilters) (*ListResult, error)
	Search(ctx context.Context, term string, page pagination.Params) (*SearchResult, error)
	Get(ctx context.Context, idOrSlug string, includeInactive bool) (*GameDTO, error)
	ByGenre(ctx context.Context, genreID uuid.UUID, page pagination.Params) (*ListResult, error)
	TopRated(ctx context.Context, limit int) ([]GameDTO, error)
	Featured(ctx context.Context, limit int) ([]GameDTO, error)
	Platforms(ctx context.Context) ([]string, error)
	Create(ctx context.Context, req CreateGameRequest) (*GameDTO, error)
	Update(ctx context.Context, id uuid.UUID, req UpdateGameRequest) (*GameDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// GenreChecker confirms a genre exists before a game references it.
type GenreChecker interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// ServiceParams groups catalog dependencies.
type ServiceParams struct {
	Repo   *Repository
	Genres GenreChecker
	Now    func() time.Time
}

type service struct {
	repo   *Repository
	genres GenreChecker
	now    func() time.Time
}

// NewService builds the catalog service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("game repository is required")
	}
	if params.Genres == nil {
		return nil, fmt.Errorf("genre checker is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: params.Repo, genres: params.Genres, now: now}, nil
}

// RecalculateRating refreshes the cached average of a game inside tx.
func RecalculateRating(ctx context.Context, tx *gorm.DB, gameID uuid.UUID) (decimal.Decimal, error) {
	return NewRepository(tx).RecalculateRating(ctx, gameID)
}

func (s *service) List(ctx context.Context, filters ListFilters) (*ListResult, error) {
	filters.Page = pagination.Normalize(filters.Page, defaultListLimit)
	if filters.PriceMin != nil && filters.PriceMax != nil && filters.PriceMin.GreaterThan(*filters.PriceMax) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "precio_min cannot exceed precio_max")
	}
	list, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list games")
	}
	return &ListResult{Games: list, Pagination: pagination.NewMeta(filters.Page, total)}, nil
}

func (s *service) Search(ctx context.Context, term string, page pagination.Params) (*SearchResult, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "search term q is required")
	}
	page = pagination.Normalize(page, defaultListLimit)
	list, total, err := s.repo.Search(ctx, term, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "search games")
	}
	return &SearchResult{
		ListResult: ListResult{Games: list, Pagination: pagination.NewMeta(page, total)},
		SearchTerm: term,
	}, nil
}

func (s *service) Get(ctx context.Context, idOrSlug string, includeInactive bool) (*GameDTO, error) {
	key := strings.TrimSpace(idOrSlug)
	if key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "game id or slug is required")
	}
	var (
		game *GameDTO
		err  error
	)
	if id, parseErr := uuid.Parse(key); parseErr == nil {
		game, err = s.repo.FindByID(ctx, id, !includeInactive)
	} else {
		game, err = s.repo.FindBySlug(ctx, key, !includeInactive)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "game not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load game")
	}
	return game, nil
}

func (s *service) ByGenre(ctx context.Context, genreID uuid.UUID, page pagination.Params) (*ListResult, error) {
	exists, err := s.genres.Exists(ctx, genreID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check genre")
	}
	if !exists {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "genre not found")
	}
	page = pagination.Normalize(page, defaultListLimit)
	list, total, err := s.repo.ByGenre(ctx, genreID, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list games by genre")
	}
	return &ListResult{Games: list, Pagination: pagination.NewMeta(page, total)}, nil
}

func (s *service) TopRated(ctx context.Context, limit int) ([]GameDTO, error) {
	limit = clampLimit(limit, defaultTopRatedLimit)
	list, err := s.repo.TopRated(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list top rated games")
	}
	return list, nil
}

func (s *service) Featured(ctx context.Context, limit int) ([]GameDTO, error) {
	limit = clampLimit(limit, defaultFeaturedLimit)
	since := s.now().UTC().Add(-featuredWindow)
	list, err := s.repo.Featured(ctx, since, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list featured games")
	}
	return list, nil
}

func (s *service) Platforms(ctx context.Context) ([]string, error) {
	list, err := s.repo.Platforms(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list platforms")
	}
	if list == nil {
		list = []string{}
	}
	return list, nil
}

func (s *service) Create(ctx context.Context, req CreateGameRequest) (*GameDTO, error) {
	slug := strings.TrimSpace(req.Slug)
	title := strings.TrimSpace(req.Title)
	if slug == "" || title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "titulo and slug are required")
	}
	price := decimal.Zero
	if req.Price != nil {
		price = *req.Price
	}
	if price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "precio must be zero or greater")
	}
	releaseDate, err := parseReleaseDate(req.ReleaseDate)
	if err != nil {
		return nil, err
	}
	if err := s.ensureGenre(ctx, req.GenreID); err != nil {
		return nil, err
	}
	if err := s.ensureSlugFree(ctx, slug, uuid.Nil); err != nil {
		return nil, err
	}

	game := &models.Game{
		Slug:        slug,
		Title:       title,
		Description: req.Description,
		Price:       price.Round(2),
		Stock:       defaultStock,
		ReleaseDate: releaseDate,
		Developer:   req.Developer,
		Publisher:   req.Publisher,
		GenreID:     req.GenreID,
		Platform:    defaultPlatform,
		AgeRating:   req.AgeRating,
		SteamAppID:  req.SteamAppID,
		RawgID:      req.RawgID,
		ImageURL:    req.ImageURL,
		TrailerURL:  req.TrailerURL,
		IsActive:    true,
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock must be zero or greater")
		}
		game.Stock = *req.Stock
	}
	if req.Platform != nil && strings.TrimSpace(*req.Platform) != "" {
		game.Platform = strings.TrimSpace(*req.Platform)
	}
	if req.IsActive != nil {
		game.IsActive = *req.IsActive
	}

	if err := s.repo.Create(ctx, game); err != nil {
		return nil, mapWriteError(err, "create game")
	}
	return s.Get(ctx, game.ID.String(), true)
}

func (s *service) Update(ctx context.Context, id uuid.UUID, req UpdateGameRequest) (*GameDTO, error) {
	fields := map[string]any{}
	if req.Slug != nil {
		slug := strings.TrimSpace(*req.Slug)
		if slug == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug cannot be empty")
		}
		if err := s.ensureSlugFree(ctx, slug, id); err != nil {
			return nil, err
		}
		fields["slug"] = slug
	}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "titulo cannot be empty")
		}
		fields["title"] = title
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "precio must be zero or greater")
		}
		fields["price"] = req.Price.Round(2)
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock must be zero or greater")
		}
		fields["stock"] = *req.Stock
	}
	if req.ReleaseDate != nil {
		releaseDate, err := parseReleaseDate(req.ReleaseDate)
		if err != nil {
			return nil, err
		}
		fields["release_date"] = releaseDate
	}
	if req.GenreID != nil {
		if err := s.ensureGenre(ctx, req.GenreID); err != nil {
			return nil, err
		}
		fields["genre_id"] = *req.GenreID
	}
	if req.Platform != nil {
		platform := strings.TrimSpace(*req.Platform)
		if platform == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "plataforma cannot be empty")
		}
		fields["platform"] = platform
	}
	setOptional(fields, "description", req.Description)
	setOptional(fields, "developer", req.Developer)
	setOptional(fields, "publisher", req.Publisher)
	setOptional(fields, "age_rating", req.AgeRating)
	setOptional(fields, "image_url", req.ImageURL)
	setOptional(fields, "trailer_url", req.TrailerURL)
	if req.SteamAppID != nil {
		fields["steam_app_id"] = *req.SteamAppID
	}
	if req.RawgID != nil {
		fields["rawg_id"] = *req.RawgID
	}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
	}

	found, err := s.repo.Update(ctx, id, fields)
	if err != nil {
		return nil, mapWriteError(err, "update game")
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "game not found")
	}
	return s.Get(ctx, id.String(), true)
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.repo.SoftDelete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete game")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "game not found")
	}
	return nil
}

func (s *service) ensureGenre(ctx context.Context, genreID *uuid.UUID) error {
	if genreID == nil {
		return nil
	}
	exists, err := s.genres.Exists(ctx, *genreID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check genre")
	}
	if !exists {
		return pkgerrors.New(pkgerrors.CodeValidation, "id_genero does not reference an existing genre")
	}
	return nil
}

func (s *service) ensureSlugFree(ctx context.Context, slug string, exclude uuid.UUID) error {
	taken, err := s.repo.SlugTaken(ctx, slug, exclude)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check slug")
	}
	if taken {
		return pkgerrors.New(pkgerrors.CodeConflict, "slug already in use")
	}
	return nil
}

func parseReleaseDate(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	value := strings.TrimSpace(*raw)
	if t, err := time.Parse(releaseDateLayout, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "fecha_lanzamiento must be YYYY-MM-DD")
	}
	t = t.UTC()
	return &t, nil
}

func setOptional(fields map[string]any, column string, value *string) {
	if value != nil {
		fields[column] = *value
	}
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > pagination.MaxLimit {
		return pagination.MaxLimit
	}
	return limit
}

func mapWriteError(err error, op string) error {
	if db.IsUniqueViolation(err, "games_slug_key") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "slug already in use")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, op)
}

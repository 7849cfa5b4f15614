// Package migrate applies the storefront schema with goose. The SQL files are
// embedded in the binary so the api and relay can migrate from any working
// directory; the migrate CLI can still point at a directory on disk.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"

	"github.com/ministeam/ministeam-api/pkg/logger"
)

// DefaultDir is where new migrations are written, relative to the repo root.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Source returns the embedded migrations when dir is empty and the files
// under dir otherwise.
func Source(dir string) (fs.FS, error) {
	if dir != "" {
		return os.DirFS(dir), nil
	}
	return fs.Sub(embedded, "migrations")
}

// Runner executes goose commands and reports each applied file.
type Runner struct {
	provider *goose.Provider
	logg     *logger.Logger
}

func NewRunner(db *sql.DB, fsys fs.FS, logg *logger.Logger) (*Runner, error) {
	if db == nil {
		return nil, errors.New("migrate: db is required")
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("migrate: provider: %w", err)
	}
	return &Runner{provider: provider, logg: logg}, nil
}

// Commands lists what Apply understands.
var Commands = []string{"up", "up-by-one", "down", "redo", "status"}

func (r *Runner) Apply(ctx context.Context, cmd string) error {
	switch cmd {
	case "up":
		results, err := r.provider.Up(ctx)
		r.report(ctx, results...)
		return wrap(cmd, err)
	case "up-by-one":
		result, err := r.provider.UpByOne(ctx)
		if errors.Is(err, goose.ErrNoNextVersion) {
			r.info(ctx, "schema already current")
			return nil
		}
		r.report(ctx, result)
		return wrap(cmd, err)
	case "down":
		result, err := r.provider.Down(ctx)
		r.report(ctx, result)
		return wrap(cmd, err)
	case "redo":
		down, err := r.provider.Down(ctx)
		r.report(ctx, down)
		if err != nil {
			return wrap(cmd, err)
		}
		up, err := r.provider.UpByOne(ctx)
		r.report(ctx, up)
		return wrap(cmd, err)
	case "status":
		return r.status(ctx)
	}
	return fmt.Errorf("migrate: unknown command %q", cmd)
}

// To moves the schema up or down until version is the newest applied file.
func (r *Runner) To(ctx context.Context, version string) error {
	target, err := strconv.ParseInt(version, 10, 64)
	if err != nil {
		return fmt.Errorf("migrate: version %q is not YYYYMMDDHHMMSS: %w", version, err)
	}
	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("migrate: current version: %w", err)
	}

	var results []*goose.MigrationResult
	switch {
	case target > current:
		results, err = r.provider.UpTo(ctx, target)
	case target < current:
		results, err = r.provider.DownTo(ctx, target)
	}
	r.report(ctx, results...)
	return wrap("version "+version, err)
}

func (r *Runner) status(ctx context.Context) error {
	rows, err := r.provider.Status(ctx)
	if err != nil {
		return wrap("status", err)
	}
	if r.logg == nil {
		return nil
	}
	for _, row := range rows {
		fields := map[string]any{
			"version": row.Source.Version,
			"file":    row.Source.Path,
			"state":   string(row.State),
		}
		if !row.AppliedAt.IsZero() {
			fields["applied_at"] = row.AppliedAt
		}
		r.logg.Info(r.logg.WithFields(ctx, fields), "migration status")
	}
	return nil
}

func (r *Runner) report(ctx context.Context, results ...*goose.MigrationResult) {
	if r.logg == nil {
		return
	}
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		rctx := r.logg.WithFields(ctx, map[string]any{
			"version":     res.Source.Version,
			"file":        res.Source.Path,
			"direction":   res.Direction,
			"duration_ms": res.Duration.Milliseconds(),
		})
		if res.Error != nil {
			r.logg.Error(rctx, "migration failed", res.Error)
			continue
		}
		r.logg.Info(rctx, "migration applied")
	}
}

func (r *Runner) info(ctx context.Context, msg string) {
	if r.logg != nil {
		r.logg.Info(ctx, msg)
	}
}

func wrap(cmd string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("migrate: goose %s: %w", cmd, err)
}

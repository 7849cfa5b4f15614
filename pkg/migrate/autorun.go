package migrate

import (
	"context"
	"fmt"

	"github.com/ministeam/ministeam-api/pkg/config"
	"github.com/ministeam/ministeam-api/pkg/db"
	"github.com/ministeam/ministeam-api/pkg/logger"
)

// AutoApply brings the schema up to date on boot. It only runs in dev with
// MINISTEAM_AUTO_MIGRATE set; other environments use cmd/migrate.
func AutoApply(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("migrate: sql handle: %w", err)
	}
	fsys, err := Source("")
	if err != nil {
		return err
	}
	runner, err := NewRunner(sqlDB, fsys, logg)
	if err != nil {
		return err
	}
	if logg != nil {
		logg.Info(ctx, "applying embedded migrations")
	}
	return runner.Apply(ctx, "up")
}

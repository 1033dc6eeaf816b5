package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/chatshop/pkg/config"
	"github.com/angelmondragon/chatshop/pkg/db"
	"github.com/angelmondragon/chatshop/pkg/logger"
)

// MaybeRun applies pending migrations at boot when auto-migration is enabled.
func MaybeRun(ctx context.Context, cfg config.DBConfig, logg *logger.Logger, client *db.Client) error {
	if !cfg.AutoMigrate {
		return nil
	}

	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithField(ctx, "db_driver", client.Driver())
	logg.Info(ctx, "running goose migrations")

	if err := Run(ctx, sqlDB, client.Driver(), "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "goose migrations completed")
	return nil
}

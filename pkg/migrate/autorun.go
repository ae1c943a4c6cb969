package migrate

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/qrcatalog-backend/pkg/config"
	"github.com/angelmondragon/qrcatalog-backend/pkg/db"
	"github.com/angelmondragon/qrcatalog-backend/pkg/logger"
)

// MaybeRunDev brings the journal schema up at startup. SQLite installs always migrate,
// since nobody runs cmd/migrate against a local file; Postgres only does so in dev with
// the auto-migrate flag.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	dialect := Dialect(cfg.DB.Driver)
	if dialect != "sqlite3" && (!cfg.App.IsDev() || !cfg.Features.AutoMigrate) {
		return nil
	}
	if err := ValidateEmbedded(); err != nil {
		return fmt.Errorf("embedded migrations invalid: %w", err)
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	if err := RunEmbedded(ctx, sqlDB, dialect, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dialect": dialect, "schema_version": version})
	logg.Info(ctx, "journal schema up to date")
	return nil
}

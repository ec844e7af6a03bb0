package app

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/pkg/database"
)

// Migrate connects to Postgres, applies db/pg migrations and disconnects
func Migrate(ctx context.Context, cfg *config.Config, logger ectologger.Logger) error {
	db, err := database.Connect(ctx, DatabaseConfig(cfg), logger)
	if err != nil {
		return err
	}
	defer db.Close()

	return migrate(cfg, db, logger)
}

func migrate(cfg *config.Config, db database.DB, logger ectologger.Logger) error {
	driver, err := database.NewPostgresDriver(db.SQLX(), cfg.DatabaseName)
	if err != nil {
		return err
	}

	service := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             cfg.DatabaseMigrationVersion,
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})
	if err := service.Migrate(cfg.DatabaseName, driver); err != nil {
		return fmt.Errorf("failed to migrate %s: %w", cfg.DatabaseName, err)
	}
	return nil
}

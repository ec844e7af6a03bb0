package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	pkgerrors "github.com/pkg/errors"
)

// migrationLog routes golang-migrate output through the service logger
type migrationLog struct {
	logger ectologger.Logger
}

func (l migrationLog) Verbose() bool { return true }

func (l migrationLog) Printf(format string, v ...any) {
	l.logger.Infof(strings.TrimSuffix(format, "\n"), v...)
}

type MigrationConfig struct {
	MigrationFolderPath string
	// Version pins the schema to a version; zero migrates all the way up
	Version uint
	// Force marks the database clean at this version before migrating
	Force        int
	AutoRollback bool
}

type MigrationService struct {
	config *MigrationConfig
	logger ectologger.Logger
}

func NewMigrationService(logger ectologger.Logger, config *MigrationConfig) *MigrationService {
	return &MigrationService{config: config, logger: logger}
}

// NewPostgresDriver wraps an open connection pool as a migrate database driver
func NewPostgresDriver(db *sqlx.DB, databaseName string) (migratedb.Driver, error) {
	driver, err := postgres.WithInstance(db.DB, &postgres.Config{DatabaseName: databaseName})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create postgres migration driver")
	}
	return driver, nil
}

// sourceURL resolves the migration folder, relative paths against the working directory
func (ms *MigrationService) sourceURL() (string, error) {
	folder := ms.config.MigrationFolderPath
	if !filepath.IsAbs(folder) {
		abs, err := filepath.Abs(folder)
		if err != nil {
			return "", pkgerrors.Wrapf(err, "failed to resolve migration folder %s", folder)
		}
		folder = abs
	}
	if _, err := os.Stat(folder); err != nil {
		return "", pkgerrors.Wrapf(err, "migration folder %s does not exist", folder)
	}
	return "file://" + folder, nil
}

func (ms *MigrationService) Migrate(databaseName string, driver migratedb.Driver) error {
	url, err := ms.sourceURL()
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance(url, databaseName, driver)
	if err != nil {
		ms.logger.WithError(err).Error("Failed to create migrate instance")
		return err
	}
	m.Log = migrationLog{logger: ms.logger}

	if ms.config.Force != 0 {
		if err := m.Force(ms.config.Force); err != nil {
			return pkgerrors.Wrapf(err, "failed to force database to version %d", ms.config.Force)
		}
	}

	before, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		ms.logger.WithError(err).Warn("Failed to read current migration version")
	}

	started := time.Now()
	if ms.config.Version != 0 {
		err = m.Migrate(ms.config.Version)
	} else {
		err = m.Up()
	}
	log := ms.logger.WithFields(map[string]any{
		"database":     databaseName,
		"from_version": before,
		"duration":     time.Since(started).String(),
	})

	switch {
	case err == nil:
		log.Info("Applied database migrations")
		return nil
	case errors.Is(err, migrate.ErrNoChange):
		log.Info("Database schema is up to date")
		return nil
	case strings.Contains(err.Error(), "no migration found for version"):
		// recorded version is ahead of the files on disk
		return ms.forceLatest(m, url, before)
	}

	log.WithError(err).Error("Database migration failed")
	if ms.config.AutoRollback {
		ms.rollbackDirty(m, before)
	}
	return err
}

func (ms *MigrationService) forceLatest(m *migrate.Migrate, url string, recorded uint) error {
	latest, err := latestVersion(url)
	if err != nil {
		return err
	}
	ms.logger.Warnf("No migration found for version %d, forcing latest version %d", recorded, latest)
	if err := m.Force(int(latest)); err != nil {
		return pkgerrors.Wrapf(err, "failed to force database to version %d", latest)
	}
	return nil
}

// rollbackDirty marks a dirty database clean at the version it had before the failed run
func (ms *MigrationService) rollbackDirty(m *migrate.Migrate, before uint) {
	current, dirty, err := m.Version()
	if err != nil || !dirty {
		return
	}
	target := before
	if target == 0 && current > 0 {
		target = current - 1
	}
	ms.logger.Warnf("Database is dirty at version %d, reverting to version %d", current, target)
	if err := m.Force(int(target)); err != nil {
		ms.logger.WithError(err).Errorf("Failed to force database to version %d", target)
	}
}

// latestVersion walks the migration source to its last version
func latestVersion(url string) (uint, error) {
	src, err := source.Open(url)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "failed to open migration source")
	}
	defer src.Close()

	version, err := src.First()
	if err != nil {
		return 0, fmt.Errorf("no migrations found in %s: %w", url, err)
	}
	for {
		next, err := src.Next(version)
		if errors.Is(err, os.ErrNotExist) {
			return version, nil
		}
		if err != nil {
			return 0, err
		}
		version = next
	}
}

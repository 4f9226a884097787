// Package migrations runs versioned SQL migration files against a database
// with golang-migrate.
package migrations

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"

	"github.com/lockplane/schemaclone/database"
	"github.com/lockplane/schemaclone/internal/cloneerr"
)

// Result describes the state after Up
type Result struct {
	Version uint
	Changed bool
}

// Up applies every pending migration in dir. The database handle is
// closed when Up returns.
func Up(db *sql.DB, dialect database.Dialect, dir string, logger zerolog.Logger) (Result, error) {
	driver, name, err := newDriver(db, dialect)
	if err != nil {
		_ = db.Close()
		return Result{}, cloneerr.New(cloneerr.MigrationEngine, "migrate", dir, err)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		_ = db.Close()
		return Result{}, cloneerr.New(cloneerr.Configuration, "migrate", dir, err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+filepath.ToSlash(abs), name, driver)
	if err != nil {
		_ = driver.Close()
		return Result{}, cloneerr.New(cloneerr.MigrationEngine, "migrate", dir,
			fmt.Errorf("failed to create migrator: %w", err))
	}
	defer func() { _, _ = m.Close() }()

	before, _, err := currentVersion(m)
	if err != nil {
		return Result{}, cloneerr.New(cloneerr.MigrationEngine, "migrate", dir, err)
	}

	changed := true
	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return Result{}, cloneerr.New(cloneerr.MigrationEngine, "migrate", dir,
				fmt.Errorf("migration failed: %w", err))
		}
		changed = false
	}

	after, dirty, err := currentVersion(m)
	if err != nil {
		return Result{}, cloneerr.New(cloneerr.MigrationEngine, "migrate", dir, err)
	}
	if dirty {
		return Result{}, cloneerr.Newf(cloneerr.MigrationEngine, "migrate", dir, "database is dirty at version %d", after)
	}

	logger.Info().Uint("from", before).Uint("to", after).Bool("changed", changed).Msg("Migrations applied")
	return Result{Version: after, Changed: changed}, nil
}

func newDriver(db *sql.DB, dialect database.Dialect) (migratedb.Driver, string, error) {
	switch dialect {
	case database.DialectPostgres:
		driver, err := postgres.WithInstance(db, &postgres.Config{})
		if err != nil {
			return nil, "", fmt.Errorf("failed to create migration driver: %w", err)
		}
		return driver, "postgres", nil
	case database.DialectSQLite, database.DialectLibSQL:
		driver, err := sqlite.WithInstance(db, &sqlite.Config{})
		if err != nil {
			return nil, "", fmt.Errorf("failed to create migration driver: %w", err)
		}
		return driver, "sqlite", nil
	}
	return nil, "", fmt.Errorf("migrations are not supported for %s", dialect)
}

func currentVersion(m *migrate.Migrate) (uint, bool, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read migration version: %w", err)
	}
	return version, dirty, nil
}

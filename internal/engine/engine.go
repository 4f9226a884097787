// Package engine snapshots schemas into changelogs and replays changelogs
// against a database, recording what ran in a log table guarded by a lock
// table.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/lockplane/schemaclone/database"
	"github.com/lockplane/schemaclone/database/postgres"
	"github.com/lockplane/schemaclone/database/sqlite"
	"github.com/lockplane/schemaclone/internal/changelog"
	"github.com/lockplane/schemaclone/internal/cloneerr"
)

// CatalogAndSchema names the schema to snapshot. Catalog overrides the
// catalog name recorded in the changelog; empty keeps the database's own.
type CatalogAndSchema struct {
	Catalog string
	Schema  string
}

// TrackingTables are the log and lock table names used by Apply
type TrackingTables struct {
	Log  string
	Lock string
}

// Names returns the table names, log first
func (t TrackingTables) Names() []string {
	return []string{t.Log, t.Lock}
}

// NewDriver creates a new database driver based on the dialect
func NewDriver(dialect database.Dialect) (database.Driver, error) {
	switch dialect {
	case database.DialectPostgres:
		return postgres.NewDriver(), nil
	case database.DialectSQLite:
		return sqlite.NewDriver(), nil
	case database.DialectLibSQL:
		return sqlite.NewLibSQLDriver(), nil
	default:
		return nil, fmt.Errorf("unsupported database dialect: %s", dialect)
	}
}

// Engine diffs and applies changelogs for one dialect
type Engine struct {
	driver   database.Driver
	logger   zerolog.Logger
	now      func() time.Time
	lockedBy string
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger for change set progress
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock sets the clock used for log and lock timestamps
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLockedBy sets the owner recorded in the lock table
func WithLockedBy(owner string) Option {
	return func(e *Engine) { e.lockedBy = owner }
}

// New returns an Engine for dialect
func New(dialect database.Dialect, opts ...Option) (*Engine, error) {
	driver, err := NewDriver(dialect)
	if err != nil {
		return nil, cloneerr.New(cloneerr.MigrationEngine, "new engine", dialect.String(), err)
	}
	return NewWithDriver(driver, opts...), nil
}

// NewWithDriver returns an Engine using driver
func NewWithDriver(driver database.Driver, opts ...Option) *Engine {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	e := &Engine{
		driver:   driver,
		logger:   zerolog.Nop(),
		now:      time.Now,
		lockedBy: "schemaclone@" + host,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Driver returns the engine's database driver
func (e *Engine) Driver() database.Driver {
	return e.driver
}

// Diff snapshots the base tables of one schema (views are excluded) and
// returns a changelog that recreates them
func (e *Engine) Diff(ctx context.Context, db *sql.DB, target CatalogAndSchema) (*changelog.Document, error) {
	schema, err := e.driver.IntrospectSchema(ctx, db, target.Schema)
	if err != nil {
		return nil, cloneerr.New(cloneerr.MigrationEngine, "diff", target.Schema, err)
	}
	if target.Catalog != "" {
		schema.Catalog = target.Catalog
	}

	doc := changelog.FromSchema(schema)
	e.logger.Info().
		Str("catalog", schema.Catalog).
		Str("schema", schema.Name).
		Int("tables", len(schema.Tables)).
		Int("change_sets", len(doc.ChangeSets)).
		Msg("Generated changelog")
	return doc, nil
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/lockplane/schemaclone/database"
)

// Admin implements database.Admin on a server-level PostgreSQL connection.
// Table and schema work happens on connections scoped to the target
// database, obtained from open and closed before the call returns.
type Admin struct {
	db   *sql.DB
	open database.Opener
}

// NewAdmin returns an Admin using db for CREATE/DROP DATABASE. db must not
// be connected to the database being dropped.
func NewAdmin(db *sql.DB, open database.Opener) *Admin {
	return &Admin{db: db, open: open}
}

var _ database.Admin = (*Admin)(nil)

// Dialect returns database.DialectPostgres
func (a *Admin) Dialect() database.Dialect {
	return database.DialectPostgres
}

// DatabaseExists reports whether name is a database on the server
func (a *Admin) DatabaseExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := a.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to look up database %s: %w", name, err)
	}
	return exists, nil
}

// DropTrackingTables drops the tables from the target's search path
func (a *Admin) DropTrackingTables(ctx context.Context, name string, tables []string) error {
	exists, err := a.DatabaseExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	target, err := a.Connect(ctx, name)
	if err != nil {
		return err
	}
	defer func() { _ = target.Close() }()

	for _, table := range tables {
		if _, err := target.ExecContext(ctx, "DROP TABLE IF EXISTS "+pq.QuoteIdentifier(table)); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}
	return nil
}

// DropDatabase drops the database if it exists
func (a *Admin) DropDatabase(ctx context.Context, name string) error {
	if _, err := a.db.ExecContext(ctx, "DROP DATABASE IF EXISTS "+pq.QuoteIdentifier(name)); err != nil {
		return fmt.Errorf("failed to drop database %s: %w", name, err)
	}
	return nil
}

// CreateDatabase creates the database if it does not exist. PostgreSQL has
// no CREATE DATABASE IF NOT EXISTS, so existence is checked first.
func (a *Admin) CreateDatabase(ctx context.Context, name string) error {
	exists, err := a.DatabaseExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if _, err := a.db.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name)); err != nil {
		return fmt.Errorf("failed to create database %s: %w", name, err)
	}
	return nil
}

// CreateSchema creates the schema inside the target database
func (a *Admin) CreateSchema(ctx context.Context, name, schema string) error {
	target, err := a.Connect(ctx, name)
	if err != nil {
		return err
	}
	defer func() { _ = target.Close() }()

	if _, err := target.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+pq.QuoteIdentifier(schema)); err != nil {
		return fmt.Errorf("failed to create schema %s in %s: %w", schema, name, err)
	}
	return nil
}

// Connect opens a connection to the named database on the same server
func (a *Admin) Connect(ctx context.Context, name string) (*sql.DB, error) {
	if a.open == nil {
		return nil, fmt.Errorf("no way to connect to database %s: %w", name, database.ErrUnsupported)
	}
	return a.open(ctx, name)
}

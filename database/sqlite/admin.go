package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/lockplane/schemaclone/database"
)

// FileExtension is appended to database names to form file names.
const FileExtension = ".db"

// Admin implements database.Admin for a directory of SQLite files. Each
// database is the file <dir>/<name>.db; dropping removes the file and its
// journals, creating makes an empty file.
type Admin struct {
	dir  string
	open database.Opener
}

// NewAdmin returns an Admin for the databases in dir. A nil open uses
// modernc.org/sqlite with foreign keys enabled.
func NewAdmin(dir string, open database.Opener) *Admin {
	a := &Admin{dir: dir, open: open}
	if a.open == nil {
		a.open = a.openFile
	}
	return a
}

var _ database.Admin = (*Admin)(nil)

// Dialect returns database.DialectSQLite
func (a *Admin) Dialect() database.Dialect {
	return database.DialectSQLite
}

// Path returns the file backing the named database
func (a *Admin) Path(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid database name %q", name)
	}
	return filepath.Join(a.dir, name+FileExtension), nil
}

func (a *Admin) exists(name string) (bool, string, error) {
	path, err := a.Path(name)
	if err != nil {
		return false, "", err
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, path, nil
	}
	if err != nil {
		return false, path, fmt.Errorf("failed to access %s: %w", path, err)
	}
	if info.IsDir() {
		return false, path, fmt.Errorf("%s is a directory", path)
	}
	return true, path, nil
}

// DropTrackingTables drops the tables if the database file exists
func (a *Admin) DropTrackingTables(ctx context.Context, name string, tables []string) error {
	exists, _, err := a.exists(name)
	if err != nil || !exists {
		return err
	}

	target, err := a.Connect(ctx, name)
	if err != nil {
		return err
	}
	defer func() { _ = target.Close() }()

	for _, table := range tables {
		if _, err := target.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdentifier(table)); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}
	return nil
}

// DropDatabase removes the database file and its journals
func (a *Admin) DropDatabase(ctx context.Context, name string) error {
	path, err := a.Path(name)
	if err != nil {
		return err
	}
	for _, p := range []string{path, path + "-wal", path + "-shm", path + "-journal"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to drop database %s: %w", name, err)
		}
	}
	return nil
}

// CreateDatabase creates an empty database file if none exists. A
// zero-length file is a valid empty SQLite database.
func (a *Admin) CreateDatabase(ctx context.Context, name string) error {
	exists, path, err := a.exists(name)
	if err != nil || exists {
		return err
	}
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", a.dir, err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create database %s: %w", name, err)
	}
	return f.Close()
}

// CreateSchema succeeds without changes when the database exists: every
// SQLite file has exactly one schema, "main".
func (a *Admin) CreateSchema(ctx context.Context, name, schema string) error {
	exists, path, err := a.exists(name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("failed to create schema %s: database %s does not exist at %s", schema, name, path)
	}
	return nil
}

// Connect opens the database file
func (a *Admin) Connect(ctx context.Context, name string) (*sql.DB, error) {
	return a.open(ctx, name)
}

func (a *Admin) openFile(ctx context.Context, name string) (*sql.DB, error) {
	path, err := a.Path(name)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return db, nil
}

// RemoteAdmin implements database.Admin for a libSQL server, which exposes
// one database per URL and cannot create or drop databases.
type RemoteAdmin struct {
	open database.Opener
}

// NewRemoteAdmin returns an Admin for a libSQL database reached through open
func NewRemoteAdmin(open database.Opener) *RemoteAdmin {
	return &RemoteAdmin{open: open}
}

var _ database.Admin = (*RemoteAdmin)(nil)

// Dialect returns database.DialectLibSQL
func (a *RemoteAdmin) Dialect() database.Dialect {
	return database.DialectLibSQL
}

// DropTrackingTables drops the tables from the remote database
func (a *RemoteAdmin) DropTrackingTables(ctx context.Context, name string, tables []string) error {
	target, err := a.Connect(ctx, name)
	if err != nil {
		return err
	}
	defer func() { _ = target.Close() }()

	for _, table := range tables {
		if _, err := target.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdentifier(table)); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}
	return nil
}

// DropDatabase is not supported by libSQL
func (a *RemoteAdmin) DropDatabase(ctx context.Context, name string) error {
	return fmt.Errorf("drop database %s: %w", name, database.ErrUnsupported)
}

// CreateDatabase is not supported by libSQL
func (a *RemoteAdmin) CreateDatabase(ctx context.Context, name string) error {
	return fmt.Errorf("create database %s: %w", name, database.ErrUnsupported)
}

// CreateSchema succeeds without changes: libSQL has only "main"
func (a *RemoteAdmin) CreateSchema(ctx context.Context, name, schema string) error {
	return nil
}

// Connect opens the remote database
func (a *RemoteAdmin) Connect(ctx context.Context, name string) (*sql.DB, error) {
	return a.open(ctx, name)
}

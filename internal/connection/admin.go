package connection

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/lockplane/schemaclone/database"
	"github.com/lockplane/schemaclone/database/postgres"
	"github.com/lockplane/schemaclone/database/sqlite"
	"github.com/lockplane/schemaclone/internal/cloneerr"
)

// Admin is a server-level handle for provisioning. Close releases the
// server connection, if one was opened.
type Admin struct {
	database.Admin
	close func() error
}

// Close releases the server connection
func (a *Admin) Close() error {
	if a.close == nil {
		return nil
	}
	return a.close()
}

// OpenAdmin returns an Admin for the server the request addresses.
// PostgreSQL keeps a server-level connection and opens target connections
// per database; SQLite treats the URL as a directory of database files;
// libSQL has a single remote database.
func (p *Provider) OpenAdmin(ctx context.Context, req Request) (*Admin, error) {
	opener := func(ctx context.Context, name string) (*sql.DB, error) {
		target, err := req.ForDatabase(name)
		if err != nil {
			return nil, err
		}
		return p.Acquire(ctx, target)
	}

	switch dialect := req.Dialect(); dialect {
	case database.DialectPostgres:
		db, err := p.Acquire(ctx, req)
		if err != nil {
			return nil, err
		}
		return &Admin{Admin: postgres.NewAdmin(db, opener), close: db.Close}, nil

	case database.DialectSQLite:
		dir := SQLitePath(req.URL)
		if dir == "" || dir == ":memory:" {
			return nil, cloneerr.New(cloneerr.Configuration, "open admin", req.URL,
				fmt.Errorf("a SQLite server URL must name a directory"))
		}
		if req.Driver == nil {
			opener = nil
		}
		return &Admin{Admin: sqlite.NewAdmin(filepath.Clean(dir), opener)}, nil

	case database.DialectLibSQL:
		return &Admin{Admin: sqlite.NewRemoteAdmin(opener)}, nil

	default:
		return nil, cloneerr.New(cloneerr.Connection, "open admin", Redact(req.URL),
			fmt.Errorf("cannot determine database type from URL"))
	}
}

package provision

import (
	"context"
	"database/sql"

	"github.com/lockplane/schemaclone/internal/changelog"
	"github.com/lockplane/schemaclone/internal/engine"
)

// Applier replays a changelog on a connection scoped to the target
// database, recording progress in tables.
type Applier interface {
	Apply(ctx context.Context, db *sql.DB, tables engine.TrackingTables) error
}

// ApplierFunc adapts a function to Applier.
type ApplierFunc func(ctx context.Context, db *sql.DB, tables engine.TrackingTables) error

func (f ApplierFunc) Apply(ctx context.Context, db *sql.DB, tables engine.TrackingTables) error {
	return f(ctx, db, tables)
}

// ChangelogApplier applies Document with Engine.
type ChangelogApplier struct {
	Engine   *engine.Engine
	Document *changelog.Document
}

func (a ChangelogApplier) Apply(ctx context.Context, db *sql.DB, tables engine.TrackingTables) error {
	return a.Engine.Apply(ctx, db, a.Document, tables)
}

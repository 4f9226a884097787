package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lockplane/schemaclone/database"
)

func TestNewDriver(t *testing.T) {
	driver := NewDriver()

	if driver.Introspector == nil || driver.Generator == nil {
		t.Fatal("Expected introspector and generator")
	}
	if driver.Name() != "sqlite" || driver.Dialect() != database.DialectSQLite {
		t.Errorf("Unexpected driver identity %s/%s", driver.Name(), driver.Dialect())
	}

	libsql := NewLibSQLDriver()
	if libsql.Name() != "libsql" || libsql.Dialect() != database.DialectLibSQL {
		t.Errorf("Unexpected libsql driver identity %s/%s", libsql.Name(), libsql.Dialect())
	}
}

func TestDriver_SupportsFeature(t *testing.T) {
	driver := NewDriver()

	tests := []struct {
		feature  string
		expected bool
	}{
		{database.FeatureSchemas, false},
		{database.FeatureAlterAddForeignKey, false},
		{database.FeatureTableComments, false},
		{database.FeatureTransactionalDDL, true},
		{"UNSUPPORTED_FEATURE", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.feature, func(t *testing.T) {
			if got := driver.SupportsFeature(tt.feature); got != tt.expected {
				t.Errorf("SupportsFeature(%s) = %v, want %v", tt.feature, got, tt.expected)
			}
		})
	}
}

func TestAdmin_Lifecycle(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "clones")
	admin := NewAdmin(dir, nil)
	path := filepath.Join(dir, "sales.db")

	// Dropping what does not exist is fine
	if err := admin.DropTrackingTables(ctx, "sales", []string{"CLONE_LOG", "CLONE_LOCK"}); err != nil {
		t.Fatalf("DropTrackingTables on missing database: %v", err)
	}
	if err := admin.DropDatabase(ctx, "sales"); err != nil {
		t.Fatalf("DropDatabase on missing database: %v", err)
	}
	if err := admin.CreateSchema(ctx, "sales", "main"); err == nil {
		t.Fatal("Expected CreateSchema to fail before the database exists")
	}

	if err := admin.CreateDatabase(ctx, "sales"); err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Expected database file: %v", err)
	}
	// Idempotent
	if err := admin.CreateDatabase(ctx, "sales"); err != nil {
		t.Fatalf("second CreateDatabase: %v", err)
	}
	if err := admin.CreateSchema(ctx, "sales", "main"); err != nil {
		t.Fatalf("CreateSchema: %v", err)
	}

	db, err := admin.Connect(ctx, "sales")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	mustExec(t, db, "CREATE TABLE CLONE_LOG (id INTEGER)", "CREATE TABLE CLONE_LOCK (id INTEGER)", "CREATE TABLE keep (id INTEGER)")
	_ = db.Close()

	if err := admin.DropTrackingTables(ctx, "sales", []string{"CLONE_LOG", "CLONE_LOCK"}); err != nil {
		t.Fatalf("DropTrackingTables: %v", err)
	}

	db, err = admin.Connect(ctx, "sales")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	tables, err := NewIntrospector().GetTables(ctx, db, "")
	_ = db.Close()
	if err != nil {
		t.Fatalf("GetTables: %v", err)
	}
	if len(tables) != 1 || tables[0] != "keep" {
		t.Errorf("Expected only the keep table to remain, got %v", tables)
	}

	if err := admin.DropDatabase(ctx, "sales"); err != nil {
		t.Fatalf("DropDatabase: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected database file to be removed, stat err = %v", err)
	}
}

func TestAdmin_RejectsPathNames(t *testing.T) {
	admin := NewAdmin(t.TempDir(), nil)

	for _, name := range []string{"", "..", "a/b", `a\b`} {
		if err := admin.CreateDatabase(context.Background(), name); err == nil {
			t.Errorf("Expected error for database name %q", name)
		}
	}
}

func TestRemoteAdmin_Unsupported(t *testing.T) {
	admin := NewRemoteAdmin(nil)

	if err := admin.DropDatabase(context.Background(), "x"); !errors.Is(err, database.ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported, got %v", err)
	}
	if err := admin.CreateDatabase(context.Background(), "x"); !errors.Is(err, database.ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported, got %v", err)
	}
	if err := admin.CreateSchema(context.Background(), "x", "main"); err != nil {
		t.Errorf("Expected CreateSchema to succeed, got %v", err)
	}
}

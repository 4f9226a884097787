package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
)

// getTestDB returns a connection to POSTGRES_URL or skips the test
func getTestDB(t *testing.T) (*sql.DB, string) {
	t.Helper()

	dbURL := os.Getenv("POSTGRES_URL")
	if dbURL == "" {
		t.Skip("Skipping test: POSTGRES_URL not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Skipf("Skipping test: cannot open database: %v", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		t.Skipf("Skipping test: database not available: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db, dbURL
}

func createTestSchema(t *testing.T, db *sql.DB) string {
	t.Helper()

	schema := fmt.Sprintf("schemaclone_test_%d", time.Now().UnixNano())
	ctx := context.Background()
	statements := []string{
		"CREATE SCHEMA " + schema,
		"CREATE TABLE " + schema + `.users (
			id serial PRIMARY KEY,
			email varchar(255) NOT NULL UNIQUE,
			status text DEFAULT 'active'
		)`,
		"COMMENT ON TABLE " + schema + ".users IS 'application users'",
		"CREATE TABLE " + schema + `.posts (
			id bigserial PRIMARY KEY,
			user_id integer NOT NULL REFERENCES ` + schema + `.users (id) ON DELETE CASCADE,
			title text NOT NULL
		)`,
		"CREATE INDEX idx_posts_title ON " + schema + ".posts (title, user_id)",
		"CREATE VIEW " + schema + ".titles AS SELECT title FROM " + schema + ".posts",
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("Failed to execute %q: %v", stmt, err)
		}
	}
	t.Cleanup(func() {
		_, _ = db.ExecContext(context.Background(), "DROP SCHEMA IF EXISTS "+schema+" CASCADE")
	})
	return schema
}

func TestIntrospector_IntrospectSchema(t *testing.T) {
	db, _ := getTestDB(t)
	schemaName := createTestSchema(t, db)

	schema, err := NewIntrospector().IntrospectSchema(context.Background(), db, schemaName)
	if err != nil {
		t.Fatalf("IntrospectSchema failed: %v", err)
	}

	if schema.Catalog == "" {
		t.Error("Expected catalog to be the current database")
	}
	if len(schema.Tables) != 2 {
		t.Fatalf("Expected 2 base tables (view excluded), got %d", len(schema.Tables))
	}

	posts, users := schema.Tables[0], schema.Tables[1]
	if users.Name != "users" || users.Remarks != "application users" {
		t.Errorf("Unexpected users table %+v", users)
	}
	if users.Columns[0].Type != "serial" || users.Columns[0].Default != nil {
		t.Errorf("Expected serial id without default, got %+v", users.Columns[0])
	}
	if users.Columns[1].Type != "character varying(255)" {
		t.Errorf("Expected varchar type with length, got %q", users.Columns[1].Type)
	}
	if users.Columns[2].Default == nil || *users.Columns[2].Default != "'active'" {
		t.Errorf("Expected normalized default, got %v", users.Columns[2].Default)
	}
	if len(users.Indexes) != 0 {
		t.Errorf("Expected UNIQUE constraint index to be skipped, got %+v", users.Indexes)
	}

	if posts.Columns[0].Type != "bigserial" {
		t.Errorf("Expected bigserial, got %q", posts.Columns[0].Type)
	}
	if len(posts.Indexes) != 1 || len(posts.Indexes[0].Columns) != 2 || posts.Indexes[0].Columns[0] != "title" {
		t.Errorf("Unexpected posts indexes %+v", posts.Indexes)
	}
	if len(posts.ForeignKeys) != 1 || posts.ForeignKeys[0].ReferencedTable != "users" {
		t.Errorf("Unexpected posts foreign keys %+v", posts.ForeignKeys)
	}
}

func TestAdmin_CreateAndDropDatabase(t *testing.T) {
	db, dbURL := getTestDB(t)
	ctx := context.Background()

	name := fmt.Sprintf("schemaclone_admin_%d", time.Now().UnixNano())
	open := func(ctx context.Context, database string) (*sql.DB, error) {
		u, err := url.Parse(dbURL)
		if err != nil {
			return nil, err
		}
		u.Path = "/" + database
		return sql.Open("postgres", u.String())
	}
	admin := NewAdmin(db, open)
	t.Cleanup(func() { _ = admin.DropDatabase(context.Background(), name) })

	if err := admin.DropTrackingTables(ctx, name, []string{"CLONE_LOG"}); err != nil {
		t.Fatalf("DropTrackingTables on missing database: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := admin.CreateDatabase(ctx, name); err != nil {
			t.Fatalf("CreateDatabase #%d: %v", i+1, err)
		}
		if err := admin.CreateSchema(ctx, name, "reporting"); err != nil {
			t.Fatalf("CreateSchema #%d: %v", i+1, err)
		}
	}

	exists, err := admin.DatabaseExists(ctx, name)
	if err != nil || !exists {
		t.Fatalf("Expected database to exist, got %v, %v", exists, err)
	}

	if err := admin.DropDatabase(ctx, name); err != nil {
		t.Fatalf("DropDatabase: %v", err)
	}
	if exists, _ := admin.DatabaseExists(ctx, name); exists {
		t.Error("Expected database to be dropped")
	}
}

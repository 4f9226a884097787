package sqlite

import (
	"context"
	"strings"
	"testing"

	"github.com/lockplane/schemaclone/database"
)

func TestGenerator_CreateTable(t *testing.T) {
	gen := NewGenerator()

	def := "0"
	table := database.Table{
		Name: "users",
		Columns: []database.Column{
			{Name: "id", Type: "INTEGER", Nullable: false, IsPrimaryKey: true},
			{Name: "email", Type: "TEXT", Nullable: false},
			{Name: "visits", Type: "INTEGER", Nullable: true, Default: &def},
		},
	}

	sql, desc := gen.CreateTable("main", table, true)

	if desc != "Create table users" {
		t.Errorf("Unexpected description %q", desc)
	}
	want := "CREATE TABLE \"users\" (\n  \"id\" INTEGER PRIMARY KEY NOT NULL,\n  \"email\" TEXT NOT NULL,\n  \"visits\" INTEGER DEFAULT 0\n)"
	if sql != want {
		t.Errorf("Unexpected SQL\nwant:\n%s\ngot:\n%s", want, sql)
	}
}

func TestGenerator_CreateTableCompositeKeyAndForeignKeys(t *testing.T) {
	gen := NewGenerator()

	cascade := "CASCADE"
	table := database.Table{
		Name: "memberships",
		Columns: []database.Column{
			{Name: "team_id", Type: "INTEGER", IsPrimaryKey: true},
			{Name: "user_id", Type: "INTEGER", IsPrimaryKey: true},
		},
		ForeignKeys: []database.ForeignKey{
			{Name: "fk_team", Columns: []string{"team_id"}, ReferencedTable: "teams", ReferencedColumns: []string{"id"}, OnDelete: &cascade},
		},
	}

	inlined, _ := gen.CreateTable("", table, true)
	if !strings.Contains(inlined, `PRIMARY KEY ("team_id", "user_id")`) {
		t.Errorf("Expected composite primary key constraint, got:\n%s", inlined)
	}
	if strings.Contains(inlined, "INTEGER PRIMARY KEY") {
		t.Errorf("Composite key columns must not be inline primary keys:\n%s", inlined)
	}
	if !strings.Contains(inlined, `CONSTRAINT "fk_team" FOREIGN KEY ("team_id") REFERENCES "teams" ("id") ON DELETE CASCADE`) {
		t.Errorf("Expected inlined foreign key, got:\n%s", inlined)
	}

	bare, _ := gen.CreateTable("", table, false)
	if strings.Contains(bare, "FOREIGN KEY") {
		t.Errorf("Expected no foreign keys, got:\n%s", bare)
	}
}

func TestGenerator_CreateIndex(t *testing.T) {
	gen := NewGenerator()

	sql, _ := gen.CreateIndex("main", "users", database.Index{Name: "idx_email", Columns: []string{"email", "name"}, Unique: true})
	want := `CREATE UNIQUE INDEX "idx_email" ON "users" ("email", "name")`
	if sql != want {
		t.Errorf("Expected %q, got %q", want, sql)
	}
}

func TestGenerator_NoSchemasOrComments(t *testing.T) {
	gen := NewGenerator()

	if got := gen.QualifiedName("public", "users"); got != `"users"` {
		t.Errorf("Expected schema to be ignored, got %s", got)
	}
	if got := gen.CommentOnTable("main", "users", "x"); got != "" {
		t.Errorf("Expected no comment SQL, got %q", got)
	}
	if got := gen.QuoteIdentifier(`we"ird`); got != `"we""ird"` {
		t.Errorf("Expected escaped quote, got %s", got)
	}
	if gen.ParameterPlaceholder(3) != "?" {
		t.Errorf("Expected ?, got %s", gen.ParameterPlaceholder(3))
	}
}

func TestGenerator_OutputExecutes(t *testing.T) {
	db := getTestDB(t)
	gen := NewGenerator()

	users := database.Table{
		Name: "users",
		Columns: []database.Column{
			{Name: "id", Type: "INTEGER", IsPrimaryKey: true},
			{Name: "email", Type: "TEXT"},
		},
	}
	posts := database.Table{
		Name: "posts",
		Columns: []database.Column{
			{Name: "id", Type: "INTEGER", IsPrimaryKey: true},
			{Name: "user_id", Type: "INTEGER"},
		},
		ForeignKeys: []database.ForeignKey{
			{Name: "fk_posts_user", Columns: []string{"user_id"}, ReferencedTable: "users", ReferencedColumns: []string{"id"}},
		},
	}

	for _, table := range []database.Table{users, posts} {
		stmt, _ := gen.CreateTable("main", table, true)
		mustExec(t, db, stmt)
	}
	idx, _ := gen.CreateIndex("main", "users", database.Index{Name: "idx_users_email", Columns: []string{"email"}})
	mustExec(t, db, idx)

	schema, err := NewIntrospector().IntrospectSchema(context.Background(), db, "main")
	if err != nil {
		t.Fatalf("IntrospectSchema failed: %v", err)
	}
	if len(schema.Tables) != 2 {
		t.Fatalf("Expected 2 tables, got %d", len(schema.Tables))
	}
	if len(schema.Tables[0].ForeignKeys) != 1 {
		t.Errorf("Expected posts to keep its foreign key, got %+v", schema.Tables[0])
	}
	if len(schema.Tables[1].Indexes) != 1 {
		t.Errorf("Expected users to have its index, got %+v", schema.Tables[1])
	}
}

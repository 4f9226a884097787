package postgres

import (
	"strings"
	"testing"

	"github.com/lockplane/schemaclone/database"
)

func TestGenerator_CreateTable(t *testing.T) {
	gen := NewGenerator()

	def := "now()"
	table := database.Table{
		Name: "users",
		Columns: []database.Column{
			{Name: "id", Type: "integer", Nullable: false, IsPrimaryKey: true},
			{Name: "email", Type: "character varying(255)", Nullable: false},
			{Name: "created_at", Type: "timestamp with time zone", Nullable: true, Default: &def},
		},
	}

	sql, desc := gen.CreateTable("public", table, false)

	if desc != `Create table "public"."users"` {
		t.Errorf("Unexpected description %q", desc)
	}
	want := "CREATE TABLE \"public\".\"users\" (\n" +
		"  \"id\" integer NOT NULL PRIMARY KEY,\n" +
		"  \"email\" character varying(255) NOT NULL,\n" +
		"  \"created_at\" timestamp with time zone DEFAULT now()\n" +
		")"
	if sql != want {
		t.Errorf("Unexpected SQL\nwant:\n%s\ngot:\n%s", want, sql)
	}
}

func TestGenerator_CreateTableCompositePrimaryKey(t *testing.T) {
	gen := NewGenerator()

	table := database.Table{
		Name: "memberships",
		Columns: []database.Column{
			{Name: "team_id", Type: "integer", IsPrimaryKey: true},
			{Name: "user_id", Type: "integer", IsPrimaryKey: true},
		},
	}

	sql, _ := gen.CreateTable("hr", table, false)
	if !strings.Contains(sql, `PRIMARY KEY ("team_id", "user_id")`) {
		t.Errorf("Expected composite primary key, got:\n%s", sql)
	}
	if strings.Contains(sql, "NOT NULL PRIMARY KEY") {
		t.Errorf("Columns of a composite key must not be inline primary keys:\n%s", sql)
	}
}

func TestGenerator_CreateIndex(t *testing.T) {
	gen := NewGenerator()

	tests := []struct {
		name string
		idx  database.Index
		want string
	}{
		{
			name: "regular",
			idx:  database.Index{Name: "idx_users_email", Columns: []string{"email"}},
			want: `CREATE INDEX "idx_users_email" ON "public"."users" ("email")`,
		},
		{
			name: "unique multi-column",
			idx:  database.Index{Name: "idx_users_name", Columns: []string{"last", "first"}, Unique: true},
			want: `CREATE UNIQUE INDEX "idx_users_name" ON "public"."users" ("last", "first")`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, desc := gen.CreateIndex("public", "users", tt.idx)
			if sql != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, sql)
			}
			if !strings.Contains(desc, tt.idx.Name) {
				t.Errorf("Expected description to name the index, got %q", desc)
			}
		})
	}
}

func TestGenerator_AddForeignKey(t *testing.T) {
	gen := NewGenerator()

	onDelete := "CASCADE"
	onUpdate := "RESTRICT"
	fk := database.ForeignKey{
		Name:              "fk_posts_user",
		Columns:           []string{"user_id"},
		ReferencedTable:   "users",
		ReferencedColumns: []string{"id"},
		OnDelete:          &onDelete,
		OnUpdate:          &onUpdate,
	}

	sql, _ := gen.AddForeignKey("public", "posts", fk)
	want := `ALTER TABLE "public"."posts" ADD CONSTRAINT "fk_posts_user" FOREIGN KEY ("user_id") REFERENCES "public"."users" ("id") ON DELETE CASCADE ON UPDATE RESTRICT`
	if sql != want {
		t.Errorf("Expected:\n%s\ngot:\n%s", want, sql)
	}
}

func TestGenerator_CommentOnTable(t *testing.T) {
	gen := NewGenerator()

	got := gen.CommentOnTable("public", "users", "it's the users")
	want := `COMMENT ON TABLE "public"."users" IS 'it''s the users'`
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestGenerator_QualifiedName(t *testing.T) {
	gen := NewGenerator()

	if got := gen.QualifiedName("", "users"); got != `"users"` {
		t.Errorf("Expected unqualified name, got %s", got)
	}
	if got := gen.QualifiedName("Sales", "Users"); got != `"Sales"."Users"` {
		t.Errorf("Expected quoted mixed-case name, got %s", got)
	}
	if gen.ParameterPlaceholder(2) != "$2" {
		t.Errorf("Expected $2, got %s", gen.ParameterPlaceholder(2))
	}
}

func TestDriver_SupportsFeature(t *testing.T) {
	driver := NewDriver()

	for _, feature := range []string{
		database.FeatureSchemas,
		database.FeatureAlterAddForeignKey,
		database.FeatureTableComments,
		database.FeatureTransactionalDDL,
	} {
		if !driver.SupportsFeature(feature) {
			t.Errorf("Expected postgres to support %s", feature)
		}
	}
	if driver.SupportsFeature("UNSUPPORTED_FEATURE") {
		t.Error("Expected unknown features to be unsupported")
	}
	if driver.Name() != "postgres" || driver.Dialect() != database.DialectPostgres {
		t.Errorf("Unexpected driver identity %s/%s", driver.Name(), driver.Dialect())
	}
}

func TestNormalizeDefault(t *testing.T) {
	tests := map[string]string{
		"'{}'::jsonb":                 "'{}'",
		"'active'::character varying": "'active'",
		"now()":                       "now()",
		"'a::b'":                      "'a::b'",
	}
	for in, want := range tests {
		if got := normalizeDefault(in); got != want {
			t.Errorf("normalizeDefault(%q) = %q, want %q", in, got, want)
		}
	}
}

package sqlite

import (
	"fmt"
	"strings"

	"github.com/lockplane/schemaclone/database"
)

// Generator implements database.SQLGenerator for SQLite. A connection is
// scoped to one database file, so schema names are never emitted.
type Generator struct{}

// NewGenerator creates a new SQLite SQL generator
func NewGenerator() *Generator {
	return &Generator{}
}

// CreateTable generates SQLite SQL to create a table
func (g *Generator) CreateTable(schema string, table database.Table, inlineForeignKeys bool) (string, string) {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("CREATE TABLE %s (\n", g.QualifiedName(schema, table.Name)))

	pk := table.PrimaryKey()
	inlinePK := len(pk) == 1

	var defs []string
	for _, col := range table.Columns {
		defs = append(defs, g.FormatColumnDefinition(col, inlinePK))
	}
	if len(pk) > 1 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", g.quoteList(pk)))
	}
	if inlineForeignKeys {
		for _, fk := range table.ForeignKeys {
			defs = append(defs, g.FormatForeignKeyConstraint(fk))
		}
	}

	for i, def := range defs {
		sb.WriteString("  ")
		sb.WriteString(def)
		if i < len(defs)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}

	sb.WriteString(")")

	description := fmt.Sprintf("Create table %s", table.Name)
	return sb.String(), description
}

// CreateIndex generates SQLite SQL to add an index
func (g *Generator) CreateIndex(schema, tableName string, idx database.Index) (string, string) {
	uniqueStr := ""
	if idx.Unique {
		uniqueStr = "UNIQUE "
	}

	sql := fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)",
		uniqueStr, g.QuoteIdentifier(idx.Name), g.QualifiedName(schema, tableName), g.quoteList(idx.Columns))

	description := fmt.Sprintf("Create index %s on table %s", idx.Name, tableName)
	return sql, description
}

// AddForeignKey returns the constraint clause only. SQLite cannot add a
// foreign key to an existing table, so callers inline it in CREATE TABLE.
func (g *Generator) AddForeignKey(schema, tableName string, fk database.ForeignKey) (string, string) {
	description := fmt.Sprintf("Add foreign key %s to table %s (inlined in CREATE TABLE)", fk.Name, tableName)
	return g.FormatForeignKeyConstraint(fk), description
}

// CommentOnTable returns "": SQLite has no table comments
func (g *Generator) CommentOnTable(schema, tableName, remarks string) string {
	return ""
}

// FormatColumnDefinition formats a column definition for CREATE TABLE
func (g *Generator) FormatColumnDefinition(col database.Column, inlinePrimaryKey bool) string {
	var sb strings.Builder

	sb.WriteString(g.QuoteIdentifier(col.Name))
	if col.Type != "" {
		sb.WriteString(" ")
		sb.WriteString(col.Type)
	}

	// Primary key (must come before NOT NULL in SQLite)
	if col.IsPrimaryKey && inlinePrimaryKey {
		sb.WriteString(" PRIMARY KEY")
	}

	if !col.Nullable {
		sb.WriteString(" NOT NULL")
	}

	if col.Default != nil {
		sb.WriteString(fmt.Sprintf(" DEFAULT %s", *col.Default))
	}

	return sb.String()
}

// FormatForeignKeyConstraint formats a foreign key constraint for CREATE TABLE
func (g *Generator) FormatForeignKeyConstraint(fk database.ForeignKey) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		g.QuoteIdentifier(fk.Name),
		g.quoteList(fk.Columns),
		g.QuoteIdentifier(fk.ReferencedTable),
		g.quoteList(fk.ReferencedColumns)))

	if fk.OnDelete != nil {
		sb.WriteString(fmt.Sprintf(" ON DELETE %s", *fk.OnDelete))
	}
	if fk.OnUpdate != nil {
		sb.WriteString(fmt.Sprintf(" ON UPDATE %s", *fk.OnUpdate))
	}

	return sb.String()
}

// QualifiedName returns the quoted table name; the schema is ignored
func (g *Generator) QualifiedName(schema, name string) string {
	return g.QuoteIdentifier(name)
}

// QuoteIdentifier wraps name in double quotes
func (g *Generator) QuoteIdentifier(name string) string {
	return quoteIdentifier(name)
}

// ParameterPlaceholder returns the SQLite parameter placeholder (?)
func (g *Generator) ParameterPlaceholder(position int) string {
	return "?"
}

func (g *Generator) quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = g.QuoteIdentifier(n)
	}
	return strings.Join(quoted, ", ")
}

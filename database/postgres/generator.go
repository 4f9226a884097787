package postgres

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/lockplane/schemaclone/database"
)

// Generator implements database.SQLGenerator for PostgreSQL
type Generator struct{}

// NewGenerator creates a new PostgreSQL SQL generator
func NewGenerator() *Generator {
	return &Generator{}
}

// CreateTable generates PostgreSQL SQL to create a table
func (g *Generator) CreateTable(schema string, table database.Table, inlineForeignKeys bool) (string, string) {
	var sb strings.Builder

	name := g.QualifiedName(schema, table.Name)
	sb.WriteString(fmt.Sprintf("CREATE TABLE %s (\n", name))

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
			defs = append(defs, g.formatForeignKeyConstraint(schema, fk))
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

	description := fmt.Sprintf("Create table %s", name)
	return sb.String(), description
}

// CreateIndex generates PostgreSQL SQL to add an index
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

// AddForeignKey generates PostgreSQL SQL to add a foreign key
func (g *Generator) AddForeignKey(schema, tableName string, fk database.ForeignKey) (string, string) {
	sql := fmt.Sprintf("ALTER TABLE %s ADD %s",
		g.QualifiedName(schema, tableName), g.formatForeignKeyConstraint(schema, fk))

	description := fmt.Sprintf("Add foreign key %s to table %s", fk.Name, tableName)
	return sql, description
}

// CommentOnTable generates COMMENT ON TABLE
func (g *Generator) CommentOnTable(schema, tableName, remarks string) string {
	return fmt.Sprintf("COMMENT ON TABLE %s IS %s", g.QualifiedName(schema, tableName), pq.QuoteLiteral(remarks))
}

// FormatColumnDefinition formats a column definition for CREATE TABLE
func (g *Generator) FormatColumnDefinition(col database.Column, inlinePrimaryKey bool) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s %s", g.QuoteIdentifier(col.Name), col.Type))

	if !col.Nullable {
		sb.WriteString(" NOT NULL")
	}

	if col.Default != nil {
		sb.WriteString(fmt.Sprintf(" DEFAULT %s", *col.Default))
	}

	if col.IsPrimaryKey && inlinePrimaryKey {
		sb.WriteString(" PRIMARY KEY")
	}

	return sb.String()
}

func (g *Generator) formatForeignKeyConstraint(schema string, fk database.ForeignKey) string {
	sql := fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		g.QuoteIdentifier(fk.Name), g.quoteList(fk.Columns),
		g.QualifiedName(schema, fk.ReferencedTable), g.quoteList(fk.ReferencedColumns))

	if fk.OnDelete != nil {
		sql += fmt.Sprintf(" ON DELETE %s", *fk.OnDelete)
	}
	if fk.OnUpdate != nil {
		sql += fmt.Sprintf(" ON UPDATE %s", *fk.OnUpdate)
	}
	return sql
}

// QualifiedName returns "schema"."name", or just "name" without a schema
func (g *Generator) QualifiedName(schema, name string) string {
	if schema == "" {
		return g.QuoteIdentifier(name)
	}
	return g.QuoteIdentifier(schema) + "." + g.QuoteIdentifier(name)
}

// QuoteIdentifier quotes an identifier with lib/pq's rules
func (g *Generator) QuoteIdentifier(name string) string {
	return pq.QuoteIdentifier(name)
}

// ParameterPlaceholder returns the PostgreSQL parameter placeholder ($1, $2, etc.)
func (g *Generator) ParameterPlaceholder(position int) string {
	return fmt.Sprintf("$%d", position)
}

func (g *Generator) quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = g.QuoteIdentifier(n)
	}
	return strings.Join(quoted, ", ")
}

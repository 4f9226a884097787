package database

import (
	"context"
	"database/sql"
	"errors"
)

// Schema is a snapshot of one schema of one database
type Schema struct {
	Catalog string  `json:"catalog,omitempty"`
	Name    string  `json:"name"`
	Dialect Dialect `json:"dialect,omitempty"`
	Tables  []Table `json:"tables"`
}

// Table represents a database table
type Table struct {
	Name        string       `json:"name"`
	Remarks     string       `json:"remarks,omitempty"`
	Columns     []Column     `json:"columns"`
	Indexes     []Index      `json:"indexes"`
	ForeignKeys []ForeignKey `json:"foreign_keys,omitempty"`
}

// Column represents a table column
type Column struct {
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	Nullable     bool    `json:"nullable"`
	Default      *string `json:"default,omitempty"`
	IsPrimaryKey bool    `json:"is_primary_key"`
	Remarks      string  `json:"remarks,omitempty"`
}

// Index represents a table index
type Index struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
}

// ForeignKey represents a foreign key constraint
type ForeignKey struct {
	Name              string   `json:"name"`
	Columns           []string `json:"columns"`
	ReferencedTable   string   `json:"referenced_table"`
	ReferencedColumns []string `json:"referenced_columns"`
	OnDelete          *string  `json:"on_delete,omitempty"`
	OnUpdate          *string  `json:"on_update,omitempty"`
}

// PrimaryKey returns the names of the primary key columns in column order.
func (t Table) PrimaryKey() []string {
	var cols []string
	for _, c := range t.Columns {
		if c.IsPrimaryKey {
			cols = append(cols, c.Name)
		}
	}
	return cols
}

// Introspector reads the base tables of one schema. Views are never returned.
type Introspector interface {
	// IntrospectSchema reads every base table of the schema
	IntrospectSchema(ctx context.Context, db *sql.DB, schema string) (*Schema, error)

	// GetTables returns all base table names in the schema
	GetTables(ctx context.Context, db *sql.DB, schema string) ([]string, error)

	// GetColumns returns all columns for a given table
	GetColumns(ctx context.Context, db *sql.DB, schema, tableName string) ([]Column, error)

	// GetIndexes returns the indexes for a given table that are not owned by a constraint
	GetIndexes(ctx context.Context, db *sql.DB, schema, tableName string) ([]Index, error)

	// GetForeignKeys returns all foreign keys for a given table
	GetForeignKeys(ctx context.Context, db *sql.DB, schema, tableName string) ([]ForeignKey, error)

	// GetTableRemarks returns the table comment, or "" when there is none
	GetTableRemarks(ctx context.Context, db *sql.DB, schema, tableName string) (string, error)
}

// SQLGenerator generates the DDL needed to replay a snapshot
type SQLGenerator interface {
	// CreateTable generates SQL to create a table. When inlineForeignKeys is
	// set the table's foreign keys are emitted as table constraints.
	CreateTable(schema string, table Table, inlineForeignKeys bool) (sql string, description string)

	// CreateIndex generates SQL to add an index
	CreateIndex(schema, tableName string, idx Index) (sql string, description string)

	// AddForeignKey generates SQL to add a foreign key constraint
	AddForeignKey(schema, tableName string, fk ForeignKey) (sql string, description string)

	// CommentOnTable generates SQL to set a table comment, or "" when the
	// database has no table comments
	CommentOnTable(schema, tableName, remarks string) string

	// FormatColumnDefinition formats a column definition for CREATE TABLE
	FormatColumnDefinition(col Column, inlinePrimaryKey bool) string

	// QualifiedName returns the quoted, schema-qualified name of a table
	QualifiedName(schema, name string) string

	// QuoteIdentifier quotes a single identifier
	QuoteIdentifier(name string) string

	// ParameterPlaceholder returns the parameter placeholder for this database
	// PostgreSQL: $1, $2, etc.
	// SQLite: ?, ?, etc.
	ParameterPlaceholder(position int) string
}

// Feature names understood by Driver.SupportsFeature
const (
	FeatureSchemas            = "SCHEMAS"
	FeatureAlterAddForeignKey = "ALTER_ADD_FOREIGN_KEY"
	FeatureTableComments      = "TABLE_COMMENTS"
	FeatureTransactionalDDL   = "TRANSACTIONAL_DDL"
)

// Driver represents a database driver with introspection and SQL generation
type Driver interface {
	Introspector
	SQLGenerator

	// Name returns the database driver name (e.g., "postgres", "sqlite")
	Name() string

	// Dialect returns the SQL dialect the driver speaks
	Dialect() Dialect

	// SupportsFeature checks if the database supports a specific feature
	SupportsFeature(feature string) bool
}

// Opener opens a connection scoped to one database on the server an Admin
// manages. Callers close the returned handle.
type Opener func(ctx context.Context, database string) (*sql.DB, error)

// Admin performs the server-level operations that provision a target
// database. Every operation is idempotent.
type Admin interface {
	// DropTrackingTables drops the named tables from database if they exist.
	// A missing database is not an error.
	DropTrackingTables(ctx context.Context, database string, tables []string) error

	// DropDatabase drops the database if it exists
	DropDatabase(ctx context.Context, name string) error

	// CreateDatabase creates the database if it does not exist
	CreateDatabase(ctx context.Context, name string) error

	// CreateSchema creates the schema inside database if it does not exist
	CreateSchema(ctx context.Context, database, schema string) error

	// Connect opens a connection scoped to database
	Connect(ctx context.Context, database string) (*sql.DB, error)

	// Dialect returns the SQL dialect of the server
	Dialect() Dialect
}

// ErrUnsupported is returned by Admin operations the server cannot perform.
var ErrUnsupported = errors.New("operation not supported by this database")

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/lockplane/schemaclone/database"
)

// Introspector implements database.Introspector for SQLite. The schema name
// selects an attached database; "" means "main".
type Introspector struct{}

// NewIntrospector creates a new SQLite introspector
func NewIntrospector() *Introspector {
	return &Introspector{}
}

// IntrospectSchema reads every table of the SQLite schema
func (i *Introspector) IntrospectSchema(ctx context.Context, db *sql.DB, schemaName string) (*database.Schema, error) {
	schemaName = schemaOrDefault(schemaName)
	schema := &database.Schema{
		Name:    schemaName,
		Dialect: database.DialectSQLite,
		Tables:  make([]database.Table, 0),
	}

	catalog, err := i.catalogName(ctx, db, schemaName)
	if err != nil {
		return nil, err
	}
	schema.Catalog = catalog

	tables, err := i.GetTables(ctx, db, schemaName)
	if err != nil {
		return nil, err
	}

	for _, tableName := range tables {
		table := database.Table{Name: tableName}

		columns, err := i.GetColumns(ctx, db, schemaName, tableName)
		if err != nil {
			return nil, fmt.Errorf("failed to get columns for table %s: %w", tableName, err)
		}
		table.Columns = columns

		indexes, err := i.GetIndexes(ctx, db, schemaName, tableName)
		if err != nil {
			return nil, fmt.Errorf("failed to get indexes for table %s: %w", tableName, err)
		}
		table.Indexes = indexes

		foreignKeys, err := i.GetForeignKeys(ctx, db, schemaName, tableName)
		if err != nil {
			return nil, fmt.Errorf("failed to get foreign keys for table %s: %w", tableName, err)
		}
		table.ForeignKeys = foreignKeys

		schema.Tables = append(schema.Tables, table)
	}

	return schema, nil
}

// catalogName derives a catalog name from the database file, since SQLite
// has no database names of its own.
func (i *Introspector) catalogName(ctx context.Context, db *sql.DB, schemaName string) (string, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA database_list")
	if err != nil {
		return "", fmt.Errorf("failed to list databases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var seq int
		var name string
		var file sql.NullString
		if err := rows.Scan(&seq, &name, &file); err != nil {
			return "", err
		}
		if name == schemaName {
			return CatalogFromPath(file.String), nil
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("schema %q is not attached", schemaName)
}

// GetTables returns all table names in the SQLite schema
func (i *Introspector) GetTables(ctx context.Context, db *sql.DB, schemaName string) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT name
		FROM %s.sqlite_master
		WHERE type = 'table'
		AND name NOT LIKE 'sqlite_%%'
		ORDER BY name
	`, quoteIdentifier(schemaOrDefault(schemaName)))

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tableNames []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tableNames = append(tableNames, tableName)
	}

	return tableNames, rows.Err()
}

// GetColumns returns all columns for a given SQLite table
func (i *Introspector) GetColumns(ctx context.Context, db *sql.DB, schemaName, tableName string) ([]database.Column, error) {
	rows, err := db.QueryContext(ctx, pragma(schemaName, "table_info", tableName))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var columns []database.Column
	for rows.Next() {
		var cid int
		var col database.Column
		var notNull int
		var defaultVal sql.NullString
		var pk int

		// PRAGMA table_info returns: cid, name, type, notnull, dflt_value, pk
		if err := rows.Scan(&cid, &col.Name, &col.Type, &notNull, &defaultVal, &pk); err != nil {
			return nil, err
		}

		col.Nullable = notNull == 0
		col.IsPrimaryKey = pk > 0
		if defaultVal.Valid {
			col.Default = &defaultVal.String
		}

		columns = append(columns, col)
	}

	return columns, rows.Err()
}

// GetIndexes returns the CREATE INDEX indexes of a table. Indexes SQLite
// creates for PRIMARY KEY and UNIQUE constraints are skipped.
func (i *Introspector) GetIndexes(ctx context.Context, db *sql.DB, schemaName, tableName string) ([]database.Index, error) {
	rows, err := db.QueryContext(ctx, pragma(schemaName, "index_list", tableName))
	if err != nil {
		return nil, err
	}

	var indexes []database.Index
	for rows.Next() {
		var seq int
		var idx database.Index
		var origin string
		var partial int
		var unique int

		// PRAGMA index_list returns: seq, name, unique, origin, partial
		if err := rows.Scan(&seq, &idx.Name, &unique, &origin, &partial); err != nil {
			_ = rows.Close()
			return nil, err
		}

		idx.Unique = unique == 1
		if origin == "c" && !strings.HasPrefix(idx.Name, "sqlite_autoindex") {
			indexes = append(indexes, idx)
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	// index_info is read after index_list is closed so both use one connection
	for n := range indexes {
		cols, err := i.indexColumns(ctx, db, schemaName, indexes[n].Name)
		if err != nil {
			return nil, err
		}
		indexes[n].Columns = cols
	}

	sort.Slice(indexes, func(a, b int) bool { return indexes[a].Name < indexes[b].Name })
	return indexes, nil
}

func (i *Introspector) indexColumns(ctx context.Context, db *sql.DB, schemaName, indexName string) ([]string, error) {
	rows, err := db.QueryContext(ctx, pragma(schemaName, "index_info", indexName))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var cols []string
	for rows.Next() {
		var seqno, cid int
		var name sql.NullString

		// PRAGMA index_info returns: seqno, cid, name
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, err
		}

		if name.Valid {
			cols = append(cols, name.String)
		}
	}
	return cols, rows.Err()
}

// GetForeignKeys returns all foreign keys for a given SQLite table
func (i *Introspector) GetForeignKeys(ctx context.Context, db *sql.DB, schemaName, tableName string) ([]database.ForeignKey, error) {
	rows, err := db.QueryContext(ctx, pragma(schemaName, "foreign_key_list", tableName))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	// Group by id (foreign key constraint ID)
	fkMap := make(map[int]*database.ForeignKey)
	var fkIds []int

	for rows.Next() {
		var id, seq int
		var table, from string
		var to sql.NullString
		var onUpdate, onDelete, match string

		// PRAGMA foreign_key_list returns: id, seq, table, from, to, on_update, on_delete, match
		if err := rows.Scan(&id, &seq, &table, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}

		if _, exists := fkMap[id]; !exists {
			fk := &database.ForeignKey{
				Name:              fmt.Sprintf("fk_%s_%d", tableName, id),
				Columns:           []string{},
				ReferencedTable:   table,
				ReferencedColumns: []string{},
			}

			if onUpdate != "NO ACTION" {
				fk.OnUpdate = &onUpdate
			}
			if onDelete != "NO ACTION" {
				fk.OnDelete = &onDelete
			}

			fkMap[id] = fk
			fkIds = append(fkIds, id)
		}

		fkMap[id].Columns = append(fkMap[id].Columns, from)
		fkMap[id].ReferencedColumns = append(fkMap[id].ReferencedColumns, to.String)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Constraint ids are not declaration order; sort by the referencing columns
	var foreignKeys []database.ForeignKey
	for _, id := range fkIds {
		foreignKeys = append(foreignKeys, *fkMap[id])
	}
	sort.SliceStable(foreignKeys, func(a, b int) bool {
		return strings.Join(foreignKeys[a].Columns, ",") < strings.Join(foreignKeys[b].Columns, ",")
	})

	return foreignKeys, nil
}

// GetTableRemarks always returns "": SQLite has no table comments
func (i *Introspector) GetTableRemarks(ctx context.Context, db *sql.DB, schemaName, tableName string) (string, error) {
	return "", nil
}

// CatalogFromPath turns a database file path into a catalog name:
// "/data/sales.db" becomes "sales".
func CatalogFromPath(path string) string {
	if path == "" {
		return "main"
	}
	base := path
	if idx := strings.LastIndexAny(base, `/\`); idx >= 0 {
		base = base[idx+1:]
	}
	for _, ext := range []string{".sqlite3", ".sqlite", ".db"} {
		if strings.HasSuffix(base, ext) {
			return strings.TrimSuffix(base, ext)
		}
	}
	return base
}

func schemaOrDefault(schema string) string {
	if schema == "" {
		return database.DialectSQLite.DefaultSchema()
	}
	return schema
}

func pragma(schemaName, name, arg string) string {
	return fmt.Sprintf("PRAGMA %s.%s(%s)", quoteIdentifier(schemaOrDefault(schemaName)), name, quoteIdentifier(arg))
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

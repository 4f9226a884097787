package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/lockplane/schemaclone/database"
)

// Introspector implements database.Introspector for PostgreSQL
type Introspector struct{}

// NewIntrospector creates a new PostgreSQL introspector
func NewIntrospector() *Introspector {
	return &Introspector{}
}

// IntrospectSchema reads every base table of a PostgreSQL schema
func (i *Introspector) IntrospectSchema(ctx context.Context, db *sql.DB, schemaName string) (*database.Schema, error) {
	schemaName = schemaOrDefault(schemaName)
	schema := &database.Schema{
		Name:    schemaName,
		Dialect: database.DialectPostgres,
		Tables:  make([]database.Table, 0),
	}

	if err := db.QueryRowContext(ctx, "SELECT current_database()").Scan(&schema.Catalog); err != nil {
		return nil, fmt.Errorf("failed to read current database: %w", err)
	}

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

		remarks, err := i.GetTableRemarks(ctx, db, schemaName, tableName)
		if err != nil {
			return nil, fmt.Errorf("failed to get remarks for table %s: %w", tableName, err)
		}
		table.Remarks = remarks

		schema.Tables = append(schema.Tables, table)
	}

	return schema, nil
}

// GetTables returns all base table names in the schema
func (i *Introspector) GetTables(ctx context.Context, db *sql.DB, schemaName string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`, schemaOrDefault(schemaName))
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

// GetColumns returns all columns for a given PostgreSQL table
func (i *Introspector) GetColumns(ctx context.Context, db *sql.DB, schemaName, tableName string) ([]database.Column, error) {
	query := `
		SELECT
			a.attname,
			format_type(a.atttypid, a.atttypmod),
			NOT a.attnotnull,
			pg_get_expr(d.adbin, d.adrelid),
			COALESCE(
				(SELECT true
				 FROM pg_index ix
				 WHERE ix.indrelid = c.oid
				   AND ix.indisprimary
				   AND a.attnum = ANY(ix.indkey)),
				false
			) AS is_primary_key,
			col_description(c.oid, a.attnum)
		FROM pg_attribute a
		JOIN pg_class c ON c.oid = a.attrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		LEFT JOIN pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
		WHERE n.nspname = $1
		  AND c.relname = $2
		  AND a.attnum > 0
		  AND NOT a.attisdropped
		ORDER BY a.attnum
	`

	rows, err := db.QueryContext(ctx, query, schemaOrDefault(schemaName), tableName)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var columns []database.Column
	for rows.Next() {
		var col database.Column
		var defaultVal, remarks sql.NullString

		if err := rows.Scan(&col.Name, &col.Type, &col.Nullable, &defaultVal, &col.IsPrimaryKey, &remarks); err != nil {
			return nil, err
		}

		col.Type = strings.TrimSpace(col.Type)
		col.Remarks = remarks.String

		// PostgreSQL stores SERIAL/BIGSERIAL as an integer column with a
		// nextval() default. Restore the pseudo-type so replay recreates the
		// sequence instead of referencing one that does not exist.
		if defaultVal.Valid && isSerialDefault(defaultVal.String) {
			switch strings.ToLower(col.Type) {
			case "bigint":
				col.Type = "bigserial"
				defaultVal.Valid = false
			case "integer":
				col.Type = "serial"
				defaultVal.Valid = false
			case "smallint":
				col.Type = "smallserial"
				defaultVal.Valid = false
			}
		}

		if defaultVal.Valid {
			normalized := normalizeDefault(defaultVal.String)
			col.Default = &normalized
		}

		columns = append(columns, col)
	}

	return columns, rows.Err()
}

// GetIndexes returns all indexes for a given PostgreSQL table
// Excludes indexes that are automatically created by PRIMARY KEY or UNIQUE constraints
func (i *Introspector) GetIndexes(ctx context.Context, db *sql.DB, schemaName, tableName string) ([]database.Index, error) {
	query := `
		SELECT
			ic.relname,
			ix.indisunique,
			array_agg(a.attname ORDER BY k.ord)
		FROM pg_class t
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_index ix ON ix.indrelid = t.oid
		JOIN pg_class ic ON ic.oid = ix.indexrelid
		JOIN LATERAL unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord) ON true
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
		WHERE n.nspname = $1
		  AND t.relname = $2
		  AND NOT ix.indisprimary
		  AND NOT EXISTS (
			SELECT 1
			FROM pg_constraint con
			WHERE con.conindid = ix.indexrelid
			  AND con.contype IN ('p', 'u')
		  )
		GROUP BY ic.relname, ix.indisunique
		ORDER BY ic.relname
	`

	rows, err := db.QueryContext(ctx, query, schemaOrDefault(schemaName), tableName)
	if err != nil {
		return nil, fmt.Errorf("query failed for table %q (schema: %s): %w", tableName, schemaName, err)
	}
	defer func() { _ = rows.Close() }()

	var indexes []database.Index
	for rows.Next() {
		var idx database.Index
		if err := rows.Scan(&idx.Name, &idx.Unique, pq.Array(&idx.Columns)); err != nil {
			return nil, err
		}
		indexes = append(indexes, idx)
	}

	return indexes, rows.Err()
}

// GetForeignKeys returns all foreign keys for a given PostgreSQL table
func (i *Introspector) GetForeignKeys(ctx context.Context, db *sql.DB, schemaName, tableName string) ([]database.ForeignKey, error) {
	query := `
		SELECT
			tc.constraint_name,
			kcu.column_name,
			ccu.table_name AS foreign_table_name,
			ccu.column_name AS foreign_column_name,
			rc.update_rule,
			rc.delete_rule
		FROM information_schema.table_constraints AS tc
		JOIN information_schema.key_column_usage AS kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage AS ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.table_schema = tc.table_schema
		JOIN information_schema.referential_constraints AS rc
			ON rc.constraint_name = tc.constraint_name
			AND rc.constraint_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
			AND tc.table_schema = $1
			AND tc.table_name = $2
		ORDER BY tc.constraint_name, kcu.ordinal_position
	`

	rows, err := db.QueryContext(ctx, query, schemaOrDefault(schemaName), tableName)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	// Group by constraint name to handle multi-column foreign keys
	fkMap := make(map[string]*database.ForeignKey)
	var fkNames []string

	for rows.Next() {
		var constraintName, columnName, foreignTableName, foreignColumnName string
		var updateRule, deleteRule string

		if err := rows.Scan(&constraintName, &columnName, &foreignTableName, &foreignColumnName, &updateRule, &deleteRule); err != nil {
			return nil, err
		}

		if _, exists := fkMap[constraintName]; !exists {
			fk := &database.ForeignKey{
				Name:              constraintName,
				Columns:           []string{},
				ReferencedTable:   foreignTableName,
				ReferencedColumns: []string{},
			}

			if updateRule != "NO ACTION" {
				fk.OnUpdate = &updateRule
			}
			if deleteRule != "NO ACTION" {
				fk.OnDelete = &deleteRule
			}

			fkMap[constraintName] = fk
			fkNames = append(fkNames, constraintName)
		}

		fkMap[constraintName].Columns = append(fkMap[constraintName].Columns, columnName)
		fkMap[constraintName].ReferencedColumns = append(fkMap[constraintName].ReferencedColumns, foreignColumnName)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var foreignKeys []database.ForeignKey
	for _, name := range fkNames {
		foreignKeys = append(foreignKeys, *fkMap[name])
	}

	return foreignKeys, nil
}

// GetTableRemarks returns the COMMENT ON TABLE text
func (i *Introspector) GetTableRemarks(ctx context.Context, db *sql.DB, schemaName, tableName string) (string, error) {
	query := `
		SELECT obj_description(c.oid, 'pg_class')
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relname = $2
		  AND n.nspname = $1
		  AND c.relkind IN ('r', 'p')
	`

	var remarks sql.NullString
	if err := db.QueryRowContext(ctx, query, schemaOrDefault(schemaName), tableName).Scan(&remarks); err != nil {
		return "", err
	}
	return remarks.String, nil
}

func schemaOrDefault(schema string) string {
	if schema == "" {
		return database.DialectPostgres.DefaultSchema()
	}
	return schema
}

// isSerialDefault checks if a default value is from a sequence (indicating SERIAL/BIGSERIAL)
func isSerialDefault(defaultVal string) bool {
	// SERIAL/BIGSERIAL columns have defaults like:
	// - nextval('tablename_columnname_seq'::regclass)
	// - nextval('sequence_name'::regclass)
	return strings.HasPrefix(defaultVal, "nextval(") && strings.Contains(defaultVal, "_seq")
}

// normalizeDefault removes redundant trailing type casts (e.g., '{}'::jsonb -> '{}')
func normalizeDefault(defaultVal string) string {
	if idx := strings.LastIndex(defaultVal, "::"); idx > 0 {
		beforeCast := defaultVal[:idx]
		// Balanced quotes before the cast means it is not inside a literal
		if strings.Count(beforeCast, "'")%2 == 0 {
			return beforeCast
		}
	}
	return defaultVal
}

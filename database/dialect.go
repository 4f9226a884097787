package database

import "strings"

// Dialect identifies the SQL flavor a driver speaks
type Dialect string

const (
	DialectUnknown  Dialect = ""
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
	DialectLibSQL   Dialect = "libsql"
)

// ParseDialect maps a user-facing name to a Dialect.
func ParseDialect(name string) Dialect {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pg":
		return DialectPostgres
	case "sqlite", "sqlite3":
		return DialectSQLite
	case "libsql", "turso":
		return DialectLibSQL
	default:
		return DialectUnknown
	}
}

// DriverName returns the database/sql driver name registered for the dialect.
func (d Dialect) DriverName() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	case DialectSQLite:
		return "sqlite"
	case DialectLibSQL:
		return "libsql"
	default:
		return ""
	}
}

// DefaultSchema is the schema tables land in when none is named.
func (d Dialect) DefaultSchema() string {
	switch d {
	case DialectPostgres:
		return "public"
	case DialectSQLite, DialectLibSQL:
		return "main"
	default:
		return ""
	}
}

func (d Dialect) String() string {
	if d == DialectUnknown {
		return "unknown"
	}
	return string(d)
}

package connection

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/lockplane/schemaclone/database"
	"github.com/lockplane/schemaclone/database/sqlite"
)

// DetectDialect determines the database type from a connection string
func DetectDialect(connStr string) database.Dialect {
	lower := strings.ToLower(strings.TrimSpace(connStr))

	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return database.DialectPostgres
	case strings.HasPrefix(lower, "libsql://"):
		return database.DialectLibSQL
	case strings.HasPrefix(lower, "sqlite://"), strings.HasPrefix(lower, "file:"), lower == ":memory:":
		return database.DialectSQLite
	}

	path := lower
	if idx := strings.Index(path, "?"); idx >= 0 {
		path = path[:idx]
	}
	if strings.HasSuffix(path, ".db") || strings.HasSuffix(path, ".sqlite") || strings.HasSuffix(path, ".sqlite3") {
		return database.DialectSQLite
	}

	return database.DialectUnknown
}

// splitSQLite separates a SQLite connection string into its scheme prefix
// ("sqlite://", "file:" or ""), path and query
func splitSQLite(connStr string) (prefix, path, query string) {
	rest := connStr
	lower := strings.ToLower(connStr)
	switch {
	case strings.HasPrefix(lower, "sqlite://"):
		prefix, rest = connStr[:len("sqlite://")], connStr[len("sqlite://"):]
	case strings.HasPrefix(lower, "file:"):
		prefix, rest = connStr[:len("file:")], connStr[len("file:"):]
	}
	if idx := strings.Index(rest, "?"); idx >= 0 {
		return prefix, rest[:idx], rest[idx:]
	}
	return prefix, rest, ""
}

// SQLitePath returns the filesystem path named by a SQLite connection string
func SQLitePath(connStr string) string {
	_, path, _ := splitSQLite(connStr)
	return path
}

// WithDatabase returns the connection string for database name on the same
// server. For SQLite the server URL names a directory holding one
// <name>.db file per database. libSQL URLs name a single database and are
// returned unchanged.
func WithDatabase(connStr string, dialect database.Dialect, name string) (string, error) {
	if name == "" {
		return connStr, nil
	}

	switch dialect {
	case database.DialectPostgres:
		u, err := url.Parse(connStr)
		if err != nil {
			return "", fmt.Errorf("invalid PostgreSQL URL: %w", err)
		}
		u.Path = "/" + name
		u.RawPath = ""
		return u.String(), nil
	case database.DialectSQLite:
		prefix, dir, query := splitSQLite(connStr)
		return prefix + filepath.Join(dir, name+sqlite.FileExtension) + query, nil
	case database.DialectLibSQL:
		return connStr, nil
	}
	return "", fmt.Errorf("cannot address database %s: unsupported dialect %s", name, dialect)
}

// DSN converts a connection string into what the database/sql driver
// expects, injecting credentials. Postgres gets them as URL userinfo and
// sslmode=disable unless the URL sets sslmode; libSQL gets the password
// as authToken; SQLite ignores them.
func DSN(connStr string, dialect database.Dialect, username, password string) (string, error) {
	switch dialect {
	case database.DialectPostgres:
		u, err := url.Parse(connStr)
		if err != nil {
			return "", fmt.Errorf("invalid PostgreSQL URL: %w", err)
		}
		if username != "" {
			if password != "" {
				u.User = url.UserPassword(username, password)
			} else {
				u.User = url.User(username)
			}
		}
		q := u.Query()
		if q.Get("sslmode") == "" {
			q.Set("sslmode", "disable")
			u.RawQuery = q.Encode()
		}
		return u.String(), nil
	case database.DialectSQLite:
		prefix, path, query := splitSQLite(connStr)
		if strings.EqualFold(prefix, "file:") {
			return connStr, nil
		}
		if path == ":memory:" {
			return path + query, nil
		}
		return "file:" + path + query, nil
	case database.DialectLibSQL:
		if password == "" {
			return connStr, nil
		}
		u, err := url.Parse(connStr)
		if err != nil {
			return "", fmt.Errorf("invalid libSQL URL: %w", err)
		}
		q := u.Query()
		q.Set("authToken", password)
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
	return connStr, nil
}

// Redact hides passwords and auth tokens so a connection string can be
// logged
func Redact(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil || u.Scheme == "" {
		return connStr
	}
	q := u.Query()
	secretQuery := false
	for _, key := range []string{"authToken", "password"} {
		if q.Has(key) {
			q.Set(key, "xxxxx")
			secretQuery = true
		}
	}
	if u.User == nil && !secretQuery {
		return connStr
	}
	if secretQuery {
		u.RawQuery = q.Encode()
	}
	return u.Redacted()
}

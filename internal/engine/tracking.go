package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ranChangeSet is a row of the log table
type ranChangeSet struct {
	Checksum string
	Order    int
}

func changeSetKey(id, author, filename string) string {
	return id + "::" + author + "::" + filename
}

func (e *Engine) placeholders(n int) []string {
	p := make([]string, n)
	for i := range p {
		p[i] = e.driver.ParameterPlaceholder(i + 1)
	}
	return p
}

func (e *Engine) ensureLockTable(ctx context.Context, db *sql.DB, table string) error {
	name := e.driver.QuoteIdentifier(table)
	stmts := []string{
		"CREATE TABLE IF NOT EXISTS " + name + " (\n" +
			"  ID INTEGER NOT NULL PRIMARY KEY,\n" +
			"  LOCKED BOOLEAN NOT NULL,\n" +
			"  LOCKGRANTED TIMESTAMP,\n" +
			"  LOCKEDBY VARCHAR(255)\n" +
			")",
		"INSERT INTO " + name + " (ID, LOCKED) SELECT 1, FALSE WHERE NOT EXISTS (SELECT 1 FROM " + name + " WHERE ID = 1)",
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to prepare lock table %s: %w", table, err)
		}
	}
	return nil
}

// acquireLock takes the single lock row, failing if someone else holds it
func (e *Engine) acquireLock(ctx context.Context, db *sql.DB, table string) error {
	name := e.driver.QuoteIdentifier(table)
	p := e.placeholders(2)
	res, err := db.ExecContext(ctx,
		"UPDATE "+name+" SET LOCKED = TRUE, LOCKGRANTED = "+p[0]+", LOCKEDBY = "+p[1]+" WHERE ID = 1 AND LOCKED = FALSE",
		e.now().UTC(), e.lockedBy)
	if err != nil {
		return fmt.Errorf("failed to acquire lock in %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to acquire lock in %s: %w", table, err)
	}
	if n == 1 {
		return nil
	}

	var owner sql.NullString
	if err := db.QueryRowContext(ctx, "SELECT LOCKEDBY FROM "+name+" WHERE ID = 1").Scan(&owner); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to read lock owner from %s: %w", table, err)
	}
	return fmt.Errorf("changelog lock in %s is held by %s", table, owner.String)
}

func (e *Engine) releaseLock(ctx context.Context, db *sql.DB, table string) error {
	name := e.driver.QuoteIdentifier(table)
	if _, err := db.ExecContext(ctx, "UPDATE "+name+" SET LOCKED = FALSE, LOCKGRANTED = NULL, LOCKEDBY = NULL WHERE ID = 1"); err != nil {
		return fmt.Errorf("failed to release lock in %s: %w", table, err)
	}
	return nil
}

func (e *Engine) ensureLogTable(ctx context.Context, db *sql.DB, table string) error {
	stmt := "CREATE TABLE IF NOT EXISTS " + e.driver.QuoteIdentifier(table) + " (\n" +
		"  ID VARCHAR(255) NOT NULL,\n" +
		"  AUTHOR VARCHAR(255) NOT NULL,\n" +
		"  FILENAME VARCHAR(255) NOT NULL,\n" +
		"  DATEEXECUTED TIMESTAMP NOT NULL,\n" +
		"  ORDEREXECUTED INTEGER NOT NULL,\n" +
		"  EXECTYPE VARCHAR(10) NOT NULL,\n" +
		"  MD5SUM VARCHAR(80),\n" +
		"  DESCRIPTION VARCHAR(255),\n" +
		"  DEPLOYMENT_ID VARCHAR(36)\n" +
		")"
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to prepare log table %s: %w", table, err)
	}
	return nil
}

// ranChangeSets reads the log table, keyed by id, author and filename
func (e *Engine) ranChangeSets(ctx context.Context, db *sql.DB, table string) (map[string]ranChangeSet, int, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT ID, AUTHOR, FILENAME, MD5SUM, ORDEREXECUTED FROM "+e.driver.QuoteIdentifier(table))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read log table %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	ran := make(map[string]ranChangeSet)
	maxOrder := 0
	for rows.Next() {
		var id, author, filename string
		var checksum sql.NullString
		var order int
		if err := rows.Scan(&id, &author, &filename, &checksum, &order); err != nil {
			return nil, 0, fmt.Errorf("failed to read log table %s: %w", table, err)
		}
		ran[changeSetKey(id, author, filename)] = ranChangeSet{Checksum: checksum.String, Order: order}
		if order > maxOrder {
			maxOrder = order
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read log table %s: %w", table, err)
	}
	return ran, maxOrder, nil
}

type logRow struct {
	ID, Author, Filename string
	Order                int
	ExecType             string
	Checksum             string
	Description          string
	DeploymentID         string
}

func (e *Engine) recordChangeSet(ctx context.Context, x execer, table string, row logRow) error {
	cols := []string{"ID", "AUTHOR", "FILENAME", "DATEEXECUTED", "ORDEREXECUTED", "EXECTYPE", "MD5SUM", "DESCRIPTION", "DEPLOYMENT_ID"}
	stmt := "INSERT INTO " + e.driver.QuoteIdentifier(table) +
		" (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(e.placeholders(len(cols)), ", ") + ")"
	_, err := x.ExecContext(ctx, stmt,
		row.ID, row.Author, row.Filename, e.now().UTC(), row.Order, row.ExecType, row.Checksum, row.Description, row.DeploymentID)
	if err != nil {
		return fmt.Errorf("failed to record change set %s in %s: %w", row.ID, table, err)
	}
	return nil
}

package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/lockplane/schemaclone/database"
	"github.com/lockplane/schemaclone/internal/changelog"
	"github.com/lockplane/schemaclone/internal/cloneerr"
)

const (
	execTypeExecuted = "EXECUTED"
	execTypeMarkRan  = "MARK_RAN"

	defaultFilename = "changelog"
)

// Apply executes every change set of doc not yet recorded in the log table.
// The lock table is created if absent and held for the duration of the
// call; a lock that is already held fails the call.
func (e *Engine) Apply(ctx context.Context, db *sql.DB, doc *changelog.Document, tables TrackingTables) (err error) {
	filename := doc.Name
	if filename == "" {
		filename = defaultFilename
	}
	fail := func(target string, cause error) error {
		return cloneerr.New(cloneerr.MigrationEngine, "apply changelog", target, cause)
	}

	if tables.Log == "" || tables.Lock == "" {
		return fail(filename, errors.New("log and lock table names are required"))
	}
	if err := doc.Validate(); err != nil {
		return fail(filename, err)
	}

	if err := e.ensureLockTable(ctx, db, tables.Lock); err != nil {
		return fail(tables.Lock, err)
	}
	if err := e.acquireLock(ctx, db, tables.Lock); err != nil {
		return fail(tables.Lock, err)
	}
	defer func() {
		if releaseErr := e.releaseLock(ctx, db, tables.Lock); releaseErr != nil {
			err = errors.Join(err, fail(tables.Lock, releaseErr))
		}
	}()

	if err := e.ensureLogTable(ctx, db, tables.Log); err != nil {
		return fail(tables.Log, err)
	}
	ran, order, err := e.ranChangeSets(ctx, db, tables.Log)
	if err != nil {
		return fail(tables.Log, err)
	}

	deploymentID := uuid.NewString()
	plan, err := e.planChangeSets(doc, filename, ran)
	if err != nil {
		return fail(filename, err)
	}

	executed := 0
	for _, p := range plan {
		if p.skip {
			e.logger.Debug().Str("change_set", p.cs.ID).Msg("Change set already ran")
			continue
		}

		order++
		row := logRow{
			ID:           p.cs.ID,
			Author:       p.cs.Author,
			Filename:     filename,
			Order:        order,
			ExecType:     execTypeExecuted,
			Checksum:     p.checksum,
			Description:  p.cs.Description(),
			DeploymentID: deploymentID,
		}
		if len(p.statements) == 0 {
			row.ExecType = execTypeMarkRan
		}

		if err := e.runChangeSet(ctx, db, tables.Log, p.statements, row); err != nil {
			return fail(p.cs.ID, err)
		}
		executed++
		e.logger.Info().
			Str("change_set", p.cs.ID).
			Str("author", p.cs.Author).
			Str("exec_type", row.ExecType).
			Msg("Ran change set")
	}

	e.logger.Info().
		Str("changelog", filename).
		Str("deployment_id", deploymentID).
		Int("executed", executed).
		Int("skipped", len(plan)-executed).
		Msg("Applied changelog")
	return nil
}

type plannedChangeSet struct {
	cs         changelog.ChangeSet
	checksum   string
	statements []string
	skip       bool
}

// planChangeSets turns pending change sets into statements. Dialects that
// cannot add foreign keys to existing tables get them inlined into the
// createTable of the same run.
func (e *Engine) planChangeSets(doc *changelog.Document, filename string, ran map[string]ranChangeSet) ([]plannedChangeSet, error) {
	var plan []plannedChangeSet
	for _, cs := range doc.ChangeSets {
		checksum, err := cs.Checksum()
		if err != nil {
			return nil, err
		}
		p := plannedChangeSet{cs: cs, checksum: checksum}
		if prev, ok := ran[changeSetKey(cs.ID, cs.Author, filename)]; ok {
			if prev.Checksum != "" && prev.Checksum != checksum {
				return nil, fmt.Errorf("change set %s by %s has changed since it ran (checksum %s, was %s)",
					cs.ID, cs.Author, checksum, prev.Checksum)
			}
			p.skip = true
		}
		plan = append(plan, p)
	}

	inline := !e.driver.SupportsFeature(database.FeatureAlterAddForeignKey)
	pendingKeys := make(map[string][]database.ForeignKey)
	if inline {
		for _, p := range plan {
			if p.skip {
				continue
			}
			for _, c := range p.cs.Changes {
				if fk := c.AddForeignKeyConstraint; fk != nil {
					pendingKeys[fk.BaseTableName] = append(pendingKeys[fk.BaseTableName], fk.ForeignKey())
				}
			}
		}
	}

	created := make(map[string]bool)
	for i := range plan {
		if plan[i].skip {
			continue
		}
		for _, c := range plan[i].cs.Changes {
			stmts, err := e.statements(c, inline, pendingKeys, created)
			if err != nil {
				return nil, fmt.Errorf("change set %s: %w", plan[i].cs.ID, err)
			}
			plan[i].statements = append(plan[i].statements, stmts...)
		}
	}
	return plan, nil
}

func (e *Engine) statements(c changelog.Change, inline bool, pendingKeys map[string][]database.ForeignKey, created map[string]bool) ([]string, error) {
	switch {
	case c.CreateTable != nil:
		ct := c.CreateTable
		table := ct.Table()
		if inline {
			table.ForeignKeys = pendingKeys[ct.TableName]
			created[ct.TableName] = true
		}
		stmt, _ := e.driver.CreateTable(ct.SchemaName, table, inline)
		stmts := []string{stmt}
		if ct.Remarks != "" && e.driver.SupportsFeature(database.FeatureTableComments) {
			stmts = append(stmts, e.driver.CommentOnTable(ct.SchemaName, ct.TableName, ct.Remarks))
		}
		return stmts, nil

	case c.CreateIndex != nil:
		stmt, _ := e.driver.CreateIndex(c.CreateIndex.SchemaName, c.CreateIndex.TableName, c.CreateIndex.Index())
		return []string{stmt}, nil

	case c.AddForeignKeyConstraint != nil:
		fk := c.AddForeignKeyConstraint
		if !inline {
			stmt, _ := e.driver.AddForeignKey(fk.SchemaName, fk.BaseTableName, fk.ForeignKey())
			return []string{stmt}, nil
		}
		if !created[fk.BaseTableName] {
			return nil, fmt.Errorf("%s cannot add foreign key %s to existing table %s",
				e.driver.Name(), fk.ConstraintName, fk.BaseTableName)
		}
		return nil, nil

	case c.SQL != nil:
		if !matchesDBMS(c.SQL.DBMS, e.driver.Dialect()) {
			return nil, nil
		}
		if e.driver.Dialect() == database.DialectPostgres {
			return SplitPostgres(c.SQL.SQL)
		}
		return []string{strings.TrimSpace(c.SQL.SQL)}, nil
	}
	return nil, fmt.Errorf("empty change")
}

// matchesDBMS reports whether a comma separated dbms list includes dialect.
// libSQL matches "sqlite".
func matchesDBMS(dbms string, dialect database.Dialect) bool {
	if strings.TrimSpace(dbms) == "" {
		return true
	}
	for _, name := range strings.Split(dbms, ",") {
		d := database.ParseDialect(strings.TrimSpace(name))
		if d == dialect || (d == database.DialectSQLite && dialect == database.DialectLibSQL) {
			return true
		}
	}
	return false
}

// runChangeSet executes the statements and records the change set, in one
// transaction when the database has transactional DDL
func (e *Engine) runChangeSet(ctx context.Context, db *sql.DB, logTable string, stmts []string, row logRow) error {
	if !e.driver.SupportsFeature(database.FeatureTransactionalDDL) {
		for _, stmt := range stmts {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to execute %q: %w", stmt, err)
			}
		}
		return e.recordChangeSet(ctx, db, logTable, row)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to execute %q: %w", stmt, err)
		}
	}
	if err := e.recordChangeSet(ctx, tx, logTable, row); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit change set %s: %w", row.ID, err)
	}
	return nil
}

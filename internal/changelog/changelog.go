// Package changelog models the changelog documents the engine reads and
// writes: an ordered list of change sets, each an ordered list of changes.
package changelog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DefaultAuthor is the author recorded on generated change sets
const DefaultAuthor = "schemaclone"

// Document is a changelog. Name identifies it in the log table and is not
// serialized.
type Document struct {
	Name       string
	ChangeSets []ChangeSet
}

// ChangeSet is the unit the engine executes and records
type ChangeSet struct {
	ID      string   `json:"id"`
	Author  string   `json:"author"`
	Comment string   `json:"comment,omitempty"`
	Changes []Change `json:"changes"`
}

// Change holds exactly one of its fields
type Change struct {
	CreateTable             *CreateTable             `json:"createTable,omitempty"`
	CreateIndex             *CreateIndex             `json:"createIndex,omitempty"`
	AddForeignKeyConstraint *AddForeignKeyConstraint `json:"addForeignKeyConstraint,omitempty"`
	SQL                     *SQL                     `json:"sql,omitempty"`
}

// CreateTable creates a table
type CreateTable struct {
	CatalogName string   `json:"catalogName,omitempty" xml:"catalogName,attr,omitempty"`
	SchemaName  string   `json:"schemaName,omitempty" xml:"schemaName,attr,omitempty"`
	TableName   string   `json:"tableName" xml:"tableName,attr"`
	Remarks     string   `json:"remarks,omitempty" xml:"remarks,attr,omitempty"`
	Columns     []Column `json:"columns" xml:"column"`
}

// Column is a column of a createTable or createIndex change
type Column struct {
	Name                 string       `json:"name" xml:"name,attr"`
	Type                 string       `json:"type,omitempty" xml:"type,attr,omitempty"`
	DefaultValueComputed *string      `json:"defaultValueComputed,omitempty" xml:"defaultValueComputed,attr,omitempty"`
	Remarks              string       `json:"remarks,omitempty" xml:"remarks,attr,omitempty"`
	Constraints          *Constraints `json:"constraints,omitempty" xml:"constraints,omitempty"`
}

// Constraints are the inline column constraints
type Constraints struct {
	Nullable   *bool `json:"nullable,omitempty" xml:"nullable,attr,omitempty"`
	PrimaryKey *bool `json:"primaryKey,omitempty" xml:"primaryKey,attr,omitempty"`
}

// CreateIndex creates an index
type CreateIndex struct {
	CatalogName string   `json:"catalogName,omitempty" xml:"catalogName,attr,omitempty"`
	SchemaName  string   `json:"schemaName,omitempty" xml:"schemaName,attr,omitempty"`
	TableName   string   `json:"tableName" xml:"tableName,attr"`
	IndexName   string   `json:"indexName" xml:"indexName,attr"`
	Unique      bool     `json:"unique,omitempty" xml:"unique,attr,omitempty"`
	Columns     []Column `json:"columns" xml:"column"`
}

// AddForeignKeyConstraint adds a foreign key between two tables of the
// same schema. Column lists are comma separated.
type AddForeignKeyConstraint struct {
	CatalogName           string `json:"catalogName,omitempty" xml:"catalogName,attr,omitempty"`
	SchemaName            string `json:"schemaName,omitempty" xml:"schemaName,attr,omitempty"`
	ConstraintName        string `json:"constraintName" xml:"constraintName,attr"`
	BaseTableName         string `json:"baseTableName" xml:"baseTableName,attr"`
	BaseColumnNames       string `json:"baseColumnNames" xml:"baseColumnNames,attr"`
	ReferencedTableName   string `json:"referencedTableName" xml:"referencedTableName,attr"`
	ReferencedColumnNames string `json:"referencedColumnNames" xml:"referencedColumnNames,attr"`
	OnDelete              string `json:"onDelete,omitempty" xml:"onDelete,attr,omitempty"`
	OnUpdate              string `json:"onUpdate,omitempty" xml:"onUpdate,attr,omitempty"`
}

// SQL is a raw statement. DBMS restricts it to one dialect
// ("postgresql", "sqlite"); empty runs everywhere.
type SQL struct {
	DBMS string `json:"dbms,omitempty" xml:"dbms,attr,omitempty"`
	SQL  string `json:"sql" xml:",chardata"`
}

// Kind returns the change type name, or "" for an empty change
func (c Change) Kind() string {
	switch {
	case c.CreateTable != nil:
		return "createTable"
	case c.CreateIndex != nil:
		return "createIndex"
	case c.AddForeignKeyConstraint != nil:
		return "addForeignKeyConstraint"
	case c.SQL != nil:
		return "sql"
	}
	return ""
}

func (c Change) count() int {
	n := 0
	if c.CreateTable != nil {
		n++
	}
	if c.CreateIndex != nil {
		n++
	}
	if c.AddForeignKeyConstraint != nil {
		n++
	}
	if c.SQL != nil {
		n++
	}
	return n
}

// Description summarizes the change set for the log table
func (cs ChangeSet) Description() string {
	var parts []string
	for _, c := range cs.Changes {
		parts = append(parts, c.Kind())
	}
	desc := strings.Join(parts, ", ")
	if len(desc) > 255 {
		desc = desc[:252] + "..."
	}
	return desc
}

// Checksum identifies the content of the change set. Re-running a change
// set whose checksum differs from the recorded one is an error.
func (cs ChangeSet) Checksum() (string, error) {
	data, err := json.Marshal(cs.Changes)
	if err != nil {
		return "", fmt.Errorf("failed to compute checksum of change set %s: %w", cs.ID, err)
	}
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// Validate checks the structure of the document
func (d *Document) Validate() error {
	var errs []error
	seen := make(map[string]bool)

	for i, cs := range d.ChangeSets {
		label := fmt.Sprintf("changeSet[%d]", i)
		if cs.ID == "" {
			errs = append(errs, fmt.Errorf("%s: id is required", label))
		}
		if cs.Author == "" {
			errs = append(errs, fmt.Errorf("%s: author is required", label))
		}
		key := cs.ID + "::" + cs.Author
		if cs.ID != "" && seen[key] {
			errs = append(errs, fmt.Errorf("%s: duplicate change set %s by %s", label, cs.ID, cs.Author))
		}
		seen[key] = true

		if len(cs.Changes) == 0 {
			errs = append(errs, fmt.Errorf("%s: no changes", label))
		}
		for j, c := range cs.Changes {
			if err := c.validate(); err != nil {
				errs = append(errs, fmt.Errorf("%s.changes[%d]: %w", label, j, err))
			}
		}
	}

	return errors.Join(errs...)
}

func (c Change) validate() error {
	if n := c.count(); n != 1 {
		return fmt.Errorf("expected exactly one change type, got %d", n)
	}

	switch {
	case c.CreateTable != nil:
		t := c.CreateTable
		if t.TableName == "" {
			return errors.New("createTable: tableName is required")
		}
		if len(t.Columns) == 0 {
			return fmt.Errorf("createTable %s: at least one column is required", t.TableName)
		}
		for _, col := range t.Columns {
			if col.Name == "" || col.Type == "" {
				return fmt.Errorf("createTable %s: columns need a name and a type", t.TableName)
			}
		}
	case c.CreateIndex != nil:
		idx := c.CreateIndex
		if idx.TableName == "" || idx.IndexName == "" {
			return errors.New("createIndex: tableName and indexName are required")
		}
		if len(idx.Columns) == 0 {
			return fmt.Errorf("createIndex %s: at least one column is required", idx.IndexName)
		}
	case c.AddForeignKeyConstraint != nil:
		fk := c.AddForeignKeyConstraint
		if fk.BaseTableName == "" || fk.ReferencedTableName == "" {
			return errors.New("addForeignKeyConstraint: baseTableName and referencedTableName are required")
		}
		base, ref := SplitColumnNames(fk.BaseColumnNames), SplitColumnNames(fk.ReferencedColumnNames)
		if len(base) == 0 || len(base) != len(ref) {
			return fmt.Errorf("addForeignKeyConstraint %s: column lists must be non-empty and the same length", fk.ConstraintName)
		}
	case c.SQL != nil:
		if strings.TrimSpace(c.SQL.SQL) == "" {
			return errors.New("sql: statement is empty")
		}
	}
	return nil
}

// SplitColumnNames splits a comma separated column list
func SplitColumnNames(list string) []string {
	var names []string
	for _, part := range strings.Split(list, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

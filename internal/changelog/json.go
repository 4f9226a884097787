package changelog

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed changelog.schema.json
var schemaJSON []byte

var (
	compiledSchema     *gojsonschema.Schema
	compiledSchemaErr  error
	compiledSchemaOnce sync.Once
)

type jsonDocument struct {
	DatabaseChangeLog []jsonEntry `json:"databaseChangeLog"`
}

type jsonEntry struct {
	ChangeSet *ChangeSet `json:"changeSet"`
}

type jsonColumn struct {
	Column Column `json:"column"`
}

// MarshalJSON writes the databaseChangeLog array of changeSet wrappers
func (d Document) MarshalJSON() ([]byte, error) {
	doc := jsonDocument{DatabaseChangeLog: make([]jsonEntry, 0, len(d.ChangeSets))}
	for i := range d.ChangeSets {
		doc.DatabaseChangeLog = append(doc.DatabaseChangeLog, jsonEntry{ChangeSet: &d.ChangeSets[i]})
	}
	return json.Marshal(doc)
}

// UnmarshalJSON reads the databaseChangeLog array of changeSet wrappers
func (d *Document) UnmarshalJSON(data []byte) error {
	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	d.ChangeSets = make([]ChangeSet, 0, len(doc.DatabaseChangeLog))
	for i, entry := range doc.DatabaseChangeLog {
		if entry.ChangeSet == nil {
			return fmt.Errorf("databaseChangeLog[%d]: expected a changeSet", i)
		}
		d.ChangeSets = append(d.ChangeSets, *entry.ChangeSet)
	}
	return nil
}

func wrapColumns(cols []Column) []jsonColumn {
	wrapped := make([]jsonColumn, len(cols))
	for i, c := range cols {
		wrapped[i] = jsonColumn{Column: c}
	}
	return wrapped
}

func unwrapColumns(wrapped []jsonColumn) []Column {
	if wrapped == nil {
		return nil
	}
	cols := make([]Column, len(wrapped))
	for i, w := range wrapped {
		cols[i] = w.Column
	}
	return cols
}

// MarshalJSON wraps each column as {"column": {...}}
func (t CreateTable) MarshalJSON() ([]byte, error) {
	type plain CreateTable
	return json.Marshal(struct {
		plain
		Columns []jsonColumn `json:"columns"`
	}{plain: plain(t), Columns: wrapColumns(t.Columns)})
}

// UnmarshalJSON unwraps {"column": {...}} entries
func (t *CreateTable) UnmarshalJSON(data []byte) error {
	type plain CreateTable
	aux := struct {
		*plain
		Columns []jsonColumn `json:"columns"`
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t.Columns = unwrapColumns(aux.Columns)
	return nil
}

// MarshalJSON wraps each column as {"column": {...}}
func (idx CreateIndex) MarshalJSON() ([]byte, error) {
	type plain CreateIndex
	return json.Marshal(struct {
		plain
		Columns []jsonColumn `json:"columns"`
	}{plain: plain(idx), Columns: wrapColumns(idx.Columns)})
}

// UnmarshalJSON unwraps {"column": {...}} entries
func (idx *CreateIndex) UnmarshalJSON(data []byte) error {
	type plain CreateIndex
	aux := struct {
		*plain
		Columns []jsonColumn `json:"columns"`
	}{plain: (*plain)(idx)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	idx.Columns = unwrapColumns(aux.Columns)
	return nil
}

// ValidateJSON checks a JSON changelog against the embedded JSON Schema
func ValidateJSON(data []byte) error {
	compiledSchemaOnce.Do(func() {
		compiledSchema, compiledSchemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	})
	if compiledSchemaErr != nil {
		return fmt.Errorf("failed to load changelog JSON schema: %w", compiledSchemaErr)
	}

	result, err := compiledSchema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("failed to validate changelog: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var msgs []string
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return errors.New("changelog does not match the JSON schema:\n  - " + strings.Join(msgs, "\n  - "))
}

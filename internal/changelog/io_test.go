package changelog

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/lockplane/schemaclone/internal/cloneerr"
)

func TestWrite_JSONShape(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, testDocument(), FormatJSON); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var generic map[string]any
	if err := json.Unmarshal(buf.Bytes(), &generic); err != nil {
		t.Fatalf("Output is not JSON: %v\n%s", err, buf.String())
	}

	entries := generic["databaseChangeLog"].([]any)
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	cs := entries[0].(map[string]any)["changeSet"].(map[string]any)
	change := cs["changes"].([]any)[0].(map[string]any)
	table := change["createTable"].(map[string]any)
	if table["catalogName"] != "sales" || table["remarks"] != "application users" {
		t.Errorf("Unexpected createTable %v", table)
	}
	column := table["columns"].([]any)[0].(map[string]any)["column"].(map[string]any)
	if column["name"] != "id" {
		t.Errorf("Expected wrapped column, got %v", column)
	}

	if !strings.HasPrefix(buf.String(), "{\n  \"databaseChangeLog\": [") || !strings.HasSuffix(buf.String(), "}\n") {
		t.Errorf("Expected indented output with trailing newline, got:\n%s", buf.String())
	}
}

func TestReadWrite_RoundTrip(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatXML} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := Write(&buf, testDocument(), format); err != nil {
				t.Fatalf("Write failed: %v", err)
			}

			doc, err := Read(&buf, format)
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if !reflect.DeepEqual(doc, testDocument()) {
				t.Errorf("Round trip changed the document:\n%+v", doc)
			}
		})
	}
}

func TestWrite_XML(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, testDocument(), FormatXML); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<databaseChangeLog xmlns="` + Namespace + `">`,
		`<changeSet id="createTable-users" author="schemaclone">`,
		`<createTable catalogName="sales" schemaName="public" tableName="users" remarks="application users">`,
		`<constraints nullable="false" primaryKey="true"></constraints>`,
		`<sql dbms="sqlite">INSERT INTO users (id) VALUES (1)</sql>`,
		`<comment>seed</comment>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected XML to contain %s, got:\n%s", want, out)
		}
	}
}

func TestRead_XMLKeepsChangeOrder(t *testing.T) {
	input := `<databaseChangeLog xmlns="http://www.liquibase.org/xml/ns/dbchangelog">
  <changeSet id="1" author="ops">
    <sql>SELECT 1</sql>
    <createTable tableName="t"><column name="a" type="int"/></createTable>
    <sql>SELECT 2</sql>
  </changeSet>
</databaseChangeLog>`

	doc, err := Read(strings.NewReader(input), FormatXML)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	changes := doc.ChangeSets[0].Changes
	if len(changes) != 3 || changes[0].SQL.SQL != "SELECT 1" || changes[1].CreateTable == nil || changes[2].SQL.SQL != "SELECT 2" {
		t.Errorf("Expected change order to be preserved, got %+v", changes)
	}
}

func TestRead_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		input  string
	}{
		{"not json", FormatJSON, `{`},
		{"missing root", FormatJSON, `{"changes": []}`},
		{"entry without changeSet", FormatJSON, `{"databaseChangeLog": [{}]}`},
		{"unknown change type", FormatJSON, `{"databaseChangeLog": [{"changeSet": {"id": "1", "author": "a", "changes": [{"dropTable": {}}]}}]}`},
		{"two change types", FormatJSON, `{"databaseChangeLog": [{"changeSet": {"id": "1", "author": "a", "changes": [{"sql": {"sql": "x"}, "createTable": {"tableName": "t", "columns": []}}]}}]}`},
		{"wrong type", FormatJSON, `{"databaseChangeLog": [{"changeSet": {"id": 1, "author": "a", "changes": []}}]}`},
		{"unknown xml change", FormatXML, `<databaseChangeLog><changeSet id="1" author="a"><dropTable tableName="t"/></changeSet></databaseChangeLog>`},
		{"invalid structure", FormatXML, `<databaseChangeLog><changeSet id="1" author="a"></changeSet></databaseChangeLog>`},
		{"unknown format", Format("yaml"), `databaseChangeLog: []`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Read(strings.NewReader(tt.input), tt.format); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{
		"changelog.json":     FormatJSON,
		"/tmp/Changelog.XML": FormatXML,
	}
	for path, want := range tests {
		got, err := FormatFromPath(path)
		if err != nil || got != want {
			t.Errorf("FormatFromPath(%q) = %q, %v; want %q", path, got, err, want)
		}
	}
	if _, err := FormatFromPath("changelog.yaml"); err == nil {
		t.Error("Expected error for unknown extension")
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"out.json", "out.xml"} {
		path := filepath.Join(dir, name)
		if err := Save(path, testDocument()); err != nil {
			t.Fatalf("Save(%s) failed: %v", name, err)
		}
		if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
			t.Errorf("Expected temp file to be gone, stat err = %v", err)
		}

		doc, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%s) failed: %v", name, err)
		}
		if len(doc.ChangeSets) != 3 {
			t.Errorf("Expected 3 change sets from %s, got %d", name, len(doc.ChangeSets))
		}
	}
}

func TestLoad_ErrorsAreMigrationEngineErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"databaseChangeLog": "nope"}`), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	for _, path := range []string{bad, filepath.Join(dir, "missing.json"), filepath.Join(dir, "x.txt")} {
		_, err := Load(path)
		if !cloneerr.Is(err, cloneerr.MigrationEngine) {
			t.Errorf("Load(%s): expected MigrationEngine error, got %v", path, err)
		}
	}
}

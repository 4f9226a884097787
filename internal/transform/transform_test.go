package transform

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/lockplane/schemaclone/internal/cloneerr"
)

func transformString(t *testing.T, input string, rules Rules) (string, Stats, error) {
	t.Helper()
	var out bytes.Buffer
	stats, err := New(rules).Run(strings.NewReader(input), &out)
	return out.String(), stats, err
}

// tokens returns the token sequence of a JSON document, keeping number
// literals as written so representation changes are visible.
func tokens(t *testing.T, doc string) []json.Token {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(doc))
	dec.UseNumber()
	var toks []json.Token
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return toks
		}
		if err != nil {
			t.Fatalf("output is not valid JSON: %v\n%s", err, doc)
		}
		toks = append(toks, tok)
	}
}

func assertSameDocument(t *testing.T, want, got string) {
	t.Helper()
	if !reflect.DeepEqual(tokens(t, want), tokens(t, got)) {
		t.Errorf("documents differ\nwant: %s\ngot:  %s", want, got)
	}
}

func TestTransform_IdentityWithoutMatchingFields(t *testing.T) {
	rules := Rules{"remarks": Drop(), "catalogName": Suffix("Clone")}

	docs := []struct {
		name string
		doc  string
	}{
		{"scalar string", `"just a string"`},
		{"scalar number", `12`},
		{"empty object", `{}`},
		{"empty array", `[]`},
		{"flat object", `{"id": 1, "name": "users", "nullable": false, "default": null}`},
		{"nested", `{"databaseChangeLog": [{"changeSet": {"id": "1-1", "author": "me", "changes": [{"createTable": {"tableName": "users", "columns": [{"column": {"name": "id", "type": "int"}}]}}]}}]}`},
		{"arrays of arrays", `[[1, 2], [], [[{"a": [true, false, null]}]]]`},
		{"numbers", `{"int": 42, "neg": -7, "float": 3.5, "exp": 1e10, "big": 12345678901234567890, "zero": 0.0}`},
		{"escapes", `{"quote": "a \"b\" c", "unicode": "café ☕", "html": "<tag>&"}`},
		{"key order", `{"z": 1, "a": 2, "m": {"y": 1, "b": 2}}`},
		{"value named like a rule", `{"name": "remarks", "list": ["catalogName"]}`},
	}

	for _, tt := range docs {
		t.Run(tt.name, func(t *testing.T) {
			out, stats, err := transformString(t, tt.doc, rules)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertSameDocument(t, tt.doc, out)
			if stats.Dropped != 0 || stats.Rewritten != 0 {
				t.Errorf("expected no rule applications, got %+v", stats)
			}
		})
	}
}

func TestTransform_DropLaw(t *testing.T) {
	out, stats, err := transformString(t, `{"id": 1, "remarks": "x", "name": "a"}`, Rules{"remarks": Drop()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertSameDocument(t, `{"id": 1, "name": "a"}`, out)
	if stats.Dropped != 1 {
		t.Errorf("expected 1 dropped field, got %d", stats.Dropped)
	}
}

func TestTransform_DropRemovesWholeSubtree(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "object value",
			input: `{"a": {"remarks": {"x": [1, {"y": 2}], "remarks": "inner"}, "b": true}, "c": 1}`,
			want:  `{"a": {"b": true}, "c": 1}`,
		},
		{
			name:  "array value",
			input: `{"remarks": [1, [2, 3], {"k": "v"}], "kept": "yes"}`,
			want:  `{"kept": "yes"}`,
		},
		{
			name:  "only field",
			input: `{"remarks": "gone"}`,
			want:  `{}`,
		},
		{
			name:  "last field",
			input: `{"a": 1, "remarks": null}`,
			want:  `{"a": 1}`,
		},
		{
			name:  "inside array elements",
			input: `[{"remarks": "a", "id": 1}, {"id": 2, "remarks": "b"}, {"remarks": {}}]`,
			want:  `[{"id": 1}, {"id": 2}, {}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := transformString(t, tt.input, Rules{"remarks": Drop()})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertSameDocument(t, tt.want, out)
		})
	}
}

func TestTransform_RewriteLaw(t *testing.T) {
	rules := Rules{"catalogName": Rewrite(func(v Scalar) (Scalar, error) {
		return StringValue(v.Str + "Clone"), nil
	})}

	out, stats, err := transformString(t, `{"catalogName": "Sales"}`, rules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertSameDocument(t, `{"catalogName": "SalesClone"}`, out)
	if stats.Rewritten != 1 {
		t.Errorf("expected 1 rewritten field, got %d", stats.Rewritten)
	}
}

func TestTransform_RewriteAtAnyDepth(t *testing.T) {
	input := `{"changes": [{"createTable": {"catalogName": "sales", "tableName": "t"}}, {"createIndex": {"catalogName": null}}]}`
	want := `{"changes": [{"createTable": {"catalogName": "salesClone", "tableName": "t"}}, {"createIndex": {"catalogName": null}}]}`

	out, _, err := transformString(t, input, Rules{"catalogName": Suffix("Clone")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertSameDocument(t, want, out)
}

func TestTransform_RewriteRejectsContainers(t *testing.T) {
	_, _, err := transformString(t, `{"catalogName": {"nested": true}}`, Rules{"catalogName": Suffix("Clone")})
	if !cloneerr.Is(err, cloneerr.Transform) {
		t.Fatalf("expected transform error, got %v", err)
	}
}

func TestTransform_RewriteErrorIsTransformError(t *testing.T) {
	rules := Rules{"id": Rewrite(func(Scalar) (Scalar, error) {
		return Scalar{}, fmt.Errorf("boom")
	})}
	_, _, err := transformString(t, `{"id": 1}`, rules)
	if !cloneerr.Is(err, cloneerr.Transform) {
		t.Fatalf("expected transform error, got %v", err)
	}
}

func TestTransform_NumbersKeepRepresentation(t *testing.T) {
	out, _, err := transformString(t, `{"int": 42, "float": 3.5, "exp": 2.5e-3, "whole": 10.0, "remarks": 1}`, Rules{"remarks": Drop()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{`"int": 42`, `"float": 3.5`, `"exp": 2.5e-3`, `"whole": 10.0`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %s, got:\n%s", want, out)
		}
	}
	for _, unwanted := range []string{"42.0", `"3.5"`, `"float": 3,`} {
		if strings.Contains(out, unwanted) {
			t.Errorf("output must not contain %s, got:\n%s", unwanted, out)
		}
	}
}

func TestTransform_ScalarTypesPreserved(t *testing.T) {
	out, _, err := transformString(t, `[true, false, null, "true", 0, "0"]`, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got []any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid output: %v", err)
	}
	want := []any{true, false, nil, "true", float64(0), "0"}
	if !reflect.DeepEqual(want, got) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestTransform_PrettyPrints(t *testing.T) {
	out, _, err := transformString(t, `{"b":[1,{}],"c":[]}`, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "{\n  \"b\": [\n    1,\n    {}\n  ],\n  \"c\": []\n}"
	if out != want {
		t.Errorf("unexpected formatting\nwant:\n%s\ngot:\n%s", want, out)
	}
}

func TestTransform_MalformedInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"end object at depth 0", `}`},
		{"trailing end object", `{"a": 1}}`},
		{"mismatched end", `{"a": [1}`},
		{"unterminated", `{"a": [1, 2`},
		{"missing value", `{"a": }`},
		{"second document", `{"a": 1} {"b": 2}`},
		{"empty", ``},
		{"garbage", `{"a": nope}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := transformString(t, tt.input, Rules{"remarks": Drop()})
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !cloneerr.Is(err, cloneerr.Transform) {
				t.Errorf("expected transform error, got %v", err)
			}
		})
	}
}

func TestTransform_NoOutputAfterAnomaly(t *testing.T) {
	out, _, err := transformString(t, `{"a": 1}}{"b": 2}`, nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	assertSameDocument(t, `{"a": 1}`, out)
	if strings.Contains(out, `"b"`) {
		t.Errorf("output continued past the anomaly:\n%s", out)
	}
}

func TestTransform_LargeDocumentStreams(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(`{"items": [`)
	const n = 5000
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"id": %d, "remarks": "row %d", "catalogName": "db"}`, i, i)
	}
	sb.WriteString(`]}`)

	out, stats, err := transformString(t, sb.String(), DefaultRules())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Dropped != n || stats.Rewritten != n {
		t.Errorf("expected %d drops and rewrites, got %+v", n, stats)
	}

	var doc struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("invalid output: %v", err)
	}
	if len(doc.Items) != n {
		t.Fatalf("expected %d items, got %d", n, len(doc.Items))
	}
	if _, ok := doc.Items[10]["remarks"]; ok {
		t.Error("remarks should have been dropped")
	}
	if doc.Items[10]["catalogName"] != "dbClone" {
		t.Errorf("expected catalogName dbClone, got %v", doc.Items[10]["catalogName"])
	}
}

func TestTransformFunc(t *testing.T) {
	var out bytes.Buffer
	if err := Transform(strings.NewReader(`{"remarks": 1, "x": 2}`), &out, DefaultRules()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertSameDocument(t, `{"x": 2}`, out.String())
}

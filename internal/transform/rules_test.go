package transform

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/lockplane/schemaclone/internal/cloneerr"
	"github.com/lockplane/schemaclone/internal/config"
)

func TestDefaultRules(t *testing.T) {
	rules := DefaultRules()

	if rules["remarks"].Action != ActionDrop {
		t.Errorf("expected remarks to be dropped, got %v", rules["remarks"].Action)
	}
	catalog, ok := rules["catalogName"]
	if !ok || catalog.Action != ActionRewrite {
		t.Fatalf("expected catalogName rewrite rule, got %+v", catalog)
	}
	got, err := catalog.Rewrite(StringValue("Sales"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Str != "SalesClone" {
		t.Errorf("expected SalesClone, got %q", got.Str)
	}
}

func TestSuffix_LeavesNonStrings(t *testing.T) {
	rule := Suffix("Clone")

	for _, v := range []Scalar{NullValue(), BoolValue(true), NumberValue("7")} {
		got, err := rule.Rewrite(v)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != v {
			t.Errorf("expected %+v to be unchanged, got %+v", v, got)
		}
	}
}

func TestExpr(t *testing.T) {
	tests := []struct {
		name  string
		code  string
		input Scalar
		want  Scalar
	}{
		{
			name:  "string concat",
			code:  `value + "_copy"`,
			input: StringValue("sales"),
			want:  StringValue("sales_copy"),
		},
		{
			name:  "integer arithmetic",
			code:  `kind == "number" ? value * 2 : value`,
			input: NumberValue("21"),
			want:  NumberValue("42"),
		},
		{
			name:  "float stays float",
			code:  `value * 2`,
			input: NumberValue("1.5"),
			want:  NumberValue("3.0"),
		},
		{
			name:  "null to string",
			code:  `kind == "null" ? "unknown" : value`,
			input: NullValue(),
			want:  StringValue("unknown"),
		},
		{
			name:  "catalog clone suffix",
			code:  `value + "Clone"`,
			input: StringValue("sales"),
			want:  StringValue("salesClone"),
		},
		{
			name:  "bool negation",
			code:  `kind == "bool" ? !value : value`,
			input: BoolValue(true),
			want:  BoolValue(false),
		},
		{
			name:  "upper",
			code:  `upper(value)`,
			input: StringValue("dbo"),
			want:  StringValue("DBO"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := Expr(tt.code)
			if err != nil {
				t.Fatalf("failed to compile: %v", err)
			}
			got, err := rule.Rewrite(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestExpr_CompileError(t *testing.T) {
	if _, err := Expr(`value +`); err == nil {
		t.Fatal("expected compile error")
	}
}

func TestExpr_UnsupportedResult(t *testing.T) {
	rule, err := Expr(`{"nested": value}`)
	if err != nil {
		t.Fatalf("failed to compile: %v", err)
	}

	_, _, err = transformString(t, `{"x": 1}`, Rules{"x": rule})
	if !cloneerr.Is(err, cloneerr.Transform) {
		t.Fatalf("expected transform error, got %v", err)
	}
}

func TestRulesFromConfig(t *testing.T) {
	t.Run("empty yields defaults", func(t *testing.T) {
		rules, err := RulesFromConfig(config.TransformConfig{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(rules) != 2 || rules["remarks"].Action != ActionDrop {
			t.Errorf("expected default rules, got %+v", rules)
		}
	})

	t.Run("explicit rules replace defaults", func(t *testing.T) {
		rules, err := RulesFromConfig(config.TransformConfig{
			Drop:   []string{"remarks", "comment"},
			Suffix: map[string]string{"catalogName": "_copy"},
			Expr:   map[string]string{"schemaName": `upper(value)`},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(rules) != 4 {
			t.Fatalf("expected 4 rules, got %d", len(rules))
		}

		out, _, err := transformString(t, `{"comment": "c", "catalogName": "sales", "schemaName": "dbo", "remarks": "r"}`, rules)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var got map[string]any
		if err := json.Unmarshal([]byte(out), &got); err != nil {
			t.Fatalf("invalid output: %v", err)
		}
		want := map[string]any{"catalogName": "sales_copy", "schemaName": "DBO"}
		if len(got) != len(want) || got["catalogName"] != want["catalogName"] || got["schemaName"] != want["schemaName"] {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("expression over string values", func(t *testing.T) {
		rules, err := RulesFromConfig(config.TransformConfig{
			Expr: map[string]string{"catalogName": `value + "Clone"`, "tableName": `lower(value)`},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out, _, err := transformString(t, `{"catalogName": "sales", "tableName": "ORDERS", "id": 7}`, rules)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{`"catalogName": "salesClone"`, `"tableName": "orders"`, `"id": 7`} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %s in output:\n%s", want, out)
			}
		}
	})

	t.Run("duplicate field", func(t *testing.T) {
		_, err := RulesFromConfig(config.TransformConfig{
			Drop:   []string{"remarks"},
			Suffix: map[string]string{"remarks": "x"},
		})
		if err == nil {
			t.Fatal("expected error for field with two rules")
		}
	})

	t.Run("bad expression", func(t *testing.T) {
		_, err := RulesFromConfig(config.TransformConfig{
			Expr: map[string]string{"catalogName": `value +`},
		})
		if err == nil {
			t.Fatal("expected compile error")
		}
	})
}

func TestScalarOf(t *testing.T) {
	tests := []struct {
		in   any
		want Scalar
	}{
		{nil, NullValue()},
		{"x", StringValue("x")},
		{true, BoolValue(true)},
		{7, NumberValue("7")},
		{int64(-3), NumberValue("-3")},
		{2.0, NumberValue("2.0")},
		{0.25, NumberValue("0.25")},
		{json.Number("1e3"), NumberValue("1e3")},
	}
	for _, tt := range tests {
		got, err := ScalarOf(tt.in)
		if err != nil {
			t.Fatalf("ScalarOf(%v): unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ScalarOf(%v): expected %+v, got %+v", tt.in, tt.want, got)
		}
	}

	if _, err := ScalarOf([]int{1}); err == nil {
		t.Error("expected error for slice value")
	}
}

func TestScalarInterface(t *testing.T) {
	if v := NumberValue("42").Interface(); v != int64(42) {
		t.Errorf("expected int64 42, got %T %v", v, v)
	}
	if v := NumberValue("3.5").Interface(); v != 3.5 {
		t.Errorf("expected 3.5, got %T %v", v, v)
	}
	if v := NullValue().Interface(); v != nil {
		t.Errorf("expected nil, got %v", v)
	}
}

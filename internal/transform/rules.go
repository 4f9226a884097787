package transform

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/lockplane/schemaclone/internal/config"
)

// Action is what a rule does to a matching field.
type Action int

const (
	// ActionDrop omits the field and its whole value.
	ActionDrop Action = iota + 1
	// ActionRewrite keeps the field and replaces its scalar value.
	ActionRewrite
)

func (a Action) String() string {
	switch a {
	case ActionDrop:
		return "drop"
	case ActionRewrite:
		return "rewrite"
	default:
		return "unknown"
	}
}

// RewriteFunc computes a replacement for a scalar field value.
type RewriteFunc func(Scalar) (Scalar, error)

// Rule is applied to every field whose name matches, at any depth.
type Rule struct {
	Action  Action
	Rewrite RewriteFunc
}

// Rules maps field names to rules.
type Rules map[string]Rule

// Drop returns a rule that removes the field.
func Drop() Rule {
	return Rule{Action: ActionDrop}
}

// Rewrite returns a rule that replaces the field's value with fn(value).
func Rewrite(fn RewriteFunc) Rule {
	return Rule{Action: ActionRewrite, Rewrite: fn}
}

// Suffix appends s to string values. Other scalars are left alone.
func Suffix(s string) Rule {
	return Rewrite(func(v Scalar) (Scalar, error) {
		if v.Kind != KindString {
			return v, nil
		}
		return StringValue(v.Str + s), nil
	})
}

// exprEnv is what a rewrite expression sees. Value is untyped so the
// expression may treat it as a string, number or bool.
type exprEnv struct {
	Value any    `expr:"value"`
	Kind  string `expr:"kind"`
}

// Expr compiles an expr-lang expression into a rewrite rule. The expression
// sees the current value as `value` and its JSON kind ("string", "number",
// "bool", "null") as `kind`.
func Expr(code string) (Rule, error) {
	program, err := expr.Compile(code, expr.Env(exprEnv{}))
	if err != nil {
		return Rule{}, fmt.Errorf("failed to compile rewrite expression %q: %w", code, err)
	}
	return Rewrite(exprRewrite(program)), nil
}

func exprRewrite(program *vm.Program) RewriteFunc {
	return func(v Scalar) (Scalar, error) {
		out, err := expr.Run(program, exprEnv{Value: v.Interface(), Kind: v.Kind.String()})
		if err != nil {
			return Scalar{}, err
		}
		return ScalarOf(out)
	}
}

// DefaultRules is the rule table used when the config does not define one:
// table remarks are removed and catalog names get a "Clone" suffix so the
// rewritten changelog targets the cloned database.
func DefaultRules() Rules {
	return Rules{
		"remarks":     Drop(),
		"catalogName": Suffix("Clone"),
	}
}

// RulesFromConfig builds the rule table from the [transform] section.
// An empty section yields DefaultRules.
func RulesFromConfig(cfg config.TransformConfig) (Rules, error) {
	if len(cfg.Drop) == 0 && len(cfg.Suffix) == 0 && len(cfg.Expr) == 0 {
		return DefaultRules(), nil
	}

	rules := Rules{}
	for _, name := range cfg.Drop {
		rules[name] = Drop()
	}
	for name, suffix := range cfg.Suffix {
		if _, exists := rules[name]; exists {
			return nil, fmt.Errorf("field %q has more than one transform rule", name)
		}
		rules[name] = Suffix(suffix)
	}
	for name, code := range cfg.Expr {
		if _, exists := rules[name]; exists {
			return nil, fmt.Errorf("field %q has more than one transform rule", name)
		}
		rule, err := Expr(code)
		if err != nil {
			return nil, err
		}
		rules[name] = rule
	}
	return rules, nil
}

// ScalarKind is the JSON type of a Scalar.
type ScalarKind int

const (
	KindString ScalarKind = iota + 1
	KindNumber
	KindBool
	KindNull
)

func (k ScalarKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindNull:
		return "null"
	default:
		return "unknown"
	}
}

// Scalar is a leaf value of a changelog document. Numbers keep their literal
// text so they are written back exactly as they were read.
type Scalar struct {
	Kind ScalarKind
	Str  string
	Num  json.Number
	Bool bool
}

func StringValue(s string) Scalar      { return Scalar{Kind: KindString, Str: s} }
func NumberValue(n json.Number) Scalar { return Scalar{Kind: KindNumber, Num: n} }
func BoolValue(b bool) Scalar          { return Scalar{Kind: KindBool, Bool: b} }
func NullValue() Scalar                { return Scalar{Kind: KindNull} }

// IsInteger reports whether a number literal has no fraction or exponent.
func (s Scalar) IsInteger() bool {
	return s.Kind == KindNumber && !strings.ContainsAny(string(s.Num), ".eE")
}

// Interface returns the Go value of the scalar: string, int64, float64, bool or nil.
func (s Scalar) Interface() any {
	switch s.Kind {
	case KindString:
		return s.Str
	case KindNumber:
		if s.IsInteger() {
			if n, err := s.Num.Int64(); err == nil {
				return n
			}
		}
		if f, err := s.Num.Float64(); err == nil {
			return f
		}
		return string(s.Num)
	case KindBool:
		return s.Bool
	default:
		return nil
	}
}

// ScalarOf converts a Go value back into a Scalar. Floats always keep a
// fractional part or exponent so they are not read back as integers.
func ScalarOf(v any) (Scalar, error) {
	switch x := v.(type) {
	case nil:
		return NullValue(), nil
	case string:
		return StringValue(x), nil
	case bool:
		return BoolValue(x), nil
	case json.Number:
		return NumberValue(x), nil
	case int:
		return NumberValue(json.Number(strconv.Itoa(x))), nil
	case int32:
		return NumberValue(json.Number(strconv.FormatInt(int64(x), 10))), nil
	case int64:
		return NumberValue(json.Number(strconv.FormatInt(x, 10))), nil
	case uint:
		return NumberValue(json.Number(strconv.FormatUint(uint64(x), 10))), nil
	case uint64:
		return NumberValue(json.Number(strconv.FormatUint(x, 10))), nil
	case float32:
		return floatScalar(float64(x))
	case float64:
		return floatScalar(x)
	default:
		return Scalar{}, fmt.Errorf("rewrite produced unsupported value of type %T", v)
	}
}

func floatScalar(f float64) (Scalar, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Scalar{}, fmt.Errorf("rewrite produced non-finite number %v", f)
	}
	text := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(text, ".eE") {
		text += ".0"
	}
	return NumberValue(json.Number(text)), nil
}

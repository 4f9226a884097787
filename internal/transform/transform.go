// Package transform rewrites JSON changelog documents in a single forward
// pass over their tokens. Fields named in the rule table are dropped or have
// their scalar values replaced; everything else is copied through with its
// nesting, order and scalar types intact.
package transform

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"github.com/lockplane/schemaclone/internal/cloneerr"
)

const (
	defaultIndent  = 2
	flushThreshold = 32 * 1024
)

// Stats counts what a transform did.
type Stats struct {
	Tokens    int
	Dropped   int
	Rewritten int
}

// Transformer applies a fixed rule table to documents.
type Transformer struct {
	rules  Rules
	indent int
	logger zerolog.Logger
	name   string
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithLogger logs every dropped and rewritten field at debug level.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Transformer) { t.logger = logger }
}

// WithIndent sets the number of spaces per nesting level in the output.
func WithIndent(n int) Option {
	return func(t *Transformer) { t.indent = n }
}

// WithName sets the document name reported in errors.
func WithName(name string) Option {
	return func(t *Transformer) { t.name = name }
}

// New returns a Transformer for rules.
func New(rules Rules, opts ...Option) *Transformer {
	t := &Transformer{
		rules:  rules,
		indent: defaultIndent,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transform rewrites the document read from src into dst using rules.
func Transform(src io.Reader, dst io.Writer, rules Rules) error {
	_, err := New(rules).Run(src, dst)
	return err
}

// Run rewrites one document. On error nothing past the offending token is
// written; whatever was written before it is not a valid document and must
// be discarded by the caller.
func (t *Transformer) Run(src io.Reader, dst io.Writer) (Stats, error) {
	dec := json.NewDecoder(src)
	dec.UseNumber()

	cfg := jsoniter.Config{IndentionStep: t.indent, EscapeHTML: false}.Froze()
	r := &run{
		t:   t,
		dec: dec,
		out: jsoniter.NewStream(cfg, dst, 4096),
	}

	err := r.loop()
	if flushErr := r.out.Flush(); flushErr != nil && err == nil {
		err = cloneerr.New(cloneerr.Transform, "write", t.name, flushErr)
	}
	return r.stats, err
}

type frameKind int

const (
	objectFrame frameKind = iota + 1
	arrayFrame
)

func (k frameKind) String() string {
	if k == objectFrame {
		return "object"
	}
	return "array"
}

// frame is one open object or array. Frames under a dropped field are
// tracked with discard set so their end tokens still have to match.
type frame struct {
	kind      frameKind
	count     int
	expectKey bool
	discard   bool
}

type run struct {
	t     *Transformer
	dec   *json.Decoder
	out   *jsoniter.Stream
	stack []frame
	stats Stats

	done      bool
	dropNext  bool
	rewriting string
	rewrite   *Rule
}

func (r *run) loop() error {
	for {
		tok, err := r.dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return r.fail("malformed document: %w", err)
		}
		r.stats.Tokens++

		if err := r.handle(tok); err != nil {
			return err
		}
		if r.out.Buffered() >= flushThreshold {
			if err := r.out.Flush(); err != nil {
				return cloneerr.New(cloneerr.Transform, "write", r.t.name, err)
			}
		}
	}

	if len(r.stack) > 0 {
		return r.fail("unexpected end of document: %d unclosed %s", len(r.stack), r.top().kind)
	}
	if !r.done {
		return r.fail("empty document")
	}
	return nil
}

func (r *run) handle(tok json.Token) error {
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return r.open(objectFrame)
		case '[':
			return r.open(arrayFrame)
		case '}':
			return r.close(objectFrame)
		case ']':
			return r.close(arrayFrame)
		}
		return r.fail("unknown delimiter %q", rune(v))
	case string:
		if top := r.top(); top != nil && top.kind == objectFrame && top.expectKey {
			return r.field(v)
		}
		return r.scalar(StringValue(v))
	case json.Number:
		return r.scalar(NumberValue(v))
	case bool:
		return r.scalar(BoolValue(v))
	case nil:
		return r.scalar(NullValue())
	default:
		return r.fail("unknown token type %T", tok)
	}
}

func (r *run) top() *frame {
	if len(r.stack) == 0 {
		return nil
	}
	return &r.stack[len(r.stack)-1]
}

// beginValue positions the output for a value and reports whether the value
// is being discarded.
func (r *run) beginValue() (bool, error) {
	top := r.top()
	if top == nil {
		if r.done {
			return false, r.fail("unexpected value after end of document")
		}
		return false, nil
	}
	if top.discard {
		return true, nil
	}
	if r.dropNext {
		r.dropNext = false
		return true, nil
	}

	switch top.kind {
	case arrayFrame:
		if top.count == 0 {
			r.out.WriteArrayStart()
		} else {
			r.out.WriteMore()
		}
		top.count++
	case objectFrame:
		if top.expectKey {
			return false, r.fail("value without a field name")
		}
	}
	return false, nil
}

// endValue records that the current value is complete.
func (r *run) endValue() {
	top := r.top()
	if top == nil {
		r.done = true
		return
	}
	if top.kind == objectFrame {
		top.expectKey = true
	}
}

func (r *run) open(kind frameKind) error {
	if r.rewrite != nil {
		return r.fail("rewrite rule for field %q needs a scalar value, got %s", r.rewriting, kind)
	}
	discard, err := r.beginValue()
	if err != nil {
		return err
	}
	r.stack = append(r.stack, frame{
		kind:      kind,
		expectKey: kind == objectFrame,
		discard:   discard,
	})
	return nil
}

func (r *run) close(kind frameKind) error {
	top := r.top()
	if top == nil {
		return r.fail("unmatched end of %s at depth 0", kind)
	}
	if top.kind != kind {
		return r.fail("end of %s inside %s", kind, top.kind)
	}
	if kind == objectFrame && !top.expectKey {
		return r.fail("end of object after a field name with no value")
	}

	closed := *top
	r.stack = r.stack[:len(r.stack)-1]
	if !closed.discard {
		switch {
		case kind == objectFrame && closed.count == 0:
			r.out.WriteEmptyObject()
		case kind == objectFrame:
			r.out.WriteObjectEnd()
		case closed.count == 0:
			r.out.WriteEmptyArray()
		default:
			r.out.WriteArrayEnd()
		}
	}
	r.endValue()
	return nil
}

func (r *run) field(name string) error {
	top := r.top()
	top.expectKey = false
	if top.discard {
		return nil
	}

	rule, ruled := r.t.rules[name]
	if ruled && rule.Action == ActionDrop {
		r.dropNext = true
		r.stats.Dropped++
		r.t.logger.Debug().Str("field", name).Msg("Removing field")
		return nil
	}

	if top.count == 0 {
		r.out.WriteObjectStart()
	} else {
		r.out.WriteMore()
	}
	top.count++
	r.out.WriteObjectField(name)

	if ruled && rule.Action == ActionRewrite {
		r.rewrite = &rule
		r.rewriting = name
	}
	return nil
}

func (r *run) scalar(v Scalar) error {
	if r.rewrite != nil {
		rule := r.rewrite
		r.rewrite = nil
		if rule.Rewrite != nil {
			replaced, err := rule.Rewrite(v)
			if err != nil {
				return r.fail("rewrite field %q: %w", r.rewriting, err)
			}
			r.t.logger.Debug().
				Str("field", r.rewriting).
				Interface("from", v.Interface()).
				Interface("to", replaced.Interface()).
				Msg("Rewriting field")
			v = replaced
		}
		r.stats.Rewritten++
	}

	discard, err := r.beginValue()
	if err != nil {
		return err
	}
	if !discard {
		if err := r.write(v); err != nil {
			return err
		}
	}
	r.endValue()
	return nil
}

func (r *run) write(v Scalar) error {
	switch v.Kind {
	case KindString:
		r.out.WriteString(v.Str)
	case KindNumber:
		if !json.Valid([]byte(v.Num)) {
			return r.fail("invalid number literal %q", v.Num)
		}
		r.out.WriteRaw(string(v.Num))
	case KindBool:
		r.out.WriteBool(v.Bool)
	case KindNull:
		r.out.WriteNil()
	default:
		return r.fail("unknown scalar kind %d", v.Kind)
	}
	return nil
}

func (r *run) fail(format string, args ...any) error {
	cause := fmt.Errorf(format, args...)
	return cloneerr.New(cloneerr.Transform, "transform", r.t.name,
		fmt.Errorf("at offset %d: %w", r.dec.InputOffset(), cause))
}

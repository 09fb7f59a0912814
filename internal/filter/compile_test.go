package filter

import (
	"reflect"
	"strings"
	"testing"

	"github.com/norjs/nopg/internal/entity"
	"github.com/norjs/nopg/internal/nerr"
	"github.com/norjs/nopg/internal/predicate"
)

func testSchema() *entity.Schema {
	return &entity.Schema{Properties: map[string]entity.Property{
		"age":  {Type: "number"},
		"done": {Type: "boolean"},
		"name": {Type: "string"},
	}}
}

func testCompiler(t *testing.T) *Compiler {
	t.Helper()
	reg := NewRegistry()
	if err := reg.Register(Function{Name: "overlaps"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(Function{Name: "distance", ReturnType: "numeric"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return NewCompiler(entity.Document, testSchema(), reg)
}

// -----------------------------------------------------------------------------
// Map specifications
// -----------------------------------------------------------------------------

func TestCompileNil(t *testing.T) {
	c := testCompiler(t)
	p, err := c.Compile(nil, predicate.OpAnd)
	if err != nil {
		t.Fatalf("Compile(nil) error: %v", err)
	}
	if !p.IsEmpty() {
		t.Errorf("Compile(nil) = %q, want empty", p.Text())
	}
}

func TestCompileIDEquality(t *testing.T) {
	c := testCompiler(t)
	p, err := c.Compile(map[string]any{"$id": "X"}, predicate.OpAnd)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}

	if p.Text() != "id = $1" {
		t.Errorf("Text() = %q, want %q", p.Text(), "id = $1")
	}
	if got := p.Params(); !reflect.DeepEqual(got, []any{"X"}) {
		t.Errorf("Params() = %v, want [X]", got)
	}
}

func TestCompileCastSelection(t *testing.T) {
	c := testCompiler(t)

	tests := []struct {
		name  string
		spec  map[string]any
		want  string
		param any
	}{
		{
			"declared number gets numeric cast",
			map[string]any{"age": 10},
			"(content->>'age')::numeric = $1",
			10,
		},
		{
			"declared string compares as text",
			map[string]any{"name": "bob"},
			"content->>'name' = $1",
			"bob",
		},
		{
			"undeclared field compares as text",
			map[string]any{"nickname": "b"},
			"content->>'nickname' = $1",
			"b",
		},
		{
			"declared boolean gets boolean cast",
			map[string]any{"done": true},
			"(content->>'done')::boolean = $1",
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := c.Compile(tt.spec, predicate.OpAnd)
			if err != nil {
				t.Fatalf("Compile error: %v", err)
			}
			if p.Text() != tt.want {
				t.Errorf("Text() = %q, want %q", p.Text(), tt.want)
			}
			if got := p.Params(); !reflect.DeepEqual(got, []any{tt.param}) {
				t.Errorf("Params() = %v, want [%v]", got, tt.param)
			}
		})
	}
}

func TestCompileMapSortsKeys(t *testing.T) {
	c := testCompiler(t)
	p, err := c.Compile(map[string]any{"name": "bob", "age": 10}, predicate.OpAnd)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}

	want := "(content->>'age')::numeric = $1 AND content->>'name' = $2"
	if p.Text() != want {
		t.Errorf("Text() = %q, want %q", p.Text(), want)
	}
	if got := p.Params(); !reflect.DeepEqual(got, []any{10, "bob"}) {
		t.Errorf("Params() = %v", got)
	}
}

func TestCompileMapMatchAny(t *testing.T) {
	c := testCompiler(t)
	p, err := c.Compile(map[string]any{"age": 10, "name": "bob"}, predicate.OpOr)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}

	want := "((content->>'age')::numeric = $1) OR (content->>'name' = $2)"
	if p.Text() != want {
		t.Errorf("Text() = %q, want %q", p.Text(), want)
	}
}

func TestCompileNullValue(t *testing.T) {
	c := testCompiler(t)
	p, err := c.Compile(map[string]any{"name": nil}, predicate.OpAnd)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}

	if p.Text() != "content->>'name' IS NULL" {
		t.Errorf("Text() = %q", p.Text())
	}
	if len(p.Params()) != 0 {
		t.Errorf("IS NULL should bind no params, got %v", p.Params())
	}
}

func TestCompileEmptyMap(t *testing.T) {
	c := testCompiler(t)
	p, err := c.Compile(map[string]any{}, predicate.OpAnd)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if !p.IsEmpty() {
		t.Errorf("empty map should compile to nothing, got %q", p.Text())
	}
}

// -----------------------------------------------------------------------------
// Array specifications
// -----------------------------------------------------------------------------

func TestCompileExplicitOr(t *testing.T) {
	c := testCompiler(t)
	spec := []any{"OR", map[string]any{"$type": "A"}, map[string]any{"$type": "B"}}

	// The explicit operator wins regardless of the caller's default.
	for _, defaultOp := range []predicate.Operator{predicate.OpAnd, predicate.OpOr} {
		p, err := c.Compile(spec, defaultOp)
		if err != nil {
			t.Fatalf("Compile error: %v", err)
		}
		want := "(type = $1) OR (type = $2)"
		if p.Text() != want {
			t.Errorf("default %q: Text() = %q, want %q", defaultOp, p.Text(), want)
		}
		if got := p.Params(); !reflect.DeepEqual(got, []any{"A", "B"}) {
			t.Errorf("Params() = %v", got)
		}
	}
}

func TestCompileImplicitAnd(t *testing.T) {
	c := testCompiler(t)
	spec := []any{map[string]any{"$type": "A"}, map[string]any{"age": 3}}

	p, err := c.Compile(spec, predicate.OpAnd)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	want := "type = $1 AND (content->>'age')::numeric = $2"
	if p.Text() != want {
		t.Errorf("Text() = %q, want %q", p.Text(), want)
	}
}

func TestCompileNestedCombinators(t *testing.T) {
	c := testCompiler(t)
	spec := []any{
		"AND",
		map[string]any{"$type": "Task"},
		[]any{"OR", map[string]any{"done": true}, map[string]any{"age": 1}},
	}

	p, err := c.Compile(spec, predicate.OpAnd)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}

	want := "type = $1 AND (((content->>'done')::boolean = $2) OR ((content->>'age')::numeric = $3))"
	if p.Text() != want {
		t.Errorf("Text() = %q, want %q", p.Text(), want)
	}
	if got, wantN := predicate.PlaceholderCount(p.Text()), len(p.Params()); got != wantN {
		t.Errorf("placeholder count %d != param count %d", got, wantN)
	}
}

func TestCompileRawScalar(t *testing.T) {
	c := testCompiler(t)
	p, err := c.Compile([]any{"deleted IS NULL", map[string]any{"$type": "A"}}, predicate.OpAnd)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}

	want := "deleted IS NULL AND type = $1"
	if p.Text() != want {
		t.Errorf("Text() = %q, want %q", p.Text(), want)
	}
}

func TestCompileDeterminism(t *testing.T) {
	c := testCompiler(t)
	spec := []any{
		"OR",
		map[string]any{"age": 10, "name": "bob", "done": true},
		map[string]any{"$creator": "alice"},
	}

	first, err := c.Compile(spec, predicate.OpAnd)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	second, err := c.Compile(spec, predicate.OpAnd)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}

	if first.Text() != second.Text() {
		t.Errorf("compilation not deterministic:\n%q\n%q", first.Text(), second.Text())
	}
	if !reflect.DeepEqual(first.Params(), second.Params()) {
		t.Errorf("params not deterministic: %v vs %v", first.Params(), second.Params())
	}
}

// -----------------------------------------------------------------------------
// Invalid specifications
// -----------------------------------------------------------------------------

func TestCompileInvalidSpecs(t *testing.T) {
	c := testCompiler(t)

	tests := []struct {
		name string
		spec any
	}{
		{"lone AND", []any{"AND"}},
		{"lone OR", []any{"OR"}},
		{"lone BIND", []any{"BIND"}},
		{"empty array", []any{}},
		{"number scalar", 42},
		{"bool scalar", true},
		{"documents comparison", map[string]any{"$documents": "x"}},
		{"placeholder-like path segment", []any{"AND", map[string]any{"aa": 1}, map[string]any{"x.$2": 2}}},
		{"array-literal path segment", map[string]any{"a,b": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Compile(tt.spec, predicate.OpAnd)
			if err == nil {
				t.Fatalf("Compile(%v) should fail", tt.spec)
			}
			code := nerr.GetErrorCode(err)
			if code != nerr.ErrInvalidPredicate && code != nerr.ErrInvalidKey {
				t.Errorf("unexpected code %q for %v", code, err)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// BIND specifications
// -----------------------------------------------------------------------------

func TestCompileBind(t *testing.T) {
	c := testCompiler(t)
	spec := []any{"BIND", "age", "overlaps", 5, 10}

	p, err := c.Compile(spec, predicate.OpAnd)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}

	want := "nopg_call(ARRAY[content->'age'], $1::jsonb, $2::jsonb)::boolean"
	if p.Text() != want {
		t.Errorf("Text() = %q, want %q", p.Text(), want)
	}

	params := p.Params()
	if len(params) != 2 {
		t.Fatalf("Params() = %v, want function blob and args blob", params)
	}
	if params[0] != `{"name":"overlaps"}` {
		t.Errorf("function blob = %v", params[0])
	}
	if params[1] != `[5,10]` {
		t.Errorf("args blob = %v", params[1])
	}
}

func TestCompileBindTimestampEpoch(t *testing.T) {
	c := testCompiler(t)
	spec := []any{"BIND", "$created", "overlaps", 1000}

	p, err := c.Compile(spec, predicate.OpAnd)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if !strings.Contains(p.Text(), "extract(epoch from created) * 1000") {
		t.Errorf("timestamp BIND operand should render as epoch, got %q", p.Text())
	}
}

func TestCompileBindReturnType(t *testing.T) {
	c := testCompiler(t)

	// Registered default return type.
	p, err := c.Compile([]any{"BIND", "distance", 1}, predicate.OpAnd)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if !strings.HasSuffix(p.Text(), "::numeric") {
		t.Errorf("want registered numeric return, got %q", p.Text())
	}

	// Explicit override in the operator token.
	p, err = c.Compile([]any{"BIND:text", "overlaps"}, predicate.OpAnd)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if !strings.HasSuffix(p.Text(), "::text") {
		t.Errorf("want text return, got %q", p.Text())
	}
}

func TestCompileBindNoKeys(t *testing.T) {
	c := testCompiler(t)
	p, err := c.Compile([]any{"BIND", "overlaps", "a", "b"}, predicate.OpAnd)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if !strings.Contains(p.Text(), "ARRAY[]::text[]") {
		t.Errorf("keyless BIND should emit an empty typed array, got %q", p.Text())
	}
	if p.Params()[1] != `["a","b"]` {
		t.Errorf("args blob = %v", p.Params()[1])
	}
}

func TestCompileBindUnknownFunction(t *testing.T) {
	c := testCompiler(t)
	_, err := c.Compile([]any{"BIND", "age", "overlapz", 1}, predicate.OpAnd)
	if !nerr.Is(err, nerr.ErrInvalidPredicate) {
		t.Fatalf("want ErrInvalidPredicate, got %v", err)
	}
	if !strings.Contains(err.Error(), "did you mean 'overlaps'?") {
		t.Errorf("error should carry a suggestion: %v", err)
	}
}

func TestCompileBindJoined(t *testing.T) {
	// BIND joined with a map predicate must renumber the blob placeholders.
	c := testCompiler(t)
	spec := []any{
		"AND",
		map[string]any{"$type": "Task"},
		[]any{"BIND", "age", "overlaps", 5},
	}

	p, err := c.Compile(spec, predicate.OpAnd)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}

	want := "type = $1 AND nopg_call(ARRAY[content->'age'], $2::jsonb, $3::jsonb)::boolean"
	if p.Text() != want {
		t.Errorf("Text() = %q, want %q", p.Text(), want)
	}
	if len(p.Params()) != 3 {
		t.Errorf("Params() = %v", p.Params())
	}
}

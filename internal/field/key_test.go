package field

import (
	"reflect"
	"testing"

	"github.com/norjs/nopg/internal/nerr"
)

// -----------------------------------------------------------------------------
// Parse
// -----------------------------------------------------------------------------

func TestParseColumnKeys(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"$id", "id"},
		{"$type", "type"},
		{"$created", "created"},
		{"$modified", "modified"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			key, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.raw, err)
			}
			if key.Kind != KindColumn {
				t.Errorf("Kind = %d, want KindColumn", key.Kind)
			}
			if key.Column != tt.want {
				t.Errorf("Column = %q, want %q", key.Column, tt.want)
			}
		})
	}
}

func TestParsePathKeys(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"name", []string{"name"}},
		{"address.city", []string{"address", "city"}},
		{"a.b.c", []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			key, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.raw, err)
			}
			if key.Kind != KindPath {
				t.Errorf("Kind = %d, want KindPath", key.Kind)
			}
			if !reflect.DeepEqual(key.Path, tt.want) {
				t.Errorf("Path = %v, want %v", key.Path, tt.want)
			}
		})
	}
}

func TestParseDocumentsKey(t *testing.T) {
	key, err := Parse("$documents")
	if err != nil {
		t.Fatalf("Parse($documents) error: %v", err)
	}
	if key.Kind != KindDocuments {
		t.Fatalf("Kind = %d, want KindDocuments", key.Kind)
	}
	if key.Relation == nil || key.Relation.Prop != "*" {
		t.Errorf("bare $documents should parse to the wildcard relation, got %+v", key.Relation)
	}

	key, err = Parse("$documents.User#owner|name,email")
	if err != nil {
		t.Fatalf("Parse relation error: %v", err)
	}
	if key.Relation.Type != "User" || key.Relation.Prop != "owner" {
		t.Errorf("Relation = %+v", key.Relation)
	}
}

func TestParseInvalidKeys(t *testing.T) {
	tests := []string{
		"",
		"$",
		"$*",
		"a..b",
		".leading",
		"trailing.",
		"x.$2",
		"a.b{c}",
		"a'b",
		"x,y",
		"a b",
	}

	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			_, err := Parse(raw)
			if !nerr.Is(err, nerr.ErrInvalidKey) {
				t.Errorf("Parse(%q) = %v, want ErrInvalidKey", raw, err)
			}
		})
	}
}

func TestParseSegmentCharacterSet(t *testing.T) {
	// Underscores, hyphens, digits, and non-ASCII letters are all legal
	// JSON property names and must survive.
	key, err := Parse("snake_case.kebab-case.f2.sivumäärä")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(key.Path) != 4 {
		t.Errorf("Path = %v", key.Path)
	}
}

// -----------------------------------------------------------------------------
// ParseOrdering
// -----------------------------------------------------------------------------

func TestParseOrdering(t *testing.T) {
	tests := []struct {
		raw      string
		wantRaw  string
		wantDesc bool
		wantCast CastKind
	}{
		{"age", "age", false, CastUnspecified},
		{"-age", "age", true, CastUnspecified},
		{"age:numeric", "age", false, CastNumeric},
		{"-price:numeric", "price", true, CastNumeric},
		{"$created", "$created", false, CastUnspecified},
		{"-$modified", "$modified", true, CastUnspecified},
		{"done:boolean", "done", false, CastBoolean},
		{"name:text", "name", false, CastText},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			key, err := ParseOrdering(tt.raw)
			if err != nil {
				t.Fatalf("ParseOrdering(%q) error: %v", tt.raw, err)
			}
			if key.Raw != tt.wantRaw {
				t.Errorf("Raw = %q, want %q", key.Raw, tt.wantRaw)
			}
			if key.Desc != tt.wantDesc {
				t.Errorf("Desc = %v, want %v", key.Desc, tt.wantDesc)
			}
			if key.Cast != tt.wantCast {
				t.Errorf("Cast = %v, want %v", key.Cast, tt.wantCast)
			}
		})
	}
}

func TestParseOrderingUnknownCast(t *testing.T) {
	_, err := ParseOrdering("age:bignum")
	if !nerr.Is(err, nerr.ErrInvalidKey) {
		t.Errorf("want ErrInvalidKey, got %v", err)
	}
}

func TestIsTimestamp(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"$created", true},
		{"$modified", true},
		{"$id", false},
		{"created", false}, // path key, not the reserved column
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			key, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse error: %v", err)
			}
			if got := key.IsTimestamp(); got != tt.want {
				t.Errorf("IsTimestamp() = %v, want %v", got, tt.want)
			}
		})
	}
}

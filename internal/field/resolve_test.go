package field

import (
	"strings"
	"testing"

	"github.com/norjs/nopg/internal/entity"
	"github.com/norjs/nopg/internal/nerr"
)

// -----------------------------------------------------------------------------
// Column resolution
// -----------------------------------------------------------------------------

func TestResolveColumn(t *testing.T) {
	tests := []struct {
		raw  string
		opts ResolveOpts
		want string
	}{
		{"$id", ResolveOpts{}, "id"},
		{"$type", ResolveOpts{}, "type"},
		{"$created", ResolveOpts{}, "created"},
		{"$created", ResolveOpts{Epoch: true}, "extract(epoch from created) * 1000"},
		{"$modified", ResolveOpts{Epoch: true}, "extract(epoch from modified) * 1000"},
		{"$id", ResolveOpts{Epoch: true}, "id"}, // epoch only applies to timestamps
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			p, err := ResolveString(entity.Document, tt.raw, tt.opts)
			if err != nil {
				t.Fatalf("ResolveString(%q) error: %v", tt.raw, err)
			}
			if p.Text() != tt.want {
				t.Errorf("Text() = %q, want %q", p.Text(), tt.want)
			}
			if len(p.Params()) != 0 {
				t.Errorf("column resolution should bind no params, got %v", p.Params())
			}
		})
	}
}

func TestResolveUnknownColumn(t *testing.T) {
	_, err := ResolveString(entity.Document, "$nonexistent", ResolveOpts{})
	if !nerr.Is(err, nerr.ErrInvalidKey) {
		t.Fatalf("want ErrInvalidKey, got %v", err)
	}
}

func TestResolveColumnTypo(t *testing.T) {
	_, err := ResolveString(entity.Document, "$creatd", ResolveOpts{})
	if !nerr.Is(err, nerr.ErrInvalidKey) {
		t.Fatalf("want ErrInvalidKey, got %v", err)
	}
	if !strings.Contains(err.Error(), "did you mean '$created'?") {
		t.Errorf("error should suggest $created: %v", err)
	}
}

// -----------------------------------------------------------------------------
// Path resolution
// -----------------------------------------------------------------------------

func TestResolvePath(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"name", "content->'name'"},
		{"address.city", "content#>'{address,city}'"},
		{"a.b.c", "content#>'{a,b,c}'"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			p, err := ResolveString(entity.Document, tt.raw, ResolveOpts{})
			if err != nil {
				t.Fatalf("ResolveString(%q) error: %v", tt.raw, err)
			}
			if p.Text() != tt.want {
				t.Errorf("Text() = %q, want %q", p.Text(), tt.want)
			}
			if p.Meta().DataContainer != "content" {
				t.Errorf("Meta().DataContainer = %q, want content", p.Meta().DataContainer)
			}
			if p.Meta().Key != tt.raw {
				t.Errorf("Meta().Key = %q, want %q", p.Meta().Key, tt.raw)
			}
		})
	}
}

func TestResolvePathDeterminism(t *testing.T) {
	// The same key must yield the same fragment regardless of purpose.
	first, err := ResolveString(entity.Document, "address.city", ResolveOpts{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := ResolveString(entity.Document, "address.city", ResolveOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if first.Text() != second.Text() {
		t.Errorf("resolution not deterministic: %q vs %q", first.Text(), second.Text())
	}
}

func TestResolvePathRejectsUnsafeSegments(t *testing.T) {
	// Path segments land inside quoted SQL literals, so anything that could
	// read as a placeholder, quote, or array-literal syntax must be rejected
	// before resolution.
	keys := []string{"it's", "x.$2", "a.b{c}", "a,b", "x.y z"}

	for _, raw := range keys {
		t.Run(raw, func(t *testing.T) {
			_, err := ResolveString(entity.Document, raw, ResolveOpts{})
			if !nerr.Is(err, nerr.ErrInvalidKey) {
				t.Errorf("ResolveString(%q) = %v, want ErrInvalidKey", raw, err)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Relation resolution
// -----------------------------------------------------------------------------

func TestResolveDocuments(t *testing.T) {
	p, err := ResolveString(entity.Document, "$documents.User#owner|name,email", ResolveOpts{})
	if err != nil {
		t.Fatalf("ResolveString error: %v", err)
	}

	want := "nopg_documents(row_to_json(documents.*), $1::jsonb)"
	if p.Text() != want {
		t.Errorf("Text() = %q, want %q", p.Text(), want)
	}

	params := p.Params()
	if len(params) != 1 {
		t.Fatalf("Params() = %v, want exactly the relation blob", params)
	}
	spec, ok := params[0].(string)
	if !ok || !strings.Contains(spec, `"prop":"owner"`) {
		t.Errorf("param = %v, want relation spec JSON", params[0])
	}
}

func TestResolveDocumentsMalformed(t *testing.T) {
	_, err := ResolveString(entity.Document, "$documents.#bad", ResolveOpts{})
	if !nerr.Is(err, nerr.ErrInvalidKey) {
		t.Errorf("want ErrInvalidKey, got %v", err)
	}
}

// -----------------------------------------------------------------------------
// KnownKeys
// -----------------------------------------------------------------------------

func TestKnownKeys(t *testing.T) {
	keys := KnownKeys(entity.Document)

	wantSome := []string{"$id", "$type", "$content", "$created", "$documents"}
	for _, w := range wantSome {
		found := false
		for _, k := range keys {
			if k == w {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("KnownKeys missing %q: %v", w, keys)
		}
	}
}

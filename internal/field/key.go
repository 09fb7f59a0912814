// Package field resolves logical field keys to SQL fragments and decides
// the relational cast for each field. Keys are parsed once into an explicit
// representation and reused; resolution is pure and deterministic, so the
// same (entity, key) pair always yields the same fragment and cast.
package field

import (
	"strings"
	"unicode"

	"github.com/norjs/nopg/internal/nerr"
)

// Kind classifies a parsed field key.
type Kind int

const (
	// KindColumn maps 1:1 to a top-level relational column ($column).
	KindColumn Kind = iota
	// KindPath maps into the entity's JSONB data container (plain.dotted.path).
	KindPath
	// KindDocuments is the reserved relation-fetch key ($documents).
	KindDocuments
)

// Marker prefixes a key that refers to a top-level column rather than the
// data container.
const Marker = "$"

// Reserved keys.
const (
	KeyAll       = "$*"
	KeyDocuments = "$documents"
	KeyCreated   = "$created"
	KeyModified  = "$modified"
)

// Key is the pre-parsed representation of a logical field name. Parse a key
// once and reuse it; never branch on raw string prefixes elsewhere.
type Key struct {
	Raw      string    // Original key text, without order decorations
	Kind     Kind      // Column, path, or relation
	Column   string    // Column name for KindColumn
	Path     []string  // Dotted path segments for KindPath
	Relation *Relation // Parsed relation expression for KindDocuments
	Desc     bool      // Order keys: leading '-' requests descending order
	Cast     CastKind  // Order keys: explicit :cast suffix, CastUnspecified if absent
}

// Parse parses a logical field key.
// Accepted forms: "$column", "plain.dotted.path", "$documents[.expr]".
func Parse(raw string) (*Key, error) {
	return parse(raw, false)
}

// ParseOrdering parses an order/group key, which additionally accepts a
// leading '-' for descending order and a ':cast' suffix overriding the
// declared cast.
func ParseOrdering(raw string) (*Key, error) {
	return parse(raw, true)
}

func parse(raw string, ordering bool) (*Key, error) {
	if raw == "" {
		return nil, nerr.New(nerr.ErrInvalidKey, "empty field key")
	}

	key := &Key{Cast: CastUnspecified}

	s := raw
	if ordering {
		if strings.HasPrefix(s, "-") {
			key.Desc = true
			s = s[1:]
		}
		if i := strings.LastIndex(s, ":"); i >= 0 {
			cast, ok := castByName(s[i+1:])
			if !ok {
				return nil, nerr.Newf(nerr.ErrInvalidKey, "unknown cast %q in order key", s[i+1:]).
					WithKey(raw).
					WithHelp("valid casts are numeric, boolean, text, direct")
			}
			key.Cast = cast
			s = s[:i]
		}
	}
	if s == "" {
		return nil, nerr.New(nerr.ErrInvalidKey, "empty field key").WithKey(raw)
	}
	key.Raw = s

	// Relation key: "$documents" alone or "$documents.<relation expression>".
	if s == KeyDocuments || strings.HasPrefix(s, KeyDocuments+".") {
		rel, err := ParseRelation(strings.TrimPrefix(strings.TrimPrefix(s, KeyDocuments), "."))
		if err != nil {
			return nil, err
		}
		key.Kind = KindDocuments
		key.Relation = rel
		return key, nil
	}

	if strings.HasPrefix(s, Marker) {
		name := strings.TrimPrefix(s, Marker)
		if name == "" || name == "*" {
			return nil, nerr.Newf(nerr.ErrInvalidKey, "key %q is not a field reference", s).WithKey(raw)
		}
		key.Kind = KindColumn
		key.Column = name
		return key, nil
	}

	segments := strings.Split(s, ".")
	for _, seg := range segments {
		if seg == "" {
			return nil, nerr.Newf(nerr.ErrInvalidKey, "malformed dotted path %q", s).WithKey(raw)
		}
		if !validSegment(seg) {
			return nil, nerr.Newf(nerr.ErrInvalidKey, "path segment %q contains unsupported characters", seg).
				WithKey(raw).
				WithHelp("path segments may contain letters, digits, '_' and '-'")
		}
	}
	key.Kind = KindPath
	key.Path = segments
	return key, nil
}

// validSegment restricts path segments to characters safe to embed in the
// quoted path literals the resolver and index DDL produce. Anything that
// could read as a bind placeholder, a quote, or JSON array-literal syntax
// is rejected here, once, instead of escaped at every render site.
func validSegment(seg string) bool {
	for _, r := range seg {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' {
			return false
		}
	}
	return true
}

// IsTimestamp reports whether the key names one of the reserved timestamp
// columns, which support epoch rendering.
func (k *Key) IsTimestamp() bool {
	return k.Kind == KindColumn && (k.Column == "created" || k.Column == "modified")
}

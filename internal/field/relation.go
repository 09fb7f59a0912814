package field

import (
	"encoding/json"
	"strings"

	"github.com/norjs/nopg/internal/nerr"
)

// Relation is the parsed form of a relation expression:
//
//	[Type#]property[{filter}]|field1,field2
//
// It resolves to a {type, prop, fields} triple consumed by the external
// relation-fetch procedure. The bare $documents key parses to the wildcard
// relation, fetching documents through every property.
type Relation struct {
	Type   string   // Optional target document type
	Prop   string   // Relation property; "*" for the wildcard relation
	Filter string   // Optional raw filter blob from {…}, unparsed here
	Fields []string // Optional projected fields after |
}

// relationSpec is the wire form serialized into the statement's bind
// parameter. Field order is fixed by the struct for deterministic output.
type relationSpec struct {
	Type   string   `json:"type,omitempty"`
	Prop   string   `json:"prop"`
	Filter string   `json:"filter,omitempty"`
	Fields []string `json:"fields,omitempty"`
}

// SpecJSON serializes the relation to its JSON wire form.
func (r *Relation) SpecJSON() (string, error) {
	data, err := json.Marshal(relationSpec{
		Type:   r.Type,
		Prop:   r.Prop,
		Filter: r.Filter,
		Fields: r.Fields,
	})
	if err != nil {
		return "", nerr.Wrap(nerr.ErrInvalidKey, err, "failed to serialize relation expression")
	}
	return string(data), nil
}

// ParseRelation parses the compact relation-expression mini-grammar.
// An empty expression yields the wildcard relation.
func ParseRelation(expr string) (*Relation, error) {
	if expr == "" {
		return &Relation{Prop: "*"}, nil
	}

	rel := &Relation{}
	s := expr

	// Optional projected field list after the last unbraced '|'.
	if i := strings.LastIndex(s, "|"); i >= 0 {
		list := s[i+1:]
		s = s[:i]
		for _, f := range strings.Split(list, ",") {
			f = strings.TrimSpace(f)
			if f == "" {
				return nil, malformedRelation(expr, "empty field name in projection list")
			}
			rel.Fields = append(rel.Fields, f)
		}
	}

	// Optional {filter} suffix. Braces must balance and close the expression.
	if i := strings.Index(s, "{"); i >= 0 {
		if !strings.HasSuffix(s, "}") {
			return nil, malformedRelation(expr, "unbalanced filter braces")
		}
		rel.Filter = s[i+1 : len(s)-1]
		if strings.ContainsAny(rel.Filter, "{}") {
			return nil, malformedRelation(expr, "nested braces in filter")
		}
		s = s[:i]
	}

	// Optional Type# prefix.
	if i := strings.Index(s, "#"); i >= 0 {
		rel.Type = s[:i]
		s = s[i+1:]
		if rel.Type == "" || !isIdent(rel.Type) {
			return nil, malformedRelation(expr, "invalid type name before #")
		}
	}

	if s == "" || !isIdent(s) {
		return nil, malformedRelation(expr, "missing or invalid relation property")
	}
	rel.Prop = s

	return rel, nil
}

func malformedRelation(expr, reason string) *nerr.Error {
	return nerr.Newf(nerr.ErrInvalidKey, "malformed relation expression: %s", reason).
		WithKey(KeyDocuments + "." + expr).
		WithHelp("expected [Type#]property[{filter}]|field1,field2")
}

// isIdent reports whether s is a plain identifier (letters, digits,
// underscores, not starting with a digit).
func isIdent(s string) bool {
	for i, r := range s {
		switch {
		case r == '_',
			r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return len(s) > 0
}

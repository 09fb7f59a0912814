package field

import (
	"strings"

	"github.com/norjs/nopg/internal/entity"
)

// CastKind is the relational cast applied to a resolved field expression.
// The same kind is used consistently by comparison, ordering, and indexing.
type CastKind int

const (
	// CastUnspecified means no explicit cast was requested; resolution
	// falls back to the declared field schema.
	CastUnspecified CastKind = iota
	// CastDirect uses the expression as-is (top-level columns).
	CastDirect
	// CastNumeric compares and sorts the field numerically.
	CastNumeric
	// CastBoolean compares the field as a boolean.
	CastBoolean
	// CastText compares the field as text (the default for JSON fields).
	CastText
)

// String returns the cast name as used in :cast order-key suffixes.
func (c CastKind) String() string {
	switch c {
	case CastDirect:
		return "direct"
	case CastNumeric:
		return "numeric"
	case CastBoolean:
		return "boolean"
	case CastText:
		return "text"
	default:
		return "unspecified"
	}
}

// castByName maps a :cast suffix to its kind.
func castByName(name string) (CastKind, bool) {
	switch name {
	case "direct":
		return CastDirect, true
	case "numeric":
		return CastNumeric, true
	case "boolean":
		return CastBoolean, true
	case "text":
		return CastText, true
	default:
		return CastUnspecified, false
	}
}

// CastFor decides the cast for a parsed key against a declared field schema.
// Reserved table columns are always direct. Plain fields consult the type's
// declared schema entry: number maps to numeric, boolean to boolean, and
// anything else (or an undeclared field) to text.
func CastFor(t *entity.Type, schema *entity.Schema, key *Key) CastKind {
	if key.Cast != CastUnspecified {
		return key.Cast
	}

	switch key.Kind {
	case KindColumn, KindDocuments:
		return CastDirect
	}

	switch schema.FieldKind(strings.Join(key.Path, ".")) {
	case "number", "integer":
		return CastNumeric
	case "boolean":
		return CastBoolean
	default:
		return CastText
	}
}

// Apply wraps expr in the minimal form required for the cast.
//
// JSON-navigated expressions are first rewritten to their text-returning
// operator (->> / #>>) rather than suffixed with ::text; boolean and numeric
// casts collapse through that text intermediate so loosely-typed stored
// values cast cleanly. A ::text suffix is never appended when one is already
// present.
func Apply(kind CastKind, expr string) string {
	switch kind {
	case CastNumeric:
		return "(" + textForm(expr) + ")::numeric"
	case CastBoolean:
		return "(" + textForm(expr) + ")::boolean"
	case CastText:
		return textForm(expr)
	default:
		return expr
	}
}

// textForm rewrites expr into its text-returning form.
func textForm(expr string) string {
	// Already navigated to text or already cast.
	if strings.Contains(expr, "->>") || strings.Contains(expr, "#>>") || strings.HasSuffix(expr, "::text") {
		return expr
	}
	if i := strings.LastIndex(expr, "#>"); i >= 0 {
		return expr[:i] + "#>>" + expr[i+2:]
	}
	if i := strings.LastIndex(expr, "->"); i >= 0 {
		return expr[:i] + "->>" + expr[i+2:]
	}
	return expr + "::text"
}

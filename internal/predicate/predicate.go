// Package predicate provides the immutable SQL-fragment value that the
// query compiler is built from: a piece of SQL text, its ordered bind
// parameters, and metadata about the field it was derived from.
//
// The invariant maintained everywhere: the text contains exactly one $n
// placeholder per parameter, numbered contiguously from 1 in parameter
// order. Combining predicates produces a new value with every placeholder
// renumbered left-to-right; predicates are never mutated in place.
package predicate

import (
	"strconv"
	"strings"
)

// Operator is a boolean combinator joining predicates.
type Operator string

const (
	// OpNone marks a leaf predicate (no combinator).
	OpNone Operator = ""
	// OpAnd joins predicates conjunctively.
	OpAnd Operator = "AND"
	// OpOr joins predicates disjunctively.
	OpOr Operator = "OR"
)

// Meta carries the source information of a predicate fragment.
type Meta struct {
	DataContainer string // JSONB column the fragment navigates into, if any
	Key           string // Logical field key the fragment was resolved from
}

// Predicate is an immutable SQL fragment with its bind parameters.
// The zero value is the empty predicate, recognized by callers as
// "no condition".
type Predicate struct {
	text   string
	params []any
	meta   Meta
	op     Operator
}

// New creates a leaf predicate from SQL text and its bind parameters.
// The text must number its placeholders $1..$len(params).
func New(text string, params ...any) Predicate {
	return Predicate{text: text, params: params}
}

// NewMeta creates a leaf predicate carrying field metadata.
func NewMeta(text string, meta Meta, params ...any) Predicate {
	return Predicate{text: text, params: params, meta: meta}
}

// Text returns the SQL fragment.
func (p Predicate) Text() string {
	return p.text
}

// Params returns a copy of the ordered bind parameters.
func (p Predicate) Params() []any {
	if len(p.params) == 0 {
		return nil
	}
	out := make([]any, len(p.params))
	copy(out, p.params)
	return out
}

// Meta returns the field metadata of the predicate.
func (p Predicate) Meta() Meta {
	return p.meta
}

// Operator returns the combinator the predicate was joined with, or OpNone
// for a leaf.
func (p Predicate) Operator() Operator {
	return p.op
}

// IsEmpty reports whether the predicate carries no condition.
func (p Predicate) IsEmpty() bool {
	return p.text == ""
}

// Join combines predicates with the given operator into a new predicate,
// renumbering every placeholder left-to-right so the result is contiguous
// from $1. Empty predicates are dropped. Join of nothing yields the empty
// predicate; join of one returns that predicate unchanged.
//
// Operands of an OR join are always parenthesized; operands of an AND join
// are parenthesized only when they themselves are OR combinations, the one
// case where precedence would otherwise change meaning.
func Join(preds []Predicate, op Operator) Predicate {
	kept := preds[:0:0]
	for _, p := range preds {
		if !p.IsEmpty() {
			kept = append(kept, p)
		}
	}

	switch len(kept) {
	case 0:
		return Predicate{}
	case 1:
		return kept[0]
	}

	var b strings.Builder
	var params []any

	for i, p := range kept {
		if i > 0 {
			b.WriteString(" ")
			b.WriteString(string(op))
			b.WriteString(" ")
		}

		text := shift(p.text, len(params))
		if wrapOperand(p, op) {
			b.WriteString("(")
			b.WriteString(text)
			b.WriteString(")")
		} else {
			b.WriteString(text)
		}
		params = append(params, p.params...)
	}

	return Predicate{text: b.String(), params: params, op: op}
}

// Concat splices predicates together with a plain separator, renumbering
// placeholders left-to-right. Unlike Join it applies no boolean semantics,
// no wrapping, and keeps empty-text operands only out of the text, making it
// suitable for assembling field lists and full statements.
func Concat(sep string, preds ...Predicate) Predicate {
	var b strings.Builder
	var params []any

	wrote := false
	for _, p := range preds {
		if p.IsEmpty() {
			continue
		}
		if wrote && sep != "" {
			b.WriteString(sep)
		}
		b.WriteString(shift(p.text, len(params)))
		params = append(params, p.params...)
		wrote = true
	}

	return Predicate{text: b.String(), params: params}
}

// wrapOperand decides whether an operand needs parentheses under the join
// operator.
func wrapOperand(p Predicate, op Operator) bool {
	if op == OpOr {
		return true
	}
	return p.op == OpOr
}

// shift renumbers every $n placeholder in text by the given offset.
// Placeholders within one fragment are locally contiguous from $1, so an
// offset shift preserves global contiguity. Single-quoted spans are copied
// verbatim: a $-digit sequence inside a string literal is data, not a
// placeholder.
func shift(text string, offset int) string {
	if offset == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text) + 4)

	quoted := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '\'' {
			quoted = !quoted
			b.WriteByte(c)
			continue
		}
		if quoted || c != '$' {
			b.WriteByte(c)
			continue
		}

		j := i + 1
		for j < len(text) && text[j] >= '0' && text[j] <= '9' {
			j++
		}
		if j == i+1 {
			// Bare dollar sign, not a placeholder.
			b.WriteByte(c)
			continue
		}

		n, _ := strconv.Atoi(text[i+1 : j])
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n + offset))
		i = j - 1
	}

	return b.String()
}

// PlaceholderCount returns the number of $n placeholders in the text,
// skipping single-quoted spans the same way shift does. Used by tests to
// assert the text/params invariant.
func PlaceholderCount(text string) int {
	count := 0
	quoted := false
	for i := 0; i < len(text); i++ {
		if text[i] == '\'' {
			quoted = !quoted
			continue
		}
		if quoted || text[i] != '$' {
			continue
		}
		j := i + 1
		for j < len(text) && text[j] >= '0' && text[j] <= '9' {
			j++
		}
		if j > i+1 {
			count++
			i = j - 1
		}
	}
	return count
}

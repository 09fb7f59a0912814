// Package filter parses nested filter specifications into a tagged node
// tree and compiles that tree into a single parameterized predicate.
//
// The external specification grammar:
//
//	Spec      := nil | Array | Map | Scalar
//	Array     := [Operator?, Spec...]            -- default Operator = AND
//	Operator  := "AND" | "OR" | "BIND" | "BIND:<returnType>"
//	Map       := { key: literalValue, ... }      -- joined with caller default op
//	BindArray := [FieldKey..., Function, Arg...]
//
// Anything that does not match a known shape is rejected at parse time
// rather than branched on dynamically.
package filter

import (
	"sort"
	"strings"

	"github.com/norjs/nopg/internal/nerr"
	"github.com/norjs/nopg/internal/predicate"
)

// Operator tokens accepted at the head of a combinator array.
const (
	tokenAnd        = "AND"
	tokenOr         = "OR"
	tokenBind       = "BIND"
	tokenBindPrefix = "BIND:"
)

// Node is one parsed filter-spec node.
type Node interface {
	node()
}

// EqualsNode is a key/value map: each entry compiles to an equality
// predicate, joined with the caller's default operator.
type EqualsNode struct {
	Entries []Entry
}

// Entry is one key/value pair of an EqualsNode. Entries are kept in sorted
// key order so compilation is deterministic.
type Entry struct {
	Key   string
	Value any
}

// CombineNode joins sub-specifications with an explicit boolean operator.
type CombineNode struct {
	Op    predicate.Operator
	Specs []Node
}

// BindNode invokes a registered predicate function over resolved field
// expressions and literal arguments.
type BindNode struct {
	ReturnType string // Empty means the function's registered default
	Keys       []string
	Function   string
	Args       []any
}

// RawNode is a pre-built SQL fragment with no parameters.
type RawNode struct {
	Text string
}

func (*EqualsNode) node()  {}
func (*CombineNode) node() {}
func (*BindNode) node()    {}
func (*RawNode) node()     {}

// ParseSpec parses a filter specification into its node tree. A nil spec
// parses to a nil node, meaning no filter. The registry is needed to spot
// the function reference inside a BIND array.
func ParseSpec(spec any, reg *Registry) (Node, error) {
	switch v := spec.(type) {
	case nil:
		return nil, nil

	case []any:
		return parseArray(v, reg)

	case map[string]any:
		return parseMap(v)

	case string:
		if v == "" {
			return nil, nerr.New(nerr.ErrInvalidPredicate, "empty raw predicate fragment")
		}
		return &RawNode{Text: v}, nil

	default:
		return nil, nerr.Newf(nerr.ErrInvalidPredicate, "unsupported filter specification shape %T", spec)
	}
}

func parseArray(arr []any, reg *Registry) (Node, error) {
	op := predicate.OpAnd
	rest := arr
	explicit := false

	if len(arr) > 0 {
		if token, ok := arr[0].(string); ok {
			switch {
			case token == tokenAnd:
				op, rest, explicit = predicate.OpAnd, arr[1:], true
			case token == tokenOr:
				op, rest, explicit = predicate.OpOr, arr[1:], true
			case token == tokenBind || strings.HasPrefix(token, tokenBindPrefix):
				return parseBind(token, arr[1:], reg)
			}
		}
	}

	if len(rest) == 0 {
		if explicit {
			return nil, nerr.Newf(nerr.ErrInvalidPredicate, "combinator %q has no operands", arr[0])
		}
		return nil, nerr.New(nerr.ErrInvalidPredicate, "empty filter array")
	}

	node := &CombineNode{Op: op}
	for _, el := range rest {
		sub, err := ParseSpec(el, reg)
		if err != nil {
			return nil, err
		}
		if sub != nil {
			node.Specs = append(node.Specs, sub)
		}
	}
	return node, nil
}

// parseBind splits a BIND array into field-path tokens, exactly one
// registered function reference, and trailing literal arguments. The first
// string matching a registered function name ends the key list.
func parseBind(token string, rest []any, reg *Registry) (Node, error) {
	node := &BindNode{}

	if ret, ok := strings.CutPrefix(token, tokenBindPrefix); ok {
		if !isIdent(ret) {
			return nil, nerr.Newf(nerr.ErrInvalidPredicate, "invalid BIND return type %q", ret)
		}
		node.ReturnType = ret
	}

	i := 0
	for ; i < len(rest); i++ {
		s, ok := rest[i].(string)
		if !ok {
			break
		}
		if _, registered := reg.Lookup(s); registered {
			node.Function = s
			i++
			break
		}
		node.Keys = append(node.Keys, s)
	}

	if node.Function == "" {
		err := nerr.New(nerr.ErrInvalidPredicate, "BIND array has no registered function reference")
		// A key-looking last token is usually a misspelled function name.
		if n := len(node.Keys); n > 0 {
			if help := nerr.SuggestSimilar(node.Keys[n-1], reg.Names()); help != "" {
				err.WithHelp(help)
			}
		}
		return nil, err
	}

	node.Args = append(node.Args, rest[i:]...)
	return node, nil
}

func parseMap(m map[string]any) (Node, error) {
	if len(m) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	node := &EqualsNode{Entries: make([]Entry, 0, len(m))}
	for _, k := range keys {
		node.Entries = append(node.Entries, Entry{Key: k, Value: m[k]})
	}
	return node, nil
}

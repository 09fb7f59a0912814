package filter

import (
	"encoding/json"
	"strings"

	"github.com/norjs/nopg/internal/entity"
	"github.com/norjs/nopg/internal/field"
	"github.com/norjs/nopg/internal/nerr"
	"github.com/norjs/nopg/internal/predicate"
)

// Compiler turns a filter specification into a single predicate for one
// entity. Compilation is a pure transformation: no I/O, no shared state,
// safe for concurrent use, and byte-identical output for identical input.
type Compiler struct {
	entity   *entity.Type
	schema   *entity.Schema
	registry *Registry
}

// NewCompiler creates a compiler for the given entity. The schema supplies
// declared field kinds for cast selection and may be nil, in which case
// every data-container field compares as text. The registry supplies the
// closed set of BIND predicate functions.
func NewCompiler(t *entity.Type, schema *entity.Schema, reg *Registry) *Compiler {
	if reg == nil {
		reg = NewRegistry()
	}
	return &Compiler{entity: t, schema: schema, registry: reg}
}

// Compile parses and compiles a filter specification. The default operator
// joins map entries and operator-less arrays; callers pass OpOr to request
// "match any" semantics. A nil specification compiles to the empty
// predicate.
func (c *Compiler) Compile(spec any, defaultOp predicate.Operator) (predicate.Predicate, error) {
	node, err := ParseSpec(spec, c.registry)
	if err != nil {
		return predicate.Predicate{}, err
	}
	return c.compileNode(node, defaultOp)
}

func (c *Compiler) compileNode(node Node, defaultOp predicate.Operator) (predicate.Predicate, error) {
	switch n := node.(type) {
	case nil:
		return predicate.Predicate{}, nil
	case *EqualsNode:
		return c.compileEquals(n, defaultOp)
	case *CombineNode:
		return c.compileCombine(n, defaultOp)
	case *BindNode:
		return c.compileBind(n)
	case *RawNode:
		return predicate.New(n.Text), nil
	default:
		return predicate.Predicate{}, nerr.Newf(nerr.ErrInvalidPredicate, "unsupported filter node %T", node)
	}
}

// compileEquals turns each map entry into an equality predicate against the
// cast-resolved field expression, joined with the default operator. A nil
// value compiles to IS NULL with no bind parameter.
func (c *Compiler) compileEquals(n *EqualsNode, defaultOp predicate.Operator) (predicate.Predicate, error) {
	preds := make([]predicate.Predicate, 0, len(n.Entries))

	for _, entry := range n.Entries {
		key, err := field.Parse(entry.Key)
		if err != nil {
			return predicate.Predicate{}, err
		}
		if key.Kind == field.KindDocuments {
			return predicate.Predicate{}, nerr.New(nerr.ErrInvalidKey, "$documents cannot be used in a comparison").
				WithKey(entry.Key)
		}

		resolved, err := field.Resolve(c.entity, key, field.ResolveOpts{})
		if err != nil {
			return predicate.Predicate{}, err
		}
		expr := field.Apply(field.CastFor(c.entity, c.schema, key), resolved.Text())

		if entry.Value == nil {
			preds = append(preds, predicate.NewMeta(expr+" IS NULL", resolved.Meta()))
			continue
		}
		preds = append(preds, predicate.NewMeta(expr+" = $1", resolved.Meta(), entry.Value))
	}

	return predicate.Join(preds, defaultOp), nil
}

func (c *Compiler) compileCombine(n *CombineNode, defaultOp predicate.Operator) (predicate.Predicate, error) {
	preds := make([]predicate.Predicate, 0, len(n.Specs))
	for _, sub := range n.Specs {
		p, err := c.compileNode(sub, defaultOp)
		if err != nil {
			return predicate.Predicate{}, err
		}
		preds = append(preds, p)
	}
	return predicate.Join(preds, n.Op), nil
}

// compileBind emits a call to the external function-dispatch procedure:
// the resolved column expressions, the serialized function reference, and
// the serialized literal arguments, cast to the requested return type.
// Timestamp keys resolve with the epoch option so results are directly
// comparable as numbers.
func (c *Compiler) compileBind(n *BindNode) (predicate.Predicate, error) {
	fn, ok := c.registry.Lookup(n.Function)
	if !ok {
		err := nerr.Newf(nerr.ErrInvalidPredicate, "unknown predicate function %q", n.Function)
		if help := nerr.SuggestSimilar(n.Function, c.registry.Names()); help != "" {
			err.WithHelp(help)
		}
		return predicate.Predicate{}, err
	}

	exprs := make([]string, 0, len(n.Keys))
	for _, raw := range n.Keys {
		key, err := field.Parse(raw)
		if err != nil {
			return predicate.Predicate{}, err
		}
		if key.Kind == field.KindDocuments {
			return predicate.Predicate{}, nerr.New(nerr.ErrInvalidPredicate, "$documents cannot be a BIND operand").
				WithKey(raw)
		}
		resolved, err := field.Resolve(c.entity, key, field.ResolveOpts{Epoch: true})
		if err != nil {
			return predicate.Predicate{}, err
		}
		exprs = append(exprs, resolved.Text())
	}

	fnBlob, err := json.Marshal(struct {
		Name string `json:"name"`
	}{Name: fn.Name})
	if err != nil {
		return predicate.Predicate{}, nerr.Wrap(nerr.ErrInvalidPredicate, err, "failed to serialize function reference")
	}

	args := n.Args
	if args == nil {
		args = []any{}
	}
	argBlob, err := json.Marshal(args)
	if err != nil {
		return predicate.Predicate{}, nerr.Wrap(nerr.ErrInvalidPredicate, err, "failed to serialize function arguments")
	}

	ret := n.ReturnType
	if ret == "" {
		ret = fn.ReturnType
	}

	var b strings.Builder
	b.WriteString("nopg_call(")
	if len(exprs) == 0 {
		b.WriteString("ARRAY[]::text[]")
	} else {
		b.WriteString("ARRAY[")
		b.WriteString(strings.Join(exprs, ", "))
		b.WriteString("]")
	}
	b.WriteString(", $1::jsonb, $2::jsonb)::")
	b.WriteString(ret)

	return predicate.New(b.String(), string(fnBlob), string(argBlob)), nil
}

// Package query assembles complete SQL statements for the document store:
// SELECT and COUNT statements from a filter specification plus traits, and
// INSERT/UPDATE statements from column value maps. Everything here is a pure
// transformation over the resolver and filter packages; the one exception is
// the schema source, consulted lazily when ordering, grouping, or explicit
// type-awareness needs declared field kinds.
package query

import (
	"context"
	"strings"

	"github.com/norjs/nopg/internal/entity"
	"github.com/norjs/nopg/internal/field"
	"github.com/norjs/nopg/internal/filter"
	"github.com/norjs/nopg/internal/nerr"
	"github.com/norjs/nopg/internal/predicate"
	"github.com/norjs/nopg/internal/strutil"
)

// SchemaSource supplies the declared field schema of a document type.
// Lookups may hit the database, so the builder calls it only when a trait
// actually needs field-type information.
type SchemaSource interface {
	TypeSchema(ctx context.Context, typeName string) (*entity.Schema, error)
}

// Builder compiles SELECT and COUNT statements. Safe for concurrent use.
type Builder struct {
	registry *filter.Registry
	schemas  SchemaSource
}

// NewBuilder creates a statement builder. The registry supplies BIND
// predicate functions and may be nil; schemas may be nil when no caller
// uses schema-dependent traits.
func NewBuilder(reg *filter.Registry, schemas SchemaSource) *Builder {
	if reg == nil {
		reg = filter.NewRegistry()
	}
	return &Builder{registry: reg, schemas: schemas}
}

// PrepareSelect compiles a SELECT statement for the entity, restricted to
// the given discriminator types (OR-joined when multiple), filtered by the
// filter specification, shaped by the traits.
func (b *Builder) PrepareSelect(ctx context.Context, t *entity.Type, docTypes []string, spec any, traits Traits) (*Statement, error) {
	n, err := traits.normalize()
	if err != nil {
		return nil, err
	}
	return b.prepare(ctx, t, docTypes, spec, n)
}

// PrepareCount is PrepareSelect with the count trait forced on.
func (b *Builder) PrepareCount(ctx context.Context, t *entity.Type, docTypes []string, spec any, traits Traits) (*Statement, error) {
	traits.Count = true
	return b.PrepareSelect(ctx, t, docTypes, spec, traits)
}

func (b *Builder) prepare(ctx context.Context, t *entity.Type, docTypes []string, spec any, n *normalTraits) (*Statement, error) {
	discr, err := discriminatorCondition(t, docTypes)
	if err != nil {
		return nil, err
	}

	// The schema round trip is skipped on the hot path: the discriminator
	// name alone restricts rows, and undeclared fields compare as text.
	var schema *entity.Schema
	if n.needsSchema() && b.schemas != nil && len(docTypes) > 0 {
		if schema, err = b.schemas.TypeSchema(ctx, docTypes[0]); err != nil {
			return nil, err
		}
	}

	compiler := filter.NewCompiler(t, schema, b.registry)
	where, err := compiler.Compile(spec, n.op)
	if err != nil {
		return nil, err
	}
	where = predicate.Join([]predicate.Predicate{discr, where}, predicate.OpAnd)

	fields, fieldMap, err := fieldList(t, n)
	if err != nil {
		return nil, err
	}

	group, err := keyClause(t, schema, n.group, false)
	if err != nil {
		return nil, err
	}
	order, err := keyClause(t, schema, n.order, true)
	if err != nil {
		return nil, err
	}

	parts := []predicate.Predicate{
		predicate.New("SELECT "),
		fields,
		predicate.New(" FROM " + t.Table),
	}
	if !where.IsEmpty() {
		parts = append(parts, predicate.New(" WHERE "), where)
	}
	if group != "" {
		parts = append(parts, predicate.New(" GROUP BY "+group))
	}
	if order != "" {
		parts = append(parts, predicate.New(" ORDER BY "+order))
	}
	if n.limit != "" {
		parts = append(parts, predicate.New(" LIMIT "+n.limit))
	}
	if n.offset != "" {
		parts = append(parts, predicate.New(" OFFSET "+n.offset))
	}

	stmt := predicate.Concat("", parts...)
	return &Statement{Text: stmt.Text(), Params: stmt.Params(), FieldMap: fieldMap}, nil
}

// discriminatorCondition restricts rows to the named types through the
// direct discriminator column. Multiple names OR-join.
func discriminatorCondition(t *entity.Type, docTypes []string) (predicate.Predicate, error) {
	if len(docTypes) == 0 {
		return predicate.Predicate{}, nil
	}
	if t.Discriminator == "" {
		return predicate.Predicate{}, nerr.Newf(nerr.ErrInvalidTraits, "%s has no type discriminator", t.Name).
			WithTable(t.Table)
	}

	preds := make([]predicate.Predicate, 0, len(docTypes))
	for _, name := range docTypes {
		preds = append(preds, predicate.New(t.Discriminator+" = $1", name))
	}
	return predicate.Join(preds, predicate.OpOr), nil
}

// fieldList builds the select list and the alias-to-key map the hydration
// layer uses to fold flat columns back into result keys.
func fieldList(t *entity.Type, n *normalTraits) (predicate.Predicate, map[string]string, error) {
	if n.count {
		return predicate.New("COUNT(*) AS count"), map[string]string{"count": "count"}, nil
	}

	fieldMap := make(map[string]string)
	var preds []predicate.Predicate

	for _, raw := range n.fields {
		if raw == field.KeyAll {
			preds = append(preds, predicate.New("*"))
			for _, c := range t.Columns {
				fieldMap[c] = field.Marker + c
			}
			continue
		}

		key, err := field.Parse(raw)
		if err != nil {
			return predicate.Predicate{}, nil, err
		}
		resolved, err := field.Resolve(t, key, field.ResolveOpts{})
		if err != nil {
			return predicate.Predicate{}, nil, err
		}

		alias := strutil.FieldAlias(key.Raw)
		if key.Kind == field.KindDocuments {
			alias = "documents"
		}
		fieldMap[alias] = key.Raw

		text := resolved.Text()
		if text != alias {
			text += " AS " + alias
		}
		preds = append(preds, predicate.NewMeta(text, resolved.Meta(), resolved.Params()...))
	}

	return predicate.Concat(", ", preds...), fieldMap, nil
}

// keyClause renders ordering or grouping keys into a comma-joined clause.
// Keys resolve exactly like filter keys, with the epoch option so timestamps
// sort numerically, and the type-aware cast so numeric/boolean fields sort by
// value instead of lexically.
func keyClause(t *entity.Type, schema *entity.Schema, keys []*field.Key, withDirection bool) (string, error) {
	if len(keys) == 0 {
		return "", nil
	}

	exprs := make([]string, 0, len(keys))
	for _, key := range keys {
		resolved, err := field.Resolve(t, key, field.ResolveOpts{Epoch: true})
		if err != nil {
			return "", err
		}
		expr := field.Apply(field.CastFor(t, schema, key), resolved.Text())
		if withDirection && key.Desc {
			expr += " DESC"
		}
		exprs = append(exprs, expr)
	}
	return strings.Join(exprs, ", "), nil
}

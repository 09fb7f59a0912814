package indexsync

import (
	"strings"

	"github.com/norjs/nopg/internal/entity"
	"github.com/norjs/nopg/internal/field"
	"github.com/norjs/nopg/internal/strutil"
)

// CanonicalName derives the index name from the table, the optional
// discriminator column, and the slug of the normalized field path.
func CanonicalName(t *entity.Type, key *field.Key, opts Options) string {
	parts := make([]string, 0, 2)
	if opts.TypeFirst && t.Discriminator != "" {
		parts = append(parts, t.Discriminator)
	}
	parts = append(parts, strutil.PathSlug(key.Raw))
	return strutil.IndexName(t.Table, parts...)
}

// columnList renders the indexed column expressions, discriminator column
// first when requested.
func columnList(t *entity.Type, key *field.Key, cast field.CastKind, opts Options) string {
	cols := make([]string, 0, 2)
	if opts.TypeFirst && t.Discriminator != "" {
		cols = append(cols, t.Discriminator)
	}
	cols = append(cols, indexExpr(t, key, cast))
	return strings.Join(cols, ", ")
}

// indexExpr renders one indexed expression the way the catalog echoes it
// back from pg_get_indexdef: JSON navigation spelled with spaced operators
// and an explicit ::text literal cast on the path, expression columns
// wrapped in parentheses. Keeping the creation DDL and both canonical
// comparison forms on this exact spelling is what makes the later textual
// verification meaningful.
func indexExpr(t *entity.Type, key *field.Key, cast field.CastKind) string {
	if key.Kind == field.KindColumn {
		return key.Column
	}

	var nav string
	if len(key.Path) == 1 {
		op := "->>"
		if cast == field.CastDirect {
			op = "->"
		}
		nav = t.DataContainer + " " + op + " '" + key.Path[0] + "'::text"
	} else {
		op := "#>>"
		if cast == field.CastDirect {
			op = "#>"
		}
		nav = t.DataContainer + " " + op + " '{" + strings.Join(key.Path, ",") + "}'::text[]"
	}

	switch cast {
	case field.CastNumeric:
		return "(((" + nav + "))::numeric)"
	case field.CastBoolean:
		return "(((" + nav + "))::boolean)"
	default:
		return "((" + nav + "))"
	}
}

// CreateDDL renders the statement used to create the index.
func CreateDDL(name, table, columns string, unique bool) string {
	return "CREATE " + uniqueWord(unique) + "INDEX " + name + " ON " + table + " USING btree (" + columns + ")"
}

// CanonicalForms renders the two definitions the catalog may report for the
// index: schema-qualified and unqualified table reference. Any other
// spelling observed in the catalog is treated as drift.
func CanonicalForms(schemaName, name, table, columns string, unique bool) [2]string {
	return [2]string{
		"CREATE " + uniqueWord(unique) + "INDEX " + name + " ON " + schemaName + "." + table + " USING btree (" + columns + ")",
		CreateDDL(name, table, columns, unique),
	}
}

func uniqueWord(unique bool) string {
	if unique {
		return "UNIQUE "
	}
	return ""
}

package field

import (
	"strings"

	"github.com/norjs/nopg/internal/entity"
	"github.com/norjs/nopg/internal/nerr"
	"github.com/norjs/nopg/internal/predicate"
)

// ResolveOpts adjusts how a key is rendered.
type ResolveOpts struct {
	// Epoch renders the reserved timestamp columns as sortable numeric
	// epoch milliseconds instead of the raw timestamp value.
	Epoch bool
}

// Resolve maps a parsed key to its SQL fragment for the given entity.
// Resolution is pure: the same (entity, key, opts) always produces the same
// fragment, whether used for filtering, ordering, or indexing.
func Resolve(t *entity.Type, key *Key, opts ResolveOpts) (predicate.Predicate, error) {
	switch key.Kind {
	case KindColumn:
		return resolveColumn(t, key, opts)
	case KindPath:
		return resolvePath(t, key)
	case KindDocuments:
		return resolveDocuments(t, key)
	default:
		return predicate.Predicate{}, nerr.Newf(nerr.ErrInvalidKey, "unsupported key kind %d", key.Kind).WithKey(key.Raw)
	}
}

// ResolveString parses and resolves a key in one step.
func ResolveString(t *entity.Type, raw string, opts ResolveOpts) (predicate.Predicate, error) {
	key, err := Parse(raw)
	if err != nil {
		return predicate.Predicate{}, err
	}
	return Resolve(t, key, opts)
}

func resolveColumn(t *entity.Type, key *Key, opts ResolveOpts) (predicate.Predicate, error) {
	if !t.HasColumn(key.Column) {
		err := nerr.Newf(nerr.ErrInvalidKey, "unknown column key %q for %s", key.Raw, t.Name).
			WithKey(key.Raw).
			WithTable(t.Table)
		if help := nerr.SuggestSimilar(key.Raw, KnownKeys(t)); help != "" {
			err.WithHelp(help)
		}
		return predicate.Predicate{}, err
	}

	meta := predicate.Meta{Key: key.Raw}
	if opts.Epoch && key.IsTimestamp() {
		return predicate.NewMeta("extract(epoch from "+key.Column+") * 1000", meta), nil
	}
	return predicate.NewMeta(key.Column, meta), nil
}

func resolvePath(t *entity.Type, key *Key) (predicate.Predicate, error) {
	if t.DataContainer == "" {
		return predicate.Predicate{}, nerr.Newf(nerr.ErrInvalidKey, "%s has no data container for key %q", t.Name, key.Raw).
			WithKey(key.Raw).
			WithTable(t.Table)
	}

	// Segments are validated at parse time, so embedding them in the quoted
	// path literal is safe. Values are still bound, never inlined.
	meta := predicate.Meta{DataContainer: t.DataContainer, Key: key.Raw}
	if len(key.Path) == 1 {
		return predicate.NewMeta(t.DataContainer+"->'"+key.Path[0]+"'", meta), nil
	}
	return predicate.NewMeta(t.DataContainer+"#>'{"+strings.Join(key.Path, ",")+"}'", meta), nil
}

// resolveDocuments renders the relation-fetch call expression. The entity's
// whole row travels as a JSON projection; the parsed relation expression
// travels as the single bind parameter. This key never combines with
// column-comparison semantics.
func resolveDocuments(t *entity.Type, key *Key) (predicate.Predicate, error) {
	spec, err := key.Relation.SpecJSON()
	if err != nil {
		return predicate.Predicate{}, err
	}

	meta := predicate.Meta{Key: key.Raw}
	text := "nopg_documents(row_to_json(" + t.Table + ".*), $1::jsonb)"
	return predicate.NewMeta(text, meta, spec), nil
}

// KnownKeys lists every resolvable column key of the entity, for
// "did you mean" suggestions.
func KnownKeys(t *entity.Type) []string {
	keys := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		keys = append(keys, Marker+c)
	}
	keys = append(keys, KeyDocuments)
	return keys
}

package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/norjs/nopg/internal/field"
	"github.com/norjs/nopg/internal/nerr"
	"github.com/norjs/nopg/internal/predicate"
)

// Match values accepted by the match trait.
const (
	// MatchAll joins map entries and operator-less arrays with AND.
	MatchAll = "all"
	// MatchAny joins them with OR.
	MatchAny = "any"
)

// Traits are the caller-supplied query options. The zero value requests the
// defaults: all fields, ordered by creation time, match all, no paging.
type Traits struct {
	// Fields lists the result keys to select. Default is ["$*"].
	Fields []string
	// Order lists ordering keys; a leading '-' requests descending order
	// and a ':cast' suffix overrides the declared cast.
	Order []string
	// Group lists grouping keys, same grammar as Order minus direction.
	Group []string
	// Limit is an integer, an integer string, or the literal "ALL".
	Limit any
	// Offset is an integer or an integer string.
	Offset any
	// Match selects the default join operator: "all" (AND) or "any" (OR).
	Match string
	// Count replaces the field list with a count expression and disables
	// ordering.
	Count bool
	// TypeAware forces a type-schema lookup even when no ordering or
	// grouping key needs it, so equality comparisons use declared casts.
	TypeAware bool
}

// normalTraits is the validated form the builder works from.
type normalTraits struct {
	fields    []string
	order     []*field.Key
	group     []*field.Key
	limit     string // "" means unlimited
	offset    string // "" means no offset
	op        predicate.Operator
	count     bool
	typeAware bool
}

// normalize validates the traits and fills in the defaults.
func (tr Traits) normalize() (*normalTraits, error) {
	n := &normalTraits{count: tr.Count, typeAware: tr.TypeAware}

	switch tr.Match {
	case "", MatchAll:
		n.op = predicate.OpAnd
	case MatchAny:
		n.op = predicate.OpOr
	default:
		return nil, nerr.Newf(nerr.ErrInvalidTraits, "unknown match trait %q", tr.Match).
			WithHelp("valid values are \"all\" and \"any\"")
	}

	n.fields = tr.Fields
	if len(n.fields) == 0 {
		n.fields = []string{field.KeyAll}
	}

	// The count trait reduces the statement to a single aggregate; row
	// order is meaningless there.
	if !tr.Count {
		order := tr.Order
		if len(order) == 0 {
			order = []string{field.KeyCreated}
		}
		for _, raw := range order {
			key, err := field.ParseOrdering(raw)
			if err != nil {
				return nil, err
			}
			if key.Kind == field.KindDocuments {
				return nil, nerr.New(nerr.ErrInvalidKey, "$documents cannot be an ordering key").
					WithKey(raw)
			}
			n.order = append(n.order, key)
		}
	}

	for _, raw := range tr.Group {
		key, err := field.ParseOrdering(raw)
		if err != nil {
			return nil, err
		}
		if key.Kind == field.KindDocuments {
			return nil, nerr.New(nerr.ErrInvalidKey, "$documents cannot be a grouping key").
				WithKey(raw)
		}
		n.group = append(n.group, key)
	}

	var err error
	if n.limit, err = parsePageBound("limit", tr.Limit, true); err != nil {
		return nil, err
	}
	if n.offset, err = parsePageBound("offset", tr.Offset, false); err != nil {
		return nil, err
	}

	return n, nil
}

// needsSchema reports whether compiling these traits requires the declared
// type schema: explicit type-awareness, or an ordering/grouping key into the
// data container without an explicit cast override.
func (n *normalTraits) needsSchema() bool {
	if n.typeAware {
		return true
	}
	for _, keys := range [][]*field.Key{n.order, n.group} {
		for _, key := range keys {
			if key.Kind == field.KindPath && key.Cast == field.CastUnspecified {
				return true
			}
		}
	}
	return false
}

// parsePageBound parses a limit/offset trait into its literal SQL token.
// Values arrive from JSON as numbers or strings; only non-negative integers
// (and "ALL" where allowed) are accepted, so the token is safe to inline.
func parsePageBound(name string, v any, allowAll bool) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case int:
		return formatBound(name, int64(x))
	case int64:
		return formatBound(name, x)
	case float64:
		if x != float64(int64(x)) {
			return "", nerr.Newf(nerr.ErrInvalidTraits, "%s must be an integer, got %v", name, x)
		}
		return formatBound(name, int64(x))
	case string:
		if allowAll && strings.EqualFold(x, "ALL") {
			return "ALL", nil
		}
		i, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return "", nerr.Newf(nerr.ErrInvalidTraits, "%s must be an integer%s, got %q", name, allAlternative(allowAll), x)
		}
		return formatBound(name, i)
	default:
		return "", nerr.Newf(nerr.ErrInvalidTraits, "%s must be an integer%s, got %T", name, allAlternative(allowAll), v)
	}
}

func formatBound(name string, i int64) (string, error) {
	if i < 0 {
		return "", nerr.Newf(nerr.ErrInvalidTraits, "%s must not be negative, got %d", name, i)
	}
	return fmt.Sprintf("%d", i), nil
}

func allAlternative(allowAll bool) string {
	if allowAll {
		return " or \"ALL\""
	}
	return ""
}

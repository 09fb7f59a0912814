package query

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"

	"github.com/norjs/nopg/internal/entity"
	"github.com/norjs/nopg/internal/nerr"
)

// PrepareInsert maps every mapped column of the entity present in data to
// an INSERT ... RETURNING * statement. Container values (maps and arrays)
// bind as serialized JSON.
func PrepareInsert(t *entity.Type, data map[string]any) (*Statement, error) {
	var cols []string
	var params []any

	for _, c := range t.Columns {
		v, ok := columnValue(data, c)
		if !ok {
			continue
		}
		bound, err := bindValue(c, v)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
		params = append(params, bound)
	}

	if len(cols) == 0 {
		return nil, nerr.Newf(nerr.ErrInvalidKey, "no mapped columns of %s in insert data", t.Name).
			WithTable(t.Table)
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(t.Table)
	b.WriteString(" (")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(") VALUES (")
	for i := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("$")
		b.WriteString(strconv.Itoa(i + 1))
	}
	b.WriteString(") RETURNING *")

	return &Statement{Text: b.String(), Params: params}, nil
}

// PrepareUpdate diffs the patched value set against the original row and
// emits an UPDATE ... RETURNING * for the changed columns only. The row is
// identified by its id column, or by its name column when the entity is
// name-identified; absence of both fails with NoIdentifyingKey. When nothing
// changed, no statement is returned and the caller should re-select current
// state instead.
func PrepareUpdate(t *entity.Type, original, patch map[string]any) (*Statement, error) {
	whereCol, whereVal, err := identify(t, original)
	if err != nil {
		return nil, err
	}

	patched := make(map[string]any, len(original)+len(patch))
	for k, v := range original {
		patched[k] = v
	}
	for k, v := range patch {
		patched[k] = v
	}

	var cols []string
	var params []any

	for _, c := range t.Columns {
		if c == whereCol {
			continue
		}
		v, ok := columnValue(patched, c)
		if !ok {
			continue
		}
		if orig, had := columnValue(original, c); had && deepEqual(v, orig) {
			continue
		}
		bound, err := bindValue(c, v)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
		params = append(params, bound)
	}

	if len(cols) == 0 {
		return nil, nil
	}

	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(t.Table)
	b.WriteString(" SET ")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c)
		b.WriteString(" = $")
		b.WriteString(strconv.Itoa(i + 1))
	}
	b.WriteString(" WHERE ")
	b.WriteString(whereCol)
	b.WriteString(" = $")
	b.WriteString(strconv.Itoa(len(cols) + 1))
	b.WriteString(" RETURNING *")

	params = append(params, whereVal)
	return &Statement{Text: b.String(), Params: params}, nil
}

// identify picks the identifying column and value from the original row.
// The id and name columns are mutually exclusive identification keys; id
// wins when both are present.
func identify(t *entity.Type, original map[string]any) (string, any, error) {
	if v, ok := columnValue(original, t.IDColumn); ok && v != nil {
		return t.IDColumn, v, nil
	}
	if t.NameColumn != "" {
		if v, ok := columnValue(original, t.NameColumn); ok && v != nil {
			return t.NameColumn, v, nil
		}
	}
	return "", nil, nerr.Newf(nerr.ErrNoIdentifyingKey, "%s row has neither id nor name", t.Name).
		WithTable(t.Table)
}

// columnValue looks a column up in a value map, accepting both the plain
// column name and its $-marked key form.
func columnValue(data map[string]any, col string) (any, bool) {
	if v, ok := data[col]; ok {
		return v, true
	}
	v, ok := data["$"+col]
	return v, ok
}

// bindValue converts a column value into its bind-parameter form. Structured
// values travel as serialized JSON so the driver can assign them to JSONB
// columns; everything else binds directly.
func bindValue(col string, v any) (any, error) {
	switch v.(type) {
	case map[string]any, []any:
		blob, err := json.Marshal(v)
		if err != nil {
			return nil, nerr.Wrapf(nerr.ErrInvalidKey, err, "cannot serialize value for column %s", col)
		}
		return string(blob), nil
	default:
		return v, nil
	}
}

// deepEqual compares two column values under JSON semantics: integer and
// floating representations of the same number are equal, and containers
// compare element-wise.
func deepEqual(a, b any) bool {
	return reflect.DeepEqual(jsonNormal(a), jsonNormal(b))
}

func jsonNormal(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = jsonNormal(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = jsonNormal(e)
		}
		return out
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return string(x)
		}
		return f
	default:
		return v
	}
}

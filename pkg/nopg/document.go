package nopg

import (
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/norjs/nopg/internal/entity"
	"github.com/norjs/nopg/internal/field"
	"github.com/norjs/nopg/internal/nerr"
)

// Document is one hydrated row. Top-level columns appear under their plain
// names (id, type, created, ...); the JSONB data container is expanded into
// the document, so schema-flexible fields read the same way column fields
// do. Explicitly selected dotted paths land nested under their path.
type Document map[string]any

// ID returns the document's id, or the empty string when absent.
func (d Document) ID() string {
	s, _ := d["id"].(string)
	return s
}

// Content re-assembles the schema-flexible payload of the document: every
// key that is not a mapped top-level column.
func (d Document) Content(t *entity.Type) map[string]any {
	content := make(map[string]any)
	for k, v := range d {
		if !t.HasColumn(k) {
			content[k] = v
		}
	}
	return content
}

// hydrate folds flat result rows back into documents using the statement's
// field map. Unknown result columns are kept under their alias as-is.
func hydrate(rows *sql.Rows, t *entity.Type, fieldMap map[string]string) ([]Document, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, nerr.WrapSQL(err, "read result columns", t.Table)
	}

	var docs []Document
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nerr.WrapSQL(err, "scan row", t.Table)
		}

		doc := make(Document, len(cols))
		for i, col := range cols {
			key := keyFor(fieldMap, col)
			assign(doc, t, key, decodeValue(values[i], isJSONKey(t, key)))
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

func keyFor(fieldMap map[string]string, col string) string {
	if key, ok := fieldMap[col]; ok {
		return key
	}
	return col
}

// assign places one decoded value into the document under its logical key.
// The data container expands in place; other columns store under their
// plain name; dotted paths nest.
func assign(doc Document, t *entity.Type, key string, value any) {
	if key == field.KeyDocuments || strings.HasPrefix(key, field.KeyDocuments+".") {
		doc["documents"] = value
		return
	}
	if name, isColumn := strings.CutPrefix(key, field.Marker); isColumn {
		if name == t.DataContainer {
			if content, ok := value.(map[string]any); ok {
				for k, v := range content {
					doc[k] = v
				}
				return
			}
		}
		doc[name] = value
		return
	}

	segments := strings.Split(key, ".")
	m := map[string]any(doc)
	for _, seg := range segments[:len(segments)-1] {
		next, ok := m[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[seg] = next
		}
		m = next
	}
	m[segments[len(segments)-1]] = value
}

// isJSONKey reports whether the logical key selects a JSONB value: the data
// container or a JSON column, a dotted path navigated with the JSON
// operators, or a relation fetch.
func isJSONKey(t *entity.Type, key string) bool {
	if key == field.KeyDocuments || strings.HasPrefix(key, field.KeyDocuments+".") {
		return true
	}
	if name, isColumn := strings.CutPrefix(key, field.Marker); isColumn {
		return name == t.DataContainer || name == "schema"
	}
	return true // dotted path
}

// decodeValue normalizes a driver value. JSONB values arrive as byte slices
// and decode to their structured form; other byte slices are text columns
// and become strings; everything else passes through.
func decodeValue(v any, isJSON bool) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	if isJSON {
		var decoded any
		if err := json.Unmarshal(b, &decoded); err == nil {
			return decoded
		}
	}
	return string(b)
}

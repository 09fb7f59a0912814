package nopg

import (
	"context"
	"encoding/json"

	"github.com/norjs/nopg/internal/entity"
	"github.com/norjs/nopg/internal/nerr"
	"github.com/norjs/nopg/internal/query"
)

// TypeSchema resolves the declared field schema of a document type from the
// types table. Exactly one row must match the name; zero or multiple
// matches fail with UnknownType. Results are cached until the type is
// written through this client.
func (c *Client) TypeSchema(ctx context.Context, typeName string) (*entity.Schema, error) {
	c.mu.RLock()
	cached, ok := c.schemas[typeName]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	rows, err := c.db.QueryContext(ctx,
		"SELECT schema FROM "+entity.TypeDef.Table+" WHERE name = $1", typeName)
	if err != nil {
		return nil, nerr.WrapSQL(err, "read type schema", entity.TypeDef.Table)
	}
	defer rows.Close()

	var blobs [][]byte
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, nerr.WrapSQL(err, "scan type schema", entity.TypeDef.Table)
		}
		blobs = append(blobs, blob)
	}
	if err := rows.Err(); err != nil {
		return nil, nerr.WrapSQL(err, "read type schema", entity.TypeDef.Table)
	}

	if len(blobs) != 1 {
		return nil, nerr.Newf(nerr.ErrUnknownType, "found %d types named %q, expected exactly 1", len(blobs), typeName).
			WithTable(entity.TypeDef.Table)
	}

	schema, err := parseSchema(blobs[0])
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.schemas[typeName] = schema
	c.mu.Unlock()
	return schema, nil
}

// DeclareType creates or updates a document type and its field schema. The
// schema maps field paths to declared kinds, e.g.
// {"properties": {"age": {"type": "number"}}}.
func (c *Client) DeclareType(ctx context.Context, typeName string, schema map[string]any) (Document, error) {
	existing, err := c.findType(ctx, typeName)
	if err != nil {
		return nil, err
	}

	var stmt *query.Statement
	if existing == nil {
		stmt, err = query.PrepareInsert(entity.TypeDef, map[string]any{
			"name":   typeName,
			"schema": schema,
		})
	} else {
		stmt, err = query.PrepareUpdate(entity.TypeDef,
			columnsOf(entity.TypeDef, existing),
			map[string]any{"schema": schema})
	}
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	delete(c.schemas, typeName)
	c.mu.Unlock()

	if stmt == nil {
		return existing, nil
	}
	return c.runOne(ctx, entity.TypeDef, stmt)
}

// findType fetches the type row by name, or nil when absent.
func (c *Client) findType(ctx context.Context, typeName string) (Document, error) {
	stmt, err := c.builder.PrepareSelect(ctx, entity.TypeDef, nil,
		map[string]any{"$name": typeName}, Traits{Limit: 1})
	if err != nil {
		return nil, err
	}
	docs, err := c.run(ctx, entity.TypeDef, stmt)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

// parseSchema decodes the stored schema blob into the read-only form the
// cast resolver consumes. A null column yields an empty schema.
func parseSchema(blob []byte) (*entity.Schema, error) {
	schema := &entity.Schema{Properties: make(map[string]entity.Property)}
	if len(blob) == 0 {
		return schema, nil
	}

	var stored struct {
		Properties map[string]struct {
			Type string `json:"type"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(blob, &stored); err != nil {
		return nil, nerr.Wrap(nerr.ErrUnknownType, err, "malformed type schema").
			WithTable(entity.TypeDef.Table)
	}

	for name, prop := range stored.Properties {
		schema.Properties[name] = entity.Property{Type: prop.Type}
	}
	return schema, nil
}

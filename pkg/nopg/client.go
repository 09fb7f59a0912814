package nopg

import (
	"context"

	"github.com/google/uuid"

	"github.com/norjs/nopg/internal/entity"
	"github.com/norjs/nopg/internal/indexsync"
	"github.com/norjs/nopg/internal/nerr"
	"github.com/norjs/nopg/internal/query"
)

// IndexOptions controls the shape of declared indexes.
type IndexOptions = indexsync.Options

// IndexDriftReport summarizes the difference between declared indexes and
// the live catalog.
type IndexDriftReport = indexsync.Drift

// Search finds documents of the given type matching the filter
// specification. An empty type name searches across all types.
func (c *Client) Search(ctx context.Context, typeName string, spec any, traits Traits) ([]Document, error) {
	stmt, err := c.builder.PrepareSelect(ctx, entity.Document, docTypes(typeName), spec, traits)
	if err != nil {
		return nil, err
	}
	return c.run(ctx, entity.Document, stmt)
}

// SearchOne returns the first matching document, or nil when none match.
func (c *Client) SearchOne(ctx context.Context, typeName string, spec any, traits Traits) (Document, error) {
	traits.Limit = 1
	docs, err := c.Search(ctx, typeName, spec, traits)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

// Count counts documents of the given type matching the filter
// specification.
func (c *Client) Count(ctx context.Context, typeName string, spec any, traits Traits) (int64, error) {
	stmt, err := c.builder.PrepareCount(ctx, entity.Document, docTypes(typeName), spec, traits)
	if err != nil {
		return 0, err
	}

	c.logf("nopg: %s %v", stmt.Text, stmt.Params)
	var count int64
	if err := c.db.QueryRowContext(ctx, stmt.Text, stmt.Params...).Scan(&count); err != nil {
		return 0, nerr.WrapSQL(err, "count documents", entity.Document.Table).WithSQL(stmt.Text)
	}
	return count, nil
}

// Insert stores a new document of the given type and returns the stored
// row. A "$id" entry in content becomes the id column. Without one,
// WithClientIDs generates a uuid client-side; otherwise the column
// default applies.
func (c *Client) Insert(ctx context.Context, typeName string, content map[string]any) (Document, error) {
	stmt, err := query.PrepareInsert(entity.Document, insertData(typeName, content, c.config.ClientIDs))
	if err != nil {
		return nil, err
	}
	return c.runOne(ctx, entity.Document, stmt)
}

// Update applies a content-level patch to a document and returns its new
// state. When the patch changes nothing, no UPDATE is issued and the
// current state is re-selected instead.
func (c *Client) Update(ctx context.Context, doc Document, patch map[string]any) (Document, error) {
	original := columnsOf(entity.Document, doc)

	content, _ := original["content"].(map[string]any)
	patched := make(map[string]any, len(content)+len(patch))
	for k, v := range content {
		patched[k] = v
	}
	for k, v := range patch {
		patched[k] = v
	}

	stmt, err := query.PrepareUpdate(entity.Document, original, map[string]any{"content": patched})
	if err != nil {
		return nil, err
	}
	if stmt == nil {
		return c.SearchOne(ctx, "", map[string]any{"$id": doc.ID()}, Traits{})
	}
	return c.runOne(ctx, entity.Document, stmt)
}

// Delete removes a document by id.
func (c *Client) Delete(ctx context.Context, doc Document) error {
	id := doc.ID()
	if id == "" {
		return nerr.New(nerr.ErrNoIdentifyingKey, "document has no id").
			WithTable(entity.Document.Table)
	}

	text := "DELETE FROM " + entity.Document.Table + " WHERE id = $1"
	c.logf("nopg: %s [%s]", text, id)
	if _, err := c.db.ExecContext(ctx, text, id); err != nil {
		return nerr.WrapSQL(err, "delete document", entity.Document.Table).WithSQL(text)
	}
	return nil
}

// DeclareIndexes ensures an expression index exists for each field of the
// type, on a single transaction: a failure partway leaves no index
// half-created.
func (c *Client) DeclareIndexes(ctx context.Context, typeName string, fields []string, opts IndexOptions) error {
	schema, err := c.TypeSchema(ctx, typeName)
	if err != nil {
		return err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nerr.Wrap(nerr.ErrSQLConnection, err, "failed to begin transaction")
	}

	sync := indexsync.New(indexsync.NewPGCatalog(tx), tx).WithSchemaName(c.config.SchemaName)
	if err := sync.DeclareAll(ctx, entity.Document, schema, fields, opts); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return nerr.Wrap(nerr.ErrSQLExecution, err, "failed to commit index declarations")
	}
	return nil
}

// IndexDrift compares the declared index state for a type against the live
// catalog without issuing any DDL.
func (c *Client) IndexDrift(ctx context.Context, typeName string, fields []string, opts IndexOptions) (*IndexDriftReport, error) {
	schema, err := c.TypeSchema(ctx, typeName)
	if err != nil {
		return nil, err
	}

	declared, err := c.sync.DeclaredState(entity.Document, schema, fields, opts)
	if err != nil {
		return nil, err
	}
	observed, err := c.catalog.TableIndexes(ctx, entity.Document.Table)
	if err != nil {
		return nil, err
	}

	// Only declared names participate: the documents table carries its
	// primary key and other undeclared indexes.
	pruned := make(indexsync.State, len(declared))
	for name := range declared {
		if def, ok := observed[name]; ok {
			pruned[name] = def
		}
	}
	return indexsync.Compare(declared, pruned)
}

// run executes a compiled statement and hydrates every row.
func (c *Client) run(ctx context.Context, t *entity.Type, stmt *query.Statement) ([]Document, error) {
	c.logf("nopg: %s %v", stmt.Text, stmt.Params)

	rows, err := c.db.QueryContext(ctx, stmt.Text, stmt.Params...)
	if err != nil {
		return nil, nerr.WrapSQL(err, "execute statement", t.Table).WithSQL(stmt.Text)
	}
	defer rows.Close()

	return hydrate(rows, t, fieldMapOf(t, stmt))
}

// runOne executes a statement expected to return a single row
// (INSERT/UPDATE ... RETURNING *).
func (c *Client) runOne(ctx context.Context, t *entity.Type, stmt *query.Statement) (Document, error) {
	docs, err := c.run(ctx, t, stmt)
	if err != nil {
		return nil, err
	}
	if len(docs) != 1 {
		return nil, nerr.Newf(nerr.ErrSQLExecution, "statement returned %d rows, expected 1", len(docs)).
			WithTable(t.Table).
			WithSQL(stmt.Text)
	}
	return docs[0], nil
}

// fieldMapOf falls back to the entity's own column map for statements that
// return the whole row.
func fieldMapOf(t *entity.Type, stmt *query.Statement) map[string]string {
	if stmt.FieldMap != nil {
		return stmt.FieldMap
	}
	m := make(map[string]string, len(t.Columns))
	for _, col := range t.Columns {
		m[col] = "$" + col
	}
	return m
}

// insertData builds the column value map for an insert: a "$id" entry in
// content is hoisted to the id column, otherwise clientIDs triggers uuid
// generation, otherwise the column default applies.
func insertData(typeName string, content map[string]any, clientIDs bool) map[string]any {
	data := map[string]any{
		"type": typeName,
	}
	if id, ok := content["$id"]; ok {
		stripped := make(map[string]any, len(content))
		for k, v := range content {
			if k != "$id" {
				stripped[k] = v
			}
		}
		content = stripped
		data["id"] = id
	} else if clientIDs {
		data["id"] = uuid.NewString()
	}
	data["content"] = content
	return data
}

func docTypes(typeName string) []string {
	if typeName == "" {
		return nil
	}
	return []string{typeName}
}

// columnsOf splits a hydrated document back into its column value map: the
// mapped columns under their names, everything else folded into the data
// container.
func columnsOf(t *entity.Type, doc Document) map[string]any {
	out := make(map[string]any)
	content := make(map[string]any)
	for k, v := range doc {
		if t.HasColumn(k) {
			out[k] = v
		} else {
			content[k] = v
		}
	}
	if t.DataContainer != "" {
		out[t.DataContainer] = content
	}
	return out
}

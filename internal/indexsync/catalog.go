package indexsync

import (
	"context"
	"database/sql"

	"github.com/norjs/nopg/internal/nerr"
)

// Querier runs read-only catalog queries. Both *sql.DB and *sql.Tx satisfy
// it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PGCatalog reads index metadata from the PostgreSQL catalog through the
// pg_indexes view, which reports definitions in pg_get_indexdef form.
type PGCatalog struct {
	db Querier
}

// NewPGCatalog creates a catalog reader.
func NewPGCatalog(db Querier) *PGCatalog {
	return &PGCatalog{db: db}
}

func (c *PGCatalog) IndexExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := c.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pg_indexes
			WHERE schemaname = current_schema() AND indexname = $1
		)
	`, name).Scan(&exists)

	if err != nil {
		return false, nerr.WrapSQL(err, "check index existence", "").WithIndex(name)
	}
	return exists, nil
}

func (c *PGCatalog) IndexDefinition(ctx context.Context, name string) (string, error) {
	var def string
	err := c.db.QueryRowContext(ctx, `
		SELECT indexdef FROM pg_indexes
		WHERE schemaname = current_schema() AND indexname = $1
	`, name).Scan(&def)

	if err != nil {
		return "", nerr.WrapSQL(err, "read index definition", "").WithIndex(name)
	}
	return def, nil
}

// TableIndexes returns every index on the table as a name-to-definition
// state, the input to drift comparison.
func (c *PGCatalog) TableIndexes(ctx context.Context, table string) (State, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT indexname, indexdef FROM pg_indexes
		WHERE schemaname = current_schema() AND tablename = $1
		ORDER BY indexname
	`, table)
	if err != nil {
		return nil, nerr.WrapSQL(err, "list indexes", table)
	}
	defer rows.Close()

	state := make(State)
	for rows.Next() {
		var name, def string
		if err := rows.Scan(&name, &def); err != nil {
			return nil, nerr.WrapSQL(err, "scan index", table)
		}
		state[name] = def
	}

	return state, rows.Err()
}

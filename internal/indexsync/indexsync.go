// Package indexsync keeps expression indexes over the document store's JSONB
// fields in step with their declarations. Declaring an index is idempotent:
// an existing index whose catalog definition matches either canonical form is
// left alone, a mismatched one is dropped and recreated, and every create is
// verified by re-reading the catalog. All round trips run on the caller's
// transaction; a failure propagates and the enclosing transaction must roll
// back, so indexes are never left half-created.
package indexsync

import (
	"context"
	"database/sql"

	"github.com/norjs/nopg/internal/entity"
	"github.com/norjs/nopg/internal/field"
	"github.com/norjs/nopg/internal/nerr"
)

// DefaultSchemaName is the schema the catalog qualifies index definitions
// with unless configured otherwise.
const DefaultSchemaName = "public"

// Catalog is read-only index introspection.
type Catalog interface {
	IndexExists(ctx context.Context, name string) (bool, error)
	IndexDefinition(ctx context.Context, name string) (string, error)
}

// Execer runs DDL. Both *sql.DB and *sql.Tx satisfy it; index declaration is
// normally run on the transaction that also writes the type declaration.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Options adjust one index declaration.
type Options struct {
	// Unique creates a UNIQUE index.
	Unique bool
	// TypeFirst puts the discriminator column in front of the field
	// expression, for indexes serving per-type lookups.
	TypeFirst bool
}

// Synchronizer declares and verifies indexes against one catalog.
type Synchronizer struct {
	catalog    Catalog
	db         Execer
	schemaName string
}

// New creates a synchronizer using the default schema name.
func New(catalog Catalog, db Execer) *Synchronizer {
	return &Synchronizer{catalog: catalog, db: db, schemaName: DefaultSchemaName}
}

// WithSchemaName overrides the schema name used in the qualified canonical
// form.
func (s *Synchronizer) WithSchemaName(name string) *Synchronizer {
	s.schemaName = name
	return s
}

// Declare ensures an index over fieldPath exists on the entity's table and
// textually matches one of the two canonical definitions. The field path
// accepts a ':cast' suffix overriding the declared cast; without one the
// cast comes from the type schema, exactly as it does for filtering and
// ordering, so the index expression matches the compiled queries it serves.
func (s *Synchronizer) Declare(ctx context.Context, t *entity.Type, schema *entity.Schema, fieldPath string, opts Options) error {
	name, columns, err := plan(t, schema, fieldPath, opts)
	if err != nil {
		return err
	}
	canon := CanonicalForms(s.schemaName, name, t.Table, columns, opts.Unique)

	exists, err := s.catalog.IndexExists(ctx, name)
	if err != nil {
		return err
	}

	if exists {
		def, err := s.catalog.IndexDefinition(ctx, name)
		if err != nil {
			return err
		}
		if def == canon[0] || def == canon[1] {
			return nil
		}
		// Definition drifted from the declaration: rebuild.
		if _, err := s.db.ExecContext(ctx, "DROP INDEX "+name); err != nil {
			return nerr.Wrap(nerr.ErrIndexSync, err, "failed to drop index").
				WithTable(t.Table).
				WithIndex(name)
		}
	}

	ddl := CreateDDL(name, t.Table, columns, opts.Unique)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return nerr.Wrap(nerr.ErrIndexSync, err, "failed to create index").
			WithTable(t.Table).
			WithIndex(name).
			WithSQL(ddl)
	}
	return s.verify(ctx, t, name, canon)
}

// verify re-reads the created index and asserts its catalog definition
// equals one of the canonical forms, guarding against silent catalog
// normalization drift.
func (s *Synchronizer) verify(ctx context.Context, t *entity.Type, name string, canon [2]string) error {
	def, err := s.catalog.IndexDefinition(ctx, name)
	if err != nil {
		return err
	}
	if def != canon[0] && def != canon[1] {
		return nerr.Newf(nerr.ErrIndexVerification, "created index does not match its canonical definition").
			WithTable(t.Table).
			WithIndex(name).
			With("observed", def).
			With("expected", canon[1])
	}
	return nil
}

// DeclareAll declares an index per field path, strictly sequentially. The
// first failure aborts the batch; the enclosing transaction rolls the
// earlier creations back.
func (s *Synchronizer) DeclareAll(ctx context.Context, t *entity.Type, schema *entity.Schema, fieldPaths []string, opts Options) error {
	for _, path := range fieldPaths {
		if err := s.Declare(ctx, t, schema, path, opts); err != nil {
			return err
		}
	}
	return nil
}

// DeclaredState builds the catalog state the declarations should produce,
// in the schema-qualified form pg_indexes reports. It mirrors Declare's
// derivation without touching the database; diff it against
// PGCatalog.TableIndexes with Compare.
func (s *Synchronizer) DeclaredState(t *entity.Type, schema *entity.Schema, fieldPaths []string, opts Options) (State, error) {
	state := make(State, len(fieldPaths))
	for _, path := range fieldPaths {
		name, columns, err := plan(t, schema, path, opts)
		if err != nil {
			return nil, err
		}
		state[name] = CanonicalForms(s.schemaName, name, t.Table, columns, opts.Unique)[0]
	}
	return state, nil
}

// plan derives the index name and column expressions for one declaration.
// Resolution must succeed for the same reasons a filter on the path would;
// an index over an unresolvable key is meaningless.
func plan(t *entity.Type, schema *entity.Schema, fieldPath string, opts Options) (name, columns string, err error) {
	key, err := field.ParseOrdering(fieldPath)
	if err != nil {
		return "", "", err
	}
	if key.Kind == field.KindDocuments {
		return "", "", nerr.New(nerr.ErrInvalidKey, "$documents cannot be indexed").WithKey(fieldPath)
	}
	if key.Desc {
		return "", "", nerr.New(nerr.ErrInvalidKey, "index declarations carry no order direction").WithKey(fieldPath)
	}
	if _, err := field.Resolve(t, key, field.ResolveOpts{}); err != nil {
		return "", "", err
	}

	cast := field.CastFor(t, schema, key)
	return CanonicalName(t, key, opts), columnList(t, key, cast, opts), nil
}

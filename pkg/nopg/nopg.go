// Package nopg is the public client for the nopg document store: a
// schema-flexible document layer over PostgreSQL JSONB columns. The client
// compiles filter specifications into parameterized SQL, executes them, and
// keeps declared expression indexes in step with the catalog.
//
// Create a client with New() and close it with Close() when done.
//
// Example:
//
//	client, err := nopg.New(
//	    nopg.WithDatabaseURL("postgres://localhost/mydb"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	docs, err := client.Search(ctx, "Profile", map[string]any{"name": "alice"}, nopg.Traits{})
package nopg

import (
	"context"
	"database/sql"
	"net/url"
	"sync"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"github.com/norjs/nopg/internal/entity"
	"github.com/norjs/nopg/internal/filter"
	"github.com/norjs/nopg/internal/indexsync"
	"github.com/norjs/nopg/internal/nerr"
	"github.com/norjs/nopg/internal/query"
)

// Traits re-exports the query traits accepted by Search and Count.
type Traits = query.Traits

// Match values for the Traits.Match field.
const (
	MatchAll = query.MatchAll
	MatchAny = query.MatchAny
)

// Client is the main entry point for the nopg document store.
type Client struct {
	db       *sql.DB
	config   *Config
	registry *filter.Registry
	builder  *query.Builder
	catalog  *indexsync.PGCatalog
	sync     *indexsync.Synchronizer

	// Schema cache: the compiler core only reads type schemas; this cache
	// owns them. Invalidated when a type is written through this client.
	mu      sync.RWMutex
	schemas map[string]*entity.Schema
}

// New creates a new Client with the given options.
// WithDatabaseURL must be provided.
func New(opts ...Option) (*Client, error) {
	cfg := &Config{
		Timeout:    30 * time.Second,
		SchemaName: indexsync.DefaultSchemaName,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.DatabaseURL == "" {
		return nil, nerr.New(nerr.ErrConfigInvalid, "database URL is required").
			WithHelp("pass nopg.WithDatabaseURL(...) or set database_url in nopg.yaml")
	}
	if cfg.Registry == nil {
		cfg.Registry = filter.NewRegistry()
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nerr.Wrap(nerr.ErrSQLConnection, err, "failed to open database").
			With("url", redactURL(cfg.DatabaseURL))
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nerr.Wrap(nerr.ErrSQLConnection, err, "failed to connect").
			With("url", redactURL(cfg.DatabaseURL))
	}

	// Timestamps travel as UTC; epoch rendering depends on it.
	if _, err := db.ExecContext(ctx, "SET timezone = 'UTC'"); err != nil {
		db.Close()
		return nil, nerr.Wrap(nerr.ErrSQLConnection, err, "failed to set UTC timezone").
			With("url", redactURL(cfg.DatabaseURL))
	}

	c := &Client{
		db:       db,
		config:   cfg,
		registry: cfg.Registry,
		schemas:  make(map[string]*entity.Schema),
	}
	c.builder = query.NewBuilder(cfg.Registry, c)
	c.catalog = indexsync.NewPGCatalog(db)
	c.sync = indexsync.New(c.catalog, db).WithSchemaName(cfg.SchemaName)
	return c, nil
}

// Close releases the database connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}

// DB exposes the underlying pool, for callers that need to run their own
// statements on the same connection.
func (c *Client) DB() *sql.DB {
	return c.db
}

// RegisterPredicate adds a named BIND predicate function to the client's
// registry. The return type defaults to boolean when empty.
func (c *Client) RegisterPredicate(name, returnType string) error {
	return c.registry.Register(filter.Function{Name: name, ReturnType: returnType})
}

func (c *Client) logf(format string, v ...any) {
	if c.config.Logger != nil {
		c.config.Logger.Printf(format, v...)
	}
}

// redactURL removes the password from a database URL for error messages.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "(unparseable url)"
	}
	if u.User != nil {
		if _, has := u.User.Password(); has {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
		}
	}
	return u.String()
}

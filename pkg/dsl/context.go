// Package dsl provides the builder surface of the stream engine: the
// context managing topologies, named tables and named streams, the dataflow
// graph, and the pipe with its operator steps.
package dsl

import (
	"context"
	"sync"

	"github.com/dbis-ilm/pipefabric-go/pkg/config"
	"github.com/dbis-ilm/pipefabric-go/pkg/database"
	"github.com/dbis-ilm/pipefabric-go/pkg/logger"
	"github.com/dbis-ilm/pipefabric-go/pkg/qop"
	"github.com/dbis-ilm/pipefabric-go/pkg/table"
)

// Context is the main entry point to the engine: it creates topologies and
// manages named tables and named streams shared between them.
type Context struct {
	cfg *config.Config
	log *logger.Logger

	mu      sync.Mutex
	tables  map[string]interface{}
	streams map[string]interface{}
	closers []qop.Closer
	stores  []func()
}

// NewContext creates a new context with default configuration.
func NewContext() *Context {
	return &Context{
		cfg:     config.New(),
		log:     logger.New("pipefabric", "1.0"),
		tables:  make(map[string]interface{}),
		streams: make(map[string]interface{}),
	}
}

// Config returns the engine configuration of the context.
func (c *Context) Config() *config.Config { return c.cfg }

// Logger returns the context logger.
func (c *Context) Logger() *logger.Logger { return c.log }

// CreateTopology creates a new empty topology sharing the context's
// configuration and logger.
func (c *Context) CreateTopology() *Topology {
	return newTopology(c.cfg, c.log)
}

// Close stops the helper goroutines of all named streams and closes the
// connections of the backed tables created through the context.
func (c *Context) Close() {
	c.mu.Lock()
	closers := append([]qop.Closer(nil), c.closers...)
	stores := append([]func(){}, c.stores...)
	c.mu.Unlock()
	for _, cl := range closers {
		cl.Close()
	}
	for _, closeStore := range stores {
		closeStore()
	}
}

// trackStore records a backing-store connection to close with the context.
func (c *Context) trackStore(closeStore func()) {
	c.mu.Lock()
	c.stores = append(c.stores, closeStore)
	c.mu.Unlock()
}

// CreateTable creates a new named in-memory table in the context. Creating a
// table under an existing name is an error.
func CreateTable[T any, K comparable](c *Context, name string) (*table.InMemoryTable[T, K], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.tables[name]; exists {
		return nil, table.ErrTableExists
	}
	tbl := table.NewInMemoryTable[T, K](name)
	c.tables[name] = tbl
	return tbl, nil
}

// CreatePostgresTable creates a named table backed by PostgreSQL: the
// connection pool is built from the engine configuration
// (table.postgres.dsn) and closed together with the context.
func CreatePostgresTable[T any, K comparable](ctx context.Context, c *Context, name string,
	codec table.RowCodec[T]) (*table.PostgresTable[T, K], error) {
	db, err := database.NewPostgreSQL(ctx, database.PostgreSQLFromConfig(c.cfg))
	if err != nil {
		return nil, err
	}
	tbl, err := table.NewPostgresTable[T, K](ctx, db.Pool(), name, codec)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := RegisterTable[T, K](c, tbl); err != nil {
		db.Close()
		return nil, err
	}
	c.trackStore(db.Close)
	return tbl, nil
}

// CreateRedisTable creates a named table backed by Redis: the client is
// built from the engine configuration (table.redis.addr, table.redis.db)
// and closed together with the context.
func CreateRedisTable[T any, K comparable](ctx context.Context, c *Context, name string,
	codec table.RowCodec[T]) (*table.RedisTable[T, K], error) {
	db := database.NewRedis(database.RedisFromConfig(c.cfg))
	tbl, err := table.NewRedisTable[T, K](ctx, db.Client(), name, codec)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := RegisterTable[T, K](c, tbl); err != nil {
		db.Close()
		return nil, err
	}
	c.trackStore(func() { db.Close() })
	return tbl, nil
}

// RegisterTable registers an externally created table (e.g. a Postgres- or
// Redis-backed one) under a name.
func RegisterTable[T any, K comparable](c *Context, tbl table.Table[T, K]) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.tables[tbl.Name()]; exists {
		return table.ErrTableExists
	}
	c.tables[tbl.Name()] = tbl
	return nil
}

// GetTable retrieves a named table with the given record and key types.
func GetTable[T any, K comparable](c *Context, name string) (table.Table[T, K], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, exists := c.tables[name]
	if !exists {
		return nil, table.ErrTableNotFound
	}
	tbl, ok := raw.(table.Table[T, K])
	if !ok {
		return nil, NewTopologyError("getTable", ErrIncompatibleTypes)
	}
	return tbl, nil
}

// CreateStream creates a named stream: a queue operator into which one
// topology can publish with ToStream and from which other topologies can
// read with FromStream.
func CreateStream[T any](c *Context, name string) (*qop.Queue[T], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.streams[name]; exists {
		return nil, ErrStreamExists
	}
	q := qop.NewQueue[T](c.cfg.GetInt("queue.capacity", qop.DefaultQueueCapacity))
	c.streams[name] = q
	c.closers = append(c.closers, q)
	return q, nil
}

// GetStream retrieves a named stream with the given element type.
func GetStream[T any](c *Context, name string) (*qop.Queue[T], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, exists := c.streams[name]
	if !exists {
		return nil, ErrStreamNotFound
	}
	q, ok := raw.(*qop.Queue[T])
	if !ok {
		return nil, NewTopologyError("getStream", ErrIncompatibleTypes)
	}
	return q, nil
}

// Package database manages the connections to the backing stores of the
// table implementations: PostgreSQL via pgx connection pools and Redis via
// go-redis clients, both configurable through the engine configuration.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dbis-ilm/pipefabric-go/pkg/config"
)

// PostgreSQL represents a PostgreSQL connection pool used by Postgres-backed
// tables.
type PostgreSQL struct {
	pool *pgxpool.Pool
}

// PostgreSQLConfig holds the PostgreSQL connection configuration.
type PostgreSQLConfig struct {
	DSN               string
	MaxConnections    int32
	ConnectionTimeout time.Duration
}

// DefaultPostgreSQLConfig returns a default configuration for local
// development.
func DefaultPostgreSQLConfig() PostgreSQLConfig {
	return PostgreSQLConfig{
		DSN:               "postgres://localhost:5432/pipefabric",
		MaxConnections:    10,
		ConnectionTimeout: 10 * time.Second,
	}
}

// PostgreSQLFromConfig creates a PostgreSQL config from the engine
// configuration.
func PostgreSQLFromConfig(cfg *config.Config) PostgreSQLConfig {
	c := DefaultPostgreSQLConfig()
	if dsn := cfg.Get("table.postgres.dsn"); dsn != "" {
		c.DSN = dsn
	}
	return c
}

// NewPostgreSQL creates a new connection pool using the provided
// configuration and verifies the connection.
func NewPostgreSQL(ctx context.Context, cfg PostgreSQLConfig) (*PostgreSQL, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConnections
	poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectionTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgreSQL{pool: pool}, nil
}

// Pool returns the underlying connection pool.
func (p *PostgreSQL) Pool() *pgxpool.Pool { return p.pool }

// Ping checks if the connection is alive.
func (p *PostgreSQL) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close closes the connection pool.
func (p *PostgreSQL) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// Package database builds the pgx connection pool shared by the API server,
// the training CLI, and the River workers.
package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOption mutates the parsed pool configuration before the pool is built.
type PoolOption func(*pgxpool.Config)

// WithAfterConnect runs fn on every new connection. The API server uses it to
// register the pgvector types so halfvec embedding columns scan natively.
func WithAfterConnect(fn func(context.Context, *pgx.Conn) error) PoolOption {
	return func(c *pgxpool.Config) {
		c.AfterConnect = fn
	}
}

// NewPostgresPool parses databaseURL, applies opts, and returns a pool that
// has answered one ping, so callers fail at startup rather than on the first
// query.
func NewPostgresPool(ctx context.Context, databaseURL string, opts ...PoolOption) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	for _, opt := range opts {
		opt(config)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Connected to PostgreSQL", "max_conns", config.MaxConns)

	return pool, nil
}

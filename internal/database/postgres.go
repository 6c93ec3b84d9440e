package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOptions tunes the connection pool. Zero values fall back to defaults.
type PoolOptions struct {
	MaxConns        int32
	MinConns        int32
	PingRetries     int
	SimpleProtocol  bool // required behind PgBouncer transaction pooling
	MaxConnLifetime time.Duration
}

func (o PoolOptions) withDefaults() PoolOptions {
	if o.MaxConns <= 0 {
		o.MaxConns = 25
	}
	if o.MinConns <= 0 {
		o.MinConns = 2
	}
	if o.PingRetries <= 0 {
		o.PingRetries = 3
	}
	if o.MaxConnLifetime <= 0 {
		o.MaxConnLifetime = time.Hour
	}
	return o
}

// NewPool creates a PostgreSQL pool with default options.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	return NewPoolWithOptions(ctx, databaseURL, PoolOptions{SimpleProtocol: true})
}

// NewPoolWithOptions creates a PostgreSQL pool and pings it with exponential backoff.
func NewPoolWithOptions(ctx context.Context, databaseURL string, opts PoolOptions) (*pgxpool.Pool, error) {
	opts = opts.withDefaults()

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = opts.MaxConns
	config.MinConns = opts.MinConns
	config.HealthCheckPeriod = 1 * time.Minute
	config.MaxConnLifetime = opts.MaxConnLifetime
	config.MaxConnIdleTime = 30 * time.Minute

	// Poolers em modo transação não suportam prepared statements (SQLSTATE 42P05)
	if opts.SimpleProtocol {
		config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	retryDelay := 1 * time.Second
	for i := 0; i < opts.PingRetries; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = pool.Ping(pingCtx)
		cancel()

		if err == nil {
			return pool, nil
		}

		if i < opts.PingRetries-1 {
			select {
			case <-ctx.Done():
				pool.Close()
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
			retryDelay *= 2
		}
	}

	pool.Close()
	return nil, fmt.Errorf("failed to ping database after %d retries: %w", opts.PingRetries, err)
}

// InTx runs fn inside a transaction, committing on nil and rolling back otherwise.
func InTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

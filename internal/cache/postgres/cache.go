// Package postgres stores fetch outcomes in Postgres so several runners can share them.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jobtrees/canonical-checker/internal/cache"
	"github.com/jobtrees/canonical-checker/internal/checker"
)

// Config controls the Postgres connection pool used by the cache.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// Cache implements checker.Cache on a pgx pool.
type Cache struct {
	pool        pool
	lookupQuery string
	storeQuery  string
}

// New connects to Postgres, verifies the connection and ensures the table exists.
func New(ctx context.Context, cfg Config) (*Cache, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("cache.dsn is required")
	}
	if _, err := cache.TableName(cfg.Table); err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	c, err := NewWithPool(ctx, p, cfg.Table)
	if err != nil {
		p.Close()
		return nil, err
	}
	return c, nil
}

// NewWithPool constructs a cache from an existing pool (primarily for testing).
func NewWithPool(ctx context.Context, p pool, table string) (*Cache, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := cache.TableName(table)
	if err != nil {
		return nil, err
	}
	if err := p.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		url TEXT PRIMARY KEY,
		canonical TEXT,
		status INTEGER NOT NULL
	)`, name)
	if _, err := p.Exec(ctx, ddl); err != nil {
		return nil, fmt.Errorf("create cache table: %w", err)
	}
	return &Cache{
		pool:        p,
		lookupQuery: fmt.Sprintf(`SELECT COALESCE(canonical, ''), status FROM %s WHERE url = $1`, name),
		storeQuery: fmt.Sprintf(`INSERT INTO %s (url, canonical, status) VALUES ($1, NULLIF($2, ''), $3)
ON CONFLICT (url) DO UPDATE SET canonical = EXCLUDED.canonical, status = EXCLUDED.status`, name),
	}, nil
}

// Lookup implements checker.Cache.
func (c *Cache) Lookup(ctx context.Context, url string) (checker.CacheEntry, bool, error) {
	var (
		canonical string
		status    int
	)
	err := c.pool.QueryRow(ctx, c.lookupQuery, url).Scan(&canonical, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return checker.CacheEntry{}, false, nil
	}
	if err != nil {
		return checker.CacheEntry{}, false, fmt.Errorf("query cache: %w", err)
	}
	return checker.CacheEntry{URL: url, Canonical: canonical, Status: status}, true, nil
}

// Store implements checker.Cache with an upsert.
func (c *Cache) Store(ctx context.Context, entry checker.CacheEntry) error {
	if _, err := c.pool.Exec(ctx, c.storeQuery, entry.URL, entry.Canonical, entry.Status); err != nil {
		return fmt.Errorf("upsert cache row: %w", err)
	}
	return nil
}

// Close releases pool resources.
func (c *Cache) Close() error {
	if c.pool != nil {
		c.pool.Close()
	}
	return nil
}

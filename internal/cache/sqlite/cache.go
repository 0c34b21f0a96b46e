// Package sqlite stores fetch outcomes in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	// Registers the pure-Go "sqlite" driver.
	_ "modernc.org/sqlite"

	"github.com/jobtrees/canonical-checker/internal/cache"
	"github.com/jobtrees/canonical-checker/internal/checker"
)

// DefaultPath is the cache file created in the working directory.
const DefaultPath = "url_cache.sqlite"

const pragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// Config controls the SQLite cache.
type Config struct {
	Path     string
	Table    string
	MaxConns int
}

// Cache implements checker.Cache on top of database/sql.
type Cache struct {
	db          *sql.DB
	lookupQuery string
	storeQuery  string
	logger      *zap.Logger
}

// New opens (creating if needed) the cache file and its table.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Cache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	table, err := cache.TableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(cfg.Path); dir != "." && cfg.Path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", dsn(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache %s: %w", cfg.Path, err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.Path == ":memory:" {
		// Each connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	c := &Cache{
		db:          db,
		lookupQuery: fmt.Sprintf("SELECT canonical, status FROM %s WHERE url = ?", table),
		storeQuery:  fmt.Sprintf("REPLACE INTO %s (url, canonical, status) VALUES (?, ?, ?)", table),
		logger:      logger.Named("sqlite_cache"),
	}
	if err := c.initSchema(ctx, table); err != nil {
		_ = db.Close()
		return nil, err
	}
	c.logger.Info("url cache ready", zap.String("path", cfg.Path), zap.String("table", table))
	return c, nil
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return "file:" + path + sep + pragmas
}

func (c *Cache) initSchema(ctx context.Context, table string) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite cache: %w", err)
	}
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		url TEXT PRIMARY KEY,
		canonical TEXT,
		status INTEGER
	)`, table)
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create cache table: %w", err)
	}
	return nil
}

// Lookup implements checker.Cache.
func (c *Cache) Lookup(ctx context.Context, url string) (checker.CacheEntry, bool, error) {
	var (
		canonical sql.NullString
		status    sql.NullInt64
	)
	err := c.db.QueryRowContext(ctx, c.lookupQuery, url).Scan(&canonical, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return checker.CacheEntry{}, false, nil
	}
	if err != nil {
		return checker.CacheEntry{}, false, fmt.Errorf("query cache: %w", err)
	}
	return checker.CacheEntry{URL: url, Canonical: canonical.String, Status: int(status.Int64)}, true, nil
}

// Store implements checker.Cache. Absent canonicals are written as NULL.
func (c *Cache) Store(ctx context.Context, entry checker.CacheEntry) error {
	canonical := sql.NullString{String: entry.Canonical, Valid: entry.Canonical != ""}
	if _, err := c.db.ExecContext(ctx, c.storeQuery, entry.URL, canonical, entry.Status); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return nil
}

// Close implements checker.Cache.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("close sqlite cache: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/hazardmap/powergrid/internal/cascade"
	"github.com/hazardmap/powergrid/internal/db"
	"github.com/hazardmap/powergrid/internal/model"
)

// PostgresCache is a coordinate cache shared between machines.
type PostgresCache struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

var cacheColumns = []string{"key", "lat", "lon", "source", "confidence", "display_name", "last_verified"}

// NewPostgresCache connects a pool and verifies it with a ping.
func NewPostgresCache(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresCache, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresCache{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS coordinate_cache (
	key           TEXT PRIMARY KEY,
	lat           DOUBLE PRECISION NOT NULL,
	lon           DOUBLE PRECISION NOT NULL,
	source        TEXT NOT NULL,
	confidence    DOUBLE PRECISION NOT NULL,
	display_name  TEXT NOT NULL DEFAULT '',
	last_verified TEXT NOT NULL DEFAULT '',
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate creates the cache table if it does not exist.
func (c *PostgresCache) Migrate(ctx context.Context) error {
	_, err := c.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (c *PostgresCache) Close() error {
	if c.closeFn != nil {
		c.closeFn()
	}
	return nil
}

// Get implements cascade.Cache.
func (c *PostgresCache) Get(ctx context.Context, key string) (*cascade.CacheEntry, error) {
	var (
		e      cascade.CacheEntry
		source string
	)
	err := c.pool.QueryRow(ctx,
		`SELECT lat, lon, source, confidence, display_name, last_verified FROM coordinate_cache WHERE key = $1`,
		key,
	).Scan(&e.Lat, &e.Lon, &source, &e.Confidence, &e.DisplayName, &e.LastVerified)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get cached %s", key)
	}
	e.Source = model.MatchSource(source)
	return &e, nil
}

// Put implements cascade.Cache.
func (c *PostgresCache) Put(ctx context.Context, key string, e cascade.CacheEntry) error {
	_, err := c.pool.Exec(ctx,
		`INSERT INTO coordinate_cache (key, lat, lon, source, confidence, display_name, last_verified)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (key) DO UPDATE SET lat = $2, lon = $3, source = $4, confidence = $5,
		 display_name = $6, last_verified = $7, updated_at = now()`,
		key, e.Lat, e.Lon, string(e.Source), e.Confidence, e.DisplayName, e.LastVerified,
	)
	return eris.Wrapf(err, "postgres: put cached %s", key)
}

// Import bulk-loads entries, typically a coordinate cache file. An existing
// key is only overwritten when the imported entry was verified on the same
// day or later. It returns the number of rows written.
func (c *PostgresCache) Import(ctx context.Context, entries map[string]cascade.CacheEntry) (int64, error) {
	rows := make([][]any, 0, len(entries))
	for _, key := range sortedKeys(entries) {
		e := entries[key]
		rows = append(rows, []any{key, e.Lat, e.Lon, string(e.Source), e.Confidence, e.DisplayName, e.LastVerified})
	}
	n, err := db.BulkUpsert(ctx, c.pool, db.UpsertConfig{
		Table:        "coordinate_cache",
		Columns:      cacheColumns,
		ConflictKeys: []string{"key"},
		Touch:        []string{"updated_at = now()"},
		NewerThan:    "last_verified",
	}, rows)
	return n, eris.Wrap(err, "postgres: import cache")
}

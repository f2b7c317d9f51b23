// Package store persists verified coordinates and run snapshots.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/hazardmap/powergrid/internal/cascade"
)

// Cache drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverFile     = "file"
	DriverNone     = "none"
)

// Cache is a coordinate cache with a lifecycle. Close flushes pending state.
type Cache interface {
	cascade.Cache
	Close() error
}

// Open returns the coordinate cache for driver, migrated and ready. The
// dsn is a file path for sqlite and file, a connection string for postgres.
func Open(ctx context.Context, driver, dsn string) (Cache, error) {
	switch driver {
	case DriverSQLite:
		s, err := NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		p, err := NewPostgresCache(ctx, dsn, nil)
		if err != nil {
			return nil, err
		}
		if err := p.Migrate(ctx); err != nil {
			_ = p.Close()
			return nil, err
		}
		return p, nil
	case DriverFile:
		return LoadFileCache(dsn)
	case DriverNone, "":
		return memoryCache{cascade.NewMemoryCache(nil)}, nil
	default:
		return nil, eris.Errorf("store: unknown cache driver %q", driver)
	}
}

type memoryCache struct {
	*cascade.MemoryCache
}

func (memoryCache) Close() error { return nil }

package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/hazardmap/powergrid/internal/cascade"
	"github.com/hazardmap/powergrid/internal/geometry"
	"github.com/hazardmap/powergrid/internal/model"
	"github.com/hazardmap/powergrid/internal/normalize"
)

// SQLiteStore is a local coordinate cache and snapshot archive backed by
// modernc.org/sqlite.
type SQLiteStore struct {
	db    *sql.DB
	clock clockwork.Clock
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, eris.New("sqlite: empty path")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, clock: clockwork.NewRealClock()}, nil
}

// SetClock replaces the clock used to stamp snapshots.
func (s *SQLiteStore) SetClock(c clockwork.Clock) {
	s.clock = c
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS coordinate_cache (
	key           TEXT PRIMARY KEY,
	lat           REAL NOT NULL,
	lon           REAL NOT NULL,
	source        TEXT NOT NULL,
	confidence    REAL NOT NULL,
	display_name  TEXT NOT NULL DEFAULT '',
	last_verified TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS snapshots (
	id              TEXT PRIMARY KEY,
	created_at      DATETIME NOT NULL,
	record_count    INTEGER NOT NULL,
	footprint_count INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS facilities (
	snapshot_id    TEXT NOT NULL REFERENCES snapshots(id),
	seq            INTEGER NOT NULL,
	id             TEXT NOT NULL,
	name           TEXT NOT NULL,
	name_key       TEXT NOT NULL,
	utility        TEXT NOT NULL DEFAULT '',
	region         TEXT NOT NULL DEFAULT '',
	voltage_kv     REAL,
	available_kw   REAL,
	lat            REAL,
	lon            REAL,
	matched_source TEXT NOT NULL,
	confidence     REAL NOT NULL,
	notes          TEXT NOT NULL DEFAULT '',
	updated_at     TEXT NOT NULL DEFAULT '',
	geocoded_from  TEXT NOT NULL DEFAULT '',
	is_foreign     INTEGER NOT NULL DEFAULT 0,
	foreign_reason TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (snapshot_id, seq)
);

CREATE TABLE IF NOT EXISTS footprints (
	snapshot_id TEXT NOT NULL REFERENCES snapshots(id),
	seq         INTEGER NOT NULL,
	feature_id  TEXT NOT NULL DEFAULT '',
	name        TEXT NOT NULL DEFAULT '',
	name_key    TEXT NOT NULL DEFAULT '',
	operator    TEXT NOT NULL DEFAULT '',
	source      TEXT NOT NULL,
	voltage_kv  REAL,
	area_m2     REAL NOT NULL,
	geom        BLOB,
	PRIMARY KEY (snapshot_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_facilities_name_key ON facilities(name_key);
CREATE INDEX IF NOT EXISTS idx_footprints_name_key ON footprints(name_key);
`

// Migrate creates the tables if they do not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get implements cascade.Cache.
func (s *SQLiteStore) Get(ctx context.Context, key string) (*cascade.CacheEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT lat, lon, source, confidence, display_name, last_verified FROM coordinate_cache WHERE key = ?`,
		key,
	)
	var (
		e      cascade.CacheEntry
		source string
	)
	err := row.Scan(&e.Lat, &e.Lon, &source, &e.Confidence, &e.DisplayName, &e.LastVerified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get cached %s", key)
	}
	e.Source = model.MatchSource(source)
	return &e, nil
}

// Put implements cascade.Cache.
func (s *SQLiteStore) Put(ctx context.Context, key string, e cascade.CacheEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO coordinate_cache (key, lat, lon, source, confidence, display_name, last_verified)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET lat = excluded.lat, lon = excluded.lon, source = excluded.source,
		 confidence = excluded.confidence, display_name = excluded.display_name, last_verified = excluded.last_verified`,
		key, e.Lat, e.Lon, string(e.Source), e.Confidence, e.DisplayName, e.LastVerified,
	)
	return eris.Wrapf(err, "sqlite: put cached %s", key)
}

// Entries returns every cached location keyed by name.
func (s *SQLiteStore) Entries(ctx context.Context) (map[string]cascade.CacheEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, lat, lon, source, confidence, display_name, last_verified FROM coordinate_cache`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list cache")
	}
	defer rows.Close() //nolint:errcheck

	out := make(map[string]cascade.CacheEntry)
	for rows.Next() {
		var (
			key, source string
			e           cascade.CacheEntry
		)
		if err := rows.Scan(&key, &e.Lat, &e.Lon, &source, &e.Confidence, &e.DisplayName, &e.LastVerified); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan cache row")
		}
		e.Source = model.MatchSource(source)
		out[key] = e
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list cache iterate")
}

// NewRunID returns a fresh snapshot identifier.
func NewRunID() string {
	return uuid.New().String()
}

// Export writes one run's merged records and footprints as a snapshot in a
// single transaction. An empty runID is replaced by a new one; the id used is
// returned.
func (s *SQLiteStore) Export(ctx context.Context, runID string, records []model.CapacityRecord, footprints []model.Footprint) (string, error) {
	if runID == "" {
		runID = NewRunID()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: begin export")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, created_at, record_count, footprint_count) VALUES (?, ?, ?, ?)`,
		runID, s.clock.Now().UTC().Format(time.RFC3339), len(records), len(footprints),
	)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: insert snapshot %s", runID)
	}

	if err := insertFacilities(ctx, tx, runID, records); err != nil {
		return "", err
	}
	if err := insertFootprints(ctx, tx, runID, footprints); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", eris.Wrap(err, "sqlite: commit export")
	}
	return runID, nil
}

func insertFacilities(ctx context.Context, tx *sql.Tx, runID string, records []model.CapacityRecord) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO facilities (snapshot_id, seq, id, name, name_key, utility, region, voltage_kv, available_kw,
		 lat, lon, matched_source, confidence, notes, updated_at, geocoded_from, is_foreign, foreign_reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare facilities")
	}
	defer stmt.Close() //nolint:errcheck

	for i, r := range records {
		_, err := stmt.ExecContext(ctx,
			runID, i, r.ID, r.Name, normalize.Key(r.Name), r.Utility, r.Region, r.VoltageKV, r.AvailableKW,
			r.Lat, r.Lon, string(r.MatchedSource), r.Confidence, r.Notes, r.UpdatedAt, r.GeocodedFrom,
			r.Foreign, r.ForeignReason,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert facility %s", r.ID)
		}
	}
	return nil
}

func insertFootprints(ctx context.Context, tx *sql.Tx, runID string, footprints []model.Footprint) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO footprints (snapshot_id, seq, feature_id, name, name_key, operator, source, voltage_kv, area_m2, geom)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare footprints")
	}
	defer stmt.Close() //nolint:errcheck

	for i, fp := range footprints {
		blob, err := geometry.EncodeWKB(fp.Geometry)
		if err != nil {
			return eris.Wrapf(err, "sqlite: encode footprint %d", i)
		}
		var g any
		if len(blob) > 0 {
			g = blob
		}
		_, err = stmt.ExecContext(ctx,
			runID, i, fp.ID, fp.Name, normalize.Key(fp.Name), fp.Operator, string(fp.Source), fp.VoltageKV,
			geometry.AreaM2(fp.Geometry), g,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert footprint %d", i)
		}
	}
	return nil
}

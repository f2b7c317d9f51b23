package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazardmap/powergrid/internal/cascade"
	"github.com/hazardmap/powergrid/internal/model"
)

// newMockPostgresCache creates a PostgresCache backed by pgxmock for unit testing.
func newMockPostgresCache(t *testing.T) (*PostgresCache, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return &PostgresCache{pool: mock}, mock
}

func TestPostgresCache_Get_Miss(t *testing.T) {
	c, mock := newMockPostgresCache(t)

	mock.ExpectQuery(`SELECT lat, lon, source, confidence, display_name, last_verified FROM coordinate_cache WHERE key = \$1`).
		WithArgs("秩父変電所").
		WillReturnError(pgx.ErrNoRows)

	e, err := c.Get(context.Background(), "秩父変電所")
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCache_Get_Hit(t *testing.T) {
	c, mock := newMockPostgresCache(t)

	mock.ExpectQuery(`FROM coordinate_cache`).
		WithArgs("秩父変電所").
		WillReturnRows(pgxmock.NewRows([]string{"lat", "lon", "source", "confidence", "display_name", "last_verified"}).
			AddRow(35.99, 139.08, "gsi", 0.55, "秩父市", "2025-03-01"))

	e, err := c.Get(context.Background(), "秩父変電所")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, cascade.CacheEntry{
		Lat: 35.99, Lon: 139.08, Source: model.SourceGSI, Confidence: 0.55,
		DisplayName: "秩父市", LastVerified: "2025-03-01",
	}, *e)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCache_Get_Error(t *testing.T) {
	c, mock := newMockPostgresCache(t)

	mock.ExpectQuery(`FROM coordinate_cache`).
		WithArgs("x").
		WillReturnError(errors.New("connection reset"))

	_, err := c.Get(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get cached x")
}

func TestPostgresCache_Put_Upsert(t *testing.T) {
	c, mock := newMockPostgresCache(t)

	mock.ExpectExec(`ON CONFLICT \(key\) DO UPDATE`).
		WithArgs("新宿変電所", 35.69, 139.70, "nominatim", 0.75, "新宿", "2025-04-01").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := c.Put(context.Background(), "新宿変電所", cascade.CacheEntry{
		Lat: 35.69, Lon: 139.70, Source: model.SourceNominatim, Confidence: 0.75,
		DisplayName: "新宿", LastVerified: "2025-04-01",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCache_Migrate(t *testing.T) {
	c, mock := newMockPostgresCache(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS coordinate_cache`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, c.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCache_Import(t *testing.T) {
	c, mock := newMockPostgresCache(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_coordinate_cache"}, cacheColumns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "coordinate_cache"`).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := c.Import(context.Background(), map[string]cascade.CacheEntry{
		"新宿変電所": {Lat: 35.69, Lon: 139.70, Source: model.SourceNominatim, Confidence: 0.75},
		"大井変電所": {Lat: 35.60, Lon: 139.74, Source: model.SourceGSI, Confidence: 0.55},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dial-a-ride/internal/distance"
	"dial-a-ride/internal/models"
	"dial-a-ride/internal/testutil"
)

func setupTestDB(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestDialectFor(t *testing.T) {
	assert.Equal(t, DialectPostgres, DialectFor("postgres://user@localhost/darp"))
	assert.Equal(t, DialectPostgres, DialectFor("postgresql://localhost/darp"))
	assert.Equal(t, DialectSQLite, DialectFor("darp.db"))
	assert.Equal(t, DialectSQLite, DialectFor(":memory:"))
}

func TestRebind(t *testing.T) {
	sqlite := &Store{dialect: DialectSQLite}
	pg := &Store{dialect: DialectPostgres}

	query := "SELECT a FROM t WHERE b = ? AND c = ?"
	assert.Equal(t, query, sqlite.rebind(query))
	assert.Equal(t, "SELECT a FROM t WHERE b = $1 AND c = $2", pg.rebind(query))
}

func TestOpenFileReopensExistingSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", DefaultDBFileName)
	ctx := context.Background()

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.TravelTimes().PutMany(ctx, []models.TravelTimeEntry{
		{Origin: models.Coordinates{Lat: 1, Lng: 1}, Destination: models.Coordinates{Lat: 2, Lng: 2}, DurationSecs: 90},
	}))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	n, err := store.TravelTimes().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHealthCheck(t *testing.T) {
	store := setupTestDB(t)
	require.NoError(t, store.HealthCheck(context.Background()))

	require.NoError(t, store.Close())
	assert.Error(t, store.HealthCheck(context.Background()))
	assert.NoError(t, store.Close())
}

func TestTravelTimesRoundTrip(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	a := models.Coordinates{Lat: 40.7128001, Lng: -74.0060004}
	b := models.Coordinates{Lat: 42.3601, Lng: -71.0589}
	c := models.Coordinates{Lat: 41.0, Lng: -73.0}

	require.NoError(t, store.TravelTimes().PutMany(ctx, []models.TravelTimeEntry{
		{Origin: a, Destination: b, DurationSecs: 3600},
		{Origin: b, Destination: a, DurationSecs: 3500},
	}))

	got, err := store.TravelTimes().GetMany(ctx, []models.RoutePair{
		{Origin: a, Destination: b},
		{Origin: b, Destination: a},
		{Origin: a, Destination: c},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 3600.0, got[models.RoutePair{Origin: a, Destination: b}.Rounded()])
	assert.Equal(t, 3500.0, got[models.RoutePair{Origin: b, Destination: a}.Rounded()])
}

func TestTravelTimesUpsert(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	a := models.Coordinates{Lat: 1, Lng: 1}
	b := models.Coordinates{Lat: 2, Lng: 2}
	pair := models.RoutePair{Origin: a, Destination: b}

	require.NoError(t, store.TravelTimes().PutMany(ctx, []models.TravelTimeEntry{{Origin: a, Destination: b, DurationSecs: 60}}))
	require.NoError(t, store.TravelTimes().PutMany(ctx, []models.TravelTimeEntry{{Origin: a, Destination: b, DurationSecs: 120}}))

	got, err := store.TravelTimes().GetMany(ctx, []models.RoutePair{pair})
	require.NoError(t, err)
	assert.Equal(t, 120.0, got[pair.Rounded()])

	n, err := store.TravelTimes().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, store.TravelTimes().Clear(ctx))
	n, err = store.TravelTimes().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTravelTimesEmpty(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	got, err := store.TravelTimes().GetMany(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, store.TravelTimes().PutMany(ctx, nil))
}

func TestTravelTimesBackCachedRoutefinder(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	mock := testutil.NewMockRoutefinder()
	finder := distance.NewCachedRoutefinder(mock, store.TravelTimes())

	origin := models.Coordinates{Lat: 0, Lng: 0}
	dests := []models.Coordinates{{Lat: 0.01, Lng: 0}, {Lat: 0, Lng: 0.02}}

	first, err := finder.DurationsFrom(ctx, origin, dests)
	require.NoError(t, err)
	second, err := finder.DurationsFrom(ctx, origin, dests)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, mock.Calls(), 1)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if DialectFor(dsn) != DialectPostgres {
		t.Skip("DATABASE_URL not set to a postgres URL")
	}
	ctx := context.Background()

	store, err := Open(dsn)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.HealthCheck(ctx))

	a := models.Coordinates{Lat: -89.12345, Lng: 179.54321}
	b := models.Coordinates{Lat: -89.54321, Lng: 179.12345}
	pair := models.RoutePair{Origin: a, Destination: b}
	require.NoError(t, store.TravelTimes().PutMany(ctx, []models.TravelTimeEntry{{Origin: a, Destination: b, DurationSecs: 42}}))
	require.NoError(t, store.TravelTimes().PutMany(ctx, []models.TravelTimeEntry{{Origin: a, Destination: b, DurationSecs: 43}}))

	got, err := store.TravelTimes().GetMany(ctx, []models.RoutePair{pair})
	require.NoError(t, err)
	assert.Equal(t, 43.0, got[pair.Rounded()])

	report := sampleReport()
	id, err := store.Runs().Save(ctx, report, RunMeta{Vehicles: 2, Capacity: 4})
	require.NoError(t, err)
	defer store.Runs().Delete(ctx, id)

	loaded, err := store.Runs().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, report.Summary, loaded.Summary)
	assert.Len(t, loaded.Routes, len(report.Routes))
}

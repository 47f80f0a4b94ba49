package sqldb_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleepwell/sleepwell-server/internal/domain"
	domainerrors "github.com/sleepwell/sleepwell-server/internal/errors"
	"github.com/sleepwell/sleepwell-server/internal/remote"
	"github.com/sleepwell/sleepwell-server/internal/remote/sqldb"
)

func setupTestGateway(t *testing.T, migrate bool) *sqldb.Gateway {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "remote.db")
	g, err := sqldb.Open(sqldb.Options{Driver: sqldb.DriverSQLite, DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })

	if migrate {
		require.NoError(t, g.Migrate(context.Background(), domain.RemoteCollections...))
	}
	return g
}

func doc(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestOpen_RejectsUnknownDriver(t *testing.T) {
	_, err := sqldb.Open(sqldb.Options{Driver: "oracle", DSN: "x"})
	assert.Error(t, err)

	_, err = sqldb.Open(sqldb.Options{Driver: sqldb.DriverSQLite})
	assert.Error(t, err)
}

func TestOpen_UnreachableDatabaseStillYieldsGateway(t *testing.T) {
	tests := []struct {
		driver string
		dsn    string
	}{
		{sqldb.DriverPostgres, "host=127.0.0.1 port=1 user=sleepwell dbname=sleepwell sslmode=disable connect_timeout=1"},
		{sqldb.DriverMySQL, "sleepwell:secret@tcp(127.0.0.1:1)/sleepwell?timeout=1s"},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			g, err := sqldb.Open(sqldb.Options{Driver: tt.driver, DSN: tt.dsn})
			require.NoError(t, err)
			t.Cleanup(func() { _ = g.Close() })

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			err = g.Probe(ctx)
			assert.ErrorIs(t, err, domainerrors.ErrRemoteUnavailable)
		})
	}
}

func TestGateway_MigrateIsIdempotent(t *testing.T) {
	g := setupTestGateway(t, true)
	require.NoError(t, g.Migrate(context.Background(), domain.RemoteCollections...))
	require.NoError(t, g.Probe(context.Background()))
}

func TestGateway_UpsertAndFetchOne(t *testing.T) {
	g := setupTestGateway(t, true)
	ctx := context.Background()

	require.NoError(t, g.Upsert(ctx, "brands", "casper", doc(t, map[string]any{"id": "casper", "name": "Casper"})))
	require.NoError(t, g.Upsert(ctx, "brands", "casper", doc(t, map[string]any{"id": "casper", "name": "Casper Sleep"})))

	got, err := g.FetchOne(ctx, "brands", "casper")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"casper","name":"Casper Sleep"}`, string(got))

	all, err := g.FetchAll(ctx, "brands", remote.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGateway_FetchOneMissingIsNotFound(t *testing.T) {
	g := setupTestGateway(t, true)

	_, err := g.FetchOne(context.Background(), "products", "404")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestGateway_FetchAllFiltersByOwnerAndOrders(t *testing.T) {
	g := setupTestGateway(t, true)
	ctx := context.Background()

	rows := []map[string]any{
		{"id": "m1", "user_id": "u1", "created_at": "2024-01-01T00:00:00Z", "sleep_position": "back"},
		{"id": "m2", "user_id": "u1", "created_at": "2024-03-01T00:00:00Z", "sleep_position": "side"},
		{"id": "m3", "user_id": "u2", "created_at": "2024-02-01T00:00:00Z", "sleep_position": "side"},
	}
	for _, r := range rows {
		require.NoError(t, g.Upsert(ctx, "measurements", r["id"].(string), doc(t, r)))
	}

	got, err := g.FetchAll(ctx, "measurements", remote.Eq("user_id", "u1").Order("created_at", true))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Contains(t, string(got[0]), `"m2"`)
	assert.Contains(t, string(got[1]), `"m1"`)

	latest, err := g.FetchAll(ctx, "measurements", remote.Eq("user_id", "u1").Order("created_at", true).Take(1))
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Contains(t, string(latest[0]), `"m2"`)

	// Non-column fields are matched against the document.
	side, err := g.FetchAll(ctx, "measurements", remote.Eq("sleep_position", "side"))
	require.NoError(t, err)
	assert.Len(t, side, 2)
}

func TestGateway_NumericOwnerColumn(t *testing.T) {
	g := setupTestGateway(t, true)
	ctx := context.Background()

	require.NoError(t, g.Upsert(ctx, "reviews", "1", doc(t, map[string]any{"id": 1, "product_id": 7, "rating": 5})))
	require.NoError(t, g.Upsert(ctx, "reviews", "2", doc(t, map[string]any{"id": 2, "product_id": 8, "rating": 4})))

	got, err := g.FetchAll(ctx, "reviews", remote.Eq("product_id", "7"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, string(got[0]), `"rating":5`)
}

func TestGateway_ChatHistoryKeyedByUser(t *testing.T) {
	g := setupTestGateway(t, true)
	ctx := context.Background()

	require.NoError(t, g.Upsert(ctx, "chat_history", "u1", doc(t, map[string]any{"user_id": "u1", "messages": []string{"hi"}})))

	got, err := g.FetchAll(ctx, "chat_history", remote.Eq("user_id", "u1"))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestGateway_RemoveIsIdempotent(t *testing.T) {
	g := setupTestGateway(t, true)
	ctx := context.Background()

	require.NoError(t, g.Upsert(ctx, "products", "1", doc(t, map[string]any{"id": 1, "brand_id": "casper"})))
	require.NoError(t, g.Remove(ctx, "products", "1"))
	require.NoError(t, g.Remove(ctx, "products", "1"))

	_, err := g.FetchOne(ctx, "products", "1")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestGateway_MissingTablesAreSchemaMissing(t *testing.T) {
	g := setupTestGateway(t, false)
	ctx := context.Background()

	err := g.Probe(ctx)
	assert.ErrorIs(t, err, domainerrors.ErrSchemaMissing)
	assert.NotErrorIs(t, err, domainerrors.ErrRemoteUnavailable)

	_, err = g.FetchAll(ctx, "products", remote.Filter{})
	assert.ErrorIs(t, err, domainerrors.ErrSchemaMissing)

	err = g.Upsert(ctx, "brands", "casper", json.RawMessage(`{"id":"casper"}`))
	assert.ErrorIs(t, err, domainerrors.ErrSchemaMissing)
}

func TestGateway_ClosedConnectionIsRemoteUnavailable(t *testing.T) {
	g := setupTestGateway(t, true)
	require.NoError(t, g.Close())

	err := g.Probe(context.Background())
	assert.ErrorIs(t, err, domainerrors.ErrRemoteUnavailable)
}

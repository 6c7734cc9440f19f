package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/holiday-engine/holiday"
	"github.com/warp/holiday-engine/store/storetest"
)

// These tests need a disposable database:
//
//	HOLIDAY_TEST_POSTGRES_URL=postgres://localhost:5432/holiday_test?sslmode=disable go test ./store/postgres
//
// Every table is truncated between subtests.
func testURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("HOLIDAY_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("HOLIDAY_TEST_POSTGRES_URL not set")
	}
	return url
}

func openEmpty(t *testing.T, url string) *Store {
	t.Helper()
	ctx := context.Background()

	s, err := New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.RunMigrations(ctx)
	require.NoError(t, err)
	_, err = s.pool.Exec(ctx, "TRUNCATE staff CASCADE")
	require.NoError(t, err)
	return s
}

func TestPostgres_Contract(t *testing.T) {
	url := testURL(t)
	storetest.Run(t, func(t *testing.T) holiday.TxStore {
		return openEmpty(t, url)
	})
}

func TestPostgres_RunMigrationsIsIdempotent(t *testing.T) {
	url := testURL(t)
	s := openEmpty(t, url)

	// WHEN migrations run on an up to date schema
	ran, err := s.RunMigrations(context.Background())

	// THEN nothing is applied twice
	require.NoError(t, err)
	assert.Empty(t, ran)

	var n int
	err = s.pool.QueryRow(context.Background(),
		"SELECT COUNT(*) FROM schema_migrations WHERE filename = '0001_holiday_schema.sql'").Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPostgres_NewFailsOnUnreachableServer(t *testing.T) {
	_, err := New(context.Background(), "postgres://nobody@127.0.0.1:1/none?connect_timeout=1")

	assert.Error(t, err)
}

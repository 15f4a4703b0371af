package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) (*SQLiteRunStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := NewSQLiteRunStore(path)
	require.NoError(t, err)
	return s, path
}

func TestNewSQLiteRunStore(t *testing.T) {
	s, path := newTestSQLiteStore(t)
	defer s.Close()

	assert.FileExists(t, path)
}

func TestSQLiteRunStore_Contract(t *testing.T) {
	s, _ := newTestSQLiteStore(t)
	defer s.Close()
	runStoreContract(t, s)
}

func TestSQLiteRunStore_Persistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")
	created := time.Date(2026, 5, 6, 7, 8, 9, 123456789, time.UTC)

	s, err := NewSQLiteRunStore(path)
	require.NoError(t, err)
	run := newTestRun(testID1, created)
	run.Seed = 1<<64 - 1
	require.NoError(t, s.SaveRun(ctx, run))
	require.NoError(t, s.Close())

	s2, err := NewSQLiteRunStore(path)
	require.NoError(t, err, "reopen")
	defer s2.Close()

	got, err := s2.GetRun(ctx, testID1)
	require.NoError(t, err)
	assert.Equal(t, run.Seed, got.Seed)
	assert.True(t, got.CreatedAt.Equal(created), "CreatedAt = %v, want %v", got.CreatedAt, created)
	assert.Equal(t, run.StockNames, got.StockNames)
}

func TestSQLiteRunStore_DeleteCascadesDays(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSQLiteStore(t)
	defer s.Close()

	require.NoError(t, s.SaveRun(ctx, newTestRun(testID1, time.Now())))
	require.NoError(t, s.DeleteRun(ctx, testID1))

	var n int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM run_days WHERE run_id = ?`, testID1).Scan(&n))
	assert.Zero(t, n, "run_days rows after delete")
}

func TestSQLiteRunStore_ConnectionPoolSettings(t *testing.T) {
	s, _ := newTestSQLiteStore(t)
	defer s.Close()

	assert.Equal(t, 1, s.db.Stats().MaxOpenConnections)
}

package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "schema.db")+"?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInitSchema_Fresh(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	require.NoError(t, InitSchema(ctx, db))
	version, err := getSchemaVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)

	for _, table := range []string{"runs", "run_days"} {
		var name string
		err := db.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		assert.NoError(t, err, "table %s missing", table)
	}
}

func TestInitSchema_Idempotent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	for i := 0; i < 2; i++ {
		require.NoError(t, InitSchema(ctx, db), "pass %d", i)
	}
}

func TestInitSchema_RejectsNewerVersion(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	require.NoError(t, InitSchema(ctx, db))
	_, err := db.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`, SchemaVersion+1)
	require.NoError(t, err)

	err = InitSchema(ctx, db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestValidateIntegrity_ForeignKeyViolation(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	require.NoError(t, InitSchema(ctx, db))
	require.NoError(t, ValidateIntegrity(ctx, db), "clean database")

	// Orphan a day row behind the enforcement's back.
	_, err := db.ExecContext(ctx, `PRAGMA foreign_keys = OFF`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx,
		`INSERT INTO run_days (run_id, day, stocks) VALUES ('missing', 0, '[1]')`)
	require.NoError(t, err)

	err = ValidateIntegrity(ctx, db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "foreign_key_check")
}

package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRun builds a small, valid vaccination run with three days.
func newTestRun(id string, created time.Time) *Run {
	return &Run{
		ID:         id,
		Name:       "baseline",
		Variant:    "vaccination",
		Seed:       42,
		Horizon:    2,
		Agents:     100,
		CreatedAt:  created,
		Config:     []byte(`{"variant":"vaccination"}`),
		StockNames: []string{"susceptible", "infected", "quarantined", "recovered"},
		FlowNames:  []string{"vaccinations"},
		Days: []Day{
			{Day: 0, Stocks: []float64{99, 1, 0, 0}},
			{Day: 1, Stocks: []float64{97.5, 1.4, 0.1, 1}, Driver: 0.12, Counts: []int{3}, Feedback: 0.03},
			{Day: 2, Stocks: []float64{95, 1.9, 0.3, 2.8}, Driver: 0.17, Counts: []int{4}, Feedback: 0.04},
		},
		FinalCounts: map[string]int{"inactive": 93, "active": 7},
	}
}

const (
	testID1 = "0b6d7a52-5f0e-4c1c-9d5c-2f4b4a1e0c01"
	testID2 = "0b6d7a52-5f0e-4c1c-9d5c-2f4b4a1e0c02"
	testID3 = "7f3e2c10-1a2b-4c3d-8e9f-0a1b2c3d4e5f"
)

func TestRun_Validate(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name    string
		mutate  func(r *Run)
		wantErr string
	}{
		{"valid", func(r *Run) {}, ""},
		{"missing id", func(r *Run) { r.ID = "" }, "ID is required"},
		{"id not uuid", func(r *Run) { r.ID = "run-1" }, "not a UUID"},
		{"missing variant", func(r *Run) { r.Variant = "" }, "variant is required"},
		{"no stock names", func(r *Run) { r.StockNames = nil }, "stock names"},
		{"day out of order", func(r *Run) { r.Days[1].Day = 5 }, "stored at position 1"},
		{"short stocks", func(r *Run) { r.Days[2].Stocks = []float64{1} }, "1 stocks for 4 names"},
		{"missing counts", func(r *Run) { r.Days[1].Counts = nil }, "0 counts for 1 flows"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRun(testID1, base)
			tt.mutate(r)
			err := r.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRun_Totals(t *testing.T) {
	r := newTestRun(testID1, time.Now())
	assert.Equal(t, []int{7}, r.Totals())
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	assert.NotEqual(t, a, b)
	assert.NoError(t, newTestRun(a, time.Now()).Validate())
}

func TestResolveID(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryRunStore()
	now := time.Now()
	for _, id := range []string{testID1, testID2, testID3} {
		require.NoError(t, s.SaveRun(ctx, newTestRun(id, now)))
	}

	tests := []struct {
		name    string
		prefix  string
		want    string
		wantErr error
	}{
		{"full id", testID1, testID1, nil},
		{"unique prefix", "7f3e", testID3, nil},
		{"ambiguous prefix", "0b6d", "", ErrAmbiguous},
		{"no match", "ffff", "", ErrNotFound},
		{"empty", "", "", ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveID(ctx, s, tt.prefix)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRunStore(t *testing.T) {
	mem, err := NewRunStore(BackendMemory, "")
	require.NoError(t, err)
	assert.IsType(t, &InMemoryRunStore{}, mem)
	mem.Close()

	path := t.TempDir() + "/nested/runs.db"
	db, err := NewRunStore(BackendSQLite, path)
	require.NoError(t, err)
	defer db.Close()
	sq, ok := db.(*SQLiteRunStore)
	require.True(t, ok, "NewRunStore(sqlite) = %T, want *SQLiteRunStore", db)
	assert.Equal(t, path, sq.Path())

	_, err = NewRunStore("postgres", "")
	assert.Error(t, err, "unknown backend")
}

func TestDefaultDBPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	got, err := DefaultDBPath()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(got, ".hybridsim/"+DBFileName), "DefaultDBPath() = %q", got)
}

// runStoreContract exercises behavior every RunStore must share.
func runStoreContract(t *testing.T, s RunStore) {
	t.Helper()
	ctx := context.Background()
	older := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	require.NoError(t, s.SaveRun(ctx, newTestRun(testID1, older)))
	require.NoError(t, s.SaveRun(ctx, newTestRun(testID3, newer)))

	assert.ErrorIs(t, s.SaveRun(ctx, newTestRun(testID1, older)), ErrExists, "duplicate SaveRun")

	bad := newTestRun(testID2, older)
	bad.Days[1].Stocks = nil
	assert.Error(t, s.SaveRun(ctx, bad), "SaveRun accepted an inconsistent run")

	got, err := s.GetRun(ctx, testID1)
	require.NoError(t, err)
	want := newTestRun(testID1, older)
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.Variant, got.Variant)
	assert.Equal(t, want.Seed, got.Seed)
	assert.True(t, got.CreatedAt.Equal(want.CreatedAt), "CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
	assert.Equal(t, string(want.Config), string(got.Config))
	require.Len(t, got.Days, 3)
	assert.Nil(t, got.Days[0].Counts, "day 0 has no flows")
	assert.Equal(t, 2.8, got.Days[2].Stocks[3])
	assert.Equal(t, []int{4}, got.Days[2].Counts)
	assert.Equal(t, 0.04, got.Days[2].Feedback)
	assert.Equal(t, 7, got.FinalCounts["active"])

	// Returned runs are copies.
	got.Days[1].Stocks[0] = -1
	again, err := s.GetRun(ctx, testID1)
	require.NoError(t, err)
	assert.Equal(t, 97.5, again.Days[1].Stocks[0], "mutating a returned run changed stored state")

	list, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, []string{testID3, testID1}, []string{list[0].ID, list[1].ID}, "newest first")

	_, err = s.GetRun(ctx, testID2)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.DeleteRun(ctx, testID1))
	assert.ErrorIs(t, s.DeleteRun(ctx, testID1), ErrNotFound, "second DeleteRun")
	_, err = s.GetRun(ctx, testID1)
	assert.ErrorIs(t, err, ErrNotFound)
}

package backup

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvandessel/hybridsim/internal/store"
)

func testRun(id string) *store.Run {
	return &store.Run{
		ID:         id,
		Variant:    "membership",
		Seed:       3,
		Horizon:    1,
		Agents:     10,
		CreatedAt:  time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC),
		StockNames: []string{"potential", "member", "dropout"},
		FlowNames:  []string{"new_members", "new_dropouts", "new_potentials"},
		Days: []store.Day{
			{Day: 0, Stocks: []float64{9, 1, 0}},
			{Day: 1, Stocks: []float64{8.8, 1.17, 0.03}, Driver: 0.117, Counts: []int{1, 0, 0}, Feedback: 0.021},
		},
		FinalCounts: map[string]int{"potential": 8, "member": 2},
	}
}

const (
	runA = "aaaaaaaa-0000-4000-8000-000000000001"
	runB = "bbbbbbbb-0000-4000-8000-000000000002"
)

func seededStore(t *testing.T, ids ...string) store.RunStore {
	t.Helper()
	s := store.NewInMemoryRunStore()
	for _, id := range ids {
		require.NoError(t, s.SaveRun(context.Background(), testRun(id)), "SaveRun(%s)", id)
	}
	return s
}

func TestBackupRestore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "archive"+FileExt)

	a, err := Backup(ctx, seededStore(t, runA, runB), path)
	require.NoError(t, err)
	require.Len(t, a.Runs, 2)

	dst := seededStore(t, runA)
	res, err := Restore(ctx, dst, path)
	require.NoError(t, err)
	assert.Equal(t, &RestoreResult{RunsRestored: 1, RunsSkipped: 1}, res)

	got, err := dst.GetRun(ctx, runB)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 0}, got.Days[1].Counts)
	assert.Equal(t, 1.17, got.Days[1].Stocks[1])
}

func TestWriteArchive_Header(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a"+FileExt)
	created := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	a := &Archive{
		CreatedAt: created,
		Metadata:  map[string]string{"host": "ci"},
		Runs:      []store.Run{*testRun(runA), *testRun(runB)},
	}
	require.NoError(t, WriteArchive(path, a))

	h, err := ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, h.Version)
	assert.Equal(t, 2, h.RunCount)
	assert.Equal(t, 4, h.DayCount)
	assert.True(t, h.CreatedAt.Equal(created), "created_at = %v", h.CreatedAt)
	assert.Equal(t, "ci", h.Metadata["host"])
	assert.True(t, strings.HasPrefix(h.Checksum, "sha256:"), "checksum = %q", h.Checksum)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestVerifyChecksum_DetectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a"+FileExt)
	require.NoError(t, WriteArchive(path, &Archive{Runs: []store.Run{*testRun(runA)}}))
	require.NoError(t, VerifyChecksum(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	nl := bytes.IndexByte(data, '\n')
	require.True(t, nl >= 0 && nl < len(data)-1, "archive has no payload")
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0600))

	err = VerifyChecksum(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")

	_, err = ReadArchive(path)
	assert.Error(t, err, "ReadArchive() accepted a corrupted archive")
}

func TestReadHeader_RejectsOtherFiles(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{"plain json", `{"runs":[]}` + "\n"},
		{"future version", `{"version":99}` + "\n"},
		{"no newline", `{"version":1}`},
		{"garbage", "not json\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_"))
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0600))
			_, err := ReadHeader(path)
			assert.Error(t, err, "ReadHeader() accepted a non-archive file")
		})
	}
}

func TestGeneratePath(t *testing.T) {
	got := GeneratePath(filepath.Join("tmp", "b"), time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC))
	assert.Equal(t, filepath.Join("tmp", "b", "hybridsim-backup-20261019-083000.json.gz"), got)
}

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/hybridsim/internal/backup"
	"github.com/nvandessel/hybridsim/internal/config"
	"github.com/nvandessel/hybridsim/internal/pathutil"
	"github.com/nvandessel/hybridsim/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateHome sets HOME to a temp directory to avoid touching the real
// ~/.hybridsim/. MUST be called for any test that creates stores.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := filepath.Join(t.TempDir(), "home")
	require.NoError(t, os.MkdirAll(home, 0700), "create temp home")
	t.Setenv("HOME", home)
	for _, name := range []string{"HYBRIDSIM_SEED", "HYBRIDSIM_HORIZON", "HYBRIDSIM_AGENTS", "HYBRIDSIM_CAPACITY", "HYBRIDSIM_LOG_LEVEL"} {
		t.Setenv(name, "")
	}
	return home
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	want := []string{"version", "run", "validate", "runs", "export", "backup", "restore"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if assert.NoError(t, err, "subcommand %q", name) {
			assert.NotSame(t, root, cmd, "subcommand %q not registered", name)
		}
	}
	for _, flag := range []string{"json", "config", "log-level", "store", "db"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), "persistent flag --%s missing", flag)
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "hybridsim version "+version+"\n", out)

	out, err = execute(t, "version", "--json")
	require.NoError(t, err)
	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, version, got["version"])
}

func TestValidateCmd(t *testing.T) {
	isolateHome(t)

	out, err := execute(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration OK")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agents: 0\nhorizon: -1\n"), 0600))

	out, err = execute(t, "validate", "--config", path, "--json")
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))

	var got struct {
		Valid  bool     `json:"valid"`
		Errors []string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.False(t, got.Valid)
	assert.GreaterOrEqual(t, len(got.Errors), 2)
}

func TestValidationProblems(t *testing.T) {
	assert.Empty(t, validationProblems(nil))

	single := &config.ValidationError{Field: "agents", Value: 0, Reason: "must be positive"}
	assert.Equal(t, []string{single.Error()}, validationProblems(single))

	joined := errors.Join(single, &config.ValidationError{Field: "horizon", Value: -1, Reason: "must be positive"})
	assert.Len(t, validationProblems(joined), 2)
}

func TestRunCmd_InvalidFlags(t *testing.T) {
	isolateHome(t)
	_, err := execute(t, "run", "--store", "memory", "--agents", "0")
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))
}

func TestRunCmd_NoSave(t *testing.T) {
	isolateHome(t)
	db := filepath.Join(t.TempDir(), "runs.db")

	out, err := execute(t, "run", "--db", db, "--no-save", "--agents", "40", "--horizon", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Final stocks:")
	assert.NotContains(t, out, "Saved.")

	_, statErr := os.Stat(db)
	assert.True(t, os.IsNotExist(statErr), "--no-save must not create the database")
}

func TestRunWorkflow(t *testing.T) {
	home := isolateHome(t)
	dir := t.TempDir()
	db := filepath.Join(dir, "runs.db")

	out, err := execute(t, "run", "--db", db, "--json", "--seed", "3", "--agents", "40", "--horizon", "5", "--name", "  smoke\x00 ")
	require.NoError(t, err)

	var run struct {
		RunID       string             `json:"run_id"`
		Variant     string             `json:"variant"`
		Days        int                `json:"days"`
		FinalStocks map[string]float64 `json:"final_stocks"`
		FinalCounts map[string]int     `json:"final_counts"`
		Saved       bool               `json:"saved"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &run))
	assert.Equal(t, "vaccination", run.Variant)
	assert.Equal(t, 5, run.Days)
	assert.Len(t, run.FinalStocks, 4)
	assert.True(t, run.Saved)

	total := 0
	for _, n := range run.FinalCounts {
		total += n
	}
	assert.Equal(t, 40, total)

	t.Run("list", func(t *testing.T) {
		out, err := execute(t, "runs", "list", "--db", db, "--json")
		require.NoError(t, err)
		var got struct {
			Runs  []store.RunSummary `json:"runs"`
			Count int                `json:"count"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		require.Equal(t, 1, got.Count)
		assert.Equal(t, run.RunID, got.Runs[0].ID)
		assert.Equal(t, "smoke", got.Runs[0].Name)

		out, err = execute(t, "runs", "list", "--db", db)
		require.NoError(t, err)
		assert.Contains(t, out, run.RunID[:8])
	})

	t.Run("show", func(t *testing.T) {
		out, err := execute(t, "runs", "show", run.RunID[:6], "--db", db, "--json")
		require.NoError(t, err)
		var got store.Run
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, run.RunID, got.ID)
		assert.Len(t, got.Days, 6)

		out, err = execute(t, "runs", "show", run.RunID, "--db", db, "--days")
		require.NoError(t, err)
		assert.Contains(t, out, "Variant: vaccination")
		assert.Contains(t, out, "day,")
	})

	t.Run("show unknown", func(t *testing.T) {
		_, err := execute(t, "runs", "show", "ffffffff", "--db", db)
		require.Error(t, err)
		assert.True(t, errors.Is(err, store.ErrNotFound))
	})

	t.Run("export csv", func(t *testing.T) {
		path := filepath.Join(dir, "out", "run.csv")
		_, err := execute(t, "export", run.RunID, "--db", db, "--output", path)
		require.NoError(t, err)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		assert.Len(t, lines, 7, "header plus days 0..5")
	})

	t.Run("export bad format", func(t *testing.T) {
		_, err := execute(t, "export", run.RunID, "--db", db, "--format", "xml")
		require.Error(t, err)
	})

	t.Run("backup and restore", func(t *testing.T) {
		archive := filepath.Join(home, ".hybridsim", "backups", backup.FilePrefix+"test"+backup.FileExt)
		out, err := execute(t, "backup", "--db", db, "--output", archive, "--json")
		require.NoError(t, err)
		var got map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.EqualValues(t, 1, got["run_count"])

		out, err = execute(t, "backup", "verify", archive)
		require.NoError(t, err)
		assert.Contains(t, out, "OK:")

		fresh := filepath.Join(dir, "fresh.db")
		out, err = execute(t, "restore", archive, "--db", fresh, "--json")
		require.NoError(t, err)
		var res backup.RestoreResult
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		assert.Equal(t, 1, res.RunsRestored)

		// Restoring again skips the run.
		out, err = execute(t, "restore", archive, "--db", fresh, "--json")
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		assert.Equal(t, 0, res.RunsRestored)
		assert.Equal(t, 1, res.RunsSkipped)
	})

	t.Run("backup outside allowed dirs", func(t *testing.T) {
		_, err := execute(t, "backup", "--db", db, "--output", filepath.Join(dir, "elsewhere.json.gz"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, pathutil.ErrOutsideAllowed))
	})

	t.Run("delete", func(t *testing.T) {
		_, err := execute(t, "runs", "delete", run.RunID[:8], "--db", db)
		require.NoError(t, err)

		out, err := execute(t, "runs", "list", "--db", db)
		require.NoError(t, err)
		assert.Contains(t, out, "No runs stored.")
	})
}

func TestBackupList_Empty(t *testing.T) {
	isolateHome(t)
	out, err := execute(t, "backup", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No backups found")
}

func TestRetentionFromFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    any
		wantErr bool
	}{
		{"default", nil, backup.CountPolicy{MaxCount: 10}, false},
		{"keep", []string{"--keep", "3"}, backup.CountPolicy{MaxCount: 3}, false},
		{"size", []string{"--max-size", "1KB"}, backup.SizePolicy{MaxTotalBytes: 1000}, false},
		{"bad age", []string{"--max-age", "soon"}, nil, true},
		{"bad size", []string{"--max-size", "lots"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newBackupCmd()
			require.NoError(t, cmd.Flags().Parse(tt.args))
			got, err := retentionFromFlags(cmd)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	cmd := newBackupCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--keep", "2", "--max-age", "7d"}))
	got, err := retentionFromFlags(cmd)
	require.NoError(t, err)
	assert.IsType(t, backup.AnyPolicy{}, got)
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abc", shortID("abc"))
	assert.Equal(t, "01234567", shortID("0123456789"))
}

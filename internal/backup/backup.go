// Package backup archives stored simulation runs to compressed files and
// restores them into a run store.
package backup

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/nvandessel/hybridsim/internal/store"
)

// FilePrefix and FileExt name the archives GeneratePath creates.
const (
	FilePrefix = "hybridsim-backup-"
	FileExt    = ".json.gz"
)

// Archive is the payload of an archive file.
type Archive struct {
	CreatedAt time.Time         `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Runs      []store.Run       `json:"runs"`
}

// DefaultDir returns the default archive directory (~/.hybridsim/backups/).
func DefaultDir() (string, error) {
	dir, err := store.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "backups"), nil
}

// GeneratePath returns a timestamped archive path inside dir.
func GeneratePath(dir string, now time.Time) string {
	return filepath.Join(dir, FilePrefix+now.UTC().Format("20060102-150405")+FileExt)
}

// Backup writes every run in s to an archive at path.
func Backup(ctx context.Context, s store.RunStore, path string) (*Archive, error) {
	summaries, err := s.ListRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	a := &Archive{
		CreatedAt: time.Now().UTC(),
		Runs:      make([]store.Run, 0, len(summaries)),
	}
	for _, sum := range summaries {
		run, err := s.GetRun(ctx, sum.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load run %s: %w", sum.ID, err)
		}
		a.Runs = append(a.Runs, *run)
	}

	if err := WriteArchive(path, a); err != nil {
		return nil, err
	}
	return a, nil
}

// RestoreResult counts what a restore did.
type RestoreResult struct {
	RunsRestored int `json:"runs_restored"`
	RunsSkipped  int `json:"runs_skipped"`
}

// Restore saves every run in the archive at path into s. Runs whose ID is
// already stored are skipped.
func Restore(ctx context.Context, s store.RunStore, path string) (*RestoreResult, error) {
	a, err := ReadArchive(path)
	if err != nil {
		return nil, err
	}

	result := &RestoreResult{}
	for i := range a.Runs {
		err := s.SaveRun(ctx, &a.Runs[i])
		switch {
		case err == nil:
			result.RunsRestored++
		case errors.Is(err, store.ErrExists):
			result.RunsSkipped++
		default:
			return result, fmt.Errorf("failed to restore run %s: %w", a.Runs[i].ID, err)
		}
	}
	return result, nil
}

package store

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// BackendSQLite persists runs in a SQLite database file.
	BackendSQLite = "sqlite"

	// BackendMemory keeps runs for the lifetime of the process only.
	BackendMemory = "memory"

	// DBFileName is the database file name inside the data directory.
	DBFileName = "runs.db"
)

// DataDir returns the path to the global .hybridsim directory.
// On Unix: ~/.hybridsim
// On Windows: %USERPROFILE%\.hybridsim
func DataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".hybridsim"), nil
}

// DefaultDBPath returns the database path used when none is configured.
func DefaultDBPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DBFileName), nil
}

// NewRunStore opens the backend named by backend. An empty path selects
// DefaultDBPath for the sqlite backend and is ignored for memory.
func NewRunStore(backend, path string) (RunStore, error) {
	switch backend {
	case BackendMemory:
		return NewInMemoryRunStore(), nil
	case BackendSQLite, "":
		if path == "" {
			p, err := DefaultDBPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		return NewSQLiteRunStore(path)
	default:
		return nil, fmt.Errorf("unknown store backend %q (want %s or %s)", backend, BackendSQLite, BackendMemory)
	}
}

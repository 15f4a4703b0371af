// Package pathutil confines user-supplied output paths to known directories.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideAllowed is returned when a path resolves outside every allowed
// directory.
var ErrOutsideAllowed = errors.New("path is outside allowed directories")

// RedactPath shortens path to .../<parent>/<base> for error messages.
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(cleaned))
	if parent == "." || parent == string(filepath.Separator) {
		return filepath.Base(cleaned)
	}
	return ".../" + parent + "/" + filepath.Base(cleaned)
}

// ArchiveDirs returns the directories archives may be written to:
// <dataDir>/backups and <projectRoot>/.hybridsim/backups.
func ArchiveDirs(dataDir, projectRoot string) []string {
	return []string{
		filepath.Join(dataDir, "backups"),
		filepath.Join(projectRoot, ".hybridsim", "backups"),
	}
}

// ValidatePath checks that path lies inside one of allowed once symlinks on
// its existing ancestors are resolved. The file itself need not exist.
func ValidatePath(path string, allowed []string) error {
	switch {
	case path == "":
		return errors.New("path validation failed: path is empty")
	case len(allowed) == 0:
		return errors.New("path validation failed: no allowed directories configured")
	case strings.ContainsRune(path, '\x00'):
		return errors.New("path validation failed: path contains null byte")
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}
	dir, err := resolve(filepath.Dir(abs))
	if err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}
	target := filepath.Join(dir, filepath.Base(abs))

	for _, a := range allowed {
		base, err := filepath.Abs(filepath.Clean(a))
		if err != nil {
			continue
		}
		if base, err = resolve(base); err != nil {
			continue
		}
		if within(target, base) {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrOutsideAllowed, RedactPath(abs))
}

// resolve evaluates symlinks on the deepest existing ancestor of dir and
// re-appends the missing tail.
func resolve(dir string) (string, error) {
	if r, err := filepath.EvalSymlinks(dir); err == nil {
		return r, nil
	}
	parent := filepath.Dir(dir)
	if parent == dir {
		return "", fmt.Errorf("cannot resolve %s", RedactPath(dir))
	}
	r, err := resolve(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(r, filepath.Base(dir)), nil
}

func within(path, base string) bool {
	return path == base || strings.HasPrefix(path, base+string(os.PathSeparator))
}

package pathutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePath(t *testing.T) {
	allowed := t.TempDir()
	other := t.TempDir()
	sub := filepath.Join(allowed, "nested")
	require.NoError(t, os.MkdirAll(sub, 0700))

	tests := []struct {
		name    string
		path    string
		allowed []string
		wantErr bool
	}{
		{"inside", filepath.Join(allowed, "a.json.gz"), []string{allowed}, false},
		{"nested", filepath.Join(sub, "a.json.gz"), []string{allowed}, false},
		{"missing parents", filepath.Join(allowed, "x", "y", "a.json.gz"), []string{allowed}, false},
		{"the dir itself", allowed, []string{allowed}, false},
		{"second allowed dir", filepath.Join(other, "a.json.gz"), []string{allowed, other}, false},
		{"dot-dot escape", filepath.Join(allowed, "..", "a.json.gz"), []string{allowed}, true},
		{"other dir", filepath.Join(other, "a.json.gz"), []string{allowed}, true},
		{"prefix sibling", allowed + "-evil/a.json.gz", []string{allowed}, true},
		{"empty", "", []string{allowed}, true},
		{"no allowed dirs", filepath.Join(allowed, "a"), nil, true},
		{"null byte", filepath.Join(allowed, "a\x00b"), []string{allowed}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path, tt.allowed)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePath_OutsideIsSentinel(t *testing.T) {
	err := ValidatePath(filepath.Join(t.TempDir(), "a"), []string{t.TempDir()})
	assert.ErrorIs(t, err, ErrOutsideAllowed)
}

func TestValidatePath_SymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	allowed := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(allowed, "link")
	require.NoError(t, os.Symlink(outside, link))
	assert.Error(t, ValidatePath(filepath.Join(link, "a.json.gz"), []string{allowed}), "symlinked escape should be rejected")
}

func TestRedactPath(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"runs.db", "runs.db"},
		{"/runs.db", "runs.db"},
		{"/home/user/.hybridsim/runs.db", ".../.hybridsim/runs.db"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RedactPath(tt.in), "RedactPath(%q)", tt.in)
	}
}

func TestArchiveDirs(t *testing.T) {
	want := []string{filepath.Join("/data", "backups"), filepath.Join("/proj", ".hybridsim", "backups")}
	assert.Equal(t, want, ArchiveDirs("/data", "/proj"))
}

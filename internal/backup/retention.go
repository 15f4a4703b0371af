package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Info describes one archive on disk.
type Info struct {
	Path      string
	Size      int64
	CreatedAt time.Time
	Runs      int
}

// RetentionPolicy selects the archives to keep from a newest-first list.
type RetentionPolicy interface {
	Apply(archives []Info) (keep []Info)
}

// CountPolicy keeps the MaxCount newest archives.
type CountPolicy struct {
	MaxCount int
}

func (p CountPolicy) Apply(archives []Info) []Info {
	if len(archives) <= p.MaxCount {
		return archives
	}
	return archives[:max(p.MaxCount, 0)]
}

// AgePolicy keeps archives created within MaxAge of Now.
type AgePolicy struct {
	MaxAge time.Duration
	Now    func() time.Time // nil means time.Now
}

func (p AgePolicy) Apply(archives []Info) []Info {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	cutoff := now().Add(-p.MaxAge)
	var keep []Info
	for _, a := range archives {
		if a.CreatedAt.After(cutoff) {
			keep = append(keep, a)
		}
	}
	return keep
}

// SizePolicy keeps the newest archives whose combined size fits in
// MaxTotalBytes. The newest archive is always kept.
type SizePolicy struct {
	MaxTotalBytes int64
}

func (p SizePolicy) Apply(archives []Info) []Info {
	var keep []Info
	var total int64
	for _, a := range archives {
		if total+a.Size > p.MaxTotalBytes && len(keep) > 0 {
			break
		}
		keep = append(keep, a)
		total += a.Size
	}
	return keep
}

// AnyPolicy keeps an archive when at least one policy keeps it.
type AnyPolicy []RetentionPolicy

func (ps AnyPolicy) Apply(archives []Info) []Info {
	kept := make(map[string]bool)
	for _, p := range ps {
		for _, a := range p.Apply(archives) {
			kept[a.Path] = true
		}
	}
	var out []Info
	for _, a := range archives {
		if kept[a.Path] {
			out = append(out, a)
		}
	}
	return out
}

// List returns the archives in dir, newest first. A missing directory
// holds no archives.
func List(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var out []Info
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, FilePrefix) || !strings.HasSuffix(name, FileExt) {
			continue
		}
		path := filepath.Join(dir, name)
		fi, err := e.Info()
		if err != nil {
			continue
		}
		info := Info{Path: path, Size: fi.Size(), CreatedAt: fi.ModTime()}
		if h, err := ReadHeader(path); err == nil {
			info.CreatedAt = h.CreatedAt
			info.Runs = h.RunCount
		}
		out = append(out, info)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Path > out[j].Path
	})
	return out, nil
}

// ApplyRetention deletes the archives in dir that policy does not keep.
func ApplyRetention(dir string, policy RetentionPolicy) (deleted []string, err error) {
	archives, err := List(dir)
	if err != nil {
		return nil, err
	}

	keep := make(map[string]bool)
	for _, a := range policy.Apply(archives) {
		keep[a.Path] = true
	}
	for _, a := range archives {
		if keep[a.Path] {
			continue
		}
		if err := os.Remove(a.Path); err != nil {
			return deleted, fmt.Errorf("removing %s: %w", filepath.Base(a.Path), err)
		}
		deleted = append(deleted, a.Path)
	}
	return deleted, nil
}

// ParseDuration parses Go durations plus day ("30d") and week ("2w")
// suffixes.
func ParseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}
	switch s[len(s)-1] {
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown duration suffix in %q", s)
	}
}

// ParseSize parses sizes like "100MB" or "1.5 GiB".
func ParseSize(s string) (int64, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return int64(n), nil
}

// Package logging provides leveled logging and per-day run tracing for
// hybridsim. It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - A DayLogger for structured JSONL day traces (.hybridsim/days.jsonl)
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace is a custom slog level below Debug. At this level the solver
// reports every segment it integrates.
const LevelTrace = slog.LevelDebug - 4

// DayFileName is the JSONL file DayLogger appends to.
const DayFileName = "days.jsonl"

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// DayRecord is one simulated day of a run.
type DayRecord struct {
	RunID    string         `json:"run_id"`
	Day      int            `json:"day"`
	Driver   float64        `json:"driver"`
	Stocks   []float64      `json:"stocks"`
	Counts   map[string]int `json:"counts"`
	Feedback float64        `json:"feedback"`
}

// DayLogger writes one JSON line per simulated day.
// It is safe for concurrent use. A nil DayLogger is safe to use;
// all methods are no-ops on nil receiver.
type DayLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewDayLogger creates a day logger writing to dir/days.jsonl.
// At "info" level (the default), returns nil and no file is created.
// At "debug" or "trace" level, the file is opened for append.
// Returns nil if the file cannot be opened. All methods are nil-safe.
func NewDayLogger(dir string, level string) *DayLogger {
	if ParseLevel(level) == slog.LevelInfo {
		return nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}

	f, err := os.OpenFile(filepath.Join(dir, DayFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}
	return &DayLogger{file: f}
}

// Log appends rec with a wall-clock "time" field.
// Safe to call on nil receiver.
func (dl *DayLogger) Log(rec DayRecord) {
	if dl == nil {
		return
	}

	entry := struct {
		Time string `json:"time"`
		DayRecord
	}{
		Time:      time.Now().UTC().Format(time.RFC3339Nano),
		DayRecord: rec,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	dl.mu.Lock()
	defer dl.mu.Unlock()
	if dl.file == nil {
		return
	}
	_, _ = dl.file.Write(data)
}

// Close closes the underlying file. Safe to call on nil receiver.
func (dl *DayLogger) Close() {
	if dl == nil {
		return
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()
	if dl.file == nil {
		return
	}
	dl.file.Close()
	dl.file = nil
}

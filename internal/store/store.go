// Package store defines the RunStore interface for persisting finished
// simulation runs.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no run has the requested ID.
	ErrNotFound = errors.New("run not found")

	// ErrExists is returned when saving a run whose ID is already stored.
	ErrExists = errors.New("run already exists")

	// ErrAmbiguous is returned when an ID prefix matches several runs.
	ErrAmbiguous = errors.New("run id prefix is ambiguous")
)

// Day is one simulated day of a run. Day 0 is the initial condition and
// carries no counts.
type Day struct {
	Day      int       `json:"day"`
	Stocks   []float64 `json:"stocks"`
	Driver   float64   `json:"driver"`
	Counts   []int     `json:"counts,omitempty"`
	Feedback float64   `json:"feedback"`
}

// Run is a finished simulation with its full daily series.
type Run struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Variant   string    `json:"variant"`
	Seed      uint64    `json:"seed"`
	Horizon   int       `json:"horizon"`
	Agents    int       `json:"agents"`
	CreatedAt time.Time `json:"created_at"`

	// Config is the SimConfig the run was produced from, as JSON.
	Config json.RawMessage `json:"config,omitempty"`

	StockNames []string `json:"stock_names"`
	FlowNames  []string `json:"flow_names"`
	Days       []Day    `json:"days"`

	// FinalCounts is the number of agents per status at the end of the run.
	FinalCounts map[string]int `json:"final_counts"`
}

// RunSummary is the listing view of a run.
type RunSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Variant   string    `json:"variant"`
	Seed      uint64    `json:"seed"`
	Horizon   int       `json:"horizon"`
	Agents    int       `json:"agents"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary returns the listing view of r.
func (r *Run) Summary() RunSummary {
	return RunSummary{
		ID:        r.ID,
		Name:      r.Name,
		Variant:   r.Variant,
		Seed:      r.Seed,
		Horizon:   r.Horizon,
		Agents:    r.Agents,
		CreatedAt: r.CreatedAt,
	}
}

// Totals returns the cumulative count of each flow over the run.
func (r *Run) Totals() []int {
	totals := make([]int, len(r.FlowNames))
	for _, d := range r.Days {
		for i, c := range d.Counts {
			if i < len(totals) {
				totals[i] += c
			}
		}
	}
	return totals
}

// Validate checks that the run is internally consistent.
func (r *Run) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	if _, err := uuid.Parse(r.ID); err != nil {
		return fmt.Errorf("run ID %q is not a UUID: %w", r.ID, err)
	}
	if r.Variant == "" {
		return fmt.Errorf("run %s: variant is required", r.ID)
	}
	if len(r.StockNames) == 0 {
		return fmt.Errorf("run %s: stock names are required", r.ID)
	}
	for i, d := range r.Days {
		if d.Day != i {
			return fmt.Errorf("run %s: day %d stored at position %d", r.ID, d.Day, i)
		}
		if len(d.Stocks) != len(r.StockNames) {
			return fmt.Errorf("run %s day %d: %d stocks for %d names", r.ID, d.Day, len(d.Stocks), len(r.StockNames))
		}
		if d.Day > 0 && len(d.Counts) != len(r.FlowNames) {
			return fmt.Errorf("run %s day %d: %d counts for %d flows", r.ID, d.Day, len(d.Counts), len(r.FlowNames))
		}
	}
	return nil
}

// NewID returns a fresh run identifier.
func NewID() string {
	return uuid.NewString()
}

// RunStore defines the interface for storing and querying runs.
type RunStore interface {
	// SaveRun stores a new run. Saving an existing ID fails with ErrExists.
	SaveRun(ctx context.Context, run *Run) error

	// GetRun returns the run with the given ID or ErrNotFound.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns every run, newest first.
	ListRuns(ctx context.Context) ([]RunSummary, error)

	// DeleteRun removes a run or returns ErrNotFound.
	DeleteRun(ctx context.Context, id string) error

	Close() error
}

// ResolveID expands a unique ID prefix to the full run ID.
func ResolveID(ctx context.Context, s RunStore, prefix string) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("%w: empty id", ErrNotFound)
	}
	runs, err := s.ListRuns(ctx)
	if err != nil {
		return "", err
	}
	var matches []string
	for _, r := range runs {
		if r.ID == prefix {
			return r.ID, nil
		}
		if strings.HasPrefix(r.ID, prefix) {
			matches = append(matches, r.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNotFound, prefix)
	case 1:
		return matches[0], nil
	default:
		sort.Strings(matches)
		return "", fmt.Errorf("%w: %s matches %s", ErrAmbiguous, prefix, strings.Join(matches, ", "))
	}
}

// sortSummaries orders newest first, then by ID for a stable listing.
func sortSummaries(s []RunSummary) {
	sort.Slice(s, func(i, j int) bool {
		if !s[i].CreatedAt.Equal(s[j].CreatedAt) {
			return s[i].CreatedAt.After(s[j].CreatedAt)
		}
		return s[i].ID < s[j].ID
	})
}

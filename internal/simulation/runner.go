package simulation

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nvandessel/hybridsim/internal/config"
	"github.com/nvandessel/hybridsim/internal/hybrid"
	"github.com/nvandessel/hybridsim/internal/store"
)

// Runner executes scenarios against a real run store.
type Runner struct {
	t     *testing.T
	store *store.SQLiteRunStore
}

// NewRunner creates a simulation runner with an isolated SQLite store
// and sandboxed HOME directory.
func NewRunner(t *testing.T) *Runner {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	s, err := store.NewSQLiteRunStore(filepath.Join(tmpDir, store.DBFileName))
	if err != nil {
		t.Fatalf("NewRunner: failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return &Runner{t: t, store: s}
}

// Store returns the runner's store.
func (r *Runner) Store() *store.SQLiteRunStore { return r.store }

// Run executes the scenario and returns the collected results.
func (r *Runner) Run(scenario Scenario) SimulationResult {
	r.t.Helper()
	ctx := context.Background()

	cfg := BaseConfig(scenario.Variant)
	cfg.Name = scenario.Name
	if scenario.Configure != nil {
		scenario.Configure(cfg)
	}
	if err := cfg.Validate(); err != nil {
		r.t.Fatalf("Run(%s): invalid configuration: %v", scenario.Name, err)
	}

	seeds := scenario.Seeds
	if len(seeds) == 0 {
		seeds = []uint64{cfg.Seed}
	}
	repeat := max(scenario.Repeat, 1)

	out := SimulationResult{Name: scenario.Name, Config: cfg, Store: r.store}
	for _, seed := range seeds {
		for i := 0; i < repeat; i++ {
			out.Runs = append(out.Runs, r.runOnce(ctx, cfg, seed))
		}
	}
	return out
}

func (r *Runner) runOnce(ctx context.Context, base *config.SimConfig, seed uint64) RunResult {
	r.t.Helper()

	cfg := *base
	cfg.Seed = seed

	sim, err := hybrid.New(&cfg)
	if err != nil {
		r.t.Fatalf("seed %d: hybrid.New: %v", seed, err)
	}
	res, err := sim.Run(ctx)
	if err != nil {
		r.t.Fatalf("seed %d: Run: %v", seed, err)
	}

	run, err := res.ToRun(&cfg)
	if err != nil {
		r.t.Fatalf("seed %d: ToRun: %v", seed, err)
	}
	if err := r.store.SaveRun(ctx, run); err != nil {
		r.t.Fatalf("seed %d: SaveRun: %v", seed, err)
	}
	stored, err := r.store.GetRun(ctx, run.ID)
	if err != nil {
		r.t.Fatalf("seed %d: GetRun: %v", seed, err)
	}

	return RunResult{Seed: seed, Result: res, Stored: stored}
}

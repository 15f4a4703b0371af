package simulation

import (
	"github.com/nvandessel/hybridsim/internal/config"
	"github.com/nvandessel/hybridsim/internal/hybrid"
	"github.com/nvandessel/hybridsim/internal/store"
)

// Scenario defines a complete simulation experiment.
type Scenario struct {
	Name    string
	Variant string

	// Configure, when non-nil, adjusts the default configuration before
	// any run starts.
	Configure func(cfg *config.SimConfig)

	// Seeds lists the master seeds to run. Empty means the configured seed
	// once.
	Seeds []uint64

	// Repeat runs every seed this many times (default 1). Repeats must
	// reproduce the first run exactly.
	Repeat int
}

// RunResult is one executed run and what the store returned for it.
type RunResult struct {
	Seed   uint64
	Result *hybrid.Result
	Stored *store.Run
}

// SimulationResult collects every run of a scenario.
type SimulationResult struct {
	Name   string
	Config *config.SimConfig
	Runs   []RunResult
	Store  *store.SQLiteRunStore
}

// BySeed returns the runs for seed in execution order.
func (r SimulationResult) BySeed(seed uint64) []RunResult {
	var out []RunResult
	for _, run := range r.Runs {
		if run.Seed == seed {
			out = append(out, run)
		}
	}
	return out
}

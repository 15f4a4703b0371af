package simulation

import (
	"math"
	"reflect"
	"testing"
)

// AssertConservation asserts that the stock sum stays at the initial sum,
// within relTol of it, on every day of every run.
func AssertConservation(t *testing.T, result SimulationResult, relTol float64) {
	t.Helper()
	for _, run := range result.Runs {
		stocks := run.Result.Stocks
		if len(stocks) == 0 {
			t.Errorf("AssertConservation: seed %d: no stocks recorded", run.Seed)
			continue
		}
		want := sum(stocks[0])
		for d, y := range stocks {
			if got := sum(y); math.Abs(got-want) > relTol*math.Max(1, math.Abs(want)) {
				t.Errorf("AssertConservation: seed %d day %d: stock sum %.9f, want %.9f", run.Seed, d, got, want)
			}
		}
	}
}

// AssertNonNegative asserts that no stock drops below -tol on any day.
func AssertNonNegative(t *testing.T, result SimulationResult, tol float64) {
	t.Helper()
	for _, run := range result.Runs {
		for d, y := range run.Result.Stocks {
			for i, v := range y {
				if v < -tol {
					t.Errorf("AssertNonNegative: seed %d day %d: %s = %.9f", run.Seed, d, run.Result.StockNames[i], v)
				}
			}
		}
	}
}

// AssertCapacityBound asserts that no flow moves more than capacity agents
// on any day.
func AssertCapacityBound(t *testing.T, result SimulationResult, capacity int) {
	t.Helper()
	for _, run := range result.Runs {
		for d, counts := range run.Result.Counts {
			for i, n := range counts {
				if n < 0 || n > capacity {
					t.Errorf("AssertCapacityBound: seed %d day %d: %s moved %d agents (capacity %d)",
						run.Seed, d+1, run.Result.FlowNames[i], n, capacity)
				}
			}
		}
	}
}

// AssertAgentsConserved asserts that the final status counts add up to the
// configured number of agents.
func AssertAgentsConserved(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, run := range result.Runs {
		total := 0
		for _, n := range run.Result.FinalCounts() {
			total += n
		}
		if total != result.Config.Agents {
			t.Errorf("AssertAgentsConserved: seed %d: %d agents at the end, want %d", run.Seed, total, result.Config.Agents)
		}
	}
}

// AssertDeterministic asserts that repeated runs of one seed produced the
// same series, counts and final statuses.
func AssertDeterministic(t *testing.T, result SimulationResult) {
	t.Helper()
	first := make(map[uint64]RunResult)
	for _, run := range result.Runs {
		ref, ok := first[run.Seed]
		if !ok {
			first[run.Seed] = run
			continue
		}
		a, b := ref.Result, run.Result
		if !reflect.DeepEqual(a.Stocks, b.Stocks) {
			t.Errorf("AssertDeterministic: seed %d: stock series differ between repeats", run.Seed)
		}
		if !reflect.DeepEqual(a.Counts, b.Counts) {
			t.Errorf("AssertDeterministic: seed %d: counts differ between repeats", run.Seed)
		}
		if !reflect.DeepEqual(a.FinalStatus, b.FinalStatus) {
			t.Errorf("AssertDeterministic: seed %d: final statuses differ between repeats", run.Seed)
		}
	}
}

// AssertStoredMatches asserts that every run reads back from the store with
// the series it was produced with.
func AssertStoredMatches(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, run := range result.Runs {
		res, stored := run.Result, run.Stored
		if len(stored.Days) != len(res.Stocks) {
			t.Errorf("AssertStoredMatches: seed %d: %d stored days, want %d", run.Seed, len(stored.Days), len(res.Stocks))
			continue
		}
		for d, day := range stored.Days {
			if !reflect.DeepEqual(day.Stocks, res.Stocks[d]) {
				t.Errorf("AssertStoredMatches: seed %d day %d: stored stocks %v, want %v", run.Seed, d, day.Stocks, res.Stocks[d])
			}
			if d > 0 && !reflect.DeepEqual(day.Counts, res.Counts[d-1]) {
				t.Errorf("AssertStoredMatches: seed %d day %d: stored counts %v, want %v", run.Seed, d, day.Counts, res.Counts[d-1])
			}
		}
		if !reflect.DeepEqual(stored.Totals(), res.Totals()) {
			t.Errorf("AssertStoredMatches: seed %d: stored totals %v, want %v", run.Seed, stored.Totals(), res.Totals())
		}
	}
}

// AssertNoTransitions asserts that no flow moved any agent in any run.
func AssertNoTransitions(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, run := range result.Runs {
		for i, total := range run.Result.Totals() {
			if total != 0 {
				t.Errorf("AssertNoTransitions: seed %d: %s moved %d agents", run.Seed, run.Result.FlowNames[i], total)
			}
		}
	}
}

// AssertTotalsAtLeast asserts that, summed over runs, flow moved at least
// min agents.
func AssertTotalsAtLeast(t *testing.T, result SimulationResult, flow int, min int) {
	t.Helper()
	total := 0
	for _, run := range result.Runs {
		total += run.Result.Totals()[flow]
	}
	if total < min {
		t.Errorf("AssertTotalsAtLeast: flow %d moved %d agents over %d runs (need %d)", flow, total, len(result.Runs), min)
	}
}

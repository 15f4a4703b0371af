package hybrid

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nvandessel/hybridsim/internal/agent"
	"github.com/nvandessel/hybridsim/internal/config"
	"github.com/nvandessel/hybridsim/internal/store"
)

// Result is a finished run. Daily slices include day 0 (the initial
// condition) except Counts, whose entry d-1 belongs to day d.
type Result struct {
	RunID     string
	Variant   string
	StartedAt time.Time
	Elapsed   time.Duration

	StockNames []string
	FlowNames  []string

	// Labels names the agent statuses for this variant.
	Labels [3]string

	Stocks   [][]float64
	Drivers  []float64
	Counts   [][]int
	Feedback []float64

	FinalStatus []agent.Status

	// NegativeTimes lists solver sample times where a stock went negative.
	NegativeTimes []float64

	Edges      int
	Components int
}

// Days returns the number of simulated days.
func (r *Result) Days() int { return len(r.Counts) }

// Series returns one stock by index across every day.
func (r *Result) Series(stock int) []float64 {
	out := make([]float64, len(r.Stocks))
	for d, y := range r.Stocks {
		out[d] = y[stock]
	}
	return out
}

// FlowSeries returns the daily counts of one flow.
func (r *Result) FlowSeries(flow int) []int {
	out := make([]int, len(r.Counts))
	for d, c := range r.Counts {
		out[d] = c[flow]
	}
	return out
}

// Totals returns the cumulative count per flow.
func (r *Result) Totals() []int {
	totals := make([]int, len(r.FlowNames))
	for _, c := range r.Counts {
		for i, n := range c {
			totals[i] += n
		}
	}
	return totals
}

// FinalCounts returns the number of agents per status label at the end of
// the run. Statuses no agent holds are omitted.
func (r *Result) FinalCounts() map[string]int {
	out := make(map[string]int)
	for _, s := range r.FinalStatus {
		out[r.Labels[s]]++
	}
	return out
}

// ToRun converts the result into a storable run, embedding cfg as JSON.
func (r *Result) ToRun(cfg *config.SimConfig) (*store.Run, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}

	days := make([]store.Day, len(r.Stocks))
	for d := range r.Stocks {
		days[d] = store.Day{
			Day:      d,
			Stocks:   append([]float64(nil), r.Stocks[d]...),
			Driver:   r.Drivers[d],
			Feedback: r.Feedback[d],
		}
		if d > 0 {
			days[d].Counts = append([]int(nil), r.Counts[d-1]...)
		}
	}

	run := &store.Run{
		ID:          r.RunID,
		Name:        cfg.Name,
		Variant:     r.Variant,
		Seed:        cfg.Seed,
		Horizon:     cfg.Horizon,
		Agents:      cfg.Agents,
		CreatedAt:   r.StartedAt.UTC(),
		Config:      raw,
		StockNames:  append([]string(nil), r.StockNames...),
		FlowNames:   append([]string(nil), r.FlowNames...),
		Days:        days,
		FinalCounts: r.FinalCounts(),
	}
	if err := run.Validate(); err != nil {
		return nil, err
	}
	return run, nil
}

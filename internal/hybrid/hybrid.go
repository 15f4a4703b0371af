// Package hybrid couples a delay stock-and-flow model with an agent
// population on a social network.
//
// Each simulated day the solver advances to the end of the day, a driver is
// read from the fresh state, the diffusion engine moves agents, and the
// resulting counts are written back into the model's parameters for the
// next day. Everything random is drawn from streams derived from the
// configured master seed, so a configuration always produces the same run.
package hybrid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nvandessel/hybridsim/internal/agent"
	"github.com/nvandessel/hybridsim/internal/config"
	"github.com/nvandessel/hybridsim/internal/constants"
	"github.com/nvandessel/hybridsim/internal/diffusion"
	"github.com/nvandessel/hybridsim/internal/distributions"
	"github.com/nvandessel/hybridsim/internal/logging"
	"github.com/nvandessel/hybridsim/internal/network"
	"github.com/nvandessel/hybridsim/internal/seed"
	"github.com/nvandessel/hybridsim/internal/stockflow"
	"github.com/nvandessel/hybridsim/internal/store"
)

// ErrAlreadyRun is returned when Run is called twice on one Simulation.
var ErrAlreadyRun = errors.New("simulation already run")

// Option configures a Simulation.
type Option func(*Simulation)

// WithLogger routes progress and solver diagnostics to l.
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulation) { s.logger = l }
}

// WithDayLogger writes one trace record per simulated day to dl.
func WithDayLogger(dl *logging.DayLogger) Option {
	return func(s *Simulation) { s.days = dl }
}

// WithRunID sets the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(s *Simulation) { s.runID = id }
}

// Simulation owns one solver, one population and the exchange between
// them. It runs once and is not safe for concurrent use.
type Simulation struct {
	cfg    *config.SimConfig
	runID  string
	logger *slog.Logger
	days   *logging.DayLogger

	nb         network.Neighbors
	pop        *agent.Population
	solver     *stockflow.Solver
	exch       exchange
	components int
	done       bool
}

// New validates cfg and builds the network, population, model and solver.
func New(cfg *config.SimConfig, opts ...Option) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Simulation{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if s.runID == "" {
		s.runID = store.NewID()
	}

	streams := seed.NewStreams(cfg.Seed)

	builder, err := network.NewBuilder(cfg.Network.Kind)
	if err != nil {
		return nil, err
	}
	nb, err := builder.Build(cfg.Agents, cfg.Network.K, cfg.Network.P, streams.Seed(constants.StreamNetwork))
	if err != nil {
		return nil, fmt.Errorf("building network: %w", err)
	}
	s.nb = nb
	s.components = network.Components(nb)

	pop, err := newPopulation(cfg, nb)
	if err != nil {
		return nil, err
	}
	s.pop = pop

	if err := s.buildExchange(streams); err != nil {
		return nil, err
	}

	s.logger.Debug("simulation ready",
		"run_id", s.runID,
		"variant", cfg.Variant,
		"agents", cfg.Agents,
		"edges", nb.Edges(),
		"components", s.components,
		"segment_span", s.solver.SegmentSpan())
	return s, nil
}

// newPopulation draws every agent attribute from its own stream.
func newPopulation(cfg *config.SimConfig, nb network.Neighbors) (*agent.Population, error) {
	reg, err := distributions.NewRegistry(cfg.Distributions.Specs(), cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("building distributions: %w", err)
	}

	var attrs agent.Attributes
	for _, draw := range []struct {
		name string
		dst  *[]float64
	}{
		{constants.StreamThreshold, &attrs.Thresholds},
		{constants.StreamPreference, &attrs.Preferences},
		{constants.StreamDistance, &attrs.Distances},
	} {
		values, err := reg.Sample(draw.name, cfg.Agents)
		if err != nil {
			return nil, err
		}
		*draw.dst = values
	}

	pop, err := agent.NewPopulation(attrs, nb)
	if err != nil {
		return nil, fmt.Errorf("building population: %w", err)
	}
	return pop, nil
}

func (s *Simulation) buildExchange(streams seed.Streams) error {
	cfg := s.cfg
	population := cfg.ModelPopulation()

	switch cfg.Variant {
	case constants.VariantVaccination:
		siqr, err := stockflow.NewSIQR(cfg.Disease.SIQRParams)
		if err != nil {
			return err
		}
		engine, err := diffusion.NewEngine(diffusion.Config{
			Weight:     cfg.Influence.DriverWeight,
			Capacity:   cfg.Influence.MaxDailyCapacity,
			DriverGain: cfg.Influence.DriverK,
			Normalizer: cfg.Normalizer(),
		}, streams.Source(constants.StreamCapacity+"/"+constants.FlowVaccinations))
		if err != nil {
			return err
		}
		s.exch = &vaccination{
			siqr:       siqr,
			engine:     engine,
			pop:        s.pop,
			population: population,
			infected:   cfg.Disease.InitialInfected,
		}

	case constants.VariantMembership:
		m, err := stockflow.NewMembership(cfg.Membership.MembershipParams)
		if err != nil {
			return err
		}
		engine, err := diffusion.NewFlowEngine(diffusion.MembershipFlows(), cfg.Influence.MaxDailyCapacity, streams)
		if err != nil {
			return err
		}
		ms := &membership{
			m:          m,
			engine:     engine,
			pop:        s.pop,
			population: population,
			members:    cfg.Membership.InitialMembers,
			dropouts:   cfg.Membership.InitialDropouts,
			peer:       cfg.Influence.PeerInfluence,
		}
		if err := ms.seed(); err != nil {
			return err
		}
		s.exch = ms

	default:
		return fmt.Errorf("%w: unknown variant %q", config.ErrInvalidConfig, cfg.Variant)
	}

	solver, err := stockflow.NewSolver(s.exch.model(), s.exch.initialStocks(),
		stockflow.WithTolerances(cfg.Solver.RelTol, cfg.Solver.AbsTol),
		stockflow.WithMaxSteps(cfg.Solver.MaxSteps),
		stockflow.WithLogger(s.logger))
	if err != nil {
		return err
	}
	s.solver = solver

	switch e := s.exch.(type) {
	case *vaccination:
		e.solver = solver
	case *membership:
		e.solver = solver
	}
	return nil
}

// RunID returns the identifier the run will be stored under.
func (s *Simulation) RunID() string { return s.runID }

// Population returns the agent population.
func (s *Simulation) Population() *agent.Population { return s.pop }

// Network returns the social network.
func (s *Simulation) Network() network.Neighbors { return s.nb }

// Solver returns the delay-stock solver.
func (s *Simulation) Solver() *stockflow.Solver { return s.solver }

// Run advances the coupled system through every day of the horizon. On
// error, including cancellation between days, no result is returned.
func (s *Simulation) Run(ctx context.Context) (*Result, error) {
	if s.done {
		return nil, ErrAlreadyRun
	}
	s.done = true

	cfg := s.cfg
	started := time.Now()
	flowNames := s.exch.flowNames()

	res := &Result{
		RunID:      s.runID,
		Variant:    cfg.Variant,
		StartedAt:  started,
		StockNames: s.exch.model().Stocks(),
		FlowNames:  flowNames,
		Labels:     s.exch.statusLabels(),
		Stocks:     make([][]float64, 0, cfg.Horizon+1),
		Drivers:    make([]float64, 0, cfg.Horizon+1),
		Counts:     make([][]int, 0, cfg.Horizon),
		Feedback:   make([]float64, 0, cfg.Horizon+1),
		Edges:      s.nb.Edges(),
		Components: s.components,
	}

	y0 := s.solver.Last()
	res.Stocks = append(res.Stocks, y0)
	res.Drivers = append(res.Drivers, s.exch.initialDriver(y0))
	res.Feedback = append(res.Feedback, 0)
	s.logDay(0, res.Drivers[0], y0, nil, 0)

	for d := 1; d <= cfg.Horizon; d++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("day %d: %w", d, err)
		}

		if err := s.solver.Solve(float64(d)); err != nil {
			return nil, fmt.Errorf("day %d: solve: %w", d, err)
		}
		out, err := s.exch.day(d)
		if err != nil {
			return nil, fmt.Errorf("day %d: %w", d, err)
		}

		y := s.solver.Last()
		res.Stocks = append(res.Stocks, y)
		res.Drivers = append(res.Drivers, out.driver)
		res.Counts = append(res.Counts, out.counts)
		res.Feedback = append(res.Feedback, out.feedback)
		s.logDay(d, out.driver, y, out.counts, out.feedback)
	}

	res.FinalStatus = s.pop.Snapshot()
	res.NegativeTimes = s.solver.NegativeStocks()
	res.Elapsed = time.Since(started)

	s.logger.Info("simulation finished",
		"run_id", s.runID,
		"variant", cfg.Variant,
		"days", cfg.Horizon,
		"totals", res.Totals(),
		"elapsed", res.Elapsed)
	return res, nil
}

func (s *Simulation) logDay(d int, driver float64, y stockflow.StockVector, counts []int, feedback float64) {
	s.logger.Debug("day complete", "day", d, "driver", driver, "counts", counts, "feedback", feedback)
	if s.days == nil {
		return
	}
	var named map[string]int
	if counts != nil {
		named = make(map[string]int, len(counts))
		for i, name := range s.exch.flowNames() {
			named[name] = counts[i]
		}
	}
	s.days.Log(logging.DayRecord{
		RunID:    s.runID,
		Day:      d,
		Driver:   driver,
		Stocks:   y,
		Counts:   named,
		Feedback: feedback,
	})
}

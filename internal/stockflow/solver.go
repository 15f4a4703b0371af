package stockflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/nvandessel/hybridsim/internal/constants"
	"github.com/nvandessel/hybridsim/internal/logging"
)

// Options tune the integrator.
type Options struct {
	RelTol   float64
	AbsTol   float64
	MaxSteps int // per sub-span
	Logger   *slog.Logger
}

// DefaultOptions returns the solver defaults.
func DefaultOptions() Options {
	return Options{
		RelTol:   constants.DefaultRelTol,
		AbsTol:   constants.DefaultAbsTol,
		MaxSteps: constants.DefaultMaxSteps,
	}
}

// Option mutates Options.
type Option func(*Options)

// WithTolerances overrides the relative and absolute tolerances.
func WithTolerances(rtol, atol float64) Option {
	return func(o *Options) {
		o.RelTol = rtol
		o.AbsTol = atol
	}
}

// WithMaxSteps caps the accepted plus rejected steps per sub-span.
func WithMaxSteps(n int) Option {
	return func(o *Options) { o.MaxSteps = n }
}

// WithLogger routes solver diagnostics to l.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// Solver integrates a Model forward in time and keeps every solved instant
// queryable. It is not safe for concurrent use.
type Solver struct {
	model  Model
	y0     StockVector
	span   float64
	flows  []float64
	integ  *rosenbrock
	logger *slog.Logger

	times    []float64
	samples  []StockVector
	interp   Interpolant
	negative []float64
}

// NewSolver prepares a solver for m starting at y0 at t = 0.
func NewSolver(m Model, y0 StockVector, opts ...Option) (*Solver, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	stocks := m.Stocks()
	if len(stocks) == 0 {
		return nil, fmt.Errorf("%w: model has no stocks", ErrInvalidModel)
	}
	if len(y0) != len(stocks) {
		return nil, fmt.Errorf("%w: initial condition has %d values for %d stocks", ErrInvalidModel, len(y0), len(stocks))
	}
	if !allFinite(y0) {
		return nil, fmt.Errorf("%w: initial condition is not finite", ErrInvalidModel)
	}
	if o.RelTol <= 0 || o.AbsTol <= 0 {
		return nil, fmt.Errorf("%w: tolerances must be positive, got rtol=%g atol=%g", ErrInvalidModel, o.RelTol, o.AbsTol)
	}
	if o.MaxSteps <= 0 {
		return nil, fmt.Errorf("%w: max steps must be positive, got %d", ErrInvalidModel, o.MaxSteps)
	}

	span, err := segmentSpan(m.Delays())
	if err != nil {
		return nil, err
	}

	logger := o.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	s := &Solver{
		model:   m,
		y0:      y0.Clone(),
		span:    span,
		flows:   make([]float64, len(m.Flows())),
		logger:  logger,
		times:   []float64{0},
		samples: []StockVector{y0.Clone()},
	}
	s.integ = newRosenbrock(len(stocks), o.RelTol, o.AbsTol, o.MaxSteps, s.rhs)
	return s, nil
}

// segmentSpan returns the longest sub-span that keeps every lagged lookup
// inside solved history: one day short of the smallest delay, or the delay
// itself when it is a day or less.
func segmentSpan(delays []float64) (float64, error) {
	bound := math.Inf(1)
	for _, d := range delays {
		if !(d > 0) || math.IsInf(d, 0) {
			return 0, fmt.Errorf("%w: delays must be positive and finite, got %g", ErrInvalidModel, d)
		}
		bound = math.Min(bound, d)
	}
	if bound > 1 {
		return bound - 1, nil
	}
	return bound, nil
}

func (s *Solver) rhs(t float64, y, dydt []float64) error {
	if err := s.model.EvalFlows(t, y, s, s.flows); err != nil {
		return err
	}
	s.model.Balance(s.flows, dydt)
	return nil
}

// Model returns the model being integrated.
func (s *Solver) Model() Model { return s.model }

// SegmentSpan returns the maximum length of one sub-solve.
func (s *Solver) SegmentSpan() float64 { return s.span }

// LastTime returns the end of the solved horizon.
func (s *Solver) LastTime() float64 { return s.times[len(s.times)-1] }

// Last returns a copy of the most recently appended state.
func (s *Solver) Last() StockVector { return s.samples[len(s.samples)-1].Clone() }

// Initial returns a copy of the initial condition.
func (s *Solver) Initial() StockVector { return s.y0.Clone() }

// Solve advances the solution to target. Targets must not decrease across
// calls. On failure the solver keeps every sub-span completed before the
// failing one.
func (s *Solver) Solve(target float64) error {
	last := s.LastTime()
	if target < last {
		return fmt.Errorf("%w: target %g, solved through %g", ErrTimeReversal, target, last)
	}

	for last < target {
		end := math.Min(last+s.span, target)

		seg, err := s.integ.integrate(last, end, s.samples[len(s.samples)-1])
		if err != nil {
			var ie *IntegrationError
			if errors.As(err, &ie) || errors.Is(err, ErrDelayLookup) {
				return err
			}
			return &IntegrationError{Start: last, End: end, Time: last, Cause: err}
		}
		if err := s.interp.Append(seg); err != nil {
			return fmt.Errorf("append segment: %w", err)
		}

		y := seg.Final()
		s.times = append(s.times, end)
		s.samples = append(s.samples, y)

		if y.HasNegative() {
			s.negative = append(s.negative, end)
			s.logger.Warn("negative stock value",
				"time", end,
				"stocks", s.model.Stocks(),
				"values", []float64(y))
		}
		s.logger.Log(context.Background(), logging.LevelTrace, "segment solved",
			"start", last, "end", end, "steps", seg.Steps())

		last = end
	}
	return nil
}

// QueryDelayed implements History.
func (s *Solver) QueryDelayed(t float64) (StockVector, error) {
	return s.QueryDelayedOr(t, s.y0)
}

// QueryDelayedOr implements History.
func (s *Solver) QueryDelayedOr(t float64, def StockVector) (StockVector, error) {
	if t < 0 {
		if def == nil {
			return make(StockVector, len(s.y0)), nil
		}
		return def.Clone(), nil
	}

	last := s.LastTime()
	if t == last {
		return s.Last(), nil
	}
	if t > last {
		return nil, &DelayLookupError{Time: t, Solved: last}
	}

	out := make(StockVector, len(s.y0))
	if !s.interp.At(t, out) {
		// Only reachable before the first segment, i.e. t == 0 == last,
		// which returned above.
		return nil, &DelayLookupError{Time: t, Solved: last}
	}
	return out, nil
}

// Flows evaluates the named flow rates at a solved time t.
func (s *Solver) Flows(t float64) ([]float64, error) {
	y, err := s.QueryDelayed(t)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(s.model.Flows()))
	if err := s.model.EvalFlows(t, y, s, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Times returns every solved sample time, starting at 0.
func (s *Solver) Times() []float64 {
	return append([]float64(nil), s.times...)
}

// Samples returns the state at every solved sample time.
func (s *Solver) Samples() []StockVector {
	out := make([]StockVector, len(s.samples))
	for i, v := range s.samples {
		out[i] = v.Clone()
	}
	return out
}

// NegativeStocks returns the sample times whose state had a negative stock.
func (s *Solver) NegativeStocks() []float64 {
	return append([]float64(nil), s.negative...)
}

// Series returns one array per stock sampled at every solved segment end,
// alongside the sample times.
func (s *Solver) Series() (times []float64, stocks [][]float64) {
	return s.Times(), Columns(s.samples)
}

// Segments returns the number of interpolant segments.
func (s *Solver) Segments() int { return s.interp.Len() }

// AtDays resamples the solution at t = 0, 1, ..., days.
func (s *Solver) AtDays(days int) ([]StockVector, error) {
	out := make([]StockVector, 0, days+1)
	for d := 0; d <= days; d++ {
		y, err := s.QueryDelayed(float64(d))
		if err != nil {
			return nil, fmt.Errorf("day %d: %w", d, err)
		}
		out = append(out, y)
	}
	return out, nil
}

// Columns transposes samples into one series per stock.
func Columns(samples []StockVector) [][]float64 {
	if len(samples) == 0 {
		return nil
	}
	cols := make([][]float64, len(samples[0]))
	for i := range cols {
		cols[i] = make([]float64, len(samples))
		for d, v := range samples {
			cols[i][d] = v[i]
		}
	}
	return cols
}

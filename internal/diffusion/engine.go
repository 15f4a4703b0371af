// Package diffusion applies the daily threshold decision rule to a
// population on its social network.
//
// Each eligible agent mixes a global driver, derived from the continuous
// model, with the share of its neighbors that have already converted. Agents
// whose influence strictly exceeds their threshold become candidates; at most
// Capacity of them convert per day, drawn without replacement with
// probability proportional to their preference.
package diffusion

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/nvandessel/hybridsim/internal/agent"
	"github.com/nvandessel/hybridsim/internal/constants"
)

// ErrInvalidConfig is wrapped by every Config validation failure.
var ErrInvalidConfig = errors.New("invalid diffusion config")

// Config holds the behavioral parameters of the decision rule.
type Config struct {
	// Weight is the share of influence taken from the global driver; the
	// rest comes from neighbors. Must be in [0, 1].
	Weight float64

	// Capacity is the maximum number of agents converting per day. Zero
	// disables conversion.
	Capacity int

	// DriverGain is k in driver = 1 - exp(-k * external / normalizer).
	DriverGain float64

	// Normalizer scales the external signal, usually the model population.
	Normalizer float64
}

// DefaultConfig returns the default decision-rule configuration for a
// population of the given size.
func DefaultConfig(population float64) Config {
	return Config{
		Weight:     constants.DefaultDriverWeight,
		Capacity:   constants.DefaultDailyCapacity,
		DriverGain: constants.DefaultDriverGain,
		Normalizer: population,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if math.IsNaN(c.Weight) || c.Weight < 0 || c.Weight > 1 {
		return fmt.Errorf("%w: weight must be in [0,1], got %g", ErrInvalidConfig, c.Weight)
	}
	if c.Capacity < 0 {
		return fmt.Errorf("%w: capacity must be >= 0, got %d", ErrInvalidConfig, c.Capacity)
	}
	if c.DriverGain < 0 {
		return fmt.Errorf("%w: driver gain must be >= 0, got %g", ErrInvalidConfig, c.DriverGain)
	}
	if !(c.Normalizer > 0) {
		return fmt.Errorf("%w: normalizer must be > 0, got %g", ErrInvalidConfig, c.Normalizer)
	}
	return nil
}

// maxDriver is the largest float64 below 1.
var maxDriver = math.Nextafter(1, 0)

// Driver maps an external signal onto [0, 1). It is monotone in external;
// negative signals map to 0. Signals large enough to round to 1 are held at
// the largest value below it.
func Driver(external, gain, normalizer float64) float64 {
	if !(external > 0) {
		return 0
	}
	return math.Min(-math.Expm1(-gain*external/normalizer), maxDriver)
}

// Engine runs the single-flow (unconverted to converted) daily step.
type Engine struct {
	config   Config
	src      rand.Source
	counters []int
}

// NewEngine validates config and returns an engine drawing from src.
func NewEngine(config Config, src rand.Source) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("%w: nil random source", ErrInvalidConfig)
	}
	return &Engine{config: config, src: src}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.config }

// Driver transforms external with the engine's gain and normalizer.
func (e *Engine) Driver(external float64) float64 {
	return Driver(external, e.config.DriverGain, e.config.Normalizer)
}

// Influence mixes the global driver with a local neighbor signal.
func (e *Engine) Influence(driver, local float64) float64 {
	return e.config.Weight*driver + (1-e.config.Weight)*local
}

// Candidates returns the unconverted agents whose influence under driver
// strictly exceeds their threshold, in index order.
func (e *Engine) Candidates(pop *agent.Population, eligible []int, driver float64) []int {
	var out []int
	for _, i := range eligible {
		local := pop.LocalSignal(i, agent.Active)
		if e.Influence(driver, local) > pop.At(i).Threshold {
			out = append(out, i)
		}
	}
	return out
}

// Step runs one simulated day: it converts up to Capacity candidates and
// returns how many converted. Local signals are read from the population
// as it stood at the start of the day.
func (e *Engine) Step(pop *agent.Population, external float64) int {
	part := pop.Partition()
	driver := e.Driver(external)

	candidates := e.Candidates(pop, part.Of(agent.Inactive), driver)
	chosen := candidates
	if len(candidates) > e.config.Capacity {
		chosen = WeightedSample(candidates, preferenceWeights(pop, candidates), e.config.Capacity, e.src)
	}

	for _, i := range chosen {
		pop.SetStatus(i, agent.Active)
	}
	e.counters = append(e.counters, len(chosen))
	return len(chosen)
}

// Counters returns the per-day conversion counts so far.
func (e *Engine) Counters() []int {
	return append([]int(nil), e.counters...)
}

func preferenceWeights(pop *agent.Population, idx []int) []float64 {
	w := make([]float64, len(idx))
	for k, i := range idx {
		w[k] = pop.At(i).Preference
	}
	return w
}

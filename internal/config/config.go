// Package config provides unified configuration loading for hybridsim.
// It supports loading from YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/nvandessel/hybridsim/internal/constants"
	"github.com/nvandessel/hybridsim/internal/distributions"
	"github.com/nvandessel/hybridsim/internal/network"
	"github.com/nvandessel/hybridsim/internal/stockflow"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError describes one invalid field.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Reason, e.Value)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidConfig }

// SimConfig contains every setting of one simulation run.
type SimConfig struct {
	// Name labels the run in the store. Optional.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Variant selects the coupled model: "vaccination" or "membership".
	Variant string `json:"variant" yaml:"variant"`

	// Seed is the master seed every random stream is derived from.
	Seed uint64 `json:"seed" yaml:"seed"`

	// Horizon is the number of simulated days.
	Horizon int `json:"horizon" yaml:"horizon"`

	// Agents is the size of the agent population.
	Agents int `json:"agents" yaml:"agents"`

	Network       NetworkConfig       `json:"network" yaml:"network"`
	Influence     InfluenceConfig     `json:"influence" yaml:"influence"`
	Distributions DistributionsConfig `json:"distributions" yaml:"distributions"`
	Disease       DiseaseConfig       `json:"disease" yaml:"disease"`
	Membership    MembershipConfig    `json:"membership" yaml:"membership"`
	Solver        SolverConfig        `json:"solver" yaml:"solver"`
	Logging       LoggingConfig       `json:"logging" yaml:"logging"`
	Store         StoreConfig         `json:"store" yaml:"store"`
}

// NetworkConfig configures the small-world contact graph.
type NetworkConfig struct {
	// Kind is "newman-watts-strogatz" (default) or "watts-strogatz".
	Kind string `json:"kind" yaml:"kind"`

	// K is the ring-lattice degree. Must be even and smaller than Agents.
	K int `json:"k" yaml:"k"`

	// P is the shortcut (or rewiring) probability per lattice edge.
	P float64 `json:"p" yaml:"p"`
}

// InfluenceConfig holds the behavioral parameters of the decision rule.
type InfluenceConfig struct {
	// DriverWeight and SocialWeight split each agent's influence between
	// the global driver and its neighbors. They must sum to 1.
	DriverWeight float64 `json:"driver_weight" yaml:"driver_weight"`
	SocialWeight float64 `json:"social_weight" yaml:"social_weight"`

	// MaxDailyCapacity caps the agents moving per flow per day.
	MaxDailyCapacity int `json:"max_daily_capacity" yaml:"max_daily_capacity"`

	// DriverK is the gain in driver = 1 - exp(-k * I / normalizer).
	DriverK float64 `json:"driver_k" yaml:"driver_k"`

	// DriverNormalizer divides the driving stock. Zero means the model
	// population.
	DriverNormalizer float64 `json:"driver_normalizer,omitempty" yaml:"driver_normalizer,omitempty"`

	// PeerInfluence scales how strongly neighbor membership shifts the
	// membership model's joining and dropout rates.
	PeerInfluence float64 `json:"peer_influence" yaml:"peer_influence"`
}

// DistributionsConfig names the per-agent attribute distributions.
type DistributionsConfig struct {
	Threshold  distributions.Spec `json:"threshold" yaml:"threshold"`
	Preference distributions.Spec `json:"preference" yaml:"preference"`
	Distance   distributions.Spec `json:"distance" yaml:"distance"`
}

// Specs returns the distributions keyed by stream name.
func (d DistributionsConfig) Specs() map[string]distributions.Spec {
	return map[string]distributions.Spec{
		constants.StreamThreshold:  d.Threshold,
		constants.StreamPreference: d.Preference,
		constants.StreamDistance:   d.Distance,
	}
}

// DiseaseConfig configures the SIQR model.
type DiseaseConfig struct {
	stockflow.SIQRParams `yaml:",inline"`

	// Population is the model population. Zero means Agents.
	Population float64 `json:"population,omitempty" yaml:"population,omitempty"`

	// InitialInfected seeds I; S takes the rest of the population.
	InitialInfected float64 `json:"initial_infected" yaml:"initial_infected"`
}

// MembershipConfig configures the potential/member/dropout model.
type MembershipConfig struct {
	stockflow.MembershipParams `yaml:",inline"`

	// Population is the model population. Zero means Agents.
	Population float64 `json:"population,omitempty" yaml:"population,omitempty"`

	InitialMembers  float64 `json:"initial_members" yaml:"initial_members"`
	InitialDropouts float64 `json:"initial_dropouts" yaml:"initial_dropouts"`
}

// SolverConfig tunes the delay-stock integrator.
type SolverConfig struct {
	RelTol   float64 `json:"rel_tol" yaml:"rel_tol"`
	AbsTol   float64 `json:"abs_tol" yaml:"abs_tol"`
	MaxSteps int     `json:"max_steps" yaml:"max_steps"`
}

// LoggingConfig configures hybridsim's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables the per-day trace in Dir/days.jsonl.
	Level string `json:"level" yaml:"level"`

	// Dir holds the per-day trace. Defaults to .hybridsim.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// StoreConfig selects where finished runs are kept.
type StoreConfig struct {
	// Backend is "sqlite" (default) or "memory".
	Backend string `json:"backend" yaml:"backend"`

	// Path is the SQLite database file. Defaults to .hybridsim/runs.db.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Default returns a SimConfig with sensible defaults.
func Default() *SimConfig {
	return &SimConfig{
		Variant: constants.VariantVaccination,
		Seed:    constants.DefaultSeed,
		Horizon: constants.DefaultHorizon,
		Agents:  constants.DefaultAgents,
		Network: NetworkConfig{
			Kind: constants.DefaultNetworkKind,
			K:    constants.DefaultNetworkK,
			P:    constants.DefaultNetworkP,
		},
		Influence: InfluenceConfig{
			DriverWeight:     constants.DefaultDriverWeight,
			SocialWeight:     constants.DefaultSocialWeight,
			MaxDailyCapacity: constants.DefaultDailyCapacity,
			DriverK:          constants.DefaultDriverGain,
			PeerInfluence:    constants.DefaultPeerInfluence,
		},
		Distributions: DistributionsConfig{
			Threshold:  distributions.Uniform(0, 1),
			Preference: distributions.Uniform(0, 1),
			Distance:   distributions.Gamma(2.5, 3.5),
		},
		Disease: DiseaseConfig{
			SIQRParams: stockflow.SIQRParams{
				ContactRate:        constants.DefaultContactRate,
				Infectivity:        constants.DefaultInfectivity,
				SymptomDelay:       constants.DefaultSymptomDelay,
				QuarantineLength:   constants.DefaultQuarantineLength,
				QuarantineFraction: constants.DefaultQuarantineFraction,
				InfectivityLength:  constants.DefaultInfectivityLength,
			},
			InitialInfected: constants.DefaultInitialInfected,
		},
		Membership: MembershipConfig{
			MembershipParams: stockflow.MembershipParams{
				JoiningRate: constants.DefaultJoiningRate,
				DropoutRate: constants.DefaultDropoutRate,
				ReturnRate:  constants.DefaultReturnRate,
				Cooldown:    constants.DefaultCooldown,
			},
			InitialMembers:  constants.DefaultInitialMembers,
			InitialDropouts: constants.DefaultInitialDropouts,
		},
		Solver: SolverConfig{
			RelTol:   constants.DefaultRelTol,
			AbsTol:   constants.DefaultAbsTol,
			MaxSteps: constants.DefaultMaxSteps,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   constants.DataDirName,
		},
		Store: StoreConfig{
			Backend: "sqlite",
			Path:    filepath.Join(constants.DataDirName, constants.DatabaseFileName),
		},
	}
}

// Load reads path when it is non-empty, otherwise starts from the defaults,
// and then applies environment variable overrides.
// Order: defaults -> file -> environment variables
func Load(path string) (*SimConfig, error) {
	config := Default()
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		config = fileConfig
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Fields the
// file omits keep their defaults.
func LoadFromFile(path string) (*SimConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return config, nil
}

// ModelPopulation returns the population of the selected continuous model.
func (c *SimConfig) ModelPopulation() float64 {
	pop := c.Disease.Population
	if c.Variant == constants.VariantMembership {
		pop = c.Membership.Population
	}
	if pop <= 0 {
		return float64(c.Agents)
	}
	return pop
}

// Normalizer returns the driver normalizer, defaulting to the model
// population.
func (c *SimConfig) Normalizer() float64 {
	if c.Influence.DriverNormalizer > 0 {
		return c.Influence.DriverNormalizer
	}
	return c.ModelPopulation()
}

// Validate checks that the configuration is valid. Every invalid field is
// reported; each error wraps ErrInvalidConfig.
func (c *SimConfig) Validate() error {
	var errs []error
	bad := func(field string, value any, reason string) {
		errs = append(errs, &ValidationError{Field: field, Value: value, Reason: reason})
	}

	switch c.Variant {
	case constants.VariantVaccination, constants.VariantMembership:
	default:
		bad("variant", c.Variant, "must be vaccination or membership")
	}
	if c.Horizon <= 0 {
		bad("horizon", c.Horizon, "must be positive")
	}
	if c.Agents <= 0 {
		bad("agents", c.Agents, "must be positive")
	}

	if _, err := network.NewBuilder(c.Network.Kind); err != nil {
		bad("network.kind", c.Network.Kind, "must be newman-watts-strogatz or watts-strogatz")
	}
	if c.Network.K < 0 || c.Network.K%2 != 0 {
		bad("network.k", c.Network.K, "must be even and non-negative")
	} else if c.Agents > 0 && c.Network.K >= c.Agents {
		bad("network.k", c.Network.K, fmt.Sprintf("must be smaller than agents (%d)", c.Agents))
	}
	if !inUnit(c.Network.P) {
		bad("network.p", c.Network.P, "must be in [0,1]")
	}

	in := c.Influence
	if !inUnit(in.DriverWeight) {
		bad("influence.driver_weight", in.DriverWeight, "must be in [0,1]")
	}
	if !inUnit(in.SocialWeight) {
		bad("influence.social_weight", in.SocialWeight, "must be in [0,1]")
	}
	if math.Abs(in.DriverWeight+in.SocialWeight-1) > constants.WeightSumTolerance {
		bad("influence", in.DriverWeight+in.SocialWeight, "driver_weight and social_weight must sum to 1")
	}
	if in.MaxDailyCapacity < 0 {
		bad("influence.max_daily_capacity", in.MaxDailyCapacity, "must be non-negative")
	}
	if in.DriverK < 0 {
		bad("influence.driver_k", in.DriverK, "must be non-negative")
	}
	if in.DriverNormalizer < 0 {
		bad("influence.driver_normalizer", in.DriverNormalizer, "must be non-negative")
	}
	if !inUnit(in.PeerInfluence) {
		bad("influence.peer_influence", in.PeerInfluence, "must be in [0,1]")
	}

	for _, d := range []struct {
		field string
		spec  distributions.Spec
	}{
		{"distributions.threshold", c.Distributions.Threshold},
		{"distributions.preference", c.Distributions.Preference},
		{"distributions.distance", c.Distributions.Distance},
	} {
		if err := d.spec.Validate(); err != nil {
			bad(d.field, d.spec.Kind, err.Error())
		}
	}

	switch c.Variant {
	case constants.VariantVaccination:
		if err := c.Disease.SIQRParams.Validate(); err != nil {
			bad("disease", c.Disease.SIQRParams, err.Error())
		}
		if c.Disease.InitialInfected < 0 || c.Disease.InitialInfected > c.ModelPopulation() {
			bad("disease.initial_infected", c.Disease.InitialInfected, "must be within the model population")
		}
	case constants.VariantMembership:
		if err := c.Membership.MembershipParams.Validate(); err != nil {
			bad("membership", c.Membership.MembershipParams, err.Error())
		}
		m := c.Membership
		if m.InitialMembers < 0 || m.InitialDropouts < 0 || m.InitialMembers+m.InitialDropouts > c.ModelPopulation() {
			bad("membership.initial_members", m.InitialMembers+m.InitialDropouts, "initial members and dropouts must fit in the model population")
		}
	}

	if c.Solver.RelTol <= 0 {
		bad("solver.rel_tol", c.Solver.RelTol, "must be positive")
	}
	if c.Solver.AbsTol <= 0 {
		bad("solver.abs_tol", c.Solver.AbsTol, "must be positive")
	}
	if c.Solver.MaxSteps <= 0 {
		bad("solver.max_steps", c.Solver.MaxSteps, "must be positive")
	}

	validLevels := map[string]bool{"": true, "info": true, "debug": true, "trace": true}
	if !validLevels[c.Logging.Level] {
		bad("logging.level", c.Logging.Level, "must be info, debug, trace, or empty for default")
	}
	validBackends := map[string]bool{"sqlite": true, "memory": true}
	if !validBackends[c.Store.Backend] {
		bad("store.backend", c.Store.Backend, "must be sqlite or memory")
	}

	return errors.Join(errs...)
}

func inUnit(x float64) bool { return x >= 0 && x <= 1 }

// applyEnvOverrides applies environment variable overrides to the config.
// Malformed numbers are configuration errors rather than silently ignored.
func applyEnvOverrides(config *SimConfig) error {
	if v := os.Getenv("HYBRIDSIM_SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return &ValidationError{Field: "HYBRIDSIM_SEED", Value: v, Reason: "must be an unsigned integer"}
		}
		config.Seed = n
	}

	if v := os.Getenv("HYBRIDSIM_HORIZON"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &ValidationError{Field: "HYBRIDSIM_HORIZON", Value: v, Reason: "must be an integer"}
		}
		config.Horizon = n
	}

	if v := os.Getenv("HYBRIDSIM_AGENTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &ValidationError{Field: "HYBRIDSIM_AGENTS", Value: v, Reason: "must be an integer"}
		}
		config.Agents = n
	}

	if v := os.Getenv("HYBRIDSIM_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &ValidationError{Field: "HYBRIDSIM_CAPACITY", Value: v, Reason: "must be an integer"}
		}
		config.Influence.MaxDailyCapacity = n
	}

	if v := os.Getenv("HYBRIDSIM_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	return nil
}

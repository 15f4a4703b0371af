// Package distributions builds named, independently seeded samplers for the
// per-agent attributes (thresholds, preferences, distances).
package distributions

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/nvandessel/hybridsim/internal/seed"
	"gonum.org/v1/gonum/stat/distuv"
)

// Distribution kinds.
const (
	KindUniform  = "uniform"
	KindBeta     = "beta"
	KindGamma    = "gamma"
	KindConstant = "constant"
)

// ErrInvalidSpec is wrapped by every Spec validation failure.
var ErrInvalidSpec = errors.New("invalid distribution")

// Spec describes one distribution. Only the fields for Kind are read:
//   - uniform:  Low, High
//   - beta:     Alpha, Beta
//   - gamma:    Shape, Scale
//   - constant: Value
type Spec struct {
	Kind  string  `json:"kind" yaml:"kind"`
	Low   float64 `json:"low,omitempty" yaml:"low,omitempty"`
	High  float64 `json:"high,omitempty" yaml:"high,omitempty"`
	Alpha float64 `json:"alpha,omitempty" yaml:"alpha,omitempty"`
	Beta  float64 `json:"beta,omitempty" yaml:"beta,omitempty"`
	Shape float64 `json:"shape,omitempty" yaml:"shape,omitempty"`
	Scale float64 `json:"scale,omitempty" yaml:"scale,omitempty"`
	Value float64 `json:"value,omitempty" yaml:"value,omitempty"`
}

// Uniform returns a uniform spec over [low, high).
func Uniform(low, high float64) Spec { return Spec{Kind: KindUniform, Low: low, High: high} }

// Beta returns a beta spec.
func Beta(alpha, beta float64) Spec { return Spec{Kind: KindBeta, Alpha: alpha, Beta: beta} }

// Gamma returns a gamma spec with the given shape and scale.
func Gamma(shape, scale float64) Spec { return Spec{Kind: KindGamma, Shape: shape, Scale: scale} }

// Constant returns a degenerate spec that always yields v.
func Constant(v float64) Spec { return Spec{Kind: KindConstant, Value: v} }

// Validate checks the parameters for the spec's kind.
func (s Spec) Validate() error {
	switch s.Kind {
	case KindUniform:
		if !(s.Low < s.High) {
			return fmt.Errorf("%w: uniform requires low < high, got [%g, %g)", ErrInvalidSpec, s.Low, s.High)
		}
	case KindBeta:
		if s.Alpha <= 0 || s.Beta <= 0 {
			return fmt.Errorf("%w: beta requires alpha > 0 and beta > 0, got (%g, %g)", ErrInvalidSpec, s.Alpha, s.Beta)
		}
	case KindGamma:
		if s.Shape <= 0 || s.Scale <= 0 {
			return fmt.Errorf("%w: gamma requires shape > 0 and scale > 0, got (%g, %g)", ErrInvalidSpec, s.Shape, s.Scale)
		}
	case KindConstant:
	default:
		return fmt.Errorf("%w: unknown kind %q (valid: uniform, beta, gamma, constant)", ErrInvalidSpec, s.Kind)
	}
	return nil
}

// Sampler draws batches of values from one distribution.
type Sampler interface {
	Sample(n int) []float64
}

type rander interface {
	Rand() float64
}

type distSampler struct {
	dist rander
}

func (d distSampler) Sample(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = d.dist.Rand()
	}
	return out
}

type constSampler float64

func (c constSampler) Sample(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(c)
	}
	return out
}

// New builds a sampler for spec drawing from src.
func New(spec Spec, src rand.Source) (Sampler, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	switch spec.Kind {
	case KindUniform:
		return distSampler{dist: distuv.Uniform{Min: spec.Low, Max: spec.High, Src: src}}, nil
	case KindBeta:
		return distSampler{dist: distuv.Beta{Alpha: spec.Alpha, Beta: spec.Beta, Src: src}}, nil
	case KindGamma:
		// distuv parameterizes gamma by rate.
		return distSampler{dist: distuv.Gamma{Alpha: spec.Shape, Beta: 1 / spec.Scale, Src: src}}, nil
	default:
		return constSampler(spec.Value), nil
	}
}

// Registry holds one sampler per name, each on its own derived stream.
type Registry struct {
	samplers map[string]Sampler
}

// NewRegistry builds samplers for every spec. Each sampler is seeded with
// seed.Derive(master, name), so the set of names does not affect any
// individual stream.
func NewRegistry(specs map[string]Spec, master uint64) (*Registry, error) {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	r := &Registry{samplers: make(map[string]Sampler, len(specs))}
	for _, name := range names {
		s, err := New(specs[name], seed.NewSource(seed.Derive(master, name)))
		if err != nil {
			return nil, fmt.Errorf("distribution %q: %w", name, err)
		}
		r.samplers[name] = s
	}
	return r, nil
}

// Get returns the sampler registered under name.
func (r *Registry) Get(name string) (Sampler, bool) {
	s, ok := r.samplers[name]
	return s, ok
}

// Sample draws n values from the named sampler.
func (r *Registry) Sample(name string, n int) ([]float64, error) {
	s, ok := r.samplers[name]
	if !ok {
		return nil, fmt.Errorf("distribution %q not registered", name)
	}
	return s.Sample(n), nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.samplers))
	for name := range r.samplers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

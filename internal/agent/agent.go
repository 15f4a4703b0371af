// Package agent holds per-individual state and the population view the
// diffusion engine works on.
package agent

import (
	"fmt"

	"github.com/nvandessel/hybridsim/internal/network"
	"gonum.org/v1/gonum/floats"
)

// Status is an agent's position in the {inactive, active, lapsed} ring.
// The vaccination model only uses Inactive (unconverted) and Active
// (converted); the membership model reads them as potential, member and
// dropout.
type Status uint8

const (
	Inactive Status = iota
	Active
	Lapsed

	numStatuses = 3
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Active:
		return "active"
	case Lapsed:
		return "lapsed"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool { return s < numStatuses }

// Agent is one individual on the network.
type Agent struct {
	ID         int
	Threshold  float64
	Preference float64
	Distance   float64
	Status     Status

	// Neighbors aliases the network's adjacency list and must not be modified.
	Neighbors []int
}

// Attributes are the per-agent draws used to build a population.
type Attributes struct {
	Thresholds  []float64
	Preferences []float64
	Distances   []float64 // optional; zero when nil
}

// Population is the flat, index-stable collection of agents.
type Population struct {
	agents []Agent
}

// NewPopulation creates one Inactive agent per network node.
func NewPopulation(attrs Attributes, nb network.Neighbors) (*Population, error) {
	n := len(nb)
	if len(attrs.Thresholds) != n {
		return nil, fmt.Errorf("thresholds: got %d values for %d agents", len(attrs.Thresholds), n)
	}
	if len(attrs.Preferences) != n {
		return nil, fmt.Errorf("preferences: got %d values for %d agents", len(attrs.Preferences), n)
	}
	if attrs.Distances != nil && len(attrs.Distances) != n {
		return nil, fmt.Errorf("distances: got %d values for %d agents", len(attrs.Distances), n)
	}

	agents := make([]Agent, n)
	for i := range agents {
		agents[i] = Agent{
			ID:         i,
			Threshold:  attrs.Thresholds[i],
			Preference: attrs.Preferences[i],
			Status:     Inactive,
			Neighbors:  nb[i],
		}
		if attrs.Distances != nil {
			agents[i].Distance = attrs.Distances[i]
		}
	}
	return &Population{agents: agents}, nil
}

// Len returns the number of agents.
func (p *Population) Len() int { return len(p.agents) }

// At returns agent i. The pointer stays valid for the population's lifetime.
func (p *Population) At(i int) *Agent { return &p.agents[i] }

// SetStatus changes agent i's status.
func (p *Population) SetStatus(i int, s Status) { p.agents[i].Status = s }

// LocalSignal returns the fraction of agent i's neighbors whose status is s.
// An agent without neighbors has signal 0.
func (p *Population) LocalSignal(i int, s Status) float64 {
	ns := p.agents[i].Neighbors
	if len(ns) == 0 {
		return 0
	}
	hits := 0
	for _, j := range ns {
		if p.agents[j].Status == s {
			hits++
		}
	}
	return float64(hits) / float64(len(ns))
}

// MeanLocalSignal averages LocalSignal(i, s) over idx; 0 for an empty set.
func (p *Population) MeanLocalSignal(idx []int, s Status) float64 {
	if len(idx) == 0 {
		return 0
	}
	signals := make([]float64, len(idx))
	for k, i := range idx {
		signals[k] = p.LocalSignal(i, s)
	}
	return floats.Sum(signals) / float64(len(idx))
}

// Count returns how many agents have status s.
func (p *Population) Count(s Status) int {
	n := 0
	for i := range p.agents {
		if p.agents[i].Status == s {
			n++
		}
	}
	return n
}

// Snapshot returns every agent's status in index order.
func (p *Population) Snapshot() []Status {
	out := make([]Status, len(p.agents))
	for i := range p.agents {
		out[i] = p.agents[i].Status
	}
	return out
}

// Partition groups agent indices by status. Indices within a group are in
// ascending order.
type Partition [numStatuses][]int

// Partition computes the status partition for the current day.
func (p *Population) Partition() Partition {
	var part Partition
	for i := range p.agents {
		s := p.agents[i].Status
		part[s] = append(part[s], i)
	}
	return part
}

// Of returns the indices with status s.
func (pt Partition) Of(s Status) []int {
	if !s.Valid() {
		return nil
	}
	return pt[s]
}

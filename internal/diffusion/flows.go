package diffusion

import (
	"fmt"
	"math/rand/v2"

	"github.com/nvandessel/hybridsim/internal/agent"
	"github.com/nvandessel/hybridsim/internal/constants"
	"github.com/nvandessel/hybridsim/internal/seed"
)

// WeightFunc scores an agent for selection into a flow.
type WeightFunc func(a *agent.Agent) float64

// Flow is one named status transition.
type Flow struct {
	Name   string
	From   agent.Status
	To     agent.Status
	Weight WeightFunc
}

// JoiningWeight favors agents with a high preference who live close by.
func JoiningWeight(a *agent.Agent) float64 {
	return a.Preference / (1 + a.Distance)
}

// PreferenceWeight scores an agent by preference alone.
func PreferenceWeight(a *agent.Agent) float64 {
	return a.Preference
}

// MembershipFlows returns the potential/member/dropout ring in the order the
// flows are applied each day.
func MembershipFlows() []Flow {
	return []Flow{
		{Name: constants.FlowNewMembers, From: agent.Inactive, To: agent.Active, Weight: JoiningWeight},
		{Name: constants.FlowNewDropouts, From: agent.Active, To: agent.Lapsed, Weight: PreferenceWeight},
		{Name: constants.FlowNewPotentials, From: agent.Lapsed, To: agent.Inactive, Weight: PreferenceWeight},
	}
}

// FlowEngine moves agents along several named transitions per day. Every
// flow has its own random source, and eligibility for all flows comes from a
// single partition taken before any flow is applied, so an agent moves at
// most once per day.
type FlowEngine struct {
	flows    []Flow
	capacity int
	sources  []rand.Source
	counters [][]int
}

// NewFlowEngine builds an engine for flows. Each flow's source is derived
// from streams under "capacity/<name>".
func NewFlowEngine(flows []Flow, capacity int, streams seed.Streams) (*FlowEngine, error) {
	if capacity < 0 {
		return nil, fmt.Errorf("%w: capacity must be >= 0, got %d", ErrInvalidConfig, capacity)
	}
	seen := make(map[agent.Status]bool, len(flows))
	e := &FlowEngine{
		flows:    flows,
		capacity: capacity,
		sources:  make([]rand.Source, len(flows)),
		counters: make([][]int, len(flows)),
	}
	for i, f := range flows {
		if f.Name == "" || f.Weight == nil {
			return nil, fmt.Errorf("%w: flow %d needs a name and a weight function", ErrInvalidConfig, i)
		}
		if !f.From.Valid() || !f.To.Valid() {
			return nil, fmt.Errorf("%w: flow %q has an unknown status", ErrInvalidConfig, f.Name)
		}
		if seen[f.From] {
			return nil, fmt.Errorf("%w: flow %q shares its source status with another flow", ErrInvalidConfig, f.Name)
		}
		seen[f.From] = true
		e.sources[i] = streams.Source(constants.StreamCapacity + "/" + f.Name)
	}
	return e, nil
}

// Names returns the flow names in application order.
func (e *FlowEngine) Names() []string {
	names := make([]string, len(e.flows))
	for i, f := range e.flows {
		names[i] = f.Name
	}
	return names
}

// Step applies one day of transitions. targets[i] is the desired number of
// agents for flow i; it is clamped to [0, capacity] and to the flow's
// eligible set. It returns the number moved per flow.
func (e *FlowEngine) Step(pop *agent.Population, targets []int) ([]int, error) {
	if len(targets) != len(e.flows) {
		return nil, fmt.Errorf("got %d flow targets for %d flows", len(targets), len(e.flows))
	}

	part := pop.Partition()
	moves := make([][]int, len(e.flows))
	for i, f := range e.flows {
		eligible := part.Of(f.From)
		n := min(max(targets[i], 0), e.capacity, len(eligible))
		moves[i] = e.sample(i, pop, eligible, n)
	}

	counts := make([]int, len(e.flows))
	for i, f := range e.flows {
		for _, a := range moves[i] {
			pop.SetStatus(a, f.To)
		}
		counts[i] = len(moves[i])
		e.counters[i] = append(e.counters[i], counts[i])
	}
	return counts, nil
}

// Seed moves count agents along flow i, ignoring capacity. It is used once
// at construction so the population matches the initial stocks.
func (e *FlowEngine) Seed(pop *agent.Population, flow, count int) (int, error) {
	if flow < 0 || flow >= len(e.flows) {
		return 0, fmt.Errorf("flow index %d out of range", flow)
	}
	f := e.flows[flow]
	eligible := pop.Partition().Of(f.From)
	n := min(max(count, 0), len(eligible))
	for _, a := range e.sample(flow, pop, eligible, n) {
		pop.SetStatus(a, f.To)
	}
	return n, nil
}

func (e *FlowEngine) sample(flow int, pop *agent.Population, eligible []int, n int) []int {
	if n == 0 {
		return nil
	}
	w := make([]float64, len(eligible))
	for k, a := range eligible {
		w[k] = e.flows[flow].Weight(pop.At(a))
	}
	return WeightedSample(eligible, w, n, e.sources[flow])
}

// Counters returns the per-day counts of flow i.
func (e *FlowEngine) Counters(i int) []int {
	return append([]int(nil), e.counters[i]...)
}

package diffusion

import (
	"testing"

	"github.com/nvandessel/hybridsim/internal/agent"
	"github.com/nvandessel/hybridsim/internal/seed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoiningWeight(t *testing.T) {
	assert.Equal(t, 0.5, JoiningWeight(&agent.Agent{Preference: 1, Distance: 1}))
	assert.Equal(t, 0.8, JoiningWeight(&agent.Agent{Preference: 0.8}))
}

func TestNewFlowEngineValidation(t *testing.T) {
	streams := seed.NewStreams(1)

	_, err := NewFlowEngine(MembershipFlows(), -1, streams)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	dup := []Flow{
		{Name: "a", From: agent.Inactive, To: agent.Active, Weight: PreferenceWeight},
		{Name: "b", From: agent.Inactive, To: agent.Lapsed, Weight: PreferenceWeight},
	}
	_, err = NewFlowEngine(dup, 3, streams)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewFlowEngine([]Flow{{Name: "x", From: agent.Inactive, To: agent.Active}}, 3, streams)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	e, err := NewFlowEngine(MembershipFlows(), 3, streams)
	require.NoError(t, err)
	assert.Equal(t, []string{"new_members", "new_dropouts", "new_potentials"}, e.Names())
}

func TestFlowEngineSeed(t *testing.T) {
	pop := uniformPopulation(t, 30, 0.5, 1)
	e, err := NewFlowEngine(MembershipFlows(), 2, seed.NewStreams(4))
	require.NoError(t, err)

	// Seeding ignores the daily capacity.
	n, err := e.Seed(pop, 0, 12)
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	n, err = e.Seed(pop, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	assert.Equal(t, 18, pop.Count(agent.Inactive))
	assert.Equal(t, 7, pop.Count(agent.Active))
	assert.Equal(t, 5, pop.Count(agent.Lapsed))

	n, err = e.Seed(pop, 2, 99)
	require.NoError(t, err)
	assert.Equal(t, 5, n, "clamped to eligible")

	_, err = e.Seed(pop, 3, 1)
	assert.Error(t, err)
}

func TestFlowEngineStepDisjoint(t *testing.T) {
	pop := uniformPopulation(t, 40, 0.5, 1)
	e, err := NewFlowEngine(MembershipFlows(), 100, seed.NewStreams(8))
	require.NoError(t, err)
	_, err = e.Seed(pop, 0, 20)
	require.NoError(t, err)
	_, err = e.Seed(pop, 1, 10)
	require.NoError(t, err)
	// 20 potentials, 10 members, 10 dropouts.

	counts, err := e.Step(pop, []int{20, 10, 10})
	require.NoError(t, err)
	assert.Equal(t, []int{20, 10, 10}, counts)

	// Every agent moved exactly one step around the ring.
	assert.Equal(t, 10, pop.Count(agent.Inactive))
	assert.Equal(t, 20, pop.Count(agent.Active))
	assert.Equal(t, 10, pop.Count(agent.Lapsed))
}

func TestFlowEngineStepClamps(t *testing.T) {
	pop := uniformPopulation(t, 10, 0.5, 1)
	e, err := NewFlowEngine(MembershipFlows(), 3, seed.NewStreams(8))
	require.NoError(t, err)

	counts, err := e.Step(pop, []int{8, 4, -2})
	require.NoError(t, err)
	// Capacity 3 caps joining; nobody is a member or dropout yet.
	assert.Equal(t, []int{3, 0, 0}, counts)
	assert.Equal(t, []int{3}, e.Counters(0))

	_, err = e.Step(pop, []int{1})
	assert.Error(t, err)
}

func TestFlowEngineDeterministic(t *testing.T) {
	run := func() []agent.Status {
		pop := uniformPopulation(t, 50, 0.5, 1)
		for i := 0; i < 50; i++ {
			pop.At(i).Preference = float64(i%7) + 0.5
			pop.At(i).Distance = float64(i % 3)
		}
		e, err := NewFlowEngine(MembershipFlows(), 4, seed.NewStreams(21))
		require.NoError(t, err)
		_, err = e.Seed(pop, 0, 10)
		require.NoError(t, err)
		for day := 0; day < 10; day++ {
			_, err := e.Step(pop, []int{3, 2, 1})
			require.NoError(t, err)
		}
		return pop.Snapshot()
	}
	assert.Equal(t, run(), run())
}

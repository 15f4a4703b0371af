package hybrid

import (
	"fmt"
	"math"

	"github.com/nvandessel/hybridsim/internal/agent"
	"github.com/nvandessel/hybridsim/internal/constants"
	"github.com/nvandessel/hybridsim/internal/diffusion"
	"github.com/nvandessel/hybridsim/internal/stockflow"
)

// outcome is what one day's exchange produced.
type outcome struct {
	driver   float64
	counts   []int
	feedback float64
}

// exchange couples one continuous model to the agent population. day is
// called after the solver has reached that day.
type exchange interface {
	model() stockflow.Model
	initialStocks() stockflow.StockVector
	flowNames() []string
	statusLabels() [3]string
	initialDriver(y stockflow.StockVector) float64
	day(d int) (outcome, error)
}

// vaccination couples an SIQR model with the threshold vaccination rule.
// The infected stock drives agents; the share of agents converting that
// day, scaled to the model population, becomes the next window's
// vaccination fraction.
type vaccination struct {
	siqr       *stockflow.SIQR
	engine     *diffusion.Engine
	pop        *agent.Population
	solver     *stockflow.Solver
	population float64
	infected   float64
}

func (v *vaccination) model() stockflow.Model { return v.siqr }

func (v *vaccination) initialStocks() stockflow.StockVector {
	return v.siqr.InitialStocks(v.population, v.infected)
}

func (v *vaccination) flowNames() []string { return []string{constants.FlowVaccinations} }

func (v *vaccination) statusLabels() [3]string {
	return [3]string{"unvaccinated", "vaccinated", "lapsed"}
}

func (v *vaccination) initialDriver(y stockflow.StockVector) float64 {
	return v.engine.Driver(y[stockflow.Infected])
}

func (v *vaccination) day(d int) (outcome, error) {
	y := v.solver.Last()
	external := y[stockflow.Infected]
	driver := v.engine.Driver(external)
	n := v.engine.Step(v.pop, external)

	v.siqr.VaccineFraction = vaccineFraction(n, v.population, v.pop.Len(), y[stockflow.Susceptible])
	return outcome{driver: driver, counts: []int{n}, feedback: v.siqr.VaccineFraction}, nil
}

// vaccineFraction converts n agent vaccinations into a per-day fraction of
// the susceptible stock. Each agent stands for population/agents people.
func vaccineFraction(n int, population float64, agents int, susceptible float64) float64 {
	if susceptible <= 0 || agents == 0 {
		return 0
	}
	return float64(n) * (population / float64(agents)) / susceptible
}

// membership couples the potential/member/dropout model with the three
// flow ring. Each flow's daily target is the trapezoidal transfer of the
// continuous flow over the day, scaled to the agent population; neighbor
// membership then shifts the joining and dropout rates of the next window.
type membership struct {
	m          *stockflow.Membership
	engine     *diffusion.FlowEngine
	pop        *agent.Population
	solver     *stockflow.Solver
	population float64
	members    float64
	dropouts   float64
	peer       float64
}

func (m *membership) model() stockflow.Model { return m.m }

func (m *membership) initialStocks() stockflow.StockVector {
	return m.m.InitialStocks(m.population, m.members, m.dropouts)
}

func (m *membership) flowNames() []string { return m.engine.Names() }

func (m *membership) statusLabels() [3]string {
	return [3]string{"potential", "member", "dropout"}
}

func (m *membership) initialDriver(y stockflow.StockVector) float64 {
	return y[stockflow.Member] / m.population
}

// seed moves agents so the population matches the initial stocks: first
// members plus dropouts join, then the dropouts leave again.
func (m *membership) seed() error {
	scale := m.scale()
	members := int(math.RoundToEven(m.members * scale))
	dropouts := int(math.RoundToEven(m.dropouts * scale))
	if _, err := m.engine.Seed(m.pop, 0, members+dropouts); err != nil {
		return fmt.Errorf("seeding members: %w", err)
	}
	if _, err := m.engine.Seed(m.pop, 1, dropouts); err != nil {
		return fmt.Errorf("seeding dropouts: %w", err)
	}
	return nil
}

func (m *membership) scale() float64 {
	return float64(m.pop.Len()) / m.population
}

func (m *membership) day(d int) (outcome, error) {
	prev, err := m.solver.Flows(float64(d - 1))
	if err != nil {
		return outcome{}, fmt.Errorf("flows at day %d: %w", d-1, err)
	}
	cur, err := m.solver.Flows(float64(d))
	if err != nil {
		return outcome{}, fmt.Errorf("flows at day %d: %w", d, err)
	}

	targets := flowTargets(prev, cur, m.scale())
	counts, err := m.engine.Step(m.pop, targets)
	if err != nil {
		return outcome{}, err
	}

	part := m.pop.Partition()
	potentialSignal := m.pop.MeanLocalSignal(part.Of(agent.Inactive), agent.Active)
	memberSignal := m.pop.MeanLocalSignal(part.Of(agent.Active), agent.Active)
	base := m.m.Params
	m.m.JoiningRate = base.JoiningRate * (1 + m.peer*potentialSignal)
	m.m.DropoutRate = math.Max(0, base.DropoutRate*(1-m.peer*memberSignal))

	y := m.solver.Last()
	return outcome{
		driver:   y[stockflow.Member] / m.population,
		counts:   counts,
		feedback: m.m.JoiningRate,
	}, nil
}

// flowTargets is the trapezoidal integral of each flow over one day,
// scaled and rounded half to even.
func flowTargets(prev, cur []float64, scale float64) []int {
	out := make([]int, len(cur))
	for i := range cur {
		out[i] = int(math.RoundToEven((prev[i] + cur[i]) / 2 * scale))
	}
	return out
}

package stockflow

import (
	"fmt"

	"github.com/nvandessel/hybridsim/internal/constants"
)

// Membership stock indices.
const (
	Potential = iota
	Member
	Dropout
)

// Membership flow indices, matching the agent-level flow names.
const (
	FlowJoin = iota
	FlowDrop
	FlowReturn
)

// MembershipParams are the base rates of the membership model.
type MembershipParams struct {
	JoiningRate float64 `json:"joining_rate" yaml:"joining_rate"`
	DropoutRate float64 `json:"dropout_rate" yaml:"dropout_rate"`
	ReturnRate  float64 `json:"return_rate" yaml:"return_rate"`
	Cooldown    float64 `json:"cooldown" yaml:"cooldown"`
}

// Validate checks rates are non-negative and the cooldown positive.
func (p MembershipParams) Validate() error {
	switch {
	case p.JoiningRate < 0:
		return fmt.Errorf("%w: joining rate must be >= 0, got %g", ErrInvalidModel, p.JoiningRate)
	case p.DropoutRate < 0:
		return fmt.Errorf("%w: dropout rate must be >= 0, got %g", ErrInvalidModel, p.DropoutRate)
	case p.ReturnRate < 0:
		return fmt.Errorf("%w: return rate must be >= 0, got %g", ErrInvalidModel, p.ReturnRate)
	case p.Cooldown <= 0:
		return fmt.Errorf("%w: cooldown must be > 0, got %g", ErrInvalidModel, p.Cooldown)
	}
	return nil
}

// Membership is a potential/member/dropout ring. Dropouts become potentials
// again only after a cooldown, so the return flow reads the dropout stock
// Cooldown days back. JoiningRate and DropoutRate start at the base rates
// and are rewritten by the coupler each day.
type Membership struct {
	Params      MembershipParams
	JoiningRate float64
	DropoutRate float64
}

// NewMembership validates params and returns a model at its base rates.
func NewMembership(params MembershipParams) (*Membership, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Membership{
		Params:      params,
		JoiningRate: params.JoiningRate,
		DropoutRate: params.DropoutRate,
	}, nil
}

// InitialStocks splits population into potentials, members and dropouts.
func (m *Membership) InitialStocks(population, members, dropouts float64) StockVector {
	return StockVector{population - members - dropouts, members, dropouts}
}

func (m *Membership) Stocks() []string {
	return []string{"potential", "member", "dropout"}
}

func (m *Membership) Flows() []string {
	return []string{constants.FlowNewMembers, constants.FlowNewDropouts, constants.FlowNewPotentials}
}

func (m *Membership) Delays() []float64 {
	return []float64{m.Params.Cooldown}
}

func (m *Membership) EvalFlows(t float64, y StockVector, h History, flows []float64) error {
	past, err := h.QueryDelayed(t - m.Params.Cooldown)
	if err != nil {
		return fmt.Errorf("dropout return: %w", err)
	}
	flows[FlowJoin] = m.JoiningRate * y[Potential]
	flows[FlowDrop] = m.DropoutRate * y[Member]
	flows[FlowReturn] = m.Params.ReturnRate * past[Dropout]
	return nil
}

func (m *Membership) Balance(flows []float64, dydt []float64) {
	dydt[Potential] = flows[FlowReturn] - flows[FlowJoin]
	dydt[Member] = flows[FlowJoin] - flows[FlowDrop]
	dydt[Dropout] = flows[FlowDrop] - flows[FlowReturn]
}

package stockflow

import (
	"fmt"
)

// SIQR stock indices.
const (
	Susceptible = iota
	Infected
	Quarantined
	Recovered
)

// SIQR flow indices.
const (
	FlowInfection = iota
	FlowRecovery
	FlowQuarantine
	FlowVaccination
	FlowRelease
)

// SIQRParams are the disease rate parameters. Times are in days.
type SIQRParams struct {
	ContactRate        float64 `json:"contact_rate" yaml:"contact_rate"`
	Infectivity        float64 `json:"infectivity" yaml:"infectivity"`
	SymptomDelay       float64 `json:"symptom_delay" yaml:"symptom_delay"`
	QuarantineLength   float64 `json:"quarantine_length" yaml:"quarantine_length"`
	QuarantineFraction float64 `json:"quarantine_fraction" yaml:"quarantine_fraction"`
	InfectivityLength  float64 `json:"infectivity_length" yaml:"infectivity_length"`
}

// Validate checks that the flow equations are well defined.
func (p SIQRParams) Validate() error {
	switch {
	case p.ContactRate < 0:
		return fmt.Errorf("%w: contact rate must be >= 0, got %g", ErrInvalidModel, p.ContactRate)
	case p.Infectivity < 0 || p.Infectivity > 1:
		return fmt.Errorf("%w: infectivity must be in [0,1], got %g", ErrInvalidModel, p.Infectivity)
	case p.SymptomDelay <= 0:
		return fmt.Errorf("%w: symptom delay must be > 0, got %g", ErrInvalidModel, p.SymptomDelay)
	case p.QuarantineLength <= 0:
		return fmt.Errorf("%w: quarantine length must be > 0, got %g", ErrInvalidModel, p.QuarantineLength)
	case p.QuarantineFraction < 0 || p.QuarantineFraction > 1:
		return fmt.Errorf("%w: quarantine fraction must be in [0,1], got %g", ErrInvalidModel, p.QuarantineFraction)
	case p.InfectivityLength <= p.SymptomDelay:
		return fmt.Errorf("%w: infectivity length (%g) must exceed symptom delay (%g)", ErrInvalidModel, p.InfectivityLength, p.SymptomDelay)
	}
	return nil
}

// SIQR is a susceptible/infected/quarantined/recovered model. Quarantined
// people are released QuarantineLength days after they entered, so the
// release flow reads infected state from that far back. Vaccination moves
// people straight from S to R at VaccineFraction per day; the coupler
// rewrites that fraction once per simulated day.
type SIQR struct {
	Params          SIQRParams
	VaccineFraction float64
}

// NewSIQR validates params and returns a model with no vaccination.
func NewSIQR(params SIQRParams) (*SIQR, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &SIQR{Params: params}, nil
}

// InitialStocks places infected people in I and the rest in S.
func (m *SIQR) InitialStocks(population, infected float64) StockVector {
	return StockVector{population - infected, infected, 0, 0}
}

func (m *SIQR) Stocks() []string {
	return []string{"susceptible", "infected", "quarantined", "recovered"}
}

func (m *SIQR) Flows() []string {
	return []string{"infection", "recovery", "quarantine", "vaccination", "release"}
}

func (m *SIQR) Delays() []float64 {
	return []float64{m.Params.QuarantineLength}
}

func (m *SIQR) EvalFlows(t float64, y StockVector, h History, flows []float64) error {
	p := m.Params
	s, i, r := y[Susceptible], y[Infected], y[Recovered]

	// Quarantined people neither mix nor count toward the contact pool.
	mixing := s + i + r
	infection := 0.0
	if mixing > 0 {
		infection = p.ContactRate * p.Infectivity * s * i / mixing
	}

	// Nobody was quarantined before the run started.
	past, err := h.QueryDelayedOr(t-p.QuarantineLength, make(StockVector, len(y)))
	if err != nil {
		return fmt.Errorf("quarantine release: %w", err)
	}

	flows[FlowInfection] = infection
	flows[FlowRecovery] = (1 - p.QuarantineFraction) * i / (p.InfectivityLength - p.SymptomDelay)
	flows[FlowQuarantine] = p.QuarantineFraction * i / p.SymptomDelay
	flows[FlowVaccination] = m.VaccineFraction * s
	flows[FlowRelease] = p.QuarantineFraction * past[Infected] / p.SymptomDelay
	return nil
}

func (m *SIQR) Balance(flows []float64, dydt []float64) {
	dydt[Susceptible] = -flows[FlowInfection] - flows[FlowVaccination]
	dydt[Infected] = flows[FlowInfection] - flows[FlowRecovery] - flows[FlowQuarantine]
	dydt[Quarantined] = flows[FlowQuarantine] - flows[FlowRelease]
	dydt[Recovered] = flows[FlowVaccination] + flows[FlowRecovery] + flows[FlowRelease]
}

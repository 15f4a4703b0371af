// Package stockflow integrates delay-differential stock-and-flow models.
//
// A Model supplies named stocks, named flows and the flow equations; flows
// may read lagged state through History. The Solver advances the model in
// bounded sub-spans no longer than the shortest delay, so every lagged
// lookup made during a sub-span lands in history that is already solved.
// Each sub-span's dense output is appended to an Interpolant that answers
// those lookups.
package stockflow

import (
	"gonum.org/v1/gonum/floats"
)

// StockVector is the value of every stock at one instant.
type StockVector []float64

// Clone returns an independent copy.
func (v StockVector) Clone() StockVector {
	if v == nil {
		return nil
	}
	out := make(StockVector, len(v))
	copy(out, v)
	return out
}

// Sum returns the total across compartments.
func (v StockVector) Sum() float64 { return floats.Sum(v) }

// HasNegative reports whether any compartment is below zero.
func (v StockVector) HasNegative() bool {
	for _, x := range v {
		if x < 0 {
			return true
		}
	}
	return false
}

// History answers lagged-state queries.
type History interface {
	// QueryDelayed returns the state at t. Times before zero return the
	// initial condition; times past the solved horizon fail with
	// ErrDelayLookup.
	QueryDelayed(t float64) (StockVector, error)

	// QueryDelayedOr is QueryDelayed but returns def for t < 0.
	QueryDelayedOr(t float64, def StockVector) (StockVector, error)
}

// Model is a stock-and-flow system.
type Model interface {
	// Stocks names the compartments, in StockVector order.
	Stocks() []string

	// Flows names the flow terms, in EvalFlows output order.
	Flows() []string

	// Delays lists every lag the flow equations read. The smallest one
	// bounds the solver's sub-span length.
	Delays() []float64

	// EvalFlows writes the flow rates at (t, y) into flows.
	EvalFlows(t float64, y StockVector, h History, flows []float64) error

	// Balance writes dy/dt given the flow rates.
	Balance(flows []float64, dydt []float64)
}

// FuncModel adapts plain functions to Model.
type FuncModel struct {
	StockNames []string
	FlowNames  []string
	Lags       []float64
	FlowFunc   func(t float64, y StockVector, h History, flows []float64) error
	BalanceFn  func(flows []float64, dydt []float64)
}

func (m FuncModel) Stocks() []string  { return m.StockNames }
func (m FuncModel) Flows() []string   { return m.FlowNames }
func (m FuncModel) Delays() []float64 { return m.Lags }

func (m FuncModel) EvalFlows(t float64, y StockVector, h History, flows []float64) error {
	return m.FlowFunc(t, y, h, flows)
}

func (m FuncModel) Balance(flows []float64, dydt []float64) {
	m.BalanceFn(flows, dydt)
}

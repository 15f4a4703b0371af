package simulation

import (
	"github.com/nvandessel/hybridsim/internal/config"
	"github.com/nvandessel/hybridsim/internal/constants"
	"github.com/nvandessel/hybridsim/internal/store"
)

// BaseConfig returns the reference scenario configuration: 100 agents on a
// k=4, p=0.1 small-world network for 30 days, stored in memory.
func BaseConfig(variant string) *config.SimConfig {
	cfg := config.Default()
	if variant != "" {
		cfg.Variant = variant
	}
	cfg.Agents = 100
	cfg.Horizon = 30
	cfg.Network.Kind = constants.DefaultNetworkKind
	cfg.Network.K = 4
	cfg.Network.P = 0.1
	cfg.Store.Backend = store.BackendMemory
	cfg.Logging.Level = "info"
	return cfg
}

func sum(xs []float64) float64 {
	total := 0.0
	for _, x := range xs {
		total += x
	}
	return total
}

// Package simulation provides a scenario harness for validating emergent
// properties of full hybrid runs.
//
// The harness exercises the real coupler, solver, diffusion engine and
// SQLiteRunStore with no mocks. A Scenario starts from the default
// configuration, applies a mutation, and runs once per seed; every run is
// saved to the store and read back, so assertions see exactly what was
// persisted.
//
// Each test gets an isolated SQLite database via t.TempDir() and a sandboxed
// HOME to prevent touching user data.
//
// Usage:
//
//	func TestConservation(t *testing.T) {
//	    r := simulation.NewRunner(t)
//	    result := r.Run(simulation.Scenario{
//	        Name:    "vaccination-baseline",
//	        Variant: constants.VariantVaccination,
//	        Seeds:   []uint64{1, 2, 3},
//	    })
//	    simulation.AssertConservation(t, result, 1e-6)
//	}
package simulation

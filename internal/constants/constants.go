// Package constants provides named constants used throughout the hybridsim codebase.
// This centralizes magic numbers for better maintainability and documentation.
package constants

// Model variants
const (
	// VariantVaccination couples an SIQR disease model with a threshold
	// vaccination decision on the social network.
	VariantVaccination = "vaccination"

	// VariantMembership couples a potential/member/dropout model with
	// flow-targeted membership transitions on the social network.
	VariantMembership = "membership"
)

// Run defaults
const (
	// DefaultSeed is the master seed used when none is configured.
	DefaultSeed uint64 = 42

	// DefaultHorizon is the number of simulated days.
	DefaultHorizon = 30

	// DefaultAgents is the size of the agent population.
	DefaultAgents = 100
)

// Social network defaults
const (
	// DefaultNetworkKind is the small-world generator used when none is configured.
	DefaultNetworkKind = "newman-watts-strogatz"

	// DefaultNetworkK is the ring-lattice degree before shortcuts are added.
	DefaultNetworkK = 4

	// DefaultNetworkP is the per-edge shortcut (or rewiring) probability.
	DefaultNetworkP = 0.1
)

// Diffusion defaults
const (
	// DefaultDriverWeight is the share of influence coming from the global driver.
	// DefaultDriverWeight + DefaultSocialWeight must equal 1.
	DefaultDriverWeight = 0.5

	// DefaultSocialWeight is the share of influence coming from neighbors.
	DefaultSocialWeight = 0.5

	// DefaultDriverGain is k in driver = 1 - exp(-k * external / normalizer).
	DefaultDriverGain = 10.0

	// DefaultDailyCapacity is the maximum number of agents converting per day.
	DefaultDailyCapacity = 5

	// DefaultPeerInfluence scales the membership feedback from neighbor signals.
	DefaultPeerInfluence = 0.3

	// WeightSumTolerance is the slack allowed when checking that influence
	// weights sum to one.
	WeightSumTolerance = 1e-9
)

// Disease (SIQR) defaults
const (
	DefaultContactRate        = 8.0
	DefaultInfectivity        = 0.05
	DefaultSymptomDelay       = 5.0
	DefaultQuarantineLength   = 14.0
	DefaultQuarantineFraction = 0.5
	DefaultInfectivityLength  = 10.0
	DefaultInitialInfected    = 1.0
)

// Membership defaults
const (
	DefaultInitialMembers  = 10.0
	DefaultInitialDropouts = 0.0
	DefaultJoiningRate     = 0.02
	DefaultDropoutRate     = 0.03
	DefaultReturnRate      = 0.02
	DefaultCooldown        = 7.0
)

// Solver defaults mirror the usual embedded-pair tolerances.
const (
	DefaultRelTol   = 1e-3
	DefaultAbsTol   = 1e-6
	DefaultMaxSteps = 100000
)

// Storage defaults
const (
	// DataDirName is the per-project directory holding run databases and traces.
	DataDirName = ".hybridsim"

	// DatabaseFileName is the SQLite file inside DataDirName.
	DatabaseFileName = "runs.db"
)

// Named random streams. Each stream gets its own derived seed so that adding
// or reordering consumers never shifts another stream.
const (
	StreamNetwork    = "network"
	StreamThreshold  = "threshold"
	StreamPreference = "preference"
	StreamDistance   = "distance"
	StreamCapacity   = "capacity"
)

// Membership flow names, in the order they are applied each day.
const (
	FlowNewMembers    = "new_members"
	FlowNewDropouts   = "new_dropouts"
	FlowNewPotentials = "new_potentials"
)

// FlowVaccinations names the single flow of the vaccination variant.
const FlowVaccinations = "vaccinations"

package constraint

// SolverInfo is the mutable tunables struct shared by the world and the
// solver. The world exposes it through GetSolverInfo; callers adjust fields
// between steps.
type SolverInfo struct {
	NumIterations int

	// Default coefficients for constraints that carry no material data;
	// contacts combine the body materials instead
	Friction    float64
	Restitution float64

	// TimeStep is written by the world each substep
	TimeStep float64

	// Baumgarte error reduction for contacts and joints
	ERP float64
	// ERP2 applies to deep penetrations, past the split impulse threshold
	ERP2      float64
	GlobalCFM float64

	SplitImpulse                     bool
	SplitImpulsePenetrationThreshold float64

	// LinearSlop is penetration the solver leaves unresolved to avoid jitter
	LinearSlop float64

	// WarmstartingFactor scales the previous step's impulse used as the
	// solver's initial guess
	WarmstartingFactor float64

	// ContactBreakingThreshold seeds new manifolds
	ContactBreakingThreshold float64

	// Default sleeping thresholds for new bodies
	LinearSleepingThreshold  float64
	AngularSleepingThreshold float64
}

// NewSolverInfo returns the standard tuning
func NewSolverInfo() SolverInfo {
	return SolverInfo{
		NumIterations:                    10,
		Friction:                         0.3,
		Restitution:                      0.0,
		ERP:                              0.2,
		ERP2:                             0.2,
		GlobalCFM:                        0.0,
		SplitImpulse:                     true,
		SplitImpulsePenetrationThreshold: -0.04,
		LinearSlop:                       0.0,
		WarmstartingFactor:               0.85,
		ContactBreakingThreshold:         0.02,
		LinearSleepingThreshold:          0.8,
		AngularSleepingThreshold:         1.0,
	}
}

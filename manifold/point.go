package manifold

import "github.com/go-gl/mathgl/mgl64"

// PointFlags mark optional per-point solver overrides
type PointFlags uint32

const (
	// FlagLateralFrictionInitialized is set once the solver has computed the
	// two lateral friction directions for warm starting
	FlagLateralFrictionInitialized PointFlags = 1 << iota
	// FlagHasContactCFM enables the per-point constraint force mixing override
	FlagHasContactCFM
	// FlagHasContactERP enables the per-point error reduction override
	FlagHasContactERP
	// FlagContactStiffnessDamping enables spring-style stiffness/damping
	FlagContactStiffnessDamping
	// FlagFrictionAnchor keeps the friction application point pinned to the
	// initial contact location
	FlagFrictionAnchor
)

// ContactPoint is one cached contact between two bodies.
//
// Local points are the persistence key: they stay meaningful across frames
// while the bodies move, so the cache can recognize "the same" contact and
// keep its warm-start impulses.
type ContactPoint struct {
	LocalPointA mgl64.Vec3
	LocalPointB mgl64.Vec3

	PositionWorldOnA mgl64.Vec3
	PositionWorldOnB mgl64.Vec3
	// NormalWorldOnB points from B toward A
	NormalWorldOnB mgl64.Vec3

	// Distance along the normal, negative when the bodies overlap
	Distance float64

	CombinedFriction         float64
	CombinedRestitution      float64
	CombinedRollingFriction  float64
	CombinedSpinningFriction float64

	// Warm-start state, written back by the solver each substep and used as
	// its initial guess the next one
	AppliedImpulse         float64
	AppliedImpulseLateral1 float64
	AppliedImpulseLateral2 float64
	LateralFrictionDir1    mgl64.Vec3
	LateralFrictionDir2    mgl64.Vec3

	// Target surface velocities (conveyor-belt style motors)
	ContactMotion1 float64
	ContactMotion2 float64
	// Per-point solver overrides, valid when the matching flag is set
	ContactCFM float64
	ContactERP float64

	// LifeTime counts the substeps this point survived in the cache
	LifeTime int

	Flags PointFlags

	// UserPersistentData is an opaque handle owned by the narrow phase,
	// released through the sink's Destroyed callback, never by the manifold
	UserPersistentData any
}

// NewContactPoint builds a point from the narrow phase's output.
// World positions and distance are expected to be consistent with the
// local points at the current transforms.
func NewContactPoint(localA, localB, normalOnB mgl64.Vec3, distance float64) ContactPoint {
	return ContactPoint{
		LocalPointA:    localA,
		LocalPointB:    localB,
		NormalWorldOnB: normalOnB,
		Distance:       distance,
	}
}

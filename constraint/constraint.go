package constraint

import (
	"math"

	"github.com/akmonengine/anvil/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// MaxFriction bounds combined friction coefficients
const MaxFriction = 10.0

// Constraint restricts the relative motion of two bodies.
// Contacts are not constraints: they live in persistent manifolds and are
// handled by the solver directly.
type Constraint interface {
	BodyA() *actor.RigidBody
	BodyB() *actor.RigidBody
	IsEnabled() bool
	// SolveVelocity applies one velocity-space correction iteration
	SolveVelocity(dt float64)
}

// CombineFriction mixes two friction coefficients.
// Moyenne géométrique (standard en physique), clamped for stability.
func CombineFriction(matA, matB actor.Material) float64 {
	friction := math.Sqrt(matA.Friction * matB.Friction)
	if friction > MaxFriction {
		friction = MaxFriction
	}
	return friction
}

// CombineRestitution mixes two restitution coefficients
func CombineRestitution(matA, matB actor.Material) float64 {
	return matA.Restitution * matB.Restitution
}

func CombineRollingFriction(matA, matB actor.Material) float64 {
	return math.Sqrt(matA.RollingFriction * matB.RollingFriction)
}

func CombineSpinningFriction(matA, matB actor.Material) float64 {
	return math.Sqrt(matA.SpinningFriction * matB.SpinningFriction)
}

func clampSmallVelocities(rb *actor.RigidBody) {
	const velocityThreshold = 1e-5

	if rb.LinearVelocity.Len() < velocityThreshold {
		rb.LinearVelocity = mgl64.Vec3{0, 0, 0}
	}
	if rb.AngularVelocity.Len() < velocityThreshold {
		rb.AngularVelocity = mgl64.Vec3{0, 0, 0}
	}
}

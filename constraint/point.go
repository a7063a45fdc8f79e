package constraint

import (
	"github.com/akmonengine/anvil/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// PointConstraint is a ball-socket joint: a pivot fixed in each body's local
// frame is kept coincident in world space.
type PointConstraint struct {
	bodyA *actor.RigidBody
	bodyB *actor.RigidBody

	// Pivot points in each body's local frame
	PivotA mgl64.Vec3
	PivotB mgl64.Vec3

	// ERP pulls the pivots back together when they drift
	ERP float64

	Enabled bool
}

func NewPointConstraint(bodyA, bodyB *actor.RigidBody, pivotA, pivotB mgl64.Vec3) *PointConstraint {
	return &PointConstraint{
		bodyA:   bodyA,
		bodyB:   bodyB,
		PivotA:  pivotA,
		PivotB:  pivotB,
		ERP:     0.2,
		Enabled: true,
	}
}

func (c *PointConstraint) BodyA() *actor.RigidBody { return c.bodyA }
func (c *PointConstraint) BodyB() *actor.RigidBody { return c.bodyB }
func (c *PointConstraint) IsEnabled() bool         { return c.Enabled }

// SolveVelocity cancels the relative velocity of the two pivots and feeds
// back the positional drift through ERP
func (c *PointConstraint) SolveVelocity(dt float64) {
	worldPivotA := c.bodyA.Transform.TransformPoint(c.PivotA)
	worldPivotB := c.bodyB.Transform.TransformPoint(c.PivotB)

	rA := worldPivotA.Sub(c.bodyA.Transform.Position)
	rB := worldPivotB.Sub(c.bodyB.Transform.Position)

	relVel := c.bodyA.GetVelocityInLocalPoint(rA).Sub(c.bodyB.GetVelocityInLocalPoint(rB))
	drift := worldPivotA.Sub(worldPivotB)

	target := relVel.Add(drift.Mul(c.ERP / dt))

	// K = (1/mA + 1/mB)·I - [rA]x·IAinv·[rA]x - [rB]x·IBinv·[rB]x
	k := kMatrix(c.bodyA, rA).Add(kMatrix(c.bodyB, rB))
	if k.Det() == 0 {
		return
	}

	impulse := k.Inv().Mul3x1(target).Mul(-1)

	c.bodyA.ApplyImpulse(impulse, rA)
	c.bodyB.ApplyImpulse(impulse.Mul(-1), rB)
}

func kMatrix(body *actor.RigidBody, r mgl64.Vec3) mgl64.Mat3 {
	invMass := body.InverseMass()
	k := mgl64.Mat3{
		invMass, 0, 0,
		0, invMass, 0,
		0, 0, invMass,
	}

	if invMass == 0 {
		return k
	}

	rx := skew(r)
	invI := body.GetInverseInertiaWorld()
	angular := rx.Mul3(invI).Mul3(rx).Mul(-1)

	return k.Add(angular)
}

func skew(v mgl64.Vec3) mgl64.Mat3 {
	// Column-major: rows are {0, -z, y}, {z, 0, -x}, {-y, x, 0}
	return mgl64.Mat3{
		0, v.Z(), -v.Y(),
		-v.Z(), 0, v.X(),
		v.Y(), -v.X(), 0,
	}
}

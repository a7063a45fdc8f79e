package constraint

import (
	"testing"

	"github.com/akmonengine/anvil/actor"
	"github.com/go-gl/mathgl/mgl64"
)

func TestPointConstraint_CancelsPivotVelocity(t *testing.T) {
	bodyA := actor.NewRigidBody(actor.NewTransform(), &actor.Sphere{Radius: 1}, 1.0)
	anchor := actor.NewRigidBody(actor.NewTransformAt(mgl64.Vec3{2, 0, 0}), &actor.Sphere{Radius: 1}, 0)

	// Both pivots coincide at world {1, 0, 0}
	c := NewPointConstraint(bodyA, anchor, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{-1, 0, 0})

	bodyA.LinearVelocity = mgl64.Vec3{0, 1, 0}

	c.SolveVelocity(1.0 / 60.0)

	pivotVel := bodyA.GetVelocityInLocalPoint(mgl64.Vec3{1, 0, 0})
	if pivotVel.Len() > 1e-9 {
		t.Errorf("pivot velocity after solve = %v, want ~zero", pivotVel)
	}
}

func TestPointConstraint_DriftCorrection(t *testing.T) {
	bodyA := actor.NewRigidBody(actor.NewTransformAt(mgl64.Vec3{0, -0.1, 0}), &actor.Sphere{Radius: 1}, 1.0)
	anchor := actor.NewRigidBody(actor.NewTransformAt(mgl64.Vec3{2, 0, 0}), &actor.Sphere{Radius: 1}, 0)

	// Pivots should coincide but body A sagged 0.1 below
	c := NewPointConstraint(bodyA, anchor, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{-1, 0, 0})

	c.SolveVelocity(1.0 / 60.0)

	// The bias impulse must push the pivot back up toward the anchor
	if bodyA.LinearVelocity.Y() <= 0 {
		t.Errorf("v.y = %v, want > 0 pulling the drifted pivot back", bodyA.LinearVelocity.Y())
	}
}

func TestPointConstraint_Disabled(t *testing.T) {
	bodyA := actor.NewRigidBody(actor.NewTransform(), &actor.Sphere{Radius: 1}, 1.0)
	anchor := actor.NewRigidBody(actor.NewTransformAt(mgl64.Vec3{2, 0, 0}), &actor.Sphere{Radius: 1}, 0)

	c := NewPointConstraint(bodyA, anchor, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{-1, 0, 0})
	c.Enabled = false

	if c.IsEnabled() {
		t.Error("IsEnabled() = true after disabling")
	}
	if c.BodyA() != bodyA || c.BodyB() != anchor {
		t.Error("constraint bodies not preserved")
	}
}

package actor

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestTransformPointRoundTrip(t *testing.T) {
	tr := NewTransformAt(mgl64.Vec3{1, 2, 3})
	tr.SetRotation(mgl64.QuatRotate(0.7, mgl64.Vec3{1, 2, 0}.Normalize()))

	points := []mgl64.Vec3{
		{0, 0, 0},
		{1, 0, 0},
		{-3, 5, 2},
	}

	for _, local := range points {
		world := tr.TransformPoint(local)
		back := tr.InvTransformPoint(world)
		if back.Sub(local).Len() > 1e-12 {
			t.Errorf("round trip of %v drifted to %v", local, back)
		}
	}
}

func TestTransformPoint_RotationThenTranslation(t *testing.T) {
	tr := NewTransformAt(mgl64.Vec3{10, 0, 0})
	tr.SetRotation(mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1}))

	// {1,0,0} tourné de 90° autour de z donne {0,1,0}, puis translaté
	got := tr.TransformPoint(mgl64.Vec3{1, 0, 0})
	if got.Sub(mgl64.Vec3{10, 1, 0}).Len() > 1e-12 {
		t.Errorf("TransformPoint = %v, want {10 1 0}", got)
	}
}

func TestSetRotation_KeepsInverseInSync(t *testing.T) {
	tr := NewTransform()
	tr.SetRotation(mgl64.QuatRotate(1.3, mgl64.Vec3{0, 1, 0}))

	composed := tr.Rotation.Mul(tr.InverseRotation)
	if math.Abs(composed.W-1) > 1e-12 || composed.V.Len() > 1e-12 {
		t.Errorf("rotation * inverse = %v, want identity", composed)
	}
}

func TestIntegrateVelocity_Linear(t *testing.T) {
	tr := NewTransformAt(mgl64.Vec3{1, 0, 0})

	out := tr.IntegrateVelocity(mgl64.Vec3{2, 0, 0}, mgl64.Vec3{}, 0.5)

	if out.Position != (mgl64.Vec3{2, 0, 0}) {
		t.Errorf("Position = %v, want {2 0 0}", out.Position)
	}
	// Receiver untouched
	if tr.Position != (mgl64.Vec3{1, 0, 0}) {
		t.Errorf("receiver mutated: %v", tr.Position)
	}
}

func TestIntegrateVelocity_AngularSmallStep(t *testing.T) {
	tr := NewTransform()
	omega := mgl64.Vec3{0, 0, 1}
	dt := 1.0 / 600.0

	// Many small steps approximate the exact rotation
	steps := 600
	for i := 0; i < steps; i++ {
		tr = tr.IntegrateVelocity(mgl64.Vec3{}, omega, dt)
	}

	// After 1 s at 1 rad/s around z
	got := tr.Rotation.Rotate(mgl64.Vec3{1, 0, 0})
	want := mgl64.Vec3{math.Cos(1.0), math.Sin(1.0), 0}
	if got.Sub(want).Len() > 1e-3 {
		t.Errorf("rotated x-axis = %v, want %v", got, want)
	}

	// Explicit integration keeps the quaternion normalized
	if math.Abs(tr.Rotation.Len()-1) > 1e-12 {
		t.Errorf("|q| = %v, want 1", tr.Rotation.Len())
	}
}

func TestIntegrateVelocity_ZeroVelocities(t *testing.T) {
	tr := NewTransformAt(mgl64.Vec3{1, 2, 3})
	tr.SetRotation(mgl64.QuatRotate(0.5, mgl64.Vec3{1, 0, 0}))

	out := tr.IntegrateVelocity(mgl64.Vec3{}, mgl64.Vec3{}, 1.0)

	if out.Position != tr.Position {
		t.Errorf("Position = %v, want unchanged %v", out.Position, tr.Position)
	}
	if out.Rotation.Sub(tr.Rotation).Len() > 1e-12 {
		t.Errorf("Rotation changed with zero angular velocity")
	}
}

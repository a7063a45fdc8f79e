package actor

import "github.com/go-gl/mathgl/mgl64"

// Transform represents a position and orientation in 3D space
type Transform struct {
	Position        mgl64.Vec3
	Rotation        mgl64.Quat
	InverseRotation mgl64.Quat
}

// NewTransform creates an identity transform
func NewTransform() Transform {
	return Transform{
		Position:        mgl64.Vec3{0, 0, 0},
		Rotation:        mgl64.QuatIdent(),
		InverseRotation: mgl64.QuatIdent(),
	}
}

// NewTransformAt creates a transform at the given position with identity rotation
func NewTransformAt(position mgl64.Vec3) Transform {
	t := NewTransform()
	t.Position = position
	return t
}

// SetRotation sets the rotation and keeps the cached inverse in sync
func (t *Transform) SetRotation(rotation mgl64.Quat) {
	t.Rotation = rotation.Normalize()
	t.InverseRotation = t.Rotation.Inverse()
}

// TransformPoint converts a point from local space to world space
func (t Transform) TransformPoint(local mgl64.Vec3) mgl64.Vec3 {
	return t.Position.Add(t.Rotation.Rotate(local))
}

// InvTransformPoint converts a point from world space to local space
func (t Transform) InvTransformPoint(world mgl64.Vec3) mgl64.Vec3 {
	return t.InverseRotation.Rotate(world.Sub(t.Position))
}

// IntegrateVelocity advances the transform by the given velocities over dt.
// The quaternion derivative q_dot = 0.5 * omega * q is integrated explicitly
// then renormalized, same scheme as the body integration step.
func (t Transform) IntegrateVelocity(linear, angular mgl64.Vec3, dt float64) Transform {
	out := t
	out.Position = t.Position.Add(linear.Mul(dt))

	omegaQuat := mgl64.Quat{V: angular, W: 0}
	qDot := omegaQuat.Mul(t.Rotation).Scale(0.5)
	out.Rotation = t.Rotation.Add(qDot.Scale(dt)).Normalize()
	out.InverseRotation = out.Rotation.Inverse()

	return out
}

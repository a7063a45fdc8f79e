package actor

// MotionState is the external sink for committed body transforms.
// Graphics code implements it to receive interpolated transforms without
// polling the body, and to supply the starting transform.
type MotionState interface {
	GetWorldTransform() Transform
	SetWorldTransform(t Transform)
}

// DefaultMotionState stores the transform as-is
type DefaultMotionState struct {
	WorldTransform Transform
}

func NewDefaultMotionState(t Transform) *DefaultMotionState {
	t.InverseRotation = t.Rotation.Inverse()
	return &DefaultMotionState{WorldTransform: t}
}

func (ms *DefaultMotionState) GetWorldTransform() Transform {
	return ms.WorldTransform
}

func (ms *DefaultMotionState) SetWorldTransform(t Transform) {
	ms.WorldTransform = t
}

package manifold

import "github.com/akmonengine/anvil/actor"

// ContactSink receives contact lifecycle notifications.
//
// All callbacks are optional and fire synchronously during manifold
// mutation; they must not add or remove manifold points themselves.
type ContactSink struct {
	// Started fires when a manifold gains its first point
	Started func(m *PersistentManifold)
	// Ended fires when a manifold loses its last point
	Ended func(m *PersistentManifold)
	// Processed fires whenever a point is added or refreshed in place
	Processed func(pt *ContactPoint, bodyA, bodyB *actor.RigidBody)
	// Destroyed fires when a point carrying user persistent data is removed.
	// The return value tells the narrow phase whether to free its cached
	// state for this point.
	Destroyed func(userPersistentData any) bool
}

func (s *ContactSink) fireStarted(m *PersistentManifold) {
	if s != nil && s.Started != nil {
		s.Started(m)
	}
}

func (s *ContactSink) fireEnded(m *PersistentManifold) {
	if s != nil && s.Ended != nil {
		s.Ended(m)
	}
}

func (s *ContactSink) fireProcessed(pt *ContactPoint, bodyA, bodyB *actor.RigidBody) {
	if s != nil && s.Processed != nil {
		s.Processed(pt, bodyA, bodyB)
	}
}

func (s *ContactSink) fireDestroyed(userData any) bool {
	if s != nil && s.Destroyed != nil {
		return s.Destroyed(userData)
	}
	return false
}

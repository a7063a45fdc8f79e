package anvil

import (
	"testing"

	"github.com/akmonengine/anvil/actor"
	"github.com/akmonengine/anvil/manifold"
	"github.com/go-gl/mathgl/mgl64"
)

func contactManifold(a, b *actor.RigidBody) *manifold.PersistentManifold {
	m := manifold.NewPersistentManifold(a, b, nil)
	pt := manifold.NewContactPoint(mgl64.Vec3{}, mgl64.Vec3{}, mgl64.Vec3{0, 1, 0}, -0.01)
	m.AddManifoldPoint(pt)
	return m
}

func TestEvents_EnterStayExit(t *testing.T) {
	events := NewEvents()
	a := sphereBody(mgl64.Vec3{0, 0, 0}, 1, 1)
	b := sphereBody(mgl64.Vec3{1.9, 0, 0}, 1, 1)
	m := contactManifold(a, b)

	var log []EventType
	for _, eventType := range []EventType{COLLISION_ENTER, COLLISION_STAY, COLLISION_EXIT} {
		events.Subscribe(eventType, func(event Event) {
			log = append(log, event.Type())
		})
	}

	// Frame 1: new contact
	events.recordCollisions([]*manifold.PersistentManifold{m})
	events.flush()
	if len(log) != 1 || log[0] != COLLISION_ENTER {
		t.Fatalf("frame 1 events = %v, want [COLLISION_ENTER]", log)
	}

	// Frame 2: contact persists
	log = log[:0]
	events.recordCollisions([]*manifold.PersistentManifold{m})
	events.flush()
	if len(log) != 1 || log[0] != COLLISION_STAY {
		t.Fatalf("frame 2 events = %v, want [COLLISION_STAY]", log)
	}

	// Frame 3: contact gone
	log = log[:0]
	events.flush()
	if len(log) != 1 || log[0] != COLLISION_EXIT {
		t.Fatalf("frame 3 events = %v, want [COLLISION_EXIT]", log)
	}

	// Frame 4: nothing left to report
	log = log[:0]
	events.flush()
	if len(log) != 0 {
		t.Fatalf("frame 4 events = %v, want none", log)
	}
}

func TestEvents_EmptyManifoldNotRecorded(t *testing.T) {
	events := NewEvents()
	a := sphereBody(mgl64.Vec3{0, 0, 0}, 1, 1)
	b := sphereBody(mgl64.Vec3{5, 0, 0}, 1, 1)
	m := manifold.NewPersistentManifold(a, b, nil) // no points

	fired := 0
	events.Subscribe(COLLISION_ENTER, func(event Event) { fired++ })

	events.recordCollisions([]*manifold.PersistentManifold{m})
	events.flush()

	if fired != 0 {
		t.Errorf("enter fired %d times for an empty manifold, want 0", fired)
	}
}

func TestEvents_SleepingPairSuppressed(t *testing.T) {
	events := NewEvents()
	a := sphereBody(mgl64.Vec3{0, 0, 0}, 1, 1)
	b := sphereBody(mgl64.Vec3{1.9, 0, 0}, 1, 1)
	m := contactManifold(a, b)

	a.ForceActivationState(actor.StateIslandSleeping)
	b.ForceActivationState(actor.StateIslandSleeping)

	fired := 0
	events.Subscribe(COLLISION_ENTER, func(event Event) { fired++ })
	events.Subscribe(COLLISION_STAY, func(event Event) { fired++ })

	events.recordCollisions([]*manifold.PersistentManifold{m})
	events.flush()

	if fired != 0 {
		t.Errorf("events fired %d times for a fully sleeping pair, want 0", fired)
	}
}

func TestEvents_SleepAndWake(t *testing.T) {
	events := NewEvents()
	body := sphereBody(mgl64.Vec3{0, 0, 0}, 1, 1)
	bodies := []*actor.RigidBody{body}

	var log []EventType
	events.Subscribe(ON_SLEEP, func(event Event) { log = append(log, event.Type()) })
	events.Subscribe(ON_WAKE, func(event Event) { log = append(log, event.Type()) })

	// First sighting establishes the baseline without an event
	events.processSleepEvents(bodies)
	events.flush()
	if len(log) != 0 {
		t.Fatalf("events = %v on first sighting, want none", log)
	}

	body.ForceActivationState(actor.StateIslandSleeping)
	events.processSleepEvents(bodies)
	events.flush()
	if len(log) != 1 || log[0] != ON_SLEEP {
		t.Fatalf("events = %v, want [ON_SLEEP]", log)
	}

	// Still sleeping: no repeat
	log = log[:0]
	events.processSleepEvents(bodies)
	events.flush()
	if len(log) != 0 {
		t.Fatalf("events = %v while still asleep, want none", log)
	}

	body.ForceActivationState(actor.StateActive)
	events.processSleepEvents(bodies)
	events.flush()
	if len(log) != 1 || log[0] != ON_WAKE {
		t.Fatalf("events = %v, want [ON_WAKE]", log)
	}
}

func TestEvents_ForgetDropsTracking(t *testing.T) {
	events := NewEvents()
	a := sphereBody(mgl64.Vec3{0, 0, 0}, 1, 1)
	b := sphereBody(mgl64.Vec3{1.9, 0, 0}, 1, 1)
	m := contactManifold(a, b)

	exits := 0
	events.Subscribe(COLLISION_EXIT, func(event Event) { exits++ })

	events.recordCollisions([]*manifold.PersistentManifold{m})
	events.flush()

	// Removing the body must not leave a phantom pair that would later exit
	events.forget(b)
	events.flush()

	if exits != 0 {
		t.Errorf("exit fired %d times after forget, want 0", exits)
	}
}

func TestEvents_WorldIntegration(t *testing.T) {
	w := newTestWorld()
	addGround(w)
	addSphere(w, mgl64.Vec3{0, 3, 0}, 1.0)

	entered := false
	w.Events.Subscribe(COLLISION_ENTER, func(event Event) {
		e := event.(CollisionEnterEvent)
		if e.BodyA == nil || e.BodyB == nil {
			t.Error("enter event with nil bodies")
		}
		entered = true
	})

	// Let the sphere fall onto the ground
	for i := 0; i < 120 && !entered; i++ {
		w.StepSimulation(1.0/60.0, 1, 1.0/60.0)
	}

	if !entered {
		t.Error("falling sphere never produced a collision enter event")
	}
}

package anvil

import (
	"github.com/akmonengine/anvil/actor"
	"github.com/akmonengine/anvil/constraint"
	"github.com/akmonengine/anvil/manifold"
	"github.com/go-gl/mathgl/mgl64"
)

// islandManager groups bodies connected by active contacts or constraints
// with union-find. Islands sleep as a unit: one restless body keeps its
// whole island awake.
type islandManager struct {
	parent []int
}

func newIslandManager() *islandManager {
	return &islandManager{}
}

func (im *islandManager) find(i int) int {
	for im.parent[i] != i {
		im.parent[i] = im.parent[im.parent[i]] // path halving
		i = im.parent[i]
	}
	return i
}

func (im *islandManager) union(a, b int) {
	rootA := im.find(a)
	rootB := im.find(b)
	if rootA != rootB {
		im.parent[rootB] = rootA
	}
}

// BuildIslands assigns an island tag to every body. Static and kinematic
// bodies never merge islands: a shared floor must not weld two stacks into
// one sleeping unit.
func (im *islandManager) BuildIslands(bodies []*actor.RigidBody, manifolds []*manifold.PersistentManifold, constraints []constraint.Constraint) {
	if cap(im.parent) < len(bodies) {
		im.parent = make([]int, len(bodies))
	}
	im.parent = im.parent[:len(bodies)]

	for i := range im.parent {
		im.parent[i] = i
	}

	link := func(bodyA, bodyB *actor.RigidBody) {
		if bodyA.IsStaticOrKinematic() || bodyB.IsStaticOrKinematic() {
			return
		}
		im.union(bodyA.WorldIndex, bodyB.WorldIndex)
	}

	for _, m := range manifolds {
		if m.GetNumContacts() > 0 {
			link(m.BodyA, m.BodyB)
		}
	}
	for _, c := range constraints {
		if c.IsEnabled() {
			link(c.BodyA(), c.BodyB())
		}
	}

	for _, body := range bodies {
		if body.IsStaticOrKinematic() {
			body.IslandTag = -1
		} else {
			body.IslandTag = im.find(body.WorldIndex)
		}
	}
}

// UpdateSleepStates puts whole islands to sleep when every member wants to,
// and wakes sleeping members of islands that still contain restless bodies.
func (im *islandManager) UpdateSleepStates(bodies []*actor.RigidBody) {
	// tag -> does every member want to sleep
	allWant := make(map[int]bool, 16)
	for _, body := range bodies {
		if body.IslandTag < 0 {
			continue
		}
		wants, tracked := allWant[body.IslandTag]
		if !tracked {
			allWant[body.IslandTag] = body.WantsSleeping()
		} else {
			allWant[body.IslandTag] = wants && body.WantsSleeping()
		}
	}

	for _, body := range bodies {
		if body.IslandTag < 0 {
			continue
		}

		if allWant[body.IslandTag] {
			if body.ActivationState() == actor.StateWantsDeactivation || body.ActivationState() == actor.StateIslandSleeping {
				body.SetActivationState(actor.StateIslandSleeping)
				body.LinearVelocity = mgl64.Vec3{}
				body.AngularVelocity = mgl64.Vec3{}
			}
		} else if body.ActivationState() == actor.StateIslandSleeping {
			body.SetActivationState(actor.StateActive)
			body.DeactivationTimer = 0
		}
	}
}

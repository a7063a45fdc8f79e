package anvil

import (
	"github.com/akmonengine/anvil/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// Pair is a pair of bodies whose bounds overlap, candidate for narrow phase
type Pair struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
}

// BroadphaseProxy is a body's handle inside a broadphase structure
type BroadphaseProxy struct {
	Body *actor.RigidBody
	Aabb actor.AABB

	// index is the proxy's slot in the broadphase, kept in sync by
	// swap-and-pop removal
	index int
	// unbounded proxies (infinite planes) are paired against everything
	// instead of being inserted into the spatial structure
	unbounded bool
}

// Broadphase proposes candidate colliding pairs from bounding-volume
// overlap. The world only depends on proxies staying valid until destroyed
// and on CalculateOverlappingPairs feeding the dispatcher, not on the
// internal spatial structure.
type Broadphase interface {
	CreateProxy(aabb actor.AABB, body *actor.RigidBody) *BroadphaseProxy
	DestroyProxy(proxy *BroadphaseProxy)
	SetAabb(proxy *BroadphaseProxy, aabb actor.AABB)

	// RayTest calls fn for every proxy whose bounds intersect the segment,
	// with the entry fraction along it. Return false to stop the query.
	RayTest(from, to mgl64.Vec3, fn func(proxy *BroadphaseProxy, hitFraction float64) bool)
	// AabbTest calls fn for every proxy overlapping the box.
	// Return false to stop the query.
	AabbTest(aabb actor.AABB, fn func(proxy *BroadphaseProxy) bool)

	CalculateOverlappingPairs() []Pair
}

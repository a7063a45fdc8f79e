package anvil

import (
	"unsafe"

	"github.com/akmonengine/anvil/actor"
	"github.com/akmonengine/anvil/constraint"
	"github.com/akmonengine/anvil/manifold"
	"github.com/go-gl/mathgl/mgl64"
)

type pairKey struct {
	bodyA *actor.RigidBody
	bodyB *actor.RigidBody
}

// makePairKey creates a normalized pair key with consistent ordering
func makePairKey(bodyA, bodyB *actor.RigidBody) pairKey {
	ptrA := uintptr(unsafe.Pointer(bodyA))
	ptrB := uintptr(unsafe.Pointer(bodyB))

	if ptrB < ptrA {
		bodyA, bodyB = bodyB, bodyA
	}

	return pairKey{bodyA: bodyA, bodyB: bodyB}
}

// Dispatcher owns the persistent manifolds and runs the narrow phase over
// the broadphase's candidate pairs
type Dispatcher interface {
	NewManifold(bodyA, bodyB *actor.RigidBody) *manifold.PersistentManifold
	ReleaseManifold(m *manifold.PersistentManifold)
	FindManifold(bodyA, bodyB *actor.RigidBody) *manifold.PersistentManifold
	NumManifolds() int
	ManifoldByIndex(index int) *manifold.PersistentManifold
	Manifolds() []*manifold.PersistentManifold

	DispatchAllCollisionPairs(pairs []Pair, info *constraint.SolverInfo)

	// RemoveBody releases every manifold referencing the body; required
	// when a body is removed from the world
	RemoveBody(body *actor.RigidBody)
}

// CollisionAlgorithm generates contact points for one shape-type pair.
// Algorithms sort out shape roles themselves; the result's manifold fixes
// which body is A and which is B.
type CollisionAlgorithm func(bodyA, bodyB *actor.RigidBody, result *ManifoldResult)

type shapePairKey struct {
	kindA actor.ShapeType
	kindB actor.ShapeType
}

// CollisionDispatcher is the default Dispatcher: a dense manifold arena
// (swap-and-pop, back-indexed through PersistentManifold.Index), a pair
// lookup, and an algorithm table keyed by shape types.
type CollisionDispatcher struct {
	sink *manifold.ContactSink

	manifolds []*manifold.PersistentManifold
	lookup    map[pairKey]*manifold.PersistentManifold

	algorithms map[shapePairKey]CollisionAlgorithm

	// scratch for pair diffing in DispatchAllCollisionPairs
	currentPairs map[pairKey]bool
}

// NewCollisionDispatcher creates a dispatcher with the analytic algorithms
// registered. The sink may be nil.
func NewCollisionDispatcher(sink *manifold.ContactSink) *CollisionDispatcher {
	d := &CollisionDispatcher{
		sink:         sink,
		lookup:       make(map[pairKey]*manifold.PersistentManifold),
		algorithms:   make(map[shapePairKey]CollisionAlgorithm),
		currentPairs: make(map[pairKey]bool),
	}

	d.RegisterAlgorithm(actor.ShapeTypeSphere, actor.ShapeTypeSphere, collideSphereSphere)
	d.RegisterAlgorithm(actor.ShapeTypeSphere, actor.ShapeTypePlane, collideSpherePlane)
	d.RegisterAlgorithm(actor.ShapeTypeBox, actor.ShapeTypePlane, collideBoxPlane)

	return d
}

// RegisterAlgorithm registers fn for the unordered shape-type pair
func (d *CollisionDispatcher) RegisterAlgorithm(kindA, kindB actor.ShapeType, fn CollisionAlgorithm) {
	d.algorithms[shapePairKey{kindA, kindB}] = fn
	d.algorithms[shapePairKey{kindB, kindA}] = fn
}

func (d *CollisionDispatcher) NewManifold(bodyA, bodyB *actor.RigidBody) *manifold.PersistentManifold {
	m := manifold.NewPersistentManifold(bodyA, bodyB, d.sink)
	m.Index = len(d.manifolds)
	d.manifolds = append(d.manifolds, m)
	d.lookup[makePairKey(bodyA, bodyB)] = m

	return m
}

func (d *CollisionDispatcher) ReleaseManifold(m *manifold.PersistentManifold) {
	m.ClearManifold()

	idx := m.Index
	if idx < 0 || idx >= len(d.manifolds) || d.manifolds[idx] != m {
		return
	}

	last := len(d.manifolds) - 1
	d.manifolds[idx] = d.manifolds[last]
	d.manifolds[idx].Index = idx
	d.manifolds = d.manifolds[:last]
	m.Index = -1

	delete(d.lookup, makePairKey(m.BodyA, m.BodyB))
}

func (d *CollisionDispatcher) FindManifold(bodyA, bodyB *actor.RigidBody) *manifold.PersistentManifold {
	return d.lookup[makePairKey(bodyA, bodyB)]
}

func (d *CollisionDispatcher) NumManifolds() int {
	return len(d.manifolds)
}

func (d *CollisionDispatcher) ManifoldByIndex(index int) *manifold.PersistentManifold {
	return d.manifolds[index]
}

func (d *CollisionDispatcher) Manifolds() []*manifold.PersistentManifold {
	return d.manifolds
}

// DispatchAllCollisionPairs runs the narrow phase for every candidate pair,
// creating manifolds for new pairs, refreshing surviving points against the
// new transforms, and releasing manifolds whose pair stopped overlapping.
func (d *CollisionDispatcher) DispatchAllCollisionPairs(pairs []Pair, info *constraint.SolverInfo) {
	clear(d.currentPairs)

	for _, pair := range pairs {
		algorithm := d.algorithms[shapePairKey{pair.BodyA.Shape.Kind(), pair.BodyB.Shape.Kind()}]
		if algorithm == nil {
			continue
		}

		key := makePairKey(pair.BodyA, pair.BodyB)
		d.currentPairs[key] = true

		m := d.lookup[key]
		if m == nil {
			m = d.NewManifold(pair.BodyA, pair.BodyB)
			if info != nil {
				m.BreakingThreshold = info.ContactBreakingThreshold
			}
		}

		result := &ManifoldResult{manifold: m}
		algorithm(m.BodyA, m.BodyB, result)

		// Refresh after contact generation: recompute world data for every
		// cached point and age out points that separated or slid apart
		m.RefreshContactPoints(m.BodyA.Transform, m.BodyB.Transform)
	}

	// Release manifolds whose pair is no longer overlapping; backwards so
	// swap-and-pop does not skip entries. A resting pair drops out of the
	// broadphase sweep while both bodies sleep; its manifold survives so the
	// stack warm starts on wake.
	for i := len(d.manifolds) - 1; i >= 0; i-- {
		m := d.manifolds[i]
		if d.currentPairs[makePairKey(m.BodyA, m.BodyB)] {
			continue
		}
		if !m.BodyA.IsActive() && !m.BodyB.IsActive() {
			continue
		}
		d.ReleaseManifold(m)
	}
}

func (d *CollisionDispatcher) RemoveBody(body *actor.RigidBody) {
	for i := len(d.manifolds) - 1; i >= 0; i-- {
		m := d.manifolds[i]
		if m.BodyA == body || m.BodyB == body {
			d.ReleaseManifold(m)
		}
	}
}

// ManifoldResult adapts a manifold to the narrow-phase algorithms: world
// points go in, cached points with local coordinates and combined surface
// coefficients come out.
type ManifoldResult struct {
	manifold *manifold.PersistentManifold
}

// AddContactPoint records one contact. normalOnB points from B toward A,
// pointInWorld lies on body B's surface, depth is negative when the bodies
// overlap. Points separated beyond the breaking threshold are discarded.
func (r *ManifoldResult) AddContactPoint(normalOnB, pointInWorld mgl64.Vec3, depth float64) {
	m := r.manifold
	if depth > m.BreakingThreshold {
		return
	}

	pointA := pointInWorld.Add(normalOnB.Mul(depth))
	localA := m.BodyA.Transform.InvTransformPoint(pointA)
	localB := m.BodyB.Transform.InvTransformPoint(pointInWorld)

	pt := manifold.NewContactPoint(localA, localB, normalOnB, depth)
	pt.PositionWorldOnA = pointA
	pt.PositionWorldOnB = pointInWorld
	pt.CombinedFriction = constraint.CombineFriction(m.BodyA.Material, m.BodyB.Material)
	pt.CombinedRestitution = constraint.CombineRestitution(m.BodyA.Material, m.BodyB.Material)
	pt.CombinedRollingFriction = constraint.CombineRollingFriction(m.BodyA.Material, m.BodyB.Material)
	pt.CombinedSpinningFriction = constraint.CombineSpinningFriction(m.BodyA.Material, m.BodyB.Material)

	m.AddManifoldPoint(pt)
}

// ========== Algorithmes analytiques ==========

func collideSphereSphere(bodyA, bodyB *actor.RigidBody, result *ManifoldResult) {
	sphereA := bodyA.Shape.(*actor.Sphere)
	sphereB := bodyB.Shape.(*actor.Sphere)

	diff := bodyA.Transform.Position.Sub(bodyB.Transform.Position)
	dist := diff.Len()

	if dist < 1e-12 {
		// Centres confondus, normale arbitraire
		diff = mgl64.Vec3{0, 1, 0}
		dist = 1e-12
	}

	normalOnB := diff.Mul(1.0 / dist)
	depth := dist - (sphereA.Radius + sphereB.Radius)
	pointOnB := bodyB.Transform.Position.Add(normalOnB.Mul(sphereB.Radius))

	result.AddContactPoint(normalOnB, pointOnB, depth)
}

func collideSpherePlane(bodyA, bodyB *actor.RigidBody, result *ManifoldResult) {
	sphereBody, planeBody := bodyA, bodyB
	planeIsB := true
	if _, ok := bodyA.Shape.(*actor.Plane); ok {
		sphereBody, planeBody = bodyB, bodyA
		planeIsB = false
	}

	sphere := sphereBody.Shape.(*actor.Sphere)
	plane := planeBody.Shape.(*actor.Plane)

	centerDist := plane.Normal.Dot(sphereBody.Transform.Position) - plane.Distance
	depth := centerDist - sphere.Radius

	// La normale va de B vers A, le point de contact est sur B
	if planeIsB {
		pointOnPlane := sphereBody.Transform.Position.Sub(plane.Normal.Mul(centerDist))
		result.AddContactPoint(plane.Normal, pointOnPlane, depth)
	} else {
		pointOnSphere := sphereBody.Transform.Position.Sub(plane.Normal.Mul(sphere.Radius))
		result.AddContactPoint(plane.Normal.Mul(-1), pointOnSphere, depth)
	}
}

func collideBoxPlane(bodyA, bodyB *actor.RigidBody, result *ManifoldResult) {
	boxBody, planeBody := bodyA, bodyB
	planeIsB := true
	if _, ok := bodyA.Shape.(*actor.Plane); ok {
		boxBody, planeBody = bodyB, bodyA
		planeIsB = false
	}

	box := boxBody.Shape.(*actor.Box)
	plane := planeBody.Shape.(*actor.Plane)

	h := box.HalfExtents
	corners := [8]mgl64.Vec3{
		{-h.X(), -h.Y(), -h.Z()},
		{+h.X(), -h.Y(), -h.Z()},
		{-h.X(), +h.Y(), -h.Z()},
		{+h.X(), +h.Y(), -h.Z()},
		{-h.X(), -h.Y(), +h.Z()},
		{+h.X(), -h.Y(), +h.Z()},
		{-h.X(), +h.Y(), +h.Z()},
		{+h.X(), +h.Y(), +h.Z()},
	}

	// Each corner near or below the plane is a candidate; the manifold's
	// eviction heuristic keeps the best four
	for _, corner := range corners {
		worldCorner := boxBody.Transform.TransformPoint(corner)
		depth := plane.Normal.Dot(worldCorner) - plane.Distance

		if planeIsB {
			pointOnPlane := worldCorner.Sub(plane.Normal.Mul(depth))
			result.AddContactPoint(plane.Normal, pointOnPlane, depth)
		} else {
			result.AddContactPoint(plane.Normal.Mul(-1), worldCorner, depth)
		}
	}
}

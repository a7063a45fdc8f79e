package manifold

import (
	"math"

	"github.com/akmonengine/anvil/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// ManifoldCacheSize is the maximum number of cached points per pair.
// Four points are enough to support a box resting on a face, and keeping
// the cache tiny makes eviction and refresh O(1).
const ManifoldCacheSize = 4

// Process-wide defaults, copied into each new manifold and overridable per
// manifold afterwards.
var (
	// DefaultContactBreakingThreshold is the separation distance above
	// which a cached point is dropped
	DefaultContactBreakingThreshold = 0.02
	// DefaultContactProcessingThreshold bounds the tangential drift a
	// cached point may accumulate before it is dropped
	DefaultContactProcessingThreshold = 0.02
)

// PersistentManifold caches up to four contact points for one ordered pair
// of bodies. Points persist across substeps so the solver can warm start
// from the previous impulses; geometry is rewritten every substep while the
// warm-start fields survive.
type PersistentManifold struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody

	points       [ManifoldCacheSize]ContactPoint
	cachedPoints int

	BreakingThreshold   float64
	ProcessingThreshold float64

	// Companion ids are opaque scratch space for the solver's batching
	CompanionIDA int
	CompanionIDB int

	// Index is the manifold's slot in the dispatcher's arena, kept in sync
	// by swap-and-pop release
	Index int

	sink *ContactSink
}

// NewPersistentManifold creates an empty manifold for the given pair.
// The sink may be nil; all callbacks default to no-ops.
func NewPersistentManifold(bodyA, bodyB *actor.RigidBody, sink *ContactSink) *PersistentManifold {
	return &PersistentManifold{
		BodyA:               bodyA,
		BodyB:               bodyB,
		BreakingThreshold:   DefaultContactBreakingThreshold,
		ProcessingThreshold: DefaultContactProcessingThreshold,
		Index:               -1,
		sink:                sink,
	}
}

func (m *PersistentManifold) SetSink(sink *ContactSink) {
	m.sink = sink
}

func (m *PersistentManifold) GetNumContacts() int {
	return m.cachedPoints
}

// SetNumContacts is an unchecked override for advanced callers.
// It fires no callbacks.
func (m *PersistentManifold) SetNumContacts(n int) {
	m.cachedPoints = n
}

// GetContactPoint returns a pointer into the cache. The index must be below
// GetNumContacts; the manifold does not clamp.
func (m *PersistentManifold) GetContactPoint(index int) *ContactPoint {
	return &m.points[index]
}

// ValidContactDistance reports whether the point is still within the
// breaking threshold
func (m *PersistentManifold) ValidContactDistance(pt *ContactPoint) bool {
	return pt.Distance <= m.BreakingThreshold
}

// GetCacheEntry returns the index of the cached point nearest to newPoint
// in body A's local frame, or -1 when none is within the breaking threshold.
// Local coordinates are the persistence key: they identify "the same"
// contact across frames regardless of body motion.
func (m *PersistentManifold) GetCacheEntry(newPoint ContactPoint) int {
	shortestDist := m.BreakingThreshold * m.BreakingThreshold
	nearest := -1

	for i := 0; i < m.cachedPoints; i++ {
		diff := m.points[i].LocalPointA.Sub(newPoint.LocalPointA)
		distSqr := diff.Dot(diff)
		if distSqr < shortestDist {
			shortestDist = distSqr
			nearest = i
		}
	}

	return nearest
}

// AddManifoldPoint inserts a point into the cache and returns its slot.
//
// A point matching an existing slot (nearest local-A position within the
// breaking threshold) replaces that slot while keeping its warm-start data.
// Below capacity an unmatched point is appended; at capacity the eviction
// heuristic picks the victim and the new point starts cold.
func (m *PersistentManifold) AddManifoldPoint(newPoint ContactPoint) int {
	if cached := m.GetCacheEntry(newPoint); cached >= 0 {
		m.ReplaceContactPoint(newPoint, cached)
		return cached
	}

	insertIndex := m.cachedPoints
	if insertIndex == ManifoldCacheSize {
		// Cache is full: evict the point whose removal keeps the largest
		// contact polygon. The evicted slot loses its warm-start data.
		insertIndex = m.SortCachedPoints(newPoint)
		m.destroyPointData(&m.points[insertIndex])
		m.points[insertIndex] = newPoint
	} else {
		m.points[insertIndex] = newPoint
		m.cachedPoints++
		if m.cachedPoints == 1 {
			m.sink.fireStarted(m)
		}
	}

	m.sink.fireProcessed(&m.points[insertIndex], m.BodyA, m.BodyB)

	return insertIndex
}

// ReplaceContactPoint overwrites a slot with new geometry while preserving
// the warm-starting state of the old point: applied impulses, lateral
// friction directions, lifetime, user data, and any flags already set.
// This is the contract that keeps the solver stable frame-to-frame.
func (m *PersistentManifold) ReplaceContactPoint(newPoint ContactPoint, index int) {
	old := m.points[index]

	newPoint.AppliedImpulse = old.AppliedImpulse
	newPoint.AppliedImpulseLateral1 = old.AppliedImpulseLateral1
	newPoint.AppliedImpulseLateral2 = old.AppliedImpulseLateral2
	newPoint.LateralFrictionDir1 = old.LateralFrictionDir1
	newPoint.LateralFrictionDir2 = old.LateralFrictionDir2
	newPoint.LifeTime = old.LifeTime
	newPoint.UserPersistentData = old.UserPersistentData
	newPoint.Flags |= old.Flags

	m.points[index] = newPoint

	m.sink.fireProcessed(&m.points[index], m.BodyA, m.BodyB)
}

// RemoveContactPoint drops a slot, firing the destroyed callback when the
// point carried narrow-phase user data, then compacts by swapping the last
// live point into the hole.
func (m *PersistentManifold) RemoveContactPoint(index int) {
	m.destroyPointData(&m.points[index])

	lastUsed := m.cachedPoints - 1
	if index != lastUsed {
		m.points[index] = m.points[lastUsed]
	}

	// The vacated slot must not leak stale warm-start data
	m.points[lastUsed] = ContactPoint{}
	m.cachedPoints--

	if m.cachedPoints == 0 {
		m.sink.fireEnded(m)
	}
}

// RefreshContactPoints rewrites every cached point from the new transforms
// and ages out points that separated or slid apart.
func (m *PersistentManifold) RefreshContactPoints(transformA, transformB actor.Transform) {
	// First pass: recompute world data from the persistent local points
	for i := 0; i < m.cachedPoints; i++ {
		pt := &m.points[i]
		pt.PositionWorldOnA = transformA.TransformPoint(pt.LocalPointA)
		pt.PositionWorldOnB = transformB.TransformPoint(pt.LocalPointB)
		pt.Distance = pt.PositionWorldOnA.Sub(pt.PositionWorldOnB).Dot(pt.NormalWorldOnB)
		pt.LifeTime++
	}

	// Second pass: break contacts that drifted beyond the thresholds,
	// backwards so swap-and-pop does not skip entries
	for i := m.cachedPoints - 1; i >= 0; i-- {
		pt := &m.points[i]
		if !m.ValidContactDistance(pt) {
			m.RemoveContactPoint(i)
			continue
		}

		// Lateral drift: tangential displacement in the contact plane
		projectedPoint := pt.PositionWorldOnA.Sub(pt.NormalWorldOnB.Mul(pt.Distance))
		projectedDifference := pt.PositionWorldOnB.Sub(projectedPoint)
		driftSqr := projectedDifference.Dot(projectedDifference)

		if driftSqr > m.ProcessingThreshold*m.ProcessingThreshold {
			m.RemoveContactPoint(i)
			continue
		}

		m.sink.fireProcessed(pt, m.BodyA, m.BodyB)
	}
}

// ClearManifold drops every point, firing the destroyed callback for each
// point with user data and the ended callback once if any point existed.
func (m *PersistentManifold) ClearManifold() {
	hadPoints := m.cachedPoints > 0

	for i := 0; i < m.cachedPoints; i++ {
		m.destroyPointData(&m.points[i])
	}

	m.points = [ManifoldCacheSize]ContactPoint{}
	m.cachedPoints = 0

	if hadPoints {
		m.sink.fireEnded(m)
	}
}

func (m *PersistentManifold) destroyPointData(pt *ContactPoint) {
	if pt.UserPersistentData == nil {
		return
	}
	m.sink.fireDestroyed(pt.UserPersistentData)
	pt.UserPersistentData = nil
}

// SortCachedPoints picks the slot to evict when a fifth point arrives.
//
// The deepest point is always kept: it carries the most penetration to
// resolve. Among the remaining slots, the heuristic discards the one whose
// removal, combined with the new point, spans the largest quadrilateral in
// body A's local frame. A large support polygon (e.g. the four corners of a
// box face) is far more stable than four near-duplicate points.
// Deterministic for identical input; exact ties keep the lowest index.
func (m *PersistentManifold) SortCachedPoints(newPoint ContactPoint) int {
	deepestIndex := -1
	maxPenetration := newPoint.Distance
	for i := 0; i < ManifoldCacheSize; i++ {
		if m.points[i].Distance < maxPenetration {
			maxPenetration = m.points[i].Distance
			deepestIndex = i
		}
	}

	var areas [ManifoldCacheSize]float64
	if deepestIndex != 0 {
		areas[0] = areaOfQuad(newPoint.LocalPointA, m.points[1].LocalPointA, m.points[2].LocalPointA, m.points[3].LocalPointA)
	}
	if deepestIndex != 1 {
		areas[1] = areaOfQuad(newPoint.LocalPointA, m.points[0].LocalPointA, m.points[2].LocalPointA, m.points[3].LocalPointA)
	}
	if deepestIndex != 2 {
		areas[2] = areaOfQuad(newPoint.LocalPointA, m.points[0].LocalPointA, m.points[1].LocalPointA, m.points[3].LocalPointA)
	}
	if deepestIndex != 3 {
		areas[3] = areaOfQuad(newPoint.LocalPointA, m.points[0].LocalPointA, m.points[1].LocalPointA, m.points[2].LocalPointA)
	}

	biggest := math.Inf(-1)
	biggestIndex := 0
	for i := 0; i < ManifoldCacheSize; i++ {
		if i == deepestIndex {
			continue
		}
		if areas[i] > biggest {
			biggest = areas[i]
			biggestIndex = i
		}
	}

	return biggestIndex
}

// areaOfQuad returns the squared area spanned by the best diagonal split of
// the four points, so the point ordering does not matter
func areaOfQuad(p0, p1, p2, p3 mgl64.Vec3) float64 {
	a0 := p0.Sub(p1).Cross(p3.Sub(p2))
	a1 := p0.Sub(p2).Cross(p1.Sub(p3))
	a2 := p0.Sub(p3).Cross(p1.Sub(p2))

	return math.Max(a0.Dot(a0), math.Max(a1.Dot(a1), a2.Dot(a2)))
}

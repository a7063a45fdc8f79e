package constraint

import (
	"math"

	"github.com/akmonengine/anvil/actor"
	"github.com/akmonengine/anvil/manifold"
	"github.com/go-gl/mathgl/mgl64"
)

// ConstraintSolver turns a set of bodies, contact manifolds and user
// constraints into post-solve velocities.
// PrepareSolve and AllSolved bracket a solve; SolveGroup may be called once
// per island in between.
type ConstraintSolver interface {
	PrepareSolve(numBodies, numManifolds int)
	SolveGroup(bodies []*actor.RigidBody, manifolds []*manifold.PersistentManifold, constraints []Constraint, info *SolverInfo) (int, error)
	AllSolved(info *SolverInfo)
	Reset()
}

// contactEntry caches per-point terms that stay constant over the solver
// iterations of one substep
type contactEntry struct {
	pt           *manifold.ContactPoint
	bodyA, bodyB *actor.RigidBody

	rA, rB mgl64.Vec3

	normalMass    float64
	frictionMass1 float64
	frictionMass2 float64

	// targetVelocity is the desired separating velocity along the normal:
	// restitution bounce plus the Baumgarte penetration bias
	targetVelocity float64

	friction float64
}

// SequentialImpulseSolver is the world's default solver: warm-started
// projected Gauss-Seidel over the manifold points, with Coulomb friction in
// two lateral directions. Accumulated impulses are written back into the
// contact points so the next substep can warm start from them.
type SequentialImpulseSolver struct {
	entries []contactEntry
}

func NewSequentialImpulseSolver() *SequentialImpulseSolver {
	return &SequentialImpulseSolver{}
}

func (s *SequentialImpulseSolver) PrepareSolve(numBodies, numManifolds int) {
	if cap(s.entries) < numManifolds*manifold.ManifoldCacheSize {
		s.entries = make([]contactEntry, 0, numManifolds*manifold.ManifoldCacheSize)
	}
}

func (s *SequentialImpulseSolver) AllSolved(info *SolverInfo) {
	s.entries = s.entries[:0]
}

func (s *SequentialImpulseSolver) Reset() {
	s.entries = nil
}

// SolveGroup runs NumIterations of sequential impulses and returns the
// iteration count used
func (s *SequentialImpulseSolver) SolveGroup(bodies []*actor.RigidBody, manifolds []*manifold.PersistentManifold, constraints []Constraint, info *SolverInfo) (int, error) {
	s.entries = s.entries[:0]

	for _, m := range manifolds {
		if !m.BodyA.IsActive() && !m.BodyB.IsActive() {
			continue
		}
		for i := 0; i < m.GetNumContacts(); i++ {
			pt := m.GetContactPoint(i)
			if pt.Distance > m.ProcessingThreshold {
				continue
			}
			s.setupContact(m, pt, info)
		}
	}

	for iteration := 0; iteration < info.NumIterations; iteration++ {
		for _, c := range constraints {
			if !c.IsEnabled() {
				continue
			}
			if !c.BodyA().IsActive() && !c.BodyB().IsActive() {
				continue
			}
			c.SolveVelocity(info.TimeStep)
		}

		for i := range s.entries {
			s.solveNormal(&s.entries[i], info)
		}
		for i := range s.entries {
			s.solveFriction(&s.entries[i])
		}
	}

	for _, body := range bodies {
		clampSmallVelocities(body)
	}

	return info.NumIterations, nil
}

func (s *SequentialImpulseSolver) setupContact(m *manifold.PersistentManifold, pt *manifold.ContactPoint, info *SolverInfo) {
	bodyA := m.BodyA
	bodyB := m.BodyB

	entry := contactEntry{
		pt:       pt,
		bodyA:    bodyA,
		bodyB:    bodyB,
		rA:       pt.PositionWorldOnA.Sub(bodyA.Transform.Position),
		rB:       pt.PositionWorldOnB.Sub(bodyB.Transform.Position),
		friction: pt.CombinedFriction,
	}

	normal := pt.NormalWorldOnB
	invIA := bodyA.GetInverseInertiaWorld()
	invIB := bodyB.GetInverseInertiaWorld()

	cfm := info.GlobalCFM
	if pt.Flags&manifold.FlagHasContactCFM != 0 {
		cfm = pt.ContactCFM
	}

	entry.normalMass = effectiveMass(bodyA, bodyB, invIA, invIB, entry.rA, entry.rB, normal) + cfm/info.TimeStep

	// Lateral directions persist across substeps once initialized, so the
	// warm-started lateral impulses stay meaningful
	if pt.Flags&manifold.FlagLateralFrictionInitialized == 0 {
		pt.LateralFrictionDir1, pt.LateralFrictionDir2 = planeSpace(normal)
		pt.Flags |= manifold.FlagLateralFrictionInitialized
	}
	entry.frictionMass1 = effectiveMass(bodyA, bodyB, invIA, invIB, entry.rA, entry.rB, pt.LateralFrictionDir1)
	entry.frictionMass2 = effectiveMass(bodyA, bodyB, invIA, invIB, entry.rA, entry.rB, pt.LateralFrictionDir2)

	// Relative velocity before solving, along the normal (B toward A)
	relVel := bodyA.GetVelocityInLocalPoint(entry.rA).Sub(bodyB.GetVelocityInLocalPoint(entry.rB))
	normalVel := relVel.Dot(normal)

	restitutionTarget := -pt.CombinedRestitution * normalVel
	if restitutionTarget < 0 {
		restitutionTarget = 0
	}

	erp := info.ERP
	if pt.Flags&manifold.FlagHasContactERP != 0 {
		erp = pt.ContactERP
	} else if pt.Distance < info.SplitImpulsePenetrationThreshold {
		erp = info.ERP2
	}

	penetration := -pt.Distance - info.LinearSlop
	positionBias := 0.0
	if penetration > 0 {
		positionBias = erp * penetration / info.TimeStep
	}

	entry.targetVelocity = math.Max(restitutionTarget, positionBias)

	// Warm start: reapply a fraction of last substep's impulses
	pt.AppliedImpulse *= info.WarmstartingFactor
	pt.AppliedImpulseLateral1 *= info.WarmstartingFactor
	pt.AppliedImpulseLateral2 *= info.WarmstartingFactor

	warmImpulse := normal.Mul(pt.AppliedImpulse).
		Add(pt.LateralFrictionDir1.Mul(pt.AppliedImpulseLateral1)).
		Add(pt.LateralFrictionDir2.Mul(pt.AppliedImpulseLateral2))
	applyImpulsePair(&entry, warmImpulse)

	s.entries = append(s.entries, entry)
}

func (s *SequentialImpulseSolver) solveNormal(entry *contactEntry, info *SolverInfo) {
	if entry.normalMass < 1e-10 {
		return
	}

	pt := entry.pt
	normal := pt.NormalWorldOnB

	relVel := entry.bodyA.GetVelocityInLocalPoint(entry.rA).Sub(entry.bodyB.GetVelocityInLocalPoint(entry.rB))
	normalVel := relVel.Dot(normal)

	lambda := (entry.targetVelocity - normalVel) / entry.normalMass

	// Accumulated clamping: the total normal impulse never pulls
	newTotal := pt.AppliedImpulse + lambda
	if newTotal < 0 {
		newTotal = 0
	}
	lambda = newTotal - pt.AppliedImpulse
	pt.AppliedImpulse = newTotal

	applyImpulsePair(entry, normal.Mul(lambda))
}

func (s *SequentialImpulseSolver) solveFriction(entry *contactEntry) {
	pt := entry.pt
	if pt.AppliedImpulse <= 0 {
		return
	}

	maxFriction := entry.friction * pt.AppliedImpulse

	solveLateral(entry, pt.LateralFrictionDir1, entry.frictionMass1, pt.ContactMotion1, maxFriction, &pt.AppliedImpulseLateral1)
	solveLateral(entry, pt.LateralFrictionDir2, entry.frictionMass2, pt.ContactMotion2, maxFriction, &pt.AppliedImpulseLateral2)
}

func solveLateral(entry *contactEntry, dir mgl64.Vec3, effMass, targetMotion, maxFriction float64, accumulated *float64) {
	if effMass < 1e-10 {
		return
	}

	relVel := entry.bodyA.GetVelocityInLocalPoint(entry.rA).Sub(entry.bodyB.GetVelocityInLocalPoint(entry.rB))
	lateralVel := relVel.Dot(dir) - targetMotion

	lambda := -lateralVel / effMass

	// Coulomb's law: |F_friction| <= mu * |F_normal|
	newTotal := *accumulated + lambda
	if newTotal > maxFriction {
		newTotal = maxFriction
	} else if newTotal < -maxFriction {
		newTotal = -maxFriction
	}
	lambda = newTotal - *accumulated
	*accumulated = newTotal

	applyImpulsePair(entry, dir.Mul(lambda))
}

// applyImpulsePair pushes body A along the impulse and body B against it.
// The contact normal points from B toward A, so a positive normal impulse
// separates the pair.
func applyImpulsePair(entry *contactEntry, impulse mgl64.Vec3) {
	entry.bodyA.ApplyImpulse(impulse, entry.rA)
	entry.bodyB.ApplyImpulse(impulse.Mul(-1), entry.rB)
}

// effectiveMass returns the denominator of the impulse along dir:
// invMassA + invMassB + angular terms from both inertia tensors
func effectiveMass(bodyA, bodyB *actor.RigidBody, invIA, invIB mgl64.Mat3, rA, rB, dir mgl64.Vec3) float64 {
	rACrossDir := rA.Cross(dir)
	rBCrossDir := rB.Cross(dir)

	angularA := invIA.Mul3x1(rACrossDir).Dot(rACrossDir)
	angularB := invIB.Mul3x1(rBCrossDir).Dot(rBCrossDir)

	return bodyA.InverseMass() + bodyB.InverseMass() + angularA + angularB
}

// planeSpace builds two orthonormal tangents for a unit normal
func planeSpace(normal mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	tangent1 := mgl64.Vec3{1, 0, 0}
	if math.Abs(normal.X()) > 0.9 {
		tangent1 = mgl64.Vec3{0, 1, 0}
	}

	tangent1 = tangent1.Sub(normal.Mul(tangent1.Dot(normal))).Normalize()
	tangent2 := normal.Cross(tangent1).Normalize()

	return tangent1, tangent2
}

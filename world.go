package anvil

import (
	"fmt"
	"math"

	"github.com/akmonengine/anvil/actor"
	"github.com/akmonengine/anvil/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

const DEFAULT_WORKERS = 1

// TickCallback runs inside StepSimulation, before or after each substep
type TickCallback func(w *World, timeStep float64, userInfo any)

// ActionInterface is the per-substep update hook for character controllers
// and similar game objects
type ActionInterface interface {
	UpdateAction(w *World, dt float64)
}

// World is the discrete dynamics world: it owns the body list, gravity, the
// solver and its tunables, the action list and the tick callbacks, and
// orchestrates the fixed stepping pipeline.
type World struct {
	// List of all rigid bodies in the world
	Bodies []*actor.RigidBody
	// proxies is parallel to Bodies, maintained by swap-and-pop removal
	proxies []*BroadphaseProxy

	constraints []constraint.Constraint
	actions     []ActionInterface

	// Gravity acceleration (m/s², or N/kg)
	gravity mgl64.Vec3

	broadphase Broadphase
	dispatcher Dispatcher
	solver     constraint.ConstraintSolver
	solverInfo constraint.SolverInfo
	islands    *islandManager

	Workers int

	Events Events

	// localTime accumulates wall time not yet consumed by fixed substeps
	localTime float64

	preTickCallback  TickCallback
	preTickUserInfo  any
	postTickCallback TickCallback
	postTickUserInfo any

	synchronizeAllMotionStates bool
}

// NewWorld creates a world. Nil collaborators get internal defaults: a
// spatial grid broadphase, a collision dispatcher without a sink, and a
// sequential impulse solver.
func NewWorld(broadphase Broadphase, dispatcher Dispatcher, solver constraint.ConstraintSolver) *World {
	if broadphase == nil {
		broadphase = NewSpatialGrid(2.0, 1024)
	}
	if dispatcher == nil {
		dispatcher = NewCollisionDispatcher(nil)
	}
	if solver == nil {
		solver = constraint.NewSequentialImpulseSolver()
	}

	return &World{
		broadphase: broadphase,
		dispatcher: dispatcher,
		solver:     solver,
		solverInfo: constraint.NewSolverInfo(),
		islands:    newIslandManager(),
		gravity:    mgl64.Vec3{0, -10, 0},
		Workers:    DEFAULT_WORKERS,
		Events:     NewEvents(),
	}
}

// ========== Registries ==========

// AddRigidBody adds a rigid body to the world and to the broadphase
func (w *World) AddRigidBody(body *actor.RigidBody) {
	if body.WorldIndex >= 0 && body.WorldIndex < len(w.Bodies) && w.Bodies[body.WorldIndex] == body {
		return
	}

	body.WorldIndex = len(w.Bodies)
	w.Bodies = append(w.Bodies, body)

	if body.Shape != nil {
		body.Shape.ComputeAABB(body.Transform)
		w.proxies = append(w.proxies, w.broadphase.CreateProxy(body.Shape.GetAABB(), body))
	} else {
		w.proxies = append(w.proxies, nil)
	}

	body.ApplyDefaultSleepingThresholds(w.solverInfo.LinearSleepingThreshold, w.solverInfo.AngularSleepingThreshold)
}

// RemoveRigidBody removes a rigid body from the world, its broadphase
// proxy, and every manifold referencing it
func (w *World) RemoveRigidBody(body *actor.RigidBody) {
	idx := body.WorldIndex
	if idx < 0 || idx >= len(w.Bodies) || w.Bodies[idx] != body {
		return
	}

	if w.proxies[idx] != nil {
		w.broadphase.DestroyProxy(w.proxies[idx])
	}
	w.dispatcher.RemoveBody(body)
	w.Events.forget(body)

	last := len(w.Bodies) - 1
	w.Bodies[idx] = w.Bodies[last]
	w.proxies[idx] = w.proxies[last]
	w.Bodies[idx].WorldIndex = idx
	w.Bodies = w.Bodies[:last]
	w.proxies = w.proxies[:last]

	body.WorldIndex = -1
}

func (w *World) AddConstraint(c constraint.Constraint) {
	w.constraints = append(w.constraints, c)
}

func (w *World) RemoveConstraint(c constraint.Constraint) {
	for i, registered := range w.constraints {
		if registered == c {
			last := len(w.constraints) - 1
			w.constraints[i] = w.constraints[last]
			w.constraints = w.constraints[:last]
			return
		}
	}
}

func (w *World) AddAction(action ActionInterface) {
	w.actions = append(w.actions, action)
}

func (w *World) RemoveAction(action ActionInterface) {
	for i, registered := range w.actions {
		if registered == action {
			last := len(w.actions) - 1
			w.actions[i] = w.actions[last]
			w.actions = w.actions[:last]
			return
		}
	}
}

// SetGravity stores the acceleration by value; later mutation of the
// caller's vector does not affect the world
func (w *World) SetGravity(gravity mgl64.Vec3) {
	w.gravity = gravity
}

func (w *World) GetGravity() mgl64.Vec3 {
	return w.gravity
}

func (w *World) SetConstraintSolver(solver constraint.ConstraintSolver) {
	if solver == nil {
		solver = constraint.NewSequentialImpulseSolver()
	}
	w.solver = solver
}

func (w *World) GetConstraintSolver() constraint.ConstraintSolver {
	return w.solver
}

// GetSolverInfo returns the mutable tunables struct; callers adjust fields
// between steps
func (w *World) GetSolverInfo() *constraint.SolverInfo {
	return &w.solverInfo
}

func (w *World) GetBroadphase() Broadphase {
	return w.broadphase
}

func (w *World) GetDispatcher() Dispatcher {
	return w.dispatcher
}

// SetInternalTickCallback registers a callback around each substep
func (w *World) SetInternalTickCallback(cb TickCallback, userInfo any, isPreTick bool) {
	if isPreTick {
		w.preTickCallback = cb
		w.preTickUserInfo = userInfo
	} else {
		w.postTickCallback = cb
		w.postTickUserInfo = userInfo
	}
}

// SetSynchronizeAllMotionStates pushes transforms to inactive bodies'
// motion states too
func (w *World) SetSynchronizeAllMotionStates(sync bool) {
	w.synchronizeAllMotionStates = sync
}

// ========== Stepping ==========

// StepSimulation advances the simulation and returns the number of substeps
// executed.
//
// With maxSubSteps > 0 the world runs in fixed-timestep mode: timeStep
// accumulates into local time and whole multiples of fixedTimeStep are
// consumed. The accumulator is debited for the full uncapped substep count
// before execution is clamped to maxSubSteps, so sustained overload
// silently drops simulation time instead of spiraling; changing that would
// change determinism under variable frame rates.
//
// With maxSubSteps == 0 the timeStep itself is a single variable substep.
//
// A collaborator error leaves the world's state unspecified; callers should
// stop stepping.
func (w *World) StepSimulation(timeStep float64, maxSubSteps int, fixedTimeStep float64) (int, error) {
	w.Workers = max(DEFAULT_WORKERS, w.Workers)

	numSubSteps := 0

	if maxSubSteps > 0 {
		// Fixed timestep with accumulation
		if timeStep > 0 {
			w.localTime += timeStep
			if w.localTime >= fixedTimeStep {
				numSubSteps = int(w.localTime / fixedTimeStep)
				w.localTime -= float64(numSubSteps) * fixedTimeStep
			}
		}
	} else {
		// Variable timestep: one substep of exactly timeStep
		fixedTimeStep = timeStep
		if timeStep > 0 && !fuzzyZero(timeStep) {
			numSubSteps = 1
			maxSubSteps = 1
		}
	}

	clampedSubSteps := numSubSteps
	if clampedSubSteps > maxSubSteps {
		clampedSubSteps = maxSubSteps
	}

	if clampedSubSteps > 0 {
		w.applyGravity()

		for i := 0; i < clampedSubSteps; i++ {
			if err := w.singleStep(fixedTimeStep); err != nil {
				return 0, err
			}
		}

		w.Events.processSleepEvents(w.Bodies)
		w.Events.flush()
	}

	w.SynchronizeMotionStates()
	w.clearForces()

	return clampedSubSteps, nil
}

// singleStep runs one substep of the pipeline
func (w *World) singleStep(dt float64) error {
	if w.preTickCallback != nil {
		w.preTickCallback(w, dt, w.preTickUserInfo)
	}

	// Phase 1: predict unconstrained motion, a cheap estimate later
	// corrected by the solver
	w.predictUnconstrainedMotion(dt)

	// Phase 2: broad phase on the predicted bounds, then narrow phase
	// refreshing the persistent manifolds
	w.updateAabbs()
	pairs := w.broadphase.CalculateOverlappingPairs()
	w.dispatcher.DispatchAllCollisionPairs(pairs, &w.solverInfo)
	w.Events.recordCollisions(w.dispatcher.Manifolds())

	// Phase 3: simulation islands
	w.islands.BuildIslands(w.Bodies, w.dispatcher.Manifolds(), w.constraints)
	w.wakeTouchedSleepers()

	// Phase 4: solve contacts and constraints
	w.solverInfo.TimeStep = dt
	manifolds := w.dispatcher.Manifolds()
	w.solver.PrepareSolve(len(w.Bodies), len(manifolds))
	if _, err := w.solver.SolveGroup(w.Bodies, manifolds, w.constraints, &w.solverInfo); err != nil {
		return fmt.Errorf("solve group: %w", err)
	}
	w.solver.AllSolved(&w.solverInfo)

	// Phase 5: commit solved velocities into transforms
	w.integrateTransforms(dt)

	// Phase 6: actions (character controllers...)
	for _, action := range w.actions {
		action.UpdateAction(w, dt)
	}

	// Phase 7: sleep state machine
	w.updateActivationState(dt)

	if w.postTickCallback != nil {
		w.postTickCallback(w, dt, w.postTickUserInfo)
	}

	return nil
}

// applyGravity accumulates gravity as a force on active dynamic bodies,
// once per StepSimulation before the first substep
func (w *World) applyGravity() {
	for _, body := range w.Bodies {
		if body.IsActive() {
			body.ApplyGravity(w.gravity)
		}
	}
}

func (w *World) predictUnconstrainedMotion(dt float64) {
	task(w.Workers, w.Bodies, func(body *actor.RigidBody) {
		if body.IsStaticOrKinematic() || !body.IsActive() {
			return
		}
		body.IntegrateVelocities(dt)
		body.ApplyDamping(dt)
		body.PredictIntegratedTransform(dt)
	})
}

// updateAabbs pushes predicted bounds to the broadphase, expanded by the
// contact breaking threshold so contacts form just before touching
func (w *World) updateAabbs() {
	task(w.Workers, w.Bodies, func(body *actor.RigidBody) {
		if body.Shape == nil {
			return
		}
		body.Shape.ComputeAABB(body.Transform)
	})

	margin := w.solverInfo.ContactBreakingThreshold
	for i, body := range w.Bodies {
		if w.proxies[i] == nil {
			continue
		}
		w.broadphase.SetAabb(w.proxies[i], body.Shape.GetAABB().Expand(margin))
	}
}

// wakeTouchedSleepers activates sleeping bodies that share an island with a
// restless one, so an incoming body knocks a resting stack awake
func (w *World) wakeTouchedSleepers() {
	restless := make(map[int]bool, 16)
	for _, body := range w.Bodies {
		if body.IslandTag >= 0 && body.IsActive() && !body.WantsSleeping() {
			restless[body.IslandTag] = true
		}
	}

	for _, body := range w.Bodies {
		if body.IslandTag >= 0 && restless[body.IslandTag] && !body.IsActive() {
			body.Activate(false)
		}
	}
}

// integrateTransforms commits each active dynamic body's transform,
// re-extrapolated from the solved velocities
func (w *World) integrateTransforms(dt float64) {
	task(w.Workers, w.Bodies, func(body *actor.RigidBody) {
		if body.IsStaticOrKinematic() || !body.IsActive() {
			return
		}
		body.PredictIntegratedTransform(dt)
		body.ProceedToTransform(body.PredictedTransform)
	})
}

// updateActivationState runs the sleep state machine: bodies accumulate
// quiet time individually, islands fall asleep as a unit
func (w *World) updateActivationState(dt float64) {
	for _, body := range w.Bodies {
		body.UpdateDeactivation(dt)

		if !body.WantsSleeping() {
			continue
		}

		if body.IsStaticOrKinematic() {
			body.ForceActivationState(actor.StateIslandSleeping)
			continue
		}

		switch body.ActivationState() {
		case actor.StateActive:
			body.SetActivationState(actor.StateWantsDeactivation)
		case actor.StateIslandSleeping:
			body.LinearVelocity = mgl64.Vec3{}
			body.AngularVelocity = mgl64.Vec3{}
		}
	}

	w.islands.UpdateSleepStates(w.Bodies)
}

// SynchronizeMotionStates pushes committed transforms to the bodies'
// external sinks, for active bodies only unless synchronize-all is enabled
func (w *World) SynchronizeMotionStates() {
	task(w.Workers, w.Bodies, func(body *actor.RigidBody) {
		if body.MotionState == nil {
			return
		}
		if !body.IsActive() && !w.synchronizeAllMotionStates {
			return
		}
		body.MotionState.SetWorldTransform(body.Transform)
	})
}

func (w *World) clearForces() {
	for _, body := range w.Bodies {
		body.ClearForces()
	}
}

// RayTest walks the broadphase for proxies along the segment, nearest first
// not guaranteed; fn decides whether to continue
func (w *World) RayTest(from, to mgl64.Vec3, fn func(body *actor.RigidBody, hitFraction float64) bool) {
	w.broadphase.RayTest(from, to, func(proxy *BroadphaseProxy, hitFraction float64) bool {
		return fn(proxy.Body, hitFraction)
	})
}

func fuzzyZero(x float64) bool {
	return math.Abs(x) < 1e-12
}

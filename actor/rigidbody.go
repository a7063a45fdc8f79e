package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// BodyType represents the type of rigid body
type BodyType int

const (
	// BodyTypeDynamic bodies are affected by forces, gravity, and collisions
	// They have finite mass and can move freely
	BodyTypeDynamic BodyType = iota

	// BodyTypeStatic bodies are immovable and have infinite mass
	// They are not affected by forces or gravity (e.g., ground, walls)
	BodyTypeStatic

	// BodyTypeKinematic bodies are moved by the application, not by the solver
	// They have zero inverse mass but carry velocity for contact response
	BodyTypeKinematic
)

// ActivationState is the sleep/activation state machine of a body
type ActivationState int

const (
	// StateActive bodies are integrated and solved every substep
	StateActive ActivationState = iota

	// StateWantsDeactivation bodies have been slow for longer than the
	// deactivation time and will sleep once their whole island agrees
	StateWantsDeactivation

	// StateIslandSleeping bodies are skipped by integration; their
	// velocities are forced to exactly zero
	StateIslandSleeping

	// StateDisableDeactivation bodies never sleep; sticky until the caller
	// forces another state
	StateDisableDeactivation
)

// DeactivationTime is the duration a body must stay below its sleeping
// thresholds before it wants to sleep
var DeactivationTime = 2.0

// DisableDeactivation globally prevents every body from sleeping
var DisableDeactivation = false

const (
	// MaxAngularVelocityStep caps rotation per substep: |w| * dt <= pi/2
	MaxAngularVelocityStep = math.Pi / 2

	// additionalDampingFactor and the fixed floors below suppress numerical
	// jitter when a body is nearly at rest
	additionalDampingFactor     = 0.005
	additionalDampingThreshold  = 0.01
	additionalLinearDampVel     = 0.005
	additionalAngularDampVel    = 0.005
	defaultLinearSleepThreshold = 0.8
	defaultAngularSleepThresold = 1.0
)

// Material carries the surface response coefficients of a body,
// combined per contact point by the dispatcher
type Material struct {
	Friction         float64
	Restitution      float64 // 0= no rebound, 1= perfect restitution
	RollingFriction  float64
	SpinningFriction float64
}

// RigidBody represents a rigid body in the physics simulation
type RigidBody struct {
	// Spatial properties
	Transform Transform
	// PredictedTransform is the unconstrained extrapolation computed at the
	// start of a substep, committed after solving
	PredictedTransform Transform

	// Linear motion
	LinearVelocity mgl64.Vec3 // m/s

	// Angular motion
	AngularVelocity mgl64.Vec3 // rad/s

	// Inertie locale et son inverse
	InertiaLocal        mgl64.Mat3
	InverseInertiaLocal mgl64.Mat3

	mass    float64
	invMass float64

	totalForce  mgl64.Vec3
	totalTorque mgl64.Vec3

	LinearDamping  float64 // 0.0 - 1.0
	AngularDamping float64 // 0.0 - 1.0
	// AdditionalDamping snaps near-zero velocities to rest, see ApplyDamping
	AdditionalDamping bool

	LinearSleepingThreshold  float64
	AngularSleepingThreshold float64
	customSleepThresholds    bool

	activationState   ActivationState
	DeactivationTimer float64

	// MotionState is the optional external sink for committed transforms
	MotionState MotionState

	// Physical properties
	Material Material
	BodyType BodyType

	// Collision shape
	Shape ShapeInterface

	// WorldIndex is the body's slot in the world's body list, kept in sync
	// by swap-and-pop removal
	WorldIndex int
	// IslandTag groups bodies connected by contacts or constraints
	IslandTag int
	// CompanionID is opaque scratch space for the solver's batching
	CompanionID int
}

// NewRigidBody creates a new rigid body with explicit mass.
// mass == 0 creates a static body; inertia is derived from the shape.
func NewRigidBody(transform Transform, shape ShapeInterface, mass float64) *RigidBody {
	transform.InverseRotation = transform.Rotation.Inverse()

	rb := &RigidBody{
		Transform:                transform,
		PredictedTransform:       transform,
		Shape:                    shape,
		mass:                     mass,
		Material:                 Material{Friction: 0.5},
		activationState:          StateActive,
		LinearSleepingThreshold:  defaultLinearSleepThreshold,
		AngularSleepingThreshold: defaultAngularSleepThresold,
		WorldIndex:               -1,
		IslandTag:                -1,
		CompanionID:              -1,
	}

	if mass == 0 {
		rb.BodyType = BodyTypeStatic
		rb.invMass = 0
		rb.InertiaLocal = mgl64.Mat3{}
		rb.InverseInertiaLocal = mgl64.Mat3{}
	} else {
		rb.BodyType = BodyTypeDynamic
		rb.invMass = 1.0 / mass
		rb.InertiaLocal = shape.ComputeInertia(mass)
		rb.InverseInertiaLocal = rb.InertiaLocal.Inv()
	}

	if shape != nil {
		shape.ComputeAABB(rb.Transform)
	}

	return rb
}

// SetKinematic marks the body as application-driven: zero inverse mass,
// excluded from integration, never deactivated by the velocity test alone
func (rb *RigidBody) SetKinematic() {
	rb.BodyType = BodyTypeKinematic
	rb.invMass = 0
	rb.InverseInertiaLocal = mgl64.Mat3{}
}

func (rb *RigidBody) Mass() float64 {
	return rb.mass
}

// InverseMass is exactly 0 for static and kinematic bodies
func (rb *RigidBody) InverseMass() float64 {
	return rb.invMass
}

// IsStaticOrKinematic reports whether the body is excluded from velocity
// integration and force accumulation
func (rb *RigidBody) IsStaticOrKinematic() bool {
	return rb.BodyType != BodyTypeDynamic
}

func (rb *RigidBody) IsStatic() bool {
	return rb.BodyType == BodyTypeStatic
}

func (rb *RigidBody) IsKinematic() bool {
	return rb.BodyType == BodyTypeKinematic
}

// IsActive reports whether the body takes part in integration this substep
func (rb *RigidBody) IsActive() bool {
	return rb.activationState != StateIslandSleeping
}

func (rb *RigidBody) ActivationState() ActivationState {
	return rb.activationState
}

// SetActivationState requests a state change; ignored while the body is in
// StateDisableDeactivation (use ForceActivationState to override)
func (rb *RigidBody) SetActivationState(state ActivationState) {
	if rb.activationState == StateDisableDeactivation {
		return
	}
	rb.activationState = state
}

// ForceActivationState sets the state unconditionally
func (rb *RigidBody) ForceActivationState(state ActivationState) {
	rb.activationState = state
}

// Activate wakes the body up. forceActivation also wakes static/kinematic
// bodies and bodies in StateDisableDeactivation.
func (rb *RigidBody) Activate(forceActivation bool) {
	if !forceActivation && rb.IsStaticOrKinematic() {
		return
	}
	if forceActivation {
		rb.ForceActivationState(StateActive)
	} else {
		rb.SetActivationState(StateActive)
	}
	rb.DeactivationTimer = 0
}

// ========== Forces ==========

// ApplyGravity accumulates gravity as a force, skipped for non-dynamic bodies
func (rb *RigidBody) ApplyGravity(gravity mgl64.Vec3) {
	if rb.IsStaticOrKinematic() {
		return
	}
	rb.totalForce = rb.totalForce.Add(gravity.Mul(rb.mass))
}

// ApplyCentralForce accumulates a force through the center of mass
func (rb *RigidBody) ApplyCentralForce(force mgl64.Vec3) {
	if rb.IsStaticOrKinematic() {
		return
	}
	rb.totalForce = rb.totalForce.Add(force)
}

func (rb *RigidBody) ApplyTorque(torque mgl64.Vec3) {
	if rb.IsStaticOrKinematic() {
		return
	}
	rb.totalTorque = rb.totalTorque.Add(torque)
}

// ApplyForce accumulates a force at a point relative to the center of mass
func (rb *RigidBody) ApplyForce(force, relPos mgl64.Vec3) {
	rb.ApplyCentralForce(force)
	rb.ApplyTorque(relPos.Cross(force))
}

// ApplyCentralImpulse changes linear velocity immediately
func (rb *RigidBody) ApplyCentralImpulse(impulse mgl64.Vec3) {
	rb.LinearVelocity = rb.LinearVelocity.Add(impulse.Mul(rb.invMass))
}

func (rb *RigidBody) ApplyTorqueImpulse(torque mgl64.Vec3) {
	rb.AngularVelocity = rb.AngularVelocity.Add(rb.GetInverseInertiaWorld().Mul3x1(torque))
}

// ApplyImpulse changes both velocities immediately, at a point relative to
// the center of mass
func (rb *RigidBody) ApplyImpulse(impulse, relPos mgl64.Vec3) {
	if rb.invMass == 0 {
		return
	}
	rb.ApplyCentralImpulse(impulse)
	rb.ApplyTorqueImpulse(relPos.Cross(impulse))
}

func (rb *RigidBody) TotalForce() mgl64.Vec3 {
	return rb.totalForce
}

func (rb *RigidBody) TotalTorque() mgl64.Vec3 {
	return rb.totalTorque
}

func (rb *RigidBody) ClearForces() {
	rb.totalForce = mgl64.Vec3{}
	rb.totalTorque = mgl64.Vec3{}
}

// ========== Intégration ==========

// IntegrateVelocities applies the accumulated forces over dt, then clamps
// angular speed so a body cannot rotate more than a quarter turn per substep
func (rb *RigidBody) IntegrateVelocities(dt float64) {
	if rb.IsStaticOrKinematic() {
		return
	}

	rb.LinearVelocity = rb.LinearVelocity.Add(rb.totalForce.Mul(rb.invMass * dt))

	angularAccel := rb.GetInverseInertiaWorld().Mul3x1(rb.totalTorque)
	rb.AngularVelocity = rb.AngularVelocity.Add(angularAccel.Mul(dt))

	angularSpeed := rb.AngularVelocity.Len()
	if angularSpeed*dt > MaxAngularVelocityStep {
		rb.AngularVelocity = rb.AngularVelocity.Mul(MaxAngularVelocityStep / (angularSpeed * dt))
	}
}

// ApplyDamping decays both velocities exponentially. With AdditionalDamping
// enabled, velocities below a fixed floor are pulled toward zero without
// overshooting, which kills residual jitter on resting stacks.
func (rb *RigidBody) ApplyDamping(dt float64) {
	if rb.IsStaticOrKinematic() {
		return
	}

	rb.LinearVelocity = rb.LinearVelocity.Mul(math.Pow(1.0-rb.LinearDamping, dt))
	rb.AngularVelocity = rb.AngularVelocity.Mul(math.Pow(1.0-rb.AngularDamping, dt))

	if !rb.AdditionalDamping {
		return
	}

	if rb.LinearVelocity.LenSqr() < additionalDampingThreshold*additionalDampingThreshold &&
		rb.AngularVelocity.LenSqr() < additionalDampingThreshold*additionalDampingThreshold {
		rb.LinearVelocity = rb.LinearVelocity.Mul(additionalDampingFactor)
		rb.AngularVelocity = rb.AngularVelocity.Mul(additionalDampingFactor)
	}

	speed := rb.LinearVelocity.Len()
	if speed < rb.LinearDamping {
		if speed > additionalLinearDampVel {
			dir := rb.LinearVelocity.Normalize()
			rb.LinearVelocity = rb.LinearVelocity.Sub(dir.Mul(additionalLinearDampVel))
		} else {
			rb.LinearVelocity = mgl64.Vec3{}
		}
	}

	angSpeed := rb.AngularVelocity.Len()
	if angSpeed < rb.AngularDamping {
		if angSpeed > additionalAngularDampVel {
			dir := rb.AngularVelocity.Normalize()
			rb.AngularVelocity = rb.AngularVelocity.Sub(dir.Mul(additionalAngularDampVel))
		} else {
			rb.AngularVelocity = mgl64.Vec3{}
		}
	}
}

// SetDamping clamps both factors to [0,1]
func (rb *RigidBody) SetDamping(linear, angular float64) {
	rb.LinearDamping = math.Min(math.Max(linear, 0), 1)
	rb.AngularDamping = math.Min(math.Max(angular, 0), 1)
}

// SetSleepingThresholds overrides the per-body velocity floors used by the
// deactivation test. A body with explicit thresholds keeps them when added
// to a world.
func (rb *RigidBody) SetSleepingThresholds(linear, angular float64) {
	rb.LinearSleepingThreshold = linear
	rb.AngularSleepingThreshold = angular
	rb.customSleepThresholds = true
}

// ApplyDefaultSleepingThresholds installs the world defaults unless
// SetSleepingThresholds already pinned explicit values
func (rb *RigidBody) ApplyDefaultSleepingThresholds(linear, angular float64) {
	if rb.customSleepThresholds {
		return
	}
	rb.LinearSleepingThreshold = linear
	rb.AngularSleepingThreshold = angular
}

// PredictIntegratedTransform extrapolates the current transform by the
// current velocities, ignoring constraints. The result is a cheap estimate
// corrected by the solver before being committed.
func (rb *RigidBody) PredictIntegratedTransform(dt float64) {
	rb.PredictedTransform = rb.Transform.IntegrateVelocity(rb.LinearVelocity, rb.AngularVelocity, dt)
}

// ProceedToTransform commits a transform, refreshing the world inertia and
// the shape bounds
func (rb *RigidBody) ProceedToTransform(t Transform) {
	rb.Transform = t
	rb.Transform.InverseRotation = rb.Transform.Rotation.Inverse()
	if rb.Shape != nil {
		rb.Shape.ComputeAABB(rb.Transform)
	}
}

// GetVelocityInLocalPoint returns the velocity of a point attached to the
// body, given relative to the center of mass
func (rb *RigidBody) GetVelocityInLocalPoint(relPos mgl64.Vec3) mgl64.Vec3 {
	return rb.LinearVelocity.Add(rb.AngularVelocity.Cross(relPos))
}

// Inertie en espace monde
func (rb *RigidBody) GetInertiaWorld() mgl64.Mat3 {
	// I_world = R * I_local * R^T
	R := rb.Transform.Rotation.Mat4().Mat3()
	return R.Mul3(rb.InertiaLocal).Mul3(R.Transpose())
}

// Inverse de l'inertie en espace monde
func (rb *RigidBody) GetInverseInertiaWorld() mgl64.Mat3 {
	if rb.IsStaticOrKinematic() {
		return mgl64.Mat3{0, 0, 0, 0, 0, 0, 0, 0, 0}
	}

	// I_world^(-1) = R * I_local^(-1) * R^T
	R := rb.Transform.Rotation.Mat4().Mat3()
	return R.Mul3(rb.InverseInertiaLocal).Mul3(R.Transpose())
}

// ========== Deactivation ==========

// UpdateDeactivation accumulates time spent below the sleeping thresholds.
// Any excursion above a threshold resets the timer and reactivates the body.
func (rb *RigidBody) UpdateDeactivation(dt float64) {
	if rb.activationState == StateIslandSleeping || rb.activationState == StateDisableDeactivation {
		return
	}

	if rb.LinearVelocity.LenSqr() < rb.LinearSleepingThreshold*rb.LinearSleepingThreshold &&
		rb.AngularVelocity.LenSqr() < rb.AngularSleepingThreshold*rb.AngularSleepingThreshold {
		rb.DeactivationTimer += dt
	} else {
		rb.DeactivationTimer = 0
		rb.SetActivationState(StateActive)
	}
}

// WantsSleeping reports whether the body is ready to be put to sleep by the
// world, pending agreement of its island
func (rb *RigidBody) WantsSleeping() bool {
	if rb.activationState == StateDisableDeactivation {
		return false
	}
	if DisableDeactivation || DeactivationTime == 0 {
		return false
	}
	if rb.activationState == StateIslandSleeping || rb.activationState == StateWantsDeactivation {
		return true
	}

	return rb.DeactivationTimer > DeactivationTime
}

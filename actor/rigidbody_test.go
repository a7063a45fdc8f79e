package actor

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func vecNear(a, b mgl64.Vec3, tol float64) bool {
	return a.Sub(b).Len() <= tol
}

func newDynamicSphere(mass float64) *RigidBody {
	return NewRigidBody(NewTransform(), &Sphere{Radius: 1}, mass)
}

// =============================================================================
// Construction
// =============================================================================

func TestNewRigidBody(t *testing.T) {
	tests := []struct {
		name       string
		mass       float64
		wantType   BodyType
		wantInvOne bool
	}{
		{"dynamic body", 2.0, BodyTypeDynamic, true},
		{"zero mass is static", 0.0, BodyTypeStatic, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb := newDynamicSphere(tt.mass)

			if rb.BodyType != tt.wantType {
				t.Errorf("BodyType = %v, want %v", rb.BodyType, tt.wantType)
			}
			if tt.wantInvOne {
				if math.Abs(rb.InverseMass()-1.0/tt.mass) > 1e-12 {
					t.Errorf("InverseMass() = %v, want %v", rb.InverseMass(), 1.0/tt.mass)
				}
			} else if rb.InverseMass() != 0 {
				t.Errorf("InverseMass() = %v, want 0 for static body", rb.InverseMass())
			}
			if rb.ActivationState() != StateActive {
				t.Errorf("new body state = %v, want StateActive", rb.ActivationState())
			}
			if rb.WorldIndex != -1 || rb.IslandTag != -1 {
				t.Errorf("new body indices = (%d, %d), want (-1, -1)", rb.WorldIndex, rb.IslandTag)
			}
			if rb.Material.Friction != 0.5 {
				t.Errorf("default friction = %v, want 0.5", rb.Material.Friction)
			}
		})
	}
}

func TestSetKinematic(t *testing.T) {
	rb := newDynamicSphere(1.0)
	rb.SetKinematic()

	if !rb.IsKinematic() {
		t.Error("IsKinematic() = false after SetKinematic")
	}
	if rb.InverseMass() != 0 {
		t.Errorf("InverseMass() = %v, want 0 for kinematic body", rb.InverseMass())
	}
	if got := rb.GetInverseInertiaWorld(); got != (mgl64.Mat3{}) {
		t.Errorf("GetInverseInertiaWorld() = %v, want zero matrix", got)
	}
}

// =============================================================================
// Forces & integration
// =============================================================================

func TestIntegrateVelocities(t *testing.T) {
	rb := newDynamicSphere(2.0)
	rb.ApplyCentralForce(mgl64.Vec3{4, 0, 0})

	rb.IntegrateVelocities(0.5)

	// dv = F/m * dt = 4/2 * 0.5 = 1
	if !vecNear(rb.LinearVelocity, mgl64.Vec3{1, 0, 0}, 1e-12) {
		t.Errorf("LinearVelocity = %v, want {1 0 0}", rb.LinearVelocity)
	}
}

func TestIntegrateVelocities_StaticIgnoresForces(t *testing.T) {
	rb := newDynamicSphere(0)
	rb.ApplyCentralForce(mgl64.Vec3{100, 0, 0})
	rb.ApplyGravity(mgl64.Vec3{0, -10, 0})

	rb.IntegrateVelocities(1.0)

	if rb.LinearVelocity != (mgl64.Vec3{}) {
		t.Errorf("static LinearVelocity = %v, want zero", rb.LinearVelocity)
	}
	if rb.TotalForce() != (mgl64.Vec3{}) {
		t.Errorf("static TotalForce = %v, want zero", rb.TotalForce())
	}
}

func TestIntegrateVelocities_AngularClamp(t *testing.T) {
	tests := []struct {
		name    string
		omega   mgl64.Vec3
		dt      float64
		clamped bool
	}{
		{"slow spin untouched", mgl64.Vec3{1, 0, 0}, 0.01, false},
		{"fast spin clamped", mgl64.Vec3{1000, 0, 0}, 0.01, true},
		{"boundary untouched", mgl64.Vec3{MaxAngularVelocityStep / 0.01, 0, 0}, 0.01, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb := newDynamicSphere(1.0)
			rb.AngularVelocity = tt.omega

			rb.IntegrateVelocities(tt.dt)

			step := rb.AngularVelocity.Len() * tt.dt
			if step > MaxAngularVelocityStep+1e-9 {
				t.Errorf("|w|*dt = %v exceeds %v", step, MaxAngularVelocityStep)
			}
			if tt.clamped {
				if math.Abs(step-MaxAngularVelocityStep) > 1e-9 {
					t.Errorf("|w|*dt = %v, want clamped exactly to %v", step, MaxAngularVelocityStep)
				}
				// Direction preserved
				if rb.AngularVelocity.Normalize().Sub(tt.omega.Normalize()).Len() > 1e-12 {
					t.Error("clamp changed the rotation axis")
				}
			} else if !vecNear(rb.AngularVelocity, tt.omega, 1e-12) {
				t.Errorf("AngularVelocity = %v, want untouched %v", rb.AngularVelocity, tt.omega)
			}
		})
	}
}

func TestApplyImpulse(t *testing.T) {
	rb := newDynamicSphere(2.0)

	rb.ApplyCentralImpulse(mgl64.Vec3{4, 0, 0})
	if !vecNear(rb.LinearVelocity, mgl64.Vec3{2, 0, 0}, 1e-12) {
		t.Errorf("LinearVelocity = %v, want {2 0 0}", rb.LinearVelocity)
	}

	// Off-center impulse also spins the body
	rb2 := newDynamicSphere(1.0)
	rb2.ApplyImpulse(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{1, 0, 0})
	if rb2.AngularVelocity.Len() == 0 {
		t.Error("off-center impulse produced no angular velocity")
	}
}

func TestClearForces(t *testing.T) {
	rb := newDynamicSphere(1.0)
	rb.ApplyForce(mgl64.Vec3{1, 2, 3}, mgl64.Vec3{0, 1, 0})

	rb.ClearForces()

	if rb.TotalForce() != (mgl64.Vec3{}) || rb.TotalTorque() != (mgl64.Vec3{}) {
		t.Errorf("forces after clear = %v / %v, want zero", rb.TotalForce(), rb.TotalTorque())
	}
}

func TestGetVelocityInLocalPoint(t *testing.T) {
	rb := newDynamicSphere(1.0)
	rb.LinearVelocity = mgl64.Vec3{1, 0, 0}
	rb.AngularVelocity = mgl64.Vec3{0, 0, 2}

	// v = v_lin + w x r = {1,0,0} + {0,0,2} x {0,1,0} = {1,0,0} + {-2,0,0}
	got := rb.GetVelocityInLocalPoint(mgl64.Vec3{0, 1, 0})
	if !vecNear(got, mgl64.Vec3{-1, 0, 0}, 1e-12) {
		t.Errorf("GetVelocityInLocalPoint = %v, want {-1 0 0}", got)
	}
}

// =============================================================================
// Damping
// =============================================================================

func TestApplyDamping_Exponential(t *testing.T) {
	rb := newDynamicSphere(1.0)
	rb.SetDamping(0.5, 0.5)
	rb.LinearVelocity = mgl64.Vec3{10, 0, 0}
	rb.AngularVelocity = mgl64.Vec3{0, 10, 0}

	rb.ApplyDamping(1.0)

	// pow(1 - 0.5, 1) = 0.5
	if !vecNear(rb.LinearVelocity, mgl64.Vec3{5, 0, 0}, 1e-12) {
		t.Errorf("LinearVelocity = %v, want {5 0 0}", rb.LinearVelocity)
	}
	if !vecNear(rb.AngularVelocity, mgl64.Vec3{0, 5, 0}, 1e-12) {
		t.Errorf("AngularVelocity = %v, want {0 5 0}", rb.AngularVelocity)
	}
}

func TestApplyDamping_TimeScaling(t *testing.T) {
	// Two half steps must equal one full step
	full := newDynamicSphere(1.0)
	full.SetDamping(0.3, 0)
	full.LinearVelocity = mgl64.Vec3{1, 0, 0}
	full.ApplyDamping(1.0 / 60.0)

	halves := newDynamicSphere(1.0)
	halves.SetDamping(0.3, 0)
	halves.LinearVelocity = mgl64.Vec3{1, 0, 0}
	halves.ApplyDamping(1.0 / 120.0)
	halves.ApplyDamping(1.0 / 120.0)

	if !vecNear(full.LinearVelocity, halves.LinearVelocity, 1e-12) {
		t.Errorf("damping not time-consistent: %v vs %v", full.LinearVelocity, halves.LinearVelocity)
	}
}

func TestApplyDamping_AdditionalSnapsToRest(t *testing.T) {
	rb := newDynamicSphere(1.0)
	rb.AdditionalDamping = true
	rb.SetDamping(0.1, 0.1)
	rb.LinearVelocity = mgl64.Vec3{0.001, 0, 0}
	rb.AngularVelocity = mgl64.Vec3{0, 0.001, 0}

	rb.ApplyDamping(1.0 / 60.0)

	if rb.LinearVelocity != (mgl64.Vec3{}) {
		t.Errorf("LinearVelocity = %v, want exactly zero", rb.LinearVelocity)
	}
	if rb.AngularVelocity != (mgl64.Vec3{}) {
		t.Errorf("AngularVelocity = %v, want exactly zero", rb.AngularVelocity)
	}
}

func TestSetDamping_Clamps(t *testing.T) {
	rb := newDynamicSphere(1.0)
	rb.SetDamping(-1, 2)

	if rb.LinearDamping != 0 || rb.AngularDamping != 1 {
		t.Errorf("damping = (%v, %v), want (0, 1)", rb.LinearDamping, rb.AngularDamping)
	}
}

// =============================================================================
// Transform prediction
// =============================================================================

func TestPredictIntegratedTransform(t *testing.T) {
	rb := newDynamicSphere(1.0)
	rb.LinearVelocity = mgl64.Vec3{2, 0, 0}

	rb.PredictIntegratedTransform(0.5)

	if !vecNear(rb.PredictedTransform.Position, mgl64.Vec3{1, 0, 0}, 1e-12) {
		t.Errorf("PredictedTransform.Position = %v, want {1 0 0}", rb.PredictedTransform.Position)
	}
	// Prediction leaves the committed transform alone
	if rb.Transform.Position != (mgl64.Vec3{}) {
		t.Errorf("Transform.Position = %v, want unchanged origin", rb.Transform.Position)
	}
}

func TestProceedToTransform_RefreshesBounds(t *testing.T) {
	rb := newDynamicSphere(1.0)

	rb.ProceedToTransform(NewTransformAt(mgl64.Vec3{10, 0, 0}))

	aabb := rb.Shape.GetAABB()
	if !vecNear(aabb.Min, mgl64.Vec3{9, -1, -1}, 1e-12) || !vecNear(aabb.Max, mgl64.Vec3{11, 1, 1}, 1e-12) {
		t.Errorf("AABB = %v..%v, want 9..11 on x", aabb.Min, aabb.Max)
	}
}

// =============================================================================
// Deactivation
// =============================================================================

func TestUpdateDeactivation(t *testing.T) {
	tests := []struct {
		name      string
		linear    mgl64.Vec3
		angular   mgl64.Vec3
		wantTimer float64
	}{
		{"at rest accumulates", mgl64.Vec3{}, mgl64.Vec3{}, 0.5},
		{"slow accumulates", mgl64.Vec3{0.1, 0, 0}, mgl64.Vec3{0, 0.1, 0}, 0.5},
		{"fast linear resets", mgl64.Vec3{5, 0, 0}, mgl64.Vec3{}, 0},
		{"fast angular resets", mgl64.Vec3{}, mgl64.Vec3{0, 5, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb := newDynamicSphere(1.0)
			rb.DeactivationTimer = 0.4
			rb.LinearVelocity = tt.linear
			rb.AngularVelocity = tt.angular

			rb.UpdateDeactivation(0.1)

			if math.Abs(rb.DeactivationTimer-tt.wantTimer) > 1e-12 {
				t.Errorf("DeactivationTimer = %v, want %v", rb.DeactivationTimer, tt.wantTimer)
			}
		})
	}
}

func TestUpdateDeactivation_SkipsSleepingAndPinned(t *testing.T) {
	for _, state := range []ActivationState{StateIslandSleeping, StateDisableDeactivation} {
		rb := newDynamicSphere(1.0)
		rb.ForceActivationState(state)
		rb.DeactivationTimer = 1.0

		rb.UpdateDeactivation(0.5)

		if rb.DeactivationTimer != 1.0 {
			t.Errorf("state %v: DeactivationTimer = %v, want untouched 1.0", state, rb.DeactivationTimer)
		}
	}
}

func TestWantsSleeping(t *testing.T) {
	tests := []struct {
		name  string
		setup func(rb *RigidBody)
		want  bool
	}{
		{
			"fresh body does not",
			func(rb *RigidBody) {},
			false,
		},
		{
			"timer past threshold does",
			func(rb *RigidBody) { rb.DeactivationTimer = DeactivationTime + 0.1 },
			true,
		},
		{
			"timer exactly at threshold does not",
			func(rb *RigidBody) { rb.DeactivationTimer = DeactivationTime },
			false,
		},
		{
			"already sleeping does",
			func(rb *RigidBody) { rb.ForceActivationState(StateIslandSleeping) },
			true,
		},
		{
			"wants-deactivation does",
			func(rb *RigidBody) { rb.ForceActivationState(StateWantsDeactivation) },
			true,
		},
		{
			"disable-deactivation never does",
			func(rb *RigidBody) {
				rb.ForceActivationState(StateDisableDeactivation)
				rb.DeactivationTimer = DeactivationTime + 10
			},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb := newDynamicSphere(1.0)
			tt.setup(rb)

			if got := rb.WantsSleeping(); got != tt.want {
				t.Errorf("WantsSleeping() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWantsSleeping_GlobalDisable(t *testing.T) {
	DisableDeactivation = true
	defer func() { DisableDeactivation = false }()

	rb := newDynamicSphere(1.0)
	rb.DeactivationTimer = DeactivationTime + 10

	if rb.WantsSleeping() {
		t.Error("WantsSleeping() = true despite global DisableDeactivation")
	}
}

func TestSetActivationState_StickyDisable(t *testing.T) {
	rb := newDynamicSphere(1.0)
	rb.ForceActivationState(StateDisableDeactivation)

	rb.SetActivationState(StateIslandSleeping)
	if rb.ActivationState() != StateDisableDeactivation {
		t.Errorf("state = %v, want sticky StateDisableDeactivation", rb.ActivationState())
	}

	rb.ForceActivationState(StateActive)
	if rb.ActivationState() != StateActive {
		t.Errorf("state = %v, want StateActive after force", rb.ActivationState())
	}
}

func TestActivate(t *testing.T) {
	rb := newDynamicSphere(1.0)
	rb.ForceActivationState(StateIslandSleeping)
	rb.DeactivationTimer = 5

	rb.Activate(false)

	if rb.ActivationState() != StateActive {
		t.Errorf("state = %v, want StateActive", rb.ActivationState())
	}
	if rb.DeactivationTimer != 0 {
		t.Errorf("DeactivationTimer = %v, want 0", rb.DeactivationTimer)
	}

	// Static bodies only wake on force
	static := newDynamicSphere(0)
	static.ForceActivationState(StateIslandSleeping)
	static.Activate(false)
	if static.ActivationState() != StateIslandSleeping {
		t.Error("Activate(false) woke a static body")
	}
	static.Activate(true)
	if static.ActivationState() != StateActive {
		t.Error("Activate(true) did not wake a static body")
	}
}

// =============================================================================
// World-space inertia
// =============================================================================

func TestGetInverseInertiaWorld_RotationInvariantForSphere(t *testing.T) {
	rb := newDynamicSphere(2.0)
	before := rb.GetInverseInertiaWorld()

	tr := rb.Transform
	tr.SetRotation(mgl64.QuatRotate(1.2, mgl64.Vec3{0, 1, 0}.Normalize()))
	rb.ProceedToTransform(tr)
	after := rb.GetInverseInertiaWorld()

	for i := 0; i < 9; i++ {
		if math.Abs(before[i]-after[i]) > 1e-9 {
			t.Fatalf("sphere inertia changed under rotation: %v vs %v", before, after)
		}
	}
}

package ascent

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Kinematics is the integrated part of the vehicle state.
type Kinematics struct {
	Position     r3.Vec
	Velocity     r3.Vec
	Acceleration r3.Vec
}

// Integrator advances the kinematics with a semi-implicit Euler scheme.
type Integrator struct {
	MaxStep         float64 // s
	GroundTolerance float64 // m
	Body            Body
	Launch          r3.Vec // launch point, restored on a position fault
}

// NewIntegrator returns the integrator of this configuration.
func NewIntegrator(cfg Config) Integrator {
	return Integrator{
		MaxStep:         cfg.Integration.MaxStep,
		GroundTolerance: cfg.Integration.GroundTolerance,
		Body:            cfg.Body,
		Launch:          cfg.Body.Surface(cfg.Integration.Axis),
	}
}

// Clamp returns the step which will actually be integrated for a requested
// increment. Non-positive (or NaN) increments return zero; the excess of
// oversized increments is dropped.
func (i Integrator) Clamp(dt float64) float64 {
	if !(dt > 0) {
		return 0
	}
	return math.Min(dt, i.MaxStep)
}

// Step integrates the net force over dt, which must already be clamped.
func (i Integrator) Step(k Kinematics, net r3.Vec, mass, dt float64) Kinematics {
	k.Acceleration = r3.Scale(1/mass, net)
	k.Velocity = r3.Add(k.Velocity, r3.Scale(dt, k.Acceleration))
	k.Position = r3.Add(k.Position, r3.Scale(dt, k.Velocity))
	return k
}

// Stabilize applies the recovery clamps to freshly integrated kinematics.
func (i Integrator) Stabilize(k Kinematics, stage Stage, onFault FaultFunc) Kinematics {
	if !finiteVec(k.Position) {
		onFault.report(PositionFault, norm(k.Position))
		k.Position = i.Launch
		k.Velocity = r3.Vec{}
		k.Acceleration = r3.Vec{}
	}
	if !finiteVec(k.Velocity) {
		onFault.report(VelocityFault, norm(k.Velocity))
		k.Velocity = r3.Vec{}
		k.Acceleration = r3.Vec{}
	}
	if !finiteVec(k.Acceleration) {
		onFault.report(AccelerationFault, norm(k.Acceleration))
		k.Acceleration = r3.Vec{}
	}
	if stage == Idle {
		return k
	}
	if altitude := i.Body.Altitude(k.Position); altitude < -i.GroundTolerance {
		onFault.report(GroundFault, altitude)
		up := unit(k.Position)
		if up == (r3.Vec{}) {
			up = unit(i.Launch)
		}
		k.Position = r3.Scale(i.Body.Radius, up)
		if vr := radial(k.Velocity, up); vr < 0 {
			k.Velocity = r3.Sub(k.Velocity, r3.Scale(vr, up))
		}
		if ar := radial(k.Acceleration, up); ar < 0 {
			k.Acceleration = r3.Sub(k.Acceleration, r3.Scale(ar, up))
		}
	}
	return k
}

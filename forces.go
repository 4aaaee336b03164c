package ascent

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Forces lists every force acting on the vehicle during a tick, in N.
type Forces struct {
	Gravity r3.Vec
	Normal  r3.Vec
	Drag    r3.Vec
	Thrust  r3.Vec
}

// Net returns the sum of all forces.
func (f Forces) Net() r3.Vec {
	return r3.Add(r3.Add(f.Gravity, f.Normal), r3.Add(f.Drag, f.Thrust))
}

// ForceModel computes the forces as a pure function of the vehicle state.
type ForceModel struct {
	Body       Body
	Atmosphere Atmosphere
	Aero       Aero
	Propulsion Propulsion
	Axis       r3.Vec // unit ascent axis
}

// NewForceModel returns the force model of this configuration.
func NewForceModel(cfg Config) ForceModel {
	return ForceModel{
		Body:       cfg.Body,
		Atmosphere: cfg.Atmosphere,
		Aero:       cfg.Aero,
		Propulsion: cfg.Propulsion,
		Axis:       unit(cfg.Integration.Axis),
	}
}

// Gravity returns the attraction of the body on a vehicle of the given mass.
func (m ForceModel) Gravity(position r3.Vec, mass float64, onFault FaultFunc) r3.Vec {
	dist := norm(position)
	if !finite(dist) || dist < 1 {
		onFault.report(GravityFault, dist)
		return r3.Vec{}
	}
	mag := m.Body.GM() * mass / (dist * dist)
	if !finite(mag) {
		onFault.report(GravityFault, mag)
		return r3.Vec{}
	}
	return r3.Scale(-mag/dist, position)
}

// Drag returns the aerodynamic drag opposing the velocity.
func (m ForceModel) Drag(altitude float64, velocity r3.Vec, onFault FaultFunc) r3.Vec {
	if !m.Atmosphere.Contains(altitude) {
		return r3.Vec{}
	}
	speed2 := r3.Norm2(velocity)
	if speed2 == 0 {
		return r3.Vec{}
	}
	ρ := m.Atmosphere.Density(altitude, onFault)
	mag := 0.5 * ρ * m.Aero.DragCoefficient * m.Aero.Area * speed2
	dir := unit(velocity)
	if !finite(mag) || !finiteVec(dir) {
		onFault.report(DragFault, mag)
		return r3.Vec{}
	}
	return r3.Scale(-mag, dir)
}

// Thrust returns the thrust of the given stage along the ascent axis.
func (m ForceModel) Thrust(stage Stage, att Attachments, fuelPercent float64, onFault FaultFunc) r3.Vec {
	mag := m.Propulsion.Thrust(stage, att, fuelPercent)
	if !finite(mag) {
		onFault.report(ThrustFault, mag)
		return r3.Vec{}
	}
	return r3.Scale(mag, m.Axis)
}

// Compute returns the forces acting on the vehicle in its current state.
// The ground reaction only applies while resting on the pad, and drag only
// once airborne, so the two never act together. The pad is within surfaceε
// of the surface.
func (m ForceModel) Compute(st VehicleState, mass float64, onFault FaultFunc) Forces {
	var f Forces
	altitude := m.Body.Altitude(st.Position)
	f.Gravity = m.Gravity(st.Position, mass, onFault)
	if st.Stage == Idle && altitude <= surfaceε {
		f.Normal = r3.Scale(-1, f.Gravity)
	} else {
		f.Drag = m.Drag(altitude, st.Velocity, onFault)
	}
	f.Thrust = m.Thrust(st.Stage, st.Attached, st.FuelPercent, onFault)
	return f
}

package ascent

import "fmt"

// FaultKind enumerates the numeric faults which are recovered during a tick.
type FaultKind uint8

const (
	// DensityFault is a non-finite air density.
	DensityFault FaultKind = iota + 1
	// MassFault is a non-finite or non-positive total mass.
	MassFault
	// GravityFault is a degenerate distance or non-finite gravity magnitude.
	GravityFault
	// DragFault is a non-finite drag magnitude.
	DragFault
	// ThrustFault is a non-finite thrust magnitude.
	ThrustFault
	// GroundFault is a flight-stage penetration of the surface.
	GroundFault
	// PositionFault is a non-finite position after integration.
	PositionFault
	// VelocityFault is a non-finite velocity after integration.
	VelocityFault
	// AccelerationFault is a non-finite acceleration after integration.
	AccelerationFault
	// FuelFault is a non-finite fuel level.
	FuelFault
)

func (k FaultKind) String() string {
	switch k {
	case DensityFault:
		return "density"
	case MassFault:
		return "mass"
	case GravityFault:
		return "gravity"
	case DragFault:
		return "drag"
	case ThrustFault:
		return "thrust"
	case GroundFault:
		return "ground"
	case PositionFault:
		return "position"
	case VelocityFault:
		return "velocity"
	case AccelerationFault:
		return "acceleration"
	case FuelFault:
		return "fuel"
	}
	return fmt.Sprintf("fault(%d)", uint8(k))
}

// subsys returns the logging subsystem of this kind of fault.
func (k FaultKind) subsys() string {
	switch k {
	case MassFault, ThrustFault, FuelFault:
		return "prop"
	default:
		return "astro"
	}
}

// Fault is a recovered numeric fault and the offending value.
type Fault struct {
	Kind  FaultKind
	Value float64
}

func (f Fault) String() string {
	return fmt.Sprintf("%s fault (%v)", f.Kind, f.Value)
}

// FaultFunc receives numeric faults. A nil FaultFunc drops them.
type FaultFunc func(kind FaultKind, value float64)

func (f FaultFunc) report(kind FaultKind, value float64) {
	if f != nil {
		f(kind, value)
	}
}

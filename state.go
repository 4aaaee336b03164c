package ascent

import (
	"encoding/json"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrInvalidState is returned when restoring an inconsistent vehicle state.
var ErrInvalidState = errors.New("invalid vehicle state")

// VehicleState is the complete mutable state of the vehicle. It is owned by
// a Simulation; State and Restore exchange copies of it.
type VehicleState struct {
	Position        r3.Vec      `json:"position"`
	Velocity        r3.Vec      `json:"velocity"`
	Acceleration    r3.Vec      `json:"acceleration"`
	NetForce        r3.Vec      `json:"netForce"`
	Stage           Stage       `json:"stage"`
	FuelPercent     float64     `json:"fuelPercent"`
	Attached        Attachments `json:"attached"`
	Latches         Latches     `json:"latches"`
	Time            float64     `json:"time"`
	LaunchCommanded bool        `json:"launchCommanded"`
	ManeuverEngines bool        `json:"maneuverEngines"`
}

// InitialState returns the vehicle resting on the launch point, fully fueled
// with the tank and both boosters attached.
func InitialState(cfg Config) VehicleState {
	return VehicleState{
		Position:    cfg.Body.Surface(cfg.Integration.Axis),
		Stage:       Idle,
		FuelPercent: 100,
		Attached:    Attachments{Tank: true, BoosterA: true, BoosterB: true},
	}
}

// Kinematics returns the integrated part of the state.
func (s VehicleState) Kinematics() Kinematics {
	return Kinematics{Position: s.Position, Velocity: s.Velocity, Acceleration: s.Acceleration}
}

func (s *VehicleState) setKinematics(k Kinematics) {
	s.Position, s.Velocity, s.Acceleration = k.Position, k.Velocity, k.Acceleration
}

// Validate returns an error wrapping ErrInvalidState if the state breaks one
// of the invariants of the simulation.
func (s VehicleState) Validate() error {
	switch {
	case !finiteVec(s.Position) || !finiteVec(s.Velocity) || !finiteVec(s.Acceleration) || !finiteVec(s.NetForce):
		return fmt.Errorf("%w: non-finite kinematics", ErrInvalidState)
	case !s.Stage.Valid():
		return fmt.Errorf("%w: stage %d", ErrInvalidState, uint8(s.Stage))
	case !finite(s.FuelPercent) || s.FuelPercent < 0 || s.FuelPercent > 100:
		return fmt.Errorf("%w: fuel %v%%", ErrInvalidState, s.FuelPercent)
	case !finite(s.Time) || s.Time < 0:
		return fmt.Errorf("%w: time %v", ErrInvalidState, s.Time)
	case s.Latches.BoostersDetached && s.Attached.Boosters():
		return fmt.Errorf("%w: boosters latched as detached but still attached", ErrInvalidState)
	case s.Latches.TankDetached && s.Attached.Tank:
		return fmt.Errorf("%w: tank latched as detached but still attached", ErrInvalidState)
	}
	return nil
}

// MarshalState returns the JSON encoding of the state.
func MarshalState(s VehicleState) ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalState decodes and validates a JSON encoded state.
func UnmarshalState(data []byte) (VehicleState, error) {
	var s VehicleState
	if err := json.Unmarshal(data, &s); err != nil {
		return VehicleState{}, fmt.Errorf("%w: %s", ErrInvalidState, err)
	}
	if err := s.Validate(); err != nil {
		return VehicleState{}, err
	}
	return s, nil
}

// Snapshot is the read-only outcome of a tick. Its slices are never shared
// with the simulation.
type Snapshot struct {
	Tick         uint64
	Time         float64 // s
	Position     r3.Vec  // m, body-centered
	Velocity     r3.Vec  // m/s
	Acceleration r3.Vec  // m/s²
	NetForce     r3.Vec  // N
	Altitude     float64 // m
	Speed        float64 // m/s
	Stage        Stage
	StageLabel   string
	FuelPercent  float64
	Mass         float64 // kg
	GLoad        float64 // acceleration in multiples of standard gravity
	Attached     Attachments
	Latches      Latches
	Orbit        OrbitElements
	Events       []Event     // separations fired during this tick
	Faults       []Fault     // numeric faults recovered during this tick
	Rejected     []Rejection // commands ignored during this tick
}

// clone returns a deep copy of the snapshot.
func (s Snapshot) clone() Snapshot {
	c := s
	if s.Events != nil {
		c.Events = make([]Event, len(s.Events))
		for i, ev := range s.Events {
			ev.Components = append([]Component(nil), ev.Components...)
			c.Events[i] = ev
		}
	}
	c.Faults = append([]Fault(nil), s.Faults...)
	c.Rejected = append([]Rejection(nil), s.Rejected...)
	return c
}

// String implements the Stringer interface.
func (s Snapshot) String() string {
	return fmt.Sprintf("t=%.2f s %s alt=%.1f km v=%.1f m/s fuel=%.1f%% m=%.0f kg", s.Time, s.StageLabel, s.Altitude/1e3, s.Speed, s.FuelPercent, s.Mass)
}

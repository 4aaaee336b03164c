package ascent

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Stage is a named phase of flight with its own thrust profile and transitions.
type Stage uint8

const (
	// Idle is the vehicle resting on the pad.
	Idle Stage = iota
	// Liftoff burns the main engines and the boosters.
	Liftoff
	// AtmosphericAscent burns the main engines once the boosters are gone.
	AtmosphericAscent
	// OrbitalInsertion burns the main engines at reduced throttle.
	OrbitalInsertion
	// OrbitalStabilization coasts until the acceleration settles.
	OrbitalStabilization
	// FreeMotion coasts on orbit.
	FreeMotion
	// OrbitalManeuvering fires the maneuvering engines.
	OrbitalManeuvering
)

var stageNames = [...]string{"idle", "liftoff", "atmospheric_ascent", "orbital_insertion", "orbital_stabilization", "free_motion", "orbital_maneuvering"}
var stageLabels = [...]string{"Idle", "Liftoff", "Atmospheric Ascent", "Orbital Insertion", "Orbital Stabilization", "Free Space Motion", "Orbital Maneuvering"}

// ErrUnknownStage is returned when a stage cannot be recognized.
var ErrUnknownStage = errors.New("unknown stage")

// Valid returns whether s is one of the seven flight stages.
func (s Stage) Valid() bool {
	return int(s) < len(stageNames)
}

// Name returns the machine label of the stage, e.g. "atmospheric_ascent".
func (s Stage) Name() string {
	if !s.Valid() {
		return fmt.Sprintf("stage_%d", uint8(s))
	}
	return stageNames[s]
}

// String implements the Stringer interface with the human label.
func (s Stage) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Unknown (%d)", uint8(s))
	}
	return stageLabels[s]
}

// burning returns whether the stage draws propellant from the tank.
func (s Stage) burning() bool {
	switch s {
	case Liftoff, AtmosphericAscent, OrbitalInsertion, OrbitalManeuvering:
		return true
	}
	return false
}

// ParseStage returns the stage from its machine label or human label.
func ParseStage(name string) (Stage, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i := range stageNames {
		if n == stageNames[i] || n == strings.ToLower(stageLabels[i]) {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStage, name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStage, uint8(s))
	}
	return []byte(s.Name()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Stage) UnmarshalText(text []byte) error {
	stage, err := ParseStage(string(text))
	if err != nil {
		return err
	}
	*s = stage
	return nil
}

// StageInputs are the quantities the transition table is evaluated against.
type StageInputs struct {
	Time             float64 // s since the start of the simulation
	Altitude         float64 // m
	Speed            float64 // m/s
	Acceleration2    float64 // squared acceleration norm
	ManeuverThrust2  float64 // squared thrust of the maneuvering engines as commanded
	LaunchCommanded  bool
	BoostersDetached bool
	TankDetached     bool
}

type transition struct {
	to   Stage
	when func(in StageInputs) bool
}

// StageMachine holds the single transition table of the flight.
type StageMachine struct {
	table map[Stage][]transition
}

// NewStageMachine builds the transition table from the configuration.
func NewStageMachine(cfg Config) StageMachine {
	orbit, sep, integ := cfg.Orbit, cfg.Separation, cfg.Integration
	atmosphereTop := cfg.Atmosphere.Height
	return StageMachine{table: map[Stage][]transition{
		Idle: {{Liftoff, func(in StageInputs) bool {
			return in.LaunchCommanded || (integ.AutoLaunchAfter > 0 && in.Time >= integ.AutoLaunchAfter)
		}}},
		Liftoff: {{AtmosphericAscent, func(in StageInputs) bool {
			return in.Altitude > sep.BoosterAltitude && in.BoostersDetached
		}}},
		AtmosphericAscent: {{OrbitalInsertion, func(in StageInputs) bool {
			return in.Altitude > atmosphereTop && in.TankDetached
		}}},
		OrbitalInsertion: {{OrbitalStabilization, func(in StageInputs) bool {
			return math.Abs(in.Altitude-orbit.Altitude) <= orbit.AltitudeBand &&
				math.Abs(in.Speed-orbit.Velocity) < orbit.VelocityTolerance
		}}},
		OrbitalStabilization: {{FreeMotion, func(in StageInputs) bool {
			return in.Acceleration2 < integ.AccelerationEpsilon && in.Speed > orbit.StabilizationRatio*orbit.Velocity
		}}},
		FreeMotion: {{OrbitalManeuvering, func(in StageInputs) bool {
			return in.ManeuverThrust2 > integ.ThrustEpsilon
		}}},
		OrbitalManeuvering: {{FreeMotion, func(in StageInputs) bool {
			return in.ManeuverThrust2 < integ.ThrustEpsilon
		}}},
	}}
}

// Next returns the stage following cur for these inputs. At most one
// transition is taken per evaluation.
func (m StageMachine) Next(cur Stage, in StageInputs) Stage {
	for _, t := range m.table[cur] {
		if t.when(in) {
			return t.to
		}
	}
	return cur
}

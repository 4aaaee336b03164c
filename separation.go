package ascent

import (
	"errors"
	"fmt"
	"strings"
)

// Component is a detachable part of the vehicle.
type Component uint8

const (
	// Tank is the external propellant tank.
	Tank Component = iota + 1
	// BoosterA is the first solid booster.
	BoosterA
	// BoosterB is the second solid booster.
	BoosterB
)

// ErrUnknownComponent is returned when a component cannot be recognized.
var ErrUnknownComponent = errors.New("unknown component")

func (c Component) String() string {
	switch c {
	case Tank:
		return "tank"
	case BoosterA:
		return "booster_a"
	case BoosterB:
		return "booster_b"
	}
	return fmt.Sprintf("component_%d", uint8(c))
}

// ParseComponent returns the component from its name. The model names of the
// visual layer ("fuelTank", "rocket1", "rocket2") are accepted as well.
func ParseComponent(name string) (Component, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "tank", "fueltank", "fuel_tank":
		return Tank, nil
	case "booster_a", "boostera", "rocket1":
		return BoosterA, nil
	case "booster_b", "boosterb", "rocket2":
		return BoosterB, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownComponent, name)
}

// EventKind distinguishes the separation events.
type EventKind uint8

const (
	// BoosterSeparation drops one or both boosters.
	BoosterSeparation EventKind = iota + 1
	// TankSeparation drops the external tank.
	TankSeparation
)

func (k EventKind) String() string {
	switch k {
	case BoosterSeparation:
		return "booster_separation"
	case TankSeparation:
		return "tank_separation"
	}
	return fmt.Sprintf("event_%d", uint8(k))
}

// Event is a one-time separation notification for the visual layer.
type Event struct {
	Kind       EventKind
	Components []Component
	Time       float64 // s
	Altitude   float64 // m
	Speed      float64 // m/s
	Commanded  bool    // true when requested by a detach command
}

func (e Event) String() string {
	names := make([]string, len(e.Components))
	for i, c := range e.Components {
		names[i] = c.String()
	}
	return fmt.Sprintf("%s [%s] at t=%.2f s (alt=%.0f m, v=%.1f m/s)", e.Kind, strings.Join(names, ","), e.Time, e.Altitude, e.Speed)
}

// Latches prevent each automatic separation from firing twice.
type Latches struct {
	BoostersDetached bool `json:"boostersDetached"`
	TankDetached     bool `json:"tankDetached"`
}

// SeparationInputs are the quantities the separation thresholds are checked against.
type SeparationInputs struct {
	Time        float64
	Altitude    float64
	Speed       float64
	FuelPercent float64
}

// Separator is a one-shot separation trigger.
type Separator interface {
	Cleared(Latches) bool // returns whether the separation already happened
	Ready(SeparationInputs, Attachments) bool
	Apply(*VehicleState) []Component
	Kind() EventKind
	String() string
}

// BoosterSeparator drops both boosters past a time and an altitude.
type BoosterSeparator struct {
	time, altitude float64
}

// String implements the Separator interface.
func (s BoosterSeparator) String() string {
	return fmt.Sprintf("booster separation after %.0f s above %.0f m", s.time, s.altitude)
}

// Kind implements the Separator interface.
func (s BoosterSeparator) Kind() EventKind { return BoosterSeparation }

// Cleared implements the Separator interface.
func (s BoosterSeparator) Cleared(l Latches) bool { return l.BoostersDetached }

// Ready implements the Separator interface.
func (s BoosterSeparator) Ready(in SeparationInputs, att Attachments) bool {
	return att.Boosters() && in.Time >= s.time && in.Altitude >= s.altitude
}

// Apply implements the Separator interface.
func (s BoosterSeparator) Apply(st *VehicleState) []Component {
	var dropped []Component
	if st.Attached.BoosterA {
		dropped = append(dropped, BoosterA)
	}
	if st.Attached.BoosterB {
		dropped = append(dropped, BoosterB)
	}
	st.Attached.BoosterA, st.Attached.BoosterB = false, false
	st.Latches.BoostersDetached = true
	return dropped
}

// TankSeparator drops the tank once nearly empty and close to orbital speed.
type TankSeparator struct {
	time, altitude, speed, fuel float64
}

// String implements the Separator interface.
func (s TankSeparator) String() string {
	return fmt.Sprintf("tank separation after %.0f s above %.0f m, faster than %.0f m/s, below %.1f%% fuel", s.time, s.altitude, s.speed, s.fuel)
}

// Kind implements the Separator interface.
func (s TankSeparator) Kind() EventKind { return TankSeparation }

// Cleared implements the Separator interface.
func (s TankSeparator) Cleared(l Latches) bool { return l.TankDetached }

// Ready implements the Separator interface.
func (s TankSeparator) Ready(in SeparationInputs, att Attachments) bool {
	return att.Tank && in.Time >= s.time && in.Altitude >= s.altitude && in.Speed >= s.speed && in.FuelPercent <= s.fuel
}

// Apply implements the Separator interface.
func (s TankSeparator) Apply(st *VehicleState) []Component {
	st.Attached.Tank = false
	st.FuelPercent = 0
	st.Latches.TankDetached = true
	return []Component{Tank}
}

// SeparationController evaluates the separators once per tick.
type SeparationController struct {
	separators []Separator
}

// NewSeparationController returns the booster and tank separators of this configuration.
func NewSeparationController(cfg Config) SeparationController {
	sep := cfg.Separation
	return SeparationController{separators: []Separator{
		BoosterSeparator{time: sep.BoosterTime, altitude: sep.BoosterAltitude},
		TankSeparator{time: sep.TankTime, altitude: sep.TankAltitude, speed: sep.TankSpeedRatio * cfg.Orbit.Velocity, fuel: sep.TankFuelPercent},
	}}
}

// Evaluate fires every separator whose thresholds are met and returns the events.
func (c SeparationController) Evaluate(st *VehicleState, in SeparationInputs) []Event {
	var events []Event
	for _, s := range c.separators {
		if s.Cleared(st.Latches) || !s.Ready(in, st.Attached) {
			continue
		}
		events = append(events, Event{
			Kind:       s.Kind(),
			Components: s.Apply(st),
			Time:       in.Time,
			Altitude:   in.Altitude,
			Speed:      in.Speed,
		})
	}
	return events
}

// Detach drops a single component on request. It returns false when the
// component is already gone. Dropping the tank empties it, and dropping the
// last booster latches the booster separation.
func (c SeparationController) Detach(st *VehicleState, comp Component, in SeparationInputs) (Event, bool) {
	ev := Event{Components: []Component{comp}, Time: in.Time, Altitude: in.Altitude, Speed: in.Speed, Commanded: true}
	switch comp {
	case Tank:
		if !st.Attached.Tank {
			return Event{}, false
		}
		ev.Kind = TankSeparation
		st.Attached.Tank = false
		st.FuelPercent = 0
		st.Latches.TankDetached = true
	case BoosterA, BoosterB:
		attached := &st.Attached.BoosterA
		if comp == BoosterB {
			attached = &st.Attached.BoosterB
		}
		if !*attached {
			return Event{}, false
		}
		ev.Kind = BoosterSeparation
		*attached = false
		if !st.Attached.Boosters() {
			st.Latches.BoostersDetached = true
		}
	default:
		return Event{}, false
	}
	return ev, true
}

package ascent

import "fmt"

// Command is queued with Submit and applied at the start of the next tick.
// The simulation applies LaunchCommand, SetStageCommand, DetachCommand and
// ManeuverCommand; any other command is rejected.
type Command interface {
	String() string
}

// LaunchCommand begins the ascent.
type LaunchCommand struct{}

func (c LaunchCommand) String() string { return "launch" }

// SetStageCommand forces the flight stage, bypassing the transition table.
type SetStageCommand struct {
	Stage Stage `json:"stage"`
}

func (c SetStageCommand) String() string { return fmt.Sprintf("set stage %s", c.Stage.Name()) }

// DetachCommand requests the separation of a single component by name.
type DetachCommand struct {
	Component string `json:"component"`
}

func (c DetachCommand) String() string { return fmt.Sprintf("detach %s", c.Component) }

// ManeuverCommand turns the maneuvering engines on or off.
type ManeuverCommand struct {
	On bool `json:"on"`
}

func (c ManeuverCommand) String() string {
	if c.On {
		return "maneuver engines on"
	}
	return "maneuver engines off"
}

// Rejection records a command which was ignored and why.
type Rejection struct {
	Command Command
	Reason  string
}

func (r Rejection) String() string {
	return fmt.Sprintf("%s rejected: %s", r.Command, r.Reason)
}

package ascent

import (
	"fmt"
	"math"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultLogger returns a logfmt logger on stdout tagged with the vehicle name.
func DefaultLogger(name string) log.Logger {
	klog := log.NewLogfmtLogger(log.NewSyncWriter(os.Stdout))
	return log.With(klog, "vehicle", name)
}

// Listener is notified with a copy of every snapshot.
type Listener func(Snapshot)

// Simulation owns the vehicle state and advances it one tick at a time.
// It is not safe for concurrent use: a single caller submits commands, steps
// and reads snapshots.
type Simulation struct {
	cfg        Config
	state      VehicleState
	forces     ForceModel
	integrator Integrator
	stages     StageMachine
	separation SeparationController
	queue      []Command
	listeners  []Listener
	logger     log.Logger
	tick       uint64
	last       Snapshot
	// Per tick.
	events   []Event
	faults   []Fault
	rejected []Rejection
}

// NewSimulation returns a simulation of the vehicle resting on the launch
// point. A nil logger discards all logs.
func NewSimulation(cfg Config, logger log.Logger) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	s := &Simulation{
		cfg:        cfg,
		state:      InitialState(cfg),
		forces:     NewForceModel(cfg),
		integrator: NewIntegrator(cfg),
		stages:     NewStageMachine(cfg),
		separation: NewSeparationController(cfg),
		logger:     logger,
	}
	s.last = s.snapshot(nil)
	level.Debug(s.logger).Log("subsys", "config", "body", cfg.Body, "vehicle", cfg.Vehicle.Name, "maxStep", cfg.Integration.MaxStep)
	return s, nil
}

// Config returns the configuration of this simulation.
func (s *Simulation) Config() Config {
	return s.cfg
}

// Submit queues a command for the next tick.
func (s *Simulation) Submit(cmd Command) {
	if cmd == nil {
		return
	}
	s.queue = append(s.queue, cmd)
}

// AddListener registers a function called after every tick.
func (s *Simulation) AddListener(l Listener) {
	if l != nil {
		s.listeners = append(s.listeners, l)
	}
}

// Snapshot returns the outcome of the last tick.
func (s *Simulation) Snapshot() Snapshot {
	return s.last.clone()
}

// State returns a copy of the vehicle state.
func (s *Simulation) State() VehicleState {
	return s.state
}

// Restore replaces the vehicle state after validating it. Queued commands
// are kept.
func (s *Simulation) Restore(st VehicleState) error {
	if err := st.Validate(); err != nil {
		return err
	}
	s.state = st
	s.last = s.snapshot(nil)
	level.Info(s.logger).Log("subsys", "astro", "restored", st.Stage.Name(), "t", st.Time)
	return nil
}

// Step advances the simulation by dt seconds, clamped to the maximum step,
// and returns the resulting snapshot. A non-positive dt changes nothing and
// keeps the queued commands for the next tick.
func (s *Simulation) Step(dt float64) Snapshot {
	step := s.integrator.Clamp(dt)
	if step == 0 {
		return s.Snapshot()
	}
	if dt > step {
		level.Debug(s.logger).Log("subsys", "astro", "clamped", dt, "step", step)
	}
	s.faults, s.rejected = nil, nil
	s.applyCommands()

	st := &s.state
	onFault := s.onFault
	if st.Stage == Idle && s.cfg.Body.Altitude(st.Position) < -surfaceε {
		st.Position = s.cfg.Body.Surface(st.Position)
		if st.Position == (r3.Vec{}) {
			st.Position = s.integrator.Launch
		}
		st.Velocity = r3.Vec{}
	}

	mass := s.cfg.Vehicle.TotalMass(st.Attached, st.FuelPercent, onFault)
	forces := s.forces.Compute(*st, mass, onFault)
	st.NetForce = forces.Net()
	k := s.integrator.Step(st.Kinematics(), st.NetForce, mass, step)
	st.setKinematics(s.integrator.Stabilize(k, st.Stage, onFault))

	if st.FuelPercent > 0 && st.Stage.burning() &&
		r3.Norm2(forces.Thrust) > s.cfg.Integration.ThrustEpsilon && r3.Dot(forces.Thrust, s.forces.Axis) > 0 {
		fuel := s.cfg.Vehicle.Burn(st.FuelPercent, s.cfg.Propulsion.BurnRate, step, onFault)
		if fuel == 0 && st.FuelPercent > 0 {
			level.Info(s.logger).Log("subsys", "prop", "fuel", "depleted", "t", st.Time+step)
		}
		st.FuelPercent = fuel
	}
	st.Time += step

	altitude := s.cfg.Body.Altitude(st.Position)
	speed := norm(st.Velocity)
	maneuver := s.cfg.Propulsion.ManeuverThrust(st.ManeuverEngines)
	next := s.stages.Next(st.Stage, StageInputs{
		Time:             st.Time,
		Altitude:         altitude,
		Speed:            speed,
		Acceleration2:    r3.Norm2(st.Acceleration),
		ManeuverThrust2:  maneuver * maneuver,
		LaunchCommanded:  st.LaunchCommanded,
		BoostersDetached: st.Latches.BoostersDetached,
		TankDetached:     st.Latches.TankDetached,
	})
	if next != st.Stage {
		level.Info(s.logger).Log("subsys", "stage", "from", st.Stage.Name(), "to", next.Name(), "t", st.Time, "alt", altitude, "v", speed)
		st.Stage = next
	}

	events := s.separation.Evaluate(st, SeparationInputs{Time: st.Time, Altitude: altitude, Speed: speed, FuelPercent: st.FuelPercent})
	for _, ev := range events {
		level.Info(s.logger).Log("subsys", "sep", "event", ev.Kind, "components", fmt.Sprint(ev.Components), "t", ev.Time, "alt", ev.Altitude, "v", ev.Speed)
	}
	s.events = append(s.events, events...)

	s.tick++
	s.last = s.snapshot(s.events)
	s.events = nil
	for _, l := range s.listeners {
		l(s.last.clone())
	}
	return s.last.clone()
}

// RunFor steps with dt until duration seconds of simulation time have
// elapsed and returns the last snapshot. A non-finite duration runs nothing,
// and the run stops early if a step no longer advances the clock.
func (s *Simulation) RunFor(duration, dt float64) Snapshot {
	if !(dt > 0) || !(duration > 0) || math.IsInf(duration, 1) {
		return s.Snapshot()
	}
	end := s.state.Time + duration
	for s.state.Time < end {
		before := s.state.Time
		s.Step(dt)
		if !(s.state.Time > before) {
			level.Warn(s.logger).Log("subsys", "astro", "stalled", s.state.Time, "dt", dt, "end", end)
			break
		}
	}
	return s.Snapshot()
}

// LogStatus logs the status of the vehicle.
func (s *Simulation) LogStatus() {
	snap := s.last
	level.Info(s.logger).Log("subsys", "astro", "t", snap.Time, "stage", snap.StageLabel, "alt(km)", snap.Altitude/1e3, "v(m/s)", snap.Speed, "fuel(%)", snap.FuelPercent, "mass(kg)", snap.Mass, "orbit", snap.Orbit)
}

func (s *Simulation) onFault(kind FaultKind, value float64) {
	s.faults = append(s.faults, Fault{Kind: kind, Value: value})
	level.Warn(s.logger).Log("subsys", kind.subsys(), "fault", kind, "value", value, "t", s.state.Time)
}

func (s *Simulation) reject(cmd Command, reason string) {
	s.rejected = append(s.rejected, Rejection{Command: cmd, Reason: reason})
	level.Warn(s.logger).Log("subsys", "cmd", "command", cmd, "rejected", reason)
}

func (s *Simulation) applyCommands() {
	queue := s.queue
	s.queue = nil
	st := &s.state
	for _, cmd := range queue {
		switch c := cmd.(type) {
		case LaunchCommand:
			if st.Stage != Idle {
				s.reject(cmd, "vehicle already launched")
				continue
			}
			st.LaunchCommanded = true
		case SetStageCommand:
			if !c.Stage.Valid() {
				s.reject(cmd, ErrUnknownStage.Error())
				continue
			}
			level.Info(s.logger).Log("subsys", "stage", "from", st.Stage.Name(), "to", c.Stage.Name(), "override", true)
			st.Stage = c.Stage
		case DetachCommand:
			comp, err := ParseComponent(c.Component)
			if err != nil {
				s.reject(cmd, err.Error())
				continue
			}
			altitude := s.cfg.Body.Altitude(st.Position)
			ev, ok := s.separation.Detach(st, comp, SeparationInputs{Time: st.Time, Altitude: altitude, Speed: norm(st.Velocity), FuelPercent: st.FuelPercent})
			if !ok {
				s.reject(cmd, fmt.Sprintf("%s already detached", comp))
				continue
			}
			level.Info(s.logger).Log("subsys", "sep", "event", ev.Kind, "components", comp, "t", ev.Time, "commanded", true)
			s.events = append(s.events, ev)
		case ManeuverCommand:
			st.ManeuverEngines = c.On
		default:
			s.reject(cmd, fmt.Sprintf("unsupported command %T", cmd))
		}
	}
}

// snapshot builds the snapshot of the current state.
func (s *Simulation) snapshot(events []Event) Snapshot {
	st := s.state
	return Snapshot{
		Tick:         s.tick,
		Time:         st.Time,
		Position:     st.Position,
		Velocity:     st.Velocity,
		Acceleration: st.Acceleration,
		NetForce:     st.NetForce,
		Altitude:     s.cfg.Body.Altitude(st.Position),
		Speed:        norm(st.Velocity),
		Stage:        st.Stage,
		StageLabel:   st.Stage.String(),
		FuelPercent:  st.FuelPercent,
		Mass:         s.cfg.Vehicle.TotalMass(st.Attached, st.FuelPercent, nil),
		GLoad:        norm(st.Acceleration) / s.cfg.Body.G0,
		Attached:     st.Attached,
		Latches:      st.Latches,
		Orbit:        OrbitOf(st.Position, st.Velocity, s.cfg.Body),
		Events:       events,
		Faults:       s.faults,
		Rejected:     s.rejected,
	}
}

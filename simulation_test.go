package ascent

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestNewSimulationInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Integration.MaxStep = 0
	if _, err := NewSimulation(cfg, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected a configuration error, got %v", err)
	}
}

func TestIdleStaysAtRest(t *testing.T) {
	sim := newTestSimulation(t, nil)
	start := sim.State().Position
	for i := 0; i < 6000; i++ {
		snap := sim.Step(1.0 / 60)
		if snap.Position != start || snap.Velocity != (r3.Vec{}) {
			t.Fatalf("tick %d: vehicle moved to %v at %v", i, snap.Position, snap.Velocity)
		}
		if snap.Stage != Idle || snap.Altitude != 0 || len(snap.Faults) != 0 {
			t.Fatalf("tick %d: %s with faults %v", i, snap, snap.Faults)
		}
	}
	if snap := sim.Snapshot(); snap.FuelPercent != 100 {
		t.Fatalf("idle vehicle burned fuel: %f%%", snap.FuelPercent)
	}
}

func TestIdleStaysAtRestOnTiltedAxis(t *testing.T) {
	sim := newTestSimulation(t, func(cfg *Config) {
		cfg.Integration.Axis = r3.Vec{X: 1, Y: 2, Z: 3}
	})
	start := sim.State().Position
	if alt := sim.Snapshot().Altitude; math.Abs(alt) > surfaceε {
		t.Fatalf("launch point %v is %g m off the surface", start, alt)
	}
	for i := 0; i < 600; i++ {
		snap := sim.Step(1.0 / 60)
		if snap.Position != start || snap.Velocity != (r3.Vec{}) || snap.Acceleration != (r3.Vec{}) {
			t.Fatalf("tick %d: vehicle moved to %v at %v", i, snap.Position, snap.Velocity)
		}
		if len(snap.Faults) != 0 {
			t.Fatalf("tick %d: faults %v", i, snap.Faults)
		}
	}
}

func TestAutoLaunch(t *testing.T) {
	sim := newTestSimulation(t, func(cfg *Config) {
		cfg.Integration.AutoLaunchAfter = 1
	})
	snap := sim.RunFor(0.5, 0.01)
	if snap.Stage != Idle {
		t.Fatalf("launched before the delay at t=%f", snap.Time)
	}
	if snap = sim.RunFor(1, 0.01); snap.Stage != Liftoff {
		t.Fatalf("not launched after the delay at t=%f", snap.Time)
	}
}

func TestLiftoffClimbs(t *testing.T) {
	sim := newTestSimulation(t, nil)
	sim.Submit(LaunchCommand{})
	snap := sim.Step(1.0 / 60)
	if snap.Stage != Liftoff {
		t.Fatalf("launch command ignored: %s", snap.StageLabel)
	}
	prev := snap.Altitude
	for i := 0; i < 60*60; i++ {
		snap = sim.Step(1.0 / 60)
		if snap.Stage != Liftoff {
			break
		}
		if snap.Altitude <= prev {
			t.Fatalf("t=%.3f: altitude %f did not increase from %f", snap.Time, snap.Altitude, prev)
		}
		prev = snap.Altitude
	}
	if snap.FuelPercent >= 100 {
		t.Fatal("no fuel burned during liftoff")
	}
}

func TestOversizedStepIsClamped(t *testing.T) {
	sim := newTestSimulation(t, nil)
	sim.Submit(LaunchCommand{})
	sim.RunFor(1, 1.0/60)
	before := sim.Snapshot()
	after := sim.Step(1000)
	maxStep := sim.Config().Integration.MaxStep
	if dt := after.Time - before.Time; !scalar.EqualWithinAbs(dt, maxStep, 1e-12) {
		t.Fatalf("simulation time advanced by %f s", dt)
	}
	// Even 10 g over one step cannot change the speed by more than this.
	if dv := r3.Norm(r3.Sub(after.Velocity, before.Velocity)); dv > 100*maxStep {
		t.Fatalf("velocity jumped by %f m/s", dv)
	}
	if dp := r3.Norm(r3.Sub(after.Position, before.Position)); dp > (after.Speed+1)*maxStep {
		t.Fatalf("position jumped by %f m", dp)
	}
}

func TestRunForNonFiniteDuration(t *testing.T) {
	sim := newTestSimulation(t, nil)
	for _, duration := range []float64{math.Inf(1), math.NaN(), -1} {
		if snap := sim.RunFor(duration, 0.01); snap.Tick != 0 || snap.Time != 0 {
			t.Fatalf("RunFor(%v) stepped to tick %d at t=%f", duration, snap.Tick, snap.Time)
		}
	}
}

func TestRunForStalledClock(t *testing.T) {
	sim := newTestSimulation(t, nil)
	st := sim.State()
	st.Time = 1e6
	if err := sim.Restore(st); err != nil {
		t.Fatal(err)
	}
	// 1e-11 s is below half an ulp of 1e6 s, so the clock cannot advance.
	snap := sim.RunFor(1, 1e-11)
	if snap.Tick != 1 || snap.Time != 1e6 {
		t.Fatalf("stalled run should stop after one tick, got tick %d at t=%f", snap.Tick, snap.Time)
	}
}

func TestZeroStepKeepsCommands(t *testing.T) {
	sim := newTestSimulation(t, nil)
	sim.Submit(LaunchCommand{})
	if snap := sim.Step(0); snap.Tick != 0 || snap.Stage != Idle {
		t.Fatalf("zero step ticked: %+v", snap)
	}
	if snap := sim.Step(-3); snap.Tick != 0 {
		t.Fatalf("negative step ticked: %+v", snap)
	}
	if snap := sim.Step(0.01); snap.Stage != Liftoff || snap.Tick != 1 {
		t.Fatalf("queued launch lost: %+v", snap)
	}
}

func TestFallbackMass(t *testing.T) {
	sim := newTestSimulation(t, func(cfg *Config) {
		cfg.Vehicle = Vehicle{Name: "ghost", FallbackMass: 1}
	})
	snap := sim.Step(0.01)
	if snap.Mass != 1 {
		t.Fatalf("mass reported as %f", snap.Mass)
	}
	found := false
	for _, f := range snap.Faults {
		if f.Kind == MassFault {
			found = true
		}
	}
	if !found {
		t.Fatalf("mass fault missing from %v", snap.Faults)
	}
}

func TestAscentScenario(t *testing.T) {
	sim := newTestSimulation(t, nil)
	var boosterEvents int
	sim.AddListener(func(s Snapshot) {
		if s.Mass <= 0 || s.FuelPercent < 0 || s.FuelPercent > 100 {
			t.Fatalf("t=%.3f: invariant broken mass=%f fuel=%f", s.Time, s.Mass, s.FuelPercent)
		}
		for _, ev := range s.Events {
			if ev.Kind == BoosterSeparation {
				boosterEvents++
				if s.Attached.BoosterA || s.Attached.BoosterB {
					t.Fatal("boosters still attached after their separation")
				}
			}
		}
	})
	sim.Submit(LaunchCommand{})
	snap := sim.RunFor(130, 1.0/60)
	if snap.Stage < AtmosphericAscent {
		t.Fatalf("stage %s after 130 s at %.0f m", snap.StageLabel, snap.Altitude)
	}
	if boosterEvents != 1 {
		t.Fatalf("%d booster separations", boosterEvents)
	}
	if len(snap.Faults) != 0 {
		t.Fatalf("faults during nominal ascent: %v", snap.Faults)
	}
}

func TestBoosterSeparationDropsMass(t *testing.T) {
	sim := newTestSimulation(t, nil)
	cfg := sim.Config()
	var before, at Snapshot
	sim.AddListener(func(s Snapshot) {
		if len(s.Events) > 0 && at.Tick == 0 {
			at = s
		}
		if at.Tick == 0 {
			before = s
		}
	})
	sim.Submit(LaunchCommand{})
	sim.RunFor(130, 1.0/60)
	if at.Tick == 0 {
		t.Fatal("boosters never separated")
	}
	withBoosters := cfg.Vehicle.TotalMass(Attachments{Tank: true, BoosterA: true, BoosterB: true}, at.FuelPercent, nil)
	if !scalar.EqualWithinAbs(withBoosters-at.Mass, cfg.Vehicle.BoosterAMass+cfg.Vehicle.BoosterBMass, 1e-6) {
		t.Fatalf("separation dropped %f kg", withBoosters-at.Mass)
	}
	if before.Mass-at.Mass < cfg.Vehicle.BoosterAMass+cfg.Vehicle.BoosterBMass {
		t.Fatalf("mass only dropped from %f to %f", before.Mass, at.Mass)
	}
}

func TestEmptyTankLiftoffThrust(t *testing.T) {
	sim := newTestSimulation(t, nil)
	st := sim.State()
	st.Stage = Liftoff
	st.FuelPercent = 0
	if err := sim.Restore(st); err != nil {
		t.Fatal(err)
	}
	cfg := sim.Config()
	f := sim.forces.Compute(sim.State(), cfg.Vehicle.TotalMass(st.Attached, 0, nil), nil)
	exp := cfg.Propulsion.BoosterAThrust + cfg.Propulsion.BoosterBThrust
	if f.Thrust != (r3.Vec{Y: exp}) {
		t.Fatalf("thrust %v, expected %f from the boosters only", f.Thrust, exp)
	}
	snap := sim.Step(1.0 / 60)
	if snap.FuelPercent != 0 {
		t.Fatalf("fuel went from 0 to %f", snap.FuelPercent)
	}
}

func TestDetachCommands(t *testing.T) {
	sim := newTestSimulation(t, nil)
	sim.Submit(DetachCommand{Component: "fuelTank"})
	sim.Submit(DetachCommand{Component: "wing"})
	snap := sim.Step(0.01)
	if snap.FuelPercent != 0 || snap.Attached.Tank || !snap.Latches.TankDetached {
		t.Fatalf("tank detach not applied: %+v", snap)
	}
	if len(snap.Events) != 1 || snap.Events[0].Kind != TankSeparation || !snap.Events[0].Commanded {
		t.Fatalf("expected one commanded tank separation, got %v", snap.Events)
	}
	if len(snap.Rejected) != 1 || snap.Rejected[0].Command != (DetachCommand{Component: "wing"}) {
		t.Fatalf("unknown component not rejected: %v", snap.Rejected)
	}

	sim.Submit(DetachCommand{Component: "tank"})
	snap = sim.Step(0.01)
	if len(snap.Events) != 0 || len(snap.Rejected) != 1 {
		t.Fatalf("tank detached twice: %v %v", snap.Events, snap.Rejected)
	}
}

type abortCommand struct{}

func (abortCommand) String() string { return "abort" }

func TestUnsupportedCommand(t *testing.T) {
	sim := newTestSimulation(t, nil)
	sim.Submit(abortCommand{})
	sim.Submit(nil)
	snap := sim.Step(0.01)
	if len(snap.Rejected) != 1 || snap.Rejected[0].Command != (abortCommand{}) {
		t.Fatalf("unsupported command not rejected: %v", snap.Rejected)
	}
	if snap.Stage != Idle || snap.Position != sim.Config().Body.Surface(sim.Config().Integration.Axis) {
		t.Fatalf("unsupported command changed the state: %s", snap)
	}
}

func TestSetStageCommand(t *testing.T) {
	sim := newTestSimulation(t, nil)
	sim.Submit(SetStageCommand{Stage: Stage(42)})
	snap := sim.Step(0.01)
	if snap.Stage != Idle || len(snap.Rejected) != 1 {
		t.Fatalf("invalid override applied: %s %v", snap.StageLabel, snap.Rejected)
	}
	fuel := snap.FuelPercent
	sim.Submit(SetStageCommand{Stage: AtmosphericAscent})
	snap = sim.Step(0.01)
	if snap.Stage != AtmosphericAscent || !snap.Attached.Boosters() {
		t.Fatalf("override not applied or reset state: %+v", snap)
	}
	if snap.FuelPercent >= fuel {
		t.Fatal("main engines did not burn after the override")
	}
}

func TestManeuvering(t *testing.T) {
	sim := newTestSimulation(t, nil)
	cfg := sim.Config()
	st := VehicleState{
		Position:    r3.Vec{Y: cfg.Body.Radius + cfg.Orbit.Altitude},
		Velocity:    r3.Vec{X: cfg.Body.CircularVelocity(cfg.Orbit.Altitude)},
		Stage:       FreeMotion,
		FuelPercent: 0,
		Latches:     Latches{BoostersDetached: true, TankDetached: true},
		Time:        600,
	}
	if err := sim.Restore(st); err != nil {
		t.Fatal(err)
	}
	if snap := sim.Step(1.0 / 60); snap.Stage != FreeMotion {
		t.Fatalf("coasting vehicle switched to %s", snap.StageLabel)
	}
	sim.Submit(ManeuverCommand{On: true})
	if snap := sim.Step(1.0 / 60); snap.Stage != OrbitalManeuvering {
		t.Fatalf("maneuver engines on, stage %s", snap.StageLabel)
	}
	sim.Submit(ManeuverCommand{On: false})
	if snap := sim.Step(1.0 / 60); snap.Stage != FreeMotion {
		t.Fatalf("maneuver engines off, stage %s", snap.StageLabel)
	}
	if snap := sim.Snapshot(); !scalar.EqualWithinAbs(snap.Orbit.Eccentricity, 0, 1e-3) {
		t.Fatalf("circular orbit eccentricity %f", snap.Orbit.Eccentricity)
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	original := newTestSimulation(t, nil)
	original.Submit(LaunchCommand{})
	original.RunFor(20, 1.0/60)

	data, err := MarshalState(original.State())
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := UnmarshalState(data)
	if err != nil {
		t.Fatal(err)
	}
	if decoded != original.State() {
		t.Fatalf("decoded state differs:\n%+v\n%+v", decoded, original.State())
	}
	resumed := newTestSimulation(t, nil)
	if err := resumed.Restore(decoded); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 600; i++ {
		a, b := original.Step(1.0/60), resumed.Step(1.0/60)
		if !vectorsEqual(a.Position, b.Position) || !vectorsEqual(a.Velocity, b.Velocity) || a.Stage != b.Stage || a.FuelPercent != b.FuelPercent {
			t.Fatalf("tick %d: trajectories diverged\n%s\n%s", i, a, b)
		}
	}
}

func TestRestoreInvalid(t *testing.T) {
	sim := newTestSimulation(t, nil)
	st := sim.State()
	st.FuelPercent = 120
	if err := sim.Restore(st); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected an invalid state error, got %v", err)
	}
	if sim.State().FuelPercent != 100 {
		t.Fatal("invalid state was applied")
	}
	if _, err := UnmarshalState([]byte(`{"stage":"warp"}`)); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("unknown stage decoded: %v", err)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	sim := newTestSimulation(t, nil)
	sim.Submit(DetachCommand{Component: "rocket1"})
	snap := sim.Step(0.01)
	snap.Events[0].Components[0] = Tank
	if again := sim.Snapshot(); again.Events[0].Components[0] != BoosterA {
		t.Fatal("snapshot shares its events with the simulation")
	}
}

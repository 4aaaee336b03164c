package ascent

import (
	"errors"
	"testing"
)

func TestParseComponent(t *testing.T) {
	tests := map[string]Component{
		"tank": Tank, "fuelTank": Tank, "booster_a": BoosterA, "rocket1": BoosterA, "Booster_B": BoosterB, "rocket2": BoosterB,
	}
	for name, exp := range tests {
		if got, err := ParseComponent(name); err != nil || got != exp {
			t.Errorf("ParseComponent(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseComponent("wing"); !errors.Is(err, ErrUnknownComponent) {
		t.Fatalf("unknown component gave %v", err)
	}
}

func TestBoosterSeparation(t *testing.T) {
	cfg := DefaultConfig()
	c := NewSeparationController(cfg)
	st := InitialState(cfg)

	if evs := c.Evaluate(&st, SeparationInputs{Time: 119, Altitude: 60000}); len(evs) != 0 {
		t.Fatalf("boosters separated too early: %v", evs)
	}
	if evs := c.Evaluate(&st, SeparationInputs{Time: 130, Altitude: 40000}); len(evs) != 0 {
		t.Fatalf("boosters separated too low: %v", evs)
	}
	evs := c.Evaluate(&st, SeparationInputs{Time: 120, Altitude: 45000})
	if len(evs) != 1 || evs[0].Kind != BoosterSeparation || len(evs[0].Components) != 2 || evs[0].Commanded {
		t.Fatalf("expected one booster separation of both boosters, got %v", evs)
	}
	if st.Attached.Boosters() || !st.Latches.BoostersDetached || !st.Attached.Tank {
		t.Fatalf("invalid state after separation: %+v %+v", st.Attached, st.Latches)
	}
	if evs := c.Evaluate(&st, SeparationInputs{Time: 200, Altitude: 70000}); len(evs) != 0 {
		t.Fatalf("booster separation fired twice: %v", evs)
	}
}

func TestTankSeparation(t *testing.T) {
	cfg := DefaultConfig()
	c := NewSeparationController(cfg)
	st := InitialState(cfg)
	st.Attached.BoosterA, st.Attached.BoosterB = false, false
	st.Latches.BoostersDetached = true
	st.FuelPercent = 3

	ready := SeparationInputs{Time: 510, Altitude: 110000, Speed: 0.95 * cfg.Orbit.Velocity, FuelPercent: 3}
	notReady := []SeparationInputs{
		{Time: 509, Altitude: 110000, Speed: 8000, FuelPercent: 3},
		{Time: 600, Altitude: 100000, Speed: 8000, FuelPercent: 3},
		{Time: 600, Altitude: 150000, Speed: 7000, FuelPercent: 3},
		{Time: 600, Altitude: 150000, Speed: 8000, FuelPercent: 6},
	}
	for _, in := range notReady {
		if evs := c.Evaluate(&st, in); len(evs) != 0 {
			t.Fatalf("tank separated with %+v", in)
		}
	}
	evs := c.Evaluate(&st, ready)
	if len(evs) != 1 || evs[0].Kind != TankSeparation {
		t.Fatalf("expected a tank separation, got %v", evs)
	}
	if st.FuelPercent != 0 || st.Attached.Tank || !st.Latches.TankDetached {
		t.Fatalf("invalid state after tank separation: %+v", st)
	}
	if evs := c.Evaluate(&st, ready); len(evs) != 0 {
		t.Fatalf("tank separation fired twice: %v", evs)
	}
}

func TestDetach(t *testing.T) {
	cfg := DefaultConfig()
	c := NewSeparationController(cfg)
	st := InitialState(cfg)

	ev, ok := c.Detach(&st, BoosterA, SeparationInputs{Time: 12})
	if !ok || ev.Kind != BoosterSeparation || !ev.Commanded || ev.Time != 12 {
		t.Fatalf("booster A detach: %v %v", ev, ok)
	}
	if st.Latches.BoostersDetached {
		t.Fatal("boosters latched with booster B still attached")
	}
	if _, ok := c.Detach(&st, BoosterA, SeparationInputs{}); ok {
		t.Fatal("booster A detached twice")
	}
	if _, ok := c.Detach(&st, BoosterB, SeparationInputs{}); !ok || !st.Latches.BoostersDetached {
		t.Fatal("detaching the last booster should latch the booster separation")
	}
	if _, ok := c.Detach(&st, Tank, SeparationInputs{}); !ok || st.FuelPercent != 0 || !st.Latches.TankDetached {
		t.Fatalf("tank detach: %+v", st)
	}
	if _, ok := c.Detach(&st, Component(9), SeparationInputs{}); ok {
		t.Fatal("unknown component detached")
	}
	if err := st.Validate(); err != nil {
		t.Fatalf("state invalid after manual detachment: %s", err)
	}
}

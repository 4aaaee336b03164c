package ascent

import (
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"
)

func assertPanic(t *testing.T, f func()) {
	t.Helper()
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("code did not panic")
		}
	}()
	f()
}

func vectorsEqual(a, b r3.Vec) bool {
	return scalar.EqualWithinAbsOrRel(a.X, b.X, 1e-9, 1e-9) &&
		scalar.EqualWithinAbsOrRel(a.Y, b.Y, 1e-9, 1e-9) &&
		scalar.EqualWithinAbsOrRel(a.Z, b.Z, 1e-9, 1e-9)
}

// faultRecorder collects the faults reported to it.
type faultRecorder []Fault

func (r *faultRecorder) report(kind FaultKind, value float64) {
	*r = append(*r, Fault{Kind: kind, Value: value})
}

func (r faultRecorder) has(kind FaultKind) bool {
	for _, f := range r {
		if f.Kind == kind {
			return true
		}
	}
	return false
}

// newTestSimulation returns a default simulation without auto launch.
func newTestSimulation(t *testing.T, mutate func(*Config)) *Simulation {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Integration.AutoLaunchAfter = 0
	if mutate != nil {
		mutate(&cfg)
	}
	sim, err := NewSimulation(cfg, nil)
	if err != nil {
		t.Fatalf("NewSimulation: %s", err)
	}
	return sim
}

package ascent

import "math"

// Atmosphere is an exponential density model which vanishes above Height.
type Atmosphere struct {
	Height          float64 // m
	SeaLevelDensity float64 // kg/m³
	DecayRate       float64 // 1/m, the inverse of the scale height
}

// Density returns the air density at the given altitude.
// Negative altitudes are treated as sea level. A non-finite result is
// reported as a DensityFault and replaced by zero.
func (a Atmosphere) Density(altitude float64, onFault FaultFunc) float64 {
	if altitude < 0 {
		altitude = 0
	}
	if altitude > a.Height {
		return 0
	}
	ρ := a.SeaLevelDensity * math.Exp(-altitude*a.DecayRate)
	if !finite(ρ) || ρ < 0 {
		onFault.report(DensityFault, ρ)
		return 0
	}
	return ρ
}

// Contains returns whether the altitude is strictly inside the atmosphere.
func (a Atmosphere) Contains(altitude float64) bool {
	return altitude > 0 && altitude < a.Height
}

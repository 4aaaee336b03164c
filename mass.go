package ascent

import "math"

// Attachments tracks which detachable components are still on the vehicle.
// Each flag only ever goes from true to false.
type Attachments struct {
	Tank     bool `json:"tank"`
	BoosterA bool `json:"boosterA"`
	BoosterB bool `json:"boosterB"`
}

// Boosters returns whether any booster is still attached.
func (a Attachments) Boosters() bool {
	return a.BoosterA || a.BoosterB
}

// Vehicle defines the mass breakdown of the launch vehicle.
type Vehicle struct {
	Name         string
	DryMass      float64 // kg, orbiter without tank nor boosters
	TankMass     float64 // kg, tank at full propellant load
	BoosterAMass float64 // kg
	BoosterBMass float64 // kg
	FallbackMass float64 // kg, returned instead of a non-positive or non-finite mass
}

// PropellantMass returns the mass remaining in the tank for the given fuel level.
func (v Vehicle) PropellantMass(fuelPercent float64) float64 {
	return v.TankMass * fuelPercent / 100
}

// TotalMass returns the instantaneous mass of the vehicle.
// Whenever the sum is not finite or not positive, a MassFault is reported and
// FallbackMass is returned instead.
func (v Vehicle) TotalMass(att Attachments, fuelPercent float64, onFault FaultFunc) float64 {
	mass := v.DryMass
	if att.Tank {
		mass += v.PropellantMass(fuelPercent)
	}
	if att.BoosterA {
		mass += v.BoosterAMass
	}
	if att.BoosterB {
		mass += v.BoosterBMass
	}
	if !finite(mass) || mass <= 0 {
		onFault.report(MassFault, mass)
		return v.fallback()
	}
	return mass
}

func (v Vehicle) fallback() float64 {
	if v.FallbackMass > 0 && finite(v.FallbackMass) {
		return v.FallbackMass
	}
	return 1
}

// Burn returns the fuel level left after burning at rate (kg/s) during dt.
// The burn is capped to the propellant left so the tank never goes negative.
func (v Vehicle) Burn(fuelPercent, rate, dt float64, onFault FaultFunc) float64 {
	if v.TankMass <= 0 || fuelPercent <= 0 {
		return fuelPercent
	}
	consumed := math.Min(rate*dt, v.PropellantMass(fuelPercent))
	fuel := fuelPercent - consumed/v.TankMass*100
	if !finite(fuel) {
		onFault.report(FuelFault, fuel)
		return 0
	}
	return clamp(fuel, 0, 100)
}

package ascent

// Propulsion defines the engines of the vehicle.
type Propulsion struct {
	MainEngineThrust  float64 // N, all main engines together
	BoosterAThrust    float64 // N
	BoosterBThrust    float64 // N
	BurnRate          float64 // kg/s drawn from the tank by the main engines
	InsertionThrottle float64 // main engine fraction during orbital insertion
	ManeuverThrottle  float64 // main engine fraction of the maneuvering engines
}

// Thrust returns the thrust magnitude for the given stage.
//
//	idle                   0
//	liftoff                main (if fuel) + each attached booster
//	atmospheric ascent     main (if fuel)
//	orbital insertion      main × InsertionThrottle (if fuel)
//	orbital stabilization  0
//	free motion            0
//	orbital maneuvering    main × ManeuverThrottle
func (p Propulsion) Thrust(stage Stage, att Attachments, fuelPercent float64) float64 {
	var thrust float64
	fueled := fuelPercent > 0
	switch stage {
	case Liftoff:
		if fueled {
			thrust += p.MainEngineThrust
		}
		if att.BoosterA {
			thrust += p.BoosterAThrust
		}
		if att.BoosterB {
			thrust += p.BoosterBThrust
		}
	case AtmosphericAscent:
		if fueled {
			thrust += p.MainEngineThrust
		}
	case OrbitalInsertion:
		if fueled {
			thrust += p.MainEngineThrust * p.InsertionThrottle
		}
	case OrbitalManeuvering:
		thrust += p.MainEngineThrust * p.ManeuverThrottle
	}
	return thrust
}

// ManeuverThrust returns the thrust of the maneuvering engines when on.
func (p Propulsion) ManeuverThrust(on bool) float64 {
	if !on {
		return 0
	}
	return p.MainEngineThrust * p.ManeuverThrottle
}

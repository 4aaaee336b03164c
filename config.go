package ascent

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrInvalidConfig is wrapped by every configuration error.
var ErrInvalidConfig = errors.New("invalid configuration")

// Aero defines the drag properties of the vehicle.
type Aero struct {
	DragCoefficient float64
	Area            float64 // m², cross section during ascent
}

// OrbitTarget defines the low orbit the ascent aims for.
type OrbitTarget struct {
	Altitude           float64 // m
	Velocity           float64 // m/s
	VelocityTolerance  float64 // m/s
	AltitudeBand       float64 // m, half width around Altitude accepted for insertion
	StabilizationRatio float64 // fraction of Velocity to exceed before free motion
}

// Separation defines the thresholds of the detachment events.
type Separation struct {
	BoosterTime     float64 // s
	BoosterAltitude float64 // m
	TankTime        float64 // s
	TankAltitude    float64 // m
	TankFuelPercent float64 // maximum fuel left in the tank, %
	TankSpeedRatio  float64 // fraction of the target orbital velocity to reach
}

// Integration defines the knobs of the integrator and of the stability guards.
type Integration struct {
	MaxStep             float64 // s, stability ceiling of a single step
	GroundTolerance     float64 // m, penetration allowed before snapping back
	ThrustEpsilon       float64 // N², below which thrust is negligible
	AccelerationEpsilon float64 // (m/s²)², below which acceleration is settled
	AutoLaunchAfter     float64 // s, zero disables the automatic liftoff
	Axis                r3.Vec  // ascent axis, body-centered; the pad is on it
}

// Config is the canonical configuration of a simulation.
type Config struct {
	Body        Body
	Atmosphere  Atmosphere
	Vehicle     Vehicle
	Aero        Aero
	Propulsion  Propulsion
	Orbit       OrbitTarget
	Separation  Separation
	Integration Integration
}

// DefaultConfig returns the Earth launch of a shuttle-like vehicle.
func DefaultConfig() Config {
	return Config{
		Body:       Earth,
		Atmosphere: Atmosphere{Height: 100000, SeaLevelDensity: 1.225, DecayRate: 1 / 8500.},
		Vehicle: Vehicle{
			Name:         "shuttle",
			DryMass:      110000,
			TankMass:     760000,
			BoosterAMass: 590000,
			BoosterBMass: 590000,
			FallbackMass: 1,
		},
		Aero: Aero{DragCoefficient: 0.2, Area: 200},
		Propulsion: Propulsion{
			MainEngineThrust:  3 * 1.75e6,
			BoosterAThrust:    14.7e6,
			BoosterBThrust:    14.7e6,
			BurnRate:          460,
			InsertionThrottle: 0.5,
			ManeuverThrottle:  0.001,
		},
		Orbit: OrbitTarget{
			Altitude:           200000,
			Velocity:           7800,
			VelocityTolerance:  50,
			AltitudeBand:       10000,
			StabilizationRatio: 0.9,
		},
		Separation: Separation{
			BoosterTime:     120,
			BoosterAltitude: 45000,
			TankTime:        510,
			TankAltitude:    110000,
			TankFuelPercent: 5,
			TankSpeedRatio:  0.95,
		},
		Integration: Integration{
			MaxStep:             0.0266,
			GroundTolerance:     1,
			ThrustEpsilon:       0.1,
			AccelerationEpsilon: 0.1,
			AutoLaunchAfter:     30,
			Axis:                r3.Vec{Y: 1},
		},
	}
}

// Validate returns an error wrapping ErrInvalidConfig listing every problem.
func (c Config) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}
	nonNeg := func(name string, v float64) {
		check(finite(v) && v >= 0, "%s must be finite and non-negative (got %v)", name, v)
	}
	positive := func(name string, v float64) {
		check(finite(v) && v > 0, "%s must be finite and positive (got %v)", name, v)
	}
	fraction := func(name string, v float64) {
		check(finite(v) && v >= 0 && v <= 1, "%s must be within [0, 1] (got %v)", name, v)
	}

	positive("body.radius", c.Body.Radius)
	positive("body.mass", c.Body.Mass)
	positive("body.gravitational_constant", c.Body.G)
	positive("body.standard_gravity", c.Body.G0)

	nonNeg("atmosphere.height", c.Atmosphere.Height)
	nonNeg("atmosphere.sea_level_density", c.Atmosphere.SeaLevelDensity)
	nonNeg("atmosphere.decay_rate", c.Atmosphere.DecayRate)

	nonNeg("vehicle.dry_mass", c.Vehicle.DryMass)
	nonNeg("vehicle.tank_mass", c.Vehicle.TankMass)
	nonNeg("vehicle.booster_a_mass", c.Vehicle.BoosterAMass)
	nonNeg("vehicle.booster_b_mass", c.Vehicle.BoosterBMass)
	positive("vehicle.fallback_mass", c.Vehicle.FallbackMass)
	nonNeg("vehicle.drag_coefficient", c.Aero.DragCoefficient)
	nonNeg("vehicle.cross_section", c.Aero.Area)

	nonNeg("propulsion.main_thrust", c.Propulsion.MainEngineThrust)
	nonNeg("propulsion.booster_a_thrust", c.Propulsion.BoosterAThrust)
	nonNeg("propulsion.booster_b_thrust", c.Propulsion.BoosterBThrust)
	nonNeg("propulsion.burn_rate", c.Propulsion.BurnRate)
	fraction("propulsion.insertion_throttle", c.Propulsion.InsertionThrottle)
	fraction("propulsion.maneuver_throttle", c.Propulsion.ManeuverThrottle)

	nonNeg("orbit.altitude", c.Orbit.Altitude)
	positive("orbit.velocity", c.Orbit.Velocity)
	nonNeg("orbit.velocity_tolerance", c.Orbit.VelocityTolerance)
	nonNeg("orbit.altitude_band", c.Orbit.AltitudeBand)
	fraction("orbit.stabilization_ratio", c.Orbit.StabilizationRatio)

	nonNeg("separation.booster_time", c.Separation.BoosterTime)
	nonNeg("separation.booster_altitude", c.Separation.BoosterAltitude)
	nonNeg("separation.tank_time", c.Separation.TankTime)
	nonNeg("separation.tank_altitude", c.Separation.TankAltitude)
	check(finite(c.Separation.TankFuelPercent) && c.Separation.TankFuelPercent >= 0 && c.Separation.TankFuelPercent <= 100,
		"separation.tank_fuel_percent must be within [0, 100] (got %v)", c.Separation.TankFuelPercent)
	nonNeg("separation.tank_speed_ratio", c.Separation.TankSpeedRatio)

	positive("integration.max_step", c.Integration.MaxStep)
	nonNeg("integration.ground_tolerance", c.Integration.GroundTolerance)
	nonNeg("integration.thrust_epsilon", c.Integration.ThrustEpsilon)
	nonNeg("integration.acceleration_epsilon", c.Integration.AccelerationEpsilon)
	nonNeg("integration.auto_launch_after", c.Integration.AutoLaunchAfter)
	check(finiteVec(c.Integration.Axis) && norm(c.Integration.Axis) > zeroε, "integration.axis must be a finite non-zero vector (got %v)", c.Integration.Axis)

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// LoadConfig reads a TOML (or any viper supported) scenario file on top of
// DefaultConfig. Only the keys present in the file override the defaults.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return configFromViper(v)
}

// ConfigFromEnv loads the scenario pointed to by the ASCENT_CONFIG
// environment variable, or returns DefaultConfig when it is unset.
func ConfigFromEnv() (Config, error) {
	path := os.Getenv("ASCENT_CONFIG")
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}

func configFromViper(v *viper.Viper) (Config, error) {
	c := DefaultConfig()
	setFloat := func(key string, dst *float64) {
		if v.IsSet(key) {
			*dst = v.GetFloat64(key)
		}
	}
	setString := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	setString("body.name", &c.Body.Name)
	setFloat("body.radius", &c.Body.Radius)
	setFloat("body.mass", &c.Body.Mass)
	setFloat("body.gravitational_constant", &c.Body.G)
	setFloat("body.standard_gravity", &c.Body.G0)

	setFloat("atmosphere.height", &c.Atmosphere.Height)
	setFloat("atmosphere.sea_level_density", &c.Atmosphere.SeaLevelDensity)
	setFloat("atmosphere.decay_rate", &c.Atmosphere.DecayRate)
	if v.IsSet("atmosphere.scale_height") {
		h := v.GetFloat64("atmosphere.scale_height")
		if !finite(h) || h <= 0 {
			return Config{}, fmt.Errorf("%w: atmosphere.scale_height must be positive (got %v)", ErrInvalidConfig, h)
		}
		c.Atmosphere.DecayRate = 1 / h
	}

	setString("vehicle.name", &c.Vehicle.Name)
	setFloat("vehicle.dry_mass", &c.Vehicle.DryMass)
	setFloat("vehicle.tank_mass", &c.Vehicle.TankMass)
	setFloat("vehicle.booster_a_mass", &c.Vehicle.BoosterAMass)
	setFloat("vehicle.booster_b_mass", &c.Vehicle.BoosterBMass)
	setFloat("vehicle.fallback_mass", &c.Vehicle.FallbackMass)
	setFloat("vehicle.drag_coefficient", &c.Aero.DragCoefficient)
	setFloat("vehicle.cross_section", &c.Aero.Area)

	setFloat("propulsion.main_thrust", &c.Propulsion.MainEngineThrust)
	setFloat("propulsion.booster_a_thrust", &c.Propulsion.BoosterAThrust)
	setFloat("propulsion.booster_b_thrust", &c.Propulsion.BoosterBThrust)
	setFloat("propulsion.burn_rate", &c.Propulsion.BurnRate)
	setFloat("propulsion.insertion_throttle", &c.Propulsion.InsertionThrottle)
	setFloat("propulsion.maneuver_throttle", &c.Propulsion.ManeuverThrottle)

	setFloat("orbit.altitude", &c.Orbit.Altitude)
	setFloat("orbit.velocity", &c.Orbit.Velocity)
	setFloat("orbit.velocity_tolerance", &c.Orbit.VelocityTolerance)
	setFloat("orbit.altitude_band", &c.Orbit.AltitudeBand)
	setFloat("orbit.stabilization_ratio", &c.Orbit.StabilizationRatio)

	setFloat("separation.booster_time", &c.Separation.BoosterTime)
	setFloat("separation.booster_altitude", &c.Separation.BoosterAltitude)
	setFloat("separation.tank_time", &c.Separation.TankTime)
	setFloat("separation.tank_altitude", &c.Separation.TankAltitude)
	setFloat("separation.tank_fuel_percent", &c.Separation.TankFuelPercent)
	setFloat("separation.tank_speed_ratio", &c.Separation.TankSpeedRatio)

	setFloat("integration.max_step", &c.Integration.MaxStep)
	setFloat("integration.ground_tolerance", &c.Integration.GroundTolerance)
	setFloat("integration.thrust_epsilon", &c.Integration.ThrustEpsilon)
	setFloat("integration.acceleration_epsilon", &c.Integration.AccelerationEpsilon)
	setFloat("integration.auto_launch_after", &c.Integration.AutoLaunchAfter)
	setFloat("integration.axis_x", &c.Integration.Axis.X)
	setFloat("integration.axis_y", &c.Integration.Axis.Y)
	setFloat("integration.axis_z", &c.Integration.Axis.Z)

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

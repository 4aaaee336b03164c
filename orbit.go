package ascent

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"
)

const eccentricityε = 5e-5

// OrbitElements are the osculating elements of the vehicle around the body.
type OrbitElements struct {
	Energy            float64 // specific mechanical energy ξ, J/kg
	SemiMajorAxis     float64 // m, zero when escaping
	Eccentricity      float64
	Inclination       float64 // rad, relative to the body Z axis
	PeriapsisAltitude float64 // m
	ApoapsisAltitude  float64 // m, zero when escaping
	Escape            bool    // true on a parabolic or hyperbolic trajectory
}

// Circular returns whether the orbit is circular within tolerance.
func (o OrbitElements) Circular() bool {
	return !o.Escape && o.Eccentricity < eccentricityε
}

// String implements the Stringer interface.
func (o OrbitElements) String() string {
	if o.Escape {
		return fmt.Sprintf("escape e=%.4f rP=%.0f m", o.Eccentricity, o.PeriapsisAltitude)
	}
	return fmt.Sprintf("a=%.0f m e=%.4f i=%.2f° rP=%.0f m rA=%.0f m", o.SemiMajorAxis, o.Eccentricity, o.Inclination*180/math.Pi, o.PeriapsisAltitude, o.ApoapsisAltitude)
}

// OrbitOf returns the orbital elements from the body-centered position and
// velocity (cf. Vallado's RV2COE). A degenerate position returns zero elements.
func OrbitOf(R, V r3.Vec, body Body) OrbitElements {
	r := norm(R)
	μ := body.GM()
	if !finite(r) || r < 1 || !finiteVec(V) || μ <= 0 {
		return OrbitElements{}
	}
	v := norm(V)
	hVec := r3.Cross(R, V)
	h := norm(hVec)
	ξ := (v*v)/2 - μ/r
	eVec := r3.Scale(1/μ, r3.Sub(r3.Scale(v*v-μ/r, R), r3.Scale(r3.Dot(R, V), V)))
	e := norm(eVec)
	if abse := math.Abs(e - 1); abse < 1e-12 {
		// Rounding on purely radial trajectories.
		e = 1
	}

	var o OrbitElements
	o.Energy = ξ
	o.Eccentricity = e
	if h > 0 {
		cosi := hVec.Z / h
		if math.Abs(cosi) > 1 && scalar.EqualWithinAbs(math.Abs(cosi), 1, 1e-12) {
			cosi = math.Copysign(1, cosi)
		}
		o.Inclination = math.Acos(cosi)
	}
	p := h * h / μ
	o.PeriapsisAltitude = p/(1+e) - body.Radius
	if ξ >= 0 || e >= 1 {
		o.Escape = ξ >= 0
		if o.Escape {
			return o
		}
	}
	o.SemiMajorAxis = -μ / (2 * ξ)
	o.ApoapsisAltitude = o.SemiMajorAxis*(1+e) - body.Radius
	if e >= 1 {
		// Radial fall: the periapsis is the center of the body.
		o.PeriapsisAltitude = -body.Radius
	}
	return o
}

// Radii2ae returns the semi major axis and the eccentricty from the radii.
func Radii2ae(rA, rP float64) (a, e float64) {
	if rA < rP {
		panic("periapsis cannot be greater than apoapsis")
	}
	a = (rP + rA) / 2
	e = (rA - rP) / (rA + rP)
	return
}

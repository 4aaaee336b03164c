package ascent

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Body defines the central body the vehicle launches from.
// Positions are measured from its center; it does not rotate.
type Body struct {
	Name   string
	Radius float64 // m
	Mass   float64 // kg
	G      float64 // gravitational constant, m³/kg/s²
	G0     float64 // standard gravity, m/s²
}

// GM returns μ of this body.
func (b Body) GM() float64 {
	return b.G * b.Mass
}

// Altitude returns the height of p above the surface.
func (b Body) Altitude(p r3.Vec) float64 {
	return norm(p) - b.Radius
}

// Surface returns the surface point in the direction of axis.
func (b Body) Surface(axis r3.Vec) r3.Vec {
	return r3.Scale(b.Radius, unit(axis))
}

// CircularVelocity returns the circular orbit speed at the given altitude.
func (b Body) CircularVelocity(altitude float64) float64 {
	return math.Sqrt(b.GM() / (b.Radius + altitude))
}

// String implements the Stringer interface.
func (b Body) String() string {
	return fmt.Sprintf("%s body (R=%.0f m)", b.Name, b.Radius)
}

// Earth is the default launch body.
var Earth = Body{Name: "Earth", Radius: 6371000, Mass: 5.972e24, G: 6.67430e-11, G0: 9.81}

package ascent

import (
	"math"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	zeroε    = 1e-12
	surfaceε = 1e-6 // m, rounding of the surface point off the main axes
)

// finite returns whether v is neither NaN nor infinite.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// finiteVec returns whether every component of v is finite.
func finiteVec(v r3.Vec) bool {
	return finite(v.X) && finite(v.Y) && finite(v.Z)
}

// norm returns the norm of a given vector.
func norm(v r3.Vec) float64 {
	return r3.Norm(v)
}

// unit returns the unit vector of a given vector.
// The zero vector (and any non-finite vector) maps to the zero vector.
func unit(v r3.Vec) r3.Vec {
	n := norm(v)
	if !finite(n) || scalar.EqualWithinAbs(n, 0, zeroε) {
		return r3.Vec{}
	}
	return r3.Scale(1/n, v)
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// radial splits v into its component along the unit vector u and returns it.
func radial(v, u r3.Vec) float64 {
	return r3.Dot(v, u)
}

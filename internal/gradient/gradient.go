// Package gradient produces the per-light color paths that the controller
// interpolates along. Coordinates live in the CIE 1931 xy chromaticity plane.
package gradient

import (
	"github.com/rotisserie/eris"

	"github.com/cybre/spectrum-lights/internal/utils"
)

// ErrInvalidGradient is returned when a gradient leaves the color space or collapses to a point.
var ErrInvalidGradient = eris.New("invalid gradient")

// Sector bounds. A "high" coordinate is drawn from [0.6, 0.8] for x and [0.4, 0.6] for y,
// a "low" one from [0.2, 0.4] for x and [0.0, 0.2] for y.
var (
	xHigh = Range{Start: 0.6, End: 0.8}
	xLow  = Range{Start: 0.2, End: 0.4}
	yHigh = Range{Start: 0.4, End: 0.6}
	yLow  = Range{Start: 0.0, End: 0.2}
)

// Random is the subset of *rand.Rand the generator needs.
type Random interface {
	Float64() float64
}

// Point is a color in xy chromaticity coordinates.
type Point struct {
	X float64
	Y float64
}

// Range is a (start, end) pair along one axis.
type Range struct {
	Start float64
	End   float64
}

// At returns the value at fraction t of the way from Start to End.
func (r Range) At(t float64) float64 {
	return utils.Lerp(r.Start, r.End, t)
}

// Span returns the absolute length of the range.
func (r Range) Span() float64 {
	if r.End > r.Start {
		return r.End - r.Start
	}
	return r.Start - r.End
}

// Gradient is the path a single light travels as its interpolation fraction moves from 0 to 1.
type Gradient struct {
	X Range
	Y Range
}

// At interpolates both axes at fraction t.
func (g Gradient) At(t float64) Point {
	return Point{X: g.X.At(t), Y: g.Y.At(t)}
}

// Descending reports whether the path runs from the upper right toward the lower left.
func (g Gradient) Descending() bool {
	return g.X.Start > g.X.End
}

// Validate checks that every endpoint is inside the unit square and that neither axis is degenerate.
func (g Gradient) Validate() error {
	for _, v := range []float64{g.X.Start, g.X.End, g.Y.Start, g.Y.End} {
		if v < 0 || v > 1 {
			return eris.Wrapf(ErrInvalidGradient, "coordinate %.3f outside [0,1]", v)
		}
	}
	if g.X.Span() == 0 || g.Y.Span() == 0 {
		return eris.Wrap(ErrInvalidGradient, "zero-length range")
	}
	return nil
}

// Generate draws a fresh gradient for each of numLights lights.
//
// A fair coin picks the direction for each light. Either both axes start high and
// end low, or both start low and end high, so every light sweeps across a distinct
// diagonal of the color space instead of hovering near its center.
func Generate(rng Random, numLights int) []Gradient {
	if numLights <= 0 {
		return []Gradient{}
	}

	gradients := make([]Gradient, numLights)
	for i := range gradients {
		if rng.Float64() > 0.5 {
			gradients[i] = Gradient{
				X: Range{Start: uniform(rng, xHigh), End: uniform(rng, xLow)},
				Y: Range{Start: uniform(rng, yHigh), End: uniform(rng, yLow)},
			}
		} else {
			gradients[i] = Gradient{
				X: Range{Start: uniform(rng, xLow), End: uniform(rng, xHigh)},
				Y: Range{Start: uniform(rng, yLow), End: uniform(rng, yHigh)},
			}
		}
	}
	return gradients
}

func uniform(rng Random, bounds Range) float64 {
	return bounds.At(rng.Float64())
}

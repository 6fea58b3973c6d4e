package lights

import (
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/cybre/spectrum-lights/internal/gradient"
)

// XYToRGB converts a CIE 1931 xy chromaticity to the brightest sRGB color with
// that chromaticity. Brightness is carried separately, so the result is scaled
// until its strongest channel saturates.
func XYToRGB(p gradient.Point) (r, g, b uint8) {
	if p.Y <= 0 {
		return 0, 0, 0
	}

	x, y, z := colorful.XyyToXyz(p.X, p.Y, 1.0)
	lr, lg, lb := colorful.XyzToLinearRgb(x, y, z)
	lr, lg, lb = math.Max(lr, 0), math.Max(lg, 0), math.Max(lb, 0)

	peak := math.Max(lr, math.Max(lg, lb))
	if peak <= 0 {
		return 0, 0, 0
	}

	return colorful.LinearRgb(lr/peak, lg/peak, lb/peak).Clamped().RGB255()
}

// XYToHex renders p as a #rrggbb string.
func XYToHex(p gradient.Point) string {
	r, g, b := XYToRGB(p)
	return colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}.Hex()
}

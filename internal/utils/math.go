package utils

import "golang.org/x/exp/constraints"

// Clamp constrains v to the range [minVal, maxVal].
func Clamp[T constraints.Ordered](v, minVal, maxVal T) T {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

// Lerp linearly interpolates between start and end at fraction t.
// t is not clamped.
func Lerp(start, end, t float64) float64 {
	return start + (end-start)*t
}

// ClampIndex bounds idx to the valid range for a slice of length.
func ClampIndex(idx, length int) int {
	if length <= 0 {
		return 0
	}
	if idx < 0 {
		return 0
	}
	if idx >= length {
		return length - 1
	}
	return idx
}

// WrapIndex maps any integer onto [0, length) using modular arithmetic.
func WrapIndex(idx, length int) int {
	if length <= 0 {
		return 0
	}
	idx %= length
	if idx < 0 {
		idx += length
	}
	return idx
}

// RGBToInt packs 8-bit channels into the 0xRRGGBB integer form used by bulbs.
func RGBToInt(r, g, b uint8) uint {
	return uint(r)<<16 | uint(g)<<8 | uint(b)
}

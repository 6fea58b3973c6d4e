package dsp

import "github.com/cybre/spectrum-lights/internal/utils"

// Smoother implements a simple exponential moving average.
type Smoother struct {
	alpha       float64
	initialized bool
	value       float64
}

// NewSmoother constructs a Smoother using the supplied alpha (0..1).
// Smaller values produce heavier smoothing.
func NewSmoother(alpha float64) *Smoother {
	alpha = utils.Clamp(alpha, 0.0, 1.0)
	return &Smoother{alpha: alpha}
}

// Step updates the internal state and returns the smoothed value.
func (s *Smoother) Step(v float64) float64 {
	if !s.initialized {
		s.value = v
		s.initialized = true
		return v
	}
	s.value += s.alpha * (v - s.value)
	return s.value
}

// Value returns the current smoothed value without updating it.
func (s *Smoother) Value() float64 {
	return s.value
}

// AlphaForWindow returns the EMA alpha whose time constant roughly matches window
// when the smoother is stepped once per frameDuration.
func AlphaForWindow(window, frameDuration float64) float64 {
	if window <= 0 || frameDuration <= 0 {
		return 1
	}
	return utils.Clamp(frameDuration/window, 0.0, 1.0)
}

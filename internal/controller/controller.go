// Package controller turns one frame of binned spectral energy into per-light
// color and shared brightness targets.
package controller

import (
	"cmp"
	"slices"

	"github.com/rotisserie/eris"

	"github.com/cybre/spectrum-lights/internal/energy"
	"github.com/cybre/spectrum-lights/internal/gradient"
	"github.com/cybre/spectrum-lights/internal/utils"
)

var (
	// ErrInvalidConfig marks tunables that make every step meaningless.
	ErrInvalidConfig = eris.New("invalid controller config")
	// ErrFrameTooShort is returned when a frame has fewer bins than there are lights.
	ErrFrameTooShort = eris.New("frame has fewer bins than lights")
)

// Config holds the controller tunables. It is read-only once the controller is built.
type Config struct {
	// EnergyThreshold is the frame sum at or below which a frame counts as silence.
	EnergyThreshold float64
	// MinBrightnessChange is the half-width of the hysteresis band, as a fraction of the previous brightness.
	MinBrightnessChange float64
	// VolumeRatioForMaxBrightness is how far above baseline a frame must be to reach full brightness.
	VolumeRatioForMaxBrightness float64
	BrightnessMin               int
	BrightnessMax               int
	NumLights                   int
}

// Validate reports the first tunable that cannot drive a step.
func (c Config) Validate() error {
	switch {
	case c.NumLights < 0:
		return eris.Wrapf(ErrInvalidConfig, "negative light count %d", c.NumLights)
	case c.BrightnessMin < 1:
		return eris.Wrapf(ErrInvalidConfig, "brightness min %d must be at least 1", c.BrightnessMin)
	case c.BrightnessMax <= c.BrightnessMin:
		return eris.Wrapf(ErrInvalidConfig, "brightness max %d must exceed min %d", c.BrightnessMax, c.BrightnessMin)
	case c.MinBrightnessChange < 0 || c.MinBrightnessChange >= 1:
		return eris.Wrapf(ErrInvalidConfig, "brightness change threshold %.3f outside [0,1)", c.MinBrightnessChange)
	case c.VolumeRatioForMaxBrightness <= 0:
		return eris.Wrapf(ErrInvalidConfig, "volume ratio %.3f must be positive", c.VolumeRatioForMaxBrightness)
	case c.EnergyThreshold < 0:
		return eris.Wrapf(ErrInvalidConfig, "energy threshold %.3f must not be negative", c.EnergyThreshold)
	}
	return nil
}

// LoopState is the mutable state carried from one step to the next.
// It belongs to the single control loop and is never shared.
type LoopState struct {
	History        *energy.History
	Gradients      []gradient.Gradient
	PrevBrightness int
	RollingCounter int
}

// NewLoopState builds the initial state: empty history of maxHistory samples,
// brightness at its minimum and no rotation. Every supplied gradient must pass
// gradient.Gradient.Validate.
func NewLoopState(maxHistory int, gradients []gradient.Gradient, brightnessMin int) (*LoopState, error) {
	for i, g := range gradients {
		if err := g.Validate(); err != nil {
			return nil, eris.Wrapf(err, "gradient for light %d", i)
		}
	}

	history, err := energy.NewHistory(maxHistory)
	if err != nil {
		return nil, err
	}
	return &LoopState{
		History:        history,
		Gradients:      gradients,
		PrevBrightness: brightnessMin,
	}, nil
}

// Targets is the outcome of one step.
type Targets struct {
	// Updated is false when the frame was treated as silence.
	Updated bool
	// Colors holds one point per light when Updated is true.
	Colors []gradient.Point
	// Brightness is the shared brightness after the step.
	Brightness int
	// BrightnessChanged reports whether Brightness must be sent to the lights.
	BrightnessChanged bool

	FrameSum float64
	Baseline float64
}

// Controller applies the step algorithm with a fixed Config.
type Controller struct {
	cfg Config
}

// New validates cfg and returns a Controller.
func New(cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Controller{cfg: cfg}, nil
}

// Config returns the tunables the controller was built with.
func (c *Controller) Config() Config {
	return c.cfg
}

// Step consumes one frame and advances state.
//
// Colors and brightness only move when the frame sum exceeds the energy threshold.
// The frame sum is recorded into the history on every successful step, after the
// baseline for this step has been read.
func (c *Controller) Step(state *LoopState, frame []float64) (Targets, error) {
	if len(frame) < c.cfg.NumLights {
		return Targets{}, eris.Wrapf(ErrFrameTooShort, "%d bins for %d lights", len(frame), c.cfg.NumLights)
	}
	if len(state.Gradients) < c.cfg.NumLights {
		return Targets{}, eris.Wrapf(ErrInvalidConfig, "%d gradients for %d lights", len(state.Gradients), c.cfg.NumLights)
	}

	var frameSum float64
	for _, v := range frame {
		frameSum += v
	}
	baseline := state.History.Baseline()

	targets := Targets{
		Brightness: state.PrevBrightness,
		FrameSum:   frameSum,
		Baseline:   baseline,
	}

	if frameSum > c.cfg.EnergyThreshold && c.cfg.NumLights > 0 {
		targets.Updated = true
		targets.Colors = c.colors(state, frame)

		candidate := c.candidateBrightness(frameSum, baseline)
		if c.shouldEmit(candidate, state.PrevBrightness) {
			state.PrevBrightness = candidate
			targets.Brightness = candidate
			targets.BrightnessChanged = true
		}
	}

	state.History.Record(frameSum)

	return targets, nil
}

// colors assigns each light the bin found at its rotated rank in the ascending
// energy order. The interpolation fraction is that bin's index over the bin count.
func (c *Controller) colors(state *LoopState, frame []float64) []gradient.Point {
	order := argsort(frame)
	numBins := float64(len(frame))

	points := make([]gradient.Point, c.cfg.NumLights)
	for i := range points {
		rank := utils.WrapIndex(i+state.RollingCounter, c.cfg.NumLights)
		fraction := float64(order[rank]) / numBins
		points[i] = state.Gradients[i].At(fraction)
	}
	return points
}

func (c *Controller) candidateBrightness(frameSum, baseline float64) int {
	if baseline == 0 {
		return c.cfg.BrightnessMin
	}

	lo := float64(c.cfg.BrightnessMin)
	hi := float64(c.cfg.BrightnessMax)
	raw := lo + (frameSum/(baseline*c.cfg.VolumeRatioForMaxBrightness))*(hi-lo)
	return int(utils.Clamp(raw, lo, hi))
}

// shouldEmit applies the hysteresis band, except that reaching exactly the
// minimum or maximum brightness from elsewhere always goes through.
func (c *Controller) shouldEmit(candidate, prev int) bool {
	if candidate != prev && (candidate == c.cfg.BrightnessMin || candidate == c.cfg.BrightnessMax) {
		return true
	}

	ratio := float64(candidate) / float64(prev)
	return ratio < 1-c.cfg.MinBrightnessChange || ratio > 1+c.cfg.MinBrightnessChange
}

// argsort returns bin indices ordered by ascending energy, ties kept in index order.
func argsort(frame []float64) []int {
	order := make([]int, len(frame))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(frame[a], frame[b])
	})
	return order
}

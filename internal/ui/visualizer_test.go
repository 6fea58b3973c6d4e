package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cybre/spectrum-lights/internal/gradient"
)

func TestVisualizerFrameRatio(t *testing.T) {
	assert.Zero(t, VisualizerFrame{FrameSum: 10}.Ratio())
	assert.InDelta(t, 1.5, VisualizerFrame{FrameSum: 3000, Baseline: 2000}.Ratio(), 1e-9)
}

func TestRenderVisualizerView(t *testing.T) {
	frame := VisualizerFrame{
		Colors:         []gradient.Point{{X: 0.7, Y: 0.29}, {X: 0.3, Y: 0.5}},
		Brightness:     198,
		BrightnessMin:  1,
		BrightnessMax:  254,
		FrameSum:       3000,
		Baseline:       2000,
		Updated:        true,
		RollingCounter: 3,
		HistoryLen:     42,
		Bins:           []float64{0, 1, 2, 4},
	}

	view := renderVisualizerView(frame, 1.6, 80, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))

	assert.Contains(t, view, "198/254")
	assert.Contains(t, view, "Light 1")
	assert.Contains(t, view, "Light 2")
	assert.Contains(t, view, "x:0.700 y:0.290")
	assert.Contains(t, view, "active")
	assert.Contains(t, view, "Spectrum")
	assert.Contains(t, view, "12:00:00.000")
}

func TestRenderBarClamps(t *testing.T) {
	full := renderBar("Energy", 3, vizThemes["Energy"])
	assert.Contains(t, full, "100%")
	assert.Equal(t, vizBarWidth, strings.Count(full, "█"))

	empty := renderBar("Energy", -1, vizThemes["Energy"])
	assert.Contains(t, empty, "  0%")
	assert.Equal(t, 0, strings.Count(empty, "█"))
}

func TestRenderSpectrumSilence(t *testing.T) {
	assert.Empty(t, renderSpectrum(nil, 80))
	assert.NotContains(t, renderSpectrum([]float64{0, 0, 0}, 80), "█")
}

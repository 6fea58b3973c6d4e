package dsp

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/rotisserie/eris"

	"github.com/cybre/spectrum-lights/internal/utils"
)

const (
	// Captured samples are floats in [-1, 1]; scaling to int16 full scale keeps bin
	// energies in the range the default thresholds were tuned for.
	sampleScale = 32768.0
	minBinFreq  = 30.0
	maxBinFreq  = 16000.0
)

var ErrInvalidAnalyzer = eris.New("invalid analyzer settings")

// Analyzer turns mono frames into a fixed number of log-spaced frequency bins.
// Scratch buffers are reused between calls to keep allocations predictable.
type Analyzer struct {
	sampleRate    float64
	frameSize     int
	window        []float64
	windowedFrame []float64
	magnitudes    []float64
	edges         []int
	smoothers     []*Smoother
}

// NewAnalyzer builds an Analyzer producing numBins bins per frame. smoothing is the
// EMA alpha applied to each bin across frames; 1 disables smoothing.
func NewAnalyzer(sampleRate float64, frameSize, numBins int, smoothing float64) (*Analyzer, error) {
	switch {
	case frameSize <= 0:
		return nil, eris.Wrapf(ErrInvalidAnalyzer, "frame size %d", frameSize)
	case sampleRate <= 0:
		return nil, eris.Wrapf(ErrInvalidAnalyzer, "sample rate %.0f", sampleRate)
	case numBins <= 0 || numBins > frameSize/2:
		return nil, eris.Wrapf(ErrInvalidAnalyzer, "bin count %d for frame size %d", numBins, frameSize)
	}

	half := frameSize/2 + 1
	edges := BinEdges(sampleRate, frameSize, numBins)

	smoothers := make([]*Smoother, numBins)
	for i := range smoothers {
		smoothers[i] = NewSmoother(smoothing)
	}

	return &Analyzer{
		sampleRate:    sampleRate,
		frameSize:     frameSize,
		window:        HannWindow(frameSize),
		windowedFrame: make([]float64, frameSize),
		magnitudes:    make([]float64, half),
		edges:         edges,
		smoothers:     smoothers,
	}, nil
}

// Bins returns the number of bins produced per frame.
func (a *Analyzer) Bins() int {
	return len(a.smoothers)
}

// Process computes smoothed bin energies for frame. The returned slice is freshly
// allocated and owned by the caller.
func (a *Analyzer) Process(frame []float64) ([]float64, error) {
	if len(frame) != a.frameSize {
		return nil, eris.Errorf("frame length %d does not match frame size %d", len(frame), a.frameSize)
	}

	for i, sample := range frame {
		a.windowedFrame[i] = sample * sampleScale
	}
	ApplyWindowInPlace(a.windowedFrame, a.window)

	spectrum := fft.FFTReal(a.windowedFrame)
	for i := range a.magnitudes {
		a.magnitudes[i] = cmplx.Abs(spectrum[i]) / float64(a.frameSize)
	}

	bins := make([]float64, len(a.smoothers))
	for b := range bins {
		lo, hi := a.edges[b], a.edges[b+1]
		var sum float64
		for i := lo; i < hi; i++ {
			sum += a.magnitudes[i]
		}
		bins[b] = a.smoothers[b].Step(sum / float64(hi-lo))
	}
	return bins, nil
}

// BinEdges splits the FFT magnitude range into numBins log-spaced groups between
// 30Hz and 16kHz (capped at Nyquist). The result has numBins+1 strictly increasing
// indices into the magnitude slice.
func BinEdges(sampleRate float64, frameSize, numBins int) []int {
	half := frameSize/2 + 1
	resolution := sampleRate / float64(frameSize)
	upper := math.Min(maxBinFreq, sampleRate/2)
	lower := math.Min(minBinFreq, upper/2)

	edges := make([]int, numBins+1)
	for i := range edges {
		freq := lower * math.Pow(upper/lower, float64(i)/float64(numBins))
		edges[i] = utils.Clamp(int(math.Round(freq/resolution)), 1, half)
	}

	// Low bins can map to the same FFT index; push them apart so each group is non-empty.
	for i := 1; i < len(edges); i++ {
		if edges[i] <= edges[i-1] {
			edges[i] = edges[i-1] + 1
		}
	}
	// If that overran the spectrum, pull the tail back down.
	if edges[numBins] > half {
		edges[numBins] = half
		for i := numBins - 1; i >= 0; i-- {
			if edges[i] >= edges[i+1] {
				edges[i] = edges[i+1] - 1
			}
		}
	}
	return edges
}

// ToMono averages interleaved multi-channel data into a mono frame.
func ToMono(samples []float32, channels int, dst []float64) []float64 {
	if channels <= 0 {
		channels = 1
	}
	frameLen := len(samples) / channels
	if cap(dst) < frameLen {
		dst = make([]float64, frameLen)
	} else {
		dst = dst[:frameLen]
	}
	if frameLen == 0 {
		return dst
	}
	idx := 0
	for i := range frameLen {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += float64(samples[idx])
			idx++
		}
		dst[i] = sum / float64(channels)
	}
	return dst
}

// HannWindow returns a precomputed Hann window for the requested size.
func HannWindow(n int) []float64 {
	if n <= 0 {
		return nil
	}
	window := make([]float64, n)
	if n == 1 {
		window[0] = 1
		return window
	}
	for i := range n {
		window[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return window
}

// ApplyWindowInPlace multiplies samples by a window function in-place.
func ApplyWindowInPlace(samples []float64, window []float64) {
	switch {
	case len(samples) == 0:
		return
	case len(samples) != len(window):
		panic("dsp: window length mismatch")
	}
	for i := range samples {
		samples[i] *= window[i]
	}
}

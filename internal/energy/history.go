// Package energy tracks recent frame energy and derives the baseline that
// brightness is measured against.
package energy

import (
	"github.com/rotisserie/eris"
)

// ErrInvalidLength is returned for a history bound below one sample.
var ErrInvalidLength = eris.New("history length must be at least 1")

// History is a bounded, oldest-first record of per-frame energy sums.
//
// Samples are kept in a ring buffer so recording never reallocates. The buffer is
// owned by the History and never handed out; Samples returns a copy.
type History struct {
	buf   []float64
	start int
	count int
}

// NewHistory returns an empty History holding at most maxLen samples.
func NewHistory(maxLen int) (*History, error) {
	if maxLen < 1 {
		return nil, eris.Wrapf(ErrInvalidLength, "got %d", maxLen)
	}
	return &History{buf: make([]float64, maxLen)}, nil
}

// Baseline returns the weighted moving average of the recorded samples.
// The i-th oldest sample (1-indexed) carries weight i. An empty history yields 0,
// which callers treat as "no reading yet".
func (h *History) Baseline() float64 {
	if h.count == 0 {
		return 0
	}

	var weighted, weights float64
	for i := range h.count {
		w := float64(i + 1)
		weighted += h.at(i) * w
		weights += w
	}
	return weighted / weights
}

// Record appends sum, evicting the oldest sample when the history is full.
func (h *History) Record(sum float64) {
	capacity := len(h.buf)
	if h.count < capacity {
		h.buf[(h.start+h.count)%capacity] = sum
		h.count++
		return
	}
	h.buf[h.start] = sum
	h.start = (h.start + 1) % capacity
}

// Len returns the number of recorded samples.
func (h *History) Len() int {
	return h.count
}

// Cap returns the maximum number of samples retained.
func (h *History) Cap() int {
	return len(h.buf)
}

// Samples returns a copy of the samples, oldest first.
func (h *History) Samples() []float64 {
	out := make([]float64, h.count)
	for i := range out {
		out[i] = h.at(i)
	}
	return out
}

func (h *History) at(i int) float64 {
	return h.buf[(h.start+i)%len(h.buf)]
}

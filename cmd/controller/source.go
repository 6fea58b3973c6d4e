package main

import (
	"context"
	"io"

	"github.com/cybre/spectrum-lights/internal/scheduler"
)

// channelSource hands the newest frame from the analysis goroutine to the
// scheduler. Older queued frames are discarded. A closed channel ends the loop.
type channelSource struct {
	frames <-chan []float64
}

var _ scheduler.FrameSource = (*channelSource)(nil)

func newChannelSource(frames <-chan []float64) *channelSource {
	return &channelSource{frames: frames}
}

func (s *channelSource) Next(ctx context.Context) ([]float64, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case frame, ok := <-s.frames:
		if !ok {
			return nil, io.EOF
		}
		return latest(s.frames, frame), nil
	}
}

func latest(frames <-chan []float64, frame []float64) []float64 {
	for {
		select {
		case next, ok := <-frames:
			if !ok {
				return frame
			}
			frame = next
		default:
			return frame
		}
	}
}

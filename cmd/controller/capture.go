package main

import (
	"context"
	"log/slog"

	"github.com/gordonklaus/portaudio"
	"github.com/rotisserie/eris"
)

func captureAudio(ctx context.Context, logger *slog.Logger, out chan []float32, cfg loopConfig) error {
	if cfg.Device == nil {
		return eris.New("audio device is not specified")
	}

	logger.Info("using audio input device",
		slog.String("name", cfg.Device.Name),
		slog.Float64("sample_rate", cfg.SampleRate),
		slog.Int("channels", cfg.Channels),
		slog.Int("frame_size", cfg.FrameSize))

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   cfg.Device,
			Channels: cfg.Channels,
			Latency:  cfg.Device.DefaultLowInputLatency,
		},
		SampleRate:      cfg.SampleRate,
		FramesPerBuffer: cfg.FrameSize,
	}
	if cfg.Latency > 0 {
		params.Input.Latency = cfg.Latency
	}

	stream, err := portaudio.OpenStream(params, func(in []float32) {
		frame := make([]float32, len(in))
		copy(frame, in)
		pushDropOldest(out, frame)
	})
	if err != nil {
		return eris.Wrap(err, "open audio stream")
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return eris.Wrap(err, "start audio stream")
	}
	defer stream.Stop()

	<-ctx.Done()
	return ctx.Err()
}

// pushDropOldest never blocks the audio callback. When out is full the oldest
// frame is discarded to make room.
func pushDropOldest[T any](out chan T, v T) {
	select {
	case out <- v:
	default:
		select {
		case <-out:
		default:
		}
		select {
		case out <- v:
		default:
		}
	}
}

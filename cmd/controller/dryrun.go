package main

import (
	"context"
	"log/slog"

	"github.com/cybre/spectrum-lights/internal/gradient"
	"github.com/cybre/spectrum-lights/internal/lights"
)

// dryRunSink logs every command and records it instead of talking to lights.
type dryRunSink struct {
	*lights.Recorder
	logger *slog.Logger
	names  []string
}

func newDryRunSink(logger *slog.Logger, names []string) *dryRunSink {
	return &dryRunSink{
		Recorder: lights.NewRecorder(len(names)),
		logger:   logger,
		names:    names,
	}
}

func (s *dryRunSink) SetColor(ctx context.Context, light int, p gradient.Point) error {
	name := ""
	if light >= 0 && light < len(s.names) {
		name = s.names[light]
	}
	s.logger.Info("set color",
		slog.Int("light", light),
		slog.String("name", name),
		slog.Float64("x", p.X),
		slog.Float64("y", p.Y),
		slog.String("rgb", lights.XYToHex(p)),
	)
	return s.Recorder.SetColor(ctx, light, p)
}

func (s *dryRunSink) SetBrightness(ctx context.Context, brightness int) error {
	s.logger.Info("set brightness", slog.Int("brightness", brightness))
	return s.Recorder.SetBrightness(ctx, brightness)
}

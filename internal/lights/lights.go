// Package lights defines the command surface every light transport implements.
package lights

import (
	"context"
	"log/slog"

	"github.com/rotisserie/eris"

	"github.com/cybre/spectrum-lights/internal/controller"
	"github.com/cybre/spectrum-lights/internal/gradient"
	"github.com/cybre/spectrum-lights/internal/utils"
)

// Sink accepts color and brightness commands for a fixed, ordered set of lights.
// Commands must reach the devices in the order they are issued.
type Sink interface {
	// SetColor moves light to the given CIE 1931 xy point.
	SetColor(ctx context.Context, light int, p gradient.Point) error
	// SetBrightness applies one brightness to every light.
	SetBrightness(ctx context.Context, brightness int) error
	// Len returns the number of lights behind the sink.
	Len() int
}

// Apply forwards a controller outcome to sink: colors for every light in index
// order, then the shared brightness if it changed. Individual command failures are
// logged and skipped; only context cancellation is returned.
func Apply(ctx context.Context, logger *slog.Logger, sink Sink, targets controller.Targets) error {
	if !targets.Updated {
		return nil
	}

	for i, p := range targets.Colors {
		if err := sink.SetColor(ctx, i, p); err != nil {
			if eris.Is(err, context.Canceled) {
				return err
			}
			logger.Warn("failed to set light color",
				slog.Int("light", i),
				slog.Float64("x", p.X),
				slog.Float64("y", p.Y),
				slog.Any("error", err),
			)
		}
	}

	if !targets.BrightnessChanged {
		return nil
	}
	if err := sink.SetBrightness(ctx, targets.Brightness); err != nil {
		if eris.Is(err, context.Canceled) {
			return err
		}
		logger.Warn("failed to set brightness",
			slog.Int("brightness", targets.Brightness),
			slog.Any("error", err),
		)
	}
	return nil
}

// Rescale maps brightness from the controller's [fromMin, fromMax] range onto a
// device's [toMin, toMax] range, rounding to the nearest step.
func Rescale(brightness, fromMin, fromMax, toMin, toMax int) int {
	if fromMax <= fromMin {
		return toMin
	}
	t := float64(brightness-fromMin) / float64(fromMax-fromMin)
	scaled := utils.Lerp(float64(toMin), float64(toMax), t)
	return utils.Clamp(int(scaled+0.5), toMin, toMax)
}

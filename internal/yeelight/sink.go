package yeelight

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/cybre/spectrum-lights/internal/gradient"
	"github.com/cybre/spectrum-lights/internal/lights"
)

const (
	minBulbBrightness = 1
	maxBulbBrightness = 100
)

// Commander is the part of a bulb connection the sink drives.
type Commander interface {
	SetRGB(ctx context.Context, r, g, b uint8, effect Effect, duration int) error
	SetBrightness(ctx context.Context, brightness uint8, effect Effect, duration int) error
}

// Sink drives a group of bulbs, one light index per bulb. Colors are converted from
// xy to RGB and brightness is rescaled onto the bulb's 1..100 range.
type Sink struct {
	bulbs         []Commander
	brightnessMin int
	brightnessMax int
}

var _ lights.Sink = (*Sink)(nil)

// NewSink returns a sink for bulbs whose controller brightness range is [brightnessMin, brightnessMax].
func NewSink(bulbs []Commander, brightnessMin, brightnessMax int) *Sink {
	return &Sink{
		bulbs:         bulbs,
		brightnessMin: brightnessMin,
		brightnessMax: brightnessMax,
	}
}

func (s *Sink) SetColor(ctx context.Context, light int, p gradient.Point) error {
	if light < 0 || light >= len(s.bulbs) {
		return eris.Errorf("light index %d out of range", light)
	}
	r, g, b := lights.XYToRGB(p)
	return s.bulbs[light].SetRGB(ctx, r, g, b, Sudden, 0)
}

func (s *Sink) SetBrightness(ctx context.Context, brightness int) error {
	level := lights.Rescale(brightness, s.brightnessMin, s.brightnessMax, minBulbBrightness, maxBulbBrightness)

	var errs []error
	for _, bulb := range s.bulbs {
		if err := bulb.SetBrightness(ctx, uint8(level), Sudden, 0); err != nil {
			if eris.Is(err, context.Canceled) {
				return err
			}
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return eris.Wrapf(errs[0], "%d of %d bulbs rejected brightness", len(errs), len(s.bulbs))
	}
	return nil
}

func (s *Sink) Len() int {
	return len(s.bulbs)
}

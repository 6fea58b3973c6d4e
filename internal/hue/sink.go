package hue

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/cybre/spectrum-lights/internal/gradient"
	"github.com/cybre/spectrum-lights/internal/lights"
)

// Sink drives a fixed list of bridge lights. Hue brightness is natively 1..254, so
// brightness values are passed through; the config layer keeps them in that range.
type Sink struct {
	client         *Client
	lights         []Light
	transitionTime int
}

var _ lights.Sink = (*Sink)(nil)

// NewSink returns a sink for lights. transitionTime is in bridge units of 100ms.
func NewSink(client *Client, lights []Light, transitionTime int) *Sink {
	return &Sink{client: client, lights: lights, transitionTime: transitionTime}
}

// PowerOn switches every light on with the configured transition time.
func (s *Sink) PowerOn(ctx context.Context) error {
	on := true
	for _, l := range s.lights {
		if err := s.client.SetState(ctx, l.ID, State{On: &on, TransitionTime: &s.transitionTime}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sink) SetColor(ctx context.Context, light int, p gradient.Point) error {
	if light < 0 || light >= len(s.lights) {
		return eris.Errorf("light index %d out of range", light)
	}
	xy := [2]float64{p.X, p.Y}
	return s.client.SetState(ctx, s.lights[light].ID, State{XY: &xy, TransitionTime: &s.transitionTime})
}

// SetBrightness sends brightness to every light even if some of them fail.
func (s *Sink) SetBrightness(ctx context.Context, brightness int) error {
	var errs []error
	for _, l := range s.lights {
		bri := brightness
		if err := s.client.SetState(ctx, l.ID, State{Brightness: &bri, TransitionTime: &s.transitionTime}); err != nil {
			if ctx.Err() != nil {
				return err
			}
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return eris.Wrapf(errs[0], "%d of %d lights rejected brightness", len(errs), len(s.lights))
	}
	return nil
}

func (s *Sink) Len() int {
	return len(s.lights)
}

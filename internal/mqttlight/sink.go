package mqttlight

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/cybre/spectrum-lights/internal/gradient"
	"github.com/cybre/spectrum-lights/internal/lights"
)

type colorXY struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type setCommand struct {
	State      string   `json:"state,omitempty"`
	Color      *colorXY `json:"color,omitempty"`
	Brightness *int     `json:"brightness,omitempty"`
	Transition float64  `json:"transition"`
}

// Sink publishes set commands to <baseTopic>/<light>/set for each named light.
type Sink struct {
	pub        Publisher
	baseTopic  string
	lights     []string
	transition float64
}

var _ lights.Sink = (*Sink)(nil)

// NewSink returns a sink. transition is in seconds.
func NewSink(pub Publisher, baseTopic string, lights []string, transition float64) *Sink {
	return &Sink{
		pub:        pub,
		baseTopic:  strings.TrimSuffix(baseTopic, "/"),
		lights:     lights,
		transition: transition,
	}
}

// PowerOn switches every light on.
func (s *Sink) PowerOn(ctx context.Context) error {
	for _, name := range s.lights {
		if err := s.publish(ctx, name, setCommand{State: "ON", Transition: s.transition}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sink) SetColor(ctx context.Context, light int, p gradient.Point) error {
	if light < 0 || light >= len(s.lights) {
		return eris.Errorf("light index %d out of range", light)
	}
	return s.publish(ctx, s.lights[light], setCommand{
		Color:      &colorXY{X: p.X, Y: p.Y},
		Transition: s.transition,
	})
}

// SetBrightness publishes to every light even if some publishes fail.
func (s *Sink) SetBrightness(ctx context.Context, brightness int) error {
	var errs []error
	for _, name := range s.lights {
		bri := brightness
		if err := s.publish(ctx, name, setCommand{Brightness: &bri, Transition: s.transition}); err != nil {
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

// Topic returns the set topic for a light name.
func (s *Sink) Topic(name string) string {
	return s.baseTopic + "/" + name + "/set"
}

func (s *Sink) publish(ctx context.Context, name string, cmd setCommand) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return eris.Wrap(err, "failed to marshal set command")
	}
	return s.pub.Publish(ctx, s.Topic(name), payload)
}

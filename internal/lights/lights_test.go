package lights

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cybre/spectrum-lights/internal/controller"
	"github.com/cybre/spectrum-lights/internal/gradient"
)

type failingSink struct {
	*Recorder
	err error
}

func (f failingSink) SetColor(context.Context, int, gradient.Point) error {
	return f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestApplyOrdersColorsBeforeBrightness(t *testing.T) {
	rec := NewRecorder(2)
	targets := controller.Targets{
		Updated:           true,
		Colors:            []gradient.Point{{X: 0.3, Y: 0.2}, {X: 0.6, Y: 0.4}},
		Brightness:        200,
		BrightnessChanged: true,
	}

	require.NoError(t, Apply(context.Background(), discardLogger(), rec, targets))

	cmds := rec.Commands()
	require.Len(t, cmds, 3)
	assert.Equal(t, 0, cmds[0].Light)
	assert.Equal(t, gradient.Point{X: 0.3, Y: 0.2}, *cmds[0].Color)
	assert.Equal(t, 1, cmds[1].Light)
	assert.Nil(t, cmds[2].Color)
	assert.Equal(t, 200, cmds[2].Brightness)
}

func TestApplySkipsUnchangedBrightness(t *testing.T) {
	rec := NewRecorder(1)
	targets := controller.Targets{
		Updated:    true,
		Colors:     []gradient.Point{{X: 0.3, Y: 0.2}},
		Brightness: 200,
	}

	require.NoError(t, Apply(context.Background(), discardLogger(), rec, targets))
	assert.Len(t, rec.Commands(), 1)
}

func TestApplyIgnoresSilentFrames(t *testing.T) {
	rec := NewRecorder(1)
	require.NoError(t, Apply(context.Background(), discardLogger(), rec, controller.Targets{Brightness: 5}))
	assert.Empty(t, rec.Commands())
}

func TestApplyKeepsGoingOnSinkErrors(t *testing.T) {
	sink := failingSink{Recorder: NewRecorder(2), err: errors.New("bulb offline")}
	targets := controller.Targets{
		Updated:           true,
		Colors:            []gradient.Point{{X: 0.3, Y: 0.2}, {X: 0.6, Y: 0.4}},
		Brightness:        10,
		BrightnessChanged: true,
	}

	require.NoError(t, Apply(context.Background(), discardLogger(), sink, targets))
	assert.Len(t, sink.Commands(), 1, "brightness still sent after color failures")
}

func TestApplyStopsOnCancel(t *testing.T) {
	sink := failingSink{Recorder: NewRecorder(1), err: context.Canceled}
	targets := controller.Targets{
		Updated: true,
		Colors:  []gradient.Point{{X: 0.3, Y: 0.2}},
	}

	assert.ErrorIs(t, Apply(context.Background(), discardLogger(), sink, targets), context.Canceled)
}

func TestRescale(t *testing.T) {
	assert.Equal(t, 1, Rescale(1, 1, 254, 1, 100))
	assert.Equal(t, 100, Rescale(254, 1, 254, 1, 100))
	assert.Equal(t, 51, Rescale(128, 1, 254, 1, 100))
	assert.Equal(t, 1, Rescale(5, 5, 5, 1, 100))
}

package scheduler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cybre/spectrum-lights/internal/controller"
	"github.com/cybre/spectrum-lights/internal/lights"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type sliceSource struct {
	frames [][]float64
	clock  *fakeClock
	step   time.Duration
}

func (s *sliceSource) Next(context.Context) ([]float64, error) {
	if len(s.frames) == 0 {
		return nil, io.EOF
	}
	frame := s.frames[0]
	s.frames = s.frames[1:]
	s.clock.Advance(s.step)
	return frame, nil
}

type snapshotRecorder struct {
	snapshots []Snapshot
}

func (r *snapshotRecorder) Observe(s Snapshot) {
	r.snapshots = append(r.snapshots, s)
}

func newTestScheduler(t *testing.T, cfg Config, numLights int, source FrameSource, clock *fakeClock, opts ...Option) (*Scheduler, *lights.Recorder) {
	t.Helper()

	ctrl, err := controller.New(controller.Config{
		EnergyThreshold:             10,
		MinBrightnessChange:         0.2,
		VolumeRatioForMaxBrightness: 1.6,
		BrightnessMin:               1,
		BrightnessMax:               254,
		NumLights:                   numLights,
	})
	require.NoError(t, err)

	state, err := controller.NewLoopState(100, nil, 1)
	require.NoError(t, err)

	sink := lights.NewRecorder(numLights)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append(opts, WithClock(clock.Now))

	return New(cfg, ctrl, state, source, sink, rand.New(rand.NewSource(1)), logger, opts...), sink
}

func testLoopConfig() Config {
	return Config{
		ColorChangeInterval: 10 * time.Second,
		RollingInterval:     time.Second,
		UpdateInterval:      80 * time.Millisecond,
	}
}

func TestTimerDue(t *testing.T) {
	start := time.Unix(0, 0)
	timer := NewTimer("lights", 80*time.Millisecond, start)

	assert.False(t, timer.Due(start))
	assert.False(t, timer.Due(start.Add(79*time.Millisecond)))
	assert.True(t, timer.Due(start.Add(80*time.Millisecond)))
	assert.False(t, timer.Due(start.Add(100*time.Millisecond)))
	assert.True(t, timer.Due(start.Add(160*time.Millisecond)))
	assert.Equal(t, "lights", timer.Name())
}

func TestNewLogsArmedTimers(t *testing.T) {
	ctrl, err := controller.New(controller.Config{
		MinBrightnessChange:         0.2,
		VolumeRatioForMaxBrightness: 1.6,
		BrightnessMin:               1,
		BrightnessMax:               254,
		NumLights:                   1,
	})
	require.NoError(t, err)
	state, err := controller.NewLoopState(10, nil, 1)
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	clock := &fakeClock{now: time.Unix(0, 0)}

	New(testLoopConfig(), ctrl, state, &sliceSource{clock: clock}, lights.NewRecorder(1),
		rand.New(rand.NewSource(1)), logger, WithClock(clock.Now))

	out := buf.String()
	assert.Contains(t, out, "timer=gradients interval=10s")
	assert.Contains(t, out, "timer=lights interval=80ms")
	assert.Contains(t, out, "timer=debug interval=2s")
	assert.NotContains(t, out, "timer=rotation")
}

func TestNewGeneratesGradients(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	s, _ := newTestScheduler(t, testLoopConfig(), 3, &sliceSource{clock: clock}, clock)

	require.Len(t, s.State().Gradients, 3)
	for _, g := range s.State().Gradients {
		assert.NoError(t, g.Validate())
	}
}

func TestTickRespectsStepInterval(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	s, sink := newTestScheduler(t, testLoopConfig(), 2, &sliceSource{clock: clock}, clock)
	ctx := context.Background()
	frame := []float64{10, 20, 30, 40}

	require.NoError(t, s.Tick(ctx, frame))
	assert.Equal(t, 0, s.State().History.Len(), "first step waits one interval")

	clock.Advance(80 * time.Millisecond)
	require.NoError(t, s.Tick(ctx, frame))
	assert.Equal(t, 1, s.State().History.Len())
	assert.Len(t, sink.Commands(), 2, "two colors, brightness already at minimum")

	clock.Advance(40 * time.Millisecond)
	require.NoError(t, s.Tick(ctx, frame))
	assert.Equal(t, 1, s.State().History.Len())
}

func TestTickRotatesOnlyWhenEnabled(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	s, _ := newTestScheduler(t, testLoopConfig(), 2, &sliceSource{clock: clock}, clock)

	clock.Advance(3 * time.Second)
	require.NoError(t, s.Tick(context.Background(), []float64{1, 1}))
	assert.Equal(t, 0, s.State().RollingCounter)

	cfg := testLoopConfig()
	cfg.RollLights = true
	clock = &fakeClock{now: time.Unix(0, 0)}
	s, _ = newTestScheduler(t, cfg, 2, &sliceSource{clock: clock}, clock)

	for range 3 {
		clock.Advance(time.Second)
		require.NoError(t, s.Tick(context.Background(), []float64{1, 1}))
	}
	assert.Equal(t, 3, s.State().RollingCounter)
}

func TestTickRegeneratesGradients(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	s, _ := newTestScheduler(t, testLoopConfig(), 4, &sliceSource{clock: clock}, clock)
	before := append(s.State().Gradients[:0:0], s.State().Gradients...)

	clock.Advance(5 * time.Second)
	require.NoError(t, s.Tick(context.Background(), []float64{1, 1, 1, 1}))
	assert.Equal(t, before, s.State().Gradients)

	clock.Advance(5 * time.Second)
	require.NoError(t, s.Tick(context.Background(), []float64{1, 1, 1, 1}))
	assert.NotEqual(t, before, s.State().Gradients)
	assert.Len(t, s.State().Gradients, 4)
}

func TestTickSkipsLowBins(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	cfg := testLoopConfig()
	cfg.SkipFirstBins = 0.25
	observer := &snapshotRecorder{}
	s, _ := newTestScheduler(t, cfg, 1, &sliceSource{clock: clock}, clock, WithObserver(observer))

	clock.Advance(time.Second)
	require.NoError(t, s.Tick(context.Background(), []float64{1000, 2, 3, 4}))

	require.Len(t, observer.snapshots, 1)
	assert.Equal(t, []float64{2, 3, 4}, observer.snapshots[0].Bins)
	assert.Equal(t, []float64{9}, s.State().History.Samples())
	assert.False(t, observer.snapshots[0].Updated, "9 is below the energy threshold")
}

func TestTickPropagatesShortFrames(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	s, _ := newTestScheduler(t, testLoopConfig(), 3, &sliceSource{clock: clock}, clock)

	clock.Advance(time.Second)
	err := s.Tick(context.Background(), []float64{100, 100})
	assert.True(t, eris.Is(err, controller.ErrFrameTooShort))
}

func TestRunDrainsSource(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	source := &sliceSource{
		clock: clock,
		step:  100 * time.Millisecond,
		frames: [][]float64{
			{100, 200, 300},
			{100, 200, 300},
			{0, 0, 0},
			{400, 500, 600},
		},
	}
	s, sink := newTestScheduler(t, testLoopConfig(), 2, source, clock)

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, []float64{600, 600, 0, 1500}, s.State().History.Samples())
	assert.NotEmpty(t, sink.Commands())
}

func TestRunStopsOnCancel(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	s, _ := newTestScheduler(t, testLoopConfig(), 1, &sliceSource{clock: clock, frames: [][]float64{{1}}}, clock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Run(ctx), context.Canceled)
}

func TestSkipBins(t *testing.T) {
	frame := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, frame, SkipBins(frame, 0))
	assert.Equal(t, []float64{2, 3, 4, 5, 6, 7, 8, 9, 10}, SkipBins(frame, 0.1))
	assert.Equal(t, frame, SkipBins(frame, 0.06), "int(0.6) drops nothing")
	assert.Empty(t, SkipBins(frame, 1))
}

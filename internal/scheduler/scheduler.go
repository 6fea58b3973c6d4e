// Package scheduler runs the control loop: it pulls frames from the audio side,
// fires the gradient, rotation and lights timers, and forwards controller
// output to the light sink.
package scheduler

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/rotisserie/eris"

	"github.com/cybre/spectrum-lights/internal/controller"
	"github.com/cybre/spectrum-lights/internal/gradient"
	"github.com/cybre/spectrum-lights/internal/lights"
)

const debugInterval = 2 * time.Second

// FrameSource yields binned spectral frames one at a time, in capture order.
// Next blocks until a frame is available. io.EOF ends the loop cleanly.
type FrameSource interface {
	Next(ctx context.Context) ([]float64, error)
}

// Observer receives a Snapshot after every controller step.
type Observer interface {
	Observe(Snapshot)
}

// Snapshot describes the loop after a controller step.
type Snapshot struct {
	Time           time.Time
	Bins           []float64
	Colors         []gradient.Point
	Brightness     int
	FrameSum       float64
	Baseline       float64
	Updated        bool
	RollingCounter int
	HistoryLen     int
}

// Config holds the loop cadences.
type Config struct {
	ColorChangeInterval time.Duration
	RollingInterval     time.Duration
	UpdateInterval      time.Duration
	RollLights          bool
	// SkipFirstBins is the fraction of lowest-frequency bins dropped before each step.
	SkipFirstBins float64
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithObserver registers an Observer for step snapshots.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		s.observer = o
	}
}

// Scheduler owns the loop state and drives one controller.
type Scheduler struct {
	cfg    Config
	ctrl   *controller.Controller
	state  *controller.LoopState
	source FrameSource
	sink   lights.Sink
	rng    gradient.Random
	logger *slog.Logger

	now      func() time.Time
	observer Observer

	gradientTimer *Timer
	rotationTimer *Timer
	stepTimer     *Timer
	debugTimer    *Timer

	colors []gradient.Point
}

// New wires a Scheduler. Gradients are generated immediately if the state has none,
// and every timer starts counting from construction time.
func New(
	cfg Config,
	ctrl *controller.Controller,
	state *controller.LoopState,
	source FrameSource,
	sink lights.Sink,
	rng gradient.Random,
	logger *slog.Logger,
	opts ...Option,
) *Scheduler {
	s := &Scheduler{
		cfg:    cfg,
		ctrl:   ctrl,
		state:  state,
		source: source,
		sink:   sink,
		rng:    rng,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	numLights := ctrl.Config().NumLights
	if len(s.state.Gradients) < numLights {
		s.state.Gradients = gradient.Generate(s.rng, numLights)
	}

	start := s.now()
	s.gradientTimer = NewTimer("gradients", cfg.ColorChangeInterval, start)
	s.rotationTimer = NewTimer("rotation", cfg.RollingInterval, start)
	s.stepTimer = NewTimer("lights", cfg.UpdateInterval, start)
	s.debugTimer = NewTimer("debug", debugInterval, start)

	for _, t := range []*Timer{s.gradientTimer, s.rotationTimer, s.stepTimer, s.debugTimer} {
		if t == s.rotationTimer && !cfg.RollLights {
			continue
		}
		s.logger.Debug("scheduler timer armed",
			slog.String("timer", t.Name()),
			slog.Duration("interval", t.Interval()),
		)
	}

	return s
}

// Run polls the frame source until ctx is cancelled, the source is exhausted,
// or a step fails.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := s.source.Next(ctx)
		if err != nil {
			if eris.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if err := s.Tick(ctx, frame); err != nil {
			return err
		}
	}
}

// Tick runs one polling iteration against frame. Timers are independent and can
// all fire in the same iteration.
func (s *Scheduler) Tick(ctx context.Context, frame []float64) error {
	now := s.now()

	if s.gradientTimer.Due(now) {
		s.state.Gradients = gradient.Generate(s.rng, s.ctrl.Config().NumLights)
		s.logger.Debug("regenerated light gradients", slog.Int("lights", len(s.state.Gradients)))
	}

	if s.cfg.RollLights && s.rotationTimer.Due(now) {
		s.state.RollingCounter++
	}

	if s.stepTimer.Due(now) {
		bins := SkipBins(frame, s.cfg.SkipFirstBins)
		targets, err := s.ctrl.Step(s.state, bins)
		if err != nil {
			return eris.Wrap(err, "controller step")
		}
		if targets.Updated {
			s.colors = targets.Colors
		}
		if err := lights.Apply(ctx, s.logger, s.sink, targets); err != nil {
			return err
		}
		s.observe(now, bins, targets)
	}

	if s.debugTimer.Due(now) {
		s.logger.Debug("light controller state",
			slog.Float64("baseline", s.state.History.Baseline()),
			slog.Int("brightness", s.state.PrevBrightness),
			slog.Int("rolling_counter", s.state.RollingCounter),
			slog.Int("history", s.state.History.Len()),
		)
	}

	return nil
}

// State exposes the loop state for inspection.
func (s *Scheduler) State() *controller.LoopState {
	return s.state
}

func (s *Scheduler) observe(now time.Time, bins []float64, targets controller.Targets) {
	if s.observer == nil {
		return
	}
	s.observer.Observe(Snapshot{
		Time:           now,
		Bins:           append([]float64(nil), bins...),
		Colors:         append([]gradient.Point(nil), s.colors...),
		Brightness:     targets.Brightness,
		FrameSum:       targets.FrameSum,
		Baseline:       targets.Baseline,
		Updated:        targets.Updated,
		RollingCounter: s.state.RollingCounter,
		HistoryLen:     s.state.History.Len(),
	})
}

// SkipBins drops the leading fraction of bins, where low frequencies tend to dominate.
func SkipBins(frame []float64, fraction float64) []float64 {
	n := int(fraction * float64(len(frame)))
	if n <= 0 {
		return frame
	}
	if n >= len(frame) {
		return frame[len(frame):]
	}
	return frame[n:]
}

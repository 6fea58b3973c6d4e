package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/rotisserie/eris"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/cybre/spectrum-lights/internal/config"
	"github.com/cybre/spectrum-lights/internal/controller"
	"github.com/cybre/spectrum-lights/internal/dsp"
	"github.com/cybre/spectrum-lights/internal/lights"
	"github.com/cybre/spectrum-lights/internal/scheduler"
	"github.com/cybre/spectrum-lights/internal/ui"
)

type loopConfig struct {
	Device     *portaudio.DeviceInfo
	SampleRate float64
	FrameSize  int
	Channels   int
	Latency    time.Duration
	Visualize  bool
}

var rng = rand.New(rand.NewSource(time.Now().UnixNano()))

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := runController(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func runController(ctx context.Context, cfg config.Config) error {
	logger := setupLogger(cfg.Debug, cfg.Visualize)

	be, err := newBackend(ctx, logger, cfg)
	if err != nil {
		return err
	}

	if err := portaudio.Initialize(); err != nil {
		return eris.Wrap(err, "initialize PortAudio")
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return eris.Wrap(err, "enumerate audio devices")
	}

	defaultDevice, err := portaudio.DefaultInputDevice()
	if err != nil {
		return eris.Wrap(err, "resolve default audio input device")
	}

	selected, device, err := selectLightsAndDevice(be, devices, defaultDevice.Index, cfg.Audio.Device)
	if err != nil {
		return eris.Wrap(err, "select lights/device")
	}
	if device.MaxInputChannels < 1 {
		return eris.Errorf("device %s has no input channels; select a loopback/monitor device", device.Name)
	}

	if err := cfg.ValidateLights(len(selected)); err != nil {
		return err
	}

	var sink lights.Sink
	if cfg.DryRun {
		sink = newDryRunSink(logger, be.Labels(selected))
	} else {
		opened, closeSink, err := be.Open(ctx, selected)
		if err != nil {
			return err
		}
		defer closeSink(context.WithoutCancel(ctx))
		sink = opened
	}

	loopCfg := buildLoopConfig(device, cfg)

	if cfg.Audio.Channels > 0 && cfg.Audio.Channels > int(device.MaxInputChannels) {
		logger.Warn("requested channels exceed device capabilities",
			slog.Int("requested", cfg.Audio.Channels),
			slog.Int("max", int(device.MaxInputChannels)),
			slog.Int("using", loopCfg.Channels),
		)
	}

	if err := run(ctx, logger, loopCfg, cfg, sink); err != nil && !eris.Is(err, context.Canceled) {
		logger.Error("light control loop failed", slog.Any("error", err))
		return err
	}

	return nil
}

func setupLogger(debug, visualize bool) *slog.Logger {
	logOutput := os.Stdout
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	if visualize && !debug {
		logLevel = slog.LevelWarn
	}
	if visualize {
		logOutput = os.Stderr
	}

	logger := slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	return logger
}

func run(ctx context.Context, logger *slog.Logger, loopCfg loopConfig, cfg config.Config, sink lights.Sink) error {
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctrl, err := controller.New(cfg.ControllerSettings(sink.Len()))
	if err != nil {
		return err
	}

	state, err := controller.NewLoopState(cfg.Controller.MaxWMALen, nil, cfg.Controller.BrightnessMin)
	if err != nil {
		return err
	}

	frameDuration := float64(loopCfg.FrameSize) / loopCfg.SampleRate
	analyzer, err := dsp.NewAnalyzer(
		loopCfg.SampleRate,
		loopCfg.FrameSize,
		cfg.Audio.FrequencyBins,
		dsp.AlphaForWindow(cfg.Audio.SmoothingWindow.Seconds(), frameDuration),
	)
	if err != nil {
		return err
	}

	var opts []scheduler.Option
	if loopCfg.Visualize {
		viz := ui.NewVisualizer(cancel,
			cfg.Controller.BrightnessMin,
			cfg.Controller.BrightnessMax,
			cfg.Controller.VolumeRatioForMaxBrightness,
		)
		defer viz.Close()
		opts = append(opts, scheduler.WithObserver(viz))
	}

	frameCh := make(chan []float32, 32)
	binsCh := make(chan []float64, 1)

	sched := scheduler.New(cfg.SchedulerSettings(), ctrl, state, newChannelSource(binsCh), sink, rng, logger, opts...)

	logger.Info("starting light control loop",
		slog.Int("lights", sink.Len()),
		slog.Int("bins", analyzer.Bins()),
		slog.Duration("update_interval", cfg.Timing.LightsUpdateInterval),
		slog.Bool("roll_lights", cfg.Timing.RollLights),
	)

	g, gctx := errgroup.WithContext(loopCtx)

	g.Go(func() error {
		defer close(frameCh)
		return captureAudio(gctx, logger, frameCh, loopCfg)
	})

	g.Go(func() error {
		defer close(binsCh)
		return analyzeFrames(gctx, analyzer, loopCfg.Channels, frameCh, binsCh)
	})

	g.Go(func() error {
		return sched.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		if eris.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	return nil
}

// analyzeFrames smooths every captured frame in order but only keeps the
// newest bins in out, so a slow sink never sees stale audio.
func analyzeFrames(ctx context.Context, analyzer *dsp.Analyzer, channels int, in <-chan []float32, out chan []float64) error {
	var mono []float64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-in:
			if !ok {
				return nil
			}
			mono = dsp.ToMono(frame, channels, mono)
			bins, err := analyzer.Process(mono)
			if err != nil {
				return err
			}
			pushDropOldest(out, bins)
		}
	}
}

func randomMusicModePort() uint16 {
	const base = 55000
	const span = 5000
	return uint16(base + rng.Intn(span))
}

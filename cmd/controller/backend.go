package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rotisserie/eris"

	"github.com/cybre/spectrum-lights/internal/config"
	"github.com/cybre/spectrum-lights/internal/hue"
	"github.com/cybre/spectrum-lights/internal/lights"
	"github.com/cybre/spectrum-lights/internal/mqttlight"
	"github.com/cybre/spectrum-lights/internal/ui"
	"github.com/cybre/spectrum-lights/internal/yeelight"
)

const (
	mqttConnectTimeout = 10 * time.Second
	bulbOffSettleDelay = 500 * time.Millisecond
)

// backend is a resolved set of candidate lights for one transport.
type backend interface {
	Options() []ui.Option
	// Preselected returns the initially chosen light indexes and whether the
	// choice is final.
	Preselected() (initial []int, fixed bool)
	Labels(selected []int) []string
	// Open connects to the selected lights. The returned func releases them.
	Open(ctx context.Context, selected []int) (lights.Sink, func(context.Context), error)
}

func newBackend(ctx context.Context, logger *slog.Logger, cfg config.Config) (backend, error) {
	switch cfg.Backend {
	case config.BackendYeelight:
		bulbs, err := resolveBulbs(ctx, cfg.Yeelight)
		if err != nil {
			return nil, err
		}
		return &yeelightBackend{
			bulbs:  bulbs,
			fixed:  len(cfg.Yeelight.Addresses) > 0 || len(bulbs) == 1,
			cfg:    cfg,
			logger: logger,
		}, nil
	case config.BackendHue:
		return newHueBackend(ctx, logger, cfg)
	case config.BackendMQTT:
		return &mqttBackend{cfg: cfg, logger: logger}, nil
	default:
		return nil, eris.Errorf("unknown backend %q", cfg.Backend)
	}
}

func allIndexes(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func labelsOf(options []ui.Option, selected []int) []string {
	labels := make([]string, 0, len(selected))
	for _, i := range selected {
		if i >= 0 && i < len(options) {
			labels = append(labels, options[i].Label)
		}
	}
	return labels
}

type yeelightBackend struct {
	bulbs  []*yeelight.Bulb
	fixed  bool
	cfg    config.Config
	logger *slog.Logger
}

func (b *yeelightBackend) Options() []ui.Option {
	return buildBulbOptions(b.bulbs)
}

func (b *yeelightBackend) Preselected() ([]int, bool) {
	if b.fixed {
		return allIndexes(len(b.bulbs)), true
	}
	return nil, false
}

func (b *yeelightBackend) Labels(selected []int) []string {
	return labelsOf(b.Options(), selected)
}

func (b *yeelightBackend) Open(ctx context.Context, selected []int) (lights.Sink, func(context.Context), error) {
	var opened []*yeelight.Bulb
	release := func(ctx context.Context) {
		for _, bulb := range opened {
			b.releaseBulb(ctx, bulb)
		}
	}

	commanders := make([]yeelight.Commander, 0, len(selected))
	for i, idx := range selected {
		bulb := b.bulbs[idx]
		b.logger.Info(
			"using yeelight bulb",
			slog.String("id", bulb.ID()),
			slog.String("name", bulb.Name()),
			slog.String("model", bulb.Model()),
			slog.String("firmware_version", bulb.FirmwareVersion()),
			slog.Int("brightness", int(bulb.Brightness())),
			slog.String("rgb", fmt.Sprintf("#%06x", bulb.RGB())),
		)

		if err := bulb.Connect(ctx); err != nil {
			release(context.WithoutCancel(ctx))
			return nil, nil, err
		}
		opened = append(opened, bulb)

		if bulb.Power() != yeelight.PowerOn {
			if err := bulb.TurnOn(ctx, yeelight.Smooth, 250); err != nil {
				b.logger.Warn("failed to turn on bulb", slog.Any("error", err))
			} else {
				b.logger.Info("bulb turned on", slog.String("addr", bulb.Addr().String()))
			}
		}

		port := b.musicPort(i)
		b.logger.Info("starting music mode", slog.String("addr", bulb.Addr().String()), slog.Int("port", int(port)))
		music, err := bulb.StartMusicMode(ctx, port)
		if err != nil {
			release(context.WithoutCancel(ctx))
			return nil, nil, eris.Wrapf(err, "music mode on %s", bulb.Addr())
		}
		commanders = append(commanders, music)
	}

	sink := yeelight.NewSink(commanders, b.cfg.Controller.BrightnessMin, b.cfg.Controller.BrightnessMax)
	return sink, release, nil
}

func (b *yeelightBackend) musicPort(i int) uint16 {
	if b.cfg.Yeelight.MusicPort > 0 {
		return uint16(b.cfg.Yeelight.MusicPort + i)
	}
	return randomMusicModePort()
}

func (b *yeelightBackend) releaseBulb(ctx context.Context, bulb *yeelight.Bulb) {
	if err := bulb.StopMusicMode(ctx); err != nil {
		b.logger.Warn("failed to stop music mode", slog.Any("error", err))
	}
	if err := bulb.TurnOff(ctx, yeelight.Smooth, 100); err != nil {
		b.logger.Warn("failed to turn off bulb", slog.Any("error", err))
	} else {
		b.logger.Info("bulb turned off", slog.String("addr", bulb.Addr().String()))
	}
	time.Sleep(bulbOffSettleDelay)
	if err := bulb.Disconnect(); err != nil {
		b.logger.Warn("failed to disconnect from bulb", slog.Any("error", err))
	} else {
		b.logger.Info("bulb disconnected", slog.String("addr", bulb.Addr().String()))
	}
}

func resolveBulbs(ctx context.Context, cfg config.YeelightConfig) ([]*yeelight.Bulb, error) {
	if len(cfg.Addresses) > 0 {
		bulbs := make([]*yeelight.Bulb, 0, len(cfg.Addresses))
		for _, addr := range cfg.Addresses {
			bulb, err := yeelight.NewBulbFromAddress(addr)
			if err != nil {
				return nil, eris.Wrapf(err, "parse bulb address %q", addr)
			}
			bulbs = append(bulbs, bulb)
		}
		return bulbs, nil
	}

	discoverCtx, cancel := context.WithTimeout(ctx, cfg.DiscoverTimeout)
	defer cancel()

	bulbs, err := yeelight.Discover(discoverCtx)
	if err != nil {
		return nil, err
	}
	if len(bulbs) == 0 {
		return nil, eris.New("no bulbs available")
	}
	return bulbs, nil
}

type hueBackend struct {
	client  *hue.Client
	lights  []hue.Light
	initial []int
	fixed   bool
	cfg     config.Config
	logger  *slog.Logger
}

func newHueBackend(ctx context.Context, logger *slog.Logger, cfg config.Config) (*hueBackend, error) {
	client := hue.NewClient(cfg.Hue.Bridge, cfg.Hue.Username, nil, logger)

	all, err := client.Lights(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, eris.New("bridge has no lights")
	}

	chosen, err := hue.SelectLights(all, cfg.Hue.Lights)
	if err != nil {
		return nil, err
	}

	logger.Info("connected to hue bridge", slog.String("bridge", cfg.Hue.Bridge), slog.Int("lights", len(all)))

	return &hueBackend{
		client:  client,
		lights:  chosen,
		initial: allIndexes(len(chosen)),
		fixed:   len(cfg.Hue.Lights) > 0,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

func (b *hueBackend) Options() []ui.Option {
	options := make([]ui.Option, len(b.lights))
	for i, l := range b.lights {
		state := "off"
		if l.On {
			state = "on"
		}
		options[i] = ui.Option{Label: fmt.Sprintf("%s [%s] · %s", l.Name, l.ID, state)}
	}
	return options
}

func (b *hueBackend) Preselected() ([]int, bool) {
	return b.initial, b.fixed
}

func (b *hueBackend) Labels(selected []int) []string {
	names := make([]string, 0, len(selected))
	for _, i := range selected {
		names = append(names, b.lights[i].Name)
	}
	return names
}

func (b *hueBackend) Open(ctx context.Context, selected []int) (lights.Sink, func(context.Context), error) {
	chosen := make([]hue.Light, 0, len(selected))
	for _, i := range selected {
		chosen = append(chosen, b.lights[i])
		b.logger.Info("using hue light", slog.String("id", b.lights[i].ID), slog.String("name", b.lights[i].Name))
	}

	sink := hue.NewSink(b.client, chosen, b.cfg.Hue.TransitionTime)
	if err := sink.PowerOn(ctx); err != nil {
		return nil, nil, err
	}
	return sink, func(context.Context) {}, nil
}

type mqttBackend struct {
	cfg    config.Config
	logger *slog.Logger
}

func (b *mqttBackend) Options() []ui.Option {
	options := make([]ui.Option, len(b.cfg.MQTT.Lights))
	for i, name := range b.cfg.MQTT.Lights {
		options[i] = ui.Option{Label: name}
	}
	return options
}

func (b *mqttBackend) Preselected() ([]int, bool) {
	return allIndexes(len(b.cfg.MQTT.Lights)), true
}

func (b *mqttBackend) Labels(selected []int) []string {
	return labelsOf(b.Options(), selected)
}

func (b *mqttBackend) Open(ctx context.Context, selected []int) (lights.Sink, func(context.Context), error) {
	m := b.cfg.MQTT
	client := mqttlight.NewClient(mqttlight.ClientConfig{
		Broker:   m.Broker,
		ClientID: m.ClientID,
		Username: m.Username,
		Password: m.Password,
		QoS:      byte(m.QoS),
	}, b.logger)

	connectCtx, cancel := context.WithTimeout(ctx, mqttConnectTimeout)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		return nil, nil, err
	}

	sink := mqttlight.NewSink(client, m.BaseTopic, b.Labels(selected), m.Transition)
	if err := sink.PowerOn(ctx); err != nil {
		client.Disconnect()
		return nil, nil, err
	}
	return sink, func(context.Context) { client.Disconnect() }, nil
}

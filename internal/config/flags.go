package config

import (
	"strings"

	"github.com/spf13/pflag"
)

const configFlag = "config"

// FlagSet returns flags bound to c. Each flag defaults to the current value, so
// parsing only overrides what was passed explicitly.
func (c *Config) FlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("spectrum-lights", pflag.ContinueOnError)
	fs.SortFlags = false

	var path string
	fs.StringVarP(&path, configFlag, "c", "", "YAML config file (also SPECTRUM_CONFIG)")

	ctl := &c.Controller
	fs.Float64Var(&ctl.EnergyThreshold, "energy-threshold", ctl.EnergyThreshold, "frame energy below which lights are left alone")
	fs.Float64Var(&ctl.MinBrightnessChange, "min-brightness-change", ctl.MinBrightnessChange, "relative brightness change needed to send an update")
	fs.Float64Var(&ctl.VolumeRatioForMaxBrightness, "volume-ratio", ctl.VolumeRatioForMaxBrightness, "energy/baseline ratio that maps to full brightness")
	fs.IntVar(&ctl.BrightnessMin, "brightness-min", ctl.BrightnessMin, "lowest brightness sent to lights")
	fs.IntVar(&ctl.BrightnessMax, "brightness-max", ctl.BrightnessMax, "highest brightness sent to lights")
	fs.IntVar(&ctl.MaxWMALen, "max-wma-len", ctl.MaxWMALen, "number of frame energies kept for the baseline")
	fs.Float64Var(&ctl.SkipFirstBins, "skip-first-bins", ctl.SkipFirstBins, "fraction of low frequency bins to ignore")

	t := &c.Timing
	fs.DurationVar(&t.LightsUpdateInterval, "update-interval", t.LightsUpdateInterval, "minimum time between light updates")
	fs.DurationVar(&t.ColorChangeInterval, "color-change-interval", t.ColorChangeInterval, "how often new gradients are drawn")
	fs.BoolVar(&t.RollLights, "roll-lights", t.RollLights, "rotate gradients across lights")
	fs.DurationVar(&t.RollingInterval, "rolling-interval", t.RollingInterval, "how often gradients rotate when --roll-lights is set")

	a := &c.Audio
	fs.IntVar(&a.Device, "device", a.Device, "audio input device index (-1 to choose interactively)")
	fs.Float64Var(&a.SampleRate, "sample-rate", a.SampleRate, "capture sample rate (0 = device default)")
	fs.IntVar(&a.FrameSize, "frame-size", a.FrameSize, "analysis frame size in samples")
	fs.IntVar(&a.Channels, "channels", a.Channels, "number of input channels to capture (<= device max)")
	fs.DurationVar(&a.Latency, "latency", a.Latency, "input latency override (0 = device default)")
	fs.IntVar(&a.FrequencyBins, "bins", a.FrequencyBins, "number of frequency bins")
	fs.DurationVar(&a.SmoothingWindow, "smoothing", a.SmoothingWindow, "per-bin smoothing window")

	fs.StringVar(&c.Backend, "backend", c.Backend, "light backend: yeelight, hue or mqtt")

	y := &c.Yeelight
	fs.StringSliceVar(&y.Addresses, "bulb", y.Addresses, "yeelight bulb address ip[:port], repeatable (default: discover)")
	fs.DurationVar(&y.DiscoverTimeout, "discover-timeout", y.DiscoverTimeout, "yeelight discovery timeout")
	fs.IntVar(&y.MusicPort, "music-port", y.MusicPort, "local port for music mode connections (0 = random)")

	h := &c.Hue
	fs.StringVar(&h.Bridge, "hue-bridge", h.Bridge, "hue bridge address")
	fs.StringVar(&h.Username, "hue-username", h.Username, "hue bridge username")
	fs.StringSliceVar(&h.Lights, "hue-light", h.Lights, "hue light name, repeatable (default: all)")
	fs.IntVar(&h.TransitionTime, "hue-transition", h.TransitionTime, "hue transition time in 100ms units")

	m := &c.MQTT
	fs.StringVar(&m.Broker, "mqtt-broker", m.Broker, "MQTT broker URL")
	fs.StringVar(&m.ClientID, "mqtt-client-id", m.ClientID, "MQTT client ID (default: random)")
	fs.StringVar(&m.Username, "mqtt-user", m.Username, "MQTT username")
	fs.StringVar(&m.Password, "mqtt-password", m.Password, "MQTT password")
	fs.StringVar(&m.BaseTopic, "mqtt-base-topic", m.BaseTopic, "topic prefix for light set commands")
	fs.StringSliceVar(&m.Lights, "mqtt-light", m.Lights, "MQTT light name, repeatable")
	fs.Float64Var(&m.Transition, "mqtt-transition", m.Transition, "transition in seconds")
	fs.IntVar(&m.QoS, "mqtt-qos", m.QoS, "MQTT publish QoS")

	fs.BoolVar(&c.Debug, "debug", c.Debug, "enable debug logging")
	fs.BoolVar(&c.Visualize, "visualize", c.Visualize, "render realtime terminal visualization (logs go to stderr)")
	fs.BoolVar(&c.DryRun, "dry-run", c.DryRun, "log light commands instead of sending them")

	return fs
}

// configPath finds --config/-c in args before the full flag set exists, falling
// back to SPECTRUM_CONFIG.
func configPath(args []string, getenv func(string) string) string {
	path := getenv(envPrefix + "CONFIG")
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			break
		}
		switch {
		case arg == "--"+configFlag || arg == "-c":
			if i+1 < len(args) {
				path = args[i+1]
				i++
			}
		case strings.HasPrefix(arg, "--"+configFlag+"="):
			path = strings.TrimPrefix(arg, "--"+configFlag+"=")
		case strings.HasPrefix(arg, "-c="):
			path = strings.TrimPrefix(arg, "-c=")
		}
	}
	return path
}

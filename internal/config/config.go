// Package config loads runtime settings from defaults, an optional YAML file,
// SPECTRUM_* environment variables and command-line flags, in that order of precedence.
package config

import (
	"bytes"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/cybre/spectrum-lights/internal/controller"
	"github.com/cybre/spectrum-lights/internal/scheduler"
)

// ErrInvalid marks every validation failure.
var ErrInvalid = eris.New("invalid configuration")

// hueMaxBrightness is the top of the bridge's native bri range.
const hueMaxBrightness = 254

// Light backends selectable with backend.
const (
	BackendYeelight = "yeelight"
	BackendHue      = "hue"
	BackendMQTT     = "mqtt"
)

// Config is the complete runtime configuration.
type Config struct {
	Controller ControllerConfig `yaml:"controller"`
	Timing     TimingConfig     `yaml:"timing"`
	Audio      AudioConfig      `yaml:"audio"`

	Backend  string         `yaml:"backend"`
	Yeelight YeelightConfig `yaml:"yeelight"`
	Hue      HueConfig      `yaml:"hue"`
	MQTT     MQTTConfig     `yaml:"mqtt"`

	Debug     bool `yaml:"debug"`
	Visualize bool `yaml:"visualize"`
	DryRun    bool `yaml:"dry_run"`
}

// ControllerConfig holds the energy gate, brightness mapping and history tunables.
type ControllerConfig struct {
	EnergyThreshold             float64 `yaml:"energy_threshold"`
	MinBrightnessChange         float64 `yaml:"min_brightness_change"`
	VolumeRatioForMaxBrightness float64 `yaml:"volume_ratio_for_max_brightness"`
	BrightnessMin               int     `yaml:"brightness_min"`
	BrightnessMax               int     `yaml:"brightness_max"`
	MaxWMALen                   int     `yaml:"max_wma_len"`
	SkipFirstBins               float64 `yaml:"skip_first_bins"`
}

// TimingConfig holds the control loop cadences.
type TimingConfig struct {
	LightsUpdateInterval time.Duration `yaml:"lights_update_interval"`
	ColorChangeInterval  time.Duration `yaml:"color_change_interval"`
	RollLights           bool          `yaml:"roll_lights"`
	RollingInterval      time.Duration `yaml:"rolling_interval"`
}

// AudioConfig selects the capture device and the spectral analysis shape.
type AudioConfig struct {
	// Device is a PortAudio input device index; -1 selects interactively or the default.
	Device          int           `yaml:"device"`
	SampleRate      float64       `yaml:"sample_rate"`
	FrameSize       int           `yaml:"frame_size"`
	Channels        int           `yaml:"channels"`
	Latency         time.Duration `yaml:"latency"`
	FrequencyBins   int           `yaml:"frequency_bins"`
	SmoothingWindow time.Duration `yaml:"smoothing_window"`
}

// YeelightConfig lists bulbs by address, or leaves them to discovery.
type YeelightConfig struct {
	Addresses       []string      `yaml:"addresses"`
	DiscoverTimeout time.Duration `yaml:"discover_timeout"`
	// MusicPort is the first music mode listener port; bulb i uses MusicPort+i. 0 picks random ports.
	MusicPort       int           `yaml:"music_port"`
}

// HueConfig points at a paired bridge. An empty Lights list uses every light.
type HueConfig struct {
	Bridge         string   `yaml:"bridge"`
	Username       string   `yaml:"username"`
	Lights         []string `yaml:"lights"`
	TransitionTime int      `yaml:"transition_time"`
}

// MQTTConfig describes the broker and the zigbee2mqtt-style light topics.
type MQTTConfig struct {
	Broker     string   `yaml:"broker"`
	ClientID   string   `yaml:"client_id"`
	Username   string   `yaml:"username"`
	Password   string   `yaml:"password"`
	BaseTopic  string   `yaml:"base_topic"`
	Lights     []string `yaml:"lights"`
	Transition float64  `yaml:"transition"`
	QoS        int      `yaml:"qos"`
}

// Default returns a fully populated Config.
func Default() Config {
	return Config{
		Controller: ControllerConfig{
			EnergyThreshold:             2000,
			MinBrightnessChange:         0.2,
			VolumeRatioForMaxBrightness: 1.6,
			BrightnessMin:               1,
			BrightnessMax:               254,
			MaxWMALen:                   1500,
			SkipFirstBins:               0.06,
		},
		Timing: TimingConfig{
			LightsUpdateInterval: 80 * time.Millisecond,
			ColorChangeInterval:  10 * time.Second,
			RollLights:           false,
			RollingInterval:      time.Second,
		},
		Audio: AudioConfig{
			Device:          -1,
			FrameSize:       1024,
			Channels:        2,
			FrequencyBins:   50,
			SmoothingWindow: 100 * time.Millisecond,
		},
		Backend: BackendYeelight,
		Yeelight: YeelightConfig{
			DiscoverTimeout: 3 * time.Second,
		},
		Hue: HueConfig{
			TransitionTime: 1,
		},
		MQTT: MQTTConfig{
			Broker:     "tcp://localhost:1883",
			BaseTopic:  "zigbee2mqtt",
			Transition: 0.1,
		},
	}
}

// Load builds the effective configuration for args (without the program name).
func Load(args []string, getenv func(string) string) (Config, error) {
	path := configPath(args, getenv)

	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.LoadFromEnv(getenv); err != nil {
		return Config{}, err
	}

	fs := cfg.FlagSet()
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile merges the YAML document at path into c. Unknown keys are rejected.
func (c *Config) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrap(err, "failed to read config file")
	}

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return eris.Wrapf(err, "failed to decode %s", path)
	}
	return nil
}

// ControllerSettings returns the settings for controller.New once the number of
// lights is known.
func (c Config) ControllerSettings(numLights int) controller.Config {
	return controller.Config{
		EnergyThreshold:             c.Controller.EnergyThreshold,
		MinBrightnessChange:         c.Controller.MinBrightnessChange,
		VolumeRatioForMaxBrightness: c.Controller.VolumeRatioForMaxBrightness,
		BrightnessMin:               c.Controller.BrightnessMin,
		BrightnessMax:               c.Controller.BrightnessMax,
		NumLights:                   numLights,
	}
}

func (c Config) SchedulerSettings() scheduler.Config {
	return scheduler.Config{
		ColorChangeInterval: c.Timing.ColorChangeInterval,
		RollingInterval:     c.Timing.RollingInterval,
		UpdateInterval:      c.Timing.LightsUpdateInterval,
		RollLights:          c.Timing.RollLights,
		SkipFirstBins:       c.Controller.SkipFirstBins,
	}
}

// Validate reports the first offending field wrapped around ErrInvalid.
func (c Config) Validate() error {
	ctl := c.Controller
	switch {
	case ctl.MaxWMALen < 1:
		return eris.Wrapf(ErrInvalid, "max_wma_len must be at least 1, got %d", ctl.MaxWMALen)
	case ctl.EnergyThreshold < 0:
		return eris.Wrapf(ErrInvalid, "energy_threshold must not be negative, got %g", ctl.EnergyThreshold)
	case ctl.MinBrightnessChange < 0 || ctl.MinBrightnessChange >= 1:
		return eris.Wrapf(ErrInvalid, "min_brightness_change must be in [0,1), got %g", ctl.MinBrightnessChange)
	case ctl.VolumeRatioForMaxBrightness <= 0:
		return eris.Wrapf(ErrInvalid, "volume_ratio_for_max_brightness must be positive, got %g", ctl.VolumeRatioForMaxBrightness)
	case ctl.BrightnessMin < 1:
		return eris.Wrapf(ErrInvalid, "brightness_min must be at least 1, got %d", ctl.BrightnessMin)
	case ctl.BrightnessMax <= ctl.BrightnessMin:
		return eris.Wrapf(ErrInvalid, "brightness_max (%d) must exceed brightness_min (%d)", ctl.BrightnessMax, ctl.BrightnessMin)
	case ctl.SkipFirstBins < 0 || ctl.SkipFirstBins >= 1:
		return eris.Wrapf(ErrInvalid, "skip_first_bins must be in [0,1), got %g", ctl.SkipFirstBins)
	}

	t := c.Timing
	switch {
	case t.LightsUpdateInterval <= 0:
		return eris.Wrap(ErrInvalid, "lights_update_interval must be positive")
	case t.ColorChangeInterval <= 0:
		return eris.Wrap(ErrInvalid, "color_change_interval must be positive")
	case t.RollingInterval <= 0:
		return eris.Wrap(ErrInvalid, "rolling_interval must be positive")
	}

	a := c.Audio
	switch {
	case a.FrequencyBins < 1:
		return eris.Wrapf(ErrInvalid, "frequency_bins must be at least 1, got %d", a.FrequencyBins)
	case a.FrameSize < 2*a.FrequencyBins:
		return eris.Wrapf(ErrInvalid, "frame_size (%d) must be at least twice frequency_bins", a.FrameSize)
	case a.SampleRate < 0:
		return eris.Wrap(ErrInvalid, "sample_rate must not be negative")
	case a.Latency < 0:
		return eris.Wrap(ErrInvalid, "latency must not be negative")
	}

	switch c.Backend {
	case BackendYeelight:
		if p := c.Yeelight.MusicPort; p < 0 || p > 65535 {
			return eris.Wrapf(ErrInvalid, "yeelight.music_port out of range: %d", p)
		}
	case BackendHue:
		if c.Hue.Bridge == "" || c.Hue.Username == "" {
			return eris.Wrap(ErrInvalid, "hue backend needs hue.bridge and hue.username")
		}
		if ctl.BrightnessMax > hueMaxBrightness {
			return eris.Wrapf(ErrInvalid, "hue backend needs brightness_max at most %d, got %d", hueMaxBrightness, ctl.BrightnessMax)
		}
	case BackendMQTT:
		if c.MQTT.Broker == "" {
			return eris.Wrap(ErrInvalid, "mqtt backend needs mqtt.broker")
		}
		if len(c.MQTT.Lights) == 0 {
			return eris.Wrap(ErrInvalid, "mqtt backend needs at least one entry in mqtt.lights")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			return eris.Wrapf(ErrInvalid, "mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
		}
	default:
		return eris.Wrapf(ErrInvalid, "unknown backend %q", c.Backend)
	}

	return nil
}

// ValidateLights checks settings that depend on how many lights were selected.
func (c Config) ValidateLights(numLights int) error {
	if c.Timing.RollLights && numLights == 0 {
		return eris.Wrap(ErrInvalid, "roll_lights requires at least one light")
	}
	if c.Backend == BackendYeelight && c.Yeelight.MusicPort > 0 {
		if last := c.Yeelight.MusicPort + numLights - 1; last > 65535 {
			return eris.Wrapf(ErrInvalid, "yeelight.music_port %d leaves no room for %d bulbs", c.Yeelight.MusicPort, numLights)
		}
	}
	return nil
}

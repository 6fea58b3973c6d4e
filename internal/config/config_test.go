package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(vars map[string]string) func(string) string {
	return func(key string) string {
		return vars[key]
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spectrum.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 2000.0, cfg.Controller.EnergyThreshold)
	assert.Equal(t, 1500, cfg.Controller.MaxWMALen)
	assert.Equal(t, 80*time.Millisecond, cfg.Timing.LightsUpdateInterval)
	assert.Equal(t, 10*time.Second, cfg.Timing.ColorChangeInterval)
	assert.Equal(t, 50, cfg.Audio.FrequencyBins)
}

func TestLoadPrecedence(t *testing.T) {
	path := writeConfig(t, `
controller:
  energy_threshold: 1000
  brightness_max: 200
timing:
  color_change_interval: 5s
  roll_lights: true
backend: hue
hue:
  bridge: 192.168.1.2
  username: abc
  lights: [Miv 1, Miv 2]
`)

	env := envFrom(map[string]string{
		"SPECTRUM_ENERGY_THRESHOLD": "1500",
		"SPECTRUM_HUE_LIGHTS":       "Desk, Shelf",
	})

	cfg, err := Load([]string{"--config", path, "--brightness-max", "180", "--update-interval=100ms"}, env)
	require.NoError(t, err)

	assert.Equal(t, 1500.0, cfg.Controller.EnergyThreshold, "env overrides file")
	assert.Equal(t, 180, cfg.Controller.BrightnessMax, "flag overrides file")
	assert.Equal(t, 5*time.Second, cfg.Timing.ColorChangeInterval)
	assert.Equal(t, 100*time.Millisecond, cfg.Timing.LightsUpdateInterval)
	assert.True(t, cfg.Timing.RollLights)
	assert.Equal(t, BackendHue, cfg.Backend)
	assert.Equal(t, []string{"Desk", "Shelf"}, cfg.Hue.Lights)
	assert.Equal(t, 1, cfg.Controller.BrightnessMin, "untouched fields keep defaults")
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnvPath(t *testing.T) {
	path := writeConfig(t, "backend: mqtt\nmqtt:\n  lights: [lamp]\n")

	cfg, err := Load(nil, envFrom(map[string]string{"SPECTRUM_CONFIG": path}))
	require.NoError(t, err)
	assert.Equal(t, BackendMQTT, cfg.Backend)
	assert.Equal(t, []string{"lamp"}, cfg.MQTT.Lights)
	assert.Equal(t, "zigbee2mqtt", cfg.MQTT.BaseTopic)
}

func TestLoadRepeatedListFlags(t *testing.T) {
	cfg, err := Load([]string{"--bulb", "10.0.0.2", "--bulb", "10.0.0.3:55443"}, envFrom(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.2", "10.0.0.3:55443"}, cfg.Yeelight.Addresses)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "controller:\n  energy_treshold: 10\n")

	_, err := Load([]string{"-c", path}, envFrom(nil))
	assert.Error(t, err)
}

func TestLoadRejectsMalformedEnv(t *testing.T) {
	_, err := Load(nil, envFrom(map[string]string{"SPECTRUM_MAX_WMA_LEN": "lots"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SPECTRUM_MAX_WMA_LEN")
}

func TestLoadRejectsUnknownFlag(t *testing.T) {
	_, err := Load([]string{"--no-such-flag"}, envFrom(nil))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty history", func(c *Config) { c.Controller.MaxWMALen = 0 }},
		{"negative threshold", func(c *Config) { c.Controller.EnergyThreshold = -1 }},
		{"hysteresis too large", func(c *Config) { c.Controller.MinBrightnessChange = 1 }},
		{"zero volume ratio", func(c *Config) { c.Controller.VolumeRatioForMaxBrightness = 0 }},
		{"zero brightness min", func(c *Config) { c.Controller.BrightnessMin = 0 }},
		{"inverted brightness range", func(c *Config) { c.Controller.BrightnessMax = 1 }},
		{"skip everything", func(c *Config) { c.Controller.SkipFirstBins = 1 }},
		{"zero update interval", func(c *Config) { c.Timing.LightsUpdateInterval = 0 }},
		{"zero color interval", func(c *Config) { c.Timing.ColorChangeInterval = 0 }},
		{"zero rolling interval", func(c *Config) { c.Timing.RollingInterval = 0 }},
		{"no bins", func(c *Config) { c.Audio.FrequencyBins = 0 }},
		{"frame too small", func(c *Config) { c.Audio.FrameSize = 64 }},
		{"unknown backend", func(c *Config) { c.Backend = "dmx" }},
		{"hue without bridge", func(c *Config) { c.Backend = BackendHue }},
		{"mqtt without lights", func(c *Config) { c.Backend = BackendMQTT }},
		{"hue brightness above bridge range", func(c *Config) {
			c.Backend = BackendHue
			c.Hue.Bridge = "192.168.1.2"
			c.Hue.Username = "user"
			c.Controller.BrightnessMax = 255
		}},
		{"bad qos", func(c *Config) {
			c.Backend = BackendMQTT
			c.MQTT.Lights = []string{"a"}
			c.MQTT.QoS = 3
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, eris.Is(err, ErrInvalid))
		})
	}
}

func TestValidateLights(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.ValidateLights(0))

	cfg.Timing.RollLights = true
	assert.True(t, eris.Is(cfg.ValidateLights(0), ErrInvalid))
	assert.NoError(t, cfg.ValidateLights(2))
}

func TestValidateLightsMusicPortRange(t *testing.T) {
	cfg := Default()
	cfg.Backend = BackendYeelight
	cfg.Yeelight.MusicPort = 65534

	assert.NoError(t, cfg.ValidateLights(2))
	assert.True(t, eris.Is(cfg.ValidateLights(3), ErrInvalid))

	cfg.Yeelight.MusicPort = 0
	assert.NoError(t, cfg.ValidateLights(3))
}

func TestSettingsConversion(t *testing.T) {
	cfg := Default()
	cfg.Timing.RollLights = true

	ctl := cfg.ControllerSettings(3)
	assert.Equal(t, 3, ctl.NumLights)
	assert.Equal(t, 254, ctl.BrightnessMax)
	require.NoError(t, ctl.Validate())

	sched := cfg.SchedulerSettings()
	assert.True(t, sched.RollLights)
	assert.Equal(t, 0.06, sched.SkipFirstBins)
	assert.Equal(t, time.Second, sched.RollingInterval)
}

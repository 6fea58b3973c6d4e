package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const envPrefix = "SPECTRUM_"

// LoadFromEnv overrides c with SPECTRUM_* variables. Malformed values are errors.
func (c *Config) LoadFromEnv(getenv func(string) string) error {
	e := envReader{getenv: getenv}

	e.float("ENERGY_THRESHOLD", &c.Controller.EnergyThreshold)
	e.float("MIN_BRIGHTNESS_CHANGE", &c.Controller.MinBrightnessChange)
	e.float("VOLUME_RATIO", &c.Controller.VolumeRatioForMaxBrightness)
	e.int("BRIGHTNESS_MIN", &c.Controller.BrightnessMin)
	e.int("BRIGHTNESS_MAX", &c.Controller.BrightnessMax)
	e.int("MAX_WMA_LEN", &c.Controller.MaxWMALen)
	e.float("SKIP_FIRST_BINS", &c.Controller.SkipFirstBins)

	e.duration("UPDATE_INTERVAL", &c.Timing.LightsUpdateInterval)
	e.duration("COLOR_CHANGE_INTERVAL", &c.Timing.ColorChangeInterval)
	e.bool("ROLL_LIGHTS", &c.Timing.RollLights)
	e.duration("ROLLING_INTERVAL", &c.Timing.RollingInterval)

	e.int("DEVICE", &c.Audio.Device)
	e.float("SAMPLE_RATE", &c.Audio.SampleRate)
	e.int("FRAME_SIZE", &c.Audio.FrameSize)
	e.int("CHANNELS", &c.Audio.Channels)
	e.duration("LATENCY", &c.Audio.Latency)
	e.int("BINS", &c.Audio.FrequencyBins)
	e.duration("SMOOTHING", &c.Audio.SmoothingWindow)

	e.string("BACKEND", &c.Backend)

	e.list("YEELIGHT_BULBS", &c.Yeelight.Addresses)
	e.duration("YEELIGHT_DISCOVER_TIMEOUT", &c.Yeelight.DiscoverTimeout)
	e.int("YEELIGHT_MUSIC_PORT", &c.Yeelight.MusicPort)

	e.string("HUE_BRIDGE", &c.Hue.Bridge)
	e.string("HUE_USERNAME", &c.Hue.Username)
	e.list("HUE_LIGHTS", &c.Hue.Lights)
	e.int("HUE_TRANSITION", &c.Hue.TransitionTime)

	e.string("MQTT_BROKER", &c.MQTT.Broker)
	e.string("MQTT_CLIENT_ID", &c.MQTT.ClientID)
	e.string("MQTT_USER", &c.MQTT.Username)
	e.string("MQTT_PASSWORD", &c.MQTT.Password)
	e.string("MQTT_BASE_TOPIC", &c.MQTT.BaseTopic)
	e.list("MQTT_LIGHTS", &c.MQTT.Lights)
	e.float("MQTT_TRANSITION", &c.MQTT.Transition)
	e.int("MQTT_QOS", &c.MQTT.QoS)

	e.bool("DEBUG", &c.Debug)
	e.bool("VISUALIZE", &c.Visualize)
	e.bool("DRY_RUN", &c.DryRun)

	return e.err
}

// envReader records the first parse failure and skips the rest.
type envReader struct {
	getenv func(string) string
	err    error
}

func (e *envReader) lookup(key string) (string, bool) {
	if e.err != nil {
		return "", false
	}
	v := e.getenv(envPrefix + key)
	return v, v != ""
}

func (e *envReader) fail(key string, err error) {
	e.err = eris.Wrapf(err, "invalid %s%s", envPrefix, key)
}

func (e *envReader) string(key string, dst *string) {
	if v, ok := e.lookup(key); ok {
		*dst = v
	}
}

func (e *envReader) list(key string, dst *[]string) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	var items []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	*dst = items
}

func (e *envReader) int(key string, dst *int) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = n
}

func (e *envReader) float(key string, dst *float64) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = f
}

func (e *envReader) bool(key string, dst *bool) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = b
}

func (e *envReader) duration(key string, dst *time.Duration) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = d
}

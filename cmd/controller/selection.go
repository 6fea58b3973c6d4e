package main

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
	"github.com/rotisserie/eris"

	"github.com/cybre/spectrum-lights/internal/config"
	"github.com/cybre/spectrum-lights/internal/ui"
	"github.com/cybre/spectrum-lights/internal/yeelight"
)

func selectLightsAndDevice(
	be backend,
	devices []*portaudio.DeviceInfo,
	defaultDeviceIndex int,
	requestedDevice int,
) ([]int, *portaudio.DeviceInfo, error) {
	options := be.Options()
	if len(options) == 0 {
		return nil, nil, eris.New("no lights available")
	}
	if len(devices) == 0 {
		return nil, nil, eris.New("no input devices available")
	}

	var selectedDevice *portaudio.DeviceInfo
	if requestedDevice >= 0 {
		if requestedDevice >= len(devices) {
			return nil, nil, eris.Errorf("invalid device index %d", requestedDevice)
		}
		selectedDevice = devices[requestedDevice]
	}

	initialLights, fixed := be.Preselected()
	needLights := !fixed
	needDevice := selectedDevice == nil

	if !needLights && !needDevice {
		return initialLights, selectedDevice, nil
	}

	initialDevice := effectiveInitialDeviceIndex(requestedDevice, defaultDeviceIndex, len(devices))

	result, err := ui.RunSetup(
		options,
		buildDeviceOptions(devices),
		ui.SetupConfig{
			RequireLights: needLights,
			RequireDevice: needDevice,
			InitialLights: initialLights,
			InitialDevice: initialDevice,
		},
	)
	if err != nil {
		if !eris.Is(err, ui.ErrNoInteractiveTTY) {
			return nil, nil, err
		}
		result = ui.SetupResult{LightIndexes: initialLights, DeviceIndex: initialDevice}
		if len(result.LightIndexes) == 0 {
			result.LightIndexes = []int{0}
		}
	}

	if len(result.LightIndexes) == 0 {
		return nil, nil, eris.New("no lights selected")
	}
	if needDevice {
		selectedDevice = devices[result.DeviceIndex]
	}

	return result.LightIndexes, selectedDevice, nil
}

func buildBulbOptions(bulbs []*yeelight.Bulb) []ui.Option {
	options := make([]ui.Option, len(bulbs))
	for i, bulb := range bulbs {
		options[i] = ui.Option{
			Label: describeBulb(bulb),
		}
	}
	return options
}

func describeBulb(bulb *yeelight.Bulb) string {
	name := bulb.Name()
	if name == "" {
		name = "Yeelight"
	}
	id := bulb.ID()
	if id == "" {
		id = "n/a"
	}
	model := bulb.Model()
	if model == "" {
		model = "n/a"
	}
	fw := bulb.FirmwareVersion()
	if fw == "" {
		fw = "n/a"
	}

	return fmt.Sprintf("%s [%s] · model:%s · fw:%s · %s",
		name,
		id,
		model,
		fw,
		bulb.Addr(),
	)
}

func buildDeviceOptions(devices []*portaudio.DeviceInfo) []ui.Option {
	options := make([]ui.Option, len(devices))
	for i, dev := range devices {
		options[i] = ui.Option{
			Label: fmt.Sprintf(
				"[%d] %s · %.0fHz · in:%d · latency:%.1fms",
				i,
				dev.Name,
				dev.DefaultSampleRate,
				dev.MaxInputChannels,
				dev.DefaultLowInputLatency.Seconds()*1000,
			),
		}
	}
	return options
}

func effectiveInitialDeviceIndex(requested, fallback, length int) int {
	if length == 0 {
		return 0
	}
	if requested >= 0 && requested < length {
		return requested
	}
	if fallback >= 0 && fallback < length {
		return fallback
	}
	return 0
}

func buildLoopConfig(device *portaudio.DeviceInfo, cfg config.Config) loopConfig {
	return loopConfig{
		Device:     device,
		SampleRate: effectiveSampleRate(cfg.Audio.SampleRate, device.DefaultSampleRate),
		FrameSize:  effectiveFrameSize(cfg.Audio.FrameSize),
		Channels:   sanitizeChannelCount(cfg.Audio.Channels, int(device.MaxInputChannels)),
		Latency:    cfg.Audio.Latency,
		Visualize:  cfg.Visualize,
	}
}

func sanitizeChannelCount(requested, max int) int {
	if requested <= 0 {
		return 1
	}

	if max > 0 && requested > max {
		return max
	}

	return requested
}

func effectiveSampleRate(requested, deviceDefault float64) float64 {
	if requested > 0 {
		return requested
	}

	if deviceDefault > 0 {
		return deviceDefault
	}

	return 44100
}

func effectiveFrameSize(requested int) int {
	if requested > 0 {
		return requested
	}

	return 1024
}

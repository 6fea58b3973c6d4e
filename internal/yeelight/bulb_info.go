package yeelight

import (
	"net/netip"

	"github.com/rotisserie/eris"
)

var ErrBrightnessInvalid = eris.New("brightness must be between 1 and 100")

type PowerStatus string

const (
	PowerOn  PowerStatus = "on"
	PowerOff PowerStatus = "off"
)

type ColorMode int

const (
	ColorModeRGB ColorMode = iota + 1
	ColorModeTemperature
	ColorModeHSV
)

// Effect selects how the bulb transitions to a new state.
type Effect string

const (
	Sudden Effect = "sudden"
	Smooth Effect = "smooth"
)

type bulbInfo struct {
	addr            netip.AddrPort
	id              string
	name            string
	model           string
	firmwareVersion string
	support         []string

	power            PowerStatus
	brightness       uint8
	colorMode        ColorMode
	colorTemperature uint16
	rgb              uint
	hue              uint16
	saturation       uint8
}

func (bi *bulbInfo) Addr() netip.AddrPort {
	return bi.addr
}

func (bi *bulbInfo) ID() string {
	return bi.id
}

func (bi *bulbInfo) Name() string {
	return bi.name
}

func (bi *bulbInfo) Model() string {
	return bi.model
}

func (bi *bulbInfo) FirmwareVersion() string {
	return bi.firmwareVersion
}

func (bi *bulbInfo) Power() PowerStatus {
	return bi.power
}

func (bi *bulbInfo) Brightness() uint8 {
	return bi.brightness
}

func (bi *bulbInfo) RGB() uint {
	return bi.rgb
}

// Supports reports whether the bulb advertised method during discovery.
// Bulbs added by address advertise nothing and are assumed to support everything.
func (bi *bulbInfo) Supports(method string) bool {
	if len(bi.support) == 0 {
		return true
	}
	for _, m := range bi.support {
		if m == method {
			return true
		}
	}
	return false
}

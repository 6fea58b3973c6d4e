package yeelight

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const (
	// yeelight discover message for SSDP
	discoverMSG = "M-SEARCH * HTTP/1.1\r\n HOST:239.255.255.250:1982\r\n MAN:\"ssdp:discover\"\r\n ST:wifi_bulb\r\n"
	// timeout value for TCP and UDP commands
	timeout = time.Second * 3
	// SSDP discover address
	ssdpAddress = "239.255.255.250:1982"
	// line ending (CRLF)
	lineEnding = "\r\n"
	// default TCP port
	defaultBulbPort = 55443
)

func NewBulbFromAddress(address string) (*Bulb, error) {
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, strconv.Itoa(defaultBulbPort))
	}

	addr, err := netip.ParseAddrPort(address)
	if err != nil {
		return nil, eris.Wrap(err, "failed to parse bulb address")
	}

	return newBulb(addr), nil
}

// Discover multicasts an SSDP search and collects every bulb that answers before
// the timeout. Bulbs answering more than once are reported once.
func Discover(ctx context.Context) ([]*Bulb, error) {
	udpAddr, err := net.ResolveUDPAddr("udp4", ssdpAddress)
	if err != nil {
		return nil, eris.Wrap(err, "failed to resolve SSDP address")
	}

	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return nil, eris.Wrap(err, "failed to open SSDP socket")
	}
	defer conn.Close()

	if _, err = conn.WriteToUDP([]byte(discoverMSG), udpAddr); err != nil {
		return nil, eris.Wrap(err, "failed to write discover message to SSDP address")
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, eris.Wrap(err, "failed to set read deadline for SSDP connection")
	}

	bulbs := make([]*Bulb, 0)
	seen := make(map[string]struct{})
	buf := make([]byte, 2048)
	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "discovery cancelled")
		}

		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				break
			}
			return nil, eris.Wrap(err, "failed to read from SSDP connection")
		}

		bulb, err := parseDiscoveryResponse(string(buf[:n]))
		if err != nil {
			return nil, err
		}
		if bulb == nil {
			continue
		}

		key := bulb.ID()
		if key == "" {
			key = bulb.Addr().String()
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		bulbs = append(bulbs, bulb)
	}

	return bulbs, nil
}

// parseDiscoveryResponse reads one SSDP answer. It returns nil when the answer has no bulb location.
func parseDiscoveryResponse(resp string) (*Bulb, error) {
	var bulb *Bulb
	for line := range strings.SplitSeq(resp, lineEnding) {
		if address, found := strings.CutPrefix(line, "Location: yeelight://"); found {
			addr, err := netip.ParseAddrPort(address)
			if err != nil {
				return nil, eris.Wrap(err, "failed to parse bulb address")
			}
			bulb = newBulb(addr)
			continue
		}
		if bulb == nil {
			continue
		}

		key, value, found := strings.Cut(line, ": ")
		if !found {
			continue
		}

		switch key {
		case "id":
			bulb.id = value
		case "support":
			bulb.support = strings.Split(value, " ")
		case "power":
			bulb.power = PowerStatus(value)
		case "name":
			bulb.name = value
		case "model":
			bulb.model = value
		case "fw_ver":
			bulb.firmwareVersion = value
		case "bright":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil {
				return nil, eris.Wrap(err, "failed to convert brightness to uint8")
			}
			bulb.brightness = uint8(v)
		case "color_mode":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil {
				return nil, eris.Wrap(err, "failed to convert color mode to uint8")
			}
			bulb.colorMode = ColorMode(v)
		case "ct":
			v, err := strconv.ParseUint(value, 10, 16)
			if err != nil {
				return nil, eris.Wrap(err, "failed to convert color temperature to uint16")
			}
			bulb.colorTemperature = uint16(v)
		case "rgb":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return nil, eris.Wrap(err, "failed to convert RGB to uint32")
			}
			bulb.rgb = uint(v)
		case "hue":
			v, err := strconv.ParseUint(value, 10, 16)
			if err != nil {
				return nil, eris.Wrap(err, "failed to convert hue to uint16")
			}
			bulb.hue = uint16(v)
		case "sat":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil {
				return nil, eris.Wrap(err, "failed to convert saturation to uint8")
			}
			bulb.saturation = uint8(v)
		}
	}

	return bulb, nil
}

package yeelight

import (
	"context"
	"log/slog"
	"net"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/cybre/spectrum-lights/internal/utils"
)

type bulbBase struct {
	*bulbInfo

	conn          net.Conn
	mu            sync.Mutex
	lastCommandID int

	commandCallback func(context.Context, command) ([]string, error)
}

func (bb *bulbBase) Disconnect() error {
	if bb.conn == nil {
		return nil
	}
	return bb.conn.Close()
}

func (bb *bulbBase) TurnOn(ctx context.Context, effect Effect, duration int) error {
	if _, err := bb.executeCommand(ctx, "set_power", "on", effect, duration); err != nil {
		return err
	}

	bb.power = PowerOn

	return nil
}

func (bb *bulbBase) TurnOff(ctx context.Context, effect Effect, duration int) error {
	if _, err := bb.executeCommandBase(ctx, "set_power", "off", effect, duration); err != nil {
		return err
	}

	bb.power = PowerOff

	return nil
}

func (bb *bulbBase) SetBrightness(ctx context.Context, brightness uint8, effect Effect, duration int) error {
	if brightness < 1 || brightness > 100 {
		return eris.Wrap(ErrBrightnessInvalid, "failed to set brightness")
	}

	if _, err := bb.executeCommand(ctx, "set_bright", brightness, effect, duration); err != nil {
		return err
	}

	bb.brightness = brightness

	return nil
}

func (bb *bulbBase) SetRGB(ctx context.Context, r, g, b uint8, effect Effect, duration int) error {
	rgb := utils.RGBToInt(r, g, b)

	if _, err := bb.executeCommand(ctx, "set_rgb", rgb, effect, duration); err != nil {
		return err
	}

	bb.rgb = rgb

	return nil
}

func (bb *bulbBase) executeCommand(ctx context.Context, method string, params ...any) ([]string, error) {
	command, err := bb.executeCommandBase(ctx, method, params...)
	if err != nil {
		return nil, err
	}

	return bb.commandCallback(ctx, command)
}

func (bb *bulbBase) executeCommandBase(ctx context.Context, method string, params ...any) (command, error) {
	select {
	case <-ctx.Done():
		return command{}, eris.Wrap(ctx.Err(), "failed to execute command")
	default:
	}

	if bb.conn == nil {
		return command{}, eris.New("bulb is not connected")
	}

	bb.mu.Lock()
	defer bb.mu.Unlock()

	cmd := newCommand(bb.getCommandID(), method, params...)
	commandText, err := cmd.String()
	if err != nil {
		return command{}, err
	}

	slog.Debug("executing command",
		slog.String("addr", bb.Addr().String()),
		slog.Int("id", cmd.ID),
		slog.String("method", method),
		slog.Any("params", cmd.Params),
	)

	if _, err = bb.conn.Write([]byte(commandText)); err != nil {
		return command{}, eris.Wrap(err, "failed to write command to connection")
	}

	return cmd, nil
}

func (bb *bulbBase) getCommandID() int {
	bb.lastCommandID++

	return bb.lastCommandID
}

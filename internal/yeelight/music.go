package yeelight

import (
	"context"
	"net"
)

// MusicModeBulb talks to a bulb over the reverse connection it opens in music mode.
// The bulb never answers on this connection and applies no rate limit, so commands
// are fire-and-forget.
type MusicModeBulb struct {
	bulbBase
}

func newMusicModeBulb(info *bulbInfo, conn net.Conn) *MusicModeBulb {
	return &MusicModeBulb{
		bulbBase: bulbBase{
			bulbInfo: info,
			conn:     conn,
			commandCallback: func(context.Context, command) ([]string, error) {
				return nil, nil
			},
		},
	}
}

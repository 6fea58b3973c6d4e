package yeelight

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestGetCommandExecutionCallbackSuccess(t *testing.T) {
	results := make(chan commandResult, 1)
	callback := getCommandExecutionCallback(results, 50*time.Millisecond)

	cmd := command{ID: 1}
	results <- commandResult{ID: 1, Result: []string{"value"}}

	resp, err := callback(context.Background(), cmd)
	assert.NoError(t, err)
	assert.Equal(t, []string{"value"}, resp)
}

func TestGetCommandExecutionCallbackError(t *testing.T) {
	results := make(chan commandResult, 1)
	callback := getCommandExecutionCallback(results, 50*time.Millisecond)

	cmd := command{ID: 2, Method: "test", Params: []any{"a"}}
	results <- commandResult{
		ID:    2,
		Error: &commandError{Code: 500, Message: "boom"},
	}

	_, err := callback(context.Background(), cmd)
	assert.Error(t, err)
}

func TestGetCommandExecutionCallbackTimeout(t *testing.T) {
	results := make(chan commandResult)
	callback := getCommandExecutionCallback(results, 30*time.Millisecond)

	_, err := callback(context.Background(), command{ID: 3})
	assert.Error(t, err)
}

func TestGetCommandExecutionCallbackSkipsStaleResults(t *testing.T) {
	results := make(chan commandResult, 2)
	callback := getCommandExecutionCallback(results, 50*time.Millisecond)

	results <- commandResult{ID: 3, Result: []string{"ok"}}
	results <- commandResult{ID: 4, Result: []string{"on", "100"}}

	resp, err := callback(context.Background(), command{ID: 4})
	assert.NoError(t, err)
	assert.Equal(t, []string{"on", "100"}, resp)
}

func TestGetCommandExecutionCallbackCancelled(t *testing.T) {
	results := make(chan commandResult)
	callback := getCommandExecutionCallback(results, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := callback(ctx, command{ID: 5, Method: "set_rgb"})
	assert.True(t, eris.Is(err, context.Canceled))
}

func TestUpdatePropertiesFromSlice(t *testing.T) {
	bulb := newBulb(netip.MustParseAddrPort("10.0.0.2:55443"))
	bulb.updatePropertiesFromSlice([]string{"on", "80", "1", "4000", "255", "0", "0", "desk"}, "10.0.0.2:55443")

	assert.Equal(t, PowerOn, bulb.Power())
	assert.Equal(t, uint8(80), bulb.Brightness())
	assert.Equal(t, uint(255), bulb.RGB())
	assert.Equal(t, "desk", bulb.Name())
}

func TestStartMusicModeRequiresSupport(t *testing.T) {
	bulb := newBulb(netip.MustParseAddrPort("10.0.0.2:55443"))
	bulb.support = []string{"get_prop", "set_power", "set_bright"}

	_, err := bulb.StartMusicMode(context.Background(), 55000)
	assert.True(t, eris.Is(err, ErrMusicModeUnsupported))

	bulb.support = append(bulb.support, "set_music")
	_, err = bulb.StartMusicMode(context.Background(), 55000)
	assert.False(t, eris.Is(err, ErrMusicModeUnsupported))
	assert.Error(t, err)
}

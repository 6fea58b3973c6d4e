package hue

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cybre/spectrum-lights/internal/gradient"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]any
}

type fakeBridge struct {
	mu       sync.Mutex
	requests []recordedRequest
	reply    string
	// failPath answers with a bridge error for one state path.
	failPath string
}

func (b *fakeBridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	b.mu.Lock()
	b.requests = append(b.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: body})
	b.mu.Unlock()

	if r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/lights") {
		_, _ = io.WriteString(w, `{
			"10": {"name": "Miv 2", "state": {"on": false}},
			"2":  {"name": "Miv 1", "state": {"on": true}},
			"3":  {"name": "Hall", "state": {"on": true}}
		}`)
		return
	}

	reply := b.reply
	if b.failPath != "" && r.URL.Path == b.failPath {
		reply = `[{"error": {"type": 201, "address": "/lights/2/state/bri", "description": "light is off"}}]`
	}
	if reply == "" {
		reply = `[{"success": {}}]`
	}
	_, _ = io.WriteString(w, reply)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, bridge *fakeBridge) *Client {
	t.Helper()
	server := httptest.NewServer(bridge)
	t.Cleanup(server.Close)
	return NewClient(strings.TrimPrefix(server.URL, "http://"), "user", server.Client(), discardLogger())
}

func TestLightsSortedByID(t *testing.T) {
	client := newTestClient(t, &fakeBridge{})

	lights, err := client.Lights(context.Background())
	require.NoError(t, err)
	require.Len(t, lights, 3)
	assert.Equal(t, []string{"2", "3", "10"}, []string{lights[0].ID, lights[1].ID, lights[2].ID})
	assert.Equal(t, "Miv 1", lights[0].Name)
	assert.True(t, lights[0].On)
}

func TestLightsUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"error": {"type": 1, "address": "/lights", "description": "unauthorized user"}}]`)
	}))
	defer server.Close()

	client := NewClient(strings.TrimPrefix(server.URL, "http://"), "nobody", server.Client(), discardLogger())
	_, err := client.Lights(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized user")
}

func TestSetStateError(t *testing.T) {
	client := newTestClient(t, &fakeBridge{
		reply: `[{"error": {"type": 201, "address": "/lights/2/state/xy", "description": "light is off"}}]`,
	})

	xy := [2]float64{0.3, 0.3}
	err := client.SetState(context.Background(), "2", State{XY: &xy})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "light is off")
}

func TestSelectLights(t *testing.T) {
	all := []Light{{ID: "1", Name: "Miv 1"}, {ID: "2", Name: "Miv 2"}, {ID: "3", Name: "Hall"}}

	selected, err := SelectLights(all, nil)
	require.NoError(t, err)
	assert.Equal(t, all, selected)

	selected, err = SelectLights(all, []string{"Miv 2", "Miv 1"})
	require.NoError(t, err)
	assert.Equal(t, []Light{{ID: "2", Name: "Miv 2"}, {ID: "1", Name: "Miv 1"}}, selected)

	_, err = SelectLights(all, []string{"Kitchen"})
	assert.True(t, eris.Is(err, ErrLightNotFound))
}

func TestSinkCommands(t *testing.T) {
	bridge := &fakeBridge{}
	client := newTestClient(t, bridge)
	sink := NewSink(client, []Light{{ID: "2"}, {ID: "10"}}, 1)
	ctx := context.Background()

	require.NoError(t, sink.PowerOn(ctx))
	require.NoError(t, sink.SetColor(ctx, 1, gradient.Point{X: 0.25, Y: 0.5}))
	require.NoError(t, sink.SetBrightness(ctx, 200))
	assert.Error(t, sink.SetColor(ctx, 2, gradient.Point{}))
	assert.Equal(t, 2, sink.Len())

	bridge.mu.Lock()
	defer bridge.mu.Unlock()
	require.Len(t, bridge.requests, 5)

	assert.Equal(t, "/api/user/lights/2/state", bridge.requests[0].Path)
	assert.Equal(t, true, bridge.requests[0].Body["on"])
	assert.Equal(t, float64(1), bridge.requests[0].Body["transitiontime"])

	color := bridge.requests[2]
	assert.Equal(t, http.MethodPut, color.Method)
	assert.Equal(t, "/api/user/lights/10/state", color.Path)
	assert.Equal(t, []any{0.25, 0.5}, color.Body["xy"])
	assert.NotContains(t, color.Body, "bri")

	assert.Equal(t, float64(200), bridge.requests[3].Body["bri"])
	assert.Equal(t, float64(200), bridge.requests[4].Body["bri"])
	assert.Equal(t, "/api/user/lights/10/state", bridge.requests[4].Path)
}

func TestSinkBrightnessReachesEveryLight(t *testing.T) {
	bridge := &fakeBridge{failPath: "/api/user/lights/2/state"}
	client := newTestClient(t, bridge)
	sink := NewSink(client, []Light{{ID: "2"}, {ID: "3"}, {ID: "10"}}, 1)

	err := sink.SetBrightness(context.Background(), 120)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "light is off")

	bridge.mu.Lock()
	defer bridge.mu.Unlock()
	require.Len(t, bridge.requests, 3)
	assert.Equal(t, "/api/user/lights/3/state", bridge.requests[1].Path)
	assert.Equal(t, "/api/user/lights/10/state", bridge.requests[2].Path)
	assert.Equal(t, float64(120), bridge.requests[2].Body["bri"])
}

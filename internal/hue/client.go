// Package hue talks to a Philips Hue bridge over its local REST API.
package hue

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

const requestTimeout = 3 * time.Second

// ErrLightNotFound is returned by SelectLights for a name the bridge does not know.
var ErrLightNotFound = eris.New("light not found on bridge")

// Light is a light registered on the bridge.
type Light struct {
	ID   string
	Name string
	On   bool
}

// State is a partial light state. Nil fields are left untouched by the bridge.
type State struct {
	On             *bool       `json:"on,omitempty"`
	XY             *[2]float64 `json:"xy,omitempty"`
	Brightness     *int        `json:"bri,omitempty"`
	TransitionTime *int        `json:"transitiontime,omitempty"`
}

type apiError struct {
	Type        int    `json:"type"`
	Address     string `json:"address"`
	Description string `json:"description"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s: %s (%d)", e.Address, e.Description, e.Type)
}

type apiResult struct {
	Success map[string]any `json:"success"`
	Error   *apiError      `json:"error"`
}

type lightResource struct {
	Name  string `json:"name"`
	State struct {
		On bool `json:"on"`
	} `json:"state"`
}

// Client issues requests against one bridge using an already-paired username.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient returns a client for the bridge at host (ip or ip:port). A nil
// httpClient gets a default with a short timeout.
func NewClient(host, username string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	return &Client{
		baseURL: fmt.Sprintf("http://%s/api/%s", host, username),
		http:    httpClient,
		logger:  logger,
	}
}

// Lights lists every light on the bridge ordered by numeric id.
func (c *Client) Lights(ctx context.Context) ([]Light, error) {
	body, err := c.do(ctx, http.MethodGet, "/lights", nil)
	if err != nil {
		return nil, err
	}

	// An unpaired username gets a 200 with an error array instead of an object.
	var failures []apiResult
	if json.Unmarshal(body, &failures) == nil {
		for _, f := range failures {
			if f.Error != nil {
				return nil, eris.Wrap(f.Error, "failed to list lights")
			}
		}
	}

	var resources map[string]lightResource
	if err := json.Unmarshal(body, &resources); err != nil {
		return nil, eris.Wrap(err, "failed to decode lights")
	}

	lights := make([]Light, 0, len(resources))
	for id, res := range resources {
		lights = append(lights, Light{ID: id, Name: res.Name, On: res.State.On})
	}
	slices.SortFunc(lights, func(a, b Light) int {
		ai, aErr := strconv.Atoi(a.ID)
		bi, bErr := strconv.Atoi(b.ID)
		if aErr == nil && bErr == nil {
			return cmp.Compare(ai, bi)
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return lights, nil
}

// SetState applies state to the light with the given id.
func (c *Client) SetState(ctx context.Context, id string, state State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return eris.Wrap(err, "failed to marshal light state")
	}

	body, err := c.do(ctx, http.MethodPut, "/lights/"+id+"/state", payload)
	if err != nil {
		return err
	}

	var results []apiResult
	if err := json.Unmarshal(body, &results); err != nil {
		return eris.Wrap(err, "failed to decode state response")
	}
	for _, r := range results {
		if r.Error != nil {
			return eris.Wrapf(r.Error, "failed to set state of light %s", id)
		}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, eris.Wrap(err, "failed to build bridge request")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("bridge request",
		slog.String("method", method),
		slog.String("path", path),
		slog.String("body", string(payload)),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "bridge request %s %s", method, path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "failed to read bridge response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("bridge returned %s for %s %s", resp.Status, method, path)
	}
	return body, nil
}

// SelectLights picks lights by name in the order given. An empty names list selects
// every light.
func SelectLights(all []Light, names []string) ([]Light, error) {
	if len(names) == 0 {
		return all, nil
	}

	byName := make(map[string]Light, len(all))
	for _, l := range all {
		byName[l.Name] = l
	}

	selected := make([]Light, 0, len(names))
	for _, name := range names {
		l, ok := byName[name]
		if !ok {
			return nil, eris.Wrapf(ErrLightNotFound, "%q", name)
		}
		selected = append(selected, l)
	}
	return selected, nil
}

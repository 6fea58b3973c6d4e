package lights

import (
	"context"
	"sync"

	"github.com/cybre/spectrum-lights/internal/gradient"
)

// Command is one call received by a Recorder.
type Command struct {
	Light      int
	Color      *gradient.Point
	Brightness int
}

// Recorder is an in-memory Sink that keeps every command it receives.
// It backs the --dry-run mode and tests.
type Recorder struct {
	mu       sync.Mutex
	lights   int
	commands []Command
}

// NewRecorder returns a Recorder pretending to drive n lights.
func NewRecorder(n int) *Recorder {
	return &Recorder{lights: n}
}

func (r *Recorder) SetColor(_ context.Context, light int, p gradient.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, Command{Light: light, Color: &p})
	return nil
}

func (r *Recorder) SetBrightness(_ context.Context, brightness int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, Command{Light: -1, Brightness: brightness})
	return nil
}

func (r *Recorder) Len() int {
	return r.lights
}

// Commands returns a copy of the commands received so far.
func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Command, len(r.commands))
	copy(out, r.commands)
	return out
}

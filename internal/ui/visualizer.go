package ui

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/crazy3lf/colorconv"

	"github.com/cybre/spectrum-lights/internal/gradient"
	"github.com/cybre/spectrum-lights/internal/lights"
	"github.com/cybre/spectrum-lights/internal/scheduler"
	"github.com/cybre/spectrum-lights/internal/utils"
)

// VisualizerFrame is what the terminal view renders for one controller step.
type VisualizerFrame struct {
	Colors         []gradient.Point
	Brightness     int
	BrightnessMin  int
	BrightnessMax  int
	FrameSum       float64
	Baseline       float64
	Updated        bool
	RollingCounter int
	HistoryLen     int
	Bins           []float64
}

// Ratio is the frame energy relative to the baseline, or 0 before a baseline exists.
func (f VisualizerFrame) Ratio() float64 {
	if f.Baseline <= 0 {
		return 0
	}
	return f.FrameSum / f.Baseline
}

type Visualizer struct {
	program   *tea.Program
	mu        sync.Mutex
	lastSend  time.Time
	throttle  time.Duration
	closeOnce sync.Once

	brightnessMin int
	brightnessMax int
	maxRatio      float64
}

var _ scheduler.Observer = (*Visualizer)(nil)

type frameMsg struct {
	frame      VisualizerFrame
	receivedAt time.Time
}

type visualizerModel struct {
	frame       VisualizerFrame
	maxRatio    float64
	lastUpdated time.Time
	ready       bool
	width       int
	height      int
	onExit      func()
	exitOnce    sync.Once
}

var (
	vizContainerStyle      = lipgloss.NewStyle().Padding(0, 2)
	vizTimestampStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	vizMetricLabelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	vizMetricValueStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	vizUpdateActiveStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("197")).Bold(true)
	vizUpdateInactiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	vizWaitingStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	vizHintStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
)

const (
	vizBarWidth   = 32
	swatchBlocks  = 6
	renderLatency = 45 * time.Millisecond
)

var spectrumLevels = []string{" ", "▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"}

// NewVisualizer starts the terminal view. maxRatio is the energy/baseline ratio
// drawn as a full bar.
func NewVisualizer(onExit func(), brightnessMin, brightnessMax int, maxRatio float64) *Visualizer {
	model := &visualizerModel{onExit: onExit, maxRatio: maxRatio}
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithoutSignalHandler())

	v := &Visualizer{
		program:       program,
		throttle:      renderLatency,
		brightnessMin: brightnessMin,
		brightnessMax: brightnessMax,
		maxRatio:      maxRatio,
	}

	go program.Run()

	return v
}

// Observe forwards a scheduler snapshot, dropping it when the last one was sent
// less than the render latency ago.
func (v *Visualizer) Observe(s scheduler.Snapshot) {
	v.Update(VisualizerFrame{
		Colors:         s.Colors,
		Brightness:     s.Brightness,
		BrightnessMin:  v.brightnessMin,
		BrightnessMax:  v.brightnessMax,
		FrameSum:       s.FrameSum,
		Baseline:       s.Baseline,
		Updated:        s.Updated,
		RollingCounter: s.RollingCounter,
		HistoryLen:     s.HistoryLen,
		Bins:           s.Bins,
	})
}

func (v *Visualizer) Update(frame VisualizerFrame) {
	v.mu.Lock()
	if time.Since(v.lastSend) < v.throttle {
		v.mu.Unlock()
		return
	}
	v.lastSend = time.Now()
	v.mu.Unlock()

	v.program.Send(frameMsg{
		frame:      frame,
		receivedAt: time.Now(),
	})
}

func (v *Visualizer) Close() {
	v.closeOnce.Do(func() {
		v.program.Quit()
	})
}

func (m *visualizerModel) Init() tea.Cmd {
	return nil
}

func (m *visualizerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case frameMsg:
		m.frame = msg.frame
		m.lastUpdated = msg.receivedAt
		m.ready = true
	case tea.KeyMsg:
		switch {
		case msg.Type == tea.KeyCtrlC:
			m.invokeExit()
			return m, tea.Quit
		case msg.String() == "q", msg.String() == "esc":
			m.invokeExit()
			return m, tea.Quit
		}
	case tea.QuitMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m *visualizerModel) View() string {
	body := ""
	if !m.ready {
		header := titleStyle.Render("Spectrum Lights")
		waiting := vizWaitingStyle.Render("Waiting for audio frames…")
		body = lipgloss.JoinVertical(lipgloss.Left, header, "", waiting)
	} else {
		body = renderVisualizerView(m.frame, m.maxRatio, m.width, m.lastUpdated)
	}
	return vizContainerStyle.Render(body)
}

func renderVisualizerView(frame VisualizerFrame, maxRatio float64, width int, updatedAt time.Time) string {
	header := renderHeader(frame, updatedAt)
	metrics := renderMetrics(frame)
	swatches := renderLightSwatches(frame)
	bars := renderBars(frame, maxRatio)
	spectrum := renderSpectrum(frame.Bins, width)
	controls := vizHintStyle.Render("Press q / esc / ctrl+c to stop")

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		metrics,
		"",
		swatches,
		"",
		bars,
		"",
		spectrum,
		"",
		controls,
	)
}

func renderHeader(frame VisualizerFrame, updatedAt time.Time) string {
	style := titleStyle
	if len(frame.Colors) > 0 {
		style = style.Foreground(lipgloss.Color(lights.XYToHex(frame.Colors[0])))
	}

	title := style.Render("Spectrum Lights")
	timestamp := vizTimestampStyle.Render(updatedAt.Format("15:04:05.000"))

	return lipgloss.JoinHorizontal(lipgloss.Left, title, "  ", timestamp)
}

func renderMetrics(frame VisualizerFrame) string {
	brightness := renderMetric("Brightness", fmt.Sprintf("%3d/%d", frame.Brightness, frame.BrightnessMax))
	energy := renderMetric("Energy", fmt.Sprintf("%8.0f", frame.FrameSum))
	baseline := renderMetric("Baseline", fmt.Sprintf("%8.0f", frame.Baseline))

	update := renderUpdateMetric(frame)
	counter := renderMetric("Rotation", fmt.Sprintf("%d", frame.RollingCounter))
	history := renderMetric("History", fmt.Sprintf("%d", frame.HistoryLen))

	top := lipgloss.JoinHorizontal(lipgloss.Left, brightness, "   ", energy, "   ", baseline)
	bottom := lipgloss.JoinHorizontal(lipgloss.Left, update, "   ", counter, "   ", history)

	return lipgloss.JoinVertical(lipgloss.Left, top, bottom)
}

func renderMetric(label, value string) string {
	return lipgloss.JoinHorizontal(
		lipgloss.Left,
		vizMetricLabelStyle.Render(label+":"),
		" ",
		vizMetricValueStyle.Render(value),
	)
}

func renderUpdateMetric(frame VisualizerFrame) string {
	marker := vizUpdateInactiveStyle.Render("○ silent")
	if frame.Updated {
		marker = vizUpdateActiveStyle.Render("● active")
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Left,
		vizMetricLabelStyle.Render("Step:"),
		" ",
		marker,
	)
}

func renderLightSwatches(frame VisualizerFrame) string {
	if len(frame.Colors) == 0 {
		return vizWaitingStyle.Render("No light colors yet")
	}

	rows := make([]string, len(frame.Colors))
	for i, p := range frame.Colors {
		color := lipgloss.Color(lights.XYToHex(p))
		swatch := lipgloss.NewStyle().Background(color).Render(strings.Repeat("  ", swatchBlocks))
		info := vizMetricValueStyle.Render(fmt.Sprintf("x:%.3f y:%.3f", p.X, p.Y))

		rows[i] = lipgloss.JoinHorizontal(
			lipgloss.Left,
			subtitleStyle.Render(fmt.Sprintf("Light %-2d", i+1)),
			"  ",
			swatch,
			"  ",
			info,
		)
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderBars(frame VisualizerFrame, maxRatio float64) string {
	span := float64(frame.BrightnessMax - frame.BrightnessMin)
	brightness := 0.0
	if span > 0 {
		brightness = float64(frame.Brightness-frame.BrightnessMin) / span
	}

	ratio := 0.0
	if maxRatio > 0 {
		ratio = frame.Ratio() / maxRatio
	}

	lines := []string{
		renderBar("Brightness", brightness, vizThemes["Brightness"]),
		renderBar("Energy/Base", ratio, vizThemes["Energy"]),
	}
	return strings.Join(lines, "\n")
}

// renderSpectrum draws one column per bin, scaled to the loudest bin.
func renderSpectrum(bins []float64, width int) string {
	if len(bins) == 0 {
		return ""
	}

	peak := 0.0
	for _, v := range bins {
		peak = math.Max(peak, v)
	}

	columns := len(bins)
	if width > 0 && columns > width-16 && width > 16 {
		columns = width - 16
	}

	builder := strings.Builder{}
	builder.WriteString(vizThemes["Spectrum"].LabelStyle.Render(fmt.Sprintf("%-14s", "Spectrum")))
	builder.WriteString(" ")
	for i := range columns {
		level := 0.0
		if peak > 0 {
			level = bins[i] / peak
		}
		idx := utils.ClampIndex(int(math.Round(level*float64(len(spectrumLevels)-1))), len(spectrumLevels))
		hue := 360 * float64(i) / float64(columns)
		color := lipgloss.Color(hexColorFromHSV(hue, 0.85, utils.Lerp(0.45, 1, level)))
		builder.WriteString(lipgloss.NewStyle().Foreground(color).Render(spectrumLevels[idx]))
	}
	return builder.String()
}

func renderBar(label string, value float64, theme barTheme) string {
	theme = normalizeBarTheme(theme)

	clamped := utils.Clamp(value, 0.0, 1.0)
	filled := int(math.Round(clamped * vizBarWidth))
	if clamped > 0 && filled == 0 {
		filled = 1
	}
	if filled > vizBarWidth {
		filled = vizBarWidth
	}

	builder := strings.Builder{}
	builder.Grow(128)
	builder.WriteString(theme.LabelStyle.Render(fmt.Sprintf("%-14s", label)))
	builder.WriteString(" [")

	if filled > 0 {
		steps := filled - 1
		if steps <= 0 {
			steps = 1
		}
		for i := 0; i < filled; i++ {
			progress := float64(i) / float64(steps)
			hue := theme.HueStart + (theme.HueEnd-theme.HueStart)*progress
			value := utils.Clamp(theme.ValueBase+theme.ValueSpan*progress, 0.0, 1.0)
			color := lipgloss.Color(hexColorFromHSV(hue, theme.Saturation, value))
			builder.WriteString(lipgloss.NewStyle().
				Foreground(color).
				Render(theme.FilledChar))
		}
	}

	empty := vizBarWidth - filled
	if empty > 0 {
		emptyBlock := theme.EmptyStyle.Render(theme.EmptyChar)
		for range empty {
			builder.WriteString(emptyBlock)
		}
	}

	builder.WriteString("] ")
	builder.WriteString(theme.ValueStyle.Render(fmt.Sprintf("%3.0f%%", clamped*100)))

	return builder.String()
}

type barTheme struct {
	LabelStyle lipgloss.Style
	ValueStyle lipgloss.Style
	EmptyStyle lipgloss.Style

	HueStart   float64
	HueEnd     float64
	Saturation float64
	ValueBase  float64
	ValueSpan  float64

	FilledChar string
	EmptyChar  string
}

var defaultBarTheme = barTheme{
	LabelStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
	ValueStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
	EmptyStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("236")),
	HueStart:   210,
	HueEnd:     210,
	Saturation: 0.8,
	ValueBase:  0.35,
	ValueSpan:  0.45,
	FilledChar: "█",
	EmptyChar:  "░",
}

var vizThemes = map[string]barTheme{
	"Brightness": {
		LabelStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true),
		ValueStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("229")),
		EmptyStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("236")),
		HueStart:   40,
		HueEnd:     60,
		Saturation: 0.9,
		ValueBase:  0.35,
		ValueSpan:  0.6,
	},
	"Energy": {
		LabelStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("45")).Bold(true),
		ValueStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("159")),
		EmptyStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		HueStart:   190,
		HueEnd:     140,
		Saturation: 0.85,
		ValueBase:  0.35,
		ValueSpan:  0.55,
		FilledChar: "█",
		EmptyChar:  "░",
	},
	"Spectrum": {
		LabelStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("177")).Bold(true),
	},
}

func normalizeBarTheme(theme barTheme) barTheme {
	if theme.FilledChar == "" {
		theme.FilledChar = defaultBarTheme.FilledChar
	}
	if theme.EmptyChar == "" {
		theme.EmptyChar = defaultBarTheme.EmptyChar
	}
	if theme.Saturation <= 0 {
		theme.Saturation = defaultBarTheme.Saturation
	}
	if theme.ValueSpan <= 0 {
		theme.ValueSpan = defaultBarTheme.ValueSpan
	}
	if theme.ValueBase <= 0 {
		theme.ValueBase = defaultBarTheme.ValueBase
	}
	return theme
}

func hexColorFromHSV(h, s, v float64) string {
	s = utils.Clamp(s, 0.0, 1.0)
	v = utils.Clamp(v, 0.0, 1.0)
	r, g, b, err := colorconv.HSVToRGB(h, s, v)
	if err != nil {
		return "#FFFFFF"
	}
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func (m *visualizerModel) invokeExit() {
	m.exitOnce.Do(func() {
		if m.onExit != nil {
			m.onExit()
		}
	})
}

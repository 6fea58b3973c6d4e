package ui

import (
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rotisserie/eris"
	"golang.org/x/term"

	"github.com/cybre/spectrum-lights/internal/utils"
)

var (
	ErrSelectionAborted = eris.New("selection aborted")
	ErrNoInteractiveTTY = eris.New("no interactive terminal available")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("213")).
			Bold(true)
	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("246"))
	pointerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("213"))
	inactivePointerStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))
	itemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))
	selectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("219")).
				Bold(true)
	instructionKeyStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("213")).
				Bold(true)
	instructionTextStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))
	instructionDividerStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))
	summaryLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("246"))
	summaryValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Bold(true)
	emptyStateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

type Option struct {
	Label string
}

type SetupConfig struct {
	RequireLights bool
	RequireDevice bool
	InitialLights []int
	InitialDevice int
}

type SetupResult struct {
	LightIndexes []int
	DeviceIndex  int
}

// RunSetup asks for the lights to drive (multi-select, in list order) and the
// audio input device. Steps that are not required are skipped.
func RunSetup(lights []Option, devices []Option, cfg SetupConfig) (SetupResult, error) {
	if !cfg.RequireLights && !cfg.RequireDevice {
		return SetupResult{
			LightIndexes: validIndexes(cfg.InitialLights, len(lights)),
			DeviceIndex:  utils.ClampIndex(cfg.InitialDevice, len(devices)),
		}, nil
	}

	if !isInteractiveTerminal() {
		return SetupResult{}, ErrNoInteractiveTTY
	}

	program := tea.NewProgram(newSetupModel(lights, devices, cfg))
	finalModel, err := program.Run()
	if err != nil {
		return SetupResult{}, err
	}

	result := finalModel.(setupModel)
	if result.err != nil {
		return SetupResult{}, result.err
	}

	return result.result(), nil
}

type setupStep int

const (
	stepSelectLights setupStep = iota
	stepSelectDevice
	stepConfirm
	stepDone
)

type setupModel struct {
	step    setupStep
	cfg     SetupConfig
	lights  []Option
	devices []Option

	cursor      int
	chosen      map[int]bool
	deviceIndex int
	err         error
}

func newSetupModel(lights []Option, devices []Option, cfg SetupConfig) setupModel {
	m := setupModel{
		lights:      lights,
		devices:     devices,
		cfg:         cfg,
		chosen:      make(map[int]bool),
		deviceIndex: utils.ClampIndex(cfg.InitialDevice, len(devices)),
	}
	for _, idx := range validIndexes(cfg.InitialLights, len(lights)) {
		m.chosen[idx] = true
	}

	switch {
	case cfg.RequireLights && len(lights) > 0:
		m.step = stepSelectLights
	case cfg.RequireDevice && len(devices) > 0:
		m.step = stepSelectDevice
		m.cursor = m.deviceIndex
	default:
		m.step = stepConfirm
	}

	return m
}

func (m setupModel) Init() tea.Cmd {
	return nil
}

func (m setupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.step == stepDone {
		return m, tea.Quit
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "ctrl+c", "esc", "q":
		m.err = ErrSelectionAborted
		return m, tea.Quit
	case "up", "k":
		if items := m.currentItems(); len(items) > 0 {
			m.cursor = utils.WrapIndex(m.cursor-1, len(items))
		}
	case "down", "j":
		if items := m.currentItems(); len(items) > 0 {
			m.cursor = utils.WrapIndex(m.cursor+1, len(items))
		}
	case " ", "x":
		if m.step == stepSelectLights {
			m.toggle(m.cursor)
		}
	case "a":
		if m.step == stepSelectLights {
			all := len(m.chosen) < len(m.lights)
			for i := range m.lights {
				m.setChosen(i, all)
			}
		}
	case "tab", "right", "l":
		switch m.step {
		case stepSelectLights:
			m.ensureLight()
			m.advanceFromLights()
		case stepSelectDevice:
			m.deviceIndex = m.cursor
			m.step = stepConfirm
			m.cursor = 0
		}
	case "shift+tab", "left", "h", "backspace", "b":
		m.back()
	case "enter":
		switch m.step {
		case stepSelectLights:
			m.ensureLight()
			m.advanceFromLights()
		case stepSelectDevice:
			m.deviceIndex = m.cursor
			m.step = stepConfirm
			m.cursor = 0
		case stepConfirm:
			m.step = stepDone
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m *setupModel) toggle(idx int) {
	m.setChosen(idx, !m.chosen[idx])
}

func (m *setupModel) setChosen(idx int, on bool) {
	if on {
		m.chosen[idx] = true
		return
	}
	delete(m.chosen, idx)
}

// ensureLight selects the highlighted light when the user confirms with nothing ticked.
func (m *setupModel) ensureLight() {
	if len(m.chosen) == 0 && len(m.lights) > 0 {
		m.chosen[m.cursor] = true
	}
}

func (m *setupModel) advanceFromLights() {
	if m.cfg.RequireDevice && len(m.devices) > 0 {
		m.step = stepSelectDevice
		m.cursor = utils.ClampIndex(m.deviceIndex, len(m.devices))
		return
	}
	m.step = stepConfirm
	m.cursor = 0
}

func (m *setupModel) back() {
	switch m.step {
	case stepSelectDevice:
		if m.cfg.RequireLights && len(m.lights) > 0 {
			m.deviceIndex = m.cursor
			m.step = stepSelectLights
			m.cursor = 0
		}
	case stepConfirm:
		if m.cfg.RequireDevice && len(m.devices) > 0 {
			m.step = stepSelectDevice
			m.cursor = utils.ClampIndex(m.deviceIndex, len(m.devices))
		} else if m.cfg.RequireLights && len(m.lights) > 0 {
			m.step = stepSelectLights
			m.cursor = 0
		}
	}
}

func (m setupModel) result() SetupResult {
	return SetupResult{
		LightIndexes: m.selectedLights(),
		DeviceIndex:  utils.ClampIndex(m.deviceIndex, len(m.devices)),
	}
}

func (m setupModel) selectedLights() []int {
	idx := make([]int, 0, len(m.chosen))
	for i := range m.lights {
		if m.chosen[i] {
			idx = append(idx, i)
		}
	}
	return idx
}

func (m setupModel) View() string {
	switch m.step {
	case stepSelectLights:
		return renderLightsView(m)
	case stepSelectDevice:
		return renderDeviceView(m)
	case stepConfirm:
		return renderSummaryView(m)
	default:
		return ""
	}
}

func (m setupModel) currentItems() []Option {
	switch m.step {
	case stepSelectDevice:
		return m.devices
	case stepSelectLights:
		return m.lights
	default:
		return nil
	}
}

func renderLightsView(m setupModel) string {
	instructions := []string{"↑/k ↓/j move", "space toggle", "a all", "enter confirm", "esc cancel"}

	lines := []string{
		"",
		titleStyle.Render("Select lights"),
		subtitleStyle.Render("Gradients are assigned in list order"),
		"",
		renderCheckList(m.lights, m.chosen, m.cursor),
		"",
		renderInstructions(instructions),
		"",
	}
	return strings.Join(lines, "\n")
}

func renderDeviceView(m setupModel) string {
	instructions := []string{"↑/k ↓/j move", "enter confirm"}
	if m.cfg.RequireLights {
		instructions = append(instructions, "shift+tab/left back")
	}
	instructions = append(instructions, "esc cancel")

	lines := []string{
		"",
		titleStyle.Render("Select an audio input device"),
	}

	if m.cfg.RequireLights {
		lines = append(lines,
			"",
			renderSummaryRow("Lights", m.selectedLightsLabel()),
		)
	}

	lines = append(lines,
		"",
		renderOptionList(m.devices, m.cursor),
		"",
		renderInstructions(instructions),
		"",
	)

	return strings.Join(lines, "\n")
}

func renderSummaryView(m setupModel) string {
	instructions := []string{"enter start", "←/h/b/backspace edit", "esc cancel"}

	lines := []string{
		"",
		titleStyle.Render("Ready to start"),
		"",
		renderSummaryRow("Lights", m.selectedLightsLabel()),
		renderSummaryRow("Device", m.selectedDeviceLabel()),
		"",
		renderInstructions(instructions),
		"",
	}
	return strings.Join(lines, "\n")
}

func (m setupModel) selectedLightsLabel() string {
	selected := m.selectedLights()
	if len(selected) == 0 {
		return "not selected"
	}
	labels := make([]string, len(selected))
	for i, idx := range selected {
		labels[i] = m.lights[idx].Label
	}
	return strings.Join(labels, ", ")
}

func (m setupModel) selectedDeviceLabel() string {
	if m.deviceIndex >= 0 && m.deviceIndex < len(m.devices) {
		return m.devices[m.deviceIndex].Label
	}
	return "not selected"
}

func renderPointer(active bool) string {
	if active {
		return pointerStyle.Render("›")
	}
	return inactivePointerStyle.Render(" ")
}

func renderOptionLabel(text string, active bool) string {
	if active {
		return selectedItemStyle.Render(text)
	}
	return itemStyle.Render(text)
}

func renderOptionList(items []Option, cursor int) string {
	if len(items) == 0 {
		return emptyStateStyle.Render("No options detected")
	}

	rows := make([]string, len(items))
	for i, item := range items {
		rows[i] = lipgloss.JoinHorizontal(lipgloss.Left,
			renderPointer(cursor == i),
			" ",
			renderOptionLabel(item.Label, cursor == i),
		)
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderCheckList(items []Option, chosen map[int]bool, cursor int) string {
	if len(items) == 0 {
		return emptyStateStyle.Render("No lights detected")
	}

	rows := make([]string, len(items))
	for i, item := range items {
		box := inactivePointerStyle.Render("[ ]")
		if chosen[i] {
			box = pointerStyle.Render("[x]")
		}
		rows[i] = lipgloss.JoinHorizontal(lipgloss.Left,
			renderPointer(cursor == i),
			" ",
			box,
			" ",
			renderOptionLabel(item.Label, cursor == i),
		)
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderInstructions(parts []string) string {
	if len(parts) == 0 {
		return ""
	}

	if len(parts) == 1 {
		return renderInstruction(parts[0])
	}

	var segments []string
	for i, part := range parts {
		if i > 0 {
			segments = append(segments, instructionDividerStyle.Render(" · "))
		}
		segments = append(segments, renderInstruction(part))
	}
	return lipgloss.JoinHorizontal(lipgloss.Left, segments...)
}

func renderInstruction(part string) string {
	tokens := strings.Fields(part)
	if len(tokens) == 0 {
		return ""
	}
	if len(tokens) == 1 {
		return instructionTextStyle.Render(tokens[0])
	}

	var segments []string
	keyTokens := tokens[:len(tokens)-1]
	for i, token := range keyTokens {
		if i > 0 {
			segments = append(segments, instructionTextStyle.Render(" "))
		}
		segments = append(segments, instructionKeyStyle.Render(token))
	}
	segments = append(segments, instructionTextStyle.Render(" "))
	segments = append(segments, instructionTextStyle.Render(tokens[len(tokens)-1]))
	return lipgloss.JoinHorizontal(lipgloss.Left, segments...)
}

func renderSummaryRow(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		summaryLabelStyle.Render(label+": "),
		summaryValueStyle.Render(value),
	)
}

func validIndexes(indexes []int, length int) []int {
	valid := make([]int, 0, len(indexes))
	seen := make(map[int]bool, len(indexes))
	for _, idx := range indexes {
		if idx >= 0 && idx < length && !seen[idx] {
			seen[idx] = true
			valid = append(valid, idx)
		}
	}
	return valid
}

func isInteractiveTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

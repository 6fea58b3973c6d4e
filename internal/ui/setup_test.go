package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func press(t *testing.T, m setupModel, keys ...tea.KeyMsg) setupModel {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(k)
		m = next.(setupModel)
	}
	return m
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keySpace = tea.KeyMsg{Type: tea.KeySpace}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
)

func testOptions(labels ...string) []Option {
	opts := make([]Option, len(labels))
	for i, l := range labels {
		opts[i] = Option{Label: l}
	}
	return opts
}

func TestSetupMultiSelectKeepsListOrder(t *testing.T) {
	m := newSetupModel(
		testOptions("desk", "shelf", "tv"),
		testOptions("mic", "loopback"),
		SetupConfig{RequireLights: true, RequireDevice: true, InitialDevice: 1},
	)
	require.Equal(t, stepSelectLights, m.step)

	m = press(t, m, runes("j"), runes("j"), keySpace, runes("k"), runes("k"), keySpace, keyEnter)
	require.Equal(t, stepSelectDevice, m.step)
	assert.Equal(t, 1, m.cursor, "device cursor starts on the initial device")

	m = press(t, m, runes("k"), keyEnter)
	require.Equal(t, stepConfirm, m.step)
	assert.Contains(t, m.View(), "desk, tv")

	m = press(t, m, keyEnter)
	assert.Equal(t, stepDone, m.step)
	assert.Equal(t, SetupResult{LightIndexes: []int{0, 2}, DeviceIndex: 0}, m.result())
}

func TestSetupEnterWithoutSelectionPicksCursor(t *testing.T) {
	m := newSetupModel(testOptions("desk", "shelf"), nil, SetupConfig{RequireLights: true})

	m = press(t, m, runes("j"), keyEnter)
	assert.Equal(t, stepConfirm, m.step)
	assert.Equal(t, []int{1}, m.result().LightIndexes)
}

func TestSetupToggleAll(t *testing.T) {
	m := newSetupModel(testOptions("a", "b", "c"), nil, SetupConfig{RequireLights: true, InitialLights: []int{1}})

	m = press(t, m, runes("a"))
	assert.Equal(t, []int{0, 1, 2}, m.selectedLights())

	m = press(t, m, runes("a"))
	assert.Empty(t, m.selectedLights())
}

func TestSetupBackFromConfirm(t *testing.T) {
	m := newSetupModel(testOptions("a"), testOptions("mic"), SetupConfig{RequireLights: true, RequireDevice: true})

	m = press(t, m, keyEnter, keyEnter)
	require.Equal(t, stepConfirm, m.step)

	m = press(t, m, runes("b"))
	assert.Equal(t, stepSelectDevice, m.step)

	m = press(t, m, runes("h"))
	assert.Equal(t, stepSelectLights, m.step)
}

func TestSetupAbort(t *testing.T) {
	m := newSetupModel(testOptions("a"), nil, SetupConfig{RequireLights: true})
	m = press(t, m, keyEsc)
	assert.ErrorIs(t, m.err, ErrSelectionAborted)
}

func TestRunSetupWithoutPrompts(t *testing.T) {
	result, err := RunSetup(testOptions("a", "b"), testOptions("mic"), SetupConfig{
		InitialLights: []int{1, 1, 5, 0},
		InitialDevice: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, result.LightIndexes)
	assert.Equal(t, 0, result.DeviceIndex)
}

package console

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orbitctl/orbitctl/internal/mode"
)

// ============================================================================
// View
// ============================================================================

func TestView_EmptyBeforeFirstResize(t *testing.T) {
	m := New(mode.Services{Config: testConfig()})
	defer m.Cleanup()

	require.Empty(t, m.View(), "rendering before the first WindowSizeMsg should be a no-op")
}

func TestView_RendersPanesAndForm(t *testing.T) {
	m := newTestModel(t)

	view := m.View()

	require.Contains(t, view, "Params")
	require.Contains(t, view, "Simulation")
	require.Contains(t, view, "Telemetry")
	require.Contains(t, view, "Orbital speed")
	require.Contains(t, view, "Altitude")
	require.Contains(t, view, "Apply")
}

func TestView_ShowsConfiguredParamValues(t *testing.T) {
	m := newTestModel(t)

	view := m.View()

	require.Contains(t, view, "7.8")
	require.Contains(t, view, "408")
}

func TestView_NoSimulationPlaceholder(t *testing.T) {
	m := newTestModel(t)

	require.Contains(t, m.View(), "No simulation embedded")
}

func TestView_PendingControllerStillShowsPlaceholder(t *testing.T) {
	m := New(mode.Services{Config: testConfig(), Ctrl: testController(t)})
	t.Cleanup(m.Cleanup)
	m = m.SetSize(100, 30).(Model)

	// The controller exists but Initialize has not run: no surface yet.
	require.Contains(t, m.View(), "No simulation embedded")
}

func TestView_TelemetryPlaceholderBeforeOutput(t *testing.T) {
	m := newTestModel(t)

	require.Contains(t, m.View(), "Waiting for simulation output")
}

func TestView_TelemetryShowsForwardedLines(t *testing.T) {
	m := newTestModel(t)

	m.appendTelemetry("velocity nominal")

	view := m.View()
	require.Contains(t, view, "velocity nominal")
	require.NotContains(t, view, "Waiting for simulation output")
}

func TestView_TelemetryPaneHiddenWhenToggledOff(t *testing.T) {
	cfg := testConfig()
	cfg.UI.ShowTelemetry = false
	m := New(mode.Services{Config: cfg})
	t.Cleanup(m.Cleanup)
	m = m.SetSize(100, 30).(Model)

	require.NotContains(t, m.View(), "Telemetry")
}

// ============================================================================
// Status bar
// ============================================================================

func TestView_StatusBar_NoController(t *testing.T) {
	m := newTestModel(t)

	view := m.View()

	require.Contains(t, view, "no peer")
	require.Contains(t, view, "sent -")
}

func TestView_StatusBar_ShowsSocketAndCounters(t *testing.T) {
	m := New(mode.Services{Config: testConfig(), Ctrl: testController(t)})
	t.Cleanup(m.Cleanup)
	m = m.SetSize(120, 30).(Model)

	view := m.View()

	require.Contains(t, view, "/tmp/console-test.sock")
	require.Contains(t, view, "sent - (0.0%)")
	require.Contains(t, view, "no peer", "an uninitialized channel has no peer")
}

func TestView_StatusBar_ShowsKeyHints(t *testing.T) {
	m := newTestModel(t)

	view := m.View()

	require.Contains(t, view, "apply")
	require.Contains(t, view, "help")
	require.Contains(t, view, "quit")
}

func TestView_StatusBarHiddenWhenToggledOff(t *testing.T) {
	cfg := testConfig()
	cfg.UI.ShowStatusBar = false
	m := New(mode.Services{Config: cfg})
	t.Cleanup(m.Cleanup)
	m = m.SetSize(100, 30).(Model)

	require.NotContains(t, m.View(), "no peer")
}

// ============================================================================
// Dimensions
// ============================================================================

func TestView_FillsTerminalExactly(t *testing.T) {
	m := newTestModel(t)

	lines := strings.Split(m.View(), "\n")

	require.Len(t, lines, 30, "view should fill the terminal height")
}

func TestView_SurvivesTinyTerminal(t *testing.T) {
	m := New(mode.Services{Config: testConfig()})
	t.Cleanup(m.Cleanup)
	m = m.SetSize(20, 6).(Model)

	require.NotPanics(t, func() { _ = m.View() })
}

// ============================================================================
// Help overlay
// ============================================================================

func TestView_HelpOverlay(t *testing.T) {
	m := newTestModel(t)
	m.showHelp = true

	view := m.View()

	require.Contains(t, view, "Press ? or esc to close")
}

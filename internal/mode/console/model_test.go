package console

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orbitctl/orbitctl/internal/config"
	"github.com/orbitctl/orbitctl/internal/controller"
	"github.com/orbitctl/orbitctl/internal/mode"
	"github.com/orbitctl/orbitctl/internal/ui/textseg"
)

// fixedClock returns a constant time for deterministic uptime assertions.
type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Params = config.ParamsConfig{OrbitalSpeed: "7.8", Altitude: "408"}
	cfg.UI = config.UIConfig{ShowStatusBar: true, ShowTelemetry: true, MarkdownStyle: "dark"}
	return &cfg
}

func testController(t *testing.T) *controller.Controller {
	t.Helper()
	ctrl, err := controller.New(controller.Config{
		ChannelPath: "/tmp/console-test.sock",
		ExecPath:    "/bin/true",
	})
	require.NoError(t, err)
	return ctrl
}

func newTestModel(t *testing.T) Model {
	t.Helper()
	m := New(mode.Services{Config: testConfig()})
	t.Cleanup(m.Cleanup)
	return m.SetSize(100, 30).(Model)
}

// ============================================================================
// New
// ============================================================================

func TestNew_PrefillsParamsFromConfig(t *testing.T) {
	m := New(mode.Services{Config: testConfig()})
	defer m.Cleanup()

	require.Equal(t, "7.8", m.speedInput.Value(), "speed input should hold configured default")
	require.Equal(t, "408", m.altitudeInput.Value(), "altitude input should hold configured default")
}

func TestNew_FallsBackToBuiltinDefaults(t *testing.T) {
	m := New(mode.Services{})
	defer m.Cleanup()

	require.Equal(t, "2", m.speedInput.Value())
	require.Equal(t, "10", m.altitudeInput.Value())
	require.True(t, m.showStatusBar, "status bar should default on without config")
	require.True(t, m.showTelemetry, "telemetry pane should default on without config")
}

func TestNew_SpeedFieldHasInitialFocus(t *testing.T) {
	m := New(mode.Services{Config: testConfig()})
	defer m.Cleanup()

	require.Equal(t, focusSpeed, m.focus)
	require.True(t, m.speedInput.Focused())
	require.False(t, m.altitudeInput.Focused())
}

func TestNew_UIVisibilityFromConfig(t *testing.T) {
	cfg := testConfig()
	cfg.UI.ShowStatusBar = false
	cfg.UI.ShowTelemetry = false

	m := New(mode.Services{Config: cfg})
	defer m.Cleanup()

	require.False(t, m.showStatusBar)
	require.False(t, m.showTelemetry)
}

func TestNew_SubscribesToControllerEvents(t *testing.T) {
	m := New(mode.Services{Config: testConfig(), Ctrl: testController(t)})
	defer m.Cleanup()

	require.NotNil(t, m.listener, "a controller should come with an event subscription")
	require.NotNil(t, m.Init(), "Init should return startup commands")
}

func TestNew_NoListenerWithoutController(t *testing.T) {
	m := New(mode.Services{Config: testConfig()})
	defer m.Cleanup()

	require.Nil(t, m.listener)
}

// ============================================================================
// Telemetry buffer
// ============================================================================

func TestAppendTelemetry_CapsBuffer(t *testing.T) {
	m := newTestModel(t)

	for i := 0; i < telemetryCap+100; i++ {
		m.appendTelemetry("line")
	}

	require.Equal(t, telemetryCap, m.TelemetryLineCount(), "tail should evict oldest lines at the cap")
}

func TestAppendTelemetry_KeepsNewestLines(t *testing.T) {
	m := newTestModel(t)

	m.appendTelemetry("oldest")
	for i := 0; i < telemetryCap; i++ {
		m.appendTelemetry("filler")
	}

	require.NotContains(t, m.telemetryLines, "oldest", "first line should be evicted")
}

func TestAppendTelemetry_TruncatesWideLines(t *testing.T) {
	m := newTestModel(t)

	m.appendTelemetry(strings.Repeat("x", maxTelemetryLineWidth*2))

	require.Equal(t, 1, m.TelemetryLineCount())
	got := m.telemetryLines[0]
	require.LessOrEqual(t, textseg.Width(got), maxTelemetryLineWidth)
	require.True(t, strings.HasSuffix(got, "…"), "truncated line should end in an ellipsis")
}

func TestAppendTelemetry_SticksToBottom(t *testing.T) {
	m := newTestModel(t)

	for i := 0; i < 200; i++ {
		m.appendTelemetry("line")
	}

	require.True(t, m.telemetry.AtBottom(), "tail should follow the newest line")
}

// ============================================================================
// Layout
// ============================================================================

func TestLayout_SplitsTopRow(t *testing.T) {
	m := newTestModel(t)

	paramsW, surfaceW, topH, telemetryH := m.layout()

	require.Equal(t, paramsPaneWidth, paramsW)
	require.Equal(t, 100-paramsPaneWidth, surfaceW)
	require.Equal(t, topRowHeight, topH)
	require.Equal(t, 30-statusBarHeight-topRowHeight, telemetryH)
}

func TestLayout_NarrowTerminalSplitsEvenly(t *testing.T) {
	m := New(mode.Services{Config: testConfig()})
	defer m.Cleanup()
	m = m.SetSize(60, 30).(Model)

	paramsW, surfaceW, _, _ := m.layout()

	require.Equal(t, 30, paramsW)
	require.Equal(t, 30, surfaceW)
}

func TestLayout_HidesTelemetryWhenShort(t *testing.T) {
	m := New(mode.Services{Config: testConfig()})
	defer m.Cleanup()
	m = m.SetSize(100, 12).(Model)

	_, _, _, telemetryH := m.layout()

	require.Zero(t, telemetryH, "a sliver of a pane is not worth drawing")
}

func TestLayout_HidesTelemetryWhenToggledOff(t *testing.T) {
	cfg := testConfig()
	cfg.UI.ShowTelemetry = false
	m := New(mode.Services{Config: cfg})
	defer m.Cleanup()
	m = m.SetSize(100, 30).(Model)

	_, _, _, telemetryH := m.layout()

	require.Zero(t, telemetryH)
}

func TestTelemetryViewportSize_MatchesPaneInterior(t *testing.T) {
	m := newTestModel(t)

	w, h := m.telemetryViewportSize()

	require.Equal(t, 98, w, "viewport should span the pane minus the border")
	require.Equal(t, 30-statusBarHeight-topRowHeight-2, h)
}

// ============================================================================
// Lifecycle
// ============================================================================

func TestCleanup_CancelsSubscriptionContext(t *testing.T) {
	m := New(mode.Services{Config: testConfig(), Ctrl: testController(t)})

	m.Cleanup()

	require.Error(t, m.ctx.Err(), "Cleanup should cancel the mode context")
}

func TestSetSize_ResizesTelemetryViewport(t *testing.T) {
	m := newTestModel(t)
	m.appendTelemetry("velocity nominal")

	m = m.SetSize(80, 24).(Model)

	require.Equal(t, 78, m.telemetry.Width)
	require.Equal(t, 24-statusBarHeight-topRowHeight-2, m.telemetry.Height)
	require.Contains(t, m.telemetry.View(), "velocity nominal", "content should survive a resize")
}

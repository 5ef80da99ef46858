// Package console implements the operator console mode: parameter inputs,
// the embedded simulation surface, a telemetry tail of forwarded simulation
// output, and a delivery status bar.
package console

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/orbitctl/orbitctl/internal/config"
	"github.com/orbitctl/orbitctl/internal/controller"
	"github.com/orbitctl/orbitctl/internal/mode"
	"github.com/orbitctl/orbitctl/internal/pubsub"
	"github.com/orbitctl/orbitctl/internal/ui/help"
	"github.com/orbitctl/orbitctl/internal/ui/styles"
	"github.com/orbitctl/orbitctl/internal/ui/textseg"
)

// focusZone identifies which console control owns keyboard input.
type focusZone int

const (
	focusSpeed focusZone = iota
	focusAltitude
	focusButton
)

const (
	// telemetryCap bounds the in-memory telemetry tail.
	telemetryCap = 500

	// maxTelemetryLineWidth hard-caps a single forwarded line so binary or
	// runaway output cannot flood the pane.
	maxTelemetryLineWidth = 512

	// paramFieldWidth is the input width inside the params pane.
	paramFieldWidth = 24

	// uptimeRefreshInterval drives the uptime display in the surface pane.
	uptimeRefreshInterval = time.Second
)

// uptimeTickMsg triggers a view refresh for the uptime display.
type uptimeTickMsg struct{}

// Model holds the console mode state.
type Model struct {
	services mode.Services
	clock    mode.Clock

	// Parameter form
	speedInput    textinput.Model
	altitudeInput textinput.Model
	focus         focusZone

	// Telemetry tail
	telemetry      viewport.Model
	telemetryLines []string
	showTelemetry  bool
	showStatusBar  bool

	// Help overlay
	help     help.Model
	showHelp bool

	// startedAt anchors the uptime display; reset on every (re)launch.
	startedAt time.Time

	// ctx scopes controller calls and the event subscription to this mode
	// instance; Cleanup cancels it.
	ctx      context.Context
	cancel   context.CancelFunc
	listener *pubsub.ContinuousListener[controller.Event]

	// Dimensions
	width  int
	height int
}

// New creates a new console mode model wired to the shared services.
func New(services mode.Services) Model {
	clock := services.Clock
	if clock == nil {
		clock = mode.RealClock{}
	}

	placeholderStyle := lipgloss.NewStyle().Foreground(styles.TextPlaceholderColor)

	speed := textinput.New()
	speed.Prompt = ""
	speed.Placeholder = "orbital speed"
	speed.PlaceholderStyle = placeholderStyle
	speed.CharLimit = 32
	speed.Width = paramFieldWidth
	speed.Focus()

	altitude := textinput.New()
	altitude.Prompt = ""
	altitude.Placeholder = "altitude"
	altitude.PlaceholderStyle = placeholderStyle
	altitude.CharLimit = 32
	altitude.Width = paramFieldWidth

	params := config.Defaults().Params
	showStatusBar, showTelemetry := true, true
	markdownStyle := ""
	channelPath := ""
	if services.Config != nil {
		params = services.Config.Params
		showStatusBar = services.Config.UI.ShowStatusBar
		showTelemetry = services.Config.UI.ShowTelemetry
		markdownStyle = services.Config.UI.MarkdownStyle
		channelPath = services.Config.Channel.Path
	}
	if services.Ctrl != nil {
		channelPath = services.Ctrl.ChannelPath()
	}
	speed.SetValue(params.OrbitalSpeed)
	altitude.SetValue(params.Altitude)

	m := Model{
		services:      services,
		clock:         clock,
		speedInput:    speed,
		altitudeInput: altitude,
		focus:         focusSpeed,
		showStatusBar: showStatusBar,
		showTelemetry: showTelemetry,
		help:          help.New(channelPath, markdownStyle),
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())
	if services.Ctrl != nil {
		m.listener = pubsub.NewContinuousListener(m.ctx, services.Ctrl.Broker())
		if services.Ctrl.SimRunning() {
			m.startedAt = clock.Now()
		}
	}

	return m
}

// Init returns initial commands: the controller event listener, the cursor
// blink, and the uptime ticker.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.startUptimeTick()}
	if m.listener != nil {
		cmds = append(cmds, m.listener.Listen())
	}
	return tea.Batch(cmds...)
}

// startUptimeTick returns a command that refreshes the uptime display.
func (m Model) startUptimeTick() tea.Cmd {
	return tea.Tick(uptimeRefreshInterval, func(time.Time) tea.Msg {
		return uptimeTickMsg{}
	})
}

// SetSize handles terminal resize events.
func (m Model) SetSize(width, height int) mode.Controller {
	m.width = width
	m.height = height
	m.help = m.help.SetSize(width, height)
	m.resizeTelemetry()
	return m
}

// Cleanup releases the event subscription when leaving the mode.
func (m *Model) Cleanup() {
	if m.cancel != nil {
		m.cancel()
	}
}

// appendTelemetry adds one forwarded output line to the tail, evicting the
// oldest once the cap is reached, and refreshes the viewport. The viewport
// sticks to the newest line unless the operator has scrolled away.
func (m *Model) appendTelemetry(line string) {
	line = textseg.Truncate(line, maxTelemetryLineWidth, "…")
	m.telemetryLines = append(m.telemetryLines, line)
	if len(m.telemetryLines) > telemetryCap {
		m.telemetryLines = m.telemetryLines[len(m.telemetryLines)-telemetryCap:]
	}

	atBottom := m.telemetry.AtBottom()
	m.telemetry.SetContent(m.telemetryContent())
	if atBottom {
		m.telemetry.GotoBottom()
	}
}

// resizeTelemetry recomputes the telemetry viewport for the current layout.
func (m *Model) resizeTelemetry() {
	w, h := m.telemetryViewportSize()
	if w <= 0 || h <= 0 {
		return
	}
	atBottom := m.telemetry.AtBottom()
	m.telemetry = viewport.New(w, h)
	m.telemetry.SetContent(m.telemetryContent())
	if atBottom {
		m.telemetry.GotoBottom()
	}
}

// telemetryContent renders the tail word-wrapped to the viewport width.
func (m Model) telemetryContent() string {
	if len(m.telemetryLines) == 0 {
		return ""
	}
	var b []byte
	for i, line := range m.telemetryLines {
		if i > 0 {
			b = append(b, '\n')
		}
		b = append(b, line...)
	}
	return wordwrap.String(string(b), m.telemetry.Width)
}

// TelemetryLineCount reports how many lines the tail currently holds.
func (m Model) TelemetryLineCount() int {
	return len(m.telemetryLines)
}

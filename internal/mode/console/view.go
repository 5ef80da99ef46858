package console

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	zone "github.com/lrstanley/bubblezone"

	"github.com/orbitctl/orbitctl/internal/keys"
	"github.com/orbitctl/orbitctl/internal/mode"
	"github.com/orbitctl/orbitctl/internal/ui/styles"
)

const (
	// paramsPaneWidth caps the params pane; narrower terminals split 50/50.
	paramsPaneWidth = 42

	// topRowHeight fits the two labelled inputs plus the apply button.
	topRowHeight = 9

	statusBarHeight = 1

	// minTelemetryHeight is the smallest pane worth drawing: border plus two
	// content rows.
	minTelemetryHeight = 4
)

// View renders the console: params and simulation panes on top, the
// telemetry tail below, and the status bar on the last row.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	paramsW, surfaceW, topH, telemetryH := m.layout()

	topRow := lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderParamsPane(paramsW, topH),
		m.renderSurfacePane(surfaceW, topH),
	)

	sections := []string{topRow}
	if telemetryH > 0 {
		sections = append(sections, m.renderTelemetryPane(m.width, telemetryH))
	}
	content := lipgloss.JoinVertical(lipgloss.Left, sections...)

	contentH := m.height
	if m.showStatusBar {
		contentH -= statusBarHeight
	}
	view := lipgloss.Place(m.width, contentH, lipgloss.Left, lipgloss.Top, content)
	if m.showStatusBar {
		view = lipgloss.JoinVertical(lipgloss.Left, view, m.renderStatusBar())
	}
	if m.showHelp {
		view = m.help.Overlay(view)
	}

	return zone.Scan(view)
}

// layout computes pane dimensions for the current terminal size. The top row
// has a fixed height; the telemetry pane takes whatever remains when it is
// shown and tall enough to be useful.
func (m Model) layout() (paramsW, surfaceW, topH, telemetryH int) {
	paramsW = min(paramsPaneWidth, m.width/2)
	surfaceW = m.width - paramsW

	contentH := m.height
	if m.showStatusBar {
		contentH -= statusBarHeight
	}

	topH = topRowHeight
	if contentH < topH {
		topH = max(contentH, 5)
	}

	if m.showTelemetry {
		if rest := contentH - topH; rest >= minTelemetryHeight {
			telemetryH = rest
		}
	}
	return paramsW, surfaceW, topH, telemetryH
}

// telemetryViewportSize returns the inner dimensions of the telemetry pane,
// or zeros when the pane is not drawn.
func (m Model) telemetryViewportSize() (width, height int) {
	_, _, _, telemetryH := m.layout()
	if telemetryH == 0 {
		return 0, 0
	}
	return m.width - 2, telemetryH - 2
}

func (m Model) renderParamsPane(width, height int) string {
	speedLabel := m.fieldLabel("Orbital speed", m.focus == focusSpeed)
	altitudeLabel := m.fieldLabel("Altitude", m.focus == focusAltitude)

	button := styles.ButtonStyle.Render("Apply")
	if m.focus == focusButton {
		button = styles.ButtonFocusedStyle.Render("Apply")
	}

	content := strings.Join([]string{
		speedLabel,
		zone.Mark(zoneSpeedField, m.speedInput.View()),
		"",
		altitudeLabel,
		zone.Mark(zoneAltitudeField, m.altitudeInput.View()),
		"",
		zone.Mark(zoneApplyButton, button),
	}, "\n")

	return styles.RenderWithTitleBorder(content, "Params", width, height, true,
		styles.ParamsTitleColor, styles.BorderFocusColor)
}

func (m Model) fieldLabel(text string, focused bool) string {
	color := styles.FormLabelColor
	if focused {
		color = styles.FormLabelFocusedColor
	}
	return lipgloss.NewStyle().Foreground(color).Render(text)
}

func (m Model) renderSurfacePane(width, height int) string {
	return styles.RenderWithTitleBorder(m.surfaceContent(), "Simulation", width, height, false,
		styles.SurfaceTitleColor, styles.BorderFocusColor)
}

// surfaceContent summarizes the embedded simulation: handle, run identity,
// process state, and uptime.
func (m Model) surfaceContent() string {
	ctrl := m.services.Ctrl
	if ctrl == nil || ctrl.Surface() == nil {
		return lipgloss.NewStyle().Foreground(styles.TextMutedColor).Italic(true).
			Render("No simulation embedded")
	}

	sfc := ctrl.Surface()

	process := "stopped"
	if ctrl.SimRunning() {
		process = fmt.Sprintf("running (pid %d)", ctrl.SimPID())
	}

	uptime := "-"
	if ctrl.SimRunning() && !m.startedAt.IsZero() {
		uptime = mode.FormatUptimeWithClock(m.startedAt, m.clock)
	}

	run := ctrl.RunGUID()
	if len(run) > 8 {
		run = run[:8]
	}

	keyStyle := lipgloss.NewStyle().Foreground(styles.TextSecondaryColor).Width(9)
	valStyle := lipgloss.NewStyle().Foreground(styles.TextPrimaryColor)

	rows := []struct{ key, value string }{
		{"Handle", strconv.FormatInt(sfc.Handle(), 10)},
		{"Size", sfc.Size().String()},
		{"Run", run},
		{"State", ctrl.Status().String()},
		{"Process", process},
		{"Uptime", uptime},
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, keyStyle.Render(row.key)+valStyle.Render(row.value))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderTelemetryPane(width, height int) string {
	body := m.telemetry.View()
	if len(m.telemetryLines) == 0 {
		body = lipgloss.NewStyle().Foreground(styles.TextMutedColor).Italic(true).
			Render("Waiting for simulation output")
	}
	return zone.Mark(zoneTelemetry,
		styles.RenderWithTitleBorder(body, "Telemetry", width, height, false,
			styles.TelemetryTitleColor, styles.BorderFocusColor))
}

// renderStatusBar shows peer state, delivery counters, and the socket path on
// the left, key hints on the right.
func (m Model) renderStatusBar() string {
	ctrl := m.services.Ctrl

	peer := lipgloss.NewStyle().Foreground(styles.TextMutedColor).Render("○ no peer")
	sent := "sent -"
	socket := ""
	if ctrl != nil {
		if ctrl.PeerConnected() {
			peer = lipgloss.NewStyle().Foreground(styles.StatusSuccessColor).Render("● peer")
		}
		metrics := ctrl.Metrics()
		sent = fmt.Sprintf("sent %s (%s)", metrics.FormatDeliveryDisplay(), metrics.FormatRateDisplay())
		socket = ctrl.ChannelPath()
	}

	left := peer + "  " + sent
	if socket != "" {
		left += "  " + lipgloss.NewStyle().Foreground(styles.TextMutedColor).Render(socket)
	}
	right := m.shortHelp()

	// StatusBarStyle pads one cell each side.
	inner := m.width - 2
	gap := inner - ansi.StringWidth(left) - ansi.StringWidth(right)
	if gap < 2 {
		right = ""
		gap = inner - ansi.StringWidth(left)
	}
	bar := left
	if gap > 0 {
		bar += strings.Repeat(" ", gap) + right
	}
	bar = ansi.Truncate(bar, inner, "")

	return styles.StatusBarStyle.Width(m.width).Render(bar)
}

// shortHelp renders the condensed key hints for the right side of the bar.
func (m Model) shortHelp() string {
	keyStyle := lipgloss.NewStyle().Foreground(styles.TextSecondaryColor)
	descStyle := lipgloss.NewStyle().Foreground(styles.TextMutedColor)

	parts := make([]string, 0, 4)
	for _, b := range keys.ConsoleShortHelp() {
		if !b.Enabled() {
			continue
		}
		h := b.Help()
		parts = append(parts, keyStyle.Render(h.Key)+" "+descStyle.Render(h.Desc))
	}
	return strings.Join(parts, descStyle.Render("  "))
}

package console

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"

	"github.com/orbitctl/orbitctl/internal/config"
	"github.com/orbitctl/orbitctl/internal/controller"
	"github.com/orbitctl/orbitctl/internal/keys"
	"github.com/orbitctl/orbitctl/internal/mode"
	"github.com/orbitctl/orbitctl/internal/paramchan"
	"github.com/orbitctl/orbitctl/internal/pubsub"
	"github.com/orbitctl/orbitctl/internal/ui/toaster"
)

// scrollLines is the number of lines one wheel notch scrolls.
const scrollLines = 3

// applyResultMsg reports one parameter delivery attempt.
type applyResultMsg struct {
	speed    string
	altitude string
	err      error
}

// relaunchResultMsg reports the outcome of replacing the simulation process.
type relaunchResultMsg struct{ err error }

// saveResultMsg reports persisting the current params as config defaults.
type saveResultMsg struct{ err error }

// Update routes messages to the console controls.
func (m Model) Update(msg tea.Msg) (mode.Controller, tea.Cmd) {
	switch msg := msg.(type) {
	case uptimeTickMsg:
		// Re-arm first so a slow frame never stalls the ticker.
		return m, m.startUptimeTick()

	case pubsub.Event[controller.Event]:
		return m.handleControllerEvent(msg.Payload)

	case applyResultMsg:
		return m.handleApplyResult(msg)

	case relaunchResultMsg:
		if msg.err != nil {
			return m, toastCmd(fmt.Sprintf("Relaunch failed: %v", msg.err), toaster.StyleError)
		}
		return m, toastCmd("Simulation relaunched", toaster.StyleSuccess)

	case saveResultMsg:
		if msg.err != nil {
			return m, toastCmd(fmt.Sprintf("Save failed: %v", msg.err), toaster.StyleError)
		}
		return m, toastCmd("Saved as defaults", toaster.StyleSuccess)

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.MouseMsg:
		return m.handleMouseMsg(msg)
	}

	return m.updateFocusedInput(msg)
}

// handleControllerEvent folds one controller event into the view and re-arms
// the subscription.
func (m Model) handleControllerEvent(ev controller.Event) (mode.Controller, tea.Cmd) {
	cmds := []tea.Cmd{}
	if m.listener != nil {
		cmds = append(cmds, m.listener.Listen())
	}

	switch ev.Type {
	case controller.EventSimOutput:
		line := ev.Output.Line
		if ev.Output.IsStderr() {
			line = "[stderr] " + line
		}
		m.appendTelemetry(line)

	case controller.EventSimExited:
		m.appendTelemetry(fmt.Sprintf("-- simulation exited (%s) --", ev.ExitStatus))
		style := toaster.StyleWarn
		message := fmt.Sprintf("Simulation exited (%s)", ev.ExitStatus)
		if ev.Err != nil {
			style = toaster.StyleError
			message = fmt.Sprintf("Simulation exited (%s): %v", ev.ExitStatus, ev.Err)
		}
		cmds = append(cmds, toastCmd(message, style))

	case controller.EventInitialized, controller.EventRelaunched:
		m.startedAt = m.clock.Now()
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleApplyResult(msg applyResultMsg) (mode.Controller, tea.Cmd) {
	switch {
	case msg.err == nil:
		return m, toastCmd(fmt.Sprintf("Applied %s / %s", msg.speed, msg.altitude), toaster.StyleSuccess)
	case errors.Is(msg.err, paramchan.ErrNoPeer):
		return m, toastCmd("No peer connected, parameters not delivered", toaster.StyleWarn)
	default:
		return m, toastCmd(fmt.Sprintf("Apply failed: %v", msg.err), toaster.StyleError)
	}
}

// handleKeyMsg dispatches keys by focus: plain-rune shortcuts (q, ?, vim
// scrolling) act only while the apply button holds focus so typing in the
// inputs is never hijacked. Chorded keys act from anywhere.
func (m Model) handleKeyMsg(msg tea.KeyMsg) (mode.Controller, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	if m.showHelp {
		if key.Matches(msg, keys.App.Help) || msg.Type == tea.KeyEsc || msg.String() == "q" {
			m.showHelp = false
		}
		return m, nil
	}

	typing := m.focus != focusButton

	switch {
	case key.Matches(msg, keys.App.Quit) && !typing:
		return m, tea.Quit

	case key.Matches(msg, keys.App.Help) && !typing:
		m.showHelp = true
		return m, nil

	case key.Matches(msg, keys.Console.Apply):
		return m, m.applyCmd()

	case key.Matches(msg, keys.Console.NextField):
		return m, m.cycleFocus(1)

	case key.Matches(msg, keys.Console.PrevField):
		return m, m.cycleFocus(-1)

	case key.Matches(msg, keys.Console.Blur):
		return m, m.setFocus(focusButton)

	case key.Matches(msg, keys.Console.Relaunch):
		return m, m.relaunchCmd()

	case key.Matches(msg, keys.Console.SaveDefaults):
		return m, m.saveCmd()

	case key.Matches(msg, keys.Console.ToggleStatusBar):
		m.showStatusBar = !m.showStatusBar
		m.resizeTelemetry()
		return m, nil

	case key.Matches(msg, keys.Console.ToggleTelemetry):
		m.showTelemetry = !m.showTelemetry
		m.resizeTelemetry()
		return m, nil
	}

	if m.handleScrollKey(msg) {
		return m, nil
	}

	return m.updateFocusedInput(msg)
}

// handleScrollKey scrolls the telemetry viewport. Page keys work from any
// focus because the inputs ignore them; the vim keys are single runes and
// only act while the button has focus.
func (m *Model) handleScrollKey(msg tea.KeyMsg) bool {
	typing := m.focus != focusButton
	page := max(m.telemetry.Height, 1)

	switch {
	case key.Matches(msg, keys.Console.ScrollUp):
		if msg.String() == "pgup" {
			m.telemetry.ScrollUp(page)
			return true
		}
		if !typing {
			m.telemetry.ScrollUp(1)
			return true
		}

	case key.Matches(msg, keys.Console.ScrollDown):
		if msg.String() == "pgdown" {
			m.telemetry.ScrollDown(page)
			return true
		}
		if !typing {
			m.telemetry.ScrollDown(1)
			return true
		}

	case key.Matches(msg, keys.Console.ScrollTop):
		if !typing {
			m.telemetry.GotoTop()
			return true
		}

	case key.Matches(msg, keys.Console.ScrollBottom):
		if !typing {
			m.telemetry.GotoBottom()
			return true
		}
	}
	return false
}

// handleMouseMsg hit-tests clicks against the marked zones and scrolls the
// telemetry pane under the wheel.
func (m Model) handleMouseMsg(msg tea.MouseMsg) (mode.Controller, tea.Cmd) {
	if m.showHelp {
		return m, nil
	}

	if msg.Button == tea.MouseButtonWheelUp || msg.Button == tea.MouseButtonWheelDown {
		if z := zone.Get(zoneTelemetry); z != nil && z.InBounds(msg) {
			if msg.Button == tea.MouseButtonWheelUp {
				m.telemetry.ScrollUp(scrollLines)
			} else {
				m.telemetry.ScrollDown(scrollLines)
			}
		}
		return m, nil
	}

	if msg.Button != tea.MouseButtonLeft || msg.Action != tea.MouseActionRelease {
		return m, nil
	}

	if z := zone.Get(zoneApplyButton); z != nil && z.InBounds(msg) {
		return m, m.applyCmd()
	}
	if z := zone.Get(zoneSpeedField); z != nil && z.InBounds(msg) {
		return m, m.setFocus(focusSpeed)
	}
	if z := zone.Get(zoneAltitudeField); z != nil && z.InBounds(msg) {
		return m, m.setFocus(focusAltitude)
	}

	return m, nil
}

// setFocus moves keyboard focus to the given zone.
func (m *Model) setFocus(f focusZone) tea.Cmd {
	m.focus = f
	m.speedInput.Blur()
	m.altitudeInput.Blur()
	switch f {
	case focusSpeed:
		return m.speedInput.Focus()
	case focusAltitude:
		return m.altitudeInput.Focus()
	}
	return nil
}

// cycleFocus advances focus speed -> altitude -> button -> speed.
func (m *Model) cycleFocus(delta int) tea.Cmd {
	next := (int(m.focus) + delta + 3) % 3
	return m.setFocus(focusZone(next))
}

// updateFocusedInput forwards a message to whichever input holds focus.
func (m Model) updateFocusedInput(msg tea.Msg) (mode.Controller, tea.Cmd) {
	var cmd tea.Cmd
	switch m.focus {
	case focusSpeed:
		m.speedInput, cmd = m.speedInput.Update(msg)
	case focusAltitude:
		m.altitudeInput, cmd = m.altitudeInput.Update(msg)
	}
	return m, cmd
}

// applyCmd sends the current field values to the simulation.
func (m Model) applyCmd() tea.Cmd {
	ctrl := m.services.Ctrl
	if ctrl == nil {
		return nil
	}
	ctx := m.ctx
	speed := m.speedInput.Value()
	altitude := m.altitudeInput.Value()
	return func() tea.Msg {
		err := ctrl.Apply(ctx, speed, altitude)
		return applyResultMsg{speed: speed, altitude: altitude, err: err}
	}
}

// relaunchCmd replaces the simulation process with a fresh one.
func (m Model) relaunchCmd() tea.Cmd {
	ctrl := m.services.Ctrl
	if ctrl == nil {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		return relaunchResultMsg{err: ctrl.Relaunch(ctx)}
	}
}

// saveCmd persists the current field values as the configured defaults.
func (m Model) saveCmd() tea.Cmd {
	path := m.services.ConfigPath
	if path == "" {
		return toastCmd("No config file to save to", toaster.StyleWarn)
	}
	params := config.ParamsConfig{
		OrbitalSpeed: m.speedInput.Value(),
		Altitude:     m.altitudeInput.Value(),
	}
	return func() tea.Msg {
		return saveResultMsg{err: config.SaveParams(path, params)}
	}
}

func toastCmd(message string, style toaster.Style) tea.Cmd {
	return func() tea.Msg {
		return mode.ShowToastMsg{Message: message, Style: style}
	}
}

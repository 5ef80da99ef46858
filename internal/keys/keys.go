// Package keys contains keybinding definitions.
package keys

import "github.com/charmbracelet/bubbles/key"

// AppKeyMap defines bindings handled at the application root, before any
// mode sees the message.
type AppKeyMap struct {
	Quit key.Binding
	Logs key.Binding
	Help key.Binding
}

// ConsoleKeyMap defines the bindings for the operator console.
//
// The speed and altitude fields capture plain runes while focused, so
// anything that must work during editing is a chord or a non-rune key.
// Plain-rune bindings (quit on q, vim scrolling) apply only while the
// apply button holds focus.
type ConsoleKeyMap struct {
	// Focus cycling
	NextField key.Binding
	PrevField key.Binding
	Blur      key.Binding

	// Actions
	Apply        key.Binding
	Relaunch     key.Binding
	SaveDefaults key.Binding

	// Panes
	ToggleStatusBar key.Binding
	ToggleTelemetry key.Binding
	ScrollUp        key.Binding
	ScrollDown      key.Binding
	ScrollTop       key.Binding
	ScrollBottom    key.Binding
}

// App holds the active application-level bindings.
var App = defaultAppKeyMap()

// Console holds the active console bindings.
var Console = defaultConsoleKeyMap()

func defaultAppKeyMap() AppKeyMap {
	return AppKeyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("ctrl+c", "quit"),
		),
		Logs: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("ctrl+x", "toggle logs"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
	}
}

func defaultConsoleKeyMap() ConsoleKeyMap {
	return ConsoleKeyMap{
		// Focus cycling
		NextField: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next field"),
		),
		PrevField: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "previous field"),
		),
		Blur: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "leave field"),
		),

		// Actions
		Apply: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "apply parameters"),
		),
		Relaunch: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "relaunch simulation"),
		),
		SaveDefaults: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "save as defaults"),
		),

		// Panes
		ToggleStatusBar: key.NewBinding(
			key.WithKeys("ctrl+b"),
			key.WithHelp("ctrl+b", "toggle status bar"),
		),
		ToggleTelemetry: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("ctrl+t", "toggle telemetry"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "scroll telemetry up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "scroll telemetry down"),
		),
		ScrollTop: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "telemetry top"),
			key.WithDisabled(),
		),
		ScrollBottom: key.NewBinding(
			key.WithKeys("G"),
			key.WithHelp("G", "telemetry bottom"),
			key.WithDisabled(),
		),
	}
}

// ApplyConfig adjusts the active bindings from configuration. With vim mode
// on, telemetry scrolling also answers to j/k/g/G while the apply button
// holds focus.
func ApplyConfig(vimMode bool) {
	if vimMode {
		Console.ScrollUp = key.NewBinding(
			key.WithKeys("pgup", "k"),
			key.WithHelp("pgup/k", "scroll telemetry up"),
		)
		Console.ScrollDown = key.NewBinding(
			key.WithKeys("pgdown", "j"),
			key.WithHelp("pgdn/j", "scroll telemetry down"),
		)
		Console.ScrollTop.SetEnabled(true)
		Console.ScrollBottom.SetEnabled(true)
	}
}

// ResetForTesting restores all bindings to their defaults.
func ResetForTesting() {
	App = defaultAppKeyMap()
	Console = defaultConsoleKeyMap()
}

// ConsoleShortHelp returns the bindings surfaced in the status bar.
func ConsoleShortHelp() []key.Binding {
	return []key.Binding{Console.Apply, App.Help, App.Quit}
}

// ConsoleFullHelp returns the binding groups for the help overlay, in
// display order: focus, actions, panes, general.
func ConsoleFullHelp() [][]key.Binding {
	return [][]key.Binding{
		{Console.NextField, Console.PrevField, Console.Blur},
		{Console.Apply, Console.Relaunch, Console.SaveDefaults},
		{Console.ToggleStatusBar, Console.ToggleTelemetry, Console.ScrollUp, Console.ScrollDown, Console.ScrollTop, Console.ScrollBottom},
		{App.Help, App.Logs, App.Quit},
	}
}

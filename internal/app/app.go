// Package app contains the root application model.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/orbitctl/orbitctl/internal/config"
	"github.com/orbitctl/orbitctl/internal/controller"
	"github.com/orbitctl/orbitctl/internal/history"
	"github.com/orbitctl/orbitctl/internal/keys"
	"github.com/orbitctl/orbitctl/internal/log"
	"github.com/orbitctl/orbitctl/internal/mode"
	"github.com/orbitctl/orbitctl/internal/mode/console"
	"github.com/orbitctl/orbitctl/internal/pubsub"
	"github.com/orbitctl/orbitctl/internal/ui/logoverlay"
	"github.com/orbitctl/orbitctl/internal/ui/toaster"
	"github.com/orbitctl/orbitctl/internal/watcher"
)

// toastDuration is how long a toast stays on screen.
const toastDuration = 3 * time.Second

// Model is the root application state.
type Model struct {
	// Mode management
	currentMode mode.AppMode
	console     console.Model

	// Shared services (passed to mode controllers)
	services mode.Services

	// Global state
	width  int
	height int

	// Centralized toaster - owned by app, not individual modes
	toaster toaster.Model

	debugMode    bool
	logOverlay   logoverlay.Model
	logListenCmd tea.Cmd

	// Executable watcher for rebuild detection (pubsub-based)
	watcherHandle   *watcher.Watcher
	watcherCtx      context.Context
	watcherCancel   context.CancelFunc
	watcherListener *pubsub.ContinuousListener[watcher.Event]
}

// NewWithConfig creates the application model around an initialized
// controller. configPath is the config file used for saving parameter
// defaults. debugMode enables the log overlay (ctrl+x toggle).
func NewWithConfig(
	ctrl *controller.Controller,
	cfg config.Config,
	hist *history.Repository,
	configPath string,
	debugMode bool,
) Model {
	// Watch the simulation binary for rebuilds when enabled
	var (
		watcherHandle   *watcher.Watcher
		watcherCtx      context.Context
		watcherCancel   context.CancelFunc
		watcherListener *pubsub.ContinuousListener[watcher.Event]
	)

	if cfg.Simulation.WatchExecutable && cfg.Simulation.ExecPath != "" {
		w, err := watcher.New(watcher.DefaultConfig(cfg.Simulation.ExecPath))
		if err == nil {
			if err := w.Start(); err == nil {
				watcherHandle = w
				watcherCtx, watcherCancel = context.WithCancel(context.Background())
				watcherListener = pubsub.NewContinuousListener(watcherCtx, w.Broker())
			} else {
				// Cleanup on start failure
				_ = w.Stop()
			}
		}
		// Silently ignore watcher init errors - relaunch stays manual
	}

	// Create shared services
	services := mode.Services{
		Ctrl:       ctrl,
		Config:     &cfg,
		ConfigPath: configPath,
		History:    hist,
		Clock:      mode.RealClock{},
	}

	// Create log overlay and start listening if debug mode is enabled
	overlay := logoverlay.New()
	var logListenCmd tea.Cmd
	if debugMode {
		logListenCmd = overlay.StartListening()
	}

	return Model{
		currentMode:     mode.ModeConsole,
		console:         console.New(services),
		services:        services,
		logOverlay:      overlay,
		debugMode:       debugMode,
		logListenCmd:    logListenCmd,
		watcherHandle:   watcherHandle,
		watcherCtx:      watcherCtx,
		watcherCancel:   watcherCancel,
		watcherListener: watcherListener,
	}
}

// Init implements tea.Model. It starts the console mode and, when available,
// the watcher and log overlay listeners.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.console.Init(),
	}

	if m.watcherListener != nil {
		cmds = append(cmds, m.watcherListener.Listen())
	}

	if m.logListenCmd != nil {
		cmds = append(cmds, m.logListenCmd)
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		m.console = m.console.SetSize(msg.Width, msg.Height).(console.Model)
		m.toaster = m.toaster.SetSize(msg.Width, msg.Height)
		m.logOverlay.SetSize(msg.Width, msg.Height)

		return m, nil

	case tea.MouseMsg:
		// Route mouse events to log overlay when visible
		if m.logOverlay.Visible() {
			var cmd tea.Cmd
			m.logOverlay, cmd = m.logOverlay.Update(msg)
			return m, cmd
		}

	case log.LogEvent:
		// Route to log overlay (handles accumulation and listening)
		var cmd tea.Cmd
		m.logOverlay, cmd = m.logOverlay.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.debugMode && key.Matches(msg, keys.App.Logs) {
			m.logOverlay.Toggle()
			return m, nil
		}

		// A visible log overlay takes precedence for key handling
		if m.logOverlay.Visible() {
			var cmd tea.Cmd
			m.logOverlay, cmd = m.logOverlay.Update(msg)

			return m, cmd
		}

	case pubsub.Event[watcher.Event]:
		return m.handleWatcherEvent(msg.Payload)

	case mode.ShowToastMsg:
		m.toaster = m.toaster.Show(msg.Message, msg.Style)

		return m, toaster.ScheduleDismiss(toastDuration)

	case toaster.DismissMsg:
		m.toaster = m.toaster.Hide()

		return m, nil

	case logoverlay.CloseMsg:
		m.logOverlay.Hide()

		return m, nil
	}

	// Delegate all other messages to the active mode controller
	switch m.currentMode {
	case mode.ModeConsole:
		updated, cmd := m.console.Update(msg)
		m.console = updated.(console.Model)

		return m, cmd
	}

	return m, nil
}

// handleWatcherEvent reacts to a rebuilt simulation binary: either relaunch
// immediately or nudge the operator, depending on configuration.
func (m Model) handleWatcherEvent(ev watcher.Event) (tea.Model, tea.Cmd) {
	switch ev.Type {
	case watcher.ExecChanged:
		log.Info(log.CatWatcher, "Simulation executable changed",
			"path", m.services.Config.Simulation.ExecPath,
			"autoRelaunch", m.services.Config.Simulation.AutoRelaunch)

		action := m.notifyRebuildCmd()
		if m.services.Config.Simulation.AutoRelaunch {
			action = m.relaunchCmd()
		}
		return m, tea.Batch(action, m.watcherListener.Listen())

	case watcher.WatchError:
		log.Warn(log.CatWatcher, "Watcher error received", "error", ev.Error)
		return m, m.watcherListener.Listen()
	}

	// Continue listening for unknown event types
	return m, m.watcherListener.Listen()
}

// notifyRebuildCmd tells the operator the binary changed without acting.
func (m Model) notifyRebuildCmd() tea.Cmd {
	return func() tea.Msg {
		return mode.ShowToastMsg{
			Message: "Simulation executable changed, ctrl+r to relaunch",
			Style:   toaster.StyleInfo,
		}
	}
}

// relaunchCmd restarts the simulation with the rebuilt binary.
func (m Model) relaunchCmd() tea.Cmd {
	ctrl := m.services.Ctrl
	if ctrl == nil {
		return nil
	}
	return func() tea.Msg {
		if err := ctrl.Relaunch(context.Background()); err != nil {
			return mode.ShowToastMsg{
				Message: fmt.Sprintf("Auto relaunch failed: %v", err),
				Style:   toaster.StyleError,
			}
		}
		return mode.ShowToastMsg{
			Message: "Simulation relaunched with rebuilt binary",
			Style:   toaster.StyleSuccess,
		}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	view := m.console.View()

	// Overlay toaster on top of the active mode's view
	if m.toaster.Visible() {
		view = m.toaster.Overlay(view, m.width, m.height)
	}

	// Overlay log viewer on top (only in debug mode when visible)
	if m.debugMode && m.logOverlay.Visible() {
		view = m.logOverlay.Overlay(view)
	}

	return view
}

// Close releases resources held by the application.
func (m *Model) Close() error {
	m.logOverlay.StopListening()

	// Drop the console's controller subscription
	m.console.Cleanup()

	// Cancel watcher subscription context (stops listener)
	if m.watcherCancel != nil {
		m.watcherCancel()
	}

	// Close watcher if we own it
	if m.watcherHandle != nil {
		if err := m.watcherHandle.Stop(); err != nil {
			return err
		}
	}

	return nil
}

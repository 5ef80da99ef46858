// Package mode defines the mode controller interface and shared services.
package mode

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/orbitctl/orbitctl/internal/config"
	"github.com/orbitctl/orbitctl/internal/controller"
	"github.com/orbitctl/orbitctl/internal/history"
	"github.com/orbitctl/orbitctl/internal/ui/toaster"
)

// AppMode identifies the current application mode.
type AppMode int

const (
	ModeConsole AppMode = iota
)

// Controller defines the interface all modes must implement.
type Controller interface {
	// Init returns initial commands for the mode.
	Init() tea.Cmd

	// Update handles messages and returns updated model and commands.
	Update(msg tea.Msg) (Controller, tea.Cmd)

	// View renders the mode's UI.
	View() string

	// SetSize handles terminal resize events.
	SetSize(width, height int) Controller
}

// Services contains shared dependencies injected into mode controllers.
type Services struct {
	Ctrl       *controller.Controller
	Config     *config.Config
	ConfigPath string
	History    *history.Repository
	Clock      Clock
}

// ShowToastMsg asks the application root to show a transient notice.
type ShowToastMsg struct {
	Message string
	Style   toaster.Style
}

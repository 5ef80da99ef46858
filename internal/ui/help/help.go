// Package help contains the help overlay component.
package help

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/orbitctl/orbitctl/internal/keys"
	"github.com/orbitctl/orbitctl/internal/ui/markdown"
	"github.com/orbitctl/orbitctl/internal/ui/overlay"
	"github.com/orbitctl/orbitctl/internal/ui/styles"
)

// quickRefWidth is the render width for the protocol quick reference.
const quickRefWidth = 62

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.OverlayTitleColor).
			PaddingLeft(2)

	dividerStyle = lipgloss.NewStyle().
			Foreground(styles.OverlayBorderColor)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.OverlayTitleColor).
			MarginTop(1)

	keyStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondaryColor).
			Width(11)

	descStyle = lipgloss.NewStyle().
			Foreground(styles.TextPrimaryColor)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(styles.OverlayBorderColor)

	contentStyle = lipgloss.NewStyle().
			Padding(0, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(styles.TextMutedColor).
			MarginTop(1)
)

// Model holds the help view state.
type Model struct {
	channelPath   string
	markdownStyle string
	renderer      *markdown.CachedRenderer
	width         int
	height        int
}

// New creates a help view. The channel path is shown in the protocol quick
// reference; markdownStyle selects the glamour style for it.
func New(channelPath, markdownStyle string) Model {
	return Model{
		channelPath:   channelPath,
		markdownStyle: markdownStyle,
		renderer:      markdown.NewCachedRenderer(),
	}
}

// SetSize updates dimensions.
func (m Model) SetSize(width, height int) Model {
	m.width = width
	m.height = height
	return m
}

// View renders the help overlay (standalone, no background).
func (m Model) View() string {
	return m.Overlay("")
}

// Overlay renders the help box on top of a background view.
func (m Model) Overlay(background string) string {
	helpBox := m.renderContent()

	if background == "" {
		return lipgloss.Place(
			m.width, m.height,
			lipgloss.Center, lipgloss.Center,
			helpBox,
		)
	}

	return overlay.Place(overlay.Config{
		Width:    m.width,
		Height:   m.height,
		Position: overlay.Center,
	}, helpBox, background)
}

// sectionTitles name the binding groups from keys.ConsoleFullHelp, in order.
var sectionTitles = []string{"Focus", "Actions", "Panes", "General"}

// renderContent builds the help box content.
func (m Model) renderContent() string {
	columnStyle := lipgloss.NewStyle().MarginRight(4)

	groups := keys.ConsoleFullHelp()
	cols := make([]string, 0, len(groups))
	for i, group := range groups {
		var col strings.Builder
		col.WriteString(sectionStyle.Render(sectionTitles[i]))
		col.WriteString("\n")
		for _, b := range group {
			col.WriteString(renderBinding(b))
		}
		rendered := col.String()
		if i < len(groups)-1 {
			rendered = columnStyle.Render(rendered)
		}
		cols = append(cols, rendered)
	}

	columns := lipgloss.JoinHorizontal(lipgloss.Top, cols...)

	protocol := sectionStyle.Render("Protocol") + "\n" + m.renderQuickRef()

	contentWidth := max(lipgloss.Width(columns), lipgloss.Width(protocol))
	boxWidth := contentWidth + 4 // Horizontal padding (2 each side)

	body := contentStyle.Render(
		columns + "\n" + protocol + "\n" + footerStyle.Render("Press ? or esc to close"),
	)

	divider := dividerStyle.Render(strings.Repeat("─", boxWidth))

	var content strings.Builder
	content.WriteString(titleStyle.Render("Keybindings"))
	content.WriteString("\n")
	content.WriteString(divider)
	content.WriteString("\n")
	content.WriteString(body)

	return boxStyle.Width(boxWidth).Render(content.String())
}

// renderQuickRef renders the quick reference through the markdown cache,
// falling back to the raw text if rendering fails.
func (m Model) renderQuickRef() string {
	doc := m.quickRef()
	rendered, err := m.renderer.Render(context.Background(), doc, quickRefWidth, m.markdownStyle)
	if err != nil {
		return doc
	}
	return strings.TrimRight(rendered, "\n")
}

// quickRef is the condensed wire contract; the docs command carries the full
// reference.
func (m Model) quickRef() string {
	return fmt.Sprintf(
		"Socket `%s`, one record per apply: `<speed>, <altitude>`\n"+
			"(UTF-8, no newline). Handshake: first stdout line with `ID`,\n"+
			"e.g. `ID 52428806`. Full reference: `orbitctl docs`.",
		m.channelPath,
	)
}

func renderBinding(b key.Binding) string {
	if !b.Enabled() {
		return ""
	}
	help := b.Help()
	return renderKeyDesc(help.Key, help.Desc)
}

func renderKeyDesc(key, desc string) string {
	return keyStyle.Render(key) + descStyle.Render(desc) + "\n"
}

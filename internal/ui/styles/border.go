// Package styles contains Lip Gloss style definitions.
package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Border characters (rounded)
const (
	borderTopLeft     = "╭"
	borderTopRight    = "╮"
	borderBottomLeft  = "╰"
	borderBottomRight = "╯"
	borderHorizontal  = "─"
	borderVertical    = "│"
)

// RenderWithTitleBorder renders content inside a rounded border with the
// title embedded in the top edge, lazygit style: ╭─ Title ─────╮
// titleColor styles the title text; focusedBorderColor replaces the default
// border color while focused is true.
func RenderWithTitleBorder(content, title string, width, height int, focused bool, titleColor, focusedBorderColor lipgloss.TerminalColor) string {
	var borderColor lipgloss.TerminalColor = BorderDefaultColor
	if focused {
		borderColor = focusedBorderColor
	}

	borderStyle := lipgloss.NewStyle().Foreground(borderColor)
	titleStyle := lipgloss.NewStyle().Foreground(titleColor)

	innerWidth := width - 2
	if innerWidth < 1 {
		innerWidth = 1
	}
	contentHeight := height - 2
	if contentHeight < 1 {
		contentHeight = 1
	}

	topBorder := topBorderWithTitle(title, innerWidth, borderStyle, titleStyle)
	bottomBorder := borderStyle.Render(borderBottomLeft + strings.Repeat(borderHorizontal, innerWidth) + borderBottomRight)

	// Lipgloss handles wrapping and truncation when constraining the body.
	constrained := lipgloss.NewStyle().Width(innerWidth).Height(contentHeight).Render(content)
	bodyLines := strings.Split(constrained, "\n")

	rows := make([]string, contentHeight)
	for i := 0; i < contentHeight; i++ {
		var line string
		if i < len(bodyLines) {
			line = bodyLines[i]
		}
		// Pad to innerWidth so the right border lines up.
		if pad := innerWidth - lipgloss.Width(line); pad > 0 {
			line += strings.Repeat(" ", pad)
		}
		rows[i] = borderStyle.Render(borderVertical) + line + borderStyle.Render(borderVertical)
	}

	var out strings.Builder
	out.WriteString(topBorder)
	out.WriteString("\n")
	out.WriteString(strings.Join(rows, "\n"))
	out.WriteString("\n")
	out.WriteString(bottomBorder)
	return out.String()
}

// topBorderWithTitle builds the top edge: ╭─ Title ──────╮
// Falls back to a plain edge when the title is empty or the pane is too
// narrow to fit "─ x ─" around it.
func topBorderWithTitle(title string, innerWidth int, borderStyle, titleStyle lipgloss.Style) string {
	if innerWidth < 1 {
		return borderStyle.Render(borderTopLeft + borderTopRight)
	}

	plain := borderStyle.Render(borderTopLeft + strings.Repeat(borderHorizontal, innerWidth) + borderTopRight)
	if title == "" || innerWidth < 4 {
		return plain
	}

	display := title
	if avail := innerWidth - 4; lipgloss.Width(display) > avail {
		display = truncateTitle(display, avail)
	}

	// "─ " + title + " " + trailing dashes fill the inner width exactly.
	trailing := innerWidth - 3 - lipgloss.Width(display)
	if trailing < 0 {
		trailing = 0
	}

	return borderStyle.Render(borderTopLeft+borderHorizontal+" ") +
		titleStyle.Render(display) +
		borderStyle.Render(" "+strings.Repeat(borderHorizontal, trailing)+borderTopRight)
}

// truncateTitle shortens a title to maxWidth cells, ending in an ellipsis
// when anything was cut.
func truncateTitle(s string, maxWidth int) string {
	if maxWidth < 1 {
		return ""
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return strings.Repeat(".", maxWidth)
	}

	kept := ""
	for _, r := range s {
		if lipgloss.Width(kept+string(r)) > maxWidth-3 {
			break
		}
		kept += string(r)
	}
	return kept + "..."
}

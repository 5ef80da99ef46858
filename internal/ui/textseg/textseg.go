// Package textseg provides grapheme-aware width and truncation helpers for
// telemetry lines. Simulation output can carry emoji and CJK text; slicing
// by bytes or runes would split clusters and corrupt the pane.
package textseg

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

// Width returns the display width of s in terminal cells.
// ASCII = 1 cell, emoji = 2, CJK = 2.
func Width(s string) int {
	return runewidth.StringWidth(s)
}

// Count returns the number of grapheme clusters in s.
func Count(s string) int {
	return uniseg.GraphemeClusterCount(s)
}

// Truncate shortens s to at most maxWidth display cells without splitting a
// grapheme cluster. When anything was cut the result ends in tail (tail cells
// count against maxWidth).
func Truncate(s string, maxWidth int, tail string) string {
	if maxWidth <= 0 {
		return ""
	}
	if Width(s) <= maxWidth {
		return s
	}

	budget := maxWidth - Width(tail)
	if budget < 0 {
		budget = 0
	}

	var out strings.Builder
	used := 0
	state := -1
	for len(s) > 0 {
		cluster, rest, _, newState := uniseg.StepString(s, state)
		w := runewidth.StringWidth(cluster)
		if used+w > budget {
			break
		}
		out.WriteString(cluster)
		used += w
		s = rest
		state = newState
	}
	return out.String() + tail
}

// PadRight pads s with spaces to exactly width display cells, truncating
// first when s is too wide.
func PadRight(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if Width(s) > width {
		s = Truncate(s, width, "")
	}
	if pad := width - Width(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}

package cli

import (
	"fmt"
	"strings"

	"github.com/bastiangx/choiceserve/pkg/choice"
	"github.com/charmbracelet/lipgloss"
)

var (
	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	matchStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#d7827e", Dark: "#ebbcba"})
	headerStyle = lipgloss.NewStyle().Italic(true).Underline(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#907aa9", Dark: "#c4a7e7"})
	tagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#286983", Dark: "#9ccfd8"})
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#9893a5", Dark: "#6e6a86"})
)

// Highlight applies mark to the parts of s covered by ranges.
// Ranges must be sorted and non-overlapping; out of bounds parts are ignored.
func Highlight(s string, ranges []choice.Range, mark func(string) string) string {
	if len(ranges) == 0 {
		return s
	}
	var b strings.Builder
	pos := 0
	for _, r := range ranges {
		start, end := max(r.Start, pos), min(r.End, len(s))
		if start >= end {
			continue
		}
		b.WriteString(s[pos:start])
		b.WriteString(mark(s[start:end]))
		pos = end
	}
	b.WriteString(s[pos:])
	return b.String()
}

// FormatChoice renders a choice name with its tag.
func FormatChoice(c *choice.Choice) string {
	if c == nil {
		return ""
	}
	out := nameStyle.Render(c.Name)
	if tag := c.KeywordOrTag(); tag != "" {
		out += " " + tagStyle.Render(tag)
	}
	return out
}

// FormatResult renders one ranked row. Headers print on their own.
func FormatResult(n int, sc choice.ScoredChoice, showScore bool) string {
	if sc.Item.IsHeader() || sc.Item.Skip {
		return headerStyle.Render(sc.Item.Name)
	}

	name := Highlight(sc.Item.Name, sc.Matches["name"], func(p string) string {
		return matchStyle.Render(p)
	})
	line := fmt.Sprintf("%2d. %s", n, name)
	if tag := sc.EffectiveTag(); tag != "" {
		line += " " + tagStyle.Render(tag)
	}
	if group := sc.EffectiveGroup(); group != "" {
		line += " " + dimStyle.Render("("+group+")")
	}
	if showScore {
		line += " " + dimStyle.Render(fmt.Sprintf("[%d]", sc.Score))
	}
	return line
}

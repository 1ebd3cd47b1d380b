package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	gutterStyle    = lipgloss.NewStyle().Foreground(faint)
	highlightStyle = lipgloss.NewStyle().Foreground(fg).Background(lipgloss.Color("#451A03")).Bold(true)
	markerStyle    = lipgloss.NewStyle().Foreground(warning).Bold(true)
)

// sourceContext is the number of lines shown around the highlighted line.
const sourceContext = 5

// RenderSource renders a captured affected file with line numbers. If line
// is positive only its surroundings are shown and it is highlighted.
func RenderSource(title string, content []byte, line int) string {
	var b strings.Builder

	b.WriteString("\n  " + sectionStyle.Render(title) + "\n\n")

	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	from, to := 1, len(lines)
	if line > 0 {
		from = max(1, line-sourceContext)
		to = min(len(lines), line+sourceContext)
	}
	width := len(fmt.Sprintf("%d", to))

	for n := from; n <= to; n++ {
		text := strings.ReplaceAll(lines[n-1], "\t", "    ")
		number := fmt.Sprintf("%*d", width, n)
		if n == line {
			fmt.Fprintf(&b, "  %s %s %s\n", markerStyle.Render("▶"), markerStyle.Render(number), highlightStyle.Render(text))
			continue
		}
		fmt.Fprintf(&b, "    %s %s\n", gutterStyle.Render(number), text)
	}

	b.WriteString("\n")
	return b.String()
}

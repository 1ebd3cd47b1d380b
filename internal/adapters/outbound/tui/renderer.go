package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/openkraft/issuegate/internal/domain"
)

// ── warm palette ──
var (
	accent  = lipgloss.Color("#D97706") // amber
	fg      = lipgloss.Color("#E8E6E3") // warm light gray
	dim     = lipgloss.Color("#6B7280") // muted gray
	faint   = lipgloss.Color("#3F3F46") // very dim
	success = lipgloss.Color("#22C55E") // green
	danger  = lipgloss.Color("#EF4444") // red
	warning = lipgloss.Color("#F59E0B") // amber-yellow
	info    = lipgloss.Color("#8B949E") // soft blue-gray
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			Align(lipgloss.Center)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 4).
			Align(lipgloss.Center).
			Width(68)

	resultColors = map[domain.OverallResult]lipgloss.Color{
		domain.ResultSuccess:  success,
		domain.ResultUnstable: warning,
		domain.ResultFailure:  danger,
	}

	dimStyle      = lipgloss.NewStyle().Foreground(dim)
	faintStyle    = lipgloss.NewStyle().Foreground(faint)
	passStyle     = lipgloss.NewStyle().Foreground(success)
	failStyle     = lipgloss.NewStyle().Foreground(danger)
	warnStyle     = lipgloss.NewStyle().Foreground(warning)
	errorTagStyle = lipgloss.NewStyle().Foreground(danger).Bold(true)
	highTagStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FB923C")).Bold(true) // orange
	warnTagStyle  = lipgloss.NewStyle().Foreground(warning).Bold(true)
	infoTagStyle  = lipgloss.NewStyle().Foreground(info)
	fileStyle     = lipgloss.NewStyle().Foreground(dim)
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(fg)
	sectionStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent)
	separatorLine = faintStyle.Render(strings.Repeat("─", 64))
)

// maxRenderedIssues caps the issue list of RenderResult.
const maxRenderedIssues = 50

// RenderResult renders an analysis result as a styled terminal report.
func RenderResult(result *domain.AnalysisResult) string {
	var b strings.Builder

	// ── Header ──
	title := headerStyle.Render("issuegate")
	owner := dimStyle.Render(fmt.Sprintf("%s  %s", result.Owner.Job, result.Owner.DisplayName()))
	verdict := resultStyle(result.OverallResult).Render(string(result.OverallResult))
	counts := fmt.Sprintf("%d issues  ·  %d new  ·  %d fixed", result.TotalSize, result.NewSize, result.FixedSize)

	b.WriteString(boxStyle.Render(title + "\n" + owner + "\n\n" + verdict + "\n" + dimStyle.Render(counts)))
	b.WriteString("\n\n")

	// ── Severities ──
	b.WriteString("  " + titleStyle.Render("Severities") + "  " + renderCounts(result.Totals) + "\n")

	// ── Quality gate ──
	renderGates(&b, result.QualityGate)

	// ── Modules ──
	renderGroups(&b, "Modules", result.Modules, result.TotalSize)

	b.WriteString("\n")
	b.WriteString("  " + separatorLine)
	b.WriteString("\n\n")

	// ── Issues ──
	if result.HasIssues() {
		b.WriteString("  " + titleStyle.Render("Issues") + "\n\n")
		for i, issue := range result.Issues {
			if i == maxRenderedIssues {
				fmt.Fprintf(&b, "    %s\n", dimStyle.Render(fmt.Sprintf("… %d more", len(result.Issues)-maxRenderedIssues)))
				break
			}
			renderIssue(&b, issue)
		}
	} else {
		b.WriteString("  " + passStyle.Render("No issues found.") + "\n")
	}

	// ── Messages ──
	if len(result.ErrorMessages) > 0 {
		b.WriteString("\n  " + sectionStyle.Render("Errors") + "\n")
		for _, msg := range result.ErrorMessages {
			b.WriteString("    " + failStyle.Render(msg) + "\n")
		}
	}
	if len(result.InfoMessages) > 0 {
		b.WriteString("\n  " + sectionStyle.Render("Log") + "\n")
		for _, msg := range result.InfoMessages {
			b.WriteString("    " + dimStyle.Render(msg) + "\n")
		}
	}

	b.WriteString("\n")
	return b.String()
}

func renderCounts(c domain.SeverityCounts) string {
	return strings.Join([]string{
		errorTagStyle.Render(fmt.Sprintf("%d error", c.Error)),
		highTagStyle.Render(fmt.Sprintf("%d high", c.High)),
		warnTagStyle.Render(fmt.Sprintf("%d normal", c.Normal)),
		infoTagStyle.Render(fmt.Sprintf("%d low", c.Low)),
	}, "  ")
}

func renderGates(b *strings.Builder, gates []domain.GateStatus) {
	b.WriteString("\n  " + sectionStyle.Render("Quality gate") + "\n")
	if len(gates) == 0 {
		b.WriteString("    " + dimStyle.Render("no quality gates configured") + "\n")
		return
	}
	for _, g := range gates {
		icon := passStyle.Render("●")
		if g.Fired {
			icon = resultStyle(g.Result).Render("●")
		}
		fmt.Fprintf(b, "    %s %s %s\n",
			icon,
			padRight(g.Name, 26),
			dimStyle.Render(fmt.Sprintf("%d / %d", g.Actual, g.Threshold)),
		)
	}
}

func renderGroups(b *strings.Builder, title string, groups []domain.GroupStats, total int) {
	if len(groups) == 0 {
		return
	}
	b.WriteString("\n  " + sectionStyle.Render(title) + "\n")
	for _, g := range groups {
		name := g.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(b, "    %s %s %s\n",
			titleStyle.Render(padRight(name, 30)),
			share(g.Total, total, 16),
			dimStyle.Render(fmt.Sprintf("%d", g.Total)),
		)
	}
}

func renderIssue(b *strings.Builder, issue *domain.Finding) {
	fmt.Fprintf(b, "    %s %s\n", severityTag(issue.Severity), fileStyle.Render(shortenPath(issue.Location())))
	fmt.Fprintf(b, "           %s\n", dimStyle.Render(issue.Message))
}

func severityTag(severity domain.Severity) string {
	switch severity {
	case domain.SeverityError:
		return errorTagStyle.Render("error ")
	case domain.SeverityHigh:
		return highTagStyle.Render("high  ")
	case domain.SeverityNormal:
		return warnTagStyle.Render("normal")
	default:
		return infoTagStyle.Render("low   ")
	}
}

func share(part, total, width int) string {
	filled := 0
	if total > 0 {
		filled = max(0, min(part*width/total, width))
	}
	return lipgloss.NewStyle().Foreground(accent).Render(strings.Repeat("█", filled)) +
		lipgloss.NewStyle().Foreground(faint).Render(strings.Repeat("░", width-filled))
}

func resultStyle(r domain.OverallResult) lipgloss.Style {
	color, ok := resultColors[r]
	if !ok {
		color = fg
	}
	return lipgloss.NewStyle().Bold(true).Foreground(color)
}

func shortenPath(path string) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) > 4 {
		return "…/" + strings.Join(parts[len(parts)-4:], "/")
	}
	return path
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// RenderTrend formats the trend of a job, newest build first.
func RenderTrend(job string, actions []*domain.ResultAction) string {
	if len(actions) == 0 {
		return "  " + dimStyle.Render("No results found for "+job+".") + "\n"
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString("  " + titleStyle.Render("Trend of "+job) + "\n")
	b.WriteString("  " + faintStyle.Render(strings.Repeat("─", 50)) + "\n\n")

	for i, a := range actions {
		r := a.Result
		hash := r.Commit
		if len(hash) > 7 {
			hash = hash[:7]
		}
		if hash == "" {
			hash = "·······"
		}

		line := fmt.Sprintf("  %s  %s  %s  %s",
			dimStyle.Render(padRight(a.Build.DisplayName(), 6)),
			faintStyle.Render(hash),
			resultStyle(r.OverallResult).Render(padRight(string(r.OverallResult), 8)),
			fmt.Sprintf("%4d issues", r.TotalSize),
		)

		// actions are newest first, so the next entry is the older build
		if i+1 < len(actions) {
			diff := r.TotalSize - actions[i+1].Result.TotalSize
			if diff > 0 {
				line += "  " + failStyle.Render(fmt.Sprintf("↑%d", diff))
			} else if diff < 0 {
				line += "  " + passStyle.Render(fmt.Sprintf("↓%d", -diff))
			}
		}

		b.WriteString(line)
		b.WriteString("\n")
	}

	return b.String()
}

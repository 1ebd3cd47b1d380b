package parser

import (
	"context"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/openkraft/issuegate/internal/domain"
)

var (
	eclipseHeader    = regexp.MustCompile(`^\s*\d+\.\s+(WARNING|ERROR|INFO) in (.+?)\s+\(at line (\d+)\)\s*$`)
	eclipseCaret     = regexp.MustCompile(`^\s*\^+\s*$`)
	eclipseSeparator = "----------"
)

// Eclipse parses the text output of the Eclipse compiler for Java (ECJ).
// A finding is a header line, the offending source line, a caret line and
// the message, terminated by a separator line.
type Eclipse struct{}

func NewEclipse() *Eclipse { return &Eclipse{} }

func (p *Eclipse) ID() string { return "eclipse" }

func (p *Eclipse) Parse(ctx context.Context, r io.Reader, _ string) ([]*domain.Finding, error) {
	var (
		findings []*domain.Finding
		current  *domain.Finding
		body     []string
	)

	flush := func() {
		if current == nil {
			return
		}
		current.Message = eclipseMessage(body)
		current.Column = eclipseColumn(body)
		findings = append(findings, current)
		current, body = nil, nil
	}

	err := scanLines(ctx, r, func(line string) {
		if m := eclipseHeader.FindStringSubmatch(line); m != nil {
			flush()
			n, _ := strconv.Atoi(m[3])
			current = &domain.Finding{
				FilePath: m[2],
				Severity: severityOf(m[1]),
				Line:     n,
				Type:     "ECJ",
			}
			return
		}
		if strings.TrimSpace(line) == eclipseSeparator {
			flush()
			return
		}
		if current != nil {
			body = append(body, line)
		}
	})
	if err != nil {
		return nil, err
	}
	flush()
	return findings, nil
}

// eclipseMessage returns the lines after the caret line, or the whole body if
// the compiler printed no source excerpt.
func eclipseMessage(body []string) string {
	rest := body
	for i, line := range body {
		if eclipseCaret.MatchString(line) {
			rest = body[i+1:]
			break
		}
	}
	var parts []string
	for _, line := range rest {
		if s := strings.TrimSpace(line); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// eclipseColumn derives the 1-based column from the caret line, relative to
// the indentation of the source line above it.
func eclipseColumn(body []string) int {
	for i, line := range body {
		if !eclipseCaret.MatchString(line) || i == 0 {
			continue
		}
		source := body[i-1]
		indent := len(source) - len(strings.TrimLeft(source, " \t"))
		col := strings.IndexByte(line, '^') - indent + 1
		if col < 1 {
			return 0
		}
		return col
	}
	return 0
}

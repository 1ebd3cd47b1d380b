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
	// [javac] /src/Foo.java:12: warning: [deprecation] bar() has been deprecated
	javacLine = regexp.MustCompile(`^(?:\s*\[javac\]\s+)?(.+?\.java):(\d+):\s*(warning|error):\s*(.*)$`)
	// [WARNING] /src/Foo.java:[12,5] [deprecation] bar() has been deprecated
	mavenLine = regexp.MustCompile(`^\[(WARNING|ERROR|INFO)\]\s+(.+?\.java):\[(\d+),(\d+)\]\s*(.*)$`)
	category  = regexp.MustCompile(`^\[(\w[\w-]*)\]\s*(.*)$`)
)

// Javac parses javac output as printed by Ant and Maven builds.
type Javac struct{}

func NewJavac() *Javac { return &Javac{} }

func (p *Javac) ID() string { return "java" }

func (p *Javac) Parse(ctx context.Context, r io.Reader, _ string) ([]*domain.Finding, error) {
	var findings []*domain.Finding
	err := scanLines(ctx, r, func(line string) {
		if m := mavenLine.FindStringSubmatch(line); m != nil {
			n, _ := strconv.Atoi(m[3])
			col, _ := strconv.Atoi(m[4])
			findings = append(findings, javacFinding(m[2], n, col, m[1], m[5]))
			return
		}
		if m := javacLine.FindStringSubmatch(line); m != nil {
			n, _ := strconv.Atoi(m[2])
			findings = append(findings, javacFinding(m[1], n, 0, m[3], m[4]))
		}
	})
	if err != nil {
		return nil, err
	}
	return findings, nil
}

func javacFinding(file string, line, col int, severity, message string) *domain.Finding {
	f := &domain.Finding{
		FilePath: strings.TrimSpace(file),
		Line:     line,
		Column:   col,
		Severity: severityOf(severity),
		Message:  strings.TrimSpace(message),
		Type:     "JavaC",
	}
	if m := category.FindStringSubmatch(f.Message); m != nil {
		f.Category = m[1]
		f.Message = m[2]
	}
	return f
}

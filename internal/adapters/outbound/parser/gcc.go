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
	gccLine   = regexp.MustCompile(`^(.+?):(\d+):(?:(\d+):)?\s*(warning|error|fatal error|note):\s*(.*)$`)
	gccOption = regexp.MustCompile(`\s*\[(-W[^\]]+)\]\s*$`)
)

// Gcc parses diagnostics of gcc and clang.
type Gcc struct{}

func NewGcc() *Gcc { return &Gcc{} }

func (p *Gcc) ID() string { return "gcc" }

func (p *Gcc) Parse(ctx context.Context, r io.Reader, _ string) ([]*domain.Finding, error) {
	var findings []*domain.Finding
	err := scanLines(ctx, r, func(line string) {
		m := gccLine.FindStringSubmatch(line)
		if m == nil {
			return
		}
		n, _ := strconv.Atoi(m[2])
		col, _ := strconv.Atoi(m[3])
		f := &domain.Finding{
			FilePath: strings.TrimSpace(m[1]),
			Line:     n,
			Column:   col,
			Severity: severityOf(m[4]),
			Message:  strings.TrimSpace(m[5]),
			Type:     "GCC",
		}
		if o := gccOption.FindStringSubmatch(f.Message); o != nil {
			f.Category = o[1]
			f.Message = strings.TrimSpace(gccOption.ReplaceAllString(f.Message, ""))
		}
		findings = append(findings, f)
	})
	if err != nil {
		return nil, err
	}
	return findings, nil
}

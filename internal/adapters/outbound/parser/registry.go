package parser

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/openkraft/issuegate/internal/domain"
)

// Registry implements domain.ParserRegistry.
type Registry struct {
	parsers map[string]domain.IssueParser
}

// NewRegistry returns a registry holding the given parsers. A later parser
// replaces an earlier one with the same id.
func NewRegistry(parsers ...domain.IssueParser) *Registry {
	r := &Registry{parsers: make(map[string]domain.IssueParser, len(parsers))}
	for _, p := range parsers {
		r.parsers[p.ID()] = p
	}
	return r
}

// Default returns a registry with all built-in parsers.
func Default() *Registry {
	return NewRegistry(NewEclipse(), NewJavac(), NewGcc())
}

func (r *Registry) Parser(id string) (domain.IssueParser, error) {
	p, ok := r.parsers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownParser, id)
	}
	return p, nil
}

// IDs returns the registered parser ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.parsers))
	for id := range r.parsers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

const maxLineSize = 1024 * 1024

// scanLines calls fn for every line of r and stops early if ctx is done.
func scanLines(ctx context.Context, r io.Reader, fn func(line string)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	n := 0
	for sc.Scan() {
		n++
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		fn(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading report: %w", err)
	}
	return ctx.Err()
}

// severityOf maps the severity words used by compilers.
func severityOf(word string) domain.Severity {
	switch word {
	case "ERROR", "error", "fatal error":
		return domain.SeverityError
	case "INFO", "info", "note", "NOTE":
		return domain.SeverityLow
	default:
		return domain.SeverityNormal
	}
}

package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/IGLOU-EU/go-wildcard/v2"

	"github.com/openkraft/issuegate/internal/domain"
)

var skipDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	".svn":         true,
	".hg":          true,
	"vendor":       true,
}

// ReportScanner implements domain.ReportFinder with Ant-style patterns.
// Patterns are relative to each workspace root; "**" matches any number of
// directories and "*" matches within one path segment. A pattern may list
// several alternatives separated by commas.
type ReportScanner struct{}

func New() *ReportScanner {
	return &ReportScanner{}
}

// Find returns the absolute paths of all files below roots that match
// pattern, sorted and without duplicates. Roots that do not exist are
// skipped.
func (s *ReportScanner) Find(ctx context.Context, ws domain.Workspace, roots []string, pattern string) ([]string, error) {
	patterns := splitPatterns(pattern)
	if len(patterns) == 0 {
		return nil, nil
	}

	w := &walker{ws: ws, listings: map[string][]domain.DirEntry{}, found: map[string]bool{}}
	for _, root := range roots {
		root = strings.TrimSuffix(strings.ReplaceAll(root, `\`, "/"), "/")
		if root == "" {
			root = "/"
		}
		for _, p := range patterns {
			if err := w.match(ctx, root, p); err != nil {
				return nil, err
			}
		}
	}

	files := make([]string, 0, len(w.found))
	for f := range w.found {
		files = append(files, f)
	}
	sort.Strings(files)
	return files, nil
}

// walker holds the state of one Find call. Listings are cached because
// "**" revisits directories for every remaining segment.
type walker struct {
	ws       domain.Workspace
	listings map[string][]domain.DirEntry
	found    map[string]bool
}

func (w *walker) match(ctx context.Context, dir string, segments []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(segments) == 0 {
		return nil
	}

	entries, err := w.list(ctx, dir)
	if err != nil {
		return err
	}

	seg, rest := segments[0], segments[1:]
	if seg == "**" {
		// zero directories
		if err := w.match(ctx, dir, rest); err != nil {
			return err
		}
		// one or more directories
		for _, e := range entries {
			if e.IsDir && !skipDirs[e.Name] {
				if err := w.match(ctx, path.Join(dir, e.Name), segments); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for _, e := range entries {
		if !wildcard.Match(seg, e.Name) {
			continue
		}
		full := path.Join(dir, e.Name)
		switch {
		case len(rest) == 0 && !e.IsDir:
			w.found[full] = true
		case len(rest) > 0 && e.IsDir:
			if err := w.match(ctx, full, rest); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *walker) list(ctx context.Context, dir string) ([]domain.DirEntry, error) {
	if entries, ok := w.listings[dir]; ok {
		return entries, nil
	}
	entries, err := w.ws.ReadDir(ctx, dir)
	if errors.Is(err, fs.ErrNotExist) {
		entries, err = nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	w.listings[dir] = entries
	return entries, nil
}

// splitPatterns splits a comma separated pattern list into path segments.
// A trailing "/" means "everything below", as in Ant.
func splitPatterns(pattern string) [][]string {
	var out [][]string
	for _, p := range strings.Split(pattern, ",") {
		p = strings.TrimSpace(strings.ReplaceAll(p, `\`, "/"))
		if p == "" {
			continue
		}
		if strings.HasSuffix(p, "/") {
			p += "**"
		}
		var segments []string
		for _, seg := range strings.Split(p, "/") {
			if seg == "" || seg == "." {
				continue
			}
			if seg == "**" && len(segments) > 0 && segments[len(segments)-1] == "**" {
				continue
			}
			segments = append(segments, seg)
		}
		if len(segments) > 0 && segments[len(segments)-1] == "**" {
			segments = append(segments, "*")
		}
		if len(segments) > 0 {
			out = append(out, segments)
		}
	}
	return out
}

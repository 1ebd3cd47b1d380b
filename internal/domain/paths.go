package domain

import (
	"path"
	"strings"
)

// WithinRoots reports whether p is one of roots or lies below one. Both
// sides are compared with slash separators and without dot segments.
func WithinRoots(roots []string, p string) bool {
	p = cleanSlash(p)
	if p == "" {
		return false
	}
	for _, root := range roots {
		root = cleanSlash(root)
		switch {
		case root == "":
			continue
		case p == root:
			return true
		case root == "/" && strings.HasPrefix(p, "/"):
			return true
		case root != "/" && strings.HasPrefix(p, root+"/"):
			return true
		}
	}
	return false
}

func cleanSlash(p string) string {
	p = strings.TrimSpace(normalizeSeparators(p))
	if p == "" {
		return ""
	}
	return path.Clean(p)
}

package workspace

import (
	"context"
	"fmt"
	"io/fs"
	"sync"

	"github.com/openkraft/issuegate/internal/domain"
)

// linkResolver is implemented by workspaces that can see through symbolic
// links, such as FS.
type linkResolver interface {
	RealPath(ctx context.Context, p string) (string, error)
}

// Confined restricts a workspace to paths under its roots. A path that
// leaves the roots, textually or through a symbolic link, behaves like a
// missing file.
type Confined struct {
	ws    domain.Workspace
	roots []string

	mu        sync.Mutex
	realRoots []string
}

// Confine wraps ws so that only paths below roots are visible.
func Confine(ws domain.Workspace, roots ...string) *Confined {
	return &Confined{ws: ws, roots: roots}
}

func (c *Confined) ID() string { return c.ws.ID() }

func (c *Confined) ReadFile(ctx context.Context, path string) ([]byte, error) {
	ok, err := c.contains(ctx, path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, outside("read", path)
	}
	return c.ws.ReadFile(ctx, path)
}

func (c *Confined) Stat(ctx context.Context, path string) (domain.FileStat, error) {
	ok, err := c.contains(ctx, path)
	if err != nil || !ok {
		return domain.FileStat{}, err
	}
	return c.ws.Stat(ctx, path)
}

func (c *Confined) ReadDir(ctx context.Context, dir string) ([]domain.DirEntry, error) {
	ok, err := c.contains(ctx, dir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, outside("readdir", dir)
	}
	return c.ws.ReadDir(ctx, dir)
}

func (c *Confined) contains(ctx context.Context, p string) (bool, error) {
	if !domain.WithinRoots(c.roots, p) {
		return false, nil
	}
	links, ok := c.ws.(linkResolver)
	if !ok {
		return true, nil
	}

	target, err := links.RealPath(ctx, p)
	if err != nil {
		return false, fmt.Errorf("resolving %s: %w", p, err)
	}
	roots, err := c.resolvedRoots(ctx, links)
	if err != nil {
		return false, err
	}
	return domain.WithinRoots(roots, target), nil
}

// resolvedRoots resolves the roots once; a root that is itself a link keeps
// its contents visible.
func (c *Confined) resolvedRoots(ctx context.Context, links linkResolver) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.realRoots != nil {
		return c.realRoots, nil
	}
	roots := make([]string, 0, len(c.roots))
	for _, root := range c.roots {
		resolved, err := links.RealPath(ctx, root)
		if err != nil {
			return nil, fmt.Errorf("resolving root %s: %w", root, err)
		}
		roots = append(roots, resolved)
	}
	c.realRoots = roots
	return roots, nil
}

func outside(op, path string) error {
	return &fs.PathError{Op: op, Path: path, Err: fs.ErrNotExist}
}

package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/afero"

	"github.com/openkraft/issuegate/internal/domain"
)

// FS implements domain.Workspace on top of an afero filesystem. Every call
// runs in its own goroutine so that a hanging filesystem (NFS, FUSE) cannot
// outlive the caller's context.
type FS struct {
	id string
	fs afero.Fs
}

// NewLocal returns a workspace on the operating system filesystem.
func NewLocal() *FS {
	return NewFS("local", afero.NewOsFs())
}

// NewFS wraps an arbitrary afero filesystem, e.g. afero.NewMemMapFs in tests.
func NewFS(id string, fsys afero.Fs) *FS {
	return &FS{id: id, fs: fsys}
}

func (w *FS) ID() string { return w.id }

func (w *FS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return call(ctx, func() ([]byte, error) {
		return afero.ReadFile(w.fs, native(path))
	})
}

func (w *FS) Stat(ctx context.Context, path string) (domain.FileStat, error) {
	return call(ctx, func() (domain.FileStat, error) {
		info, err := w.fs.Stat(native(path))
		switch {
		case err == nil:
			return domain.FileStat{Exists: true, IsDir: info.IsDir()}, nil
		case isNotExist(err):
			return domain.FileStat{}, nil
		default:
			return domain.FileStat{}, err
		}
	})
}

// RealPath resolves the symbolic links in p. A missing tail is appended
// unresolved. Filesystems without link support return p cleaned.
func (w *FS) RealPath(ctx context.Context, p string) (string, error) {
	return call(ctx, func() (string, error) {
		return evalSymlinks(w.fs, p)
	})
}

func (w *FS) ReadDir(ctx context.Context, dir string) ([]domain.DirEntry, error) {
	return call(ctx, func() ([]domain.DirEntry, error) {
		infos, err := afero.ReadDir(w.fs, native(dir))
		if err != nil {
			return nil, err
		}
		entries := make([]domain.DirEntry, 0, len(infos))
		for _, info := range infos {
			entries = append(entries, domain.DirEntry{Name: info.Name(), IsDir: info.IsDir()})
		}
		return entries, nil
	})
}

type outcome[T any] struct {
	value T
	err   error
}

// call runs fn and returns early with ctx.Err() if the context ends first.
// The goroutine finishes in the background; its result is dropped.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	done := make(chan outcome[T], 1)
	go func() {
		v, err := fn()
		done <- outcome[T]{value: v, err: err}
	}()

	select {
	case o := <-done:
		return o.value, o.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func native(path string) string {
	return filepath.FromSlash(path)
}

// isNotExist treats "a parent is a regular file" like a missing path.
func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}

const maxLinkHops = 255

func evalSymlinks(fsys afero.Fs, p string) (string, error) {
	p = path.Clean(filepath.ToSlash(p))
	lst, ok := fsys.(afero.Lstater)
	links, ok2 := fsys.(afero.LinkReader)
	if !ok || !ok2 {
		return p, nil
	}

	resolved, pending := splitRoot(p)
	hops := 0
	for len(pending) > 0 {
		seg := pending[0]
		pending = pending[1:]
		if seg == ".." {
			resolved = path.Dir(resolved)
			continue
		}

		next := path.Join(resolved, seg)
		info, lstatCalled, err := lst.LstatIfPossible(native(next))
		if err != nil {
			if isNotExist(err) {
				return path.Join(append([]string{next}, pending...)...), nil
			}
			return "", err
		}
		if !lstatCalled || info.Mode()&fs.ModeSymlink == 0 {
			resolved = next
			continue
		}

		if hops++; hops > maxLinkHops {
			return "", fmt.Errorf("resolving %s: too many links", p)
		}
		target, err := links.ReadlinkIfPossible(native(next))
		if err != nil {
			return "", err
		}
		target = filepath.ToSlash(target)
		root, rest := splitRoot(target)
		if root != "" {
			resolved = root
		}
		pending = append(rest, pending...)
	}
	return resolved, nil
}

// splitRoot separates the root of an absolute path ("/" or "C:/") from its
// segments. The root is empty for relative paths.
func splitRoot(p string) (string, []string) {
	var root string
	switch {
	case strings.HasPrefix(p, "/"):
		root = "/"
	case len(p) >= 3 && p[1] == ':' && p[2] == '/':
		root = p[:3]
	}
	var segments []string
	for _, s := range strings.Split(strings.TrimPrefix(p, root), "/") {
		if s != "" && s != "." {
			segments = append(segments, s)
		}
	}
	return root, segments
}

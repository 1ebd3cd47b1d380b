package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/afero"

	"github.com/openkraft/issuegate/internal/domain"
)

// Store is a file-based implementation of domain.ContentStore. Copies live
// at <dir>/<job>/<build>/<fingerprint>; job names are path-escaped.
type Store struct {
	fs  afero.Fs
	dir string
}

// New creates a store below dir on the local filesystem.
func New(dir string) *Store {
	return NewWithFs(afero.NewOsFs(), dir)
}

// NewWithFs creates a store on an arbitrary afero filesystem.
func NewWithFs(fsys afero.Fs, dir string) *Store {
	return &Store{fs: fsys, dir: dir}
}

// Location returns the base directory of the store.
func (s *Store) Location() string { return s.dir }

// Put writes content to a temporary file and renames it over any previous
// copy, so readers never see a partial file.
func (s *Store) Put(ctx context.Context, key domain.ContentKey, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := s.buildDir(key.Build)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(s.fs, dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", key, err)
	}
	if err := s.fs.Rename(tmpName, s.path(key)); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("storing %s: %w", key, err)
	}
	return nil
}

// Get returns domain.ErrContentNotFound if no copy exists for key.
func (s *Store) Get(ctx context.Context, key domain.ContentKey) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrContentNotFound, key)
		}
		return nil, err
	}
	return data, nil
}

// DeleteBuild removes all copies of a build.
func (s *Store) DeleteBuild(ctx context.Context, build domain.BuildRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.fs.RemoveAll(s.buildDir(build)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Store) buildDir(build domain.BuildRef) string {
	return filepath.Join(s.dir, url.PathEscape(build.Job), strconv.Itoa(build.Number))
}

func (s *Store) path(key domain.ContentKey) string {
	return filepath.Join(s.buildDir(key.Build), url.PathEscape(key.Fingerprint))
}

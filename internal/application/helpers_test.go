package application_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/openkraft/issuegate/internal/adapters/outbound/workspace"
	"github.com/openkraft/issuegate/internal/domain"
)

// memWorkspace creates an in-memory workspace from path/content pairs.
func memWorkspace(t *testing.T, files ...string) *workspace.FS {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for i := 0; i+1 < len(files); i += 2 {
		require.NoError(t, afero.WriteFile(fsys, files[i], []byte(files[i+1]), 0o644))
	}
	return workspace.NewFS("mem", fsys)
}

func findings(paths ...string) []*domain.Finding {
	out := make([]*domain.Finding, 0, len(paths))
	for i, p := range paths {
		f := &domain.Finding{FilePath: p, Line: i + 1, Severity: domain.SeverityNormal, Message: "m"}
		f.EnsureFingerprint()
		out = append(out, f)
	}
	return out
}

var errTransport = errors.New("connection reset by agent")

// brokenWorkspace fails every call with a transport error.
type brokenWorkspace struct{}

func (brokenWorkspace) ID() string { return "broken" }
func (brokenWorkspace) ReadFile(context.Context, string) ([]byte, error) {
	return nil, errTransport
}
func (brokenWorkspace) Stat(context.Context, string) (domain.FileStat, error) {
	return domain.FileStat{}, errTransport
}
func (brokenWorkspace) ReadDir(context.Context, string) ([]domain.DirEntry, error) {
	return nil, errTransport
}

// hangingWorkspace blocks every call until the context ends.
type hangingWorkspace struct{}

func (hangingWorkspace) ID() string { return "hanging" }
func (hangingWorkspace) ReadFile(ctx context.Context, _ string) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (hangingWorkspace) Stat(ctx context.Context, _ string) (domain.FileStat, error) {
	<-ctx.Done()
	return domain.FileStat{}, ctx.Err()
}
func (hangingWorkspace) ReadDir(ctx context.Context, _ string) ([]domain.DirEntry, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// countingWorkspace counts calls of the wrapped workspace.
type countingWorkspace struct {
	domain.Workspace
	reads, dirs atomic.Int64
}

func (w *countingWorkspace) ReadFile(ctx context.Context, path string) ([]byte, error) {
	w.reads.Add(1)
	return w.Workspace.ReadFile(ctx, path)
}

func (w *countingWorkspace) ReadDir(ctx context.Context, dir string) ([]domain.DirEntry, error) {
	w.dirs.Add(1)
	return w.Workspace.ReadDir(ctx, dir)
}

// memContent is an in-memory domain.ContentStore.
type memContent struct {
	mu    sync.Mutex
	data  map[string][]byte
	fail  error
	calls int
}

func newMemContent() *memContent { return &memContent{data: map[string][]byte{}} }

func (s *memContent) Put(_ context.Context, key domain.ContentKey, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail != nil {
		return s.fail
	}
	s.data[key.String()] = append([]byte(nil), content...)
	return nil
}

func (s *memContent) Get(_ context.Context, key domain.ContentKey) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.data[key.String()]
	if !ok {
		return nil, domain.ErrContentNotFound
	}
	return data, nil
}

func (s *memContent) Location() string { return "memory" }

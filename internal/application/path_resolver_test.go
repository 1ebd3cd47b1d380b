package application_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkraft/issuegate/internal/adapters/outbound/workspace"
	"github.com/openkraft/issuegate/internal/application"
	"github.com/openkraft/issuegate/internal/domain"
)

func resolverWorkspace(t *testing.T) *workspace.FS {
	return memWorkspace(t,
		"/ws/src/Main.java", "class Main {}",
		"/ws/src/Folder/Test.java", "class Test {}",
		"/ws/lib/Util.java", "class Util {}",
		"/ws/mixed/x/a.java", "lower",
		"/ws/mixed/x/A.java", "upper",
	)
}

func TestPathResolver_ClassifiesOutcomes(t *testing.T) {
	ws := resolverWorkspace(t)
	tests := []struct {
		ref     string
		kind    domain.OutcomeKind
		path    string
		already bool
	}{
		{"src/Main.java", domain.OutcomeResolved, "/ws/src/Main.java", false},
		{"SRC/main.JAVA", domain.OutcomeResolved, "/ws/src/Main.java", false},
		{`src\Folder\Test.java`, domain.OutcomeResolved, "/ws/src/Folder/Test.java", false},
		{"/ws/lib/Util.java", domain.OutcomeResolved, "/ws/lib/Util.java", true},
		{"/WS/src/folder/test.java", domain.OutcomeResolved, "/ws/src/Folder/Test.java", false},
		{"MIXED/X/A.java", domain.OutcomeResolved, "/ws/mixed/x/A.java", false},
		{"src/Missing.java", domain.OutcomeNotInWorkspace, "", false},
		{"/ws/src/Missing.java", domain.OutcomeNotInWorkspace, "", false},
		{"src/Main.java/inner", domain.OutcomeNotInWorkspace, "", false},
		{"src", domain.OutcomeNotInWorkspace, "", false},
		{"src/Folder", domain.OutcomeNotInWorkspace, "", false},
		{"/ws/src", domain.OutcomeNotInWorkspace, "", false},
		{".", domain.OutcomeNotInWorkspace, "", false},
		{"/elsewhere/X.java", domain.OutcomeNotFound, "", false},
		{"../outside/X.java", domain.OutcomeNotFound, "", false},
		{"", domain.OutcomeNotFound, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			r := application.NewPathResolver(application.PathResolverOptions{})
			out, _, err := r.Resolve(context.Background(), ws, []string{"/ws"}, findings(tt.ref))
			require.NoError(t, err)
			require.Len(t, out, 1)

			o := out[0].Outcome
			assert.Equal(t, tt.kind, o.Kind)
			assert.Equal(t, tt.path, o.Path)
			assert.Equal(t, tt.already, o.AlreadyResolved)
		})
	}
}

func TestPathResolver_SummaryAndRewrite(t *testing.T) {
	ws := resolverWorkspace(t)
	fs := findings("src/Main.java", "/ws/lib/Util.java", "nope/Nope.java", "/elsewhere/X.java")

	r := application.NewPathResolver(application.PathResolverOptions{})
	out, summary, err := r.Resolve(context.Background(), ws, []string{"/ws"}, fs)
	require.NoError(t, err)

	assert.Equal(t, domain.ResolutionSummary{Resolved: 1, Unresolved: 2, AlreadyResolved: 1}, summary)
	assert.Equal(t, "/ws/src/Main.java", fs[0].FilePath, "resolved references are rewritten")
	assert.Equal(t, "/ws/lib/Util.java", fs[1].FilePath)
	assert.Equal(t, "nope/Nope.java", fs[2].FilePath, "unresolved references keep their text")
	assert.Same(t, fs[2], out[2].Finding)
}

func TestPathResolver_RootsInPriorityOrder(t *testing.T) {
	ws := memWorkspace(t,
		"/first/A.java", "first",
		"/second/A.java", "second",
		"/second/B.java", "second",
	)

	r := application.NewPathResolver(application.PathResolverOptions{})
	out, _, err := r.Resolve(context.Background(), ws, []string{"/first", "/second"}, findings("A.java", "b.java"))
	require.NoError(t, err)

	assert.Equal(t, "/first/A.java", out[0].Outcome.Path)
	assert.Equal(t, "/second/B.java", out[1].Outcome.Path)
}

func TestPathResolver_PreservesEmissionOrder(t *testing.T) {
	var files []string
	var refs []string
	for i := 0; i < 200; i++ {
		name := fmt.Sprintf("/ws/pkg%d/File%d.java", i%7, i)
		files = append(files, name, "x")
		refs = append(refs, fmt.Sprintf("PKG%d/file%d.java", i%7, i))
	}
	ws := memWorkspace(t, files...)

	r := application.NewPathResolver(application.PathResolverOptions{MaxConcurrency: 16})
	out, summary, err := r.Resolve(context.Background(), ws, []string{"/ws"}, findings(refs...))
	require.NoError(t, err)
	require.Len(t, out, 200)
	assert.Equal(t, 200, summary.Resolved)

	for i, rf := range out {
		assert.Equal(t, i, rf.Index)
		assert.Equal(t, fmt.Sprintf("/ws/pkg%d/File%d.java", i%7, i), rf.Outcome.Path)
	}
}

func TestPathResolver_CachesDirectoryListings(t *testing.T) {
	ws := &countingWorkspace{Workspace: resolverWorkspace(t)}
	refs := []string{"SRC/MAIN.java", "src/folder/TEST.java", "Src/Main.Java", "SRC/main.java"}

	r := application.NewPathResolver(application.PathResolverOptions{MaxConcurrency: 1})
	_, summary, err := r.Resolve(context.Background(), ws, []string{"/ws"}, findings(refs...))
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Resolved)

	// /ws, /ws/src and /ws/src/Folder
	assert.Equal(t, int64(3), ws.dirs.Load())
}

func TestPathResolver_TransportFailureIsIOError(t *testing.T) {
	r := application.NewPathResolver(application.PathResolverOptions{})
	out, summary, err := r.Resolve(context.Background(), brokenWorkspace{}, []string{"/ws"},
		findings("src/A.java", "/ws/src/B.java"))
	require.NoError(t, err, "per-finding failures never fail the run")

	for _, rf := range out {
		assert.Equal(t, domain.OutcomeIOError, rf.Outcome.Kind)
		assert.ErrorIs(t, rf.Outcome.Err, errTransport)
	}
	assert.Equal(t, 2, summary.Unresolved)
}

func TestPathResolver_IOTimeoutBoundsHangingNode(t *testing.T) {
	r := application.NewPathResolver(application.PathResolverOptions{IOTimeout: 20 * time.Millisecond})

	start := time.Now()
	out, _, err := r.Resolve(context.Background(), hangingWorkspace{}, []string{"/ws"}, findings("src/A.java"))
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeIOError, out[0].Outcome.Kind)
	assert.ErrorIs(t, out[0].Outcome.Err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestPathResolver_CancellationDiscardsWork(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := application.NewPathResolver(application.PathResolverOptions{})
	out, _, err := r.Resolve(ctx, resolverWorkspace(t), []string{"/ws"}, findings("src/Main.java"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, out)
}

func TestPathResolver_LocalFilesystemCaseMismatch(t *testing.T) {
	root := filepath.ToSlash(t.TempDir())
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Folder"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Folder", "Test.java"), []byte("class Test {}"), 0o644))

	r := application.NewPathResolver(application.PathResolverOptions{})
	out, _, err := r.Resolve(context.Background(), workspace.NewLocal(), []string{root},
		findings(root+"/folder/test.java"))
	require.NoError(t, err)

	o := out[0].Outcome
	require.True(t, o.IsResolved())
	if !o.AlreadyResolved {
		// case-sensitive filesystem
		assert.Equal(t, root+"/Folder/Test.java", o.Path)
	}
}

func TestResolutionMessages(t *testing.T) {
	ws := resolverWorkspace(t)
	var refs []string
	for i := 0; i < 25; i++ {
		refs = append(refs, fmt.Sprintf("missing/File%d.java", i))
	}
	refs = append(refs, "src/Main.java", "/ws/lib/Util.java", "missing/File0.java")

	r := application.NewPathResolver(application.PathResolverOptions{})
	out, summary, err := r.Resolve(context.Background(), ws, []string{"/ws"}, findings(refs...))
	require.NoError(t, err)

	info, errs := application.ResolutionMessages([]string{"/ws"}, out, summary)
	assert.Equal(t, []string{
		"Resolving absolute file names for all issues in workspace '/ws'",
		"-> 1 resolved, 26 unresolved, 1 already resolved",
	}, info)

	require.Len(t, errs, 22)
	assert.Equal(t, "Can't resolve absolute paths for some files:", errs[0])
	assert.Equal(t, "missing/File0.java", errs[1])
	assert.Equal(t, "... skipped logging of 5 additional errors", errs[21])
}

func TestResolutionMessages_AllResolved(t *testing.T) {
	_, errs := application.ResolutionMessages([]string{"/ws"}, nil, domain.ResolutionSummary{})
	assert.Empty(t, errs)
}

package agent_test

import (
	"context"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkraft/issuegate/internal/adapters/inbound/agent"
	"github.com/openkraft/issuegate/internal/adapters/outbound/metrics"
	"github.com/openkraft/issuegate/internal/adapters/outbound/workspace"
	"github.com/openkraft/issuegate/internal/application"
	"github.com/openkraft/issuegate/internal/domain"
)

func startAgent(t *testing.T, opts agent.Options) (*workspace.Remote, *httptest.Server) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	files := map[string]string{
		"/ws/src/Main.java":        "class Main {}",
		"/ws/src/Folder/Test.java": "class Test {}",
		"/secret/key":              "do not serve",
	}
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fsys, name, []byte(content), 0o644))
	}

	if opts.Roots == nil {
		opts.Roots = []string{"/ws"}
	}
	srv := httptest.NewServer(agent.New(workspace.NewFS("node-1", fsys), opts).Handler())
	t.Cleanup(srv.Close)

	var remoteOpts []workspace.RemoteOption
	if opts.Token != "" {
		remoteOpts = append(remoteOpts, workspace.WithToken(opts.Token))
	}
	return workspace.NewRemote(srv.URL, remoteOpts...), srv
}

func TestAgent_ServesWorkspace(t *testing.T) {
	remote, _ := startAgent(t, agent.Options{Node: "node-1"})
	ctx := context.Background()

	roots, err := remote.Roots(ctx)
	require.NoError(t, err)
	assert.Equal(t, workspace.Roots{Node: "node-1", Roots: []string{"/ws"}}, roots)

	content, err := remote.ReadFile(ctx, "/ws/src/Main.java")
	require.NoError(t, err)
	assert.Equal(t, "class Main {}", string(content))

	st, err := remote.Stat(ctx, "/ws/src/Main.java")
	require.NoError(t, err)
	assert.Equal(t, domain.FileStat{Exists: true}, st)

	st, err = remote.Stat(ctx, "/ws/src/Folder")
	require.NoError(t, err)
	assert.Equal(t, domain.FileStat{Exists: true, IsDir: true}, st)

	st, err = remote.Stat(ctx, "/ws/src/Missing.java")
	require.NoError(t, err)
	assert.False(t, st.Exists)

	entries, err := remote.ReadDir(ctx, "/ws/src")
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.DirEntry{
		{Name: "Main.java"},
		{Name: "Folder", IsDir: true},
	}, entries)
}

func TestAgent_MissingFileIsNotExist(t *testing.T) {
	remote, _ := startAgent(t, agent.Options{})

	_, err := remote.ReadFile(context.Background(), "/ws/src/Missing.java")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = remote.ReadDir(context.Background(), "/ws/missing")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestAgent_NothingOutsideRoots(t *testing.T) {
	remote, _ := startAgent(t, agent.Options{})
	ctx := context.Background()

	_, err := remote.ReadFile(ctx, "/secret/key")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = remote.ReadFile(ctx, "/ws/../secret/key")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	st, err := remote.Stat(ctx, "/secret/key")
	require.NoError(t, err)
	assert.False(t, st.Exists)
}

func TestAgent_DoesNotFollowLinksOutOfRoots(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "ws")
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "key"), []byte("do not serve"), 0o644))
	if err := os.Symlink(base, filepath.Join(root, "up")); err != nil {
		t.Skipf("symbolic links not supported: %v", err)
	}
	slashRoot := filepath.ToSlash(root)

	srv := httptest.NewServer(agent.New(workspace.NewLocal(), agent.Options{Roots: []string{slashRoot}}).Handler())
	t.Cleanup(srv.Close)
	remote := workspace.NewRemote(srv.URL)
	ctx := context.Background()

	_, err := remote.ReadFile(ctx, slashRoot+"/up/key")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	st, err := remote.Stat(ctx, slashRoot+"/up/key")
	require.NoError(t, err)
	assert.False(t, st.Exists)

	_, err = remote.ReadDir(ctx, slashRoot+"/up")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestAgent_RequiresToken(t *testing.T) {
	_, srv := startAgent(t, agent.Options{Token: "s3cret"})

	noToken := workspace.NewRemote(srv.URL)
	_, err := noToken.Stat(context.Background(), "/ws/src/Main.java")
	assert.ErrorIs(t, err, fs.ErrPermission)

	wrong := workspace.NewRemote(srv.URL, workspace.WithToken("guess"))
	_, err = wrong.Roots(context.Background())
	assert.ErrorIs(t, err, fs.ErrPermission)

	right := workspace.NewRemote(srv.URL, workspace.WithToken("s3cret"))
	st, err := right.Stat(context.Background(), "/ws/src/Main.java")
	require.NoError(t, err)
	assert.True(t, st.Exists)
}

func TestAgent_MissingPathIsBadRequest(t *testing.T) {
	_, srv := startAgent(t, agent.Options{})

	resp, err := http.Get(srv.URL + "/v1/stat")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAgent_CountsRequests(t *testing.T) {
	rec := metrics.New()
	remote, srv := startAgent(t, agent.Options{Metrics: rec, MetricsHandler: rec.Handler()})

	_, err := remote.Stat(context.Background(), "/ws/src/Main.java")
	require.NoError(t, err)
	_, err = remote.ReadFile(context.Background(), "/ws/nope")
	require.Error(t, err)

	count, err := testutil.GatherAndCount(rec.Gatherer(), "issuegate_agent_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAgent_ResolvesCaseMismatchesRemotely(t *testing.T) {
	remote, _ := startAgent(t, agent.Options{})
	ws, roots, err := workspace.NewRemoteProvider(remote).Workspace(context.Background(), domain.BuildRef{Job: "app", Number: 1})
	require.NoError(t, err)

	findings := []*domain.Finding{
		{FilePath: `SRC\folder\TEST.java`, Line: 1},
		{FilePath: "/WS/src/main.java", Line: 2},
		{FilePath: "/secret/key", Line: 3},
	}
	resolved, summary, err := application.NewPathResolver(application.PathResolverOptions{}).
		Resolve(context.Background(), ws, roots, findings)
	require.NoError(t, err)

	assert.Equal(t, "/ws/src/Folder/Test.java", resolved[0].Outcome.Path)
	assert.Equal(t, "/ws/src/Main.java", resolved[1].Outcome.Path)
	assert.Equal(t, domain.OutcomeNotFound, resolved[2].Outcome.Kind)
	assert.Equal(t, domain.ResolutionSummary{Resolved: 2, Unresolved: 1}, summary)
}

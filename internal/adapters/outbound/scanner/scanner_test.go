package scanner_test

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkraft/issuegate/internal/adapters/outbound/scanner"
	"github.com/openkraft/issuegate/internal/adapters/outbound/workspace"
)

func newWorkspace(t *testing.T, files ...string) *workspace.FS {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for _, f := range files {
		require.NoError(t, afero.WriteFile(fsys, f, []byte("x"), 0o644))
	}
	return workspace.NewFS("mem", fsys)
}

func TestReportScanner_DoubleStarMatchesAnyDepth(t *testing.T) {
	ws := newWorkspace(t,
		"/ws/eclipse.txt",
		"/ws/module/target/eclipse.txt",
		"/ws/module/target/deep/eclipse.txt",
		"/ws/module/target/other.log",
	)

	files, err := scanner.New().Find(context.Background(), ws, []string{"/ws"}, "**/*.txt")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/ws/eclipse.txt",
		"/ws/module/target/deep/eclipse.txt",
		"/ws/module/target/eclipse.txt",
	}, files)
}

func TestReportScanner_ExactPattern(t *testing.T) {
	ws := newWorkspace(t, "/ws/reports/eclipse.txt", "/ws/reports/java.log")

	files, err := scanner.New().Find(context.Background(), ws, []string{"/ws"}, "reports/eclipse.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"/ws/reports/eclipse.txt"}, files)
}

func TestReportScanner_CommaSeparatedPatterns(t *testing.T) {
	ws := newWorkspace(t, "/ws/a.txt", "/ws/b.log", "/ws/c.xml")

	files, err := scanner.New().Find(context.Background(), ws, []string{"/ws"}, "*.txt, *.log")
	require.NoError(t, err)
	assert.Equal(t, []string{"/ws/a.txt", "/ws/b.log"}, files)
}

func TestReportScanner_SkipsVCSAndDependencyDirs(t *testing.T) {
	ws := newWorkspace(t,
		"/ws/.git/report.txt",
		"/ws/node_modules/pkg/report.txt",
		"/ws/src/report.txt",
	)

	files, err := scanner.New().Find(context.Background(), ws, []string{"/ws"}, "**/report.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"/ws/src/report.txt"}, files)
}

func TestReportScanner_NoMatchesReturnsEmpty(t *testing.T) {
	ws := newWorkspace(t, "/ws/a.txt")

	files, err := scanner.New().Find(context.Background(), ws, []string{"/ws"}, "**/*.xml")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestReportScanner_MissingRootIsSkipped(t *testing.T) {
	ws := newWorkspace(t, "/ws/a.txt")

	files, err := scanner.New().Find(context.Background(), ws, []string{"/missing", "/ws"}, "*.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"/ws/a.txt"}, files)
}

func TestReportScanner_MultipleRootsDeduplicate(t *testing.T) {
	ws := newWorkspace(t, "/ws/sub/a.txt")

	files, err := scanner.New().Find(context.Background(), ws, []string{"/ws", "/ws/sub"}, "**/a.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"/ws/sub/a.txt"}, files)
}

func TestReportScanner_CancelledContext(t *testing.T) {
	ws := newWorkspace(t, "/ws/a.txt")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := scanner.New().Find(ctx, ws, []string{"/ws"}, "*.txt")
	assert.ErrorIs(t, err, context.Canceled)
}

package cli_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkraft/issuegate/internal/adapters/inbound/cli"
	"github.com/openkraft/issuegate/internal/domain"
)

const fixtureDir = "../../../../testdata/workspace"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := cli.NewRootCmdForTest()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func recordFixture(t *testing.T, dataDir string, number string, extra ...string) (string, error) {
	t.Helper()
	args := []string{"record",
		"--data-dir", dataDir,
		"--job", "example",
		"--build", number,
		"--root", fixtureDir,
		"--tool", "ecj:eclipse.txt:eclipse",
	}
	return run(t, append(args, extra...)...)
}

func TestRecordCommand_JSON(t *testing.T) {
	out, err := recordFixture(t, t.TempDir(), "1", "--json")
	require.NoError(t, err)

	var result domain.AnalysisResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 8, result.TotalSize)
	assert.Equal(t, domain.ResultSuccess, result.OverallResult)
	assert.Equal(t, "ecj", result.Issues[0].Origin)
	assert.Equal(t, domain.CopySummary{Copied: 8}, result.Copy)
}

func TestRecordCommand_DefaultTUI(t *testing.T) {
	out, err := recordFixture(t, t.TempDir(), "1", "--unstable-total-all", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "issuegate")
	assert.Contains(t, out, "UNSTABLE")
	assert.Contains(t, out, "Example Application")
}

func TestRecordCommand_CIFailsOnFailure(t *testing.T) {
	_, err := recordFixture(t, t.TempDir(), "1", "--ci", "--failed-total-all", "8")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FAILURE")
}

func TestRecordCommand_CIPassesWhenUnstable(t *testing.T) {
	_, err := recordFixture(t, t.TempDir(), "1", "--ci", "--unstable-total-all", "1")
	assert.NoError(t, err)
}

func TestRecordCommand_RequiresTools(t *testing.T) {
	_, err := run(t, "record", "--data-dir", t.TempDir(), "--job", "example", "--build", "1", "--root", fixtureDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no tools configured")
}

func TestRecordCommand_InvalidTool(t *testing.T) {
	_, err := recordFixture(t, t.TempDir(), "1", "--tool", "eclipse.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --tool")
}

func TestRecordCommand_ReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "gate.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(`
tools:
  - pattern: "**/eclipse.txt"
    parser: eclipse
thresholds:
  failed_total_error: 1
`), 0o644))

	out, err := run(t, "record", "--data-dir", dir, "--job", "example", "--build", "1",
		"--root", fixtureDir, "--config", cfg, "--json")
	require.NoError(t, err)

	var result domain.AnalysisResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, domain.ResultFailure, result.OverallResult)
}

func TestRecordCommand_DataDirFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ISSUEGATE_DATA_DIR", dir)

	_, err := run(t, "record", "--job", "example", "--build", "1", "--root", fixtureDir, "--tool", "eclipse.txt:eclipse")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "trend.db"))
}

package domain

import (
	"context"
	"fmt"
	"io"
	"time"
)

// DirEntry is one entry of a workspace directory listing.
type DirEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
}

// Workspace gives access to the filesystem a build ran on. The build node may
// be remote, so every call takes a context and may fail with a transport
// error. Paths use forward slashes.
type Workspace interface {
	// ID names the node that owns the filesystem.
	ID() string
	ReadFile(ctx context.Context, path string) ([]byte, error)
	// Stat returns a zero FileStat if the path does not exist and an error
	// for any other failure.
	Stat(ctx context.Context, path string) (FileStat, error)
	ReadDir(ctx context.Context, dir string) ([]DirEntry, error)
}

// FileStat describes a workspace path. The zero value is a missing path.
type FileStat struct {
	Exists bool `json:"exists"`
	IsDir  bool `json:"is_dir,omitempty"`
}

// IsFile reports whether the path exists and is not a directory.
func (s FileStat) IsFile() bool { return s.Exists && !s.IsDir }

// WorkspaceProvider returns the workspace of a build and its root
// directories in priority order.
type WorkspaceProvider interface {
	Workspace(ctx context.Context, build BuildRef) (Workspace, []string, error)
}

// ContentStore keeps copies of affected files, shared across builds and jobs.
type ContentStore interface {
	Put(ctx context.Context, key ContentKey, content []byte) error
	// Get returns ErrContentNotFound if no copy exists.
	Get(ctx context.Context, key ContentKey) ([]byte, error)
	// Location describes where copies are kept, for messages.
	Location() string
}

// ContentKey identifies one captured affected file. Keys are unique per
// build and finding fingerprint, so copiers of different builds never collide.
type ContentKey struct {
	Build       BuildRef
	Fingerprint string
}

func (k ContentKey) String() string {
	return fmt.Sprintf("%s/%d/%s", k.Build.Job, k.Build.Number, k.Fingerprint)
}

// TrendStore retains analysis results per build. Absence is reported as
// (nil, nil), never as a default result.
type TrendStore interface {
	Attach(ctx context.Context, result *AnalysisResult) error
	Action(ctx context.Context, build BuildRef) (*ResultAction, error)
	LastAction(ctx context.Context, job string) (*ResultAction, error)
	LastActionWithIssues(ctx context.Context, job string) (*ResultAction, error)
	// PreviousAction returns the newest action of build's job with a lower
	// build number.
	PreviousAction(ctx context.Context, build BuildRef) (*ResultAction, error)
	History(ctx context.Context, job string, limit int) ([]*ResultAction, error)
	DeleteBuild(ctx context.Context, build BuildRef) error
}

// IssueParser turns raw tool output into findings.
type IssueParser interface {
	ID() string
	Parse(ctx context.Context, r io.Reader, reportPath string) ([]*Finding, error)
}

// ParserRegistry looks parsers up by id.
type ParserRegistry interface {
	Parser(id string) (IssueParser, error)
}

// ReportFinder locates report files that match an inclusion pattern.
type ReportFinder interface {
	Find(ctx context.Context, ws Workspace, roots []string, pattern string) ([]string, error)
}

// NameResolver derives module and package names of affected files.
type NameResolver interface {
	// ModuleName walks from the file's directory up to root looking for a
	// module descriptor. An empty name means none was found.
	ModuleName(ctx context.Context, ws Workspace, root, file string) (string, error)
	// PackageName extracts the package or namespace from source content.
	PackageName(file string, content []byte) string
}

// ConfigLoader loads the project configuration from a directory.
type ConfigLoader interface {
	Load(dir string) (ProjectConfig, error)
}

// CommitInfo reports the commit a local workspace is checked out at.
type CommitInfo interface {
	CommitHash(path string) (string, error)
}

// PipelineMetrics observes pipeline outcomes.
type PipelineMetrics interface {
	ObserveResolution(kind OutcomeKind)
	ObserveCopy(kind OutcomeKind)
	ObserveResult(result OverallResult)
	ObserveDuration(d time.Duration)
}

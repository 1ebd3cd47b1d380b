package application

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/openkraft/issuegate/internal/domain"
)

// maxUnresolvedMessages caps the list of unresolved files in error messages.
const maxUnresolvedMessages = 20

// PathResolverOptions configures a PathResolver.
type PathResolverOptions struct {
	MaxConcurrency int
	IOTimeout      time.Duration
	DirCacheSize   int
	Logger         zerolog.Logger
	Metrics        domain.PipelineMetrics
}

// PathResolver maps the file references of findings to absolute paths on a
// build's workspace, tolerating case mismatches.
type PathResolver struct {
	opts PathResolverOptions
}

func NewPathResolver(opts PathResolverOptions) *PathResolver {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = domain.DefaultMaxConcurrency
	}
	if opts.IOTimeout <= 0 {
		opts.IOTimeout = domain.DefaultIOTimeout
	}
	if opts.DirCacheSize <= 0 {
		opts.DirCacheSize = domain.DefaultDirCacheSize
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	return &PathResolver{opts: opts}
}

// Resolve classifies every finding and rewrites FilePath of resolved ones.
// The returned slice is in emission order regardless of completion order.
// Per-finding failures become outcomes; only cancellation of ctx is returned
// as an error, in which case all partial work is discarded.
func (r *PathResolver) Resolve(
	ctx context.Context,
	ws domain.Workspace,
	roots []string,
	findings []*domain.Finding,
) ([]domain.ResolvedFinding, domain.ResolutionSummary, error) {
	run, err := r.newRun(ws, roots)
	if err != nil {
		return nil, domain.ResolutionSummary{}, err
	}

	out := make([]domain.ResolvedFinding, len(findings))

	g := new(errgroup.Group)
	g.SetLimit(r.opts.MaxConcurrency)
	for i, f := range findings {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = domain.ResolvedFinding{Index: i, Finding: f, Outcome: run.resolve(ctx, f.FilePath)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, domain.ResolutionSummary{}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.ResolutionSummary{}, err
	}

	var summary domain.ResolutionSummary
	for i := range out {
		o := out[i].Outcome
		r.opts.Metrics.ObserveResolution(o.Kind)
		switch {
		case o.AlreadyResolved:
			summary.AlreadyResolved++
		case o.IsResolved():
			summary.Resolved++
			out[i].Finding.FilePath = o.Path
		default:
			summary.Unresolved++
			r.opts.Logger.Debug().
				Str("file", out[i].Finding.FilePath).
				Str("outcome", string(o.Kind)).
				AnErr("cause", o.Err).
				Msg("Unresolved file reference")
		}
	}

	return out, summary, nil
}

// ResolutionMessages renders the info and error messages of a resolver run.
func ResolutionMessages(roots []string, resolved []domain.ResolvedFinding, summary domain.ResolutionSummary) (info, errs []string) {
	info = append(info,
		fmt.Sprintf("Resolving absolute file names for all issues in workspace '%s'", strings.Join(roots, ", ")),
		fmt.Sprintf("-> %d resolved, %d unresolved, %d already resolved",
			summary.Resolved, summary.Unresolved, summary.AlreadyResolved),
	)

	seen := map[string]bool{}
	var unresolved []string
	for _, rf := range resolved {
		if rf.Outcome.IsResolved() || seen[rf.Finding.FilePath] {
			continue
		}
		seen[rf.Finding.FilePath] = true
		unresolved = append(unresolved, rf.Finding.FilePath)
	}
	if len(unresolved) == 0 {
		return info, nil
	}

	errs = append(errs, "Can't resolve absolute paths for some files:")
	for i, file := range unresolved {
		if i == maxUnresolvedMessages {
			errs = append(errs, fmt.Sprintf("... skipped logging of %d additional errors", len(unresolved)-maxUnresolvedMessages))
			break
		}
		errs = append(errs, file)
	}
	return info, errs
}

// resolveRun holds the caches of a single Resolve call.
type resolveRun struct {
	ws      domain.Workspace
	roots   []string
	timeout time.Duration
	dirs    *lru.Cache
	flight  singleflight.Group
	memo    sync.Map
}

// dirListing is a cached directory listing; missing marks a directory that
// does not exist.
type dirListing struct {
	entries []domain.DirEntry
	missing bool
}

func (r *PathResolver) newRun(ws domain.Workspace, roots []string) (*resolveRun, error) {
	dirs, err := lru.New(r.opts.DirCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating directory cache: %w", err)
	}

	cleaned := make([]string, 0, len(roots))
	for _, root := range roots {
		if root = normalize(root); root != "" {
			cleaned = append(cleaned, path.Clean(root))
		}
	}

	return &resolveRun{
		ws:      ws,
		roots:   cleaned,
		timeout: r.opts.IOTimeout,
		dirs:    dirs,
	}, nil
}

// resolve memoizes outcomes per file reference; reports usually reference
// the same file many times.
func (run *resolveRun) resolve(ctx context.Context, ref string) domain.ResolutionOutcome {
	if v, ok := run.memo.Load(ref); ok {
		return v.(domain.ResolutionOutcome)
	}
	v, _, _ := run.flight.Do("ref:"+ref, func() (any, error) {
		o := run.resolveRef(ctx, ref)
		run.memo.Store(ref, o)
		return o, nil
	})
	return v.(domain.ResolutionOutcome)
}

func (run *resolveRun) resolveRef(ctx context.Context, ref string) domain.ResolutionOutcome {
	p := normalize(ref)
	if p == "" {
		return domain.NotFound()
	}
	if isAbs(p) {
		return run.resolveAbsolute(ctx, path.Clean(p))
	}
	return run.resolveRelative(ctx, path.Clean(p))
}

func (run *resolveRun) resolveAbsolute(ctx context.Context, p string) domain.ResolutionOutcome {
	var ioErr error

	// 1. byte-exact existing absolute path
	isFile, err := run.isFile(ctx, p)
	switch {
	case err != nil:
		ioErr = err
	case isFile:
		o := domain.Resolved(p)
		o.AlreadyResolved = true
		return o
	}

	// 3. case-insensitive walk below every root that contains the path
	underRoot := false
	for _, root := range run.roots {
		rel, ok := relativeTo(root, p)
		if !ok {
			continue
		}
		underRoot = true
		found, err := run.walk(ctx, root, rel)
		if err != nil {
			ioErr = errors.Join(ioErr, err)
			continue
		}
		if found != "" {
			return domain.Resolved(found)
		}
	}

	switch {
	case ioErr != nil:
		return domain.IOFailure(ioErr)
	case underRoot:
		return domain.NotInWorkspace()
	default:
		return domain.NotFound()
	}
}

func (run *resolveRun) resolveRelative(ctx context.Context, rel string) domain.ResolutionOutcome {
	if len(run.roots) == 0 || rel == ".." || strings.HasPrefix(rel, "../") {
		return domain.NotFound()
	}

	var ioErr error

	// 2. exact join against every root, in order
	for _, root := range run.roots {
		candidate := path.Join(root, rel)
		isFile, err := run.isFile(ctx, candidate)
		if err != nil {
			ioErr = errors.Join(ioErr, err)
			continue
		}
		if isFile {
			return domain.Resolved(candidate)
		}
	}

	// 3. case-insensitive walk
	for _, root := range run.roots {
		found, err := run.walk(ctx, root, rel)
		if err != nil {
			ioErr = errors.Join(ioErr, err)
			continue
		}
		if found != "" {
			return domain.Resolved(found)
		}
	}

	if ioErr != nil {
		return domain.IOFailure(ioErr)
	}
	// 4. the lookups above confirmed the file does not exist below any root
	return domain.NotInWorkspace()
}

// walk descends from root one segment at a time and picks directory entries
// case-insensitively, preferring an exact match. It returns "" if a segment
// has no match. It never leaves root.
func (run *resolveRun) walk(ctx context.Context, root, rel string) (string, error) {
	segments := splitSegments(rel)
	if len(segments) == 0 {
		return "", nil
	}

	dir := root
	for i, seg := range segments {
		listing, err := run.list(ctx, dir)
		if err != nil {
			return "", err
		}
		if listing.missing {
			return "", nil
		}
		entry, ok := pickEntry(listing.entries, seg, i < len(segments)-1)
		if !ok {
			return "", nil
		}
		dir = path.Join(dir, entry.Name)
	}
	return dir, nil
}

func (run *resolveRun) list(ctx context.Context, dir string) (dirListing, error) {
	if v, ok := run.dirs.Get(dir); ok {
		return v.(dirListing), nil
	}

	v, err, _ := run.flight.Do("dir:"+dir, func() (any, error) {
		pctx, cancel := context.WithTimeout(ctx, run.timeout)
		defer cancel()

		entries, err := run.ws.ReadDir(pctx, dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				listing := dirListing{missing: true}
				run.dirs.Add(dir, listing)
				return listing, nil
			}
			return nil, fmt.Errorf("listing %s: %w", dir, err)
		}
		listing := dirListing{entries: entries}
		run.dirs.Add(dir, listing)
		return listing, nil
	})
	if err != nil {
		return dirListing{}, err
	}
	return v.(dirListing), nil
}

// isFile reports whether p exists and is not a directory.
func (run *resolveRun) isFile(ctx context.Context, p string) (bool, error) {
	pctx, cancel := context.WithTimeout(ctx, run.timeout)
	defer cancel()

	st, err := run.ws.Stat(pctx, p)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", p, err)
	}
	return st.IsFile(), nil
}

// pickEntry finds seg in entries. Intermediate segments must be directories
// and the last one must not be.
func pickEntry(entries []domain.DirEntry, seg string, wantDir bool) (domain.DirEntry, bool) {
	var folded *domain.DirEntry
	for i := range entries {
		e := entries[i]
		if e.IsDir != wantDir {
			continue
		}
		if e.Name == seg {
			return e, true
		}
		if folded == nil && strings.EqualFold(e.Name, seg) {
			folded = &entries[i]
		}
	}
	if folded != nil {
		return *folded, true
	}
	return domain.DirEntry{}, false
}

var drivePrefix = regexp.MustCompile(`^[A-Za-z]:/`)

// normalize converts Windows separators to slashes and trims whitespace.
func normalize(p string) string {
	return strings.TrimSpace(strings.ReplaceAll(p, `\`, "/"))
}

func isAbs(p string) bool {
	return strings.HasPrefix(p, "/") || drivePrefix.MatchString(p)
}

// relativeTo returns p relative to root if p lies below root, comparing
// case-insensitively.
func relativeTo(root, p string) (string, bool) {
	if root == "/" {
		return strings.TrimPrefix(p, "/"), p != "/"
	}
	if len(p) <= len(root)+1 || p[len(root)] != '/' {
		return "", false
	}
	if !strings.EqualFold(p[:len(root)], root) {
		return "", false
	}
	return p[len(root)+1:], true
}

func splitSegments(rel string) []string {
	var segments []string
	for _, s := range strings.Split(rel, "/") {
		if s != "" && s != "." {
			segments = append(segments, s)
		}
	}
	return segments
}

package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/openkraft/issuegate/internal/domain"
)

// FileCopierOptions configures an AffectedFileCopier.
type FileCopierOptions struct {
	MaxConcurrency int
	IOTimeout      time.Duration
	// Roots confines reads. A resolved path outside every root counts as
	// not in workspace and is never read. Unset means no confinement.
	Roots   []string
	Logger  zerolog.Logger
	Metrics domain.PipelineMetrics
}

// AffectedFileCopier captures the content of affected files in a durable
// store so that findings can be rendered after the build node is gone.
type AffectedFileCopier struct {
	store domain.ContentStore
	opts  FileCopierOptions
}

func NewAffectedFileCopier(store domain.ContentStore, opts FileCopierOptions) *AffectedFileCopier {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = domain.DefaultMaxConcurrency
	}
	if opts.IOTimeout <= 0 {
		opts.IOTimeout = domain.DefaultIOTimeout
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	return &AffectedFileCopier{store: store, opts: opts}
}

// CopyReport is the outcome of one copier run.
type CopyReport struct {
	Outcomes []domain.CopyOutcome
	Summary  domain.CopySummary
	// Sources holds the content of every file that was read, keyed by
	// resolved path. The aggregator reuses it for package detection.
	Sources map[string][]byte
	// StoreFailure is set when every attempted store write failed.
	StoreFailure error
}

// Copy captures the affected file of every resolved finding. Failures are
// recorded per finding and never stop the remaining copies. Only
// cancellation of ctx is returned as an error.
func (c *AffectedFileCopier) Copy(
	ctx context.Context,
	ws domain.Workspace,
	build domain.BuildRef,
	resolved []domain.ResolvedFinding,
) (*CopyReport, error) {
	report := &CopyReport{
		Outcomes: make([]domain.CopyOutcome, len(resolved)),
		Sources:  map[string][]byte{},
	}

	var (
		flight     singleflight.Group
		mu         sync.Mutex
		storeErrs  *multierror.Error
		storeOK    int
		storeTries int
	)

	read := func(p string) ([]byte, error) {
		v, err, _ := flight.Do(p, func() (any, error) {
			mu.Lock()
			content, ok := report.Sources[p]
			mu.Unlock()
			if ok {
				return content, nil
			}

			rctx, cancel := context.WithTimeout(ctx, c.opts.IOTimeout)
			defer cancel()
			content, err := ws.ReadFile(rctx, p)
			if err != nil {
				return nil, err
			}

			mu.Lock()
			report.Sources[p] = content
			mu.Unlock()
			return content, nil
		})
		if err != nil {
			return nil, err
		}
		return v.([]byte), nil
	}

	g := new(errgroup.Group)
	g.SetLimit(c.opts.MaxConcurrency)
	for i, rf := range resolved {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !rf.Outcome.IsResolved() {
				report.Outcomes[i] = domain.CopyOutcome{Kind: rf.Outcome.Kind, Err: rf.Outcome.Err}
				return nil
			}

			if len(c.opts.Roots) > 0 && !domain.WithinRoots(c.opts.Roots, rf.Outcome.Path) {
				report.Outcomes[i] = domain.CopyOutcome{Kind: domain.OutcomeNotInWorkspace}
				return nil
			}

			content, err := read(rf.Outcome.Path)
			if err != nil {
				report.Outcomes[i] = domain.CopyOutcome{Kind: domain.OutcomeIOError, Err: fmt.Errorf("reading %s: %w", rf.Outcome.Path, err)}
				return nil
			}

			key := domain.ContentKey{Build: build, Fingerprint: rf.Finding.Fingerprint}
			err = c.store.Put(ctx, key, content)

			mu.Lock()
			storeTries++
			if err != nil {
				storeErrs = multierror.Append(storeErrs, err)
			} else {
				storeOK++
			}
			mu.Unlock()

			if err != nil {
				report.Outcomes[i] = domain.CopyOutcome{Kind: domain.OutcomeIOError, Err: fmt.Errorf("storing %s: %w", rf.Outcome.Path, err)}
				return nil
			}
			report.Outcomes[i] = domain.CopyOutcome{Kind: domain.OutcomeCopied, Key: key.String(), Size: len(content)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, o := range report.Outcomes {
		report.Summary.Add(o.Kind)
		c.opts.Metrics.ObserveCopy(o.Kind)
		if o.Kind == domain.OutcomeIOError {
			c.opts.Logger.Debug().
				Str("file", resolved[i].Finding.FilePath).
				Err(o.Err).
				Msg("Affected file not copied")
		}
	}
	if storeTries > 0 && storeOK == 0 {
		report.StoreFailure = storeErrs.ErrorOrNil()
	}

	return report, nil
}

// CopyMessages renders the info messages of a copier run.
func CopyMessages(location string, summary domain.CopySummary) []string {
	return []string{
		fmt.Sprintf("Copying affected files to '%s'", location),
		fmt.Sprintf("-> %d copied, %d not in workspace, %d not-found, %d with I/O error",
			summary.Copied, summary.NotInWorkspace, summary.NotFound, summary.IOError),
	}
}

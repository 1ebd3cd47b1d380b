package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openkraft/issuegate/internal/domain"
	"github.com/openkraft/issuegate/internal/domain/gate"
)

// BuildContext is everything the pipeline needs to know about one build.
type BuildContext struct {
	Build     domain.BuildRef
	Workspace domain.WorkspaceProvider
	Config    domain.ProjectConfig
	// CommitPath is a local checkout to stamp the result with. Optional.
	CommitPath string
}

// AnalysisServiceOptions wires the collaborators of an AnalysisService.
type AnalysisServiceOptions struct {
	Parsers domain.ParserRegistry
	Finder  domain.ReportFinder
	Names   domain.NameResolver
	Content domain.ContentStore
	Trend   domain.TrendStore
	Commits domain.CommitInfo
	Metrics domain.PipelineMetrics
	Logger  zerolog.Logger
	Now     func() time.Time
}

// AnalysisService orchestrates one build's pipeline:
// roots → find reports → parse → resolve → copy → aggregate → diff → gate → attach.
type AnalysisService struct {
	opts AnalysisServiceOptions
}

func NewAnalysisService(opts AnalysisServiceOptions) *AnalysisService {
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &AnalysisService{opts: opts}
}

// Run analyses one build and attaches the result to the trend store.
//
// Per-finding failures end up as outcomes and messages. Infrastructure-wide
// failures are returned as *domain.PipelineError, and cancellation of ctx
// returns ctx.Err(); in both cases nothing is attached.
func (s *AnalysisService) Run(ctx context.Context, bc BuildContext) (*domain.AnalysisResult, error) {
	start := s.opts.Now()
	build := bc.Build

	// 0. Config
	cfg := bc.Config.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := s.opts.Logger.With().
		Str("run", uuid.NewString()).
		Str("build", build.String()).
		Logger()
	logger.Info().Int("tools", len(cfg.Tools)).Msg("Analysis started")

	// 1. Workspace roots
	ws, roots, err := bc.Workspace.Workspace(ctx, build)
	if err != nil {
		return nil, s.fail(ctx, build, domain.StageWorkspace, err)
	}
	if err := s.checkRoots(ctx, ws, roots, cfg.Resolver.IOTimeout); err != nil {
		return nil, s.fail(ctx, build, domain.StageWorkspace, err)
	}

	// 2. Find and parse report files
	var info, errs []string
	findings, err := s.collect(ctx, ws, roots, cfg, &info, &errs)
	if err != nil {
		return nil, err
	}
	logger.Debug().Int("findings", len(findings)).Msg("Reports parsed")

	// 3. Resolve affected files
	resolver := NewPathResolver(PathResolverOptions{
		MaxConcurrency: cfg.Resolver.MaxConcurrency,
		IOTimeout:      cfg.Resolver.IOTimeout,
		DirCacheSize:   cfg.Resolver.DirCacheSize,
		Logger:         logger,
		Metrics:        s.opts.Metrics,
	})
	resolved, summary, err := resolver.Resolve(ctx, ws, roots, findings)
	if err != nil {
		return nil, err
	}
	resInfo, resErrs := ResolutionMessages(roots, resolved, summary)
	info = append(info, resInfo...)
	errs = append(errs, resErrs...)

	// 4. Copy affected files
	copier := NewAffectedFileCopier(s.opts.Content, FileCopierOptions{
		MaxConcurrency: cfg.Resolver.MaxConcurrency,
		IOTimeout:      cfg.Resolver.IOTimeout,
		Roots:          roots,
		Logger:         logger,
		Metrics:        s.opts.Metrics,
	})
	report, err := copier.Copy(ctx, ws, build, resolved)
	if err != nil {
		return nil, err
	}
	if report.StoreFailure != nil {
		return nil, s.fail(ctx, build, domain.StageCopy, report.StoreFailure)
	}
	info = append(info, CopyMessages(s.opts.Content.Location(), report.Summary)...)

	// 5. Aggregate
	aggregator := NewResultAggregator(s.namesForRun(), AggregatorOptions{
		IOTimeout: cfg.Resolver.IOTimeout,
		Logger:    logger,
	})
	result, err := aggregator.Aggregate(ctx, ws, roots, resolved, report.Sources)
	if err != nil {
		return nil, err
	}
	result.ID = cfg.ID
	result.Owner = build
	result.Resolution = summary
	result.Copy = report.Summary
	result.InfoMessages = append(info, result.InfoMessages...)
	result.ErrorMessages = append(errs, result.ErrorMessages...)

	// 6. New and fixed issues against the reference build
	if err := s.diff(ctx, result); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Warn().Err(err).Msg("Reference build not available")
		result.Error("Can't load reference build: %v", err)
	}

	// 7. Quality gate
	eval := gate.Evaluate(result.Totals, result.NewTotals, cfg.Thresholds)
	result.QualityGate = eval.Gates
	result.OverallResult = eval.Result
	for _, msg := range gate.Messages(eval) {
		result.Info("%s", msg)
	}

	s.stampCommit(bc.CommitPath, result, logger)
	result.FinishedAt = s.opts.Now()

	// 8. Attach
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.opts.Trend.Attach(ctx, result); err != nil {
		return nil, s.fail(ctx, build, domain.StageAttach, err)
	}

	s.opts.Metrics.ObserveResult(result.OverallResult)
	s.opts.Metrics.ObserveDuration(s.opts.Now().Sub(start))
	logger.Info().
		Int("issues", result.TotalSize).
		Int("new", result.NewSize).
		Str("result", string(result.OverallResult)).
		Msg("Analysis finished")

	return result, nil
}

// runScopedNames is implemented by name resolvers that cache workspace
// contents and hand out a fresh cache per build.
type runScopedNames interface {
	ForRun() domain.NameResolver
}

func (s *AnalysisService) namesForRun() domain.NameResolver {
	if scoped, ok := s.opts.Names.(runScopedNames); ok {
		return scoped.ForRun()
	}
	return s.opts.Names
}

// fail wraps err as a PipelineError unless ctx has been cancelled.
func (s *AnalysisService) fail(ctx context.Context, build domain.BuildRef, stage string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	s.opts.Logger.Error().Str("build", build.String()).Str("stage", stage).Err(err).Msg("Analysis failed")
	return &domain.PipelineError{Build: build, Stage: stage, Err: err}
}

// checkRoots fails if no root can be checked at all. Roots that merely do not
// exist are fine: their files end up as not in workspace.
func (s *AnalysisService) checkRoots(ctx context.Context, ws domain.Workspace, roots []string, timeout time.Duration) error {
	if len(roots) == 0 {
		return errors.New("no workspace roots")
	}
	var ioErr error
	for _, root := range roots {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		_, err := ws.Stat(pctx, root)
		cancel()
		if err == nil {
			return nil
		}
		ioErr = errors.Join(ioErr, fmt.Errorf("checking root %s: %w", root, err))
	}
	return ioErr
}

// collect runs every configured tool and returns the findings in emission
// order, without duplicates.
func (s *AnalysisService) collect(
	ctx context.Context,
	ws domain.Workspace,
	roots []string,
	cfg domain.ProjectConfig,
	info, errs *[]string,
) ([]*domain.Finding, error) {
	seen := map[string]bool{}
	var findings []*domain.Finding

	for _, tool := range cfg.Tools {
		parser, err := s.opts.Parsers.Parser(tool.Parser)
		if err != nil {
			*errs = append(*errs, fmt.Sprintf("Can't use parser '%s': %v", tool.Parser, err))
			continue
		}

		*info = append(*info, fmt.Sprintf("Searching for all files in '%s' that match the pattern '%s'",
			strings.Join(roots, ", "), tool.Pattern))
		files, err := s.opts.Finder.Find(ctx, ws, roots, tool.Pattern)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			*errs = append(*errs, fmt.Sprintf("Can't search for files with pattern '%s': %v", tool.Pattern, err))
			continue
		}
		if len(files) == 0 {
			*errs = append(*errs, domain.NoFilesMessage(tool.Pattern))
			continue
		}
		*info = append(*info, fmt.Sprintf("-> found %d files", len(files)))

		for _, file := range files {
			parsed, err := s.parse(ctx, ws, parser, file, cfg.Resolver.IOTimeout)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				*errs = append(*errs, fmt.Sprintf("Can't parse file %s: %v", file, err))
				continue
			}

			duplicates := 0
			for _, f := range parsed {
				if f.Origin == "" {
					f.Origin = tool.EffectiveID()
				}
				f.EnsureFingerprint()
				if seen[f.Fingerprint] {
					duplicates++
					continue
				}
				seen[f.Fingerprint] = true
				findings = append(findings, f)
			}
			*info = append(*info,
				fmt.Sprintf("Successfully parsed file %s", file),
				fmt.Sprintf("-> found %d issues (skipped %d duplicates)", len(parsed)-duplicates, duplicates))
		}
	}
	return findings, nil
}

func (s *AnalysisService) parse(
	ctx context.Context,
	ws domain.Workspace,
	parser domain.IssueParser,
	file string,
	timeout time.Duration,
) ([]*domain.Finding, error) {
	rctx, cancel := context.WithTimeout(ctx, timeout)
	content, err := ws.ReadFile(rctx, file)
	cancel()
	if err != nil {
		return nil, err
	}
	return parser.Parse(ctx, bytes.NewReader(content), file)
}

// diff fills the new and fixed issues. Without a reference build every
// finding is new.
func (s *AnalysisService) diff(ctx context.Context, result *domain.AnalysisResult) error {
	ref, err := domain.NewJobAction(result.Owner.Job, s.opts.Trend).ReferenceAction(ctx, result.Owner)

	var previous map[string]bool
	if ref != nil {
		build := ref.Build
		result.ReferenceBuild = &build
		previous = ref.Result.Fingerprints()
	}

	var news []*domain.Finding
	current := result.Fingerprints()
	for _, f := range result.Issues {
		if !previous[f.Fingerprint] {
			news = append(news, f)
			result.NewIssues = append(result.NewIssues, f.Fingerprint)
		}
	}
	if ref != nil {
		for _, prev := range ref.Result.Issues {
			if !current[prev.Fingerprint] {
				result.FixedIssues = append(result.FixedIssues, prev.Fingerprint)
			}
		}
	}

	result.NewSize = len(news)
	result.NewTotals = domain.CountSeverities(news)
	result.FixedSize = len(result.FixedIssues)
	return err
}

func (s *AnalysisService) stampCommit(path string, result *domain.AnalysisResult, logger zerolog.Logger) {
	if path == "" || s.opts.Commits == nil {
		return
	}
	hash, err := s.opts.Commits.CommitHash(path)
	if err != nil {
		logger.Debug().Err(err).Str("path", path).Msg("Commit not detected")
		return
	}
	result.Commit = hash
}

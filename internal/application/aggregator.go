package application

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/openkraft/issuegate/internal/domain"
)

// AggregatorOptions configures a ResultAggregator.
type AggregatorOptions struct {
	IOTimeout time.Duration
	Logger    zerolog.Logger
}

// ResultAggregator fills module and package names and builds the pre-gate
// part of an AnalysisResult.
type ResultAggregator struct {
	names domain.NameResolver
	opts  AggregatorOptions
}

func NewResultAggregator(names domain.NameResolver, opts AggregatorOptions) *ResultAggregator {
	if opts.IOTimeout <= 0 {
		opts.IOTimeout = domain.DefaultIOTimeout
	}
	return &ResultAggregator{names: names, opts: opts}
}

// Aggregate groups the findings by module and package and counts them per
// severity. sources maps resolved paths to their content, as read by the
// copier; files without content get no package name. Name resolution is
// best-effort: failures leave the name empty.
func (a *ResultAggregator) Aggregate(
	ctx context.Context,
	ws domain.Workspace,
	roots []string,
	resolved []domain.ResolvedFinding,
	sources map[string][]byte,
) (*domain.AnalysisResult, error) {
	modules := map[string]string{}
	packages := map[string]string{}

	issues := make([]*domain.Finding, 0, len(resolved))
	for _, rf := range resolved {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f := rf.Finding
		issues = append(issues, f)

		if !rf.Outcome.IsResolved() {
			continue
		}
		p := rf.Outcome.Path

		if f.ModuleName == "" {
			name, ok := modules[p]
			if !ok {
				name = a.moduleName(ctx, ws, roots, p)
				modules[p] = name
			}
			f.ModuleName = name
		}

		if f.PackageName == "" {
			name, ok := packages[p]
			if !ok {
				if content, found := sources[p]; found {
					name = a.names.PackageName(p, content)
				}
				packages[p] = name
			}
			f.PackageName = name
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &domain.AnalysisResult{
		Issues:    issues,
		TotalSize: len(issues),
		Totals:    domain.CountSeverities(issues),
		Modules:   domain.GroupBy(issues, func(f *domain.Finding) string { return f.ModuleName }),
		Packages:  domain.GroupBy(issues, func(f *domain.Finding) string { return f.PackageName }),
	}

	withModule := 0
	filesWithPackage := map[string]bool{}
	for _, f := range issues {
		if f.ModuleName != "" {
			withModule++
		}
		if f.PackageName != "" {
			filesWithPackage[f.FilePath] = true
		}
	}
	result.Info("Resolved module names for %d issues", withModule)
	result.Info("Resolved package names of %d affected files", len(filesWithPackage))

	return result, nil
}

func (a *ResultAggregator) moduleName(ctx context.Context, ws domain.Workspace, roots []string, file string) string {
	root, ok := containingRoot(roots, file)
	if !ok {
		return ""
	}

	mctx, cancel := context.WithTimeout(ctx, a.opts.IOTimeout)
	defer cancel()

	name, err := a.names.ModuleName(mctx, ws, root, file)
	if err != nil {
		a.opts.Logger.Debug().Str("file", file).Err(err).Msg("Module name not resolved")
		return ""
	}
	return name
}

// containingRoot returns the root directory file lies below. Exact prefixes
// win over case-insensitive ones.
func containingRoot(roots []string, file string) (string, bool) {
	for _, root := range roots {
		root = strings.TrimSuffix(normalize(root), "/")
		if strings.HasPrefix(file, root+"/") {
			return root, true
		}
	}
	for _, root := range roots {
		root = strings.TrimSuffix(normalize(root), "/")
		if _, ok := relativeTo(root, file); ok {
			return file[:len(root)], true
		}
	}
	return "", false
}

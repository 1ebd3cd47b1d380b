package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openkraft/issuegate/internal/adapters/outbound/config"
	"github.com/openkraft/issuegate/internal/adapters/outbound/parser"
	"github.com/openkraft/issuegate/internal/adapters/outbound/tui"
	"github.com/openkraft/issuegate/internal/adapters/outbound/workspace"
	"github.com/openkraft/issuegate/internal/application"
	"github.com/openkraft/issuegate/internal/domain"
)

func newRecordCmd(s *settings) *cobra.Command {
	var (
		job        string
		number     int
		roots      []string
		agentURL   string
		configPath string
		tools      []string
		jsonOutput bool
		ciMode     bool
	)
	gates := map[string]*int{}

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Analyse the reports of one build and record the result",
		Long: "Find the report files of every configured tool, resolve and capture the affected files, " +
			"evaluate the quality gates and attach the result to the job's trend.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if number <= 0 {
				return fmt.Errorf("--build must be a positive build number")
			}

			cfg, err := loadRecordConfig(configPath, roots, agentURL)
			if err != nil {
				return err
			}
			override := domain.ProjectConfig{}
			for _, raw := range tools {
				tool, err := parseTool(raw)
				if err != nil {
					return err
				}
				override.Tools = append(override.Tools, tool)
			}
			for name, value := range gates {
				if cmd.Flags().Changed(name) {
					setThreshold(&override.Thresholds, name, *value)
				}
			}
			cfg = config.Merge(cfg, override)
			if len(cfg.Tools) == 0 {
				return fmt.Errorf("no tools configured: use --tool or %s", ".issuegate.yaml")
			}

			bc := application.BuildContext{
				Build:  domain.BuildRef{Job: job, Number: number},
				Config: cfg,
			}
			if agentURL != "" {
				remote := workspace.NewRemote(agentURL, workspace.WithToken(s.agentToken()))
				bc.Workspace = workspace.NewRemoteProvider(remote)
			} else {
				local, err := absRoots(roots)
				if err != nil {
					return err
				}
				bc.Workspace = workspace.NewStaticProvider(workspace.NewLocal(), local...)
				bc.CommitPath = local[0]
			}

			st, err := openStores(s)
			if err != nil {
				return err
			}
			defer st.Close()

			logger := s.logger(cmd.ErrOrStderr())
			result, err := st.pipeline(nil, logger).Run(cmd.Context(), bc)
			if err != nil {
				return err
			}

			if jsonOutput {
				if err := renderJSON(cmd, result); err != nil {
					return err
				}
			} else {
				fmt.Fprint(cmd.OutOrStdout(), tui.RenderResult(result))
			}

			if ciMode && result.OverallResult == domain.ResultFailure {
				return fmt.Errorf("quality gate failed: overall result is %s", result.OverallResult)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&job, "job", "", "Name of the CI job")
	cmd.Flags().IntVar(&number, "build", 0, "Build number")
	cmd.Flags().StringSliceVar(&roots, "root", nil, "Workspace root (repeatable, default: current directory)")
	cmd.Flags().StringVar(&agentURL, "agent", "", "URL of the workspace agent on the build node")
	cmd.Flags().StringVar(&configPath, "config", "", "Config file (default: .issuegate.yaml in the first root)")
	cmd.Flags().StringArrayVar(&tools, "tool", nil,
		"Tool as [id:]pattern:parser (repeatable, parsers: "+strings.Join(parser.Default().IDs(), ", ")+")")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output result as JSON")
	cmd.Flags().BoolVar(&ciMode, "ci", false, "CI mode: exit 1 if the overall result is FAILURE")
	for _, name := range []string{"unstable-total-all", "failed-total-all", "unstable-new-all", "failed-new-all"} {
		gates[name] = cmd.Flags().Int(name, 0, "Quality gate threshold "+strings.ReplaceAll(name, "-", "_"))
	}
	_ = cmd.MarkFlagRequired("job")
	_ = cmd.MarkFlagRequired("build")
	cmd.MarkFlagsMutuallyExclusive("root", "agent")

	return cmd
}

func loadRecordConfig(path string, roots []string, agentURL string) (domain.ProjectConfig, error) {
	loader := config.New()
	switch {
	case path != "":
		return loader.LoadFile(path)
	case agentURL != "":
		return domain.DefaultConfig(), nil
	case len(roots) > 0:
		return loader.Load(roots[0])
	default:
		return loader.Load(".")
	}
}

func absRoots(roots []string) ([]string, error) {
	if len(roots) == 0 {
		roots = []string{"."}
	}
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, fmt.Errorf("resolving root %s: %w", r, err)
		}
		out = append(out, filepath.ToSlash(abs))
	}
	return out, nil
}

// parseTool reads "pattern:parser" or "id:pattern:parser". The parser is
// always the last element.
func parseTool(raw string) (domain.ToolConfig, error) {
	i := strings.LastIndex(raw, ":")
	if i <= 0 || i == len(raw)-1 {
		return domain.ToolConfig{}, fmt.Errorf("invalid --tool %q: want [id:]pattern:parser", raw)
	}
	tool := domain.ToolConfig{Pattern: raw[:i], Parser: raw[i+1:]}
	if id, pattern, ok := strings.Cut(tool.Pattern, ":"); ok && len(id) > 1 && pattern != "" && !strings.ContainsAny(id, `*?/\.`) {
		tool.ID, tool.Pattern = id, pattern
	}
	if strings.TrimSpace(tool.Pattern) == "" {
		return domain.ToolConfig{}, errors.New("invalid --tool: empty pattern")
	}
	return tool, nil
}

func setThreshold(t *domain.Thresholds, flag string, value int) {
	v := value
	switch flag {
	case "unstable-total-all":
		t.UnstableTotalAll = &v
	case "failed-total-all":
		t.FailedTotalAll = &v
	case "unstable-new-all":
		t.UnstableNewAll = &v
	case "failed-new-all":
		t.FailedNewAll = &v
	}
}

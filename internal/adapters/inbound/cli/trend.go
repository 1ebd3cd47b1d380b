package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openkraft/issuegate/internal/adapters/outbound/tui"
	"github.com/openkraft/issuegate/internal/domain"
)

func newTrendCmd(s *settings) *cobra.Command {
	var (
		job        string
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Show the results of the latest builds of a job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStores(s)
			if err != nil {
				return err
			}
			defer st.Close()

			actions, err := domain.NewJobAction(job, st.trend).Trend(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if jsonOutput {
				summaries := make([]domain.ActionSummary, 0, len(actions))
				for _, a := range actions {
					summaries = append(summaries, a.Summary())
				}
				return renderJSON(cmd, summaries)
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderTrend(job, actions))
			return nil
		},
	}

	cmd.Flags().StringVar(&job, "job", "", "Name of the CI job")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of builds, 0 for all")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output trend as JSON")
	_ = cmd.MarkFlagRequired("job")

	return cmd
}

func newLastCmd(s *settings) *cobra.Command {
	var (
		job        string
		withIssues bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "last",
		Short: "Show the result of the most recent finished build of a job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStores(s)
			if err != nil {
				return err
			}
			defer st.Close()

			ja := domain.NewJobAction(job, st.trend)
			var action *domain.ResultAction
			if withIssues {
				action, err = ja.LastActionWithIssues(cmd.Context())
			} else {
				action, err = ja.LastAction(cmd.Context())
			}
			if err != nil {
				return err
			}
			if action == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "no results for job %s\n", job)
				return nil
			}

			if jsonOutput {
				return renderJSON(cmd, action)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n  Build %s\n", action.Build.DisplayName())
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderResult(action.Result))
			return nil
		},
	}

	cmd.Flags().StringVar(&job, "job", "", "Name of the CI job")
	cmd.Flags().BoolVar(&withIssues, "with-issues", false, "Skip builds without issues")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output result as JSON")
	_ = cmd.MarkFlagRequired("job")

	return cmd
}

func renderJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openkraft/issuegate/internal/adapters/outbound/tui"
	"github.com/openkraft/issuegate/internal/domain"
)

func newSourceCmd(s *settings) *cobra.Command {
	var (
		job         string
		number      int
		fingerprint string
		raw         bool
	)

	cmd := &cobra.Command{
		Use:   "source",
		Short: "Show the captured file affected by an issue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStores(s)
			if err != nil {
				return err
			}
			defer st.Close()

			build := domain.BuildRef{Job: job, Number: number}
			content, err := st.content.Get(cmd.Context(), domain.ContentKey{Build: build, Fingerprint: fingerprint})
			if err != nil {
				return err
			}
			if raw {
				_, err := cmd.OutOrStdout().Write(content)
				return err
			}

			title, line := fingerprint, 0
			action, err := st.trend.Action(cmd.Context(), build)
			if err != nil {
				return err
			}
			if action != nil {
				for _, f := range action.Result.Issues {
					if f.Fingerprint == fingerprint {
						title = fmt.Sprintf("%s:%d  %s", f.FilePath, f.Line, f.Message)
						line = f.Line
						break
					}
				}
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderSource(title, content, line))
			return nil
		},
	}

	cmd.Flags().StringVar(&job, "job", "", "Name of the CI job")
	cmd.Flags().IntVar(&number, "build", 0, "Build number")
	cmd.Flags().StringVar(&fingerprint, "fingerprint", "", "Fingerprint of the issue")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the file content without decoration")
	for _, name := range []string{"job", "build", "fingerprint"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

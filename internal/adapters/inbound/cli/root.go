package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "dev"
	commit  = "none"
)

// settings are the process settings shared by all commands. Flags win over
// ISSUEGATE_* environment variables.
type settings struct {
	v *viper.Viper
}

func (s *settings) dataDir() (string, error) {
	if dir := s.v.GetString("data-dir"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving data directory: %w", err)
	}
	return filepath.Join(home, ".issuegate"), nil
}

func (s *settings) listen() string     { return s.v.GetString("listen") }
func (s *settings) agentToken() string { return s.v.GetString("agent-token") }

func (s *settings) logger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(s.v.GetString("log-level"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func newRootCmd() *cobra.Command {
	s := &settings{v: viper.New()}

	cmd := &cobra.Command{
		Use:   "issuegate",
		Short: "Static analysis results and quality gates for CI builds",
		Long: "issuegate collects the reports of static analysis tools, resolves the affected files in the build's " +
			"workspace, captures them, and decides the build result with quality gates.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.String("data-dir", "", "Directory for the trend database and captured files (default $HOME/.issuegate)")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("agent-token", "", "Bearer token shared between controller and agent")

	s.v.SetEnvPrefix("ISSUEGATE")
	s.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	s.v.AutomaticEnv()
	for _, name := range []string{"data-dir", "log-level", "agent-token"} {
		_ = s.v.BindPFlag(name, flags.Lookup(name))
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newRecordCmd(s))
	cmd.AddCommand(newTrendCmd(s))
	cmd.AddCommand(newLastCmd(s))
	cmd.AddCommand(newSourceCmd(s))
	cmd.AddCommand(newServeCmd(s))
	cmd.AddCommand(newAgentCmd(s))
	cmd.AddCommand(newMCPCmd(s))
	return cmd
}

// NewRootCmdForTest returns the root command for testing.
func NewRootCmdForTest() *cobra.Command {
	return newRootCmd()
}

func Execute() error {
	return newRootCmd().Execute()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show issuegate version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "issuegate %s (%s)\n", version, commit)
			return nil
		},
	}
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/openkraft/issuegate/internal/adapters/inbound/agent"
	"github.com/openkraft/issuegate/internal/adapters/inbound/httpapi"
	"github.com/openkraft/issuegate/internal/adapters/outbound/config"
	"github.com/openkraft/issuegate/internal/adapters/outbound/metrics"
	"github.com/openkraft/issuegate/internal/adapters/outbound/workspace"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(s *settings) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the controller API",
		Long:  "Run the HTTP API that CI servers call to analyse builds and query results.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = s.v.BindPFlag("listen", cmd.Flags().Lookup("listen"))
			logger := s.logger(cmd.ErrOrStderr()).With().Str("component", "controller").Logger()

			cfg, err := config.New().Load(".")
			if configPath != "" {
				cfg, err = config.New().LoadFile(configPath)
			}
			if err != nil {
				return err
			}

			st, err := openStores(s)
			if err != nil {
				return err
			}
			defer st.Close()

			rec := metrics.New()
			api := httpapi.New(httpapi.Options{
				Pipeline:       st.pipeline(rec, logger),
				Trend:          st.trend,
				Content:        st.content,
				Jobs:           st.trend,
				Config:         cfg,
				MetricsHandler: rec.Handler(),
				Logger:         logger,
			})
			return runServer(cmd.Context(), s.listen(), api.Handler(), logger)
		},
	}

	cmd.Flags().String("listen", ":8420", "Listen address")
	cmd.Flags().StringVar(&configPath, "config", "", "Default config for builds that send none (default: ./.issuegate.yaml)")

	return cmd
}

func newAgentCmd(s *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Workspace agent commands",
		Long:  "Commands for the agent that serves a build node's workspace to the controller.",
	}
	cmd.AddCommand(newAgentServeCmd(s))
	return cmd
}

func newAgentServeCmd(s *settings) *cobra.Command {
	var roots []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local workspace read-only over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = s.v.BindPFlag("listen", cmd.Flags().Lookup("listen"))
			logger := s.logger(cmd.ErrOrStderr()).With().Str("component", "agent").Logger()

			local, err := absRoots(roots)
			if err != nil {
				return err
			}
			node, _ := os.Hostname()
			if s.agentToken() == "" {
				logger.Warn().Msg("No agent token set: the workspace is readable without authentication")
			}

			rec := metrics.New()
			srv := agent.New(workspace.NewLocal(), agent.Options{
				Node:           node,
				Roots:          local,
				Token:          s.agentToken(),
				Metrics:        rec,
				MetricsHandler: rec.Handler(),
				Logger:         logger,
			})
			return runServer(cmd.Context(), s.listen(), srv.Handler(), logger)
		},
	}

	cmd.Flags().String("listen", ":8421", "Listen address")
	cmd.Flags().StringSliceVar(&roots, "root", nil, "Workspace root to serve (repeatable, default: current directory)")

	return cmd
}

// runServer serves handler until ctx ends or the process is interrupted.
func runServer(ctx context.Context, addr string, handler http.Handler, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("Listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving on %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Info().Msg("Shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

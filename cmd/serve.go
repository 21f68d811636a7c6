package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/autoform/api/schemas"
	"github.com/xkilldash9x/autoform/internal/browser"
	"github.com/xkilldash9x/autoform/internal/config"
	"github.com/xkilldash9x/autoform/internal/engine/sequencer"
	"github.com/xkilldash9x/autoform/internal/observability"
	"github.com/xkilldash9x/autoform/internal/server"
)

// newBrowserManager launches the shared browser. Tests replace it.
var newBrowserManager = func(ctx context.Context, logger *zap.Logger, cfg config.Interface) (schemas.BrowserManager, error) {
	return browser.NewManager(ctx, logger, cfg)
}

// startServer blocks serving HTTP until ctx ends. Tests replace it.
var startServer = func(ctx context.Context, srv *server.Server) error {
	return srv.Start(ctx)
}

// newServeCmd creates the `serve` command, which exposes POST /fill.
func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts the HTTP fill service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFrom(ctx)
			if err != nil {
				return err
			}
			return runServe(ctx, cfg, observability.GetLogger())
		},
	}

	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().Int("concurrency", 0, "maximum concurrent fill sessions (overrides browser.concurrency)")
	serveCmd.Flags().Bool("headless", true, "run the browser headless (overrides browser.headless)")
	return serveCmd
}

func runServe(ctx context.Context, cfg config.Interface, logger *zap.Logger) error {
	logger.Info("Launching browser",
		zap.Bool("headless", cfg.Browser().Headless),
		zap.Int("concurrency", cfg.Browser().Concurrency),
	)
	mgr, err := newBrowserManager(ctx, logger, cfg)
	if err != nil {
		return err
	}

	seq := sequencer.New(cfg, mgr, logger)
	return startServer(ctx, server.New(cfg, logger, mgr, seq))
}

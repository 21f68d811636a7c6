package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/autoform/api/schemas"
	"github.com/xkilldash9x/autoform/internal/config"
	"github.com/xkilldash9x/autoform/internal/engine/sequencer"
	"github.com/xkilldash9x/autoform/internal/observability"
	"github.com/xkilldash9x/autoform/internal/server"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// errFillFailed is returned when the fill ran but did not succeed. The
// response describing why has already been written.
var errFillFailed = errors.New("fill did not complete successfully")

// newFillCmd creates the `fill` command, which runs a single plan locally.
func newFillCmd() *cobra.Command {
	var planPath, outPath string

	fillCmd := &cobra.Command{
		Use:   "fill",
		Short: "Runs one fill plan against its portal and prints the response",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFrom(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			plan, err := readPlan(planPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outPath != "" {
				path, err := homedir.Expand(outPath)
				if err != nil {
					return fmt.Errorf("invalid output path: %w", err)
				}
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				out = f
			}

			// An invalid plan is answered without launching a browser.
			var mgr schemas.BrowserManager
			if sequencer.Validate(plan) == nil {
				mgr, err = newBrowserManager(ctx, logger, cfg)
				if err != nil {
					return err
				}
				defer shutdownBrowser(logger, cfg, mgr)
			}

			return runFill(ctx, sequencer.New(cfg, mgr, logger), plan, out)
		},
	}

	fillCmd.Flags().StringVarP(&planPath, "plan", "p", "", "path to the fill plan JSON file")
	fillCmd.Flags().StringVarP(&outPath, "out", "o", "", "write the response here instead of stdout")
	fillCmd.Flags().Bool("headless", true, "run the browser headless (overrides browser.headless)")
	_ = fillCmd.MarkFlagRequired("plan")
	return fillCmd
}

// runFill executes plan and writes the response as one line of JSON.
func runFill(ctx context.Context, runner server.Runner, plan *schemas.FillPlan, out io.Writer) error {
	resp, runErr := runner.Run(ctx, plan)
	if resp != nil {
		if err := json.NewEncoder(out).Encode(resp); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	}
	if runErr != nil {
		return runErr
	}
	if resp == nil || !resp.OK {
		return errFillFailed
	}
	return nil
}

func readPlan(path string) (*schemas.FillPlan, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("invalid plan path: %w", err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	var plan schemas.FillPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to decode plan %s: %w", path, err)
	}
	return &plan, nil
}

func shutdownBrowser(logger *zap.Logger, cfg config.Interface, mgr schemas.BrowserManager) {
	timeout := cfg.Server().ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := mgr.Shutdown(ctx); err != nil {
		logger.Warn("Browser shutdown failed", zap.Error(err))
	}
}

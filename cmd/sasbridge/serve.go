package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sasbridge/internal/runner"
	"sasbridge/internal/server"
	"sasbridge/internal/task"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the analysis and execution API: script runs with incremental and
streamed logs under /api/run, asynchronous analysis tasks under
/api/analyze and /api/task, and a health probe at /healthz. Shuts down
gracefully on SIGINT or SIGTERM.

Example:
  sasbridge serve --addr :8750`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := serveAddr
	if addr == "" {
		addr = fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	}

	run := runner.NewWithConfig(runner.Config{
		Command:   cfg.Runner.Command,
		WorkDir:   cfg.Runner.WorkDir,
		Timeout:   cfg.GetRunTimeout(),
		LogBuffer: cfg.Runner.LogBuffer,
		MaxOutput: cfg.Runner.MaxLogSize,
	}, logger)

	tasks, err := task.NewWithConfig(task.Config{
		DBPath:       cfg.Store.Path,
		Workers:      cfg.Analysis.Workers,
		MaxTokenSize: cfg.Analysis.MaxTokenSize,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := tasks.Close(); err != nil {
			logger.Warn("Failed to close task service", zap.Error(err))
		}
	}()

	srv := server.NewWithConfig(server.Config{
		Addr:            addr,
		ShutdownTimeout: cfg.GetShutdownTimeout(),
	}, run, tasks, logger)

	ctx, cancel := signalContext()
	defer cancel()
	return srv.Run(ctx)
}

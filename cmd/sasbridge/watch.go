package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sasbridge/internal/task"
	"sasbridge/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Watch a directory and analyze SAS files as they change",
	Long: `Watches a directory (non-recursively) and submits an analysis task for
every SAS file that is created or modified, debouncing rapid saves. Results
land in the task store and are readable through the API or a later serve
session. Runs until interrupted or until the directory is removed.

Example:
  sasbridge watch warehouse/`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
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

	w, err := watch.NewWithConfig(watch.Config{
		Dir:      args[0],
		Debounce: cfg.GetWatchDebounce(),
	}, tasks, logger)
	if err != nil {
		return err
	}
	defer w.Stop()

	ctx, cancel := signalContext()
	defer cancel()
	if err := w.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-w.Done():
	}
	return nil
}

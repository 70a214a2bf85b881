package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sasbridge/internal/runner"
)

var runTimeout time.Duration

var runCmd = &cobra.Command{
	Use:   "run [script.py]",
	Short: "Execute a Python script with captured output",
	Long: `Stages the script with the configured interpreter, runs it in its own
process group, and follows its output until it finishes. Stdout lines go to
stdout and stderr lines to stderr; with --json each log entry and the final
run status are emitted as JSON lines instead. Interrupting the command
stops the script.

Example:
  sasbridge run --timeout 2m converted/etl_daily.py`,
	Args: cobra.ExactArgs(1),
	RunE: runScript,
}

func init() {
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Per-run wall clock limit (default from config)")
}

func runScript(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	timeout := runTimeout
	if timeout <= 0 {
		timeout = cfg.GetRunTimeout()
	}
	run := runner.NewWithConfig(runner.Config{
		Command:   cfg.Runner.Command,
		WorkDir:   cfg.Runner.WorkDir,
		Timeout:   timeout,
		LogBuffer: cfg.Runner.LogBuffer,
		MaxOutput: cfg.Runner.MaxLogSize,
	}, logger)

	id, path, err := run.Save(string(data))
	if err != nil {
		return err
	}
	logger.Debug("Staged script", zap.String("id", id), zap.String("path", path))

	ctx, cancel := signalContext()
	defer cancel()
	if err := run.Start(ctx, id); err != nil {
		return err
	}

	if err := followRun(run, id); err != nil {
		return err
	}

	info, err := run.Status(id)
	if err != nil {
		return err
	}
	if jsonOut {
		line, err := json.Marshal(info)
		if err != nil {
			return fmt.Errorf("failed to encode status: %w", err)
		}
		fmt.Println(string(line))
	}
	switch info.Status {
	case runner.StatusCompleted:
		return nil
	case runner.StatusStopped:
		if info.KillReason != "" {
			return fmt.Errorf("run stopped: %s", info.KillReason)
		}
		return fmt.Errorf("run stopped")
	default:
		return fmt.Errorf("script failed with exit code %d", info.ExitCode)
	}
}

// followRun prints log entries as they arrive until the run finishes.
func followRun(run *runner.Runner, id string) error {
	done, err := run.Done(id)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	after := 0
	flush := func() error {
		entries, next, err := run.Logs(id, after)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if jsonOut {
				line, err := json.Marshal(entry)
				if err != nil {
					return fmt.Errorf("failed to encode log entry: %w", err)
				}
				fmt.Println(string(line))
				continue
			}
			if entry.Stream == "stderr" {
				fmt.Fprintln(os.Stderr, entry.Line)
			} else {
				fmt.Println(entry.Line)
			}
		}
		after = next
		return nil
	}

	for {
		select {
		case <-done:
			return flush()
		case <-ticker.C:
			if err := flush(); err != nil {
				return err
			}
		}
	}
}

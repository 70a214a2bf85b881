package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sasbridge/internal/sas"
	"sasbridge/internal/task"
)

var (
	analyzeDatabasesOnly bool
	analyzeTokenSize     int
	analyzeOutput        string
	analyzePretty        bool
	analyzeSummary       bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [path]",
	Short: "Analyze a SAS file or directory",
	Long: `Runs the static analyses over a SAS file, or over every SAS file under a
directory: database usage, internal and external dependencies, dataset flow,
chunking, and complexity metrics. Pass - to read source from stdin.

Examples:
  sasbridge analyze etl_daily.sas
  sasbridge analyze --summary etl_daily.sas
  sasbridge analyze --databases-only warehouse/
  cat etl_daily.sas | sasbridge analyze -`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var (
	chunkTokenSize int
	chunkLabel     string
	chunkOutput    string
	chunkPretty    bool
)

var chunkCmd = &cobra.Command{
	Use:   "chunk [path]",
	Short: "Split SAS source into macros and token-budgeted chunks",
	Long: `Extracts macro definitions and splits the remaining main body into chunks
that fit a token budget, keeping statements intact. Pass - to read source
from stdin.

Example:
  sasbridge chunk --token-size 2000 etl_daily.sas`,
	Args: cobra.ExactArgs(1),
	RunE: runChunk,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeDatabasesOnly, "databases-only", false, "Report only database usage")
	analyzeCmd.Flags().IntVar(&analyzeTokenSize, "token-size", 0, "Token budget per chunk (default from config)")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "Write the result to a file instead of stdout")
	analyzeCmd.Flags().BoolVar(&analyzePretty, "pretty", false, "Indent JSON output")
	analyzeCmd.Flags().BoolVar(&analyzeSummary, "summary", false, "Print a human-readable summary instead of JSON")

	chunkCmd.Flags().IntVar(&chunkTokenSize, "token-size", 0, "Token budget per chunk (default from config)")
	chunkCmd.Flags().StringVar(&chunkLabel, "label", "", "Label for generated chunk names (default: file name)")
	chunkCmd.Flags().StringVarP(&chunkOutput, "output", "o", "", "Write the result to a file instead of stdout")
	chunkCmd.Flags().BoolVar(&chunkPretty, "pretty", false, "Indent JSON output")
}

// fileDatabases pairs a path with its database usage for directory reports.
type fileDatabases struct {
	Path      string              `json:"path"`
	Databases []sas.DatabaseUsage `json:"databases"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	path := args[0]
	tokenSize := analyzeTokenSize
	if tokenSize <= 0 {
		tokenSize = cfg.Analysis.MaxTokenSize
	}

	if path != "-" {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if info.IsDir() {
			return analyzeDirectory(path, tokenSize)
		}
	}

	source, label, err := readSource(path)
	if err != nil {
		return err
	}
	logger.Debug("Analyzing source", zap.String("label", label), zap.Int("bytes", len(source)))

	if analyzeDatabasesOnly {
		return writeResult(sas.AnalyzeDatabaseUsage(source), analyzeOutput, analyzePretty)
	}

	if path == "-" {
		result := task.AnalyzeCode(source, label, tokenSize)
		if analyzeSummary && !jsonOut {
			fmt.Print(renderCodeSummary(label, result))
			return nil
		}
		return writeResult(result, analyzeOutput, analyzePretty)
	}

	result, err := task.AnalyzeFile(path, tokenSize)
	if err != nil {
		return err
	}
	if analyzeSummary && !jsonOut {
		fmt.Print(renderCodeSummary(result.Name, result.CodeResult))
		return nil
	}
	return writeResult(result, analyzeOutput, analyzePretty)
}

func analyzeDirectory(dir string, tokenSize int) error {
	ctx, cancel := signalContext()
	defer cancel()

	logger.Debug("Analyzing directory", zap.String("dir", dir))

	if analyzeDatabasesOnly {
		result, err := task.AnalyzeDirectory(ctx, dir, tokenSize)
		if err != nil {
			return err
		}
		usage := make([]fileDatabases, 0, len(result.Files))
		for _, fr := range result.Files {
			if len(fr.DataSources.Databases) == 0 {
				continue
			}
			usage = append(usage, fileDatabases{
				Path:      fr.Path,
				Databases: fr.DataSources.Databases,
			})
		}
		return writeResult(usage, analyzeOutput, analyzePretty)
	}

	result, err := task.AnalyzeDirectory(ctx, dir, tokenSize)
	if err != nil {
		return err
	}
	if analyzeSummary && !jsonOut {
		fmt.Print(renderDirectorySummary(result))
		return nil
	}
	return writeResult(result, analyzeOutput, analyzePretty)
}

func runChunk(cmd *cobra.Command, args []string) error {
	tokenSize := chunkTokenSize
	if tokenSize <= 0 {
		tokenSize = cfg.Analysis.MaxTokenSize
	}

	source, label, err := readSource(args[0])
	if err != nil {
		return err
	}
	if chunkLabel != "" {
		label = chunkLabel
	}

	report := sas.ChunkSource(source, tokenSize, label)
	logger.Debug("Chunked source",
		zap.String("label", label),
		zap.Int("macros", len(report.Macros)),
		zap.Int("chunks", len(report.MainBodyChunks)))
	return writeResult(report, chunkOutput, chunkPretty)
}

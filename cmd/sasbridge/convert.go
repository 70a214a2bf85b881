package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sasbridge/internal/convert"
	"sasbridge/internal/llm"
)

var (
	convertOutputDir string
	convertTokenSize int
)

var convertCmd = &cobra.Command{
	Use:   "convert [path]",
	Short: "Convert a SAS program to Python",
	Long: `Converts a SAS program to Python through the configured completion model:
macros become functions, main-body chunks become sequential code, imports
are hoisted and deduplicated, and a requirements.txt is derived from them.

The output directory receives the merged module, requirements.txt, one file
per converted function under functions/, and the analysis reports under
analysis/. Requires an LLM provider (config file or OPENAI_API_KEY /
AZURE_OPENAI_API_KEY / GEMINI_API_KEY).

Example:
  sasbridge convert --output-dir converted/ etl_daily.sas`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVar(&convertOutputDir, "output-dir", "converted", "Directory for the generated Python project")
	convertCmd.Flags().IntVar(&convertTokenSize, "token-size", 0, "Token budget per chunk (default from config)")
}

func runConvert(cmd *cobra.Command, args []string) error {
	source, label, err := readSource(args[0])
	if err != nil {
		return err
	}
	tokenSize := convertTokenSize
	if tokenSize <= 0 {
		tokenSize = cfg.Analysis.MaxTokenSize
	}

	client, err := llm.NewClient(cfg.LLM, cfg.GetLLMTimeout())
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	logger.Info("Converting SAS source",
		zap.String("source", label),
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", cfg.LLM.Model))

	conv := convert.New(client, tokenSize)
	result, err := conv.Convert(ctx, source, label)
	if err != nil {
		return err
	}

	base := strings.TrimSuffix(label, filepath.Ext(label))
	if base == "" || label == "stdin" {
		base = "converted"
	}
	if err := saveConversion(result, convertOutputDir, base); err != nil {
		return err
	}

	fmt.Printf("Converted %d macros and %d blocks\n", len(result.Functions), len(result.MainBlocks))
	fmt.Printf("Wrote %s\n", filepath.Join(convertOutputDir, base+".py"))
	fmt.Printf("Wrote %s (%d packages)\n", filepath.Join(convertOutputDir, "requirements.txt"), len(result.Requirements))
	return nil
}

// saveConversion lays out the generated project: the merged module, the pip
// requirements, one file per converted function, and the analysis reports.
func saveConversion(result *convert.Result, outputDir, base string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", outputDir, err)
	}

	moduleFile := filepath.Join(outputDir, base+".py")
	if err := os.WriteFile(moduleFile, []byte(result.PythonCode), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", moduleFile, err)
	}

	reqFile := filepath.Join(outputDir, "requirements.txt")
	reqs := strings.Join(result.Requirements, "\n")
	if reqs != "" {
		reqs += "\n"
	}
	if err := os.WriteFile(reqFile, []byte(reqs), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", reqFile, err)
	}

	if len(result.Functions) > 0 {
		funcDir := filepath.Join(outputDir, "functions")
		if err := os.MkdirAll(funcDir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", funcDir, err)
		}
		for _, fn := range result.Functions {
			path := filepath.Join(funcDir, fn.Name+".py")
			if err := os.WriteFile(path, []byte(fn.Code+"\n"), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
		}
	}

	analysisDir := filepath.Join(outputDir, "analysis")
	if err := os.MkdirAll(analysisDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", analysisDir, err)
	}
	if err := writeAnalysisJSON(filepath.Join(analysisDir, "data_sources.json"), result.DataSources); err != nil {
		return err
	}
	return writeAnalysisJSON(filepath.Join(analysisDir, "dependencies.json"), result.Dependencies)
}

func writeAnalysisJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

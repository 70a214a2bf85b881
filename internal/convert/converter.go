// Package convert turns SAS source into Python through a completion model.
// The source is split into macro definitions and token-budgeted main-body
// chunks, each piece is converted with a prompt matched to its shape, and
// the converted pieces are merged into one program with hoisted imports, a
// dependency banner, database connection stubs, and a pip requirements list.
package convert

import (
	"context"
	"fmt"
	"strings"

	"sasbridge/internal/llm"
	"sasbridge/internal/sas"
)

const defaultMaxTokenSize = 1000

// ConvertedFunction is the Python rendering of one SAS macro.
type ConvertedFunction struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// Result is the output of one conversion run.
type Result struct {
	PythonCode   string               `json:"pythonCode"`
	Requirements []string             `json:"requirements"`
	Functions    []ConvertedFunction  `json:"functions"`
	MainBlocks   []string             `json:"mainBlocks"`
	DataSources  sas.DataSourceReport `json:"dataSources"`
	Dependencies sas.DependencyReport `json:"dependencies"`
}

// Converter drives the chunk-convert-merge pipeline against a completion
// model. Safe for concurrent use if the underlying client is.
type Converter struct {
	client       llm.Client
	maxTokenSize int
}

// New returns a Converter that chunks source at maxTokenSize tokens per
// piece. A non-positive maxTokenSize falls back to the default budget.
func New(client llm.Client, maxTokenSize int) *Converter {
	if maxTokenSize <= 0 {
		maxTokenSize = defaultMaxTokenSize
	}
	return &Converter{client: client, maxTokenSize: maxTokenSize}
}

// Convert analyzes source, converts every macro and main-body chunk, and
// assembles the merged Python program. Pieces are converted sequentially in
// source order; the first failed piece aborts the run.
func (c *Converter) Convert(ctx context.Context, source, label string) (*Result, error) {
	dataSources := sas.AnalyzeDataSources(source)
	deps := sas.AnalyzeDependencies(source)
	report := sas.ChunkSource(source, c.maxTokenSize, label)

	functions := make([]ConvertedFunction, 0, len(report.Macros))
	for _, m := range report.Macros {
		code, err := c.ConvertMacro(ctx, m)
		if err != nil {
			return nil, fmt.Errorf("failed to convert macro %s: %w", m.Name, err)
		}
		functions = append(functions, ConvertedFunction{Name: m.Name, Code: code})
	}

	blocks := make([]string, 0, len(report.MainBodyChunks))
	for i, chunk := range report.MainBodyChunks {
		code, err := c.ConvertBlock(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("failed to convert block %d: %w", i+1, err)
		}
		blocks = append(blocks, code)
	}

	program := mergeProgram(functions, blocks)
	full := DependencyComments(deps) + "\n\n" + ConnectionTemplates(dataSources)
	if program != "" {
		full += "\n\n" + program
	}
	full += "\n"

	return &Result{
		PythonCode:   full,
		Requirements: Requirements(full),
		Functions:    functions,
		MainBlocks:   blocks,
		DataSources:  dataSources,
		Dependencies: deps,
	}, nil
}

// ConvertMacro converts one extracted macro into a Python function. The
// original %macro ... %mend wrapper is reassembled around the body so the
// model sees a complete definition.
func (c *Converter) ConvertMacro(ctx context.Context, m sas.Macro) (string, error) {
	definition := fmt.Sprintf("%%macro %s%s%%mend %s;", m.Name, m.Body, m.Name)
	prompt := fmt.Sprintf("Convert the following SAS macro to a Python function:\n\n```sas\n%s\n```", definition)
	out, err := c.client.CompleteWithSystem(ctx, macroSystemPrompt, prompt)
	if err != nil {
		return "", err
	}
	return stripCodeFences(out), nil
}

// ConvertBlock converts one main-body chunk. Chunks containing a proc sql
// statement use the SQL prompt, everything else the general prompt.
func (c *Converter) ConvertBlock(ctx context.Context, block string) (string, error) {
	system := mainSystemPrompt
	if procSQLPattern.MatchString(block) {
		system = sqlSystemPrompt
	}
	prompt := fmt.Sprintf("Convert the following SAS code to Python:\n\n```sas\n%s\n```", block)
	out, err := c.client.CompleteWithSystem(ctx, system, prompt)
	if err != nil {
		return "", err
	}
	return stripCodeFences(out), nil
}

// stripCodeFences removes a markdown code fence wrapping the response,
// including a language tag on the opening fence. Responses without a
// well-formed fence pair come back trimmed but otherwise untouched.
func stripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	firstNewline := strings.Index(trimmed, "\n")
	if firstNewline == -1 {
		return trimmed
	}
	lastFence := strings.LastIndex(trimmed, "```")
	if lastFence <= firstNewline {
		return trimmed
	}
	return strings.TrimSpace(trimmed[firstNewline+1 : lastFence])
}

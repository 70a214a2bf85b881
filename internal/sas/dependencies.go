package sas

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// builtinDirectives are macro-language keywords that look like macro calls to
// the %name scan but are not user macros.
var builtinDirectives = map[string]struct{}{
	"if": {}, "then": {}, "else": {}, "do": {}, "end": {},
	"let": {}, "put": {}, "global": {}, "local": {}, "include": {},
}

var (
	macroCallPattern  = regexp.MustCompile(`%(\w+)`)
	includePattern    = regexp.MustCompile(`(?i)%include\s+['"]?(.*?)['"]?;`)
	libnameRefPattern = regexp.MustCompile(`(?i)libname\s+(\w+)\s+`)
	setSourcePattern  = regexp.MustCompile(`(?i)set\s+([\w.]+)`)
	fromSourcePattern = regexp.MustCompile(`(?i)from\s+([\w.]+)`)
	dataTargetPattern = regexp.MustCompile(`(?i)data\s+([\w.]+)`)
	outTargetPattern  = regexp.MustCompile(`(?i)out\s*=\s*([\w.]+)`)
)

// DatasetUsage lists datasets read and written by the source.
type DatasetUsage struct {
	Input  []string `json:"input"`
	Output []string `json:"output"`
}

// DependencyReport lists what a source file depends on: user macros it calls,
// files and libraries it references, and datasets it touches.
type DependencyReport struct {
	InternalDependencies []string     `json:"internalDependencies"`
	ExternalDependencies []string     `json:"externalDependencies"`
	DatasetUsage         DatasetUsage `json:"datasetUsage"`

	// Insights is present when model enrichment ran.
	Insights *DependencyInsights `json:"aiAnalysis,omitempty"`
}

// AnalyzeDependencies extracts macro-call, include, libname, and dataset
// references from source. Each list is deduplicated in first-seen order:
// external dependencies hold %include targets then libname names, dataset
// inputs hold set then from sources, outputs hold data then out= targets.
func AnalyzeDependencies(source string) DependencyReport {
	internal := []string{}
	seen := map[string]struct{}{}
	for _, m := range macroCallPattern.FindAllStringSubmatch(source, -1) {
		name := m[1]
		if _, builtin := builtinDirectives[strings.ToLower(name)]; builtin {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		internal = append(internal, name)
	}

	external := dedupeMatches(includePattern, source)
	external = append(external, dedupeMatches(libnameRefPattern, source)...)

	input := dedupeMatches(setSourcePattern, source)
	input = appendMissing(input, dedupeMatches(fromSourcePattern, source))
	output := dedupeMatches(dataTargetPattern, source)
	output = appendMissing(output, dedupeMatches(outTargetPattern, source))

	return DependencyReport{
		InternalDependencies: internal,
		ExternalDependencies: external,
		DatasetUsage:         DatasetUsage{Input: input, Output: output},
	}
}

func dedupeMatches(re *regexp.Regexp, source string) []string {
	out := []string{}
	seen := map[string]struct{}{}
	for _, m := range re.FindAllStringSubmatch(source, -1) {
		if _, dup := seen[m[1]]; dup {
			continue
		}
		seen[m[1]] = struct{}{}
		out = append(out, m[1])
	}
	return out
}

func appendMissing(dst, src []string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, s := range dst {
		seen[s] = struct{}{}
	}
	for _, s := range src {
		if _, dup := seen[s]; !dup {
			seen[s] = struct{}{}
			dst = append(dst, s)
		}
	}
	return dst
}

// Completer is the slice of an LLM client that enrichment needs.
type Completer interface {
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// DependencyInsights is the model-written layer on top of the lexical scan.
type DependencyInsights struct {
	CodePurpose             string        `json:"code_purpose,omitempty"`
	ExternalDependencies    []string      `json:"external_dependencies,omitempty"`
	DatasetUsage            *DatasetUsage `json:"dataset_usage,omitempty"`
	PotentialIssues         []string      `json:"potential_issues,omitempty"`
	OptimizationSuggestions []string      `json:"optimization_suggestions,omitempty"`

	// Raw carries the response verbatim when it was not valid JSON.
	Raw string `json:"raw,omitempty"`
}

// enrichmentCodeLimit bounds how much source rides along in the prompt.
const enrichmentCodeLimit = 8000

const enrichmentSystemPrompt = `You are an expert SAS code analyst. Analyze the given SAS code and respond with a JSON object containing exactly these fields:
- "code_purpose": one sentence describing what the code does
- "external_dependencies": array of external systems, files, or databases the code relies on
- "dataset_usage": object with "input" and "output" arrays of dataset names
- "potential_issues": array of correctness or robustness concerns
- "optimization_suggestions": array of concrete improvements

Respond with the JSON object only, no surrounding prose.`

// EnrichDependencies asks the model to deepen a lexical dependency scan with
// purpose, issues, and suggestions. The lexical findings ride along as
// context. Source beyond enrichmentCodeLimit characters is truncated with a
// notice. A response that is not valid JSON is preserved raw rather than
// treated as an error.
func EnrichDependencies(ctx context.Context, client Completer, source string, base DependencyReport) (*DependencyInsights, error) {
	if client == nil {
		return nil, fmt.Errorf("no completion client configured")
	}

	code := source
	if len(code) > enrichmentCodeLimit {
		code = code[:enrichmentCodeLimit] + "\n/* ...truncated... */"
	}
	findings := fmt.Sprintf(
		"Lexical analysis already found:\n- internal macro calls: %v\n- external dependencies: %v\n- datasets read: %v\n- datasets written: %v\n\nDeepen the analysis using these findings.",
		base.InternalDependencies, base.ExternalDependencies,
		base.DatasetUsage.Input, base.DatasetUsage.Output)
	prompt := fmt.Sprintf("%s\n\nCode:\n```sas\n%s\n```", findings, code)

	response, err := client.CompleteWithSystem(ctx, enrichmentSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("dependency enrichment failed: %w", err)
	}

	insights := &DependencyInsights{}
	if err := json.Unmarshal([]byte(response), insights); err != nil {
		return &DependencyInsights{Raw: response}, nil
	}
	return insights, nil
}

package sas

import (
	"regexp"
	"strings"
)

// ComplexityMetrics summarizes the structural complexity of one source file.
type ComplexityMetrics struct {
	TotalLines           int `json:"totalLines"`
	CodeLines            int `json:"codeLines"`
	CommentLines         int `json:"commentLines"`
	MacroCount           int `json:"macroCount"`
	ProcCount            int `json:"procCount"`
	DataStepCount        int `json:"dataStepCount"`
	IfCount              int `json:"ifCount"`
	DoLoopCount          int `json:"doLoopCount"`
	CyclomaticComplexity int `json:"cyclomaticComplexity"`
}

var (
	macroDefPattern   = regexp.MustCompile(`(?i)%macro\s+\w+`)
	procPattern       = regexp.MustCompile(`(?i)proc\s+\w+`)
	dataStepPattern   = regexp.MustCompile(`(?i)data\s+[\w.]+`)
	ifPattern         = regexp.MustCompile(`(?i)\bif\b`)
	doPattern         = regexp.MustCompile(`(?i)\bdo\b`)
	elsePattern       = regexp.MustCompile(`(?i)\belse\b`)
	whenPattern       = regexp.MustCompile(`(?i)\bwhen\b`)
	doWhilePattern    = regexp.MustCompile(`(?i)\bdo\s+while\b`)
	doUntilPattern    = regexp.MustCompile(`(?i)\bdo\s+until\b`)
	selectStmtPattern = regexp.MustCompile(`(?i)\bselect\b`)
)

// AnalyzeComplexity computes line, construct, and branching counts for
// source. Cyclomatic complexity is the simplified decision-points-plus-one
// form over if/else/when/do while/do until/select.
func AnalyzeComplexity(source string) ComplexityMetrics {
	lines := strings.Split(source, "\n")
	m := ComplexityMetrics{
		TotalLines:    len(lines),
		MacroCount:    len(macroDefPattern.FindAllString(source, -1)),
		ProcCount:     len(procPattern.FindAllString(source, -1)),
		DataStepCount: len(dataStepPattern.FindAllString(source, -1)),
		IfCount:       len(ifPattern.FindAllString(source, -1)),
		DoLoopCount:   len(doPattern.FindAllString(source, -1)),
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && !strings.HasPrefix(trimmed, "*") && !strings.HasPrefix(trimmed, "/*") {
			m.CodeLines++
		}
	}
	m.CommentLines = countCommentLines(lines)

	decisions := m.IfCount +
		len(elsePattern.FindAllString(source, -1)) +
		len(whenPattern.FindAllString(source, -1)) +
		len(doWhilePattern.FindAllString(source, -1)) +
		len(doUntilPattern.FindAllString(source, -1)) +
		len(selectStmtPattern.FindAllString(source, -1))
	m.CyclomaticComplexity = decisions + 1
	return m
}

// countCommentLines walks lines tracking block comments. Every line inside an
// open /* */ counts, as does any line starting a * or /* comment.
func countCommentLines(lines []string) int {
	count := 0
	inBlock := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if inBlock {
			count++
			if strings.Contains(line, "*/") {
				inBlock = false
			}
			continue
		}
		if strings.HasPrefix(trimmed, "*") || strings.HasPrefix(trimmed, "/*") {
			count++
			if strings.Contains(line, "/*") && !strings.Contains(line, "*/") {
				inBlock = true
			}
		}
	}
	return count
}

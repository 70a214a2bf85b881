package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"sasbridge/internal/task"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Width(16)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// summaryTable renders rows under a header with computed column widths.
type summaryTable struct {
	headers []string
	rows    [][]string
}

func (t *summaryTable) addRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *summaryTable) render() string {
	if len(t.rows) == 0 {
		return ""
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}
	for i := range widths {
		widths[i] += 2
	}

	var sb strings.Builder
	for i, h := range t.headers {
		sb.WriteString(headerStyle.Width(widths[i]).Render(h))
		if i < len(t.headers)-1 {
			sb.WriteString(mutedStyle.Render("|"))
		}
	}
	sb.WriteString("\n")

	total := len(t.headers) - 1
	for _, w := range widths {
		total += w
	}
	sb.WriteString(mutedStyle.Render(strings.Repeat("-", total)) + "\n")

	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				sb.WriteString(cellStyle.Width(widths[i]).Render(cell))
				if i < len(row)-1 {
					sb.WriteString(mutedStyle.Render("|"))
				}
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func metric(label, value string) string {
	return "  " + labelStyle.Render(label) + value + "\n"
}

// renderCodeSummary produces the human-readable report for one source.
func renderCodeSummary(name string, r task.CodeResult) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("SAS Analysis: "+name) + "\n\n")

	c := r.Complexity
	sb.WriteString(metric("Lines", fmt.Sprintf("%d total, %d code, %d comment", c.TotalLines, c.CodeLines, c.CommentLines)))
	sb.WriteString(metric("Macros", strconv.Itoa(c.MacroCount)))
	sb.WriteString(metric("Procs", strconv.Itoa(c.ProcCount)))
	sb.WriteString(metric("Data steps", strconv.Itoa(c.DataStepCount)))
	sb.WriteString(metric("Cyclomatic", strconv.Itoa(c.CyclomaticComplexity)))

	d := r.Dependencies
	sb.WriteString(metric("Macro calls", strings.Join(orNone(d.InternalDependencies), ", ")))
	sb.WriteString(metric("External refs", strings.Join(orNone(d.ExternalDependencies), ", ")))
	sb.WriteString(metric("Datasets", fmt.Sprintf("%d in, %d out", len(d.DatasetUsage.Input), len(d.DatasetUsage.Output))))
	sb.WriteString(metric("Chunks", fmt.Sprintf("%d macros, %d main-body", len(r.Chunking.Macros), len(r.Chunking.MainBodyChunks))))
	sb.WriteString("\n")

	if len(r.DataSources.Databases) == 0 {
		sb.WriteString(mutedStyle.Render("No database usage detected.") + "\n")
		return sb.String()
	}

	sb.WriteString(titleStyle.Render("Databases") + "\n")
	table := &summaryTable{headers: []string{"NAME", "KIND", "TABLES"}}
	for _, db := range r.DataSources.Databases {
		tables := make([]string, 0, len(db.OperationTables))
		for _, t := range db.OperationTables {
			ops := make([]string, 0, len(t.Operations))
			for _, op := range t.Operations {
				ops = append(ops, string(op))
			}
			tables = append(tables, fmt.Sprintf("%s [%s]", t.TableName, strings.Join(ops, " ")))
		}
		table.addRow(db.DatabaseName, db.DatabaseType, strings.Join(tables, ", "))
	}
	sb.WriteString(table.render())
	return sb.String()
}

// renderDirectorySummary produces the human-readable report for a directory.
func renderDirectorySummary(r task.DirectoryResult) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("SAS Analysis: "+r.Dir) + "\n\n")

	s := r.Summary
	sb.WriteString(metric("Files", strconv.Itoa(s.TotalFiles)))
	sb.WriteString(metric("Bytes", strconv.FormatInt(s.TotalBytes, 10)))
	sb.WriteString(metric("Macros", strconv.Itoa(s.TotalMacros)))
	sb.WriteString(metric("Databases", strconv.Itoa(s.TotalDatabases)))
	sb.WriteString("\n")

	if len(r.Files) == 0 {
		sb.WriteString(mutedStyle.Render("No SAS files found.") + "\n")
		return sb.String()
	}

	table := &summaryTable{headers: []string{"FILE", "LINES", "MACROS", "PROCS", "DATABASES"}}
	for _, fr := range r.Files {
		table.addRow(
			fr.Name,
			strconv.Itoa(fr.Complexity.TotalLines),
			strconv.Itoa(fr.Complexity.MacroCount),
			strconv.Itoa(fr.Complexity.ProcCount),
			strconv.Itoa(len(fr.DataSources.Databases)),
		)
	}
	sb.WriteString(table.render())
	return sb.String()
}

func orNone(items []string) []string {
	if len(items) == 0 {
		return []string{"none"}
	}
	return items
}

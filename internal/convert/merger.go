package convert

import (
	"regexp"
	"sort"
	"strings"

	"sasbridge/internal/sas"
)

// importLinePattern matches a whole Python import statement on its own
// line: either form of import with optional aliases and comma lists.
// Star imports and parenthesized continuations deliberately do not match;
// they stay in the body where they appeared.
var importLinePattern = regexp.MustCompile(`^(?:from\s+[\w.]+\s+import\s+(?:[\w.]+(?:\s+as\s+\w+)?(?:\s*,\s*[\w.]+(?:\s+as\s+\w+)?)*)|import\s+(?:[\w.]+(?:\s+as\s+\w+)?(?:\s*,\s*[\w.]+(?:\s+as\s+\w+)?)*))$`)

const (
	functionBanner = "# ===== Function Definitions ====="
	mainBanner     = "# ===== Main Code ====="
)

// extractImportLines returns every import statement found in code, trimmed,
// in first-seen order without duplicates.
func extractImportLines(code string) []string {
	seen := map[string]struct{}{}
	imports := []string{}
	for _, line := range strings.Split(code, "\n") {
		line = strings.TrimSpace(line)
		if !importLinePattern.MatchString(line) {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		imports = append(imports, line)
	}
	return imports
}

// stripImportLines removes import statements from code, leaving every other
// line in place.
func stripImportLines(code string) string {
	lines := []string{}
	for _, line := range strings.Split(code, "\n") {
		if importLinePattern.MatchString(strings.TrimSpace(line)) {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// mergeProgram combines converted functions and main-body blocks into one
// program: a single sorted import block hoisted to the top, then the
// function section, then the main section. Import lines are removed from
// the bodies; pieces left empty after stripping are dropped.
func mergeProgram(functions []ConvertedFunction, blocks []string) string {
	imports := map[string]struct{}{}
	collect := func(code string) string {
		for _, line := range extractImportLines(code) {
			imports[line] = struct{}{}
		}
		return strings.TrimSpace(stripImportLines(code))
	}

	funcBodies := []string{}
	for _, fn := range functions {
		if body := collect(fn.Code); body != "" {
			funcBodies = append(funcBodies, body)
		}
	}
	blockBodies := []string{}
	for _, block := range blocks {
		if body := collect(block); body != "" {
			blockBodies = append(blockBodies, body)
		}
	}

	sections := []string{}
	if len(imports) > 0 {
		sorted := make([]string, 0, len(imports))
		for line := range imports {
			sorted = append(sorted, line)
		}
		sort.Strings(sorted)
		sections = append(sections, strings.Join(sorted, "\n"))
	}
	if len(funcBodies) > 0 {
		sections = append(sections, functionBanner+"\n"+strings.Join(funcBodies, "\n\n"))
	}
	if len(blockBodies) > 0 {
		sections = append(sections, mainBanner+"\n"+strings.Join(blockBodies, "\n\n"))
	}
	return strings.Join(sections, "\n\n")
}

// DependencyComments renders the external dependencies of the analyzed
// source as a comment banner for the top of the generated program.
func DependencyComments(report sas.DependencyReport) string {
	if len(report.ExternalDependencies) == 0 {
		return "# No external dependencies detected"
	}
	lines := []string{
		"# ===== External Dependencies =====",
		"# The following SAS dependencies need manual handling:",
	}
	for _, dep := range report.ExternalDependencies {
		lines = append(lines, "# TODO: handle external dependency - "+dep)
	}
	lines = append(lines, "# =================================")
	return strings.Join(lines, "\n")
}

// pythonStdLibs are standard-library modules excluded from requirements.
var pythonStdLibs = map[string]struct{}{
	"os": {}, "sys": {}, "re": {}, "math": {}, "datetime": {}, "time": {},
	"json": {}, "csv": {}, "random": {}, "collections": {}, "itertools": {},
	"functools": {}, "typing": {}, "pathlib": {}, "io": {},
}

// requirementPins maps known packages to their pinned requirement lines.
// Packages not listed here are emitted bare.
var requirementPins = map[string]string{
	"pandas":       "pandas>=1.3.0",
	"numpy":        "numpy>=1.20.0",
	"matplotlib":   "matplotlib>=3.4.0",
	"sqlalchemy":   "sqlalchemy>=1.4.0",
	"pyodbc":       "pyodbc>=4.0.30",
	"pymssql":      "pymssql>=2.2.0",
	"psycopg2":     "psycopg2-binary>=2.9.0",
	"pymysql":      "pymysql>=1.0.2",
	"cx_Oracle":    "cx_Oracle>=8.3.0",
	"openpyxl":     "openpyxl>=3.0.7",
	"xlrd":         "xlrd>=2.0.1",
	"xlwt":         "xlwt>=1.3.0",
	"scipy":        "scipy>=1.7.0",
	"statsmodels":  "statsmodels>=0.12.0",
	"sklearn":      "scikit-learn>=1.0.0",
	"scikit-learn": "scikit-learn>=1.0.0",
	"teradatasql":  "teradatasql>=17.0.0",
}

// basePackage extracts the installable package behind an import statement:
// the from-package, or the first package of a plain import, cut at the first
// dot.
func basePackage(stmt string) string {
	var pkg string
	if strings.HasPrefix(stmt, "from ") {
		pkg = strings.TrimSpace(strings.Split(strings.TrimPrefix(stmt, "from "), " import")[0])
	} else {
		rest := strings.TrimPrefix(stmt, "import ")
		rest = strings.Split(rest, " as ")[0]
		rest = strings.Split(rest, ",")[0]
		pkg = strings.TrimSpace(rest)
	}
	if i := strings.Index(pkg, "."); i >= 0 {
		pkg = pkg[:i]
	}
	return pkg
}

// Requirements derives the pip requirements list from the import statements
// in the generated program. Standard-library modules are dropped, known
// packages get their pinned floors, and the result is sorted.
func Requirements(code string) []string {
	packages := map[string]struct{}{}
	for _, stmt := range extractImportLines(code) {
		if pkg := basePackage(stmt); pkg != "" {
			packages[pkg] = struct{}{}
		}
	}

	reqs := []string{}
	for pkg := range packages {
		if _, std := pythonStdLibs[pkg]; std {
			continue
		}
		if pin, ok := requirementPins[pkg]; ok {
			reqs = append(reqs, pin)
		} else {
			reqs = append(reqs, pkg)
		}
	}
	sort.Strings(reqs)
	return reqs
}

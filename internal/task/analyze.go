package task

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"sasbridge/internal/sas"
)

// sasGlobPattern matches the .sas extension case-insensitively at any depth.
const sasGlobPattern = `**/*.[sS][aA][sS]`

// CodePayload is the payload of an analyze-code task.
type CodePayload struct {
	Code     string `json:"code"`
	FileName string `json:"fileName,omitempty"`
}

// FilePayload is the payload of an analyze-file task.
type FilePayload struct {
	Path string `json:"path"`
}

// DirectoryPayload is the payload of an analyze-directory task.
type DirectoryPayload struct {
	Dir string `json:"dir"`
}

// CodeResult bundles every analysis over one piece of source.
type CodeResult struct {
	Chunking     sas.ChunkReport       `json:"chunking"`
	Complexity   sas.ComplexityMetrics `json:"complexity"`
	Dependencies sas.DependencyReport  `json:"dependencies"`
	DataSources  sas.DataSourceReport  `json:"dataSources"`
}

// FileResult is CodeResult plus the identity of the analyzed file.
type FileResult struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"sizeBytes"`
	CodeResult
}

// DirectoryResult holds per-file results plus directory-wide totals.
type DirectoryResult struct {
	Dir     string           `json:"dir"`
	Files   []FileResult     `json:"files"`
	Summary DirectorySummary `json:"summary"`
}

// DirectorySummary aggregates the per-file results.
type DirectorySummary struct {
	TotalFiles     int   `json:"totalFiles"`
	TotalBytes     int64 `json:"totalBytes"`
	TotalMacros    int   `json:"totalMacros"`
	TotalDatabases int   `json:"totalDatabases"`
}

// AnalyzeCode runs every analysis over one piece of source. Shared by the
// worker pool and the CLI's synchronous analyze path.
func AnalyzeCode(code, label string, maxTokenSize int) CodeResult {
	return CodeResult{
		Chunking:     sas.ChunkSource(code, maxTokenSize, label),
		Complexity:   sas.AnalyzeComplexity(code),
		Dependencies: sas.AnalyzeDependencies(code),
		DataSources:  sas.AnalyzeDataSources(code),
	}
}

// AnalyzeFile reads and analyzes one file.
func AnalyzeFile(path string, maxTokenSize int) (FileResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileResult{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	name := filepath.Base(path)
	return FileResult{
		Name:       name,
		Path:       path,
		SizeBytes:  int64(len(data)),
		CodeResult: AnalyzeCode(string(data), name, maxTokenSize),
	}, nil
}

// AnalyzeDirectory analyzes every .sas file under dir, fanning out across
// files with bounded concurrency. The first file error fails the whole
// analysis with the file named in the error.
func AnalyzeDirectory(ctx context.Context, dir string, maxTokenSize int) (DirectoryResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return DirectoryResult{}, fmt.Errorf("failed to stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return DirectoryResult{}, fmt.Errorf("%s is not a directory", dir)
	}

	var files []string
	walk := func(path string, d fs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		files = append(files, path)
		return nil
	}
	if err := doublestar.GlobWalk(os.DirFS(dir), sasGlobPattern, walk); err != nil {
		return DirectoryResult{}, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	sort.Strings(files)

	results := make([]FileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, rel := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fr, err := AnalyzeFile(filepath.Join(dir, rel), maxTokenSize)
			if err != nil {
				return err
			}
			results[i] = fr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return DirectoryResult{}, err
	}

	summary := DirectorySummary{TotalFiles: len(results)}
	for _, fr := range results {
		summary.TotalBytes += fr.SizeBytes
		summary.TotalMacros += fr.Complexity.MacroCount
		summary.TotalDatabases += len(fr.DataSources.Databases)
	}
	return DirectoryResult{Dir: dir, Files: results, Summary: summary}, nil
}

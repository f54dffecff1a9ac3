package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// OutputStem sanitizes the benchmark name for file naming: any rune outside
// letters, digits, '_' and '-' becomes '_'.
func OutputStem(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "ggufbench"
	}
	var b strings.Builder
	b.Grow(len(name))
	for _, ch := range name {
		if ch == '_' || ch == '-' || unicode.IsLetter(ch) || unicode.IsDigit(ch) {
			b.WriteRune(ch)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

type ReportPaths struct {
	JSON     string
	Markdown string
	HTML     string
}

// ResolveReportPaths derives the three output paths from the sanitized stem
// and a UTC timestamp, honoring per-format overrides. Relative paths resolve
// against the repo root.
func ResolveReportPaths(cfg *Config, repoRoot string, now time.Time, overrides ReportPaths) ReportPaths {
	outDir := cfg.OutputDir
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(repoRoot, outDir)
	}
	base := fmt.Sprintf("%v_%v", OutputStem(cfg.BenchmarkName), now.Format("20060102_150405"))

	resolve := func(override, ext string) string {
		path := override
		if path == "" {
			path = filepath.Join(outDir, base+ext)
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(repoRoot, path)
		}
		return path
	}
	return ReportPaths{
		JSON:     resolve(overrides.JSON, ".json"),
		Markdown: resolve(overrides.Markdown, ".md"),
		HTML:     resolve(overrides.HTML, ".html"),
	}
}

// WriteReports renders and writes all three artifacts, creating parent
// directories as needed.
func WriteReports(result *BenchmarkResult, metric MetricSpec, paths ReportPaths) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize benchmark result: %w", err)
	}
	files := []struct {
		path    string
		content []byte
	}{
		{paths.JSON, data},
		{paths.Markdown, []byte(GenerateMarkdownReport(result, metric))},
		{paths.HTML, []byte(GenerateHTMLReport(result, metric))},
	}
	for _, file := range files {
		if err := os.MkdirAll(filepath.Dir(file.path), 0755); err != nil {
			return fmt.Errorf("failed to create output directory %v: %w", filepath.Dir(file.path), err)
		}
		if err := os.WriteFile(file.path, file.content, 0644); err != nil {
			return fmt.Errorf("failed to write report %v: %w", file.path, err)
		}
	}
	return nil
}

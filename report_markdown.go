package main

import (
	"fmt"
	"strings"
	"time"
)

// GenerateMarkdownReport renders the human-readable summary: header block,
// per-backend table, and the ranked list in best-first order.
func GenerateMarkdownReport(result *BenchmarkResult, metric MetricSpec) string {
	bench := result.Benchmark
	var b strings.Builder

	fmt.Fprintf(&b, "# Benchmark Report: %v\n\n", bench.BenchmarkName)
	fmt.Fprintf(&b, "- Timestamp (UTC): `%v`\n", bench.TimestampUTC.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Hardware: `%v`\n", bench.Hardware)
	fmt.Fprintf(&b, "- Model: `%v`\n", bench.ModelName)
	fmt.Fprintf(&b, "- Model path: `%v`\n", bench.ModelPath)
	fmt.Fprintf(&b, "- Runs: `%v` measured + `%v` warmup\n", bench.Runs, bench.WarmupRuns)
	fmt.Fprintf(&b, "- Metric: `%v` (%v, %v is better)\n\n", metric.Key, metric.Unit, metric.Direction)

	b.WriteString("## Summary\n\n")
	b.WriteString("| Backend | Status | Median metric | Mean metric | Median wall (s) | Success runs | Failed runs |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|---:|\n")
	for i := range result.Results {
		entry := &result.Results[i]
		fmt.Fprintf(&b, "| %v | %v | %v | %v | %v | %v | %v |\n",
			entry.Name,
			entry.Status,
			FormatFloat(medianOf(entry.Summary.PrimaryMetric), 4),
			FormatFloat(meanOf(entry.Summary.PrimaryMetric), 4),
			FormatFloat(medianOf(entry.Summary.WallSeconds), 4),
			entry.Summary.SuccessRuns,
			entry.Summary.FailedRuns,
		)
	}

	b.WriteString("\n## Ranking\n\n")
	ranked := Ranked(result.Results, metric)
	for idx, entry := range ranked {
		fmt.Fprintf(&b, "%v. `%v`: `%.4f %v`\n", idx+1, entry.Name, entry.Summary.PrimaryMetric.Median, metric.Unit)
	}
	if len(ranked) == 0 {
		b.WriteString("- No successful backend metrics.\n")
	}

	b.WriteString("\n## Notes\n\n")
	b.WriteString("- `median` is recommended for headline comparisons.\n")
	return b.String()
}

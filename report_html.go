package main

import (
	"fmt"
	"html"
	"strings"
	"time"
)

type chartRow struct {
	Name   string
	Median float64
}

// buildSVGChart renders a horizontal bar chart of median metrics, bars scaled
// to the largest value. A non-positive maximum still renders every bar with a
// scale denominator of 1.
func buildSVGChart(rows []chartRow, metric MetricSpec) string {
	if len(rows) == 0 {
		return "<p>No successful benchmark runs to chart.</p>"
	}

	maxLabel := 0
	for _, row := range rows {
		maxLabel = max(maxLabel, len(row.Name))
	}
	leftPad := max(160, maxLabel*8+20)
	barArea := 560
	rowHeight := 36
	topPad, bottomPad := 30, 30
	width := leftPad + barArea + 140
	height := topPad + bottomPad + rowHeight*len(rows)

	maxValue := rows[0].Median
	for _, row := range rows {
		maxValue = max(maxValue, row.Median)
	}
	if maxValue <= 0 {
		maxValue = 1.0
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<svg width="%v" height="%v" viewBox="0 0 %v %v" xmlns="http://www.w3.org/2000/svg">`, width, height, width, height)
	b.WriteString("\n")
	b.WriteString(`<rect width="100%" height="100%" fill="#ffffff"/>`)
	b.WriteString("\n")
	fmt.Fprintf(&b, `<text x="%v" y="20" font-family="Segoe UI, sans-serif" font-size="14" fill="#111827">Median %v (%v)</text>`,
		leftPad, html.EscapeString(metric.Key), html.EscapeString(metric.Unit))
	b.WriteString("\n")

	for idx, row := range rows {
		y := topPad + idx*rowHeight
		barWidth := row.Median / maxValue * float64(barArea)
		if barWidth < 0 {
			barWidth = 0
		}
		fmt.Fprintf(&b, `<text x="%v" y="%v" text-anchor="end" font-family="Segoe UI, sans-serif" font-size="12" fill="#374151">%v</text>`,
			leftPad-10, y+20, html.EscapeString(row.Name))
		b.WriteString("\n")
		fmt.Fprintf(&b, `<rect x="%v" y="%v" width="%.2f" height="18" fill="#2563eb" rx="3" ry="3"/>`,
			leftPad, y+6, barWidth)
		b.WriteString("\n")
		fmt.Fprintf(&b, `<text x="%.2f" y="%v" font-family="Segoe UI, sans-serif" font-size="12" fill="#111827">%.4f</text>`,
			float64(leftPad)+barWidth+8, y+20, row.Median)
		b.WriteString("\n")
	}

	b.WriteString("</svg>")
	return b.String()
}

// GenerateHTMLReport renders the chart-bearing document. Every user-controlled
// string is escaped before embedding.
func GenerateHTMLReport(result *BenchmarkResult, metric MetricSpec) string {
	bench := result.Benchmark

	rows := make([]chartRow, 0, len(result.Results))
	for _, entry := range Ranked(result.Results, metric) {
		rows = append(rows, chartRow{Name: entry.Name, Median: entry.Summary.PrimaryMetric.Median})
	}
	chart := buildSVGChart(rows, metric)

	var tableRows strings.Builder
	for i := range result.Results {
		entry := &result.Results[i]
		fmt.Fprintf(&tableRows, "<tr><td>%v</td><td>%v</td><td>%v</td><td>%v</td><td>%v</td><td>%v</td><td>%v</td></tr>\n",
			html.EscapeString(entry.Name),
			html.EscapeString(string(entry.Status)),
			FormatFloat(medianOf(entry.Summary.PrimaryMetric), 4),
			FormatFloat(meanOf(entry.Summary.PrimaryMetric), 4),
			FormatFloat(medianOf(entry.Summary.WallSeconds), 4),
			entry.Summary.SuccessRuns,
			entry.Summary.FailedRuns,
		)
	}

	return fmt.Sprintf(`<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Benchmark Report - %v</title>
  <style>
    body {
      font-family: "Segoe UI", Tahoma, sans-serif;
      margin: 24px auto;
      max-width: 1080px;
      color: #111827;
      line-height: 1.5;
      padding: 0 12px;
    }
    h1, h2 { margin-bottom: 8px; }
    .meta { background: #f3f4f6; padding: 12px 14px; border-radius: 8px; }
    table { border-collapse: collapse; width: 100%%; margin-top: 12px; }
    th, td { border: 1px solid #e5e7eb; padding: 8px 10px; text-align: left; }
    th { background: #f9fafb; }
    .chart { margin-top: 20px; border: 1px solid #e5e7eb; border-radius: 8px; padding: 12px; }
    .small { color: #4b5563; font-size: 0.92rem; }
  </style>
</head>
<body>
  <h1>Benchmark Report: %v</h1>
  <div class="meta">
    <div><strong>Timestamp (UTC):</strong> %v</div>
    <div><strong>Hardware:</strong> %v</div>
    <div><strong>Model:</strong> %v</div>
    <div><strong>Model path:</strong> %v</div>
    <div><strong>Runs:</strong> %v measured + %v warmup</div>
    <div><strong>Metric:</strong> %v (%v, %v is better)</div>
  </div>

  <h2>Summary</h2>
  <table>
    <thead>
      <tr>
        <th>Backend</th>
        <th>Status</th>
        <th>Median metric</th>
        <th>Mean metric</th>
        <th>Median wall (s)</th>
        <th>Success runs</th>
        <th>Failed runs</th>
      </tr>
    </thead>
    <tbody>
      %v
    </tbody>
  </table>

  <div class="chart">
    <h2>Median Metric Chart</h2>
    %v
  </div>

  <p class="small">Generated by ggufbench</p>
</body>
</html>
`,
		html.EscapeString(bench.BenchmarkName),
		html.EscapeString(bench.BenchmarkName),
		html.EscapeString(bench.TimestampUTC.Format(time.RFC3339)),
		html.EscapeString(bench.Hardware),
		html.EscapeString(bench.ModelName),
		html.EscapeString(bench.ModelPath),
		bench.Runs,
		bench.WarmupRuns,
		html.EscapeString(metric.Key),
		html.EscapeString(metric.Unit),
		html.EscapeString(metric.Direction),
		tableRows.String(),
		chart,
	)
}

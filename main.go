package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgPath        string
	outputJSON     string
	outputMarkdown string
	outputHTML     string
	runsOverride   int
	warmupOverride int
	dryRun         bool
	backendFilter  string
)

var rootCmd = &cobra.Command{
	Use:   "ggufbench",
	Short: "Cross-framework inference benchmark harness",
	Long: `Runs the same inference workload against multiple command-line backends,
aggregates per-run metrics over repeated measured runs, ranks the backends and
writes JSON, Markdown and HTML reports.

Each backend is configured with a command template plus regexes for metric
extraction, so any CLI tool that prints its numbers to stdout/stderr can be
compared.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func StringEnv(key string, def string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	return value
}

func init() {
	rootCmd.Flags().StringVar(&cfgPath, "config", "", "path to benchmark config (YAML or JSON)")
	rootCmd.Flags().StringVar(&outputJSON, "output-json", "", "override output JSON file path")
	rootCmd.Flags().StringVar(&outputMarkdown, "output-md", "", "override output Markdown file path")
	rootCmd.Flags().StringVar(&outputHTML, "output-html", "", "override output HTML file path")
	rootCmd.Flags().IntVar(&runsOverride, "runs", -1, "override measured run count from config")
	rootCmd.Flags().IntVar(&warmupOverride, "warmup-runs", -1, "override warmup run count from config")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "render commands and exit without running benchmarks")
	rootCmd.Flags().StringVar(&backendFilter, "backend", "", "run only matching backends (comma-separated names or substrings)")
	_ = rootCmd.MarkFlagRequired("config")
}

func run() error {
	repoRoot, err := os.Getwd()
	if err != nil {
		return err
	}

	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		return err
	}
	if runsOverride >= 0 {
		cfg.Runs = runsOverride
	}
	if warmupOverride >= 0 {
		cfg.WarmupRuns = warmupOverride
	}
	cfg.EnsureHardware()

	vars := BuildVariables(cfg, repoRoot)
	filters := ParseBackendFilters(backendFilter)
	backends, err := ResolveBackends(cfg, vars, filters, repoRoot)
	if err != nil {
		return err
	}
	if len(backends) == 0 {
		requested := backendFilter
		if requested == "" {
			requested = "<none>"
		}
		return fmt.Errorf("no enabled backends matched --backend filter: %v", requested)
	}

	Logger.Infof("benchmark: %v", cfg.BenchmarkName)
	Logger.Infof("config: %v", cfgPath)
	Logger.Infof("metric: %v (%v, %v is better)", cfg.Metric.Key, cfg.Metric.Unit, cfg.Metric.Direction)
	Logger.Infof("runs: %v, warmup: %v, timeout: %vs", cfg.Runs, cfg.WarmupRuns, cfg.TimeoutSeconds)

	if dryRun {
		fmt.Println("\n[Dry run] Backend commands:")
		for _, backend := range backends {
			fmt.Printf("- %v: %v\n", backend.Name, backend.Command)
		}
		return nil
	}

	orchestrator := &Orchestrator{Config: cfg, Backends: backends, Executor: &ShellExecutor{}}
	result, err := orchestrator.Run(context.Background())
	if err != nil {
		return err
	}

	paths := ResolveReportPaths(cfg, repoRoot, result.Benchmark.TimestampUTC, ReportPaths{
		JSON:     outputJSON,
		Markdown: outputMarkdown,
		HTML:     outputHTML,
	})
	if err := WriteReports(result, cfg.Metric, paths); err != nil {
		return err
	}

	fmt.Println("\nBenchmark completed.")
	fmt.Printf("- JSON: %v\n", paths.JSON)
	fmt.Printf("- Markdown: %v\n", paths.Markdown)
	fmt.Printf("- HTML: %v\n", paths.HTML)
	if ranked := Ranked(result.Results, cfg.Metric); len(ranked) > 0 {
		fmt.Printf("- Best median %v: %.4f %v\n", cfg.Metric.Key, ranked[0].Summary.PrimaryMetric.Median, cfg.Metric.Unit)
	}

	if cfg.ResultsDB.URL == "" {
		cfg.ResultsDB.URL = StringEnv("GGUFBENCH_RESULTS_DB", "")
	}
	if cfg.ResultsDB.AuthToken == "" {
		cfg.ResultsDB.AuthToken = StringEnv("GGUFBENCH_AUTH_TOKEN", "")
	}
	if store := NewResultsStore(cfg.ResultsDB); store != nil {
		id := fmt.Sprintf("%v_%v", OutputStem(cfg.BenchmarkName), result.Benchmark.TimestampUTC.Format("20060102_150405"))
		if err := store.Upload(context.Background(), id, result); err != nil {
			Logger.Errorf("failed to upload results: %v", err)
		} else {
			Logger.Infof("uploaded results as %v", id)
		}
	}

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, ErrStrictHalt) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

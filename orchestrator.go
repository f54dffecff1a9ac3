package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

type BackendStatus string

const (
	StatusOK     BackendStatus = "ok"
	StatusFailed BackendStatus = "failed"
)

// ErrStrictHalt marks a measured-run failure or timeout under strict mode. It
// aborts the remaining schedule and maps to process exit code 2.
var ErrStrictHalt = errors.New("strict mode halt")

type Summary struct {
	PrimaryMetric *Stats            `json:"primary_metric,omitempty"`
	WallSeconds   *Stats            `json:"wall_seconds,omitempty"`
	SuccessRuns   int               `json:"success_runs"`
	FailedRuns    int               `json:"failed_runs"`
	AuxMetrics    map[string]*Stats `json:"aux_metrics,omitempty"`
	MedianVsBest  *float64          `json:"median_vs_best,omitempty"`
}

type BackendResult struct {
	Name    string        `json:"name"`
	Status  BackendStatus `json:"status"`
	Command string        `json:"command"`
	Cwd     string        `json:"cwd"`
	Runs    []RunRecord   `json:"runs"`
	Summary Summary       `json:"summary"`
}

type BenchmarkSnapshot struct {
	BenchmarkName  string     `json:"benchmark_name"`
	TimestampUTC   time.Time  `json:"timestamp_utc"`
	Hardware       string     `json:"hardware"`
	ModelName      string     `json:"model_name"`
	ModelPath      string     `json:"model_path"`
	Prompt         string     `json:"prompt"`
	MaxTokens      int        `json:"max_tokens"`
	Runs           int        `json:"runs"`
	WarmupRuns     int        `json:"warmup_runs"`
	TimeoutSeconds int        `json:"timeout_seconds"`
	Metric         MetricSpec `json:"metric"`
	Strict         bool       `json:"strict"`
}

// BenchmarkResult is the root artifact: every report is a pure function of
// this value plus the metric descriptor.
type BenchmarkResult struct {
	Benchmark BenchmarkSnapshot `json:"benchmark"`
	Results   []BackendResult   `json:"results"`
	Halted    bool              `json:"halted,omitempty"`
}

// ResolvedBackend is a backend with its command, environment and extraction
// rules fully expanded. Resolution happens before any process is spawned.
type ResolvedBackend struct {
	Name    string
	Command string
	Cwd     string
	Env     []string
	Primary []*regexp.Regexp
	Aux     map[string][]*regexp.Regexp
}

// ResolveBackends expands commands and environment values for the enabled,
// filter-selected backends. Any expansion or regex failure aborts resolution
// so no partial backend list is ever executed.
func ResolveBackends(cfg *Config, vars Variables, filters []string, repoRoot string) ([]ResolvedBackend, error) {
	fallback := cfg.FallbackToWallTime()
	resolved := make([]ResolvedBackend, 0, len(cfg.Backends))
	for i := range cfg.Backends {
		backend := &cfg.Backends[i]
		if !backend.IsEnabled() || !BackendSelected(backend.Name, filters) {
			continue
		}
		template := strings.TrimSpace(backend.Command)
		if template == "" {
			return nil, fmt.Errorf("backend '%v' is missing 'command'", backend.Name)
		}
		command, err := ExpandTemplate(template, vars)
		if err != nil {
			return nil, fmt.Errorf("backend '%v': %w", backend.Name, err)
		}

		cwd := backend.Cwd
		if cwd == "" {
			cwd = "."
		}
		if !filepath.IsAbs(cwd) {
			cwd = filepath.Join(repoRoot, cwd)
		}

		env := os.Environ()
		for key, raw := range backend.Env {
			value, err := ExpandTemplate(raw, vars)
			if err != nil {
				return nil, fmt.Errorf("backend '%v' env %v: %w", backend.Name, key, err)
			}
			env = append(env, key+"="+value)
		}

		primaryPatterns := []string(backend.MetricRegexes)
		if len(primaryPatterns) == 0 {
			primaryPatterns = []string(backend.Parse[cfg.Metric.Key])
		}
		if len(primaryPatterns) == 0 && !fallback {
			return nil, fmt.Errorf("backend '%v' has no metric regexes for '%v' and wall time fallback is disabled", backend.Name, cfg.Metric.Key)
		}
		primary, err := CompilePatterns(primaryPatterns)
		if err != nil {
			return nil, fmt.Errorf("backend '%v': %w", backend.Name, err)
		}

		aux := make(map[string][]*regexp.Regexp)
		for key, patterns := range backend.AuxMetrics {
			compiled, err := CompilePatterns(patterns)
			if err != nil {
				return nil, fmt.Errorf("backend '%v' aux metric %v: %w", backend.Name, key, err)
			}
			aux[key] = compiled
		}
		for key, patterns := range backend.Parse {
			if key == cfg.Metric.Key {
				continue
			}
			if _, ok := aux[key]; ok {
				continue
			}
			compiled, err := CompilePatterns(patterns)
			if err != nil {
				return nil, fmt.Errorf("backend '%v' aux metric %v: %w", backend.Name, key, err)
			}
			aux[key] = compiled
		}

		resolved = append(resolved, ResolvedBackend{
			Name:    backend.Name,
			Command: command,
			Cwd:     cwd,
			Env:     env,
			Primary: primary,
			Aux:     aux,
		})
	}
	return resolved, nil
}

// Orchestrator drives the schedule sequentially: backends one at a time, and
// within a backend warmup then measured iterations, in declared order. The
// executor is injectable so the schedule is testable without real processes.
type Orchestrator struct {
	Config   *Config
	Backends []ResolvedBackend
	Executor Executor
}

// Run executes the full schedule. On a strict-mode measured failure it returns
// the partial result assembled so far together with an error wrapping
// ErrStrictHalt. A strict-mode warmup timeout escalates before any record is
// appended and yields no result at all.
func (o *Orchestrator) Run(ctx context.Context) (*BenchmarkResult, error) {
	results := make([]BackendResult, 0, len(o.Backends))
	var haltErr error

	for i := range o.Backends {
		backend := &o.Backends[i]
		Logger.Infof("benchmarking backend %v", backend.Name)
		Logger.Infof("command: %v", backend.Command)
		Logger.Infof("cwd: %v", backend.Cwd)

		result, err := o.runBackend(ctx, backend)
		if result != nil {
			results = append(results, *result)
		}
		if err != nil {
			if !errors.Is(err, ErrStrictHalt) {
				return nil, err
			}
			haltErr = err
			break
		}
	}

	result := &BenchmarkResult{
		Benchmark: o.snapshot(time.Now().UTC()),
		Results:   results,
		Halted:    haltErr != nil,
	}
	RankResults(result.Results, o.Config.Metric)
	return result, haltErr
}

func (o *Orchestrator) runBackend(ctx context.Context, backend *ResolvedBackend) (*BackendResult, error) {
	req := RunRequest{
		Backend:            backend.Name,
		Command:            backend.Command,
		Cwd:                backend.Cwd,
		Env:                backend.Env,
		Timeout:            time.Duration(o.Config.TimeoutSeconds) * time.Second,
		PrimaryRules:       backend.Primary,
		AuxRules:           backend.Aux,
		FallbackToWallTime: o.Config.FallbackToWallTime(),
	}
	strict := o.Config.IsStrict()

	for i := 1; i <= o.Config.WarmupRuns; i++ {
		Logger.Infof("warmup %v/%v", i, o.Config.WarmupRuns)
		if _, err := o.Executor.Execute(ctx, req); err != nil {
			var timeoutErr *TimeoutError
			if !errors.As(err, &timeoutErr) {
				return nil, err
			}
			if strict {
				return nil, fmt.Errorf("backend '%v' warmup %v: %w", backend.Name, i, err)
			}
			Logger.Warnf("backend '%v' warmup %v timed out, continuing because strict=false", backend.Name, i)
		}
	}

	runs := make([]RunRecord, 0, o.Config.Runs)
	var metrics, walls []float64
	aux := make(map[string][]float64)
	failed := 0

	for i := 1; i <= o.Config.Runs; i++ {
		Logger.Infof("run %v/%v", i, o.Config.Runs)
		record, err := o.Executor.Execute(ctx, req)
		if err != nil {
			var timeoutErr *TimeoutError
			if !errors.As(err, &timeoutErr) {
				return nil, err
			}
			failed++
			runs = append(runs, RunRecord{
				RunIndex: i,
				Error:    fmt.Sprintf("timeout after %vs", o.Config.TimeoutSeconds),
			})
			if strict {
				partial := finishBackend(backend, runs, metrics, walls, aux, failed)
				return partial, fmt.Errorf("backend '%v' run %v timed out after %vs: %w", backend.Name, i, o.Config.TimeoutSeconds, ErrStrictHalt)
			}
			continue
		}

		record.RunIndex = i
		runs = append(runs, record)
		if record.OK {
			metrics = append(metrics, *record.PrimaryMetric)
			walls = append(walls, record.WallSeconds)
			for key, value := range record.AuxMetrics {
				aux[key] = append(aux[key], value)
			}
			continue
		}
		failed++
		if strict {
			partial := finishBackend(backend, runs, metrics, walls, aux, failed)
			return partial, fmt.Errorf("backend '%v' run %v failed (exit=%v, metric=%v): %w", backend.Name, i, record.ExitCode, FormatFloat(record.PrimaryMetric, 4), ErrStrictHalt)
		}
	}

	return finishBackend(backend, runs, metrics, walls, aux, failed), nil
}

func finishBackend(backend *ResolvedBackend, runs []RunRecord, metrics, walls []float64, aux map[string][]float64, failed int) *BackendResult {
	summary := Summary{
		PrimaryMetric: Summarize(metrics),
		WallSeconds:   Summarize(walls),
		SuccessRuns:   len(metrics),
		FailedRuns:    failed,
	}
	if len(aux) > 0 {
		summary.AuxMetrics = make(map[string]*Stats, len(aux))
		for key, values := range aux {
			summary.AuxMetrics[key] = Summarize(values)
		}
	}
	status := StatusFailed
	if len(metrics) > 0 {
		status = StatusOK
	}
	return &BackendResult{
		Name:    backend.Name,
		Status:  status,
		Command: backend.Command,
		Cwd:     filepath.ToSlash(backend.Cwd),
		Runs:    runs,
		Summary: summary,
	}
}

func (o *Orchestrator) snapshot(now time.Time) BenchmarkSnapshot {
	cfg := o.Config
	return BenchmarkSnapshot{
		BenchmarkName:  cfg.BenchmarkName,
		TimestampUTC:   now,
		Hardware:       cfg.Hardware,
		ModelName:      cfg.Model.Name,
		ModelPath:      cfg.Model.Path,
		Prompt:         cfg.Prompt,
		MaxTokens:      cfg.MaxTokens,
		Runs:           cfg.Runs,
		WarmupRuns:     cfg.WarmupRuns,
		TimeoutSeconds: cfg.TimeoutSeconds,
		Metric:         cfg.Metric,
		Strict:         cfg.IsStrict(),
	}
}

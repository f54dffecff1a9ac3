package main

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type scriptedResponse struct {
	record RunRecord
	err    error
}

// scriptedExecutor returns canned responses per backend, in order.
type scriptedExecutor struct {
	responses map[string][]scriptedResponse
	calls     map[string]int
}

func newScriptedExecutor() *scriptedExecutor {
	return &scriptedExecutor{
		responses: make(map[string][]scriptedResponse),
		calls:     make(map[string]int),
	}
}

func (f *scriptedExecutor) push(backend string, record RunRecord, err error) {
	f.responses[backend] = append(f.responses[backend], scriptedResponse{record: record, err: err})
}

func (f *scriptedExecutor) Execute(_ context.Context, req RunRequest) (RunRecord, error) {
	f.calls[req.Backend]++
	queue := f.responses[req.Backend]
	if len(queue) == 0 {
		return RunRecord{}, fmt.Errorf("no scripted response for backend '%v'", req.Backend)
	}
	f.responses[req.Backend] = queue[1:]
	return queue[0].record, queue[0].err
}

func metricPtr(v float64) *float64 { return &v }

func successRecord(value float64) RunRecord {
	return RunRecord{OK: true, WallSeconds: 0.5, PrimaryMetric: metricPtr(value)}
}

func failureRecord(exitCode int) RunRecord {
	return RunRecord{OK: false, ExitCode: exitCode, WallSeconds: 0.1}
}

func testOrchestrator(strict bool, runs, warmup int, executor Executor, names ...string) *Orchestrator {
	cfg := DefaultConfig()
	cfg.Strict = &strict
	cfg.Runs = runs
	cfg.WarmupRuns = warmup
	cfg.TimeoutSeconds = 5
	backends := make([]ResolvedBackend, 0, len(names))
	for _, name := range names {
		backends = append(backends, ResolvedBackend{Name: name, Command: "run " + name, Cwd: "/tmp"})
	}
	return &Orchestrator{Config: cfg, Backends: backends, Executor: executor}
}

func TestStrictHaltOnFailedRun(t *testing.T) {
	executor := newScriptedExecutor()
	for i := 0; i < 3; i++ {
		executor.push("one", successRecord(10), nil)
	}
	executor.push("two", failureRecord(1), nil)

	orchestrator := testOrchestrator(true, 3, 0, executor, "one", "two", "three")
	result, err := orchestrator.Run(context.Background())

	require.ErrorIs(t, err, ErrStrictHalt)
	require.NotNil(t, result)
	require.True(t, result.Halted)
	require.Len(t, result.Results, 2)
	require.Equal(t, "one", result.Results[0].Name)
	require.Equal(t, StatusOK, result.Results[0].Status)
	require.Len(t, result.Results[0].Runs, 3)
	require.Equal(t, "two", result.Results[1].Name)
	require.Equal(t, StatusFailed, result.Results[1].Status)
	require.Len(t, result.Results[1].Runs, 1)
	require.Equal(t, 0, executor.calls["three"])
}

func TestLenientContinuesPastFailures(t *testing.T) {
	executor := newScriptedExecutor()
	for _, name := range []string{"one", "three"} {
		for i := 0; i < 3; i++ {
			executor.push(name, successRecord(10), nil)
		}
	}
	executor.push("two", failureRecord(2), nil)
	executor.push("two", successRecord(20), nil)
	executor.push("two", successRecord(30), nil)

	orchestrator := testOrchestrator(false, 3, 0, executor, "one", "two", "three")
	result, err := orchestrator.Run(context.Background())

	require.Nil(t, err)
	require.False(t, result.Halted)
	require.Len(t, result.Results, 3)
	two := result.Results[1]
	require.Equal(t, StatusOK, two.Status)
	require.Equal(t, 2, two.Summary.SuccessRuns)
	require.Equal(t, 1, two.Summary.FailedRuns)
	require.Len(t, two.Runs, 3)
	require.InDelta(t, 25.0, two.Summary.PrimaryMetric.Median, 1e-9)
}

func TestStrictWarmupTimeoutEscalatesWithoutRecords(t *testing.T) {
	executor := newScriptedExecutor()
	executor.push("one", RunRecord{}, &TimeoutError{Backend: "one", Timeout: 5 * time.Second})

	orchestrator := testOrchestrator(true, 2, 1, executor, "one")
	result, err := orchestrator.Run(context.Background())

	require.NotNil(t, err)
	require.NotErrorIs(t, err, ErrStrictHalt)
	require.Nil(t, result)
}

func TestLenientWarmupTimeoutContinues(t *testing.T) {
	executor := newScriptedExecutor()
	executor.push("one", RunRecord{}, &TimeoutError{Backend: "one", Timeout: 5 * time.Second})
	executor.push("one", successRecord(10), nil)

	orchestrator := testOrchestrator(false, 1, 1, executor, "one")
	result, err := orchestrator.Run(context.Background())

	require.Nil(t, err)
	require.Len(t, result.Results, 1)
	require.Equal(t, 1, result.Results[0].Summary.SuccessRuns)
}

func TestWarmupFailedRunIsDiscarded(t *testing.T) {
	executor := newScriptedExecutor()
	// exit-code failures during warmup never escalate, even under strict mode
	executor.push("one", failureRecord(1), nil)
	executor.push("one", successRecord(10), nil)

	orchestrator := testOrchestrator(true, 1, 1, executor, "one")
	result, err := orchestrator.Run(context.Background())

	require.Nil(t, err)
	require.Equal(t, 1, result.Results[0].Summary.SuccessRuns)
	require.Equal(t, 0, result.Results[0].Summary.FailedRuns)
}

func TestMeasuredTimeoutLenient(t *testing.T) {
	executor := newScriptedExecutor()
	executor.push("one", RunRecord{}, &TimeoutError{Backend: "one", Timeout: 5 * time.Second})
	executor.push("one", successRecord(10), nil)

	orchestrator := testOrchestrator(false, 2, 0, executor, "one")
	result, err := orchestrator.Run(context.Background())

	require.Nil(t, err)
	entry := result.Results[0]
	require.Len(t, entry.Runs, 2)
	require.False(t, entry.Runs[0].OK)
	require.Contains(t, entry.Runs[0].Error, "timeout after 5s")
	require.Equal(t, 1, entry.Summary.FailedRuns)
	require.Equal(t, 1, entry.Summary.SuccessRuns)
	require.Equal(t, StatusOK, entry.Status)
}

func TestMeasuredTimeoutStrictHalts(t *testing.T) {
	executor := newScriptedExecutor()
	executor.push("one", RunRecord{}, &TimeoutError{Backend: "one", Timeout: 5 * time.Second})

	orchestrator := testOrchestrator(true, 2, 0, executor, "one", "two")
	result, err := orchestrator.Run(context.Background())

	require.ErrorIs(t, err, ErrStrictHalt)
	require.True(t, result.Halted)
	require.Len(t, result.Results, 1)
	require.Len(t, result.Results[0].Runs, 1)
	require.Contains(t, result.Results[0].Runs[0].Error, "timeout after 5s")
	require.Equal(t, 0, executor.calls["two"])
}

func TestRunAttachesRatios(t *testing.T) {
	executor := newScriptedExecutor()
	executor.push("slow", successRecord(50), nil)
	executor.push("fast", successRecord(100), nil)

	orchestrator := testOrchestrator(false, 1, 0, executor, "slow", "fast")
	result, err := orchestrator.Run(context.Background())

	require.Nil(t, err)
	require.InDelta(t, 0.5, *result.Results[0].Summary.MedianVsBest, 1e-9)
	require.InDelta(t, 1.0, *result.Results[1].Summary.MedianVsBest, 1e-9)
	require.False(t, result.Benchmark.TimestampUTC.IsZero())
}

func resolveConfig() *Config {
	cfg := DefaultConfig()
	cfg.Model.Path = "/models/tiny.gguf"
	cfg.Backends = []BackendSpec{
		{Name: "llama_cpp", Command: "run --model {model_path} --tokens {max_tokens}", MetricRegexes: RegexList{`tok:(\d+)`}},
		{Name: "pytorch", Command: "py --model {model_path}", MetricRegexes: RegexList{`tok:(\d+)`}},
		{Name: "mock", Command: "mock", MetricRegexes: RegexList{`tok:(\d+)`}},
	}
	return cfg
}

func TestResolveBackendsFilter(t *testing.T) {
	cfg := resolveConfig()
	vars := BuildVariables(cfg, "/repo")

	resolved, err := ResolveBackends(cfg, vars, ParseBackendFilters("llama"), "/repo")
	require.Nil(t, err)
	require.Len(t, resolved, 1)
	require.Equal(t, "llama_cpp", resolved[0].Name)
	require.Equal(t, "run --model /models/tiny.gguf --tokens 256", resolved[0].Command)
}

func TestResolveBackendsSkipsDisabled(t *testing.T) {
	cfg := resolveConfig()
	disabled := false
	cfg.Backends[1].Enabled = &disabled
	vars := BuildVariables(cfg, "/repo")

	resolved, err := ResolveBackends(cfg, vars, nil, "/repo")
	require.Nil(t, err)
	require.Len(t, resolved, 2)
	require.Equal(t, "llama_cpp", resolved[0].Name)
	require.Equal(t, "mock", resolved[1].Name)
}

func TestResolveBackendsMissingVariable(t *testing.T) {
	cfg := resolveConfig()
	cfg.Backends[0].Command = "run {undefined_thing}"
	vars := BuildVariables(cfg, "/repo")

	_, err := ResolveBackends(cfg, vars, nil, "/repo")
	require.ErrorContains(t, err, "undefined_thing")
}

func TestResolveBackendsEnvExpansion(t *testing.T) {
	cfg := resolveConfig()
	cfg.Backends = cfg.Backends[:1]
	cfg.Backends[0].Env = map[string]string{"N_TOKENS": "{max_tokens}"}
	vars := BuildVariables(cfg, "/repo")

	resolved, err := ResolveBackends(cfg, vars, nil, "/repo")
	require.Nil(t, err)
	require.Contains(t, resolved[0].Env, "N_TOKENS=256")

	cfg.Backends[0].Env = map[string]string{"N_TOKENS": "{nope}"}
	_, err = ResolveBackends(cfg, vars, nil, "/repo")
	require.ErrorContains(t, err, "nope")
}

func TestResolveBackendsRequiresRegexOrFallback(t *testing.T) {
	cfg := resolveConfig()
	cfg.Backends = cfg.Backends[:1]
	cfg.Backends[0].MetricRegexes = nil
	vars := BuildVariables(cfg, "/repo")

	_, err := ResolveBackends(cfg, vars, nil, "/repo")
	require.ErrorContains(t, err, "wall time fallback is disabled")

	enabled := true
	cfg.MetricFallbackToWallTime = &enabled
	resolved, err := ResolveBackends(cfg, vars, nil, "/repo")
	require.Nil(t, err)
	require.Empty(t, resolved[0].Primary)
}

func TestResolveBackendsParseSection(t *testing.T) {
	cfg := resolveConfig()
	cfg.Backends = cfg.Backends[:1]
	cfg.Backends[0].MetricRegexes = nil
	cfg.Backends[0].Parse = map[string]RegexList{
		"tokens_per_second": {`tok:(\d+)`},
		"load_ms":           {`load:(\d+)`},
	}
	cfg.Backends[0].AuxMetrics = map[string]RegexList{
		"mem_mb": {`mem:(\d+)`},
	}
	vars := BuildVariables(cfg, "/repo")

	resolved, err := ResolveBackends(cfg, vars, nil, "/repo")
	require.Nil(t, err)
	require.Len(t, resolved[0].Primary, 1)
	require.Len(t, resolved[0].Aux, 2)
	require.Contains(t, resolved[0].Aux, "load_ms")
	require.Contains(t, resolved[0].Aux, "mem_mb")
}

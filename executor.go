package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"time"
	"unicode/utf8"
)

const outputTailLimit = 1200

// RunRecord is one execution attempt, immutable once recorded. On timeout the
// orchestrator records only the run index and a textual error.
type RunRecord struct {
	RunIndex      int                `json:"run_index"`
	OK            bool               `json:"ok"`
	ExitCode      int                `json:"exit_code"`
	WallSeconds   float64            `json:"wall_seconds"`
	PrimaryMetric *float64           `json:"primary_metric,omitempty"`
	AuxMetrics    map[string]float64 `json:"aux_metrics,omitempty"`
	StdoutTail    string             `json:"stdout_tail,omitempty"`
	StderrTail    string             `json:"stderr_tail,omitempty"`
	Error         string             `json:"error,omitempty"`
}

// TimeoutError is a distinct signal, not a failed RunRecord: the orchestrator
// applies strict/lenient policy differently for timeouts.
type TimeoutError struct {
	Backend string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("backend '%v' timed out after %v", e.Backend, e.Timeout)
}

// RunRequest is the fully resolved execution plan for one backend command.
type RunRequest struct {
	Backend            string
	Command            string
	Cwd                string
	Env                []string
	Timeout            time.Duration
	PrimaryRules       []*regexp.Regexp
	AuxRules           map[string][]*regexp.Regexp
	FallbackToWallTime bool
}

type Executor interface {
	Execute(ctx context.Context, req RunRequest) (RunRecord, error)
}

// ShellExecutor runs the command through a shell so that templates may rely on
// pipes and redirection. Commands come from operator-controlled configuration.
type ShellExecutor struct{}

func (e *ShellExecutor) Execute(ctx context.Context, req RunRequest) (RunRecord, error) {
	runCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", req.Command)
	cmd.Dir = req.Cwd
	cmd.Env = req.Env
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		return RunRecord{}, &TimeoutError{Backend: req.Backend, Timeout: req.Timeout}
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return RunRecord{}, fmt.Errorf("failed to run backend '%v': %w", req.Backend, err)
		}
		exitCode = exitErr.ExitCode()
	}

	combined := stdout.String() + "\n" + stderr.String()
	primary := ExtractMetric(combined, req.PrimaryRules)
	wall := elapsed.Seconds()
	if primary == nil && req.FallbackToWallTime {
		primary = &wall
	}

	return RunRecord{
		OK:            exitCode == 0 && primary != nil,
		ExitCode:      exitCode,
		WallSeconds:   wall,
		PrimaryMetric: primary,
		AuxMetrics:    ExtractAuxMetrics(combined, req.AuxRules),
		StdoutTail:    tail(stdout.String(), outputTailLimit),
		StderrTail:    tail(stderr.String(), outputTailLimit),
	}, nil
}

// tail keeps the last limit bytes, advancing past a split multi-byte rune so
// the result stays valid UTF-8.
func tail(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := len(text) - limit
	for cut < len(text) && !utf8.RuneStart(text[cut]) {
		cut++
	}
	return text[cut:]
}

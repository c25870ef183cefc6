// Copyright 2026 The Codespace Authors
// SPDX-License-Identifier: Apache-2.0

// Package runner executes session code through a sandbox.
//
// An execution is a short-lived, self-contained affair: a private
// working directory is created, the source text is written into it,
// the language's toolchain runs (a compile step first, for compiled
// languages) inside the sandbox with a deadline, combined output is
// captured up to a byte limit, and the working directory is removed
// again on every path out. Nothing persists between executions and
// concurrent executions never share state.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/codespace-foundation/codespace/lib/clock"
	"github.com/codespace-foundation/codespace/lib/language"
	"github.com/codespace-foundation/codespace/sandbox"
)

// Sentinel errors. These are pipeline failures, distinct from the
// user-facing outcomes in Result: a compile error in submitted code is
// a successful execution with OutcomeCompileFailed, not an error.
var (
	// ErrUnsupportedLanguage means the language has no toolchain.
	// Nothing is written to disk and no process is spawned.
	ErrUnsupportedLanguage = errors.New("runner: language has no toolchain")

	// ErrToolchainUnavailable means the toolchain binary (or the
	// sandbox itself) is missing on this host.
	ErrToolchainUnavailable = errors.New("runner: toolchain unavailable")
)

// Outcome classifies a completed execution.
type Outcome int

const (
	// OutcomeSuccess means the run step exited zero.
	OutcomeSuccess Outcome = iota

	// OutcomeCompileFailed means the compile step exited nonzero. The
	// result output is the compiler diagnostics.
	OutcomeCompileFailed

	// OutcomeRuntimeFailed means the run step exited nonzero.
	OutcomeRuntimeFailed

	// OutcomeTimeout means the deadline elapsed and the process group
	// was killed. The result output is whatever was captured first.
	OutcomeTimeout
)

// String returns the outcome name for logs.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeCompileFailed:
		return "compile_failed"
	case OutcomeRuntimeFailed:
		return "runtime_failed"
	case OutcomeTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// NoOutputMarker replaces an empty output on success, so the client
// always has something to display.
const NoOutputMarker = "(no output)"

// TruncationMarker is appended to output that hit the capture limit.
const TruncationMarker = "\n[output truncated]"

// Result is the user-facing product of an execution.
type Result struct {
	Outcome   Outcome
	Output    string
	Truncated bool
	Duration  time.Duration
}

// Config holds the parameters for creating a Runner.
type Config struct {
	// Sandbox wraps every toolchain invocation. Required.
	Sandbox *sandbox.Sandbox

	// BaseDir is where per-execution working directories are created.
	// Required; created if absent.
	BaseDir string

	// Timeout is the wall-clock budget for one execution, covering the
	// compile and run steps together. Defaults to 10s.
	Timeout time.Duration

	// OutputLimit caps the captured combined output in bytes.
	// Defaults to 1 MiB.
	OutputLimit int

	// Clock defaults to the real clock.
	Clock clock.Clock

	// Logger defaults to discard.
	Logger *slog.Logger
}

const (
	defaultTimeout     = 10 * time.Second
	defaultOutputLimit = 1 << 20
)

// Runner executes source text for registered languages. Safe for
// concurrent use.
type Runner struct {
	sandbox     *sandbox.Sandbox
	baseDir     string
	timeout     time.Duration
	outputLimit int
	clock       clock.Clock
	logger      *slog.Logger
}

// New creates a Runner and its base working directory.
func New(cfg Config) (*Runner, error) {
	if cfg.Sandbox == nil {
		return nil, fmt.Errorf("runner: sandbox is required")
	}
	if cfg.BaseDir == "" {
		return nil, fmt.Errorf("runner: base directory is required")
	}
	if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("runner: creating base directory: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.OutputLimit <= 0 {
		cfg.OutputLimit = defaultOutputLimit
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{
		sandbox:     cfg.Sandbox,
		baseDir:     cfg.BaseDir,
		timeout:     cfg.Timeout,
		outputLimit: cfg.OutputLimit,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
	}, nil
}

// Execute runs source as the given language and returns the captured
// result. The returned error covers pipeline failures only; failures
// of the submitted code itself are reported through Result.Outcome.
func (r *Runner) Execute(ctx context.Context, lang language.Language, source string) (Result, error) {
	tc := lang.Toolchain
	if tc.Kind == language.Unsupported {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang.ID)
	}
	if err := r.sandbox.Available(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrToolchainUnavailable, err)
	}

	workDir, err := os.MkdirTemp(r.baseDir, "exec-")
	if err != nil {
		return Result{}, fmt.Errorf("runner: creating working directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	sourceName := tc.SourceName
	if sourceName == "" {
		sourceName = "main." + lang.Extension
	}
	if err := os.WriteFile(filepath.Join(workDir, sourceName), []byte(source), 0o644); err != nil {
		return Result{}, fmt.Errorf("runner: writing source: %w", err)
	}

	guestDir := r.sandbox.GuestPath(workDir)
	vars := map[string]string{
		language.PlaceholderSource: guestDir + "/" + sourceName,
		language.PlaceholderDir:    guestDir,
	}
	if tc.Artifact != "" {
		vars[language.PlaceholderArtifact] = guestDir + "/" + tc.Artifact
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	start := r.clock.Now()

	capture := &cappedWriter{limit: r.outputLimit}

	// interrupted reports how a dead context ends the execution: the
	// run budget elapsing is a user-facing timeout outcome, while
	// cancellation of the caller's context (service shutdown, client
	// gone) is a pipeline error, not a verdict on the submitted code.
	interrupted := func() (Result, error, bool) {
		if runCtx.Err() == nil {
			return Result{}, nil, false
		}
		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("runner: execution cancelled: %w", ctx.Err()), true
		}
		return r.result(OutcomeTimeout, capture, start, lang), nil, true
	}

	if tc.Kind == language.Compiled {
		exitErr, err := r.runStep(runCtx, workDir, language.ExpandArgv(tc.Compile, vars), capture)
		if err != nil {
			return Result{}, err
		}
		if res, err, done := interrupted(); done {
			return res, err
		}
		if exitErr != nil {
			return r.result(OutcomeCompileFailed, capture, start, lang), nil
		}
	}

	exitErr, err := r.runStep(runCtx, workDir, language.ExpandArgv(tc.Run, vars), capture)
	if err != nil {
		return Result{}, err
	}
	if res, err, done := interrupted(); done {
		return res, err
	}
	if exitErr != nil {
		return r.result(OutcomeRuntimeFailed, capture, start, lang), nil
	}
	return r.result(OutcomeSuccess, capture, start, lang), nil
}

// DryRun returns the host command lines Execute would spawn for the
// language, without writing anything to disk or starting a process.
// Compiled languages yield two lines, the compile step first. The
// working directory in the output is a placeholder; Execute creates a
// fresh one per call.
func (r *Runner) DryRun(lang language.Language) ([][]string, error) {
	tc := lang.Toolchain
	if tc.Kind == language.Unsupported {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang.ID)
	}

	workDir := filepath.Join(r.baseDir, "exec-XXXXXXXX")
	sourceName := tc.SourceName
	if sourceName == "" {
		sourceName = "main." + lang.Extension
	}
	guestDir := r.sandbox.GuestPath(workDir)
	vars := map[string]string{
		language.PlaceholderSource: guestDir + "/" + sourceName,
		language.PlaceholderDir:    guestDir,
	}
	if tc.Artifact != "" {
		vars[language.PlaceholderArtifact] = guestDir + "/" + tc.Artifact
	}

	var lines [][]string
	if tc.Kind == language.Compiled {
		line, err := r.sandbox.DryRun(workDir, language.ExpandArgv(tc.Compile, vars))
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	line, err := r.sandbox.DryRun(workDir, language.ExpandArgv(tc.Run, vars))
	if err != nil {
		return nil, err
	}
	return append(lines, line), nil
}

// runStep runs one toolchain invocation. The first return value is the
// process's nonzero-exit error, the second a pipeline failure.
func (r *Runner) runStep(ctx context.Context, workDir string, argv []string, capture *cappedWriter) (exitErr, err error) {
	cmd, err := r.sandbox.Command(ctx, workDir, argv)
	if err != nil {
		return nil, err
	}
	cmd.Stdout = capture
	cmd.Stderr = capture
	// On deadline, kill the whole process group: interpreters and
	// build tools fork, and killing only the leader leaves orphans
	// holding the pipe open.
	cmd.Cancel = func() error {
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
	cmd.WaitDelay = 2 * time.Second

	if err := cmd.Run(); err != nil {
		var exit *exec.ExitError
		if errors.As(err, &exit) || ctx.Err() != nil {
			return err, nil
		}
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %v", ErrToolchainUnavailable, argv[0], err)
		}
		return nil, fmt.Errorf("runner: running %s: %w", argv[0], err)
	}
	return nil, nil
}

func (r *Runner) result(outcome Outcome, capture *cappedWriter, start time.Time, lang language.Language) Result {
	output := capture.String()
	if capture.truncated {
		output += TruncationMarker
	}
	if outcome == OutcomeSuccess && output == "" {
		output = NoOutputMarker
	}
	res := Result{
		Outcome:   outcome,
		Output:    output,
		Truncated: capture.truncated,
		Duration:  r.clock.Now().Sub(start),
	}
	r.logger.Info("execution finished",
		"language", lang.ID,
		"outcome", outcome.String(),
		"duration", res.Duration,
		"output_bytes", len(output),
		"truncated", res.Truncated,
	)
	return res
}

// cappedWriter captures combined stdout and stderr up to a byte limit.
// Writes past the limit are swallowed but still reported as successful
// so the child keeps running to completion (or timeout).
type cappedWriter struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (w *cappedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		w.truncated = true
		return len(p), nil
	}
	if len(p) > remaining {
		w.buf.Write(p[:remaining])
		w.truncated = true
		return len(p), nil
	}
	w.buf.Write(p)
	return len(p), nil
}

func (w *cappedWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

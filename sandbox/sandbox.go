// Copyright 2026 The Codespace Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"syscall"
)

// Isolation selects how toolchain processes are contained.
type Isolation string

const (
	// IsolationBwrap wraps every toolchain invocation in bubblewrap.
	// This is the production mode.
	IsolationBwrap Isolation = "bwrap"

	// IsolationNone runs the toolchain directly on the host, confined
	// only by the working directory and the caller's timeout. For
	// tests and bwrap-less development machines.
	IsolationNone Isolation = "none"
)

// Config holds the parameters for creating a Sandbox.
type Config struct {
	// Mode selects the isolation mechanism. Required.
	Mode Isolation

	// Profile is the sandbox layout. Defaults to ExecutionProfile().
	// Ignored in IsolationNone mode.
	Profile *Profile

	// Logger for sandbox operations. Nil means discard.
	Logger *slog.Logger
}

// Sandbox builds contained commands for the execution pipeline. One
// Sandbox serves all executions; per-execution state (the working
// directory) is passed to Command.
type Sandbox struct {
	mode    Isolation
	profile *Profile
	logger  *slog.Logger
}

// New creates a Sandbox.
func New(cfg Config) (*Sandbox, error) {
	switch cfg.Mode {
	case IsolationBwrap, IsolationNone:
	default:
		return nil, fmt.Errorf("sandbox: unknown isolation mode %q", cfg.Mode)
	}

	profile := cfg.Profile
	if profile == nil {
		profile = ExecutionProfile()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sandbox{mode: cfg.Mode, profile: profile, logger: logger}, nil
}

// Mode returns the configured isolation mode.
func (s *Sandbox) Mode() Isolation { return s.mode }

// Available checks that the isolation mechanism can actually run on
// this host. In bwrap mode that means the bubblewrap binary exists.
func (s *Sandbox) Available() error {
	if s.mode == IsolationBwrap {
		if _, err := BwrapPath(); err != nil {
			return err
		}
	}
	return nil
}

// GuestPath returns the path of the execution working directory as
// seen by the sandboxed process. Toolchain argv is built against this
// path, not the host path.
func (s *Sandbox) GuestPath(workDir string) string {
	if s.mode == IsolationBwrap {
		return GuestWorkDir
	}
	return workDir
}

// Command builds an exec.Cmd that runs argv contained to workDir. The
// command is not started; the caller wires I/O, starts it, and
// enforces its own timeout. The process runs in its own process group
// so the whole tree can be killed at once.
func (s *Sandbox) Command(ctx context.Context, workDir string, argv []string) (*exec.Cmd, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("sandbox: empty command")
	}

	var cmd *exec.Cmd
	switch s.mode {
	case IsolationBwrap:
		bwrapPath, err := BwrapPath()
		if err != nil {
			return nil, err
		}
		bwrapArgs, err := BuildBwrapArgs(&BwrapOptions{
			Profile: s.profile,
			WorkDir: workDir,
			Command: argv,
		})
		if err != nil {
			return nil, err
		}
		cmd = exec.CommandContext(ctx, bwrapPath, bwrapArgs...)
		// The bwrap process itself gets a minimal environment. Even
		// with --clearenv inside, a full service environment would be
		// readable through /proc/<pid>/environ from within the PID
		// namespace bwrap itself lives in.
		cmd.Env = []string{"PATH=/usr/local/bin:/usr/bin:/bin"}

	case IsolationNone:
		cmd = exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Dir = workDir
		cmd.Env = []string{
			"PATH=/usr/local/bin:/usr/bin:/bin",
			"HOME=" + workDir,
			"LANG=C.UTF-8",
		}
	}

	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	s.logger.Debug("sandbox command built",
		"mode", string(s.mode),
		"workdir", workDir,
		"argv", argv,
	)
	return cmd, nil
}

// DryRun returns the full host command line that Command would
// execute, for diagnostics and tests.
func (s *Sandbox) DryRun(workDir string, argv []string) ([]string, error) {
	if s.mode == IsolationNone {
		return argv, nil
	}
	bwrapPath, err := BwrapPath()
	if err != nil {
		return nil, err
	}
	bwrapArgs, err := BuildBwrapArgs(&BwrapOptions{
		Profile: s.profile,
		WorkDir: workDir,
		Command: argv,
	})
	if err != nil {
		return nil, err
	}
	return append([]string{bwrapPath}, bwrapArgs...), nil
}

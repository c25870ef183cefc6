// Copyright 2026 The Codespace Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
)

// BwrapOptions holds the inputs for building a bwrap argument list.
type BwrapOptions struct {
	// Profile is the sandbox layout. Required.
	Profile *Profile

	// WorkDir is the host path of the execution's private working
	// directory, bind-mounted read-write at GuestWorkDir. Required.
	WorkDir string

	// ExtraEnv overrides or extends the profile environment.
	ExtraEnv map[string]string

	// Command is the argv to run inside the sandbox. Required. Paths
	// in the argv must already refer to in-sandbox locations.
	Command []string
}

// BuildBwrapArgs constructs the bwrap command line for the given
// options: namespace unsharing, hardening flags, base mounts, profile
// binds, the working directory bind, and the fully explicit
// environment.
func BuildBwrapArgs(opts *BwrapOptions) ([]string, error) {
	if opts.Profile == nil {
		return nil, fmt.Errorf("sandbox: profile is required")
	}
	if opts.WorkDir == "" {
		return nil, fmt.Errorf("sandbox: work directory is required")
	}
	if len(opts.Command) == 0 {
		return nil, fmt.Errorf("sandbox: command is required")
	}

	var args []string

	ns := opts.Profile.Namespaces
	if ns.PID {
		args = append(args, "--unshare-pid")
	}
	if ns.Net {
		args = append(args, "--unshare-net")
	}
	if ns.IPC {
		args = append(args, "--unshare-ipc")
	}
	if ns.UTS {
		args = append(args, "--unshare-uts")
	}

	if opts.Profile.Security.NewSession {
		args = append(args, "--new-session")
	}
	if opts.Profile.Security.DieWithParent {
		args = append(args, "--die-with-parent")
	}

	// Base mounts: fresh /proc and minimal /dev for the new PID
	// namespace, tmpfs /tmp so nothing leaks between executions.
	args = append(args, "--proc", "/proc")
	args = append(args, "--dev", "/dev")
	args = append(args, "--tmpfs", "/tmp")

	for _, mount := range opts.Profile.Filesystem {
		if mount.Optional {
			if _, err := os.Stat(mount.Source); err != nil {
				continue
			}
		}
		dest := mount.Dest
		if dest == "" {
			dest = mount.Source
		}
		if mount.Mode == MountModeRW {
			args = append(args, "--bind", mount.Source, dest)
		} else {
			args = append(args, "--ro-bind", mount.Source, dest)
		}
	}

	// The execution's scratch directory is the only writable host
	// path, and the sandbox starts there.
	args = append(args, "--bind", opts.WorkDir, GuestWorkDir)
	args = append(args, "--chdir", GuestWorkDir)

	// Environment: cleared, then set explicitly. Sorted keys keep the
	// argument list deterministic for tests and DryRun output.
	args = append(args, "--clearenv")
	env := make(map[string]string, len(opts.Profile.Environment)+len(opts.ExtraEnv))
	for key, value := range opts.Profile.Environment {
		env[key] = value
	}
	for key, value := range opts.ExtraEnv {
		env[key] = value
	}
	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		args = append(args, "--setenv", key, env[key])
	}

	args = append(args, "--")
	args = append(args, opts.Command...)
	return args, nil
}

// bwrapSearchPaths are the locations checked for the bubblewrap
// binary, before falling back to PATH lookup.
var bwrapSearchPaths = []string{
	"/usr/bin/bwrap",
	"/usr/local/bin/bwrap",
}

// BwrapPath locates the bubblewrap binary.
func BwrapPath() (string, error) {
	for _, path := range bwrapSearchPaths {
		if info, err := os.Stat(path); err == nil && info.Mode()&0o111 != 0 {
			return path, nil
		}
	}
	if path, err := exec.LookPath("bwrap"); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("sandbox: bubblewrap (bwrap) not found")
}

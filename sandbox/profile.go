// Copyright 2026 The Codespace Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile defines the filesystem and namespace layout of a sandbox.
type Profile struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`

	// Filesystem lists host paths bind-mounted into the sandbox, in
	// addition to the implicit /proc, /dev, tmpfs /tmp, and the
	// working directory at GuestWorkDir.
	Filesystem []Mount `yaml:"filesystem,omitempty"`

	// Namespaces selects which namespaces to unshare.
	Namespaces NamespaceConfig `yaml:"namespaces,omitempty"`

	// Environment is the complete environment visible inside the
	// sandbox. The host environment is always cleared first.
	Environment map[string]string `yaml:"environment,omitempty"`

	// Security holds process-level hardening options.
	Security SecurityConfig `yaml:"security,omitempty"`
}

// Mount is one bind mount in the sandbox.
type Mount struct {
	// Source is the host path.
	Source string `yaml:"source"`

	// Dest is the in-sandbox path. Empty means same as Source.
	Dest string `yaml:"dest,omitempty"`

	// Mode is "ro" (default) or "rw".
	Mode string `yaml:"mode,omitempty"`

	// Optional mounts are skipped when the source does not exist on
	// the host, instead of failing the sandbox build.
	Optional bool `yaml:"optional,omitempty"`
}

// Mount mode values.
const (
	MountModeRO = "ro"
	MountModeRW = "rw"
)

// NamespaceConfig defines which namespaces to unshare.
type NamespaceConfig struct {
	PID bool `yaml:"pid"`
	Net bool `yaml:"net"`
	IPC bool `yaml:"ipc"`
	UTS bool `yaml:"uts"`
}

// SecurityConfig holds process-level hardening options.
type SecurityConfig struct {
	// NewSession detaches the sandboxed process from the controlling
	// terminal (bwrap --new-session).
	NewSession bool `yaml:"new_session"`

	// DieWithParent kills the sandbox when the service exits
	// (bwrap --die-with-parent).
	DieWithParent bool `yaml:"die_with_parent"`
}

// GuestWorkDir is where the execution's private working directory is
// mounted inside the sandbox. Toolchain argv paths refer to this
// location, never to the host path.
const GuestWorkDir = "/box"

// ExecutionProfile returns the built-in profile for code execution:
// read-only toolchain roots, no network, fresh PID/IPC/UTS namespaces,
// and a minimal fixed environment.
func ExecutionProfile() *Profile {
	return &Profile{
		Name:        "execution",
		Description: "untrusted code execution (interpreters and compilers)",
		Filesystem: []Mount{
			{Source: "/usr", Mode: MountModeRO},
			{Source: "/bin", Mode: MountModeRO, Optional: true},
			{Source: "/lib", Mode: MountModeRO, Optional: true},
			{Source: "/lib64", Mode: MountModeRO, Optional: true},
			{Source: "/opt", Mode: MountModeRO, Optional: true},
			// Resolver and linker configuration; harmless without net
			// access but required by some runtimes at startup.
			{Source: "/etc/alternatives", Mode: MountModeRO, Optional: true},
			{Source: "/etc/ld.so.cache", Mode: MountModeRO, Optional: true},
		},
		Namespaces: NamespaceConfig{PID: true, Net: true, IPC: true, UTS: true},
		Environment: map[string]string{
			"PATH": "/usr/local/bin:/usr/bin:/bin",
			"HOME": GuestWorkDir,
			"LANG": "C.UTF-8",
		},
		Security: SecurityConfig{NewSession: true, DieWithParent: true},
	}
}

// LoadProfile reads a profile from a YAML file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sandbox: reading profile %s: %w", path, err)
	}
	return ParseProfile(data)
}

// ParseProfile parses a profile from YAML bytes.
func ParseProfile(data []byte) (*Profile, error) {
	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("sandbox: parsing profile: %w", err)
	}
	if profile.Name == "" {
		return nil, fmt.Errorf("sandbox: profile has no name")
	}
	for i, mount := range profile.Filesystem {
		if mount.Source == "" {
			return nil, fmt.Errorf("sandbox: profile %s: mount %d has no source", profile.Name, i)
		}
		switch mount.Mode {
		case "", MountModeRO, MountModeRW:
		default:
			return nil, fmt.Errorf("sandbox: profile %s: mount %s has invalid mode %q",
				profile.Name, mount.Source, mount.Mode)
		}
	}
	return &profile, nil
}

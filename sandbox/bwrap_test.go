// Copyright 2026 The Codespace Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"slices"
	"testing"
)

func testProfile() *Profile {
	return &Profile{
		Name: "test",
		Filesystem: []Mount{
			{Source: "/usr", Mode: MountModeRO},
		},
		Namespaces: NamespaceConfig{PID: true, Net: true, IPC: true, UTS: true},
		Environment: map[string]string{
			"PATH": "/usr/bin",
			"HOME": GuestWorkDir,
		},
		Security: SecurityConfig{NewSession: true, DieWithParent: true},
	}
}

func TestBuildBwrapArgs(t *testing.T) {
	args, err := BuildBwrapArgs(&BwrapOptions{
		Profile: testProfile(),
		WorkDir: "/var/tmp/exec-abc",
		Command: []string{"python3", "/box/main.py"},
	})
	if err != nil {
		t.Fatalf("BuildBwrapArgs: %v", err)
	}

	for _, want := range []string{
		"--unshare-pid", "--unshare-net", "--unshare-ipc", "--unshare-uts",
		"--new-session", "--die-with-parent", "--clearenv",
	} {
		if !slices.Contains(args, want) {
			t.Errorf("args missing %s:\n%v", want, args)
		}
	}

	wantSeqs := [][]string{
		{"--proc", "/proc"},
		{"--dev", "/dev"},
		{"--tmpfs", "/tmp"},
		{"--ro-bind", "/usr", "/usr"},
		{"--bind", "/var/tmp/exec-abc", GuestWorkDir},
		{"--chdir", GuestWorkDir},
		{"--setenv", "HOME", GuestWorkDir},
		{"--setenv", "PATH", "/usr/bin"},
		{"--", "python3", "/box/main.py"},
	}
	for _, seq := range wantSeqs {
		if !containsSeq(args, seq) {
			t.Errorf("args missing sequence %v:\n%v", seq, args)
		}
	}
}

func TestBuildBwrapArgsEnvSortedAndOverridden(t *testing.T) {
	args, err := BuildBwrapArgs(&BwrapOptions{
		Profile:  testProfile(),
		WorkDir:  "/w",
		ExtraEnv: map[string]string{"PATH": "/override", "ZZZ": "1", "AAA": "2"},
		Command:  []string{"true"},
	})
	if err != nil {
		t.Fatalf("BuildBwrapArgs: %v", err)
	}

	var keys []string
	for i := 0; i < len(args)-2; i++ {
		if args[i] == "--setenv" {
			keys = append(keys, args[i+1])
			if args[i+1] == "PATH" && args[i+2] != "/override" {
				t.Errorf("PATH = %q, want extra-env override", args[i+2])
			}
		}
	}
	if !slices.IsSorted(keys) {
		t.Errorf("setenv keys not sorted: %v", keys)
	}
}

func TestBuildBwrapArgsOptionalMountSkipped(t *testing.T) {
	profile := testProfile()
	profile.Filesystem = append(profile.Filesystem,
		Mount{Source: "/nonexistent-path-for-test", Mode: MountModeRO, Optional: true})

	args, err := BuildBwrapArgs(&BwrapOptions{
		Profile: profile,
		WorkDir: "/w",
		Command: []string{"true"},
	})
	if err != nil {
		t.Fatalf("BuildBwrapArgs: %v", err)
	}
	if slices.Contains(args, "/nonexistent-path-for-test") {
		t.Errorf("optional missing mount was not skipped:\n%v", args)
	}
}

func TestBuildBwrapArgsValidation(t *testing.T) {
	if _, err := BuildBwrapArgs(&BwrapOptions{WorkDir: "/w", Command: []string{"x"}}); err == nil {
		t.Error("missing profile accepted")
	}
	if _, err := BuildBwrapArgs(&BwrapOptions{Profile: testProfile(), Command: []string{"x"}}); err == nil {
		t.Error("missing workdir accepted")
	}
	if _, err := BuildBwrapArgs(&BwrapOptions{Profile: testProfile(), WorkDir: "/w"}); err == nil {
		t.Error("missing command accepted")
	}
}

func containsSeq(haystack, needle []string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if slices.Equal(haystack[i:i+len(needle)], needle) {
			return true
		}
	}
	return false
}

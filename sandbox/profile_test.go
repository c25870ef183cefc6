// Copyright 2026 The Codespace Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"strings"
	"testing"
)

func TestParseProfile(t *testing.T) {
	const doc = `
name: custom
description: test profile
filesystem:
  - source: /usr
  - source: /opt/toolchains
    dest: /opt
    mode: ro
    optional: true
  - source: /scratch
    mode: rw
namespaces:
  pid: true
  net: true
environment:
  PATH: /usr/bin
security:
  new_session: true
  die_with_parent: true
`
	profile, err := ParseProfile([]byte(doc))
	if err != nil {
		t.Fatalf("ParseProfile: %v", err)
	}
	if profile.Name != "custom" {
		t.Errorf("Name = %q", profile.Name)
	}
	if len(profile.Filesystem) != 3 {
		t.Fatalf("Filesystem = %d mounts, want 3", len(profile.Filesystem))
	}
	if m := profile.Filesystem[1]; m.Dest != "/opt" || !m.Optional {
		t.Errorf("mount 1 = %+v", m)
	}
	if m := profile.Filesystem[2]; m.Mode != MountModeRW {
		t.Errorf("mount 2 mode = %q", m.Mode)
	}
	if !profile.Namespaces.PID || !profile.Namespaces.Net || profile.Namespaces.IPC {
		t.Errorf("Namespaces = %+v", profile.Namespaces)
	}
	if !profile.Security.NewSession || !profile.Security.DieWithParent {
		t.Errorf("Security = %+v", profile.Security)
	}
}

func TestParseProfileRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"no name", "filesystem:\n  - source: /usr\n", "no name"},
		{"mount without source", "name: p\nfilesystem:\n  - dest: /x\n", "no source"},
		{"bad mode", "name: p\nfilesystem:\n  - source: /usr\n    mode: rwx\n", "invalid mode"},
		{"not yaml", "{{{", "parsing"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ParseProfile([]byte(test.doc))
			if err == nil {
				t.Fatal("ParseProfile accepted invalid profile")
			}
			if !strings.Contains(err.Error(), test.want) {
				t.Errorf("error = %v, want substring %q", err, test.want)
			}
		})
	}
}

func TestExecutionProfileShape(t *testing.T) {
	profile := ExecutionProfile()
	ns := profile.Namespaces
	if !ns.PID || !ns.Net || !ns.IPC || !ns.UTS {
		t.Errorf("execution profile must unshare all namespaces, got %+v", ns)
	}
	for _, mount := range profile.Filesystem {
		if mount.Mode == MountModeRW {
			t.Errorf("execution profile has writable bind %s", mount.Source)
		}
	}
	if profile.Environment["HOME"] != GuestWorkDir {
		t.Errorf("HOME = %q, want %q", profile.Environment["HOME"], GuestWorkDir)
	}
	if !profile.Security.NewSession || !profile.Security.DieWithParent {
		t.Errorf("Security = %+v", profile.Security)
	}
}

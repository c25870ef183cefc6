// Copyright 2026 The Codespace Authors
// SPDX-License-Identifier: Apache-2.0

package language

import (
	"testing"
)

func TestDefaultRegistryEntries(t *testing.T) {
	registry := Default()

	tests := []struct {
		id        string
		extension string
		kind      ToolchainKind
	}{
		{"python", "py", Interpreted},
		{"javascript", "js", Interpreted},
		{"java", "java", Compiled},
		{"c", "c", Compiled},
		{"cpp", "cpp", Compiled},
		{"go", "go", Unsupported},
		{"rust", "rs", Unsupported},
		{"plaintext", "txt", Unsupported},
	}
	for _, test := range tests {
		lang, ok := registry.Lookup(test.id)
		if !ok {
			t.Errorf("Lookup(%q) missing", test.id)
			continue
		}
		if lang.Extension != test.extension {
			t.Errorf("%s extension = %q, want %q", test.id, lang.Extension, test.extension)
		}
		if lang.Toolchain.Kind != test.kind {
			t.Errorf("%s toolchain kind = %v, want %v", test.id, lang.Toolchain.Kind, test.kind)
		}
	}
}

func TestResolveFallsBackToPlaintext(t *testing.T) {
	registry := Default()

	for _, id := range []string{"", "cobol", "BRAINFUCK"} {
		lang := registry.Resolve(id)
		if lang.ID != FallbackID {
			t.Errorf("Resolve(%q).ID = %q, want %q", id, lang.ID, FallbackID)
		}
	}

	if lang := registry.Resolve("python"); lang.ID != "python" {
		t.Errorf("Resolve(python).ID = %q", lang.ID)
	}
}

func TestMainFileName(t *testing.T) {
	registry := Default()

	if got := registry.MainFileName("python"); got != "main.py" {
		t.Errorf("MainFileName(python) = %q", got)
	}
	if got := registry.MainFileName("nope"); got != "main.txt" {
		t.Errorf("MainFileName(nope) = %q", got)
	}
}

func TestCompiledEntriesDeclareArtifacts(t *testing.T) {
	registry := Default()

	for _, id := range registry.IDs() {
		lang, _ := registry.Lookup(id)
		switch lang.Toolchain.Kind {
		case Compiled:
			if len(lang.Toolchain.Compile) == 0 || len(lang.Toolchain.Run) == 0 {
				t.Errorf("%s: compiled toolchain missing argv", id)
			}
			if lang.Toolchain.Artifact == "" {
				t.Errorf("%s: compiled toolchain missing artifact name", id)
			}
		case Interpreted:
			if len(lang.Toolchain.Run) == 0 {
				t.Errorf("%s: interpreted toolchain missing run argv", id)
			}
		case Unsupported:
			if len(lang.Toolchain.Run) != 0 || len(lang.Toolchain.Compile) != 0 {
				t.Errorf("%s: unsupported toolchain carries argv", id)
			}
		}
	}
}

func TestExpandArgv(t *testing.T) {
	argv := []string{"cc", PlaceholderSource, "-o", PlaceholderArtifact}
	got := ExpandArgv(argv, map[string]string{
		PlaceholderSource:   "/work/x.c",
		PlaceholderArtifact: "/work/a.out",
	})
	want := []string{"cc", "/work/x.c", "-o", "/work/a.out"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ExpandArgv = %v, want %v", got, want)
		}
	}
	// The template itself is untouched.
	if argv[1] != PlaceholderSource {
		t.Error("ExpandArgv mutated its input")
	}
}

func TestRegistryIsolatedFromInput(t *testing.T) {
	entries := []Language{{ID: "x", Extension: "x"}}
	registry := New(entries)
	entries[0].Extension = "mutated"

	lang, _ := registry.Lookup("x")
	if lang.Extension != "x" {
		t.Error("registry observed mutation of the input slice")
	}
}

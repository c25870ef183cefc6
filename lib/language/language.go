// Copyright 2026 The Codespace Authors
// SPDX-License-Identifier: Apache-2.0

// Package language defines the static language registry: the mapping
// from a language identifier to its display name, file extension,
// starter code, and toolchain.
//
// A Registry is an immutable value constructed once at startup and
// passed to the components that need it. There is no package-level
// mutable table; tests build their own registries with fake toolchains
// via New.
package language

import (
	"sort"
	"strings"
)

// ToolchainKind discriminates how a language's source is executed.
type ToolchainKind int

const (
	// Unsupported means execution requests for this language are
	// rejected without spawning a process.
	Unsupported ToolchainKind = iota

	// Interpreted means a single invocation runs the source directly.
	Interpreted

	// Compiled means a compile step produces an artifact that a
	// second invocation runs.
	Compiled
)

// String returns the kind name for logs and error messages.
func (k ToolchainKind) String() string {
	switch k {
	case Interpreted:
		return "interpreted"
	case Compiled:
		return "compiled"
	default:
		return "unsupported"
	}
}

// Argv placeholders expanded by the execution pipeline. The pipeline
// substitutes the per-execution source path, working directory, and
// artifact path before invoking the toolchain.
const (
	PlaceholderSource   = "{source}"
	PlaceholderDir      = "{dir}"
	PlaceholderArtifact = "{artifact}"
)

// Toolchain describes how to execute source text for one language.
// The zero value is Unsupported.
type Toolchain struct {
	Kind ToolchainKind

	// Compile is the compile-step argv for Compiled toolchains.
	// May contain placeholders.
	Compile []string

	// Run is the run-step argv. For Interpreted toolchains it is the
	// only step. May contain placeholders.
	Run []string

	// Artifact is the name, relative to the working directory, of the
	// file the compile step produces (e.g. "a.out", "Main.class").
	// The pipeline removes it during cleanup and expands
	// {artifact} to its absolute path.
	Artifact string

	// SourceName pins the source file to a fixed name inside the
	// working directory. Java requires this: the public class is
	// assumed to be Main, so the file must be Main.java. Empty means
	// the pipeline uses main.<extension>.
	SourceName string
}

// ExpandArgv returns argv with all placeholders substituted. vars maps
// placeholder to replacement.
func ExpandArgv(argv []string, vars map[string]string) []string {
	expanded := make([]string, len(argv))
	for i, arg := range argv {
		for placeholder, value := range vars {
			arg = strings.ReplaceAll(arg, placeholder, value)
		}
		expanded[i] = arg
	}
	return expanded
}

// Language is one registry entry.
type Language struct {
	// ID is the registry key, e.g. "python".
	ID string

	// DisplayName is the human-readable name, e.g. "Python".
	DisplayName string

	// Extension is the file extension without the dot, e.g. "py".
	Extension string

	// Starter is the default code placed in a session's bootstrap file.
	Starter string

	// Toolchain describes execution. Zero value means Unsupported.
	Toolchain Toolchain
}

// FallbackID is the neutral entry used when a requested language is
// absent or unknown. It is always present in Default() and must be
// present in any registry handed to the session manager.
const FallbackID = "plaintext"

// Registry is an immutable language table.
type Registry struct {
	languages map[string]Language
}

// New builds a registry from the given entries. Later duplicates of
// the same ID win. The input slice is copied; mutating it afterwards
// does not affect the registry.
func New(entries []Language) *Registry {
	languages := make(map[string]Language, len(entries))
	for _, entry := range entries {
		languages[entry.ID] = entry
	}
	return &Registry{languages: languages}
}

// Lookup returns the entry for id, reporting whether it exists.
func (r *Registry) Lookup(id string) (Language, bool) {
	lang, ok := r.languages[id]
	return lang, ok
}

// Resolve returns the entry for id, falling back to the plaintext
// entry when id is empty or unknown. The returned ID reflects the
// fallback, so callers can persist the corrected value.
func (r *Registry) Resolve(id string) Language {
	if lang, ok := r.languages[id]; ok {
		return lang
	}
	return r.languages[FallbackID]
}

// MainFileName returns the bootstrap file name for a language,
// "main.<ext>".
func (r *Registry) MainFileName(id string) string {
	return "main." + r.Resolve(id).Extension
}

// IDs returns all registered language IDs in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.languages))
	for id := range r.languages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

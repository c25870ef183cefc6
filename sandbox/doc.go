// Copyright 2026 The Codespace Authors
// SPDX-License-Identifier: Apache-2.0

// Package sandbox isolates the execution of user-submitted code.
//
// Every compile and run step spawned by the execution pipeline goes
// through a [Sandbox], which wraps the toolchain invocation in
// bubblewrap (bwrap): fresh PID/net/IPC/UTS namespaces, a cleared
// environment, read-only binds of the host toolchain directories, and
// a single writable bind — the execution's private working directory,
// mounted at /box. Submitted code therefore cannot see the network,
// other processes, or any host path outside the toolchain roots and
// its own scratch directory.
//
// Profiles describe the mount and namespace layout. The built-in
// [ExecutionProfile] covers the standard toolchains; deployments with
// unusual toolchain locations load a YAML profile instead.
//
// [IsolationNone] disables bwrap and runs the toolchain directly on
// the host. It exists for tests and for development machines without
// bubblewrap; production configuration should never select it.
package sandbox

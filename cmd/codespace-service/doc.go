// Copyright 2026 The Codespace Authors
// SPDX-License-Identifier: Apache-2.0

// codespace-service is the collaborative code execution service.
//
// It serves a CBOR protocol on a Unix socket: session management
// (create, update, delete, join), file operations, collaborator
// administration, chat, sandboxed execution of session code, and a
// "subscribe" stream that pushes session mutation events to connected
// clients.
//
// Configuration comes from a single YAML file named by the
// CODESPACE_CONFIG environment variable or the --config flag.
package main

// Copyright 2026 The Codespace Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for codespace
// binaries: fatal error reporting to stderr for errors from run()
// where the structured logger may not be initialized yet.
package process

import (
	"fmt"
	"os"
)

// Fatal writes "error: err" to stderr and exits with code 1. Use it in
// main() for errors from run().
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

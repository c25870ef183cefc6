// Copyright 2026 The Codespace Authors
// SPDX-License-Identifier: Apache-2.0

// codespace-run executes a single source file through the sandboxed
// execution pipeline, without a running service. It exists for
// toolchain debugging and for validating a host's sandbox setup.
//
// Usage:
//
//	codespace-run run --language <id> [flags] <source-file>
//	codespace-run validate
//	codespace-run languages
//	codespace-run show-profile
//	codespace-run version
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/codespace-foundation/codespace/lib/language"
	"github.com/codespace-foundation/codespace/lib/runner"
	"github.com/codespace-foundation/codespace/lib/version"
	"github.com/codespace-foundation/codespace/sandbox"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	logLevel := slog.LevelWarn
	if os.Getenv("CODESPACE_DEBUG") != "" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "run":
		err = runCmd(args, logger)
	case "validate":
		err = validateCmd(args, logger)
	case "languages":
		err = languagesCmd()
	case "show-profile":
		err = showProfileCmd()
	case "version", "--version", "-v":
		fmt.Printf("codespace-run %s\n", version.Info())
		return
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(2)
	}

	if err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// exitError carries a specific process exit code without a message.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit %d", e.code) }

func printUsage() {
	fmt.Fprint(os.Stderr, `codespace-run: sandboxed one-shot code execution

Commands:
  run --language <id> [flags] <source-file>
        Execute a source file. Output goes to stdout; the exit code is
        0 on success, 1 on compile or runtime failure, 124 on timeout.
  validate
        Check that the sandbox can run on this host.
  languages
        List registered languages and their toolchains.
  show-profile
        Print the built-in sandbox profile as YAML.
  version
        Print version information.
`)
}

func runCmd(args []string, logger *slog.Logger) error {
	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	languageID := flags.String("language", "", "language ID (see: codespace-run languages)")
	timeout := flags.Duration("timeout", 10*time.Second, "execution wall-clock budget")
	isolation := flags.String("isolation", "bwrap", "isolation mode: bwrap or none")
	profilePath := flags.String("profile", "", "YAML sandbox profile (default: built-in)")
	workDir := flags.String("work-dir", "", "base directory for scratch space (default: temp dir)")
	dryRun := flags.Bool("dry-run", false, "print the sandbox command lines instead of executing")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("run: expected exactly one source file argument")
	}
	if *languageID == "" {
		return fmt.Errorf("run: --language is required")
	}

	registry := language.Default()
	lang, ok := registry.Lookup(*languageID)
	if !ok {
		return fmt.Errorf("run: unknown language %q", *languageID)
	}

	source, err := os.ReadFile(flags.Arg(0))
	if err != nil {
		return err
	}

	var profile *sandbox.Profile
	if *profilePath != "" {
		profile, err = sandbox.LoadProfile(*profilePath)
		if err != nil {
			return err
		}
	}
	sb, err := sandbox.New(sandbox.Config{
		Mode:    sandbox.Isolation(*isolation),
		Profile: profile,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	baseDir := *workDir
	if baseDir == "" {
		baseDir, err = os.MkdirTemp("", "codespace-run-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(baseDir)
	}

	run, err := runner.New(runner.Config{
		Sandbox: sb,
		BaseDir: baseDir,
		Timeout: *timeout,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	if *dryRun {
		lines, err := run.DryRun(lang)
		if err != nil {
			return err
		}
		for _, line := range lines {
			fmt.Println(strings.Join(line, " "))
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := run.Execute(ctx, lang, string(source))
	if err != nil {
		return err
	}

	fmt.Print(result.Output)
	if result.Output != "" && result.Output[len(result.Output)-1] != '\n' {
		fmt.Println()
	}

	switch result.Outcome {
	case runner.OutcomeSuccess:
		return nil
	case runner.OutcomeTimeout:
		fmt.Fprintf(os.Stderr, "execution timed out after %s\n", *timeout)
		return &exitError{code: 124}
	default:
		return &exitError{code: 1}
	}
}

func validateCmd(args []string, logger *slog.Logger) error {
	flags := pflag.NewFlagSet("validate", pflag.ContinueOnError)
	isolation := flags.String("isolation", "bwrap", "isolation mode to validate")
	if err := flags.Parse(args); err != nil {
		return err
	}

	sb, err := sandbox.New(sandbox.Config{
		Mode:   sandbox.Isolation(*isolation),
		Logger: logger,
	})
	if err != nil {
		return err
	}
	if err := sb.Available(); err != nil {
		return err
	}

	if sb.Mode() == sandbox.IsolationBwrap {
		path, err := sandbox.BwrapPath()
		if err != nil {
			return err
		}
		fmt.Printf("bubblewrap: %s\n", path)
	}
	fmt.Printf("isolation %q ready\n", *isolation)
	return nil
}

func languagesCmd() error {
	registry := language.Default()
	for _, id := range registry.IDs() {
		lang, _ := registry.Lookup(id)
		kind := lang.Toolchain.Kind.String()
		fmt.Printf("%-14s %-14s .%-5s %s\n", lang.ID, lang.DisplayName, lang.Extension, kind)
	}
	return nil
}

func showProfileCmd() error {
	data, err := yaml.Marshal(sandbox.ExecutionProfile())
	if err != nil {
		return err
	}
	os.Stdout.Write(data)
	return nil
}

// Copyright 2026 The Codespace Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/codespace-foundation/codespace/lib/broadcast"
	"github.com/codespace-foundation/codespace/lib/clock"
	"github.com/codespace-foundation/codespace/lib/collab"
	"github.com/codespace-foundation/codespace/lib/config"
	"github.com/codespace-foundation/codespace/lib/language"
	"github.com/codespace-foundation/codespace/lib/process"
	"github.com/codespace-foundation/codespace/lib/runner"
	"github.com/codespace-foundation/codespace/lib/service"
	"github.com/codespace-foundation/codespace/lib/session"
	"github.com/codespace-foundation/codespace/lib/version"
	"github.com/codespace-foundation/codespace/sandbox"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)
	pflag.StringVar(&configPath, "config", "", "path to codespace.yaml (overrides CODESPACE_CONFIG)")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.Parse()

	if showVersion {
		fmt.Printf("codespace-service %s\n", version.Info())
		return nil
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.Real()

	store, err := session.Open(session.Config{
		Path:     cfg.Paths.Database,
		PoolSize: cfg.Store.PoolSize,
		Clock:    clk,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	var profile *sandbox.Profile
	if cfg.Execution.ProfileFile != "" {
		profile, err = sandbox.LoadProfile(cfg.Execution.ProfileFile)
		if err != nil {
			return err
		}
	}
	sb, err := sandbox.New(sandbox.Config{
		Mode:    sandbox.Isolation(cfg.Execution.Isolation),
		Profile: profile,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	if err := sb.Available(); err != nil {
		return err
	}

	run, err := runner.New(runner.Config{
		Sandbox:     sb,
		BaseDir:     cfg.Paths.WorkDir,
		Timeout:     cfg.Execution.TimeoutDuration(),
		OutputLimit: cfg.Execution.OutputLimit,
		Clock:       clk,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	manager, err := collab.New(collab.Config{
		Store:    store,
		Registry: language.Default(),
		Runner:   run,
		Hub:      broadcast.NewHub(logger),
		Clock:    clk,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	svc := &CodespaceService{
		manager: manager,
		store:   store,
		clock:   clk,
		logger:  logger,
	}

	socketServer := service.NewSocketServer(cfg.Paths.Socket, logger)
	svc.registerActions(socketServer)

	socketDone := make(chan error, 1)
	go func() {
		socketDone <- socketServer.Serve(ctx)
	}()

	logger.Info("codespace service running",
		"socket", cfg.Paths.Socket,
		"database", cfg.Paths.Database,
		"isolation", cfg.Execution.Isolation,
		"version", version.Info(),
	)

	<-ctx.Done()
	logger.Info("shutting down")

	// Wait for the socket server to drain active connections,
	// including open subscribe streams.
	if err := <-socketDone; err != nil {
		logger.Error("socket server error", "error", err)
	}
	return nil
}

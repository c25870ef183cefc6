// Copyright 2026 The Codespace Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for the codespace service.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Paths configures file and directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Store configures the session database.
	Store StoreConfig `yaml:"store"`

	// Execution configures the sandboxed execution pipeline.
	Execution ExecutionConfig `yaml:"execution"`

	// EnvironmentOverrides contains per-environment overrides,
	// applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Paths     *PathsConfig     `yaml:"paths,omitempty"`
	Store     *StoreConfig     `yaml:"store,omitempty"`
	Execution *ExecutionConfig `yaml:"execution,omitempty"`
}

// PathsConfig configures file and directory locations.
type PathsConfig struct {
	// Root is the base directory for codespace data.
	Root string `yaml:"root"`

	// Database is the SQLite database file.
	// Default: ${CODESPACE_ROOT}/sessions.db
	Database string `yaml:"database"`

	// WorkDir is where per-execution scratch directories are created.
	// Default: ${CODESPACE_ROOT}/exec
	WorkDir string `yaml:"work_dir"`

	// Socket is the Unix socket the service listens on.
	// Default: /run/codespace/service.sock
	Socket string `yaml:"socket"`
}

// StoreConfig configures the session database.
type StoreConfig struct {
	// PoolSize is the SQLite connection pool size. Zero means the
	// pool default.
	PoolSize int `yaml:"pool_size"`
}

// ExecutionConfig configures the sandboxed execution pipeline.
type ExecutionConfig struct {
	// Timeout is the wall-clock budget for one execution, compile and
	// run steps together, as a Go duration string. Default: "10s".
	Timeout string `yaml:"timeout"`

	// OutputLimit caps captured execution output in bytes.
	// Default: 1048576 (1 MiB).
	OutputLimit int `yaml:"output_limit"`

	// Isolation is "bwrap" or "none". "none" runs toolchains directly
	// on the host and is rejected in production.
	Isolation string `yaml:"isolation"`

	// ProfileFile is the path to a YAML sandbox profile. Empty means
	// the built-in execution profile.
	ProfileFile string `yaml:"profile_file"`
}

// TimeoutDuration parses the execution timeout. Call Validate first;
// an unparseable value falls back to the default.
func (e ExecutionConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(e.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// Default returns the default configuration. These defaults exist to
// give every field a sensible zero-value base before the file is
// loaded; the config file itself is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "codespace")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:     defaultRoot,
			Database: filepath.Join(defaultRoot, "sessions.db"),
			WorkDir:  filepath.Join(defaultRoot, "exec"),
			Socket:   "/run/codespace/service.sock",
		},
		Store: StoreConfig{},
		Execution: ExecutionConfig{
			Timeout:     "10s",
			OutputLimit: 1 << 20,
			Isolation:   "bwrap",
		},
	}
}

// Load loads configuration from the CODESPACE_CONFIG environment
// variable. There are no fallbacks: if CODESPACE_CONFIG is not set,
// this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("CODESPACE_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("CODESPACE_CONFIG environment variable not set; " +
			"set it to the path of your codespace.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// do not override config values. The only expansion performed is
// ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.Database != "" {
			c.Paths.Database = overrides.Paths.Database
		}
		if overrides.Paths.WorkDir != "" {
			c.Paths.WorkDir = overrides.Paths.WorkDir
		}
		if overrides.Paths.Socket != "" {
			c.Paths.Socket = overrides.Paths.Socket
		}
	}

	if overrides.Store != nil {
		if overrides.Store.PoolSize != 0 {
			c.Store.PoolSize = overrides.Store.PoolSize
		}
	}

	if overrides.Execution != nil {
		if overrides.Execution.Timeout != "" {
			c.Execution.Timeout = overrides.Execution.Timeout
		}
		if overrides.Execution.OutputLimit != 0 {
			c.Execution.OutputLimit = overrides.Execution.OutputLimit
		}
		if overrides.Execution.Isolation != "" {
			c.Execution.Isolation = overrides.Execution.Isolation
		}
		if overrides.Execution.ProfileFile != "" {
			c.Execution.ProfileFile = overrides.Execution.ProfileFile
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"CODESPACE_ROOT": c.Paths.Root,
		"HOME":           os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["CODESPACE_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.Database = expandVars(c.Paths.Database, vars)
	c.Paths.WorkDir = expandVars(c.Paths.WorkDir, vars)
	c.Paths.Socket = expandVars(c.Paths.Socket, vars)
	c.Execution.ProfileFile = expandVars(c.Execution.ProfileFile, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.Paths.Database == "" {
		errs = append(errs, fmt.Errorf("paths.database is required"))
	}
	if c.Paths.Socket == "" {
		errs = append(errs, fmt.Errorf("paths.socket is required"))
	}
	if d, err := time.ParseDuration(c.Execution.Timeout); err != nil || d <= 0 {
		errs = append(errs, fmt.Errorf("execution.timeout must be a positive duration, got %q", c.Execution.Timeout))
	}
	if c.Execution.OutputLimit <= 0 {
		errs = append(errs, fmt.Errorf("execution.output_limit must be positive"))
	}

	switch c.Execution.Isolation {
	case "bwrap":
	case "none":
		if c.Environment == Production {
			errs = append(errs, fmt.Errorf("execution.isolation \"none\" is not allowed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("execution.isolation must be \"bwrap\" or \"none\""))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

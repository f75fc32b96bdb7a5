// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/warden/lib/compliance"
	"github.com/bureau-foundation/warden/lib/resource"
	"github.com/bureau-foundation/warden/lib/token"
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

// Config is the master configuration for a warden kernel.
//
// Durations are authored as Go duration strings ("30s", "1h"), byte
// sizes in humanize form ("4 GiB"), and autonomy levels by name
// ("coordinate"). The typed accessors (Ceilings, TokenCaps,
// ProcessBudget, ...) parse them; Validate parses every such field
// and reports all problems at once.
type Config struct {
	// Environment identifies the deployment type (development,
	// staging, production).
	Environment Environment `yaml:"environment"`

	// Paths configures directory and file locations.
	Paths PathsConfig `yaml:"paths"`

	// Policy configures autonomy ceilings and token minting limits.
	Policy PolicyConfig `yaml:"policy"`

	// Resources is the process-wide resource budget shared by all
	// concurrently dispatched workloads.
	Resources CapsConfig `yaml:"resources"`

	// Scheduler configures the worker pool and the watchdog.
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Per-environment overrides, applied after the base config is
	// loaded when the environment matches.
	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides contains the sections that can be overridden per
// environment.
type Overrides struct {
	Paths     *PathsConfig     `yaml:"paths,omitempty"`
	Policy    *PolicyConfig    `yaml:"policy,omitempty"`
	Resources *CapsConfig      `yaml:"resources,omitempty"`
	Scheduler *SchedulerConfig `yaml:"scheduler,omitempty"`
}

// PathsConfig configures directory and file locations.
type PathsConfig struct {
	// Root is the base directory for warden data.
	Root string `yaml:"root"`

	// State is where runtime state is stored.
	State string `yaml:"state"`

	// Archive is the audit archive database file.
	Archive string `yaml:"archive"`

	// Exports is where journal exports are written.
	Exports string `yaml:"exports"`
}

// PolicyConfig configures autonomy ceilings and token minting limits.
type PolicyConfig struct {
	// ProductionCeiling is the highest autonomy level the gate admits
	// in production graphs. Level name or bare digit.
	ProductionCeiling string `yaml:"production_ceiling"`

	// SandboxCeiling is the highest autonomy level the gate admits in
	// sandbox graphs. Sandbox graph structure is unverified, so this
	// is typically lower than the production ceiling.
	SandboxCeiling string `yaml:"sandbox_ceiling"`

	// TokenTTL is the capability token lifetime ("1h").
	TokenTTL string `yaml:"token_ttl"`

	// TokenCaps are the per-token resource cap maxima the engine will
	// mint.
	TokenCaps CapsConfig `yaml:"token_caps"`
}

// CapsConfig is a resource cap set in config-file form.
type CapsConfig struct {
	// CPUTime is the execution allowance as a duration string ("1h").
	CPUTime string `yaml:"cpu_time"`

	// Memory is the peak memory allowance in humanize form ("4 GiB").
	Memory string `yaml:"memory"`

	// TokenBudget is the model token spend allowance.
	TokenBudget uint64 `yaml:"token_budget"`

	// MaxIterations bounds agentic loop turns.
	MaxIterations uint32 `yaml:"max_iterations"`
}

// SchedulerConfig configures the worker pool and the watchdog.
type SchedulerConfig struct {
	// Workers is the number of concurrent dispatch workers.
	Workers int `yaml:"workers"`

	// Watchdog configures stall detection. Leaving both fields empty
	// disables the watchdog.
	Watchdog WatchdogConfig `yaml:"watchdog"`
}

// WatchdogConfig configures the stall watchdog.
type WatchdogConfig struct {
	// Grace is how long a dispatched node may sit without a state
	// change before it is frozen ("5m").
	Grace string `yaml:"grace"`

	// Interval is how often the watchdog sweeps ("30s").
	Interval string `yaml:"interval"`
}

// Default returns the default configuration. These defaults are used
// as a base before loading the config file. They exist primarily to
// ensure all fields have sensible zero-values, not as a fallback: the
// config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "warden")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:    defaultRoot,
			State:   filepath.Join(defaultRoot, "state"),
			Archive: filepath.Join(defaultRoot, "archive.db"),
			Exports: filepath.Join(defaultRoot, "exports"),
		},
		Policy: PolicyConfig{
			ProductionCeiling: "coordinate",
			SandboxCeiling:    "implement",
			TokenTTL:          "1h",
			TokenCaps: CapsConfig{
				CPUTime:       "1h",
				Memory:        "4 GiB",
				TokenBudget:   1_000_000,
				MaxIterations: 500,
			},
		},
		Resources: CapsConfig{
			CPUTime:     "8h",
			Memory:      "16 GiB",
			TokenBudget: 10_000_000,
		},
		Scheduler: SchedulerConfig{
			Workers: 4,
			Watchdog: WatchdogConfig{
				Grace:    "5m",
				Interval: "30s",
			},
		},
	}
}

// Load loads configuration from the WARDEN_CONFIG environment
// variable.
//
// This is the only way to load configuration without an explicit
// path. There are no fallbacks or defaults: if WARDEN_CONFIG is not
// set, this fails. An authorization kernel's configuration must be
// deterministic and auditable, with no hidden overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("WARDEN_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("WARDEN_CONFIG environment variable not set; " +
			"set it to the path of your warden.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment
// variables do not override config values. The only expansion
// performed is ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	// Apply the development/staging/production section matching the
	// configured environment.
	cfg.applyEnvironmentOverrides()

	// Expand ${HOME} and similar variables in paths for portability.
	cfg.expandVariables()

	return cfg, nil
}

// applyEnvironmentOverrides applies the environment-specific override
// section.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production default: a lower sandbox ceiling. Unverified
		// graph structure gets less unsupervised authority.
		if overrides == nil {
			overrides = &Overrides{
				Policy: &PolicyConfig{
					SandboxCeiling: "suggest",
				},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.State != "" {
			c.Paths.State = overrides.Paths.State
		}
		if overrides.Paths.Archive != "" {
			c.Paths.Archive = overrides.Paths.Archive
		}
		if overrides.Paths.Exports != "" {
			c.Paths.Exports = overrides.Paths.Exports
		}
	}

	if overrides.Policy != nil {
		if overrides.Policy.ProductionCeiling != "" {
			c.Policy.ProductionCeiling = overrides.Policy.ProductionCeiling
		}
		if overrides.Policy.SandboxCeiling != "" {
			c.Policy.SandboxCeiling = overrides.Policy.SandboxCeiling
		}
		if overrides.Policy.TokenTTL != "" {
			c.Policy.TokenTTL = overrides.Policy.TokenTTL
		}
		c.Policy.TokenCaps = mergeCaps(c.Policy.TokenCaps, overrides.Policy.TokenCaps)
	}

	if overrides.Resources != nil {
		c.Resources = mergeCaps(c.Resources, *overrides.Resources)
	}

	if overrides.Scheduler != nil {
		if overrides.Scheduler.Workers > 0 {
			c.Scheduler.Workers = overrides.Scheduler.Workers
		}
		if overrides.Scheduler.Watchdog.Grace != "" {
			c.Scheduler.Watchdog.Grace = overrides.Scheduler.Watchdog.Grace
		}
		if overrides.Scheduler.Watchdog.Interval != "" {
			c.Scheduler.Watchdog.Interval = overrides.Scheduler.Watchdog.Interval
		}
	}
}

func mergeCaps(base, override CapsConfig) CapsConfig {
	if override.CPUTime != "" {
		base.CPUTime = override.CPUTime
	}
	if override.Memory != "" {
		base.Memory = override.Memory
	}
	if override.TokenBudget > 0 {
		base.TokenBudget = override.TokenBudget
	}
	if override.MaxIterations > 0 {
		base.MaxIterations = override.MaxIterations
	}
	return base
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"WARDEN_ROOT": c.Paths.Root,
		"HOME":        os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["WARDEN_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.State = expandVars(c.Paths.State, vars)
	c.Paths.Archive = expandVars(c.Paths.Archive, vars)
	c.Paths.Exports = expandVars(c.Paths.Exports, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns.
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

// Ceilings returns the parsed autonomy ceiling policy.
func (c *Config) Ceilings() (compliance.CeilingPolicy, error) {
	production, err := token.ParseLevel(c.Policy.ProductionCeiling)
	if err != nil {
		return compliance.CeilingPolicy{}, fmt.Errorf("policy.production_ceiling: %w", err)
	}
	sandbox, err := token.ParseLevel(c.Policy.SandboxCeiling)
	if err != nil {
		return compliance.CeilingPolicy{}, fmt.Errorf("policy.sandbox_ceiling: %w", err)
	}
	return compliance.CeilingPolicy{Production: production, Sandbox: sandbox}, nil
}

// TokenTTL returns the parsed capability token lifetime.
func (c *Config) TokenTTL() (time.Duration, error) {
	ttl, err := time.ParseDuration(c.Policy.TokenTTL)
	if err != nil {
		return 0, fmt.Errorf("policy.token_ttl: %w", err)
	}
	return ttl, nil
}

// TokenCaps returns the parsed per-token resource cap maxima.
func (c *Config) TokenCaps() (resource.Caps, error) {
	caps, err := c.Policy.TokenCaps.Caps()
	if err != nil {
		return resource.Caps{}, fmt.Errorf("policy.token_caps.%w", err)
	}
	return caps, nil
}

// ProcessBudget returns the parsed process-wide resource budget.
func (c *Config) ProcessBudget() (resource.Caps, error) {
	budget, err := c.Resources.Caps()
	if err != nil {
		return resource.Caps{}, fmt.Errorf("resources.%w", err)
	}
	return budget, nil
}

// WatchdogTiming returns the parsed watchdog grace period and sweep
// interval. Both zero means the watchdog is disabled.
func (c *Config) WatchdogTiming() (grace, interval time.Duration, err error) {
	if c.Scheduler.Watchdog.Grace != "" {
		grace, err = time.ParseDuration(c.Scheduler.Watchdog.Grace)
		if err != nil {
			return 0, 0, fmt.Errorf("scheduler.watchdog.grace: %w", err)
		}
	}
	if c.Scheduler.Watchdog.Interval != "" {
		interval, err = time.ParseDuration(c.Scheduler.Watchdog.Interval)
		if err != nil {
			return 0, 0, fmt.Errorf("scheduler.watchdog.interval: %w", err)
		}
	}
	return grace, interval, nil
}

// Caps parses the section into resource caps. Empty fields stay zero,
// which the cap machinery treats as uncapped.
func (c CapsConfig) Caps() (resource.Caps, error) {
	var caps resource.Caps
	if c.CPUTime != "" {
		cpu, err := time.ParseDuration(c.CPUTime)
		if err != nil {
			return resource.Caps{}, fmt.Errorf("cpu_time: %w", err)
		}
		caps.CPUTime = cpu
	}
	if c.Memory != "" {
		memory, err := humanize.ParseBytes(c.Memory)
		if err != nil {
			return resource.Caps{}, fmt.Errorf("memory: %w", err)
		}
		caps.MemoryBytes = memory
	}
	caps.TokenBudget = c.TokenBudget
	caps.MaxIterations = c.MaxIterations
	return caps, nil
}

// Validate checks the configuration for errors. Every string-encoded
// field is parsed so a bad config fails at load, not at first use.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.Paths.State == "" {
		errs = append(errs, fmt.Errorf("paths.state is required"))
	}

	if _, err := c.Ceilings(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.TokenTTL(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.TokenCaps(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.ProcessBudget(); err != nil {
		errs = append(errs, err)
	}

	if c.Scheduler.Workers < 1 {
		errs = append(errs, fmt.Errorf("scheduler.workers must be at least 1"))
	}
	grace, interval, err := c.WatchdogTiming()
	if err != nil {
		errs = append(errs, err)
	} else if (grace > 0) != (interval > 0) {
		errs = append(errs, fmt.Errorf("scheduler.watchdog.grace and scheduler.watchdog.interval must be set together"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates all configured directories if they don't exist.
// The archive path is a file and is left to the archive store.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.Paths.Root, c.Paths.State, c.Paths.Exports} {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}

// Package config loads and validates the run configuration
// MultiRunCoordinator and cmd/gridopt share: YAML in, explicit range
// checks on load, reject early rather than panic downstream.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quietgrid/gridopt/internal/scoring"
)

// RunConfig is the complete configuration for one coordinator run,
// loadable from YAML and overridable by cmd/gridopt's flags.
type RunConfig struct {
	Iterations             int    `yaml:"iterations"`
	Parallel               bool   `yaml:"parallel"`
	ContinueFromCheckpoint bool   `yaml:"continue_from_checkpoint"`
	CheckpointDir          string `yaml:"checkpoint_dir"`
	CheckpointInterval     int    `yaml:"checkpoint_interval"`
	ProgressInterval       int    `yaml:"progress_interval"`
	CacheDir               string `yaml:"cache_dir"`
	ForceFullSimulation    bool   `yaml:"force_full_simulation"`
	Seed                   uint64 `yaml:"seed"`
	CostOnly               bool   `yaml:"cost_only"`
	EnableEnergySales      bool   `yaml:"enable_energy_sales"`

	Monitor MonitorConfig `yaml:"monitor"`
}

// MonitorConfig configures internal/httpmon's server.
type MonitorConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Default returns gridopt's baseline configuration: a parallel,
// continuing, moderately-checkpointed run.
func Default() RunConfig {
	return RunConfig{
		Iterations:             1000,
		Parallel:               true,
		ContinueFromCheckpoint: true,
		CheckpointDir:          "./checkpoints",
		CheckpointInterval:     50,
		ProgressInterval:       10,
		CacheDir:               "./cache",
		Seed:                   0,
		Monitor: MonitorConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
	}
}

// Load reads a RunConfig from a YAML file at path, starting from Default()
// so a partial file only overrides what it sets, then validates the
// result.
func Load(path string) (RunConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("read run config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, fmt.Errorf("parse run config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return RunConfig{}, fmt.Errorf("invalid run config %q: %w", path, err)
	}
	return cfg, nil
}

// Validate ensures the configuration is internally consistent before the
// coordinator starts a run.
func (c RunConfig) Validate() error {
	if c.Iterations <= 0 {
		return fmt.Errorf("iterations must be positive, got %d", c.Iterations)
	}
	if c.CheckpointDir == "" {
		return fmt.Errorf("checkpoint_dir cannot be empty")
	}
	if c.CheckpointInterval <= 0 {
		return fmt.Errorf("checkpoint_interval must be positive, got %d", c.CheckpointInterval)
	}
	if c.ProgressInterval <= 0 {
		return fmt.Errorf("progress_interval must be positive, got %d", c.ProgressInterval)
	}
	if c.Monitor.Port < 0 || c.Monitor.Port > 65535 {
		return fmt.Errorf("monitor.port must be between 0 and 65535, got %d", c.Monitor.Port)
	}
	return nil
}

// ScoringMode maps CostOnly to the scoring package's mode enum.
func (c RunConfig) ScoringMode() scoring.Mode {
	if c.CostOnly {
		return scoring.ModeCostOnly
	}
	return scoring.ModeDefault
}

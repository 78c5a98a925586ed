// Package config provides configuration parsing for the selfmeter CLI.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the selfmeter configuration file.
type Config struct {
	// Interval is a duration string (e.g. "1s", "500ms") between samples.
	Interval string `yaml:"interval"`
	// Samples is the number of reports to print; 0 runs until interrupted.
	Samples int `yaml:"samples"`
	// Warmup is the number of initial samples not printed or summarized.
	Warmup int `yaml:"warmup"`
	// History is the number of reports kept in memory.
	History int `yaml:"history"`
	// Smoothing is the EMA weight for process CPU; 0 disables it.
	Smoothing float64 `yaml:"smoothing"`
	// ClockTicks overrides the kernel USER_HZ; 0 uses CLK_TCK or 100.
	ClockTicks int `yaml:"clock_ticks"`
	// ProcRoot is the proc filesystem mount point.
	ProcRoot string `yaml:"proc_root"`
	// CgroupRoot is the cgroup filesystem mount point.
	CgroupRoot string `yaml:"cgroup_root"`

	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
	Burn    BurnConfig    `yaml:"burn"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	// Listen is the address to serve /metrics on; empty disables it.
	Listen    string `yaml:"listen"`
	Namespace string `yaml:"namespace"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	// Level is one of "debug", "info", "warn" or "error".
	Level string `yaml:"level"`
	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// BurnConfig holds the synthetic load settings used to demo per-thread
// accounting.
type BurnConfig struct {
	// Threads is the number of OS threads that spin; 0 disables it.
	Threads int `yaml:"threads"`
}

// DefaultConfig returns a Config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval:   "1s",
		Samples:    5,
		Warmup:     1,
		History:    60,
		Smoothing:  0.5,
		ClockTicks: 0,
		ProcRoot:   "/proc",
		CgroupRoot: "/sys/fs/cgroup",
		Metrics: MetricsConfig{
			Listen:    "",
			Namespace: "selfmeter",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Burn: BurnConfig{
			Threads: 0,
		},
	}
}

// LoadConfig loads configuration from a YAML file, merging with defaults.
// A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return config, nil
}

// Validate checks the configuration for logical consistency.
func (c *Config) Validate() error {
	d, err := time.ParseDuration(c.Interval)
	if err != nil {
		return fmt.Errorf("interval: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("interval must be > 0, got %s", c.Interval)
	}
	if c.Samples < 0 {
		return fmt.Errorf("samples must be non-negative, got %d", c.Samples)
	}
	if c.Warmup < 0 {
		return fmt.Errorf("warmup must be non-negative, got %d", c.Warmup)
	}
	if c.History <= 0 {
		return fmt.Errorf("history must be > 0, got %d", c.History)
	}
	if c.Smoothing < 0 || c.Smoothing > 1 {
		return fmt.Errorf("smoothing must be in [0,1], got %g", c.Smoothing)
	}
	if c.ClockTicks < 0 {
		return fmt.Errorf("clock_ticks must be non-negative, got %d", c.ClockTicks)
	}
	if c.ProcRoot == "" {
		return fmt.Errorf("proc_root is required")
	}
	if c.Burn.Threads < 0 {
		return fmt.Errorf("burn.threads must be non-negative, got %d", c.Burn.Threads)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		return fmt.Errorf("log.format must be 'text' or 'json', got %q", c.Log.Format)
	}
	return nil
}

// IntervalDuration returns the parsed sampling interval. Call Validate first.
func (c *Config) IntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.Interval)
	return d
}

// LogLevel maps Log.Level to a slog level.
func (c *Config) LogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// SaveConfig saves configuration to a YAML file.
func SaveConfig(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

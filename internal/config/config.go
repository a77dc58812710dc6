// Package config handles YAML config loading for the rod tools. All
// values are optional; CLI flags override config values.
package config

import (
	"fmt"
	"time"
)

// Config mirrors a rod.yaml configuration file.
type Config struct {
	LogLevel string        `yaml:"log_level"`
	Serve    ServeConfig   `yaml:"serve"`
	Batch    BatchConfig   `yaml:"batch"`
	Monitor  MonitorConfig `yaml:"monitor"`
}

// ServeConfig drives rod serve.
type ServeConfig struct {
	Listen   string         `yaml:"listen"`
	Endpoint string         `yaml:"endpoint"`
	UIRate   float64        `yaml:"ui_rate"`
	FrameLog FrameLogConfig `yaml:"framelog"`
}

// FrameLogConfig controls the on-disk frame archive.
type FrameLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// BatchConfig drives rod batch.
type BatchConfig struct {
	Workers  int    `yaml:"workers"`
	Format   string `yaml:"format"`
	OutDir   string `yaml:"out_dir"`
	FailFast bool   `yaml:"fail_fast"`
}

// MonitorConfig drives rod watch.
type MonitorConfig struct {
	URL      string   `yaml:"url"`
	Interval Duration `yaml:"interval"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Serve: ServeConfig{
			Listen:   ":8080",
			Endpoint: "tcp://127.0.0.1:5555",
			UIRate:   4,
			FrameLog: FrameLogConfig{Dir: "framelogs"},
		},
		Batch: BatchConfig{
			Format: "png",
			OutDir: "decoded",
		},
		Monitor: MonitorConfig{
			URL:      "http://127.0.0.1:8080/status",
			Interval: Duration{2 * time.Second},
		},
	}
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

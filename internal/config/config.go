// Package config - YAML configuration of the autoshard CLI.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

var errInvalidConfig = errors.New("invalid config")

// Config holds all autoshard configuration.
type Config struct {
	Input    InputConfig    `yaml:"input"`
	Workers  WorkersConfig  `yaml:"workers"`
	Sharding ShardingConfig `yaml:"sharding"`
	Output   OutputConfig   `yaml:"output"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// InputConfig - how input records are split for parallel processing.
type InputConfig struct {
	Partitions int `yaml:"partitions"`
}

// WorkersConfig - worker pool of every parallel stage.
type WorkersConfig struct {
	Size   int `yaml:"size"`
	Buffer int `yaml:"buffer"`
}

// ShardingConfig - NumShards > 0 disables dynamic sharding.
type ShardingConfig struct {
	UnshardedWriteThreshold int64 `yaml:"unsharded_write_threshold"`
	NumShards               int   `yaml:"num_shards"`
}

// OutputConfig - where and how shard files are written.
type OutputConfig struct {
	Prefix string `yaml:"prefix"`
	Suffix string `yaml:"suffix"`
	Format string `yaml:"format"` // text, json
}

// LoggingConfig - debug logging when Verbose.
type LoggingConfig struct {
	Verbose bool `yaml:"verbose"`
}

// Default - configuration used for every key missing from the file.
func Default() *Config {
	return &Config{
		Input:   InputConfig{Partitions: 8},
		Workers: WorkersConfig{Size: 4},
		Output:  OutputConfig{Format: FormatText},
	}
}

// Load - reads the YAML file at path over the defaults.
// an empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate - checks the configuration is usable. output.prefix is required.
func (c *Config) Validate() error {
	var errs []error
	if c.Input.Partitions < 1 {
		errs = append(errs, fmt.Errorf("input.partitions must be at least 1, got %d", c.Input.Partitions))
	}
	if c.Workers.Size < 1 {
		errs = append(errs, fmt.Errorf("workers.size must be at least 1, got %d", c.Workers.Size))
	}
	if c.Workers.Buffer < 0 {
		errs = append(errs, fmt.Errorf("workers.buffer must be at least 0, got %d", c.Workers.Buffer))
	}
	if c.Sharding.UnshardedWriteThreshold < 0 {
		errs = append(errs, fmt.Errorf("sharding.unsharded_write_threshold must be at least 0, got %d", c.Sharding.UnshardedWriteThreshold))
	}
	if c.Sharding.NumShards < 0 {
		errs = append(errs, fmt.Errorf("sharding.num_shards must be at least 0, got %d", c.Sharding.NumShards))
	}
	if c.Output.Prefix == "" {
		errs = append(errs, errors.New("output.prefix is required"))
	}
	switch c.Output.Format {
	case FormatText, FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("output.format must be %q or %q, got %q", FormatText, FormatJSON, c.Output.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", errInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Save - writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

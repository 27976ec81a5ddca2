package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the YAML config file shape. Everything here is also settable
// by flag; flags win. Durations are strings like "30s" or "2h".
type File struct {
	WorkDir          string `yaml:"workdir"`
	Interval         string `yaml:"interval"`
	Log              string `yaml:"log"`
	ChildLog         string `yaml:"child_log"`
	MaxRuntime       string `yaml:"max_runtime"`
	IterationTimeout string `yaml:"iteration_timeout"`

	ForwardSignals *bool  `yaml:"forward_signals,omitempty"`
	GracePeriod    string `yaml:"grace_period"`

	Backoff struct {
		Enabled bool   `yaml:"enabled"`
		Max     string `yaml:"max"`
		Jitter  bool   `yaml:"jitter"`
	} `yaml:"backoff"`

	MetricsListen string `yaml:"metrics_listen"`
	LogLevel      string `yaml:"log_level"`
	LogJSON       bool   `yaml:"log_json"`
	LogFile       string `yaml:"log_file"`
}

// Load reads and parses a YAML config file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks every duration field parses.
func (f *File) Validate() error {
	for name, v := range map[string]string{
		"interval":          f.Interval,
		"max_runtime":       f.MaxRuntime,
		"iteration_timeout": f.IterationTimeout,
		"grace_period":      f.GracePeriod,
		"backoff.max":       f.Backoff.Max,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
	}
	return nil
}

// Duration returns a parsed duration field, or fallback when unset.
// Validate has already rejected unparseable values.
func Duration(v string, fallback time.Duration) time.Duration {
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

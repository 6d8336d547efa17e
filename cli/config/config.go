package config

import (
	"fmt"
	"time"
)

// Config represents a covered.yaml configuration file.
// All values are optional and act as defaults for covered run flags.
// CLI flags always override config values. The four positional run
// arguments are never read from the file.
type Config struct {
	Host        string        `yaml:"host"`
	Timeout     Duration      `yaml:"timeout"`
	Diagnostics string        `yaml:"diagnostics"`
	LogLevel    string        `yaml:"log_level"`
	Report      ReportConfig  `yaml:"report"`
	Storage     StorageConfig `yaml:"storage"`
	Adapter     AdapterConfig `yaml:"adapter"`
}

// ReportConfig holds coverage report defaults from the config file.
type ReportConfig struct {
	Mode string `yaml:"mode"`
	Path string `yaml:"path"`
}

// StorageConfig holds storage defaults from the config file.
type StorageConfig struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// AdapterConfig holds adapter defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
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
	if parsed < 0 {
		return fmt.Errorf("invalid duration %q: must not be negative", s)
	}
	d.Duration = parsed
	return nil
}

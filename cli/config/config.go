package config

import (
	"fmt"
	"time"
)

// Config represents a smelt.yaml configuration file.
// All values are optional and act as defaults for smelt convert flags.
// CLI flags always override config values.
type Config struct {
	Python      string       `yaml:"python"`
	Threads     int          `yaml:"threads"`
	StepTimeout Duration     `yaml:"step_timeout"`
	Journal     string       `yaml:"journal"`
	Tools       ToolsConfig  `yaml:"tools"`
	Store       StoreConfig  `yaml:"store"`
	Notify      NotifyConfig `yaml:"notify"`
}

// ToolsConfig holds overrides for external conversion tools.
// Empty paths fall back to the bundled converter scripts and the
// default binary names resolved via PATH.
type ToolsConfig struct {
	PthScript     string `yaml:"pth_script"`
	GPT4AllScript string `yaml:"gpt4all_script"`
	Quantize      string `yaml:"quantize"`
	Migrate       string `yaml:"migrate"`
}

// StoreConfig holds artifact publication defaults from the config file.
type StoreConfig struct {
	Backend     string `yaml:"backend"` // fs or s3
	Path        string `yaml:"path"`    // directory, or bucket/prefix for s3
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// NotifyConfig holds completion-notifier defaults from the config file.
type NotifyConfig struct {
	Type    string            `yaml:"type"` // webhook or redis
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
	d.Duration = parsed
	return nil
}

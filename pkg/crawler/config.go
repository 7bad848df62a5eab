package crawler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/PentesterFlow/scrape-characters/internal/output"
	"github.com/PentesterFlow/scrape-characters/internal/parser"
)

// Config holds all crawler configuration.
type Config struct {
	// Seed URL to crawl
	Target string `json:"target" yaml:"target"`

	// Minimum milliseconds between the starts of consecutive fetches
	Delay int `json:"delay" yaml:"delay"`

	// Maximum number of frontier pops
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`

	// Reject links carrying a fragment instead of stripping it
	IgnoreHashes bool `json:"ignore_hashes" yaml:"ignore_hashes"`

	// Per-request timeout
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	UserAgent     string            `json:"user_agent" yaml:"user_agent"`
	CustomHeaders map[string]string `json:"custom_headers" yaml:"custom_headers"`

	// Retries for network, timeout and 5xx failures
	Retries int `json:"retries" yaml:"retries"`

	// Response bodies beyond this size are truncated
	MaxBodyBytes int64 `json:"max_body_bytes" yaml:"max_body_bytes"`

	// Unicode normalization applied to page text: none, nfc or nfkc
	Normalization string `json:"normalization" yaml:"normalization"`

	// Regular expressions; matching links are rejected
	ExcludePatterns []string `json:"exclude_patterns" yaml:"exclude_patterns"`

	// Output configuration
	Output OutputConfig `json:"output" yaml:"output"`

	// Path of the run archive; empty disables archiving
	Archive string `json:"archive" yaml:"archive"`

	// Verbose logging
	Verbose bool `json:"verbose" yaml:"verbose"`

	// Debug mode
	Debug bool `json:"debug" yaml:"debug"`

	// Show a progress line on stderr
	Progress bool `json:"progress" yaml:"progress"`
}

// OutputConfig holds report configuration.
type OutputConfig struct {
	Format  string `json:"format" yaml:"format"`
	File    string `json:"file" yaml:"file"`
	Pretty  bool   `json:"pretty" yaml:"pretty"`
	Hex     bool   `json:"hex" yaml:"hex"`
	NoColor bool   `json:"no_color" yaml:"no_color"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Delay:         5000,
		MaxIterations: 150,
		IgnoreHashes:  true,
		Timeout:       30 * time.Second,
		MaxBodyBytes:  5 << 20,
		Normalization: string(parser.NormalizeNone),
		Output: OutputConfig{
			Format: string(output.FormatText),
			Pretty: true,
		},
	}
}

// DelayDuration returns Delay as a duration.
func (c *Config) DelayDuration() time.Duration {
	return time.Duration(c.Delay) * time.Millisecond
}

// LoadFromFile loads configuration from a YAML or JSON file on top of the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		return config, nil
	}

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, config); err != nil {
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return config, nil
}

// Validate validates the configuration. The seed URL itself is checked when
// the crawl starts.
func (c *Config) Validate() error {
	if c.Delay < 0 {
		return fmt.Errorf("delay must not be negative")
	}

	if c.MaxIterations < 0 {
		return fmt.Errorf("max iterations must not be negative")
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	if c.Retries < 0 {
		return fmt.Errorf("retries must not be negative")
	}

	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive")
	}

	if _, err := parser.ParseNormalization(c.Normalization); err != nil {
		return err
	}

	if _, err := output.ParseFormat(c.Output.Format); err != nil {
		return err
	}

	for _, pattern := range c.ExcludePatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
	}

	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	data, _ := json.Marshal(c)
	clone := &Config{}
	json.Unmarshal(data, clone)
	return clone
}

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where Load looks when no path is given on the CLI.
const DefaultPath = "scribe.yml"

// ScribeConfig represents the top-level scribe.yml configuration.
type ScribeConfig struct {
	Version   string          `yaml:"version"`
	Namespace string          `yaml:"namespace"`
	Redis     RedisConfig     `yaml:"redis,omitempty"`
	Autosave  *AutosaveConfig `yaml:"autosave,omitempty"`
}

// RedisConfig holds the connection settings for the draft store.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"` // Default: localhost:6379
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// AutosaveConfig holds the timing knobs of the save scheduler. Durations are
// Go duration strings ("3s", "500ms").
type AutosaveConfig struct {
	DebounceWindow string `yaml:"debounce_window,omitempty"` // Default: 3s
	SaveTimeout    string `yaml:"save_timeout,omitempty"`    // Default: 10s

	window  time.Duration
	timeout time.Duration
}

// Window returns the parsed debounce window. Valid after Validate.
func (a *AutosaveConfig) Window() time.Duration { return a.window }

// Timeout returns the parsed per-save timeout. Valid after Validate.
func (a *AutosaveConfig) Timeout() time.Duration { return a.timeout }

// Validate performs strict validation on the configuration and applies
// defaults for omitted fields.
func (c *ScribeConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	// Required: namespace
	if c.Namespace == "" {
		return fmt.Errorf("namespace is required")
	}

	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db must be >= 0, got %d", c.Redis.DB)
	}

	if c.Autosave == nil {
		c.Autosave = &AutosaveConfig{}
	}
	if err := c.Autosave.validate(); err != nil {
		return err
	}

	return nil
}

func (a *AutosaveConfig) validate() error {
	if a.DebounceWindow == "" {
		a.DebounceWindow = "3s"
	}
	window, err := time.ParseDuration(a.DebounceWindow)
	if err != nil {
		return fmt.Errorf("invalid autosave.debounce_window: %w", err)
	}
	if window <= 0 {
		return fmt.Errorf("autosave.debounce_window must be positive, got %s", a.DebounceWindow)
	}

	if a.SaveTimeout == "" {
		a.SaveTimeout = "10s"
	}
	timeout, err := time.ParseDuration(a.SaveTimeout)
	if err != nil {
		return fmt.Errorf("invalid autosave.save_timeout: %w", err)
	}
	if timeout <= 0 {
		return fmt.Errorf("autosave.save_timeout must be positive, got %s", a.SaveTimeout)
	}

	a.window = window
	a.timeout = timeout
	return nil
}

// Load reads and validates scribe.yml from the specified path.
func Load(path string) (*ScribeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config ScribeConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

package agentkit

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigEnvVar overrides the configuration file path when set.
const ConfigEnvVar = "SECTION_AGENT_CONFIG"

// Config is the file-based configuration of a section agent. Command line
// flags take precedence over values loaded from a file.
type Config struct {
	Sections           []Section   `yaml:"sections"`
	NewlineReplacement string      `yaml:"newline_replacement"`
	Cache              CacheConfig `yaml:"cache"`
	Debug              bool        `yaml:"debug"`
}

// CacheConfig controls the agent's on-disk result cache. An interval of zero
// disables caching.
type CacheConfig struct {
	Dir             string `yaml:"dir"`
	Name            string `yaml:"name"`
	IntervalSeconds int    `yaml:"interval_seconds"`
}

// DefaultConfig returns a configuration with all defaults applied and no
// sections.
func DefaultConfig() *Config {
	return &Config{
		NewlineReplacement: DefaultNewlineReplacement,
	}
}

// LoadConfig loads and validates a configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ErrInvalidConfig{Path: path, Err: err}
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ErrInvalidConfig{Path: path, Err: err}
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, &ErrInvalidConfig{Path: path, Err: err}
	}

	return &cfg, nil
}

// LoadConfigFromEnv loads the configuration file named by the
// SECTION_AGENT_CONFIG environment variable, or returns the default
// configuration when the variable is unset.
func LoadConfigFromEnv() (*Config, error) {
	if path := os.Getenv(ConfigEnvVar); path != "" {
		return LoadConfig(path)
	}
	return DefaultConfig(), nil
}

func applyDefaults(cfg *Config) {
	if cfg.NewlineReplacement == "" {
		cfg.NewlineReplacement = DefaultNewlineReplacement
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	for i, section := range c.Sections {
		if section.Name == "" {
			return fmt.Errorf("section %d: name is required", i)
		}
		if section.URL == "" {
			return fmt.Errorf("section %q: url is required", section.Name)
		}
		u, err := url.Parse(section.URL)
		if err != nil {
			return fmt.Errorf("section %q: invalid url: %w", section.Name, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("section %q: url must be absolute, got %q", section.Name, section.URL)
		}
	}

	if c.Cache.IntervalSeconds < 0 {
		return errors.New("cache.interval_seconds must not be negative")
	}
	if c.Cache.IntervalSeconds > 0 && c.Cache.Dir == "" {
		return errors.New("cache.dir is required when caching is enabled")
	}

	return nil
}

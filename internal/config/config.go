package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DirName is the per-site configuration directory inside the content root.
	DirName = ".spectra"
	// FileName is the site configuration file inside DirName.
	FileName = "config.yaml"
	// LayoutFile is the optional page layout override, relative to DirName.
	LayoutFile = "layout/page.html"
)

// Config is the site configuration read from <input>/.spectra/config.yaml.
type Config struct {
	Title       string         `yaml:"title"`
	Description string         `yaml:"description,omitempty"`
	Output      string         `yaml:"output"`
	GitInfo     bool           `yaml:"git_info"`
	Nav         NavConfig      `yaml:"nav"`
	Markdown    MarkdownConfig `yaml:"markdown"`
	Serve       ServeConfig    `yaml:"serve"`
	Mathpix     MathpixConfig  `yaml:"mathpix"`
}

// NavConfig controls the navigation tree.
type NavConfig struct {
	IndexNames    []string `yaml:"index_names"`
	IncludeAssets bool     `yaml:"include_assets"`
}

// MarkdownConfig controls rendering.
type MarkdownConfig struct {
	Breaks bool `yaml:"breaks"` // soft line breaks become <br>
	HTML   bool `yaml:"html"`   // pass raw HTML through
	Math   bool `yaml:"math"`   // load MathJax in the page layout
}

// ServeConfig controls the preview server.
type ServeConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	LiveReload bool   `yaml:"livereload"`
}

// MathpixConfig controls the conversion API client.
type MathpixConfig struct {
	BaseURL           string           `yaml:"base_url"`
	PollInterval      time.Duration    `yaml:"poll_interval"`
	Timeout           time.Duration    `yaml:"timeout"`
	MaxRetries        int              `yaml:"max_retries"`
	RetryBackoff      RetryBackoffMode `yaml:"retry_backoff"`
	RetryInitialDelay time.Duration    `yaml:"retry_initial_delay"`
	RetryMaxDelay     time.Duration    `yaml:"retry_max_delay"`
}

// Path returns the configuration file path for a content root.
func Path(input string) string {
	return filepath.Join(input, DirName, FileName)
}

// LayoutPath returns the layout override path for a content root.
func LayoutPath(input string) string {
	return filepath.Join(input, DirName, filepath.FromSlash(LayoutFile))
}

// Load reads a configuration file. A missing file yields the defaults.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return cfg, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config %s: %w", configPath, err)
	}

	if res := Normalize(cfg); len(res.Warnings) > 0 {
		for _, w := range res.Warnings {
			fmt.Fprintf(os.Stderr, "config normalization: %s\n", w)
		}
	}
	if err := applyDefaults(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadDir loads the configuration of the content root input.
func LoadDir(input string) (*Config, error) {
	return Load(Path(input))
}

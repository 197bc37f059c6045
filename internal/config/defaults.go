package config

import "time"

const (
	DefaultTitle        = "spectra"
	DefaultOutput       = "./dist"
	DefaultPort         = 8080
	DefaultMathpixURL   = "https://api.mathpix.com"
	DefaultPollInterval = 500 * time.Millisecond
	DefaultTimeout      = 10 * time.Minute
)

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		Title:  DefaultTitle,
		Output: DefaultOutput,
		Nav: NavConfig{
			IndexNames:    []string{"index"},
			IncludeAssets: true,
		},
		Markdown: MarkdownConfig{Breaks: true, HTML: true, Math: true},
		Serve:    ServeConfig{Port: DefaultPort, LiveReload: true},
		Mathpix: MathpixConfig{
			BaseURL:           DefaultMathpixURL,
			PollInterval:      DefaultPollInterval,
			Timeout:           DefaultTimeout,
			MaxRetries:        2,
			RetryBackoff:      RetryBackoffExponential,
			RetryInitialDelay: time.Second,
			RetryMaxDelay:     10 * time.Second,
		},
	}
}

// DefaultApplier fills zero values of one configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

type siteDefaults struct{}

func (siteDefaults) Domain() string { return "site" }

func (siteDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Title == "" {
		cfg.Title = DefaultTitle
	}
	if cfg.Output == "" {
		cfg.Output = DefaultOutput
	}
	return nil
}

type navDefaults struct{}

func (navDefaults) Domain() string { return "nav" }

func (navDefaults) ApplyDefaults(cfg *Config) error {
	if len(cfg.Nav.IndexNames) == 0 {
		cfg.Nav.IndexNames = []string{"index"}
	}
	return nil
}

type serveDefaults struct{}

func (serveDefaults) Domain() string { return "serve" }

func (serveDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Serve.Port == 0 {
		cfg.Serve.Port = DefaultPort
	}
	return nil
}

type mathpixDefaults struct{}

func (mathpixDefaults) Domain() string { return "mathpix" }

func (mathpixDefaults) ApplyDefaults(cfg *Config) error {
	m := &cfg.Mathpix
	if m.BaseURL == "" {
		m.BaseURL = DefaultMathpixURL
	}
	if m.PollInterval <= 0 {
		m.PollInterval = DefaultPollInterval
	}
	if m.Timeout <= 0 {
		m.Timeout = DefaultTimeout
	}
	if m.RetryBackoff == "" {
		m.RetryBackoff = RetryBackoffExponential
	}
	if m.RetryInitialDelay <= 0 {
		m.RetryInitialDelay = time.Second
	}
	if m.RetryMaxDelay <= 0 {
		m.RetryMaxDelay = 10 * time.Second
	}
	return nil
}

func defaultAppliers() []DefaultApplier {
	return []DefaultApplier{siteDefaults{}, navDefaults{}, serveDefaults{}, mathpixDefaults{}}
}

func applyDefaults(cfg *Config) error {
	for _, a := range defaultAppliers() {
		if err := a.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}

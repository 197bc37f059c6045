package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"git.home.luguber.info/inful/spectra/internal/sitepath"
)

// ValidateConfig checks a configuration after defaults have been applied.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	for _, n := range cfg.Nav.IndexNames {
		if strings.ContainsAny(n, `/\`) || sitepath.IsDocument(n) {
			return fmt.Errorf("nav.index_names: %q must be a bare file name without extension", n)
		}
	}
	if cfg.Serve.Port < 1 || cfg.Serve.Port > 65535 {
		return fmt.Errorf("serve.port: %d out of range", cfg.Serve.Port)
	}
	u, err := url.Parse(cfg.Mathpix.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("mathpix.base_url: %q is not an absolute URL", cfg.Mathpix.BaseURL)
	}
	if cfg.Mathpix.MaxRetries < 0 {
		return errors.New("mathpix.max_retries cannot be negative")
	}
	return nil
}

// Rules returns the path normalization rules configured for the site.
func (c *Config) Rules() sitepath.Rules {
	return sitepath.Rules{IndexNames: append([]string(nil), c.Nav.IndexNames...)}
}

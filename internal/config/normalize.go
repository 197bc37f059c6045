package config

import (
	"fmt"
	"strings"
)

// NormalizationResult captures adjustments made while normalizing.
type NormalizationResult struct{ Warnings []string }

// Normalize canonicalizes enumerations and list values in place. It runs
// before defaults are applied.
func Normalize(c *Config) *NormalizationResult {
	res := &NormalizationResult{}
	if c == nil {
		return res
	}

	names := make([]string, 0, len(c.Nav.IndexNames))
	seen := map[string]bool{}
	for _, n := range c.Nav.IndexNames {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		names = append(names, n)
	}
	c.Nav.IndexNames = names

	if raw := string(c.Mathpix.RetryBackoff); raw != "" {
		mode := NormalizeRetryBackoff(raw)
		if mode == "" {
			res.Warnings = append(res.Warnings, fmt.Sprintf("unknown mathpix.retry_backoff %q, using %s", raw, RetryBackoffExponential))
			mode = RetryBackoffExponential
		}
		c.Mathpix.RetryBackoff = mode
	}
	c.Mathpix.BaseURL = strings.TrimRight(strings.TrimSpace(c.Mathpix.BaseURL), "/")
	return res
}

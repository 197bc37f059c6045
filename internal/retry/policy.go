// Package retry retries Mathpix API calls that fail transiently (network
// errors, 5xx responses, rate limiting) with a configurable backoff.
package retry

import (
	"time"

	"git.home.luguber.info/inful/spectra/internal/config"
	"git.home.luguber.info/inful/spectra/internal/foundation/errors"
)

// Policy describes how often and how patiently a conversion request is
// retried. Attempt numbers are 1-based: the first retry is attempt 1.
type Policy struct {
	Mode       config.RetryBackoffMode
	Initial    time.Duration // delay before the first retry
	Max        time.Duration // upper bound for any single delay
	MaxRetries int           // retries after the first failed request; 0 disables retrying
}

// DefaultPolicy matches the mathpix defaults in config.Default: exponential
// backoff from 1s, capped at 10s, two retries.
func DefaultPolicy() Policy {
	return Policy{
		Mode:       config.RetryBackoffExponential,
		Initial:    time.Second,
		Max:        10 * time.Second,
		MaxRetries: 2,
	}
}

// NewPolicy fills unset or invalid fields from DefaultPolicy. An initial delay
// above the cap is lowered to the cap.
func NewPolicy(mode config.RetryBackoffMode, initial, maxDelay time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	if m := config.NormalizeRetryBackoff(string(mode)); m != "" {
		p.Mode = m
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDelay > 0 {
		p.Max = maxDelay
	}
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	p.Initial = min(p.Initial, p.Max)
	return p
}

// FromConfig builds the policy for the conversion API client.
func FromConfig(m config.MathpixConfig) Policy {
	return NewPolicy(m.RetryBackoff, m.RetryInitialDelay, m.RetryMaxDelay, m.MaxRetries)
}

// Delay is the wait before retry attempt n.
func (p Policy) Delay(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	var d time.Duration
	switch p.Mode {
	case config.RetryBackoffFixed:
		d = p.Initial
	case config.RetryBackoffLinear:
		d = time.Duration(n) * p.Initial
	default:
		shift := n - 1
		if shift >= 62 || p.Initial > p.Max>>shift {
			return p.Max
		}
		d = p.Initial << shift
	}
	return min(d, p.Max)
}

// Validate rejects a policy that cannot be applied.
func (p Policy) Validate() error {
	switch {
	case p.Initial <= 0:
		return errors.ConfigError("mathpix retry_initial_delay must be positive").Build()
	case p.Max <= 0:
		return errors.ConfigError("mathpix retry_max_delay must be positive").Build()
	case p.MaxRetries < 0:
		return errors.ConfigError("mathpix max_retries cannot be negative").Build()
	}
	return nil
}

package config

import "strings"

// RetryBackoffMode enumerates supported backoff strategies for retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

// NormalizeRetryBackoff case-folds raw into a known mode, or "" when unknown.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	switch m := RetryBackoffMode(strings.ToLower(strings.TrimSpace(raw))); m {
	case RetryBackoffFixed, RetryBackoffLinear, RetryBackoffExponential:
		return m
	default:
		return ""
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, input, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(input, DirName), 0o755))
	require.NoError(t, os.WriteFile(Path(input), []byte(body), 0o644))
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := LoadDir(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "spectra", cfg.Title)
	assert.Equal(t, "./dist", cfg.Output)
	assert.Equal(t, []string{"index"}, cfg.Nav.IndexNames)
	assert.True(t, cfg.Nav.IncludeAssets)
	assert.True(t, cfg.Markdown.Breaks)
	assert.True(t, cfg.Markdown.HTML)
	assert.Equal(t, 8080, cfg.Serve.Port)
	assert.Equal(t, "https://api.mathpix.com", cfg.Mathpix.BaseURL)
	assert.Equal(t, 500*time.Millisecond, cfg.Mathpix.PollInterval)
}

func TestLoad_OverridesAndEnvExpansion(t *testing.T) {
	input := t.TempDir()
	t.Setenv("SPECTRA_TEST_TITLE", "Lab Notes")
	writeConfig(t, input, `
title: ${SPECTRA_TEST_TITLE}
output: ./public
nav:
  index_names: [Index, README, readme]
  include_assets: false
markdown:
  breaks: false
serve:
  port: 9000
mathpix:
  base_url: https://mathpix.internal/
  poll_interval: 2s
  retry_backoff: LINEAR
`)
	cfg, err := LoadDir(input)
	require.NoError(t, err)
	assert.Equal(t, "Lab Notes", cfg.Title)
	assert.Equal(t, "./public", cfg.Output)
	assert.Equal(t, []string{"index", "readme"}, cfg.Nav.IndexNames)
	assert.False(t, cfg.Nav.IncludeAssets)
	assert.False(t, cfg.Markdown.Breaks)
	assert.True(t, cfg.Markdown.HTML, "unset keys keep defaults")
	assert.Equal(t, 9000, cfg.Serve.Port)
	assert.Equal(t, "https://mathpix.internal", cfg.Mathpix.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Mathpix.PollInterval)
	assert.Equal(t, RetryBackoffLinear, cfg.Mathpix.RetryBackoff)
	assert.True(t, cfg.Rules().IsIndexDocument("docs/README.md"))
}

func TestLoad_EmptyIndexNamesFallBack(t *testing.T) {
	input := t.TempDir()
	writeConfig(t, input, "nav:\n  index_names: []\n")
	cfg, err := LoadDir(input)
	require.NoError(t, err)
	assert.Equal(t, []string{"index"}, cfg.Nav.IndexNames)
}

func TestLoad_UnknownBackoffFallsBack(t *testing.T) {
	input := t.TempDir()
	writeConfig(t, input, "mathpix:\n  retry_backoff: random\n")
	cfg, err := LoadDir(input)
	require.NoError(t, err)
	assert.Equal(t, RetryBackoffExponential, cfg.Mathpix.RetryBackoff)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad yaml":       "title: [unterminated\n",
		"bad port":       "serve:\n  port: 70000\n",
		"bad index name": "nav:\n  index_names: [index.md]\n",
		"bad base url":   "mathpix:\n  base_url: not-a-url\n",
		"negative retry": "mathpix:\n  max_retries: -1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			input := t.TempDir()
			writeConfig(t, input, body)
			_, err := LoadDir(input)
			require.Error(t, err)
		})
	}
}

func TestBootstrap(t *testing.T) {
	input := t.TempDir()
	layout := []byte("<html>{{ .Content }}</html>")

	created, err := Bootstrap(input, layout)
	require.NoError(t, err)
	assert.True(t, created)
	assert.FileExists(t, Path(input))
	got, err := os.ReadFile(LayoutPath(input))
	require.NoError(t, err)
	assert.Equal(t, layout, got)

	cfg, err := LoadDir(input)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg, "bootstrapped file round-trips to defaults")

	require.NoError(t, os.WriteFile(Path(input), []byte("title: Mine\n"), 0o644))
	created, err = Bootstrap(input, layout)
	require.NoError(t, err)
	assert.False(t, created)
	cfg, err = LoadDir(input)
	require.NoError(t, err)
	assert.Equal(t, "Mine", cfg.Title, "existing files are never overwritten")
}

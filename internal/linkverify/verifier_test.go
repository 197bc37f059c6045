package linkverify

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeOutput(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
}

func TestVerify(t *testing.T) {
	out := t.TempDir()
	writeOutput(t, out, map[string]string{
		"index.html":             `<a href="guide/">guide</a><a href="https://example.com">ext</a><img src="logo.png">`,
		"logo.png":               "png",
		"guide/index.html":       `<a href="intro/">intro</a><a href="../">home</a><a href="missing/">gone</a>`,
		"guide/intro/index.html": `<a href="../">up</a><a href="/guide/#top">abs</a><a href="../../nope.png">img</a><a href="#x">self</a>`,
	})

	report, err := New(out).Verify(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Pages)
	assert.Equal(t, 8, report.Links)
	assert.False(t, report.OK())
	assert.Equal(t, []Broken{
		{Page: "guide/index.html", URL: "missing/", Tag: "a", Target: "guide/missing/index.html"},
		{Page: "guide/intro/index.html", URL: "../../nope.png", Tag: "a", Target: "nope.png"},
	}, report.Broken)
}

func TestVerify_AllGood(t *testing.T) {
	out := t.TempDir()
	writeOutput(t, out, map[string]string{
		"index.html":       `<a href="./">self</a><a href="docs">dir</a>`,
		"docs/index.html": `<a href="/">root</a>`,
	})

	report, err := New(out).Verify(context.Background())
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 3, report.Links)
}

func TestVerify_MissingOutput(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent")).Verify(context.Background())
	require.Error(t, err)
}

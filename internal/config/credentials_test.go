package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *CredentialStore {
	t.Helper()
	t.Setenv(EnvOCRAPIKey, "")
	t.Setenv(EnvSnipToken, "")
	return &CredentialStore{Path: filepath.Join(t.TempDir(), DirName, credentialsFile)}
}

func TestCredentialStore_LoadMissing(t *testing.T) {
	creds, err := newStore(t).Load()
	require.NoError(t, err)
	assert.True(t, creds.Empty())
}

func TestCredentialStore_UpdateMergesAndExports(t *testing.T) {
	s := newStore(t)
	_, err := s.Update(map[string]string{EnvSnipToken: "snip-1"})
	require.NoError(t, err)
	merged, err := s.Update(map[string]string{EnvOCRAPIKey: "key-1"})
	require.NoError(t, err)
	assert.Equal(t, "snip-1", merged[EnvSnipToken])
	assert.Equal(t, "key-1", os.Getenv(EnvOCRAPIKey))

	info, err := os.Stat(s.Path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	creds, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, Credentials{OCRAPIKey: "key-1", SnipToken: "snip-1"}, creds)
}

func TestCredentialStore_EnvironmentOverridesFile(t *testing.T) {
	s := newStore(t)
	_, err := s.Update(map[string]string{EnvOCRAPIKey: "from-file"})
	require.NoError(t, err)
	t.Setenv(EnvOCRAPIKey, "from-env")

	creds, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", creds.OCRAPIKey)
}

func TestCredentialStore_MigratesLegacyFile(t *testing.T) {
	s := newStore(t)
	dir := filepath.Dir(s.Path)
	require.NoError(t, os.MkdirAll(dir, 0o700))
	legacy := filepath.Join(dir, legacyCredentialsFile)
	require.NoError(t, os.WriteFile(legacy, []byte(EnvOCRAPIKey+"=legacy\n"), 0o600))

	creds, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "legacy", creds.OCRAPIKey)
	assert.NoFileExists(t, legacy)
	assert.FileExists(t, s.Path)
}

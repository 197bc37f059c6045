package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Environment keys persisted in the credentials file.
const (
	EnvOCRAPIKey = "MATHPIX_OCR_API_KEY"
	EnvSnipToken = "MATHPIX_SNIP_AUTH_TOKEN"
)

const (
	credentialsFile       = "config"
	legacyCredentialsFile = "credentials"
)

// Credentials authenticate against the conversion API. The OCR API key takes
// precedence over the Snip token.
type Credentials struct {
	OCRAPIKey string
	SnipToken string
}

// Empty reports whether no credential is set.
func (c Credentials) Empty() bool {
	return c.OCRAPIKey == "" && c.SnipToken == ""
}

// CredentialStore persists credentials as a dotenv file.
type CredentialStore struct {
	Path string
}

// DefaultCredentialStore returns the store at ~/.spectra/config.
func DefaultCredentialStore() (*CredentialStore, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	return &CredentialStore{Path: filepath.Join(home, DirName, credentialsFile)}, nil
}

// migrate renames the legacy credentials file next to Path when Path does not
// exist yet.
func (s *CredentialStore) migrate() error {
	legacy := filepath.Join(filepath.Dir(s.Path), legacyCredentialsFile)
	if _, err := os.Stat(legacy); err != nil {
		return nil
	}
	if _, err := os.Stat(s.Path); err == nil {
		return nil
	}
	if err := os.Rename(legacy, s.Path); err != nil {
		return fmt.Errorf("migrate %s: %w", legacy, err)
	}
	return nil
}

func (s *CredentialStore) read() (map[string]string, error) {
	if err := s.migrate(); err != nil {
		return nil, err
	}
	values, err := godotenv.Read(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Path, err)
	}
	return values, nil
}

// Load returns the stored credentials. Values in the process environment
// override the file.
func (s *CredentialStore) Load() (Credentials, error) {
	values, err := s.read()
	if err != nil {
		return Credentials{}, err
	}
	pick := func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return values[key]
	}
	return Credentials{OCRAPIKey: pick(EnvOCRAPIKey), SnipToken: pick(EnvSnipToken)}, nil
}

// Update merges values into the file, writes it with owner-only permissions
// and exports the merged set into the process environment.
func (s *CredentialStore) Update(values map[string]string) (map[string]string, error) {
	merged, err := s.read()
	if err != nil {
		return nil, err
	}
	for k, v := range values {
		merged[k] = v
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return nil, fmt.Errorf("create %s: %w", filepath.Dir(s.Path), err)
	}
	if err := godotenv.Write(merged, s.Path); err != nil {
		return nil, fmt.Errorf("write %s: %w", s.Path, err)
	}
	if err := os.Chmod(s.Path, 0o600); err != nil {
		return nil, fmt.Errorf("chmod %s: %w", s.Path, err)
	}
	for k, v := range merged {
		if err := os.Setenv(k, v); err != nil {
			return nil, fmt.Errorf("export %s: %w", k, err)
		}
	}
	return merged, nil
}

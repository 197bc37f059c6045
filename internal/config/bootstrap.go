package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configHeader = "# spectra site configuration\n"

// Bootstrap creates <input>/.spectra with a default configuration file and
// the given page layout when they are missing. It reports whether the
// configuration directory was created.
func Bootstrap(input string, layout []byte) (bool, error) {
	dir := filepath.Join(input, DirName)
	created := false
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		created = true
	} else if err != nil {
		return false, fmt.Errorf("stat %s: %w", dir, err)
	}

	if err := os.MkdirAll(filepath.Dir(LayoutPath(input)), 0o755); err != nil {
		return false, fmt.Errorf("create %s: %w", dir, err)
	}

	if err := writeIfMissing(Path(input), func() ([]byte, error) {
		data, err := yaml.Marshal(Default())
		if err != nil {
			return nil, err
		}
		return append([]byte(configHeader), data...), nil
	}); err != nil {
		return created, err
	}
	if len(layout) > 0 {
		if err := writeIfMissing(LayoutPath(input), func() ([]byte, error) { return layout, nil }); err != nil {
			return created, err
		}
	}
	return created, nil
}

func writeIfMissing(path string, content func() ([]byte, error)) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	data, err := content()
	if err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

package docs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"

	"git.home.luguber.info/inful/spectra/internal/config"
	"git.home.luguber.info/inful/spectra/internal/sitepath"
)

// ComputeHash returns a fingerprint of a discovered file set built from
// relative paths, sizes and modification times. Watch mode compares
// fingerprints to skip rebuilds when nothing relevant changed.
func ComputeHash(files []DocFile) string {
	keys := make([]string, 0, len(files))
	for _, f := range files {
		keys = append(keys, fmt.Sprintf("%s\x00%d\x00%d", f.RelativePath, f.Size, f.ModTime.UnixNano()))
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint discovers root and hashes the result together with the site
// configuration file and layout override, which discovery skips as hidden.
func Fingerprint(root string, rules sitepath.Rules, outputDir string) (string, error) {
	files, err := NewDiscovery(root, rules, outputDir).Discover()
	if err != nil {
		return "", err
	}
	for _, p := range []string{config.Path(root), config.LayoutPath(root)} {
		if fi, err := os.Stat(p); err == nil {
			files = append(files, DocFile{RelativePath: p, Size: fi.Size(), ModTime: fi.ModTime()})
		}
	}
	return ComputeHash(files), nil
}

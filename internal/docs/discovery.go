// Package docs discovers the documents and assets of a content directory and
// assigns each its canonical link and output path.
package docs

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	derrors "git.home.luguber.info/inful/spectra/internal/docs/errors"
	"git.home.luguber.info/inful/spectra/internal/logfields"
	"git.home.luguber.info/inful/spectra/internal/sitepath"
)

// DocFile is a discovered document or asset.
type DocFile struct {
	Path         string // filesystem path
	RelativePath string // slash-separated, relative to the content root
	Link         string // canonical link
	OutputPath   string // slash-separated, relative to the output directory
	IsAsset      bool
	IsIndex      bool
	Size         int64
	ModTime      time.Time
	Content      []byte // loaded on demand
}

// Discovery walks a content root.
type Discovery struct {
	root       string
	rules      sitepath.Rules
	outputDir  string
	logger     *slog.Logger
	collisions []error
}

// NewDiscovery creates a discovery for root. outputDir is skipped when it lies
// inside root.
func NewDiscovery(root string, rules sitepath.Rules, outputDir string) *Discovery {
	return &Discovery{root: root, rules: rules, outputDir: outputDir, logger: slog.Default()}
}

// WithLogger sets the logger used for traversal warnings.
func (d *Discovery) WithLogger(l *slog.Logger) *Discovery {
	if l != nil {
		d.logger = l
	}
	return d
}

// Collisions returns the output path collisions of the last Discover call.
// Each wraps ErrPathCollision.
func (d *Discovery) Collisions() []error {
	return d.collisions
}

// Discover walks the content root. Hidden entries and the output directory
// are skipped, as are files without an extension that are not documents.
// Unreadable subdirectories are logged and skipped. When two files map to the
// same output path the first one in walk order wins.
func (d *Discovery) Discover() ([]DocFile, error) {
	d.collisions = nil

	info, err := os.Stat(d.root)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", derrors.ErrDocsPathNotFound, d.root)
	case err != nil:
		return nil, fmt.Errorf("%w: %s: %w", derrors.ErrDocsDirWalkFailed, d.root, err)
	case !info.IsDir():
		return nil, fmt.Errorf("%w: %s", derrors.ErrNotADirectory, d.root)
	}

	skip := ""
	if d.outputDir != "" {
		if abs, err := filepath.Abs(d.outputDir); err == nil {
			skip = abs
		}
	}

	var files []DocFile
	byOutput := map[string]string{}
	err = filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == d.root {
				return walkErr
			}
			d.logger.Warn("Failed to read directory; skipping", logfields.Path(path), logfields.Error(walkErr))
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == d.root {
			return nil
		}

		name := entry.Name()
		if sitepath.IsHidden(name) {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			if skip != "" {
				if abs, err := filepath.Abs(path); err == nil && abs == skip {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if entry.Type()&fs.ModeSymlink != 0 {
			// Symlinked files are followed; symlinked directories are not
			// descended into, matching the navigation tree.
			if target, err := os.Stat(path); err != nil || target.IsDir() {
				d.logger.Debug("Skipping symlink", logfields.Path(path))
				return nil
			}
		}

		doc, ok, err := d.describe(path, entry)
		if err != nil || !ok {
			return err
		}
		if prev, exists := byOutput[doc.OutputPath]; exists {
			collision := fmt.Errorf("%w: %s and %s both map to %s", derrors.ErrPathCollision, prev, doc.RelativePath, doc.OutputPath)
			d.collisions = append(d.collisions, collision)
			d.logger.Warn("Output path collision; keeping first file", logfields.File(doc.RelativePath), logfields.Target(doc.OutputPath), slog.String("kept", prev))
			return nil
		}
		byOutput[doc.OutputPath] = doc.RelativePath
		files = append(files, doc)
		d.logger.Debug("Discovered file", logfields.File(doc.RelativePath), logfields.Link(doc.Link), slog.Bool("asset", doc.IsAsset))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", derrors.ErrDocsDirWalkFailed, d.root, err)
	}
	return files, nil
}

func (d *Discovery) describe(path string, entry fs.DirEntry) (DocFile, bool, error) {
	name := entry.Name()
	isDoc := sitepath.IsDocument(name)
	if !isDoc && !sitepath.HasFileExtension(name) {
		d.logger.Debug("Skipping file without extension", logfields.Path(path))
		return DocFile{}, false, nil
	}

	rel, err := filepath.Rel(d.root, path)
	if err != nil {
		return DocFile{}, false, fmt.Errorf("%w: %w", derrors.ErrInvalidRelativePath, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		// Removed between listing and stat.
		d.logger.Warn("Failed to stat file; skipping", logfields.Path(path), logfields.Error(err))
		return DocFile{}, false, nil
	}

	link := d.rules.ToCanonicalLink(path, d.root)
	return DocFile{
		Path:         path,
		RelativePath: filepath.ToSlash(rel),
		Link:         link,
		OutputPath:   sitepath.OutputPath(link),
		IsAsset:      !isDoc,
		IsIndex:      isDoc && d.rules.IsIndexDocument(name),
		Size:         info.Size(),
		ModTime:      info.ModTime(),
	}, true, nil
}

// LoadContent reads the file content once.
func (df *DocFile) LoadContent() error {
	if df.Content != nil {
		return nil
	}
	content, err := os.ReadFile(df.Path)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", derrors.ErrFileReadFailed, df.Path, err)
	}
	df.Content = content
	return nil
}

// HasRootIndex reports whether files contain the index document of the content
// root.
func HasRootIndex(files []DocFile) bool {
	for _, f := range files {
		if f.IsIndex && f.Link == sitepath.RootLink {
			return true
		}
	}
	return false
}

// Pages returns the documents of files.
func Pages(files []DocFile) []DocFile {
	var out []DocFile
	for _, f := range files {
		if !f.IsAsset {
			out = append(out, f)
		}
	}
	return out
}

// Assets returns the non-document files of files.
func Assets(files []DocFile) []DocFile {
	var out []DocFile
	for _, f := range files {
		if f.IsAsset {
			out = append(out, f)
		}
	}
	return out
}

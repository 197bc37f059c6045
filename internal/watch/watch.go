// Package watch rebuilds a site when files under its content root change.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/spectra/internal/config"
	"git.home.luguber.info/inful/spectra/internal/foundation/errors"
	"git.home.luguber.info/inful/spectra/internal/logfields"
)

// DefaultDebounce is the quiet period after the last event before a rebuild starts.
const DefaultDebounce = 300 * time.Millisecond

// RebuildFunc runs one rebuild. hash is the fingerprint of the content that
// triggered it, or empty when no fingerprint function is set.
type RebuildFunc func(ctx context.Context, hash string) error

// Watcher debounces file system events under a root and runs at most one
// rebuild at a time. Events arriving during a rebuild queue a single
// follow-up rebuild.
type Watcher struct {
	root        string
	file        string // set when watching a single file
	exclude     []string
	debounce    time.Duration
	rebuild     RebuildFunc
	fingerprint func() (string, error)
	logger      *slog.Logger

	rebuildReq chan struct{}
	ready      chan struct{}

	mu    sync.Mutex
	timer *time.Timer
}

// New watches root, a directory or a single file.
func New(root string, rebuild RebuildFunc) *Watcher {
	w := &Watcher{
		root:       root,
		debounce:   DefaultDebounce,
		rebuild:    rebuild,
		logger:     slog.Default(),
		rebuildReq: make(chan struct{}, 1),
		ready:      make(chan struct{}),
	}
	if fi, err := os.Stat(root); err == nil && !fi.IsDir() {
		w.file = filepath.Clean(root)
		w.root = filepath.Dir(root)
	}
	return w
}

// WithDebounce overrides DefaultDebounce.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	if d > 0 {
		w.debounce = d
	}
	return w
}

// WithExclude ignores events under the given paths, typically the build
// output directory when it lives inside the content root.
func (w *Watcher) WithExclude(paths ...string) *Watcher {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		w.exclude = append(w.exclude, filepath.Clean(p))
	}
	return w
}

// WithFingerprint sets a function summarizing the watched content. Rebuilds
// whose fingerprint matches the previous one are skipped.
func (w *Watcher) WithFingerprint(fn func() (string, error)) *Watcher {
	w.fingerprint = fn
	return w
}

// WithLogger sets the logger.
func (w *Watcher) WithLogger(l *slog.Logger) *Watcher {
	if l != nil {
		w.logger = l
	}
	return w
}

// Ready is closed once the watches are in place.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

// Trigger schedules a rebuild after the debounce period. Repeated calls
// restart the period.
func (w *Watcher) Trigger() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case w.rebuildReq <- struct{}{}:
		default:
		}
	})
}

// Run watches until ctx is canceled. A Watcher runs once.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.WrapError(err, errors.CategoryRuntime, "failed to create file watcher").Build()
	}
	defer func() { _ = fw.Close() }()

	if err := w.addDirsRecursive(fw, w.root); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to watch directory").
			WithContext("path", w.root).
			Build()
	}
	close(w.ready)
	w.logger.Info("Watching for changes", logfields.Path(w.root))

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.worker(ctx)
	}()
	defer func() {
		cancel()
		w.stopTimer()
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fw, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("File watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *Watcher) worker(ctx context.Context) {
	var last string
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.rebuildReq:
		}

		hash := ""
		if w.fingerprint != nil {
			h, err := w.fingerprint()
			if err != nil {
				w.logger.Warn("Failed to fingerprint content", logfields.Error(err))
			} else if h == last {
				w.logger.Debug("Content unchanged, skipping rebuild")
				continue
			}
			hash = h
		}

		start := time.Now()
		if err := w.rebuild(ctx, hash); err != nil {
			w.logger.Error("Rebuild failed", logfields.Error(err))
		} else {
			w.logger.Info("Rebuilt", logfields.Duration(time.Since(start)))
		}
		if hash != "" {
			last = hash
		}
	}
}

func (w *Watcher) handleEvent(fw *fsnotify.Watcher, ev fsnotify.Event) {
	if w.shouldIgnore(ev.Name) {
		return
	}
	if ev.Op&fsnotify.Create == fsnotify.Create && w.file == "" {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			_ = w.addDirsRecursive(fw, ev.Name)
		}
	}
	w.logger.Debug("File change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
	w.Trigger()
}

func (w *Watcher) addDirsRecursive(fw *fsnotify.Watcher, root string) error {
	if w.file != "" {
		return fw.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && (shouldIgnoreName(d.Name()) || w.excluded(path)) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			w.logger.Warn("Watch add failed", logfields.Path(path), logfields.Error(err))
		}
		return nil
	})
}

func (w *Watcher) shouldIgnore(path string) bool {
	if w.file != "" {
		return filepath.Clean(path) != w.file
	}
	return shouldIgnoreName(filepath.Base(path)) || w.excluded(path)
}

func (w *Watcher) excluded(path string) bool {
	if len(w.exclude) == 0 {
		return false
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	for _, ex := range w.exclude {
		if path == ex || strings.HasPrefix(path, ex+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// shouldIgnoreName reports hidden entries other than the site configuration
// directory, editor swap files and OS metadata.
func shouldIgnoreName(base string) bool {
	switch {
	case base == config.DirName:
		return false
	case strings.HasPrefix(base, "."):
		return true
	case strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swx"),
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"):
		return true
	case base == "Thumbs.db":
		return true
	}
	return false
}

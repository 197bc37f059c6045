package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDebounce = 20 * time.Millisecond

type recorder struct {
	mu     sync.Mutex
	hashes []string
}

func (r *recorder) rebuild(_ context.Context, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hashes = append(r.hashes, hash)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.hashes)
}

func start(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop")
		}
	})
	select {
	case <-w.Ready():
	case err := <-done:
		t.Fatalf("watcher exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher not ready")
	}
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestShouldIgnoreName(t *testing.T) {
	cases := map[string]bool{
		"page.md":      false,
		"logo.png":     false,
		".spectra":     false,
		".git":         true,
		".DS_Store":    true,
		"page.md~":     true,
		".page.md.swp": true,
		"page.swx":     true,
		"#page.md#":    true,
		"Thumbs.db":    true,
	}
	for name, want := range cases {
		assert.Equal(t, want, shouldIgnoreName(name), name)
	}
}

func TestTrigger_Debounces(t *testing.T) {
	rec := &recorder{}
	w := New(t.TempDir(), rec.rebuild).WithDebounce(testDebounce)
	start(t, w)

	for range 5 {
		w.Trigger()
	}
	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(5 * testDebounce)
	assert.Equal(t, 1, rec.count())
}

func TestRun_RebuildsOnChange(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	w := New(root, rec.rebuild).WithDebounce(testDebounce)
	start(t, w)

	write(t, filepath.Join(root, "index.md"), "# Home\n")
	require.Eventually(t, func() bool { return rec.count() >= 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestRun_WatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	w := New(root, rec.rebuild).WithDebounce(testDebounce)
	start(t, w)

	require.NoError(t, os.Mkdir(filepath.Join(root, "guide"), 0o750))
	require.Eventually(t, func() bool { return rec.count() >= 1 }, 2*time.Second, 5*time.Millisecond)
	before := rec.count()

	write(t, filepath.Join(root, "guide", "intro.md"), "# Intro\n")
	require.Eventually(t, func() bool { return rec.count() > before }, 2*time.Second, 5*time.Millisecond)
}

func TestRun_IgnoresExcludedAndHiddenPaths(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "_site")
	require.NoError(t, os.Mkdir(out, 0o750))
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o750))

	rec := &recorder{}
	w := New(root, rec.rebuild).WithDebounce(testDebounce).WithExclude(out)
	start(t, w)

	write(t, filepath.Join(out, "index.html"), "<html></html>")
	write(t, filepath.Join(root, ".git", "HEAD"), "ref")
	write(t, filepath.Join(root, "page.md.swp"), "x")
	time.Sleep(10 * testDebounce)
	assert.Equal(t, 0, rec.count())
}

func TestRun_ConfigDirectoryIsWatched(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".spectra"), 0o750))
	rec := &recorder{}
	w := New(root, rec.rebuild).WithDebounce(testDebounce)
	start(t, w)

	write(t, filepath.Join(root, ".spectra", "config.yaml"), "title: x\n")
	require.Eventually(t, func() bool { return rec.count() >= 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestRun_SingleFile(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "doc.md")
	write(t, file, "one\n")

	rec := &recorder{}
	w := New(file, rec.rebuild).WithDebounce(testDebounce)
	start(t, w)

	write(t, filepath.Join(root, "other.md"), "x\n")
	time.Sleep(10 * testDebounce)
	assert.Equal(t, 0, rec.count())

	write(t, file, "two\n")
	require.Eventually(t, func() bool { return rec.count() >= 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestWorker_SkipsUnchangedFingerprint(t *testing.T) {
	var fp atomic.Value
	fp.Store("a")
	rec := &recorder{}
	w := New(t.TempDir(), rec.rebuild).
		WithDebounce(testDebounce).
		WithFingerprint(func() (string, error) { return fp.Load().(string), nil })
	start(t, w)

	w.Trigger()
	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 5*time.Millisecond)

	w.Trigger()
	time.Sleep(10 * testDebounce)
	assert.Equal(t, 1, rec.count())

	fp.Store("b")
	w.Trigger()
	require.Eventually(t, func() bool { return rec.count() == 2 }, 2*time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{"a", "b"}, rec.hashes)
}

func TestWorker_SinglePendingFollowUp(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	rebuild := func(ctx context.Context, _ string) error {
		if calls.Add(1) == 1 {
			select {
			case <-release:
			case <-ctx.Done():
			}
		}
		return nil
	}
	w := New(t.TempDir(), rebuild).WithDebounce(testDebounce)
	start(t, w)

	w.Trigger()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	// Three separate debounced requests while the first rebuild runs.
	for range 3 {
		w.Trigger()
		time.Sleep(3 * testDebounce)
	}
	close(release)

	require.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(5 * testDebounce)
	assert.Equal(t, int32(2), calls.Load())
}

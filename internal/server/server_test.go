package server

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/spectra/internal/foundation/errors"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
}

func sourceTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "index.md", "# Home\n")
	writeFile(t, root, "guide/intro.md", "# Intro\n\nSee [other](other.md).\n")
	writeFile(t, root, "guide/other.md", "plain text\n")
	writeFile(t, root, "logo.png", "PNGDATA")
	writeFile(t, root, ".spectra/config.yaml", "title: x\n")
	return root
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func newSourceServer(t *testing.T, root string) http.Handler {
	t.Helper()
	h, err := NewSourceHandler(root, nil)
	require.NoError(t, err)
	return New(h, Options{}).Handler()
}

func TestSource_RendersDocuments(t *testing.T) {
	srv := newSourceServer(t, sourceTree(t))

	rec := get(t, srv, "/guide/intro.md")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "<title>Intro</title>")
	assert.Contains(t, body, `href="other.md"`)
	assert.NotContains(t, body, "/livereload.js")

	rec = get(t, srv, "/guide/other.md")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<title>other</title>")
}

func TestSource_ServesOtherFilesAsIs(t *testing.T) {
	srv := newSourceServer(t, sourceTree(t))

	rec := get(t, srv, "/logo.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PNGDATA", rec.Body.String())
}

func TestSource_DirectoryListing(t *testing.T) {
	srv := newSourceServer(t, sourceTree(t))

	rec := get(t, srv, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Index of /")
	assert.Contains(t, body, `<a href="guide/">guide/</a>`)
	assert.Contains(t, body, `<a href="index.md">index.md</a>`)
	assert.NotContains(t, body, ".spectra")
	assert.NotContains(t, body, `href="../"`)
	assert.Less(t, strings.Index(body, "guide/"), strings.Index(body, "index.md"), "directories first")

	rec = get(t, srv, "/guide/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `href="../"`)
	assert.Contains(t, rec.Body.String(), `href="intro.md"`)
}

func TestSource_DirectoryWithoutSlashRedirects(t *testing.T) {
	srv := newSourceServer(t, sourceTree(t))

	rec := get(t, srv, "/guide")
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/guide/", rec.Header().Get("Location"))
}

func TestSource_NotFoundAndHidden(t *testing.T) {
	srv := newSourceServer(t, sourceTree(t))

	assert.Equal(t, http.StatusNotFound, get(t, srv, "/missing.md").Code)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/.spectra/config.yaml").Code)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/../etc/passwd").Code)
}

func TestSource_MethodNotAllowed(t *testing.T) {
	h, err := NewSourceHandler(sourceTree(t), nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/index.md", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSource_SingleFile(t *testing.T) {
	root := sourceTree(t)
	h, err := NewSourceHandler(filepath.Join(root, "guide", "intro.md"), nil)
	require.NoError(t, err)
	h.WithLiveReload(true)

	for _, target := range []string{"/", "/anything"} {
		rec := get(t, h, target)
		require.Equal(t, http.StatusOK, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "<title>Intro</title>")
		assert.Contains(t, rec.Body.String(), `<script src="/livereload.js"></script>`)
	}
}

func TestSource_MissingSource(t *testing.T) {
	_, err := NewSourceHandler(filepath.Join(t.TempDir(), "nope"), nil)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}

func TestSource_InvalidFrontMatterIsReported(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "bad.md", "---\ntitle: x\n")
	srv := newSourceServer(t, root)

	rec := get(t, srv, "/bad.md")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSite_ServesOutput(t *testing.T) {
	out := t.TempDir()
	writeFile(t, out, "index.html", "<html>home</html>")
	writeFile(t, out, "logo.png", "PNGDATA")
	srv := New(NewSiteHandler(out), Options{}).Handler()

	rec := get(t, srv, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "home")
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
}

func TestSite_BuildErrorPage(t *testing.T) {
	out := t.TempDir()
	writeFile(t, out, "index.html", "<html>stale</html>")
	writeFile(t, out, "logo.png", "PNGDATA")

	var buildErr error = errors.BuildError("1 page failed").Build()
	h := NewSiteHandler(out).WithLiveReload(true).WithStatus(func() error { return buildErr })
	srv := New(h, Options{}).Handler()

	rec := get(t, srv, "/")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Build failed")
	assert.Contains(t, body, "1 page failed")
	assert.Contains(t, body, "/livereload.js")
	assert.NotContains(t, body, "stale")

	rec = get(t, srv, "/logo.png")
	require.Equal(t, http.StatusOK, rec.Code, "assets are still served")

	buildErr = nil
	rec = get(t, srv, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stale")
}

func TestServer_Routes(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "spectra_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	content := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { http.NotFound(w, nil) })
	srv := New(content, Options{LiveReload: NewLiveReloadHub(nil), Gatherer: reg}).Handler()

	rec := get(t, srv, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())

	rec = get(t, srv, "/livereload.js")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "new EventSource('/livereload')")

	rec = get(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "spectra_test_total 1")
}

func TestServer_OptionalRoutesDisabled(t *testing.T) {
	content := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "content", http.StatusTeapot)
	})
	srv := New(content, Options{}).Handler()

	assert.Equal(t, http.StatusTeapot, get(t, srv, "/livereload.js").Code)
	assert.Equal(t, http.StatusTeapot, get(t, srv, "/metrics").Code)
}

func TestServer_ServeAndShutdown(t *testing.T) {
	content := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "hi") })
	srv := New(content, Options{Addr: "127.0.0.1:0"})

	ctx, cancel := context.WithCancel(context.Background())
	urls := make(chan string, 1)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, func(u string) { urls <- u }) }()

	var base string
	select {
	case base = <-urls:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}
	assert.True(t, strings.HasPrefix(base, "http://127.0.0.1:"))

	resp, err := http.Get(base + "healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServer_ListenError(t *testing.T) {
	srv := New(http.NotFoundHandler(), Options{Addr: "256.0.0.1:bad"})
	err := srv.Serve(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNetwork))
}

func readEvent(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}
}

func TestLiveReload_StreamsHashes(t *testing.T) {
	hub := NewLiveReloadHub(nil)
	ts := httptest.NewServer(New(http.NotFoundHandler(), Options{LiveReload: hub}).Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/livereload", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	first := readEvent(t, r)
	assert.Contains(t, first, `"hash":"`)
	assert.Equal(t, 1, hub.Clients())

	hub.Broadcast("abc123")
	assert.Equal(t, `{"hash":"abc123"}`, readEvent(t, r))

	hub.Shutdown()
	assert.Equal(t, 0, hub.Clients())
}

func TestLiveReload_ReplaysLastHash(t *testing.T) {
	hub := NewLiveReloadHub(nil)
	hub.Broadcast("first")
	hub.Broadcast("")
	ts := httptest.NewServer(hub)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, `{"hash":"first"}`, readEvent(t, bufio.NewReader(resp.Body)))
}

func TestLiveReload_ClosedHubRejectsClients(t *testing.T) {
	hub := NewLiveReloadHub(nil)
	hub.Shutdown()
	hub.Shutdown()
	hub.Broadcast("ignored")

	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livereload", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

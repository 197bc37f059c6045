package server

import (
	"bytes"
	"html/template"
	"net/http"
	"path"
	"strings"

	"git.home.luguber.info/inful/spectra/internal/site"
)

// SiteHandler serves a generated site directory. While the last build has
// failed, page requests get an error page instead of stale output.
type SiteHandler struct {
	files      http.Handler
	status     func() error
	liveReload bool
}

// NewSiteHandler serves the files under dir.
func NewSiteHandler(dir string) *SiteHandler {
	return &SiteHandler{files: http.FileServer(http.Dir(dir))}
}

// WithStatus sets the function reporting the last build error, nil when the
// last build succeeded.
func (h *SiteHandler) WithStatus(fn func() error) *SiteHandler {
	h.status = fn
	return h
}

// WithLiveReload includes the live reload script in error pages, so they
// disappear once a rebuild succeeds.
func (h *SiteHandler) WithLiveReload(enabled bool) *SiteHandler {
	h.liveReload = enabled
	return h
}

func (h *SiteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.status != nil && isPageRequest(r.URL.Path) {
		if err := h.status(); err != nil {
			h.serveBuildError(w, r, err)
			return
		}
	}
	w.Header().Set("Cache-Control", "no-cache")
	h.files.ServeHTTP(w, r)
}

var buildErrorTemplate = template.Must(template.New("error").Parse(`<h1>Build failed</h1>
<pre class="build-error">{{.}}</pre>
`))

func (h *SiteHandler) serveBuildError(w http.ResponseWriter, r *http.Request, buildErr error) {
	var content bytes.Buffer
	if err := buildErrorTemplate.Execute(&content, buildErr.Error()); err != nil {
		http.Error(w, buildErr.Error(), http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	err := site.RenderDocument(&buf, site.DocumentData{
		Title:      "Build failed",
		Content:    template.HTML(content.String()), //nolint:gosec // output of html/template
		LiveReload: h.liveReload,
	})
	if err != nil {
		http.Error(w, buildErr.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusInternalServerError)
	if r.Method != http.MethodHead {
		_, _ = w.Write(buf.Bytes())
	}
}

func isPageRequest(urlPath string) bool {
	if strings.HasSuffix(urlPath, "/") {
		return true
	}
	ext := path.Ext(urlPath)
	return ext == "" || ext == ".html"
}

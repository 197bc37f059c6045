package server

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"git.home.luguber.info/inful/spectra/internal/config"
	"git.home.luguber.info/inful/spectra/internal/foundation/errors"
	"git.home.luguber.info/inful/spectra/internal/logfields"
	"git.home.luguber.info/inful/spectra/internal/markdown"
	"git.home.luguber.info/inful/spectra/internal/site"
	"git.home.luguber.info/inful/spectra/internal/sitepath"
)

// SourceHandler serves a content file or directory without building a site.
// Documents are rendered to standalone HTML on every request. Their links are
// left as written, so a link to a sibling .md file is rendered in turn when
// followed. Directories get a listing and everything else is served as-is.
type SourceHandler struct {
	root       string
	isDir      bool
	renderer   *markdown.Renderer
	math       bool
	liveReload bool
	logger     *slog.Logger
	adapter    *errors.HTTPErrorAdapter
}

// NewSourceHandler serves source, a file or directory. cfg supplies the
// Markdown options; nil uses the defaults.
func NewSourceHandler(source string, cfg *config.Config) (*SourceHandler, error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryNotFound, "source does not exist").
			WithContext("path", source).
			Fatal().
			Build()
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return &SourceHandler{
		root:  source,
		isDir: info.IsDir(),
		renderer: markdown.New(markdown.Options{
			Breaks: cfg.Markdown.Breaks,
			HTML:   cfg.Markdown.HTML,
			Rules:  cfg.Rules(),
		}),
		math:    cfg.Markdown.Math,
		logger:  slog.Default(),
		adapter: errors.NewHTTPErrorAdapter(nil),
	}, nil
}

// WithLiveReload makes rendered pages include the live reload script.
func (h *SourceHandler) WithLiveReload(enabled bool) *SourceHandler {
	h.liveReload = enabled
	return h
}

// WithLogger sets the logger.
func (h *SourceHandler) WithLogger(l *slog.Logger) *SourceHandler {
	if l != nil {
		h.logger = l
		h.adapter = errors.NewHTTPErrorAdapter(l)
	}
	return h
}

func (h *SourceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	if !h.isDir {
		h.serveFile(w, r, h.root, filepath.Base(h.root))
		return
	}

	urlPath := path.Clean("/" + r.URL.Path)
	if hasHiddenSegment(urlPath) {
		h.adapter.WriteError(w, r, errors.NotFoundError("not found").WithContext("path", urlPath).Build())
		return
	}
	full := filepath.Join(h.root, filepath.FromSlash(urlPath))
	info, err := os.Stat(full)
	if err != nil {
		h.adapter.WriteError(w, r, errors.NotFoundError("not found").WithContext("path", urlPath).Build())
		return
	}

	if info.IsDir() {
		if !strings.HasSuffix(r.URL.Path, "/") {
			http.Redirect(w, r, r.URL.Path+"/", http.StatusMovedPermanently)
			return
		}
		h.serveListing(w, r, full, urlPath)
		return
	}
	h.serveFile(w, r, full, strings.TrimPrefix(urlPath, "/"))
}

func (h *SourceHandler) serveFile(w http.ResponseWriter, r *http.Request, full, rel string) {
	if !sitepath.IsDocument(full) {
		http.ServeFile(w, r, full)
		return
	}

	content, err := os.ReadFile(full)
	if err != nil {
		h.adapter.WriteError(w, r, errors.WrapError(err, errors.CategoryFileSystem, "failed to read document").
			WithContext("path", rel).
			Build())
		return
	}
	page, err := h.renderer.Render(content, rel)
	if err != nil {
		h.adapter.WriteError(w, r, errors.WrapError(err, errors.CategoryBuild, "failed to render document").
			WithContext("path", rel).
			Build())
		return
	}

	var buf bytes.Buffer
	err = site.RenderDocument(&buf, site.DocumentData{
		Title:      page.Title(sitepath.StripKnownExtension(filepath.Base(full))),
		Content:    template.HTML(page.HTML), //nolint:gosec // renderer output
		Math:       h.math,
		LiveReload: h.liveReload,
	})
	if err != nil {
		h.adapter.WriteError(w, r, errors.WrapError(err, errors.CategoryInternal, "failed to render page").Build())
		return
	}
	h.logger.Debug("Rendered document", logfields.Path(rel))
	writeHTML(w, r, buf.Bytes())
}

type listingEntry struct {
	Name string
	Href string
}

var listingTemplate = template.Must(template.New("listing").Parse(`<h1>Index of {{.Path}}</h1>
<ul class="listing">
{{- if .Parent}}
<li><a href="../">../</a></li>
{{- end}}
{{- range .Entries}}
<li><a href="{{.Href}}">{{.Name}}</a></li>
{{- end}}
</ul>
`))

func (h *SourceHandler) serveListing(w http.ResponseWriter, r *http.Request, dir, urlPath string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		h.adapter.WriteError(w, r, errors.WrapError(err, errors.CategoryFileSystem, "failed to read directory").
			WithContext("path", urlPath).
			Build())
		return
	}

	var dirs, files []listingEntry
	for _, e := range entries {
		name := e.Name()
		if sitepath.IsHidden(name) {
			continue
		}
		if e.IsDir() {
			dirs = append(dirs, listingEntry{Name: name + "/", Href: url.PathEscape(name) + "/"})
			continue
		}
		files = append(files, listingEntry{Name: name, Href: url.PathEscape(name)})
	}
	sort.SliceStable(dirs, func(i, j int) bool { return dirs[i].Name < dirs[j].Name })
	sort.SliceStable(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	var content bytes.Buffer
	err = listingTemplate.Execute(&content, struct {
		Path    string
		Parent  bool
		Entries []listingEntry
	}{urlPath, urlPath != "/", append(dirs, files...)})
	if err != nil {
		h.adapter.WriteError(w, r, errors.WrapError(err, errors.CategoryInternal, "failed to render listing").Build())
		return
	}

	var buf bytes.Buffer
	err = site.RenderDocument(&buf, site.DocumentData{
		Title:      "Index of " + urlPath,
		Content:    template.HTML(content.String()), //nolint:gosec // output of html/template
		LiveReload: h.liveReload,
	})
	if err != nil {
		h.adapter.WriteError(w, r, errors.WrapError(err, errors.CategoryInternal, "failed to render listing").Build())
		return
	}
	writeHTML(w, r, buf.Bytes())
}

func writeHTML(w http.ResponseWriter, r *http.Request, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(body)
	}
}

func hasHiddenSegment(urlPath string) bool {
	for _, seg := range strings.Split(urlPath, "/") {
		if seg != "" && sitepath.IsHidden(seg) {
			return true
		}
	}
	return false
}

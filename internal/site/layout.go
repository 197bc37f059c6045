package site

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"os"

	"git.home.luguber.info/inful/spectra/internal/config"
	"git.home.luguber.info/inful/spectra/internal/gitinfo"
	"git.home.luguber.info/inful/spectra/internal/nav"
	"git.home.luguber.info/inful/spectra/internal/sitepath"
)

//go:embed templates/*.html
var templateFS embed.FS

// DefaultLayout returns the built-in page layout. Bootstrap writes it to
// .spectra/layout/page.html so it can be customized.
func DefaultLayout() []byte {
	data, err := templateFS.ReadFile("templates/page.html")
	if err != nil {
		panic(fmt.Sprintf("embedded layout missing: %v", err))
	}
	return data
}

// SiteData is the site-wide part of PageData.
type SiteData struct {
	Title       string
	Description string
	Math        bool
}

// PageData is passed to the page layout.
type PageData struct {
	Title        string
	Content      template.HTML
	Nav          []*nav.Node
	Link         string // canonical link of the page
	Site         SiteData
	LastModified *gitinfo.Info
	LiveReload   bool
	BuildID      string
}

// NavItem is a navigation node prepared for a specific page.
type NavItem struct {
	Node     *nav.Node
	Current  bool
	Children NavLevel
}

// NavLevel is one list of the navigation as seen from a page.
type NavLevel struct {
	Nodes []NavItem
}

func navLevel(nodes []*nav.Node, current string) NavLevel {
	var lvl NavLevel
	for _, n := range nodes {
		lvl.Nodes = append(lvl.Nodes, NavItem{
			Node:     n,
			Current:  n.Linked && n.Link == current,
			Children: navLevel(n.Children, current),
		})
	}
	return lvl
}

var funcs = template.FuncMap{
	"siteURL":  sitepath.SiteURL,
	"navlevel": navLevel,
}

// Layout renders full HTML pages.
type Layout struct {
	page    *template.Template
	listing *template.Template
	// Source is the override file the page template was read from, or empty
	// for the built-in layout.
	Source string
}

// LoadLayout parses the layout override of the content root input when present,
// otherwise the built-in layout.
func LoadLayout(input string) (*Layout, error) {
	listing, err := template.New("listing.html").Funcs(funcs).ParseFS(templateFS, "templates/listing.html")
	if err != nil {
		return nil, fmt.Errorf("parse listing template: %w", err)
	}

	layout := &Layout{listing: listing}
	src := DefaultLayout()
	if input != "" {
		override := config.LayoutPath(input)
		data, err := os.ReadFile(override)
		switch {
		case err == nil:
			src, layout.Source = data, override
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("read layout %s: %w", override, err)
		}
	}

	page, err := template.New("page").Funcs(funcs).Parse(string(src))
	if err != nil {
		if layout.Source != "" {
			return nil, fmt.Errorf("parse layout %s: %w", layout.Source, err)
		}
		return nil, fmt.Errorf("parse built-in layout: %w", err)
	}
	layout.page = page
	return layout, nil
}

// DocumentData is passed to the standalone document template.
type DocumentData struct {
	Title      string
	Content    template.HTML
	Math       bool
	LiveReload bool
}

var documentTemplate = template.Must(template.ParseFS(templateFS, "templates/document.html"))

// RenderDocument wraps rendered Markdown in a self-contained HTML page with no
// site navigation. Used for single-file conversions and previews.
func RenderDocument(w io.Writer, data DocumentData) error {
	return documentTemplate.Execute(w, data)
}

// Execute renders a page.
func (l *Layout) Execute(w io.Writer, data PageData) error {
	return l.page.Execute(w, data)
}

// Listing renders the navigation as page content, used for sites without a
// root index document and for directory listings.
func (l *Layout) Listing(title string, nodes []*nav.Node) (template.HTML, error) {
	var buf bytes.Buffer
	err := l.listing.Execute(&buf, struct {
		Title string
		Nav   []*nav.Node
	}{title, nodes})
	if err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil //nolint:gosec // output of html/template
}

// Package linkverify checks the links of a generated site against the files
// the build wrote.
package linkverify

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"git.home.luguber.info/inful/spectra/internal/foundation/errors"
	"git.home.luguber.info/inful/spectra/internal/sitepath"
)

// Link is a reference found in a generated page.
type Link struct {
	URL       string
	Text      string
	Tag       string // a, img, script, link, video, audio, source
	Attribute string // href or src
}

// ExtractLinks parses an HTML file and returns its links in document order.
func ExtractLinks(htmlPath string) ([]*Link, error) {
	file, err := os.Open(filepath.Clean(htmlPath))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to open HTML file").WithContext("html_path", htmlPath).Build()
	}
	defer func() {
		_ = file.Close()
	}()

	return ExtractLinksFromReader(file)
}

// ExtractLinksFromReader extracts links from HTML read from r.
func ExtractLinksFromReader(r io.Reader) ([]*Link, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "failed to parse HTML").Build()
	}

	var links []*Link
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if l := elementLink(n); l != nil {
				links = append(links, l)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(doc)
	return links, nil
}

func elementLink(n *html.Node) *Link {
	var attr, text string
	switch n.Data {
	case "a":
		attr, text = "href", extractText(n)
	case "link":
		attr, text = "href", getAttr(n, "rel")
	case "img":
		attr, text = "src", getAttr(n, "alt")
	case "script", "video", "audio", "source":
		attr = "src"
	default:
		return nil
	}
	v := getAttr(n, attr)
	if v == "" {
		return nil
	}
	return &Link{URL: v, Text: text, Tag: n.Data, Attribute: attr}
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func extractText(n *html.Node) string {
	if n.Type == html.TextNode {
		return strings.TrimSpace(n.Data)
	}
	var text strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		text.WriteString(extractText(c))
	}
	return strings.TrimSpace(text.String())
}

// ShouldVerify reports whether the link points at a file the site itself
// should contain.
func ShouldVerify(link *Link) bool {
	u := strings.TrimSpace(link.URL)
	return !sitepath.IsSamePage(u) && !sitepath.IsOutbound(u)
}

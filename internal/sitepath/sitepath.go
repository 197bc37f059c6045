// Package sitepath holds the path normalization rules shared by the navigation
// tree, the link rewriter, page output placement and link verification.
//
// Every component that turns a source path or an authored link into a site URL
// must go through this package. Two components disagreeing on a rule (one
// trailing-slashing, the other not) produces silently broken links.
package sitepath

import (
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// RootLink is the canonical link of the content root.
const RootLink = "/"

var defaultIndexNames = []string{"index"}

// Rules carries the configurable part of the rule set. The zero value accepts
// only "index" as an index document name.
type Rules struct {
	// IndexNames are base names (without extension) that mark a directory's
	// landing page. Matching is case-insensitive.
	IndexNames []string
}

// Default returns the rules used when no configuration overrides them.
func Default() Rules {
	return Rules{IndexNames: append([]string(nil), defaultIndexNames...)}
}

func (r Rules) isIndexName(base string) bool {
	names := r.IndexNames
	if len(names) == 0 {
		names = defaultIndexNames
	}
	for _, n := range names {
		if strings.EqualFold(base, n) {
			return true
		}
	}
	return false
}

// IsIndexDocument reports whether p names an index document: a document file
// whose base name, extension removed, is an accepted index name.
func (r Rules) IsIndexDocument(p string) bool {
	base := path.Base(filepath.ToSlash(p))
	if !IsDocument(base) {
		return false
	}
	return r.isIndexName(StripKnownExtension(base))
}

// ToCanonicalLink returns the canonical site-relative link for a filesystem
// path below basePath: relative to basePath, extension stripped, index
// documents collapsed to their directory, lower-cased, slash-terminated unless
// the path is a non-document file with an extension. The content root maps to "/".
func (r Rules) ToCanonicalLink(p, basePath string) string {
	rel, suffix := splitSuffix(relativize(p, basePath))
	out := r.normalizePath(rel)
	if out == "" || out == "./" {
		out = RootLink
	}
	return out + strings.ToLower(suffix)
}

// NormalizeLink applies the same path rules to an authored link target. No
// relativization happens; an index link collapses to its directory
// ("index.md" becomes "./", "../index.md" becomes "../").
func (r Rules) NormalizeLink(link string) string {
	p, suffix := splitSuffix(link)
	return r.normalizePath(p) + strings.ToLower(suffix)
}

// normalizePath applies the shared rules to a slash-separated path that
// carries no query or fragment.
func (r Rules) normalizePath(p string) string {
	p = norm.NFC.String(p)
	page := false
	if stripped := StripKnownExtension(p); stripped != p {
		p = stripped
		page = true
		if dir, base := splitLast(p); r.isIndexName(base) {
			p = dir
			if p == "" {
				p = "./"
			}
		}
	}
	p = strings.ToLower(p)
	// A page always gets its own directory, even when the stem looks like a
	// file name ("release-1.2.md").
	if p != "" && !strings.HasSuffix(p, "/") && (page || !HasFileExtension(p)) {
		p += "/"
	}
	return p
}

// ToDirectoryLink returns the canonical link of a directory below basePath. It
// matches the link of the directory's index document and always ends in "/",
// also for dotted names like "v1.2".
func (r Rules) ToDirectoryLink(dir, basePath string) string {
	rel := relativize(dir, basePath)
	if rel == "" || rel == "." {
		return RootLink
	}
	p := strings.ToLower(norm.NFC.String(strings.TrimSuffix(rel, "/")))
	return p + "/"
}

// SiteURL turns a canonical root-relative link into an absolute site URL.
func SiteURL(link string) string {
	if link == "" {
		return RootLink
	}
	if strings.HasPrefix(link, "/") {
		return link
	}
	return "/" + link
}

// OutputPath maps a canonical link to the slash-separated file path, relative
// to the output root, where the site generator writes it. Page links become
// "<link>index.html"; asset links are used as-is.
func OutputPath(link string) string {
	p, _ := splitSuffix(strings.TrimPrefix(link, "/"))
	if p == "" || strings.HasSuffix(p, "/") {
		return p + "index.html"
	}
	return p
}

func relativize(p, basePath string) string {
	p = filepath.ToSlash(p)
	if basePath == "" {
		return strings.TrimPrefix(p, "./")
	}
	b := strings.TrimSuffix(filepath.ToSlash(filepath.Clean(basePath)), "/")
	switch {
	case p == b:
		return ""
	case strings.HasPrefix(p, b+"/"):
		return p[len(b)+1:]
	case b == "." && strings.HasPrefix(p, "./"):
		return p[2:]
	}
	return p
}

// splitSuffix separates a trailing "?query" or "#fragment" from a link.
func splitSuffix(link string) (string, string) {
	if i := strings.IndexAny(link, "?#"); i >= 0 {
		return link[:i], link[i:]
	}
	return link, ""
}

// splitLast splits p after its final slash.
func splitLast(p string) (dir, base string) {
	i := strings.LastIndex(p, "/")
	return p[:i+1], p[i+1:]
}

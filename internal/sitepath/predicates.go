package sitepath

import (
	"path"
	"regexp"
	"strings"
)

// HiddenMarker prefixes entries that are never traversed.
const HiddenMarker = "."

// DocumentExtensions lists the accepted Markdown-family suffixes (without the
// dot). Matching is case-insensitive.
var DocumentExtensions = []string{"md", "mkd", "mkdn", "mdwn", "mdown", "markdown", "mdl", "mmd"}

var (
	schemePattern  = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*:`)
	fileExtPattern = regexp.MustCompile(`(?i)\.[0-9a-z]+$`)
)

// DocumentExtension returns the document extension of name, dot included and
// in its original case, or "" when name is not a document.
func DocumentExtension(name string) string {
	for _, ext := range DocumentExtensions {
		n := len(ext) + 1
		if len(name) > n && strings.EqualFold(name[len(name)-n:], "."+ext) {
			return name[len(name)-n:]
		}
	}
	return ""
}

// StripKnownExtension removes one trailing document extension from name.
func StripKnownExtension(name string) string {
	return strings.TrimSuffix(name, DocumentExtension(name))
}

// IsDocument reports whether name carries a document extension.
func IsDocument(name string) bool {
	return DocumentExtension(name) != ""
}

// IsHidden reports whether the base name of p starts with the hidden marker.
func IsHidden(p string) bool {
	return strings.HasPrefix(path.Base(p), HiddenMarker)
}

// HasFileExtension reports whether the last segment of a link path ends in a
// file extension. Query and fragment are ignored.
func HasFileExtension(link string) bool {
	p, _ := splitSuffix(link)
	if strings.HasSuffix(p, "/") {
		return false
	}
	_, base := splitLast(p)
	return fileExtPattern.MatchString(base)
}

// IsOutbound reports whether link points outside the site: it carries a URL
// scheme ("https:", "mailto:") or is protocol-relative ("//host/...").
func IsOutbound(link string) bool {
	return strings.HasPrefix(link, "//") || schemePattern.MatchString(link)
}

// IsSamePage reports whether link has no path component and so refers to the
// current page ("", "#section", "?q=1").
func IsSamePage(link string) bool {
	p, _ := splitSuffix(link)
	return p == ""
}

// IsRootAbsolute reports whether link is an absolute path on this site.
func IsRootAbsolute(link string) bool {
	return strings.HasPrefix(link, "/") && !strings.HasPrefix(link, "//")
}

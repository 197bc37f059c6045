// Package links classifies and rewrites link targets authored in Markdown so
// they resolve against the generated site's directory-per-page layout.
package links

import (
	"strings"

	"git.home.luguber.info/inful/spectra/internal/sitepath"
)

// Kind classifies an authored link target.
type Kind int

const (
	// Internal targets another page or asset of the site.
	Internal Kind = iota
	// Outbound carries a scheme or is protocol-relative.
	Outbound
	// AbsoluteRoot reduces exactly to the site root.
	AbsoluteRoot
)

func (k Kind) String() string {
	switch k {
	case Outbound:
		return "outbound"
	case AbsoluteRoot:
		return "absolute-root"
	default:
		return "internal"
	}
}

// Rewriter adjusts internal link targets. The zero value uses the default
// index names.
type Rewriter struct {
	Rules sitepath.Rules
}

// New returns a Rewriter for rules.
func New(rules sitepath.Rules) Rewriter {
	return Rewriter{Rules: rules}
}

// Classification is the kind of a link together with its normalized form.
// Outbound links keep their raw value.
type Classification struct {
	Kind  Kind
	Value string
}

// Classify evaluates the link predicates in order: outbound, absolute root,
// internal.
func (r Rewriter) Classify(raw string) Classification {
	if sitepath.IsOutbound(raw) {
		return Classification{Kind: Outbound, Value: raw}
	}
	normalized := r.Rules.NormalizeLink(raw)
	if normalized == sitepath.RootLink {
		return Classification{Kind: AbsoluteRoot, Value: sitepath.RootLink}
	}
	return Classification{Kind: Internal, Value: normalized}
}

// Rewrite returns the href to emit for raw when it appears in the document at
// currentDoc.
//
// Outbound links and links that only carry a query or fragment are returned
// unchanged. Links to the site root become "/". Other links are normalized
// with the shared rules. A non-index document is published one directory
// deeper than its source file, so relative links from it gain a "../" prefix.
func (r Rewriter) Rewrite(raw, currentDoc string) string {
	c := r.Classify(raw)
	switch {
	case c.Kind == Outbound:
		return raw
	case c.Kind == AbsoluteRoot:
		return sitepath.RootLink
	case sitepath.IsSamePage(raw):
		return raw
	}
	out := c.Value
	if sitepath.IsRootAbsolute(out) || r.Rules.IsIndexDocument(currentDoc) {
		return out
	}
	return "../" + strings.TrimPrefix(out, "./")
}

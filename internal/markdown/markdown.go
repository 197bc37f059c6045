// Package markdown renders Markdown documents to HTML fragments.
package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"git.home.luguber.info/inful/spectra/internal/frontmatter"
	"git.home.luguber.info/inful/spectra/internal/links"
	"git.home.luguber.info/inful/spectra/internal/sitepath"
)

// Options controls rendering.
type Options struct {
	// Breaks renders soft line breaks as <br>.
	Breaks bool
	// HTML passes raw HTML through instead of omitting it.
	HTML bool
	// Rules drive link rewriting.
	Rules sitepath.Rules
	// RewriteLinks enables the link transformer. Disabled when rendering a
	// single file outside a site.
	RewriteLinks bool
}

// DefaultOptions mirrors the site configuration defaults.
func DefaultOptions() Options {
	return Options{Breaks: true, HTML: true, Rules: sitepath.Default(), RewriteLinks: true}
}

// Page is a rendered document.
type Page struct {
	Meta frontmatter.Meta
	// Heading is the plain text of the first heading, if any.
	Heading string
	HTML    []byte
}

// Title returns the front matter title, falling back to the first heading and
// then to fallback.
func (p Page) Title(fallback string) string {
	switch {
	case p.Meta.Title != "":
		return p.Meta.Title
	case p.Heading != "":
		return p.Heading
	}
	return fallback
}

var documentPathKey = parser.NewContextKey()

// Renderer converts documents. It is safe for concurrent use.
type Renderer struct {
	md goldmark.Markdown
}

// New builds a Renderer for opts.
func New(opts Options) *Renderer {
	var rendererOpts []renderer.Option
	if opts.Breaks {
		rendererOpts = append(rendererOpts, html.WithHardWraps())
	}
	if opts.HTML {
		rendererOpts = append(rendererOpts, html.WithUnsafe())
	}

	parserOpts := []parser.Option{parser.WithAutoHeadingID()}
	if opts.RewriteLinks {
		parserOpts = append(parserOpts, parser.WithASTTransformers(
			util.Prioritized(&linkTransformer{rewriter: links.New(opts.Rules)}, 100),
		))
	}

	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Footnote),
		goldmark.WithParserOptions(parserOpts...),
		goldmark.WithRendererOptions(rendererOpts...),
	)
	return &Renderer{md: md}
}

// Render converts a full document (front matter included). docPath is the
// document's path below the content root; links are rewritten relative to it.
func (r *Renderer) Render(content []byte, docPath string) (Page, error) {
	meta, body, err := frontmatter.Parse(content)
	if err != nil {
		return Page{}, err
	}

	protected, spans := protectMath(body)
	ctx := parser.NewContext()
	ctx.Set(documentPathKey, docPath)
	doc := r.md.Parser().Parse(text.NewReader(protected), parser.WithContext(ctx))

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, protected, doc); err != nil {
		return Page{}, fmt.Errorf("render %s: %w", docPath, err)
	}

	return Page{
		Meta:    meta,
		Heading: restoreText(firstHeading(doc, protected), spans),
		HTML:    restoreMath(buf.Bytes(), spans),
	}, nil
}

// linkTransformer rewrites link and image destinations of the document being
// parsed.
type linkTransformer struct {
	rewriter links.Rewriter
}

func (t *linkTransformer) Transform(doc *ast.Document, _ text.Reader, pc parser.Context) {
	current, _ := pc.Get(documentPathKey).(string)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Link:
			node.Destination = []byte(t.rewriter.Rewrite(string(node.Destination), current))
		case *ast.Image:
			node.Destination = []byte(t.rewriter.Rewrite(string(node.Destination), current))
		}
		return ast.WalkContinue, nil
	})
}

func firstHeading(doc ast.Node, src []byte) string {
	var title string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok {
			title = strings.TrimSpace(plainText(h, src))
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return title
}

func plainText(n ast.Node, src []byte) string {
	var sb strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(t.Value)
		default:
			sb.WriteString(plainText(c, src))
		}
	}
	return sb.String()
}

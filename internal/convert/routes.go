package convert

import (
	"bytes"
	"context"
	"html/template"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"git.home.luguber.info/inful/spectra/internal/foundation/errors"
	"git.home.luguber.info/inful/spectra/internal/mathpix"
	"git.home.luguber.info/inful/spectra/internal/site"
)

type route struct {
	name string
	zip  bool
	run  func(ctx context.Context, req Request) ([]byte, error)
}

func (c *Converter) route(req Request) (*route, error) {
	srcExt := strings.ToLower(filepath.Ext(req.Source))
	dstExt := strings.ToLower(filepath.Ext(req.Destination))
	name := strings.TrimPrefix(srcExt, ".") + "->" + strings.TrimPrefix(dstExt, ".")

	switch {
	case srcExt == ".md" || srcExt == ".mmd":
		return c.markdownRoute(name, dstExt), nil

	case srcExt == ".pdf":
		if err := preflightPDF(req.Source, c.logger); err != nil {
			return nil, err
		}
		return c.pdfRoute(name, dstExt)

	case slices.Contains(imageExtensions, srcExt):
		if err := sniffImage(req.Source); err != nil {
			return nil, err
		}
		return &route{name: name, zip: dstExt == ".tex", run: func(ctx context.Context, req Request) ([]byte, error) {
			api, err := c.client()
			if err != nil {
				return nil, err
			}
			text, err := api.OCRImage(ctx, req.Source)
			if err != nil {
				return nil, err
			}
			return c.fromMarkdown(ctx, []byte(text), dstExt, req)
		}}, nil
	}
	return nil, notImplemented(name)
}

func (c *Converter) markdownRoute(name, dstExt string) *route {
	return &route{name: name, zip: dstExt == ".tex", run: func(ctx context.Context, req Request) ([]byte, error) {
		src, err := os.ReadFile(req.Source)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryFileSystem, "could not read source path").
				WithContext("source", req.Source).Build()
		}
		return c.fromMarkdown(ctx, src, dstExt, req)
	}}
}

// fromMarkdown produces dstExt from Mathpix Markdown, locally where possible.
func (c *Converter) fromMarkdown(ctx context.Context, mmd []byte, dstExt string, req Request) ([]byte, error) {
	switch dstExt {
	case ".md", ".mmd":
		return mmd, nil
	case ".html":
		return c.renderHTML(mmd, req.Source)
	}

	format, ok := exportFormat(dstExt, req.PDFMethod)
	if !ok {
		return nil, notImplemented(dstExt)
	}
	api, err := c.client()
	if err != nil {
		return nil, err
	}
	return api.Export(ctx, format, string(mmd), exportName(req.Destination))
}

func (c *Converter) pdfRoute(name, dstExt string) (*route, error) {
	var format string
	switch dstExt {
	case ".md", ".mmd":
		format = "mmd"
	case ".docx":
		format = "docx"
	case ".tex":
		format = "tex"
	case ".html":
		return &route{name: name, run: func(ctx context.Context, req Request) ([]byte, error) {
			api, err := c.client()
			if err != nil {
				return nil, err
			}
			mmd, err := api.ConvertPDF(ctx, req.Source, "mmd")
			if err != nil {
				return nil, err
			}
			return c.renderHTML(mmd, req.Source)
		}}, nil
	default:
		return nil, notImplemented(name)
	}

	return &route{name: name, zip: dstExt == ".tex", run: func(ctx context.Context, req Request) ([]byte, error) {
		api, err := c.client()
		if err != nil {
			return nil, err
		}
		return api.ConvertPDF(ctx, req.Source, format)
	}}, nil
}

func exportFormat(dstExt, pdfMethod string) (mathpix.ExportFormat, bool) {
	switch dstExt {
	case ".docx":
		return mathpix.ExportDOCX, true
	case ".tex":
		return mathpix.ExportLaTeX, true
	case ".pdf":
		if pdfMethod == PDFMethodHTML {
			return mathpix.ExportPDFHTML, true
		}
		return mathpix.ExportPDFLaTeX, true
	}
	return "", false
}

// exportName is the destination's base name up to its first dot.
func exportName(dst string) string {
	base := filepath.Base(dst)
	if i := strings.Index(base, "."); i > 0 {
		return base[:i]
	}
	return base
}

func (c *Converter) renderHTML(mmd []byte, source string) ([]byte, error) {
	page, err := c.renderer.Render(mmd, filepath.Base(source))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "could not render markdown").
			WithContext("source", source).Build()
	}
	var buf bytes.Buffer
	if err := site.RenderDocument(&buf, site.DocumentData{
		Title:   page.Title("spectra"),
		Content: template.HTML(page.HTML), //nolint:gosec // rendered markdown
		Math:    true,
	}); err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "could not render document").Build()
	}
	return buf.Bytes(), nil
}

func notImplemented(what string) error {
	return errors.ValidationError("conversion not implemented: " + what).Build()
}

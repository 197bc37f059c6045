// Package convert dispatches file conversions between Markdown, Mathpix
// Markdown, HTML, DOCX, LaTeX and PDF.
package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"git.home.luguber.info/inful/spectra/internal/foundation/errors"
	"git.home.luguber.info/inful/spectra/internal/logfields"
	"git.home.luguber.info/inful/spectra/internal/markdown"
	"git.home.luguber.info/inful/spectra/internal/mathpix"
	"git.home.luguber.info/inful/spectra/internal/metrics"
)

// Accepted extensions.
var (
	SourceExtensions      = []string{".mmd", ".md", ".pdf", ".png", ".jpg", ".jpeg", ".gif", ".webp"}
	DestinationExtensions = []string{".mmd", ".md", ".pdf", ".tex", ".html", ".docx"}
	imageExtensions       = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}
)

// PDF methods for Markdown to PDF exports.
const (
	PDFMethodLaTeX = "latex"
	PDFMethodHTML  = "html"
)

// API is the part of the Mathpix client the converter uses.
type API interface {
	Export(ctx context.Context, format mathpix.ExportFormat, mmd, fileName string) ([]byte, error)
	ConvertPDF(ctx context.Context, path, format string) ([]byte, error)
	OCRImage(ctx context.Context, path string) (string, error)
}

// Request is one conversion.
type Request struct {
	Source      string
	Destination string
	PDFMethod   string // latex (default) or html
}

// Result describes a finished conversion.
type Result struct {
	Source      string
	Destination string // actual file written; LaTeX output gains a .zip suffix
	Route       string
	Duration    time.Duration
	Bytes       int
}

// Message is the line printed after a conversion.
func (r *Result) Message() string {
	return fmt.Sprintf("Converted %s to %s in %dms", r.Source, r.Destination, r.Duration.Milliseconds())
}

// Converter runs conversions. The API client is created on first use so local
// conversions work without credentials.
type Converter struct {
	newAPI   func() (API, error)
	api      API
	renderer *markdown.Renderer
	recorder metrics.Recorder
	logger   *slog.Logger
}

// New returns a Converter. newAPI is called at most once, when a route needs
// the remote API.
func New(newAPI func() (API, error)) *Converter {
	opts := markdown.DefaultOptions()
	opts.RewriteLinks = false
	return &Converter{
		newAPI:   newAPI,
		renderer: markdown.New(opts),
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
}

// WithRecorder sets the metrics recorder.
func (c *Converter) WithRecorder(r metrics.Recorder) *Converter {
	if r != nil {
		c.recorder = r
	}
	return c
}

// WithLogger sets the logger.
func (c *Converter) WithLogger(l *slog.Logger) *Converter {
	if l != nil {
		c.logger = l
	}
	return c
}

func (c *Converter) client() (API, error) {
	if c.api != nil {
		return c.api, nil
	}
	if c.newAPI == nil {
		return nil, errors.InternalError("no conversion API configured").Build()
	}
	api, err := c.newAPI()
	if err != nil {
		return nil, err
	}
	c.api = api
	return api, nil
}

// Validate checks a request without converting anything.
func Validate(req Request) error {
	srcExt := strings.ToLower(filepath.Ext(req.Source))
	dstExt := strings.ToLower(filepath.Ext(req.Destination))
	if !slices.Contains(SourceExtensions, srcExt) {
		return errors.ValidationError("invalid source extension, must be one of: " + strings.Join(SourceExtensions, ", ")).
			WithContext("source", req.Source).Build()
	}
	if !slices.Contains(DestinationExtensions, dstExt) {
		return errors.ValidationError("invalid destination extension, must be one of: " + strings.Join(DestinationExtensions, ", ")).
			WithContext("destination", req.Destination).Build()
	}
	switch req.PDFMethod {
	case "", PDFMethodLaTeX, PDFMethodHTML:
	default:
		return errors.ValidationError("pdf method must be latex or html").
			WithContext("pdf_method", req.PDFMethod).Build()
	}

	info, err := os.Stat(req.Source)
	if err != nil {
		return errors.WrapError(err, errors.CategoryNotFound, "source file could not be opened").
			WithContext("source", req.Source).Build()
	}
	if info.IsDir() {
		return errors.ValidationError("source cannot be a directory").WithContext("source", req.Source).Build()
	}
	return nil
}

// Convert validates req, runs the matching route, and writes the destination.
func (c *Converter) Convert(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	if err := Validate(req); err != nil {
		return nil, err
	}

	route, err := c.route(req)
	if err != nil {
		return nil, err
	}
	res := &Result{Source: req.Source, Destination: req.Destination, Route: route.name}
	if route.zip {
		res.Destination += ".zip"
	}

	c.logger.Debug("Converting", logfields.Source(req.Source), logfields.Target(res.Destination), slog.String("route", route.name))
	data, err := route.run(ctx, req)
	if err == nil {
		err = writeOutput(res.Destination, data)
	}
	res.Duration = time.Since(start)
	c.recorder.ObserveConversion(route.name, res.Duration, err == nil)
	if err != nil {
		return nil, err
	}
	res.Bytes = len(data)
	return res, nil
}

func writeOutput(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "could not create destination directory").
				WithContext("destination", path).Build()
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // user-requested output file
		return errors.WrapError(err, errors.CategoryFileSystem, "could not write to destination path").
			WithContext("destination", path).Build()
	}
	return nil
}

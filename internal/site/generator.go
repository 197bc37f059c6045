// Package site generates a static HTML site from a content directory.
package site

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"git.home.luguber.info/inful/spectra/internal/config"
	"git.home.luguber.info/inful/spectra/internal/docs"
	"git.home.luguber.info/inful/spectra/internal/foundation/errors"
	"git.home.luguber.info/inful/spectra/internal/gitinfo"
	"git.home.luguber.info/inful/spectra/internal/logfields"
	"git.home.luguber.info/inful/spectra/internal/markdown"
	"git.home.luguber.info/inful/spectra/internal/metrics"
	"git.home.luguber.info/inful/spectra/internal/nav"
	"git.home.luguber.info/inful/spectra/internal/sitepath"
)

// Generator builds the site for one content root. Each Generate call starts
// from scratch; a Generator may be reused for rebuilds but not concurrently.
type Generator struct {
	cfg        *config.Config
	input      string
	output     string
	renderer   *markdown.Renderer
	recorder   metrics.Recorder
	logger     *slog.Logger
	liveReload bool
}

// NewGenerator returns a generator writing the site for input into output.
func NewGenerator(cfg *config.Config, input, output string) *Generator {
	return &Generator{
		cfg:    cfg,
		input:  input,
		output: output,
		renderer: markdown.New(markdown.Options{
			Breaks:       cfg.Markdown.Breaks,
			HTML:         cfg.Markdown.HTML,
			Rules:        cfg.Rules(),
			RewriteLinks: true,
		}),
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
}

// WithRecorder sets the metrics recorder.
func (g *Generator) WithRecorder(r metrics.Recorder) *Generator {
	if r != nil {
		g.recorder = r
	}
	return g
}

// WithLogger sets the logger.
func (g *Generator) WithLogger(l *slog.Logger) *Generator {
	if l != nil {
		g.logger = l
	}
	return g
}

// WithLiveReload makes pages include the live reload script.
func (g *Generator) WithLiveReload(enabled bool) *Generator {
	g.liveReload = enabled
	return g
}

// Output returns the output directory.
func (g *Generator) Output() string { return g.output }

// Generate builds the site. Per-file failures do not stop the build; they are
// collected in the report and returned together as a build error.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	report := newReport(uuid.NewString(), g.input, g.output)
	log := g.logger.With(logfields.BuildID(report.BuildID))
	log.Info("Starting site build", logfields.Source(g.input), logfields.Target(g.output))

	report, err := g.generate(ctx, report, log)
	report.finish()

	g.recorder.ObserveBuildDuration(report.Duration())
	if err != nil {
		g.recorder.IncBuildOutcome(metrics.BuildOutcomeFailed)
		log.Error("Site build failed", logfields.Error(err))
		return report, err
	}
	g.recorder.IncBuildOutcome(report.Outcome())
	if len(report.Errors) > 0 {
		log.Warn("Site build finished with errors", slog.String("summary", report.Summary()))
		return report, errors.WrapError(multierr.Combine(report.Errors...), errors.CategoryBuild,
			fmt.Sprintf("%d file(s) failed", len(report.Errors))).
			WithContext("build_id", report.BuildID).Build()
	}
	log.Info("Site build finished", slog.String("summary", report.Summary()))
	return report, nil
}

func (g *Generator) generate(ctx context.Context, report *Report, log *slog.Logger) (*Report, error) {
	if err := g.checkDirs(); err != nil {
		return report, err
	}

	layout, err := LoadLayout(g.input)
	if err != nil {
		return report, errors.WrapError(err, errors.CategoryConfig, "failed to load page layout").Build()
	}
	report.Layout = layout.Source

	rules := g.cfg.Rules()

	var files []docs.DocFile
	if err := g.stage(report, StageDiscover, func() error {
		d := docs.NewDiscovery(g.input, rules, g.output).WithLogger(log)
		var derr error
		files, derr = d.Discover()
		report.Warnings = append(report.Warnings, d.Collisions()...)
		return derr
	}); err != nil {
		return report, errors.WrapError(err, errors.CategoryFileSystem, "failed to discover content").Build()
	}
	for _, w := range report.Warnings {
		log.Warn("Output path collision", logfields.Error(w))
	}

	var tree []*nav.Node
	_ = g.stage(report, StageNav, func() error {
		b := nav.NewBuilder(rules, g.output)
		b.IncludeAssets = g.cfg.Nav.IncludeAssets
		b.Logger = log
		tree = b.Build(g.input)
		report.NavNodes = nav.Count(tree)
		return nil
	})
	g.recorder.SetNavNodes(report.NavNodes)

	if err := g.stage(report, StageClean, g.cleanOutput); err != nil {
		return report, errors.WrapError(err, errors.CategoryFileSystem, "failed to prepare output directory").
			WithContext("output", g.output).Build()
	}

	repo := g.openGitInfo(log)

	var pageErrs error
	_ = g.stage(report, StagePages, func() error {
		for _, f := range docs.Pages(files) {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := g.writePage(layout, tree, f, repo, report.BuildID); err != nil {
				log.Warn("Failed to write page", logfields.File(f.RelativePath), logfields.Error(err))
				pageErrs = multierr.Append(pageErrs, err)
				continue
			}
			report.Pages++
		}
		return nil
	})
	if err := ctx.Err(); err != nil {
		return report, err
	}

	var assetErrs error
	_ = g.stage(report, StageAssets, func() error {
		for _, f := range docs.Assets(files) {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := g.copyAsset(f); err != nil {
				log.Warn("Failed to copy asset", logfields.File(f.RelativePath), logfields.Error(err))
				assetErrs = multierr.Append(assetErrs, err)
				continue
			}
			report.Assets++
		}
		return nil
	})
	if err := ctx.Err(); err != nil {
		return report, err
	}

	if !docs.HasRootIndex(files) {
		if err := g.stage(report, StageIndex, func() error {
			return g.writeListingIndex(layout, tree, report.BuildID)
		}); err != nil {
			pageErrs = multierr.Append(pageErrs, err)
		} else {
			report.GeneratedIndex = true
			log.Info("No root index document; generated index.html from navigation")
		}
	}

	report.Errors = append(report.Errors, multierr.Errors(pageErrs)...)
	report.Errors = append(report.Errors, multierr.Errors(assetErrs)...)
	g.recorder.AddFilesWritten("page", report.Pages)
	g.recorder.AddFilesWritten("asset", report.Assets)
	log.Debug(fmt.Sprintf("Wrote %d files", report.Pages), logfields.Count(report.Pages))
	log.Debug(fmt.Sprintf("Copied %d files", report.Assets), logfields.Count(report.Assets))
	return report, nil
}

// stage times fn and records the result.
func (g *Generator) stage(report *Report, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)
	report.StageDurations[name] = d
	g.recorder.ObserveStageDuration(name, d)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultFatal
	}
	g.recorder.IncStageResult(name, result)
	g.logger.Debug("Stage finished", logfields.Stage(name), logfields.Duration(d))
	return err
}

// checkDirs rejects layouts where cleaning the output would remove content.
func (g *Generator) checkDirs() error {
	in, err := filepath.Abs(g.input)
	if err != nil {
		return err
	}
	out, err := filepath.Abs(g.output)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(out, in)
	if err == nil && (rel == "." || !strings.HasPrefix(rel, "..")) {
		return errors.ValidationError("output directory must not contain the source directory").
			WithContext("input", g.input).WithContext("output", g.output).Build()
	}
	return nil
}

func (g *Generator) cleanOutput() error {
	if err := os.RemoveAll(g.output); err != nil {
		return err
	}
	return os.MkdirAll(g.output, 0o755)
}

func (g *Generator) openGitInfo(log *slog.Logger) *gitinfo.Repo {
	if !g.cfg.GitInfo {
		return nil
	}
	repo, err := gitinfo.Open(g.input)
	if err != nil {
		log.Warn("git_info enabled but no repository found; omitting dates", logfields.Error(err))
		return nil
	}
	return repo
}

func (g *Generator) siteData() SiteData {
	return SiteData{Title: g.cfg.Title, Description: g.cfg.Description, Math: g.cfg.Markdown.Math}
}

func (g *Generator) writePage(layout *Layout, tree []*nav.Node, f docs.DocFile, repo *gitinfo.Repo, buildID string) error {
	if err := f.LoadContent(); err != nil {
		return err
	}
	page, err := g.renderer.Render(f.Content, f.RelativePath)
	if err != nil {
		return fmt.Errorf("render %s: %w", f.RelativePath, err)
	}

	fallback := sitepath.StripKnownExtension(filepath.Base(f.Path))
	if f.Link == sitepath.RootLink {
		fallback = g.cfg.Title
	}
	data := PageData{
		Title:      page.Title(fallback),
		Content:    template.HTML(page.HTML), //nolint:gosec // rendered markdown
		Nav:        tree,
		Link:       f.Link,
		Site:       g.siteData(),
		LiveReload: g.liveReload,
		BuildID:    buildID,
	}
	if repo != nil {
		info, ok, err := repo.LastModified(f.Path)
		if err != nil {
			g.logger.Debug("git lookup failed", logfields.Path(f.Path), logfields.Error(err))
		} else if ok {
			data.LastModified = &info
		}
	}

	var buf bytes.Buffer
	if err := layout.Execute(&buf, data); err != nil {
		return fmt.Errorf("execute layout for %s: %w", f.RelativePath, err)
	}
	return g.writeFile(f.OutputPath, buf.Bytes())
}

func (g *Generator) writeListingIndex(layout *Layout, tree []*nav.Node, buildID string) error {
	content, err := layout.Listing(g.cfg.Title, tree)
	if err != nil {
		return fmt.Errorf("render index listing: %w", err)
	}
	var buf bytes.Buffer
	if err := layout.Execute(&buf, PageData{
		Title:      g.cfg.Title,
		Content:    content,
		Nav:        tree,
		Link:       sitepath.RootLink,
		Site:       g.siteData(),
		LiveReload: g.liveReload,
		BuildID:    buildID,
	}); err != nil {
		return fmt.Errorf("execute layout for index: %w", err)
	}
	return g.writeFile(sitepath.OutputPath(sitepath.RootLink), buf.Bytes())
}

func (g *Generator) writeFile(rel string, data []byte) error {
	dst := filepath.Join(g.output, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644) //nolint:gosec // public HTML output
}

func (g *Generator) copyAsset(f docs.DocFile) error {
	src, err := os.Open(f.Path)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	dst := filepath.Join(g.output, filepath.FromSlash(f.OutputPath))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", f.RelativePath, err)
	}
	return out.Close()
}

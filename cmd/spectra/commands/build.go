package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/spectra/internal/config"
	"git.home.luguber.info/inful/spectra/internal/docs"
	"git.home.luguber.info/inful/spectra/internal/foundation/errors"
	"git.home.luguber.info/inful/spectra/internal/linkverify"
	"git.home.luguber.info/inful/spectra/internal/logfields"
	"git.home.luguber.info/inful/spectra/internal/metrics"
	"git.home.luguber.info/inful/spectra/internal/server"
	"git.home.luguber.info/inful/spectra/internal/site"
	"git.home.luguber.info/inful/spectra/internal/watch"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Source      string `arg:"" optional:"" help:"Input directory; overrides --input."`
	Destination string `arg:"" optional:"" help:"Output directory; overrides --output."`

	Input      string `short:"i" default:"./" help:"Input directory of Markdown to convert into HTML."`
	Output     string `short:"o" help:"Output directory for the converted HTML (default: config output, ./dist)."`
	Watch      bool   `short:"w" help:"Watch the input directory and rebuild on changes."`
	Serve      bool   `short:"s" help:"Serve the site locally with live reload; implies --watch."`
	Port       int    `short:"p" help:"Port to serve the site on (default: config serve.port, 8080)."`
	CheckLinks bool   `name:"check-links" help:"Fail the build when generated pages contain broken internal links."`
}

func (b *BuildCmd) Run(g *Global, _ *CLI) error {
	input := b.Input
	if b.Source != "" {
		input = b.Source
	}
	if fi, err := os.Stat(input); err != nil || !fi.IsDir() {
		return errors.ValidationError(fmt.Sprintf("Source %s must be a directory.", input)).
			WithContext("path", input).
			Build()
	}

	created, err := config.Bootstrap(input, site.DefaultLayout())
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create site configuration").Build()
	}
	if created {
		g.printf("Created new directory at %s containing config and layouts", filepath.Join(input, config.DirName))
	}

	cfg, err := config.LoadDir(input)
	if err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "failed to load configuration").
			WithContext("path", config.Path(input)).
			Build()
	}
	output := resolveOutputDir(b.Destination, b.Output, cfg)
	g.printf("Converting %s to %s", input, output)

	ctx, cancel := signalContext()
	defer cancel()

	registry := prometheus.NewRegistry()
	b2 := &builder{
		g:          g,
		input:      input,
		output:     output,
		checkLinks: b.CheckLinks,
		liveReload: b.Serve && cfg.Serve.LiveReload,
		recorder:   metrics.NewPrometheusRecorder(registry),
	}

	if !b.Watch && !b.Serve {
		return b2.build(ctx, cfg)
	}
	return b.runWatch(ctx, b2, cfg, registry)
}

// resolveOutputDir picks the output directory.
// Priority: positional destination > --output > config output.
func resolveOutputDir(destination, flag string, cfg *config.Config) string {
	switch {
	case destination != "":
		return destination
	case flag != "":
		return flag
	case cfg.Output != "":
		return cfg.Output
	}
	return config.DefaultOutput
}

func (b *BuildCmd) runWatch(ctx context.Context, bld *builder, cfg *config.Config, registry *prometheus.Registry) error {
	var hub *server.LiveReloadHub
	if bld.liveReload {
		hub = server.NewLiveReloadHub(slog.Default())
	}

	// The first build may fail; keep watching so the next save can fix it.
	bld.status.set(bld.build(ctx, cfg))

	w := watch.New(bld.input, func(ctx context.Context, hash string) error {
		err := bld.rebuild(ctx)
		bld.status.set(err)
		if hub != nil {
			hub.Broadcast(hash)
		}
		return err
	}).
		WithExclude(bld.output).
		WithFingerprint(func() (string, error) {
			return docs.Fingerprint(bld.input, cfg.Rules(), bld.output)
		})

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error { return w.Run(gctx) })

	if b.Serve {
		port := b.Port
		if port == 0 {
			port = cfg.Serve.Port
		}
		handler := server.NewSiteHandler(bld.output).
			WithStatus(bld.status.get).
			WithLiveReload(hub != nil)
		srv := server.New(handler, server.Options{
			Addr:       net.JoinHostPort(cfg.Serve.Host, strconv.Itoa(port)),
			LiveReload: hub,
			Gatherer:   registry,
			Logger:     slog.Default(),
		})
		grp.Go(func() error {
			return srv.Serve(gctx, func(url string) { bld.g.printf("Server running at %s", url) })
		})
	}
	return grp.Wait()
}

type buildStatus struct {
	mu  sync.RWMutex
	err error
}

func (s *buildStatus) set(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *buildStatus) get() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// builder runs one site build and the optional link check.
type builder struct {
	g          *Global
	input      string
	output     string
	checkLinks bool
	liveReload bool
	recorder   metrics.Recorder
	status     buildStatus
}

// rebuild reloads the configuration so edits to it take effect.
func (b *builder) rebuild(ctx context.Context) error {
	cfg, err := config.LoadDir(b.input)
	if err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "failed to load configuration").Build()
	}
	return b.build(ctx, cfg)
}

func (b *builder) build(ctx context.Context, cfg *config.Config) error {
	gen := site.NewGenerator(cfg, b.input, b.output).
		WithRecorder(b.recorder).
		WithLogger(slog.Default()).
		WithLiveReload(b.liveReload)

	report, err := gen.Generate(ctx)
	if report != nil {
		b.g.printf("Wrote %d files", report.Pages)
		b.g.printf("Copied %d files", report.Assets)
		for _, w := range report.Warnings {
			slog.Warn("Build warning", logfields.Error(w))
		}
	}
	if err != nil {
		return err
	}
	if b.checkLinks {
		return b.verifyLinks(ctx)
	}
	return nil
}

func (b *builder) verifyLinks(ctx context.Context) error {
	v := linkverify.New(b.output)
	v.Logger = slog.Default()
	report, err := v.Verify(ctx)
	if err != nil {
		return errors.WrapError(err, errors.CategoryBuild, "link check failed").Build()
	}
	b.recorder.AddBrokenLinks(len(report.Broken))
	for _, br := range report.Broken {
		b.g.printf("Broken link in %s: %s", br.Page, br.URL)
	}
	if !report.OK() {
		return errors.BuildError(fmt.Sprintf("%d broken link(s) in %d page(s)", len(report.Broken), report.Pages)).
			WithContext("output", b.output).
			Build()
	}
	b.g.printf("Checked %d links in %d pages", report.Links, report.Pages)
	return nil
}

package commands

import (
	"context"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/spectra/internal/config"
	"git.home.luguber.info/inful/spectra/internal/foundation/errors"
	"git.home.luguber.info/inful/spectra/internal/server"
	"git.home.luguber.info/inful/spectra/internal/watch"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Source       string `arg:"" help:"File or directory to serve."`
	Port         int    `short:"p" default:"8080" help:"Port to serve the rendered HTML on."`
	NoLiveReload bool   `name:"no-live-reload" help:"Disable reloading pages when the source changes."`
}

func (s *ServeCmd) Run(g *Global, _ *CLI) error {
	info, err := os.Stat(s.Source)
	if err != nil {
		return errors.NotFoundError("Source " + s.Source + " does not exist.").
			WithContext("path", s.Source).
			Build()
	}

	cfg := config.Default()
	if info.IsDir() {
		if cfg, err = config.LoadDir(s.Source); err != nil {
			return errors.WrapError(err, errors.CategoryConfig, "failed to load configuration").Build()
		}
	}

	handler, err := server.NewSourceHandler(s.Source, cfg)
	if err != nil {
		return err
	}
	handler.WithLogger(slog.Default()).WithLiveReload(!s.NoLiveReload)

	var hub *server.LiveReloadHub
	if !s.NoLiveReload {
		hub = server.NewLiveReloadHub(slog.Default())
	}
	srv := server.New(handler, server.Options{
		Addr:       net.JoinHostPort("127.0.0.1", strconv.Itoa(s.Port)),
		LiveReload: hub,
		Logger:     slog.Default(),
	})

	ctx, cancel := signalContext()
	defer cancel()
	grp, gctx := errgroup.WithContext(ctx)
	if hub != nil {
		// Pages render on request, so a change only needs a reload.
		w := watch.New(s.Source, func(context.Context, string) error {
			hub.Broadcast(strconv.FormatInt(time.Now().UnixNano(), 16))
			return nil
		})
		grp.Go(func() error { return w.Run(gctx) })
	}
	grp.Go(func() error {
		return srv.Serve(gctx, func(url string) { g.printf("Server running at %s", url) })
	})
	return grp.Wait()
}

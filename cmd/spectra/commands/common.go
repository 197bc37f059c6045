// Package commands implements the spectra command line.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/spectra/internal/config"
	"git.home.luguber.info/inful/spectra/internal/foundation/errors"
)

// Global carries process-wide collaborators into every command.
type Global struct {
	// Out receives user-facing messages. Logs go to stderr.
	Out io.Writer
	// Credentials overrides the store at ~/.spectra/config.
	Credentials *config.CredentialStore
	// Mathpix overrides the conversion API settings.
	Mathpix *config.MathpixConfig
}

// NewGlobal returns the defaults used by main.
func NewGlobal() *Global {
	return &Global{Out: os.Stdout}
}

func (g *Global) printf(format string, args ...any) {
	out := g.Out
	if out == nil {
		out = os.Stdout
	}
	_, _ = fmt.Fprintf(out, format+"\n", args...)
}

func (g *Global) credentialStore() (*config.CredentialStore, error) {
	if g.Credentials != nil {
		return g.Credentials, nil
	}
	store, err := config.DefaultCredentialStore()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "cannot locate credentials file").Build()
	}
	return store, nil
}

func (g *Global) mathpixConfig() config.MathpixConfig {
	if g.Mathpix != nil {
		return *g.Mathpix
	}
	return config.Default().Mathpix
}

// CLI is the root command.
type CLI struct {
	Verbose bool             `short:"v" help:"Enable verbose logging."`
	Version kong.VersionFlag `name:"version" help:"Show version and exit."`

	Build     BuildCmd     `cmd:"" help:"Build a static HTML site from a directory of Markdown or Mathpix Markdown."`
	Convert   ConvertCmd   `cmd:"" help:"Convert files between Markdown, Mathpix Markdown, DOCX, LaTeX, HTML and PDF."`
	Serve     ServeCmd     `cmd:"" help:"Serve Markdown or Mathpix Markdown rendered as HTML."`
	SetAPIKey SetAPIKeyCmd `cmd:"" name:"set-api-key" help:"Save the Mathpix OCR API key to ~/.spectra/config."`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// ExitCode reports err through the CLI error adapter and returns the process exit code.
func ExitCode(err error, verbose bool) int {
	return errors.NewCLIErrorAdapter(verbose, slog.Default()).Handle(err)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

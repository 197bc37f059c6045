package commands

import (
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/spectra/internal/convert"
	"git.home.luguber.info/inful/spectra/internal/foundation/errors"
	"git.home.luguber.info/inful/spectra/internal/mathpix"
)

// ConvertCmd implements the 'convert' command.
type ConvertCmd struct {
	Source      string `arg:"" name:"source.ext" help:"File to convert (.md, .mmd, .pdf or an image)."`
	Destination string `arg:"" name:"destination.ext" help:"File to write (.md, .mmd, .html, .tex, .docx or .pdf)."`
	PDFMethod   string `short:"p" name:"pdf-method" enum:"latex,html" default:"latex" help:"Make PDFs from LaTeX or HTML (${enum})."`
}

func (c *ConvertCmd) Run(g *Global, _ *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	converter := convert.New(func() (convert.API, error) {
		store, err := g.credentialStore()
		if err != nil {
			return nil, err
		}
		creds, err := store.Load()
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read credentials").
				WithContext("path", store.Path).
				Build()
		}
		client, err := mathpix.NewClient(g.mathpixConfig(), creds)
		if err != nil {
			return nil, err
		}
		client.WithLogger(slog.Default())
		client.Progress = func(percent float64) {
			slog.Info(fmt.Sprintf("Processing %s: %.0f%%", c.Source, percent))
		}
		return client, nil
	}).WithLogger(slog.Default())

	res, err := converter.Convert(ctx, convert.Request{
		Source:      c.Source,
		Destination: c.Destination,
		PDFMethod:   c.PDFMethod,
	})
	if err != nil {
		return err
	}
	g.printf("%s", res.Message())
	return nil
}

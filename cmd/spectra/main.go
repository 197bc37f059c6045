package main

import (
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/spectra/cmd/spectra/commands"
	"git.home.luguber.info/inful/spectra/internal/version"
)

func main() {
	var cli commands.CLI
	parser := kong.Must(&cli,
		kong.Name("spectra"),
		kong.Description("Build static HTML sites from Markdown and Mathpix Markdown, and convert documents with the Mathpix API."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)
	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	err = ctx.Run(commands.NewGlobal(), &cli)
	os.Exit(commands.ExitCode(err, cli.Verbose))
}

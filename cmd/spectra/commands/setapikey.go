package commands

import (
	"strings"

	"git.home.luguber.info/inful/spectra/internal/config"
	"git.home.luguber.info/inful/spectra/internal/foundation/errors"
)

// SetAPIKeyCmd implements the 'set-api-key' command.
type SetAPIKeyCmd struct {
	Key string `arg:"" name:"mathpix_ocr_api_key" help:"Mathpix OCR API key."`
}

func (s *SetAPIKeyCmd) Run(g *Global, _ *CLI) error {
	key := strings.TrimSpace(s.Key)
	if key == "" {
		return errors.ValidationError("api key must not be empty").Build()
	}
	store, err := g.credentialStore()
	if err != nil {
		return err
	}
	if _, err := store.Update(map[string]string{config.EnvOCRAPIKey: key}); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "Could not write to: "+store.Path).Build()
	}
	g.printf("Saved api key to: %s", store.Path)
	return nil
}

package convert

import (
	"log/slog"
	"slices"

	"github.com/h2non/filetype"
	"github.com/ledongthuc/pdf"

	"git.home.luguber.info/inful/spectra/internal/foundation/errors"
	"git.home.luguber.info/inful/spectra/internal/logfields"
)

// supportedImageTypes are the image kinds the OCR endpoints accept.
var supportedImageTypes = []string{"png", "jpg", "gif", "webp"}

// sniffImage checks the file content, not its name, is a supported image.
func sniffImage(path string) error {
	kind, err := filetype.MatchFile(path)
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "could not read source image").
			WithContext("source", path).Build()
	}
	if kind.MIME.Type != "image" || !slices.Contains(supportedImageTypes, kind.Extension) {
		return errors.ValidationError("source is not a supported image").
			WithContext("source", path).WithContext("detected", kind.MIME.Value).Build()
	}
	return nil
}

// preflightPDF opens the PDF locally so corrupt files fail before upload.
func preflightPDF(path string, logger *slog.Logger) (err error) {
	defer func() {
		// The parser panics on some malformed inputs.
		if r := recover(); r != nil {
			err = errors.ValidationError("source is not a readable pdf").
				WithContext("source", path).WithContext("detail", r).Build()
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return errors.WrapError(err, errors.CategoryValidation, "source is not a readable pdf").
			WithContext("source", path).Build()
	}
	defer func() { _ = f.Close() }()

	pages := r.NumPage()
	if pages == 0 {
		return errors.ValidationError("source pdf has no pages").WithContext("source", path).Build()
	}
	logger.Debug("PDF preflight", logfields.File(path), logfields.Count(pages))
	return nil
}

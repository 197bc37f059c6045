package mathpix

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"git.home.luguber.info/inful/spectra/internal/foundation/errors"
)

// ExportFormat selects a /v1/export target.
type ExportFormat string

const (
	ExportDOCX     ExportFormat = "docx"
	ExportLaTeX    ExportFormat = "latex" // zip archive
	ExportPDFLaTeX ExportFormat = "pdf/latex"
	ExportPDFHTML  ExportFormat = "pdf/html"
)

// ContentType is the media type the export endpoint answers with.
func (f ExportFormat) ContentType() string {
	switch f {
	case ExportDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ExportLaTeX:
		return "application/zip"
	default:
		return "application/pdf"
	}
}

type exportRequest struct {
	MMD      string `json:"mmd"`
	FileName string `json:"fileName"`
}

// Export converts Mathpix Markdown into the given format. fileName names the
// document inside the generated file.
func (c *Client) Export(ctx context.Context, format ExportFormat, mmd, fileName string) ([]byte, error) {
	op := "export " + string(format)
	payload, err := json.Marshal(exportRequest{MMD: mmd, FileName: fileName})
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "failed to encode export request").Build()
	}

	resp, err := c.do(ctx, op, http.StatusOK, func(ctx context.Context) (*http.Request, error) {
		return c.newRequest(ctx, http.MethodPost, "/v1/export/"+string(format), bytes.NewReader(payload), "application/json")
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if !hasContentType(resp, format.ContentType()) {
		// Errors may come back with status 200 and a JSON body.
		return nil, responseError(op, resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryNetwork, "failed to read export").
			WithContext("operation", op).Build()
	}
	return data, nil
}

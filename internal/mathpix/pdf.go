package mathpix

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"git.home.luguber.info/inful/spectra/internal/foundation/errors"
	"git.home.luguber.info/inful/spectra/internal/logfields"
)

// PDF processing states.
const (
	StatusCompleted = "completed"
	StatusError     = "error"
)

// PDFStatus is the processing state of an uploaded PDF.
type PDFStatus struct {
	Status  string
	Percent float64
	Error   string
}

type ocrUploadResponse struct {
	PDFID string `json:"pdf_id"`
}

type ocrStatusResponse struct {
	Status      string  `json:"status"`
	PercentDone float64 `json:"percent_done"`
	Error       string  `json:"error"`
}

type snipPDF struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	CompletedPages int    `json:"completed_pages"`
	TotalPages     int    `json:"total_pages"`
}

type snipResponse struct {
	PDF   *snipPDF `json:"pdf"`
	Error string   `json:"error"`
}

// UploadPDF submits a PDF for processing and returns its id.
func (c *Client) UploadPDF(ctx context.Context, path string) (string, error) {
	if c.UsesOCRAPI() {
		var out ocrUploadResponse
		if err := c.upload(ctx, "upload pdf", "/v3/pdf-file", path, http.StatusOK, &out); err != nil {
			return "", err
		}
		if out.PDFID == "" {
			return "", errors.APIError("missing pdf_id in OCR API response").Build()
		}
		return out.PDFID, nil
	}

	var out snipResponse
	if err := c.upload(ctx, "upload pdf", "/v1/pdfs", path, http.StatusOK, &out); err != nil {
		return "", err
	}
	if out.PDF == nil || out.PDF.ID == "" {
		return "", errors.APIError("missing pdf id in Snip API response").Build()
	}
	return out.PDF.ID, nil
}

// PDFStatus fetches the processing state of an uploaded PDF.
func (c *Client) PDFStatus(ctx context.Context, id string) (PDFStatus, error) {
	if c.UsesOCRAPI() {
		var out ocrStatusResponse
		if err := c.getJSON(ctx, "pdf status", "/v3/pdf/"+url.PathEscape(id), &out); err != nil {
			return PDFStatus{}, err
		}
		return PDFStatus{Status: out.Status, Percent: out.PercentDone, Error: out.Error}, nil
	}

	var out snipResponse
	if err := c.getJSON(ctx, "pdf status", "/v1/pdfs/"+url.PathEscape(id), &out); err != nil {
		return PDFStatus{}, err
	}
	if out.PDF == nil {
		return PDFStatus{}, errors.APIError("missing pdf in Snip API status response").Build()
	}
	st := PDFStatus{Status: out.PDF.Status, Error: out.Error}
	if out.PDF.TotalPages > 0 {
		st.Percent = 100 * float64(out.PDF.CompletedPages) / float64(out.PDF.TotalPages)
	}
	return st, nil
}

// WaitPDF polls until the PDF is processed, fails, or the configured timeout
// passes.
func (c *Client) WaitPDF(ctx context.Context, id string) error {
	ctx, cancel := c.pollCtx(ctx)
	defer cancel()

	for {
		st, err := c.PDFStatus(ctx, id)
		if err != nil {
			return err
		}
		switch st.Status {
		case StatusCompleted:
			c.reportProgress(100)
			return nil
		case StatusError:
			return errors.APIError("Mathpix failed to process the pdf").
				WithContext("pdf_id", id).WithContext("detail", st.Error).Build()
		}
		c.reportProgress(st.Percent)
		c.logger.Debug("Waiting for pdf", logfields.JobID(id), slog.String("state", st.Status), slog.Float64("percent", st.Percent))

		if err := wait(ctx, c.pollInterval); err != nil {
			return errors.WrapError(err, errors.CategoryRuntime, "gave up waiting for pdf processing").
				WithContext("pdf_id", id).Build()
		}
	}
}

// DownloadPDF fetches a processed PDF in the given format ("mmd", "md",
// "docx", "tex", "html"). "tex" yields a zip archive.
func (c *Client) DownloadPDF(ctx context.Context, id, format string) ([]byte, error) {
	endpoint := "/v1/pdfs/" + url.PathEscape(id) + "/" + format
	if c.UsesOCRAPI() {
		endpoint = "/v3/pdf/" + url.PathEscape(id) + "." + format
	}
	return c.getBytes(ctx, "download pdf", endpoint)
}

// ConvertPDF uploads, waits for and downloads a PDF conversion.
func (c *Client) ConvertPDF(ctx context.Context, path, format string) ([]byte, error) {
	id, err := c.UploadPDF(ctx, path)
	if err != nil {
		return nil, err
	}
	c.logger.Info("Uploaded pdf", logfields.File(path), logfields.JobID(id))
	if err := c.WaitPDF(ctx, id); err != nil {
		return nil, err
	}
	return c.DownloadPDF(ctx, id, format)
}

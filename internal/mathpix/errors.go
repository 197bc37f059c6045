package mathpix

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"git.home.luguber.info/inful/spectra/internal/foundation/errors"
)

// Error ids returned by the Mathpix APIs that get a dedicated message.
const (
	ErrIDInvalidAppKey   = "invalid_app_key_header"
	ErrIDUnauthorized    = "http_unauthorized"
	ErrIDPDFPageLimit    = "pdf_page_limit_exceeded"
	ErrIDPDFPageMaxLimit = "pdf_page_max_limit"
	ErrIDSnipMaxLimit    = "snip_max_limit"
	ErrIDMaxRequests     = "http_max_requests"
)

type apiErrorBody struct {
	Errors []struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	} `json:"errors"`
	Error     string `json:"error"`
	ErrorInfo struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	} `json:"error_info"`
}

func (b apiErrorBody) id() string {
	if len(b.Errors) > 0 && b.Errors[0].ID != "" {
		return b.Errors[0].ID
	}
	return b.ErrorInfo.ID
}

func (b apiErrorBody) message() string {
	switch {
	case len(b.Errors) > 0 && b.Errors[0].Message != "":
		return b.Errors[0].Message
	case b.ErrorInfo.Message != "":
		return b.ErrorInfo.Message
	}
	return b.Error
}

// responseError classifies a response with an unexpected status.
func responseError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body apiErrorBody
	if hasContentType(resp, "application/json") {
		_ = json.Unmarshal(raw, &body)
	}
	if err := knownError(body.id()); err != nil {
		return err.WithContext("operation", op).WithContext("status", resp.StatusCode).Build()
	}

	var b *errors.ErrorBuilder
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		b = errors.AuthError("Mathpix rejected the credentials").UserAction()
	case resp.StatusCode == http.StatusNotFound:
		b = errors.NotFoundError(describe(op, resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests:
		b = errors.APIError(describe(op, resp.StatusCode)).RateLimit()
	case resp.StatusCode >= 500:
		b = errors.APIError(describe(op, resp.StatusCode)).Retryable()
	default:
		b = errors.APIError(describe(op, resp.StatusCode))
	}
	b = b.WithContext("operation", op).WithContext("status", resp.StatusCode)
	if id := body.id(); id != "" {
		b = b.WithContext("error_id", id)
	}
	if msg := body.message(); msg != "" {
		b = b.WithContext("detail", msg)
	} else if text := strings.TrimSpace(string(raw)); text != "" {
		b = b.WithContext("response", strings.ReplaceAll(text, "\n", " "))
	}
	return b.Build()
}

// knownError maps documented error ids to user-facing errors.
func knownError(id string) *errors.ErrorBuilder {
	switch id {
	case ErrIDInvalidAppKey, ErrIDUnauthorized:
		return errors.AuthError(`invalid app key set in "MATHPIX_OCR_API_KEY"`).UserAction()
	case ErrIDPDFPageLimit:
		return errors.APIError("this pdf would put you over your OCR API's PDF page limit; " +
			"contact support@mathpix.com to request a higher limit").UserAction()
	case ErrIDPDFPageMaxLimit:
		return errors.APIError("this pdf would put you over your Snip plan's PDF page limit; " +
			"upgrade your plan or enable extra usage at https://accounts.mathpix.com").UserAction()
	case ErrIDSnipMaxLimit:
		return errors.APIError("this image would put you over your Snip plan's snip limit; " +
			"upgrade your plan or enable extra usage at https://accounts.mathpix.com").UserAction()
	case ErrIDMaxRequests:
		return errors.APIError("request rate limit reached; contact support@mathpix.com to increase your limit").
			RateLimit()
	}
	return nil
}

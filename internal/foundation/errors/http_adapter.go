package errors

import (
	"log/slog"
	"net/http"
)

// HTTPErrorAdapter writes plain-text error responses for the preview server.
type HTTPErrorAdapter struct {
	logger *slog.Logger
}

// NewHTTPErrorAdapter creates an adapter; a nil logger uses the default.
func NewHTTPErrorAdapter(logger *slog.Logger) *HTTPErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPErrorAdapter{logger: logger}
}

// StatusCodeFor maps err's category to an HTTP status. Unknown errors map to 500.
func (a *HTTPErrorAdapter) StatusCodeFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	c, ok := AsClassified(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch c.Category() {
	case CategoryValidation, CategoryConfig:
		return http.StatusBadRequest
	case CategoryAuth:
		return http.StatusUnauthorized
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryNetwork, CategoryAPI:
		return http.StatusBadGateway
	case CategoryBuild:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as a plain-text response and logs it.
func (a *HTTPErrorAdapter) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := a.StatusCodeFor(err)
	msg := http.StatusText(status)
	if c, ok := AsClassified(err); ok {
		msg = c.Message()
		a.logger.Log(r.Context(), levelFor(c.Severity()), c.Error(), slog.String("path", r.URL.Path))
	} else {
		a.logger.Error(err.Error(), slog.String("path", r.URL.Path))
	}
	http.Error(w, msg, status)
}

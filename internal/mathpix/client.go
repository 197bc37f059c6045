// Package mathpix is a client for the Mathpix conversion and OCR APIs.
//
// Two credential kinds are supported. An OCR API key is sent in the app_key
// header and uses the /v3 endpoints; a Snip auth token is sent as a bearer
// token and uses the /v1 endpoints. The API key wins when both are set.
package mathpix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/spectra/internal/config"
	"git.home.luguber.info/inful/spectra/internal/foundation/errors"
	"git.home.luguber.info/inful/spectra/internal/logfields"
	"git.home.luguber.info/inful/spectra/internal/retry"
	"git.home.luguber.info/inful/spectra/internal/version"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// Client talks to one Mathpix deployment with one set of credentials.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	creds        config.Credentials
	policy       retry.Policy
	pollInterval time.Duration
	timeout      time.Duration
	logger       *slog.Logger

	// Progress, when set, receives the completion percentage while a PDF is
	// being processed.
	Progress func(percent float64)
}

// NewClient builds a client. It fails with an auth error when neither an OCR
// API key nor a Snip token is available.
func NewClient(cfg config.MathpixConfig, creds config.Credentials) (*Client, error) {
	if creds.Empty() {
		return nil, errors.AuthError("no Mathpix credentials found").
			UserAction().
			WithContext("hint", "run `spectra set-api-key <key>` or set "+config.EnvOCRAPIKey).
			Build()
	}
	policy := retry.FromConfig(cfg)
	if err := policy.Validate(); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "invalid mathpix retry settings").Build()
	}
	return &Client{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient:   &http.Client{Timeout: 2 * time.Minute},
		creds:        creds,
		policy:       policy,
		pollInterval: cfg.PollInterval,
		timeout:      cfg.Timeout,
		logger:       slog.Default(),
	}, nil
}

// WithHTTPClient replaces the HTTP client.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	if h != nil {
		c.httpClient = h
	}
	return c
}

// WithLogger sets the logger.
func (c *Client) WithLogger(l *slog.Logger) *Client {
	if l != nil {
		c.logger = l
	}
	return c
}

// UsesOCRAPI reports whether requests authenticate with the OCR API key.
func (c *Client) UsesOCRAPI() bool { return c.creds.OCRAPIKey != "" }

func (c *Client) authorize(req *http.Request) {
	if c.UsesOCRAPI() {
		req.Header.Set("app_key", c.creds.OCRAPIKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.creds.SnipToken)
	}
	req.Header.Set("User-Agent", "spectra/"+version.Version)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader, contentType string) (*http.Request, error) {
	u := c.baseURL + "/" + strings.TrimPrefix(endpoint, "/")
	if body == nil {
		body = http.NoBody
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "failed to create request").
			WithContext("method", method).WithContext("url", u).Build()
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	c.authorize(req)
	return req, nil
}

// do sends a request built by build, retrying transient failures. The
// response is returned only for the expected status; callers close it.
func (c *Client) do(ctx context.Context, op string, wantStatus int, build func(context.Context) (*http.Request, error)) (*http.Response, error) {
	var resp *http.Response
	err := retry.Do(ctx, c.policy, op, func(ctx context.Context) error {
		req, err := build(ctx)
		if err != nil {
			return err
		}
		c.logger.Debug("Mathpix request", logfields.Method(req.Method), logfields.URL(req.URL.String()))
		r, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.WrapError(err, errors.CategoryNetwork, "request to Mathpix failed").
				Retryable().WithContext("operation", op).Build()
		}
		if r.StatusCode != wantStatus {
			defer func() { _ = r.Body.Close() }()
			return responseError(op, r)
		}
		resp = r
		return nil
	})
	return resp, err
}

func (c *Client) getJSON(ctx context.Context, op, endpoint string, out any) error {
	resp, err := c.do(ctx, op, http.StatusOK, func(ctx context.Context) (*http.Request, error) {
		return c.newRequest(ctx, http.MethodGet, endpoint, nil, "")
	})
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	return decodeJSON(op, resp, out)
}

func (c *Client) getBytes(ctx context.Context, op, endpoint string) ([]byte, error) {
	resp, err := c.do(ctx, op, http.StatusOK, func(ctx context.Context) (*http.Request, error) {
		return c.newRequest(ctx, http.MethodGet, endpoint, nil, "")
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryNetwork, "failed to read Mathpix response").
			WithContext("operation", op).Build()
	}
	return data, nil
}

// upload posts path as the multipart field "file" and decodes the JSON reply.
func (c *Client) upload(ctx context.Context, op, endpoint, path string, wantStatus int, out any) error {
	resp, err := c.do(ctx, op, wantStatus, func(ctx context.Context) (*http.Request, error) {
		body, contentType, err := multipartFile(path)
		if err != nil {
			return nil, err
		}
		return c.newRequest(ctx, http.MethodPost, endpoint, body, contentType)
	})
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	return decodeJSON(op, resp, out)
}

func multipartFile(path string) (io.Reader, string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, "", errors.WrapError(err, errors.CategoryFileSystem, "failed to open upload").
			WithContext("path", path).Build()
	}
	defer func() { _ = f.Close() }()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", errors.WrapError(err, errors.CategoryFileSystem, "failed to read upload").
			WithContext("path", path).Build()
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func decodeJSON(op string, resp *http.Response, out any) error {
	if !hasContentType(resp, "application/json") {
		return errors.APIError("unexpected content type from Mathpix").
			WithContext("operation", op).
			WithContext("content_type", resp.Header.Get("Content-Type")).Build()
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.WrapError(err, errors.CategoryAPI, "failed to decode Mathpix response").
			WithContext("operation", op).Build()
	}
	return nil
}

func hasContentType(resp *http.Response, want string) bool {
	mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return err == nil && strings.EqualFold(mt, want)
}

func (c *Client) pollCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

func (c *Client) reportProgress(percent float64) {
	if c.Progress != nil {
		c.Progress(percent)
	}
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func describe(op string, status int) string {
	return fmt.Sprintf("%s: unexpected response %d %s", op, status, http.StatusText(status))
}

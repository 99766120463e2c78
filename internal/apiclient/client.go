// Package apiclient is the single HTTP client for the upstream API. It
// resolves paths against one configured base URL, decodes JSON envelopes,
// and normalizes every failure into a coded error with request context.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookden/internal/platform/metrics"
	"bookden/pkg/domainerrors"
	"bookden/pkg/platform/sanitize"
)

const defaultTimeout = 30 * time.Second

// Config describes how to construct the shared client.
type Config struct {
	// BaseURL is the upstream API root, e.g. "https://api.example.com/api/v1/".
	BaseURL string
	// Headers are applied to every request. Content-Type defaults to JSON.
	Headers map[string]string
	// Timeout bounds each request end to end. Zero means 30s.
	Timeout time.Duration
	// Transport lets callers layer interceptors under the client. Nil means
	// http.DefaultTransport.
	Transport http.RoundTripper

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Client issues requests against the configured base URL. Construct it with
// New; the zero value fails every call with a configuration error.
type Client struct {
	base    *url.URL
	httpc   *http.Client
	headers map[string]string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New validates the configuration and builds the client. It is the only
// constructor; there is no package-level instance.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, domainerrors.New(domainerrors.CodeConfiguration, "apiclient: base URL is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, domainerrors.Newf(domainerrors.CodeConfiguration, "apiclient: invalid base URL %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	headers := map[string]string{"Content-Type": "application/json"}
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	return &Client{
		base:    base,
		httpc:   &http.Client{Transport: transport, Timeout: timeout},
		headers: headers,
		logger:  logger,
		metrics: cfg.Metrics,
	}, nil
}

// BaseURL returns a copy of the configured upstream root.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// Origin returns the scheme://host of the configured upstream.
func (c *Client) Origin() string {
	return c.base.Scheme + "://" + c.base.Host
}

// Get issues a GET and decodes the response body into out (which may be nil).
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, nil, body, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodDelete, path, query, nil, out)
}

// PostFile uploads a single file as multipart form data.
func (c *Client) PostFile(ctx context.Context, path, field, filename string, content io.Reader, out any) error {
	if err := c.ready(); err != nil {
		return err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "building multipart body")
	}
	if _, err := io.Copy(part, content); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "reading upload content")
	}
	if err := mw.Close(); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "finalizing multipart body")
	}

	return c.send(ctx, http.MethodPost, path, nil, buf.Bytes(), mw.FormDataContentType(), out)
}

// ready fails fast when the client was not built through New, so misuse
// surfaces as a configuration error instead of a nil dereference.
func (c *Client) ready() error {
	if c == nil || c.base == nil || c.httpc == nil {
		return domainerrors.New(domainerrors.CodeConfiguration,
			"apiclient not initialized: construct it with apiclient.New before issuing requests")
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := c.ready(); err != nil {
		return err
	}

	var payload []byte
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "encoding request body")
		}
		payload = data
		contentType = c.headers["Content-Type"]
	}
	return c.send(ctx, method, path, query, payload, contentType, out)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload []byte, contentType string, out any) error {
	target, err := c.resolve(path)
	if err != nil {
		return err
	}
	if len(query) > 0 {
		q := target.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		target.RawQuery = q.Encode()
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), bodyReader)
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "building request")
	}
	// Buffered body so the auth transport can replay the request after a
	// token refresh.
	if payload != nil {
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(payload)), nil
		}
	}

	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(method, "error", time.Since(start))
		c.logger.WarnContext(ctx, "request failed",
			"method", method,
			"path", path,
			"request_id", requestID,
			"error", sanitize.ForLog(err),
		)
		return domainerrors.Wrap(err, domainerrors.CodeNetwork,
			fmt.Sprintf("%s %s did not complete", method, path))
	}
	defer resp.Body.Close()

	c.metrics.ObserveRequest(method, strconv.Itoa(resp.StatusCode), time.Since(start))

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeNetwork, "reading response body")
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{
			Status:    resp.StatusCode,
			Method:    method,
			Path:      path,
			RequestID: requestID,
			Message:   serverMessage(respBody),
		}
		c.logger.WarnContext(ctx, "api error",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"request_id", requestID,
			"message", apiErr.Message,
		)
		return domainerrors.Wrap(apiErr, codeForStatus(resp.StatusCode), "api request failed")
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal,
			fmt.Sprintf("decoding %s %s response", method, path))
	}
	return nil
}

// resolve joins a relative path onto the base URL. Absolute URLs pass
// through untouched; the auth transport decides whether they are
// same-origin before attaching credentials.
func (c *Client) resolve(path string) (*url.URL, error) {
	if strings.Contains(path, "://") {
		u, err := url.Parse(path)
		if err != nil {
			return nil, domainerrors.Newf(domainerrors.CodeInternal, "invalid request URL %q", path)
		}
		return u, nil
	}
	return c.base.JoinPath(path), nil
}

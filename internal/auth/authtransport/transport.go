// Package authtransport attaches bearer credentials to outgoing requests
// and transparently recovers from expired-token responses.
//
// It layers as an http.RoundTripper under the shared API client. It depends
// only on the narrow SessionHooks surface, never on the session package, so
// the session manager can in turn issue its own requests through a client
// wrapped by this transport without a dependency cycle.
package authtransport

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"bookden/internal/platform/metrics"
)

// PublicEndpoints are the auth bootstrap routes that must never carry a
// bearer token. Matching is by path suffix, mirroring how callers address
// them relative to the API base.
var PublicEndpoints = []string{
	"/account/registration/",
	"/account/authenticate/",
	"/account/verify-token/",
	"/account/logout/",
	"/account/refresh-token/",
}

// IsPublicEndpoint reports whether the path targets a public auth route.
func IsPublicEndpoint(path string) bool {
	for _, endpoint := range PublicEndpoints {
		if strings.HasSuffix(path, endpoint) {
			return true
		}
	}
	return false
}

// TokenSource yields the current access token, empty when absent.
type TokenSource interface {
	AccessToken() string
}

// SessionHooks is what the transport needs from the session layer.
// Refresh must be safe to call concurrently and must coalesce overlapping
// invocations; ForceLogout must be idempotent for an already-torn-down
// session.
type SessionHooks interface {
	Refresh(ctx context.Context) bool
	ForceLogout()
}

// Transport implements the request/response interceptor pipeline.
type Transport struct {
	next    http.RoundTripper
	origin  string
	tokens  TokenSource
	hooks   SessionHooks
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures optional Transport collaborators.
type Option func(*Transport)

// WithLogger sets the transport logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) { t.logger = logger }
}

// WithMetrics sets the transport metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Transport) { t.metrics = m }
}

// New wraps next with the auth pipeline. origin is the scheme://host of the
// configured API base; bearer tokens are attached only to requests whose
// target matches it exactly, so credentials never leak to other hosts.
func New(next http.RoundTripper, origin string, tokens TokenSource, hooks SessionHooks, opts ...Option) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	t := &Transport{
		next:   next,
		origin: origin,
		tokens: tokens,
		hooks:  hooks,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RoundTrip runs the pipeline for one logical request:
//
//	attach -> send -> (401, first time, non-public) -> refresh -> resend once
//
// The retried request's outcome, success or failure, is returned as-is. A
// failed refresh tears the session down and propagates the original 401.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	public := IsPublicEndpoint(req.URL.Path)
	sameOrigin := t.sameOrigin(req)

	outgoing := req.Clone(req.Context())
	if !public && sameOrigin {
		if token := t.tokens.AccessToken(); token != "" {
			outgoing.Header.Set("Authorization", "Bearer "+token)
		}
	}

	// A 401 from a foreign origin is not ours to recover from: refreshing
	// and retrying would hand the fresh token to that origin.
	resp, err := t.next.RoundTrip(outgoing)
	if err != nil || resp.StatusCode != http.StatusUnauthorized || public || !sameOrigin {
		return resp, err
	}

	// A request whose body cannot be replayed is not retryable.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	if !t.hooks.Refresh(req.Context()) {
		t.logger.WarnContext(req.Context(), "token refresh failed, forcing logout",
			"method", req.Method, "path", req.URL.Path)
		t.hooks.ForceLogout()
		return resp, nil
	}

	token := t.tokens.AccessToken()
	if token == "" {
		t.hooks.ForceLogout()
		return resp, nil
	}

	retry, err := t.replayable(req)
	if err != nil {
		return resp, nil
	}
	retry.Header.Set("Authorization", "Bearer "+token)

	t.metrics.IncrementAuthRetries()
	t.logger.DebugContext(req.Context(), "retrying request with refreshed token",
		"method", req.Method, "path", req.URL.Path)

	resp.Body.Close()
	// Sent through next, not through RoundTrip, so the retry can never
	// trigger a second refresh.
	return t.next.RoundTrip(retry)
}

// sameOrigin reports whether the request targets the configured API origin.
// Requests resolved against the shared client's base URL always do; an
// absolute URL pointing elsewhere must stay unauthenticated.
func (t *Transport) sameOrigin(req *http.Request) bool {
	if req.URL.Host == "" {
		// Bare relative path, only resolvable against our base.
		return true
	}
	return req.URL.Scheme+"://"+req.URL.Host == t.origin
}

// replayable rebuilds the original request with a fresh body.
func (t *Transport) replayable(req *http.Request) (*http.Request, error) {
	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	return retry, nil
}

package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/vyrodovalexey/avabank/internal/credential"
	"github.com/vyrodovalexey/avabank/internal/observability"
)

// Default gateway settings.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultLoginRoute = "/login"

	tracerName = "avabank/gateway"

	teardownStepEndSession = "end_session"
	teardownStepNavigate   = "navigate"
	teardownFlightKey      = "teardown"
)

// SessionEnder ends the signed-in session.
type SessionEnder interface {
	EndSession(ctx context.Context) error
}

// Navigator moves the application to a route.
type Navigator interface {
	NavigateTo(ctx context.Context, path string) error
}

// SessionEnderFunc adapts a function to SessionEnder.
type SessionEnderFunc func(ctx context.Context) error

// EndSession calls f(ctx).
func (f SessionEnderFunc) EndSession(ctx context.Context) error {
	return f(ctx)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, path string) error

// NavigateTo calls f(ctx, path).
func (f NavigatorFunc) NavigateTo(ctx context.Context, path string) error {
	return f(ctx, path)
}

// RequestInterceptor inspects or modifies an outbound request after the
// authorization stage. Returning an error aborts the request.
type RequestInterceptor func(ctx context.Context, req *http.Request) error

// ResponseInterceptor observes a received response before the
// session-expiry stage.
type ResponseInterceptor func(ctx context.Context, resp *Response) error

// Config holds the fixed gateway settings.
type Config struct {
	// BaseURL is the API origin every request path is resolved against.
	BaseURL string

	// Timeout bounds each request. Zero uses DefaultTimeout.
	Timeout time.Duration

	// LoginRoute is the route navigated to when the session expires.
	LoginRoute string

	// CredentialKey is the store key holding the bearer token.
	CredentialKey string
}

// Gateway issues API requests with the authorization and session-expiry
// stages applied. It is safe for concurrent use.
type Gateway struct {
	baseURL       *url.URL
	loginRoute    string
	credentialKey string

	credentials credential.Reader
	session     SessionEnder
	navigator   Navigator

	client       *http.Client
	baseRT       http.RoundTripper
	maxBodyBytes int64
	logger       observability.Logger
	metrics      *Metrics
	tracer       trace.Tracer

	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor

	dedupTeardown bool
	teardowns     singleflight.Group

	breaker *breakerTransport

	cbThreshold int
	cbTimeout   time.Duration
	rlRPS       int
	rlBurst     int
}

// Option is a functional option for configuring the gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(metrics *Metrics) Option {
	return func(g *Gateway) {
		g.metrics = metrics
	}
}

// WithTracerProvider sets the tracer provider. The global provider is used
// otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(g *Gateway) {
		g.tracer = tp.Tracer(tracerName)
	}
}

// WithTransport sets the base round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(g *Gateway) {
		g.baseRT = rt
	}
}

// WithMaxResponseBytes caps the bytes read from a response body. A larger
// success body fails with ErrResponseTooLarge. Non-positive values are
// ignored.
func WithMaxResponseBytes(n int64) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.maxBodyBytes = n
		}
	}
}

// WithRequestInterceptor appends an outbound interceptor.
func WithRequestInterceptor(ic RequestInterceptor) Option {
	return func(g *Gateway) {
		g.requestInterceptors = append(g.requestInterceptors, ic)
	}
}

// WithResponseInterceptor appends an inbound interceptor.
func WithResponseInterceptor(ic ResponseInterceptor) Option {
	return func(g *Gateway) {
		g.responseInterceptors = append(g.responseInterceptors, ic)
	}
}

// WithTeardownDedup collapses concurrent session-expiry handling into one
// in-flight teardown and redirect. Every caller still waits for it.
func WithTeardownDedup(enabled bool) Option {
	return func(g *Gateway) {
		g.dedupTeardown = enabled
	}
}

// WithCircuitBreaker rejects requests for timeout after threshold
// consecutive failures.
func WithCircuitBreaker(threshold int, timeout time.Duration) Option {
	return func(g *Gateway) {
		g.cbThreshold = threshold
		g.cbTimeout = timeout
	}
}

// WithRateLimit limits outbound requests to rps with the given burst.
func WithRateLimit(rps, burst int) Option {
	return func(g *Gateway) {
		g.rlRPS = rps
		g.rlBurst = burst
	}
}

// New creates a gateway. All stages are fixed here and cannot be added
// later.
func New(
	cfg Config,
	credentials credential.Reader,
	session SessionEnder,
	navigator Navigator,
	opts ...Option,
) (*Gateway, error) {
	if credentials == nil || session == nil || navigator == nil {
		return nil, fmt.Errorf("%w: credential reader, session and navigator are required", ErrInvalidConfig)
	}

	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: base url: %w", ErrInvalidConfig, err)
	}
	if (baseURL.Scheme != "http" && baseURL.Scheme != "https") || baseURL.Host == "" {
		return nil, fmt.Errorf("%w: base url %q must be an absolute http(s) url", ErrInvalidConfig, cfg.BaseURL)
	}

	g := &Gateway{
		baseURL:       baseURL,
		loginRoute:    cfg.LoginRoute,
		credentialKey: cfg.CredentialKey,
		credentials:   credentials,
		session:       session,
		navigator:     navigator,
		baseRT:        http.DefaultTransport,
		maxBodyBytes:  DefaultMaxResponseBytes,
		logger:        observability.NopLogger(),
		tracer:        otel.GetTracerProvider().Tracer(tracerName),
	}
	if g.loginRoute == "" {
		g.loginRoute = DefaultLoginRoute
	}
	if g.credentialKey == "" {
		g.credentialKey = credential.DefaultKey
	}

	for _, opt := range opts {
		opt(g)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	rt := g.baseRT
	if g.cbThreshold > 0 {
		g.breaker = newBreakerTransport(rt, g.cbThreshold, g.cbTimeout, g.logger)
		rt = g.breaker
	}
	if g.rlRPS > 0 {
		rt = newRateLimitTransport(rt, g.rlRPS, g.rlBurst)
	}

	g.client = &http.Client{
		Transport: rt,
		Timeout:   timeout,
	}

	return g, nil
}

// BaseURL returns the configured base URL.
func (g *Gateway) BaseURL() string {
	return g.baseURL.String()
}

// Get issues a GET request.
func (g *Gateway) Get(ctx context.Context, path string) (*Response, error) {
	return g.Do(ctx, &Request{Method: http.MethodGet, Path: path})
}

// Post issues a POST request with body.
func (g *Gateway) Post(ctx context.Context, path string, body any) (*Response, error) {
	return g.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put issues a PUT request with body.
func (g *Gateway) Put(ctx context.Context, path string, body any) (*Response, error) {
	return g.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body})
}

// Patch issues a PATCH request with body.
func (g *Gateway) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return g.Do(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Delete issues a DELETE request.
func (g *Gateway) Delete(ctx context.Context, path string) (*Response, error) {
	return g.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
}

// Do issues r. Responses with status below 400 are returned; anything else
// is returned as *HTTPError, *TransportError or *CredentialError.
func (g *Gateway) Do(ctx context.Context, r *Request) (*Response, error) {
	ctx, _ = observability.EnsureCorrelationID(ctx)

	method := strings.ToUpper(r.Method)
	if method == "" {
		method = http.MethodGet
	}

	ctx, span := g.tracer.Start(ctx, "gateway.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", r.Path),
		),
	)
	defer span.End()
	ctx = observability.ContextWithSpanIDs(ctx, span)

	start := time.Now()
	resp, err := g.do(ctx, r)
	duration := time.Since(start)

	g.record(ctx, span, method, r.Path, resp, err, duration)

	return resp, err
}

func (g *Gateway) do(ctx context.Context, r *Request) (*Response, error) {
	req, err := g.newHTTPRequest(ctx, r)
	if err != nil {
		return nil, err
	}

	if err := g.authorize(ctx, req); err != nil {
		return nil, err
	}

	for _, ic := range g.requestInterceptors {
		if err := ic(ctx, req); err != nil {
			return nil, err
		}
	}

	httpResp, err := g.client.Do(req)
	if err != nil {
		return nil, &TransportError{
			Method: req.Method,
			URL:    req.URL.Redacted(),
			Reason: classifyTransportError(err),
			Cause:  err,
		}
	}

	resp, err := g.readResponse(req, r.Path, httpResp)
	if err != nil {
		return nil, err
	}

	// Interceptors may rewrite the response but not the status the
	// session-expiry stage acts on.
	status := resp.StatusCode

	var interceptErr error
	for _, ic := range g.responseInterceptors {
		if err := ic(ctx, resp); err != nil {
			interceptErr = err
			break
		}
	}

	if err := g.checkResponse(ctx, resp, status); err != nil {
		return nil, err
	}
	if interceptErr != nil {
		return nil, interceptErr
	}

	return resp, nil
}

// authorize sets the bearer header when a non-empty credential is stored.
func (g *Gateway) authorize(ctx context.Context, req *http.Request) error {
	token, ok, err := g.credentials.Get(ctx, g.credentialKey)
	if err != nil {
		return &CredentialError{Key: g.credentialKey, Cause: err}
	}
	if ok && token != "" {
		req.Header.Set(HeaderAuthorization, bearerPrefix+token)
	}
	return nil
}

// readResponse drains and closes the body. A body read failure or an
// oversized body on an error status keeps the partial body so the status is
// still acted upon.
func (g *Gateway) readResponse(req *http.Request, path string, httpResp *http.Response) (*Response, error) {
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, g.maxBodyBytes+1))
	if err == nil && int64(len(body)) > g.maxBodyBytes {
		body = body[:g.maxBodyBytes]
		if httpResp.StatusCode < http.StatusBadRequest {
			return nil, fmt.Errorf("%s %s: %w: limit is %d bytes",
				req.Method, req.URL.Redacted(), ErrResponseTooLarge, g.maxBodyBytes)
		}
		g.logger.WithContext(req.Context()).Warn("error response body truncated",
			observability.Int("status", httpResp.StatusCode),
			observability.Int64("limit", g.maxBodyBytes),
		)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
		Method:     req.Method,
		Path:       path,
		Request:    req,
	}

	if err != nil {
		if httpResp.StatusCode < http.StatusBadRequest {
			return nil, &TransportError{
				Method: req.Method,
				URL:    req.URL.Redacted(),
				Reason: classifyTransportError(err),
				Cause:  fmt.Errorf("read body: %w", err),
			}
		}
		g.logger.WithContext(req.Context()).Warn("partial error response body",
			observability.Int("status", httpResp.StatusCode),
			observability.Error(err),
		)
	}

	return resp, nil
}

// checkResponse is the session-expiry stage. status is the code the server
// sent.
func (g *Gateway) checkResponse(ctx context.Context, resp *Response, status int) error {
	if status < http.StatusBadRequest {
		return nil
	}
	resp.StatusCode = status
	if isSessionExpiredStatus(status) {
		g.expireSession(ctx, resp)
	}
	return &HTTPError{Response: resp}
}

// expireSession ends the session and then navigates to the login route. It
// returns only after both steps finished.
func (g *Gateway) expireSession(ctx context.Context, resp *Response) {
	g.metrics.RecordSessionExpired(resp.StatusCode)

	// The teardown completes even when the caller gives up on the request.
	ctx = context.WithoutCancel(ctx)

	if !g.dedupTeardown {
		g.teardown(ctx, resp)
		return
	}

	_, _, shared := g.teardowns.Do(teardownFlightKey, func() (interface{}, error) {
		g.teardown(ctx, resp)
		return nil, nil
	})
	if shared {
		g.logger.WithContext(ctx).Debug("joined in-flight session teardown",
			observability.String("path", resp.Path),
		)
	}
}

func (g *Gateway) teardown(ctx context.Context, resp *Response) {
	ctx, span := g.tracer.Start(ctx, "gateway.session_teardown",
		trace.WithAttributes(attribute.Int("http.response.status_code", resp.StatusCode)),
	)
	defer span.End()

	logger := g.logger.WithContext(ctx)
	logger.Info("session expired, signing out",
		observability.String("method", resp.Method),
		observability.String("path", resp.Path),
		observability.Int("status", resp.StatusCode),
	)

	if err := g.session.EndSession(ctx); err != nil {
		g.metrics.RecordTeardownFailure(teardownStepEndSession)
		span.RecordError(err)
		logger.Error("failed to end session", observability.Error(err))
	}

	if err := g.navigator.NavigateTo(ctx, g.loginRoute); err != nil {
		g.metrics.RecordTeardownFailure(teardownStepNavigate)
		span.RecordError(err)
		logger.Error("failed to navigate to login",
			observability.String("route", g.loginRoute),
			observability.Error(err),
		)
	}
}

// record updates metrics, the span and the log for a finished request.
func (g *Gateway) record(
	ctx context.Context,
	span trace.Span,
	method, path string,
	resp *Response,
	err error,
	duration time.Duration,
) {
	logger := g.logger.WithContext(ctx)

	var (
		httpErr  *HTTPError
		tErr     *TransportError
		credErr  *CredentialError
		outcome  string
		logLevel = logger.Debug
	)

	fields := []observability.Field{
		observability.String("method", method),
		observability.String("path", path),
		observability.Duration("duration", duration),
	}

	switch {
	case err == nil:
		outcome = statusClass(resp.StatusCode)
		span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
		fields = append(fields, observability.Int("status", resp.StatusCode))

	case errors.As(err, &httpErr):
		outcome = statusClass(httpErr.Response.StatusCode)
		span.SetAttributes(attribute.Int("http.response.status_code", httpErr.Response.StatusCode))
		span.SetStatus(codes.Error, strconv.Itoa(httpErr.Response.StatusCode))
		fields = append(fields, observability.Int("status", httpErr.Response.StatusCode))
		logLevel = logger.Warn

	case errors.As(err, &tErr):
		outcome = "no_response"
		g.metrics.RecordTransportFailure(tErr.Reason)
		span.RecordError(err)
		span.SetStatus(codes.Error, tErr.Reason)
		fields = append(fields, observability.String("reason", tErr.Reason), observability.Error(err))
		logLevel = logger.Warn

	case errors.As(err, &credErr):
		outcome = "credential_error"
		g.metrics.RecordCredentialFailure()
		span.RecordError(err)
		span.SetStatus(codes.Error, "credential unavailable")
		fields = append(fields, observability.Error(err))
		logLevel = logger.Error

	default:
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		fields = append(fields, observability.Error(err))
		logLevel = logger.Warn
	}

	g.metrics.RecordRequest(method, outcome, duration)
	logLevel("api request", fields...)
}

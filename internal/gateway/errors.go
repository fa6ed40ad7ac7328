package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for gateway operations.
var (
	// ErrSessionExpired matches HTTP errors with status 401 or 403.
	ErrSessionExpired = errors.New("session expired")

	// ErrNoResponse matches failures where no response was received.
	ErrNoResponse = errors.New("no response received")

	// ErrCredentialUnavailable matches failures reading the session credential.
	ErrCredentialUnavailable = errors.New("credential unavailable")

	// ErrCircuitOpen indicates the circuit breaker rejected the request.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrRateLimited indicates the request could not obtain a rate limit token.
	ErrRateLimited = errors.New("rate limit wait failed")

	// ErrInvalidPath indicates a request path that is not relative to the base URL.
	ErrInvalidPath = errors.New("invalid request path")

	// ErrResponseTooLarge indicates a success body over the read limit.
	ErrResponseTooLarge = errors.New("response body too large")

	// ErrInvalidConfig indicates an invalid gateway configuration.
	ErrInvalidConfig = errors.New("invalid gateway configuration")

	// ErrNotInitialized is returned by Default before Init succeeded.
	ErrNotInitialized = errors.New("gateway not initialized")
)

// CredentialError reports that the session credential could not be read.
// The request was not sent.
type CredentialError struct {
	Key   string
	Cause error
}

// Error implements the error interface.
func (e *CredentialError) Error() string {
	return fmt.Sprintf("read credential %q: %v", e.Key, e.Cause)
}

// Unwrap returns the underlying error.
func (e *CredentialError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrCredentialUnavailable.
func (e *CredentialError) Is(target error) bool {
	return target == ErrCredentialUnavailable
}

// HTTPError is returned for responses with status 400 or above.
type HTTPError struct {
	Response *Response
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Response.Method, e.Response.Path, e.Response.StatusCode)
	if m := e.Response.message(); m != "" {
		msg += ": " + m
	}
	return msg
}

// StatusCode returns the response status.
func (e *HTTPError) StatusCode() int {
	return e.Response.StatusCode
}

// Is reports whether target is ErrSessionExpired and the status is 401 or 403.
func (e *HTTPError) Is(target error) bool {
	return target == ErrSessionExpired && isSessionExpiredStatus(e.Response.StatusCode)
}

// TransportError reports a request that never produced a response:
// connection failure, timeout, cancellation, open circuit or rate limit.
type TransportError struct {
	Method string
	URL    string
	Reason string
	Cause  error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: no response (%s): %v", e.Method, e.URL, e.Reason, e.Cause)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrNoResponse.
func (e *TransportError) Is(target error) bool {
	return target == ErrNoResponse
}

// Transport failure reasons.
const (
	ReasonNetwork     = "network"
	ReasonTimeout     = "timeout"
	ReasonCanceled    = "canceled"
	ReasonCircuitOpen = "circuit_open"
	ReasonRateLimited = "rate_limited"
)

// StatusCode returns the HTTP status carried by err, or 0 when err did not
// come from a received response.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Response.StatusCode
	}
	return 0
}

// IsSessionExpired reports whether err is a 401 or 403 response.
func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}

// IsNoResponse reports whether err is a failure without a response.
func IsNoResponse(err error) bool {
	return errors.Is(err, ErrNoResponse)
}

// Message returns a human readable message for err. For HTTP errors the
// server's {"message": "..."} body is preferred, then the status text.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if m := httpErr.Response.message(); m != "" {
			return m
		}
		return http.StatusText(httpErr.Response.StatusCode)
	}
	return err.Error()
}

func isSessionExpiredStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// message extracts a server supplied message from a JSON body.
func (r *Response) message() string {
	if len(r.Body) == 0 {
		return ""
	}
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(r.Body, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return strings.TrimSpace(body.Message)
	}
	return strings.TrimSpace(body.Error)
}

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Header names and values used by the gateway.
const (
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"
	ContentTypeJSON     = "application/json"

	bearerPrefix = "Bearer "
)

// DefaultMaxResponseBytes caps how much of a response body is read.
const DefaultMaxResponseBytes int64 = 10 << 20

// Request describes an outbound call relative to the gateway base URL.
type Request struct {
	Method string

	// Path is relative to the base URL and may carry a query string.
	Path string

	// Query is merged into the query string of Path.
	Query url.Values

	// Header holds caller supplied headers. The gateway only ever adds
	// Authorization, and Content-Type for bodies without one.
	Header http.Header

	// Body is sent as is when it is []byte, string or io.Reader, and is
	// JSON encoded otherwise. Nil sends no body.
	Body any
}

// Response is a received HTTP response with its body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// Method and Path identify the originating request.
	Method string
	Path   string

	// Request is the request that was sent.
	Request *http.Request
}

// DecodeJSON decodes the response body into v.
func (r *Response) DecodeJSON(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return fmt.Errorf("decode %s %s: empty body", r.Method, r.Path)
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode %s %s: %w", r.Method, r.Path, err)
	}
	return nil
}

// resolveURL joins path onto the base URL. Absolute URLs are rejected so
// the credential is never sent to another origin.
func resolveURL(base *url.URL, path string, query url.Values) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidPath, path, err)
	}
	if ref.Scheme != "" || ref.Host != "" {
		return nil, fmt.Errorf("%w: %q is absolute", ErrInvalidPath, path)
	}

	u := *base
	u.Path = strings.TrimRight(base.Path, "/") + "/" + strings.TrimLeft(ref.Path, "/")
	u.RawPath = ""

	q := ref.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	u.Fragment = ""

	return &u, nil
}

// encodeBody returns a reader for body, JSON encoding values that are not
// already raw bytes.
func encodeBody(body any) (io.Reader, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return bytes.NewReader(b), nil
	case string:
		return strings.NewReader(b), nil
	case io.Reader:
		return b, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		return bytes.NewReader(data), nil
	}
}

// newHTTPRequest builds the http.Request for r.
func (g *Gateway) newHTTPRequest(ctx context.Context, r *Request) (*http.Request, error) {
	method := strings.ToUpper(r.Method)
	if method == "" {
		method = http.MethodGet
	}

	u, err := resolveURL(g.baseURL, r.Path, r.Query)
	if err != nil {
		return nil, err
	}

	body, err := encodeBody(r.Body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	if r.Body != nil && req.Header.Get(HeaderContentType) == "" {
		req.Header.Set(HeaderContentType, ContentTypeJSON)
	}

	return req, nil
}

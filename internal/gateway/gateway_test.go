package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avabank/internal/credential"
)

// collaborators records calls to the session and navigation collaborators
// in the order they happened.
type collaborators struct {
	mu     sync.Mutex
	calls  []string
	paths  []string
	endErr error
	navErr error

	// endDelay makes EndSession slow so waiting can be observed.
	endDelay time.Duration
	ended    atomic.Bool
}

func (c *collaborators) EndSession(_ context.Context) error {
	if c.endDelay > 0 {
		time.Sleep(c.endDelay)
	}
	c.mu.Lock()
	c.calls = append(c.calls, "end_session")
	c.mu.Unlock()
	c.ended.Store(true)
	return c.endErr
}

func (c *collaborators) NavigateTo(_ context.Context, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "navigate")
	c.paths = append(c.paths, path)
	return c.navErr
}

func (c *collaborators) snapshot() ([]string, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...), append([]string(nil), c.paths...)
}

type failingReader struct {
	err error
}

func (r failingReader) Get(context.Context, string) (string, bool, error) {
	return "", false, r.err
}

// captured holds what the test server saw for the last request.
type captured struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   []string
}

func (c *captured) last() (*http.Request, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requests) == 0 {
		return nil, ""
	}
	return c.requests[len(c.requests)-1], c.bodies[len(c.bodies)-1]
}

func (c *captured) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *captured) {
	t.Helper()

	seen := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seen.mu.Lock()
		seen.requests = append(seen.requests, r.Clone(context.Background()))
		seen.bodies = append(seen.bodies, string(body))
		seen.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func statusHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func newTestGateway(
	t *testing.T,
	baseURL string,
	creds credential.Reader,
	collab *collaborators,
	opts ...Option,
) *Gateway {
	t.Helper()

	g, err := New(Config{BaseURL: baseURL, Timeout: 5 * time.Second}, creds, collab, collab, opts...)
	require.NoError(t, err)
	return g
}

func storeWithToken(t *testing.T, token string) *credential.MemoryStore {
	t.Helper()

	store := credential.NewMemoryStore()
	if token != "" {
		require.NoError(t, store.Set(context.Background(), credential.DefaultKey, token))
	}
	return store
}

func TestGateway_AttachesBearerToken(t *testing.T) {
	t.Parallel()

	srv, seen := newTestServer(t, statusHandler(http.StatusOK, `{}`))
	collab := &collaborators{}
	g := newTestGateway(t, srv.URL, storeWithToken(t, "abc123"), collab)

	_, err := g.Get(context.Background(), "/accounts/1")
	require.NoError(t, err)

	req, _ := seen.last()
	require.NotNil(t, req)
	assert.Equal(t, "/accounts/1", req.URL.Path)
	assert.Equal(t, "Bearer abc123", req.Header.Get(HeaderAuthorization))

	calls, _ := collab.snapshot()
	assert.Empty(t, calls)
}

func TestGateway_NoTokenNoHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		store *credential.MemoryStore
	}{
		{name: "absent", store: credential.NewMemoryStore()},
		{name: "empty", store: func() *credential.MemoryStore {
			s := credential.NewMemoryStore()
			_ = s.Set(context.Background(), credential.DefaultKey, "")
			return s
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv, seen := newTestServer(t, statusHandler(http.StatusOK, `[]`))
			g := newTestGateway(t, srv.URL, tt.store, &collaborators{})

			_, err := g.Get(context.Background(), "/products/allproducts")
			require.NoError(t, err)

			req, _ := seen.last()
			require.NotNil(t, req)
			_, present := req.Header[HeaderAuthorization]
			assert.False(t, present)
		})
	}
}

func TestGateway_SuccessResponseUnmodified(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, statusHandler(http.StatusOK, `{"amount":10}`))
	g := newTestGateway(t, srv.URL, storeWithToken(t, "tok"), &collaborators{})

	resp, err := g.Get(context.Background(), "/transactions/history/a@b.c")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"amount":10}`, string(resp.Body))

	var out struct {
		Amount int `json:"amount"`
	}
	require.NoError(t, resp.DecodeJSON(&out))
	assert.Equal(t, 10, out.Amount)
}

func TestGateway_SessionExpiry(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			t.Parallel()

			srv, _ := newTestServer(t, statusHandler(status, `{"message":"forbidden access"}`))
			collab := &collaborators{}
			g := newTestGateway(t, srv.URL, storeWithToken(t, "stale"), collab)

			resp, err := g.Post(context.Background(), "/transactions/send-money", map[string]any{"amount": 5})
			require.Error(t, err)
			assert.Nil(t, resp)

			assert.Equal(t, status, StatusCode(err))
			assert.True(t, IsSessionExpired(err))
			assert.False(t, IsNoResponse(err))
			assert.Equal(t, "forbidden access", Message(err))

			var httpErr *HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, "/transactions/send-money", httpErr.Response.Path)

			calls, paths := collab.snapshot()
			assert.Equal(t, []string{"end_session", "navigate"}, calls)
			assert.Equal(t, []string{"/login"}, paths)
		})
	}
}

func TestGateway_TeardownCompletesBeforeReturn(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, statusHandler(http.StatusUnauthorized, `{}`))
	collab := &collaborators{endDelay: 50 * time.Millisecond}
	g := newTestGateway(t, srv.URL, storeWithToken(t, "tok"), collab)

	_, err := g.Get(context.Background(), "/accounts/allaccounts")
	require.Error(t, err)
	assert.True(t, collab.ended.Load(), "EndSession must finish before the error is returned")

	calls, _ := collab.snapshot()
	assert.Equal(t, []string{"end_session", "navigate"}, calls)
}

func TestGateway_TeardownSurvivesCallerCancellation(t *testing.T) {
	t.Parallel()

	var seenErr atomic.Value
	srv, _ := newTestServer(t, statusHandler(http.StatusUnauthorized, `{}`))
	collab := &collaborators{}
	session := SessionEnderFunc(func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			seenErr.Store(err)
		}
		return collab.EndSession(ctx)
	})

	ctx, cancel := context.WithCancel(context.Background())
	g, err := New(Config{BaseURL: srv.URL}, storeWithToken(t, "tok"), session, collab,
		WithResponseInterceptor(func(context.Context, *Response) error {
			cancel()
			return nil
		}),
	)
	require.NoError(t, err)

	_, err = g.Get(ctx, "/loans/all-loans")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.Nil(t, seenErr.Load())
	assert.True(t, collab.ended.Load())
}

func TestGateway_CollaboratorErrorsDoNotReplaceFailure(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, statusHandler(http.StatusForbidden, `{}`))
	collab := &collaborators{
		endErr: errors.New("sign-out failed"),
		navErr: errors.New("router gone"),
	}
	metrics := NewMetrics("test")
	g := newTestGateway(t, srv.URL, storeWithToken(t, "tok"), collab, WithMetrics(metrics))

	_, err := g.Get(context.Background(), "/chequebooks/all-requests")
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, StatusCode(err))
	assert.NotContains(t, err.Error(), "sign-out failed")

	calls, _ := collab.snapshot()
	assert.Equal(t, []string{"end_session", "navigate"}, calls, "navigation still runs after a failed sign-out")
}

func TestGateway_OtherErrorsPassThrough(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "bad request", status: http.StatusBadRequest, body: `{"message":"Insufficient balance"}`},
		{name: "not found", status: http.StatusNotFound, body: ``},
		{name: "conflict", status: http.StatusConflict, body: `{"error":"duplicate"}`},
		{name: "server error", status: http.StatusInternalServerError, body: `oops`},
		{name: "unavailable", status: http.StatusServiceUnavailable, body: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv, _ := newTestServer(t, statusHandler(tt.status, tt.body))
			collab := &collaborators{}
			g := newTestGateway(t, srv.URL, storeWithToken(t, "tok"), collab)

			_, err := g.Get(context.Background(), "/accounts/getaccount/a@b.c")
			require.Error(t, err)
			assert.Equal(t, tt.status, StatusCode(err))
			assert.False(t, IsSessionExpired(err))

			var httpErr *HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, tt.body, string(httpErr.Response.Body))

			calls, _ := collab.snapshot()
			assert.Empty(t, calls)
		})
	}
}

func TestGateway_NoResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	collab := &collaborators{}
	g := newTestGateway(t, baseURL, storeWithToken(t, "tok"), collab)

	resp, err := g.Get(context.Background(), "/accounts/1")
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, IsNoResponse(err))
	assert.Equal(t, 0, StatusCode(err))
	assert.False(t, IsSessionExpired(err))

	var tErr *TransportError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, ReasonNetwork, tErr.Reason)

	calls, _ := collab.snapshot()
	assert.Empty(t, calls)
}

func TestGateway_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv, _ := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	})
	defer close(release)

	collab := &collaborators{}
	g, err := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, storeWithToken(t, "tok"), collab, collab)
	require.NoError(t, err)

	_, err = g.Get(context.Background(), "/accounts/1")
	require.Error(t, err)
	assert.True(t, IsNoResponse(err))

	var tErr *TransportError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, ReasonTimeout, tErr.Reason)

	calls, _ := collab.snapshot()
	assert.Empty(t, calls)
}

func TestGateway_CredentialReadFailureBlocksRequest(t *testing.T) {
	t.Parallel()

	srv, seen := newTestServer(t, statusHandler(http.StatusOK, `{}`))
	collab := &collaborators{}
	readErr := errors.New("disk on fire")
	g := newTestGateway(t, srv.URL, failingReader{err: readErr}, collab)

	_, err := g.Get(context.Background(), "/accounts/1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCredentialUnavailable)
	assert.ErrorIs(t, err, readErr)
	assert.False(t, IsNoResponse(err))
	assert.Equal(t, 0, seen.count(), "request must not be sent")

	calls, _ := collab.snapshot()
	assert.Empty(t, calls)
}

func TestGateway_HeadersAndBody(t *testing.T) {
	t.Parallel()

	srv, seen := newTestServer(t, statusHandler(http.StatusCreated, `{"insertedId":"1"}`))
	g := newTestGateway(t, srv.URL, storeWithToken(t, "tok"), &collaborators{})

	_, err := g.Do(context.Background(), &Request{
		Method: http.MethodPost,
		Path:   "/accounts/createaccount",
		Header: http.Header{"X-Request-Source": []string{"cli"}},
		Body:   map[string]string{"email": "a@b.c"},
	})
	require.NoError(t, err)

	req, body := seen.last()
	assert.Equal(t, "cli", req.Header.Get("X-Request-Source"))
	assert.Equal(t, ContentTypeJSON, req.Header.Get(HeaderContentType))
	assert.JSONEq(t, `{"email":"a@b.c"}`, body)

	_, err = g.Do(context.Background(), &Request{
		Method: http.MethodPut,
		Path:   "/raw",
		Header: http.Header{HeaderContentType: []string{"text/plain"}},
		Body:   "hello",
	})
	require.NoError(t, err)

	req, body = seen.last()
	assert.Equal(t, "text/plain", req.Header.Get(HeaderContentType))
	assert.Equal(t, "hello", body)

	_, err = g.Get(context.Background(), "/no-body")
	require.NoError(t, err)
	req, _ = seen.last()
	assert.Empty(t, req.Header.Get(HeaderContentType))
}

func TestGateway_Methods(t *testing.T) {
	t.Parallel()

	srv, seen := newTestServer(t, statusHandler(http.StatusOK, `{}`))
	g := newTestGateway(t, srv.URL, storeWithToken(t, "tok"), &collaborators{})
	ctx := context.Background()

	calls := []struct {
		method string
		do     func() (*Response, error)
	}{
		{http.MethodGet, func() (*Response, error) { return g.Get(ctx, "/x") }},
		{http.MethodPost, func() (*Response, error) { return g.Post(ctx, "/x", nil) }},
		{http.MethodPut, func() (*Response, error) { return g.Put(ctx, "/x", map[string]int{"a": 1}) }},
		{http.MethodPatch, func() (*Response, error) { return g.Patch(ctx, "/loan-status/1", map[string]string{"status": "approved"}) }},
		{http.MethodDelete, func() (*Response, error) { return g.Delete(ctx, "/x") }},
		{http.MethodGet, func() (*Response, error) { return g.Do(ctx, &Request{Path: "/x"}) }},
	}

	for _, c := range calls {
		_, err := c.do()
		require.NoError(t, err)
		req, _ := seen.last()
		assert.Equal(t, c.method, req.Method)
		assert.Equal(t, "Bearer tok", req.Header.Get(HeaderAuthorization))
	}
}

func TestGateway_BaseURLWithPathAndQuery(t *testing.T) {
	t.Parallel()

	srv, seen := newTestServer(t, statusHandler(http.StatusOK, `{}`))
	g := newTestGateway(t, srv.URL+"/api/", storeWithToken(t, "tok"), &collaborators{})

	_, err := g.Do(context.Background(), &Request{
		Path:  "accounts/getaccountbynumber/42?verbose=1",
		Query: map[string][]string{"page": {"2"}},
	})
	require.NoError(t, err)

	req, _ := seen.last()
	assert.Equal(t, "/api/accounts/getaccountbynumber/42", req.URL.Path)
	assert.Equal(t, "1", req.URL.Query().Get("verbose"))
	assert.Equal(t, "2", req.URL.Query().Get("page"))
}

func TestGateway_RejectsAbsolutePaths(t *testing.T) {
	t.Parallel()

	srv, seen := newTestServer(t, statusHandler(http.StatusOK, `{}`))
	g := newTestGateway(t, srv.URL, storeWithToken(t, "tok"), &collaborators{})

	_, err := g.Get(context.Background(), "https://evil.example/steal")
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = g.Get(context.Background(), "//evil.example/steal")
	assert.ErrorIs(t, err, ErrInvalidPath)
	assert.Equal(t, 0, seen.count())
}

func TestGateway_Interceptors(t *testing.T) {
	t.Parallel()

	srv, seen := newTestServer(t, statusHandler(http.StatusOK, `{"ok":true}`))

	var sawAuth string
	var sawStatus int
	g := newTestGateway(t, srv.URL, storeWithToken(t, "tok"), &collaborators{},
		WithRequestInterceptor(func(_ context.Context, req *http.Request) error {
			sawAuth = req.Header.Get(HeaderAuthorization)
			req.Header.Set("X-Trace", "1")
			return nil
		}),
		WithResponseInterceptor(func(_ context.Context, resp *Response) error {
			sawStatus = resp.StatusCode
			return nil
		}),
	)

	_, err := g.Get(context.Background(), "/x")
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", sawAuth, "caller interceptors run after authorization")
	assert.Equal(t, http.StatusOK, sawStatus)

	req, _ := seen.last()
	assert.Equal(t, "1", req.Header.Get("X-Trace"))
}

func TestGateway_RequestInterceptorAborts(t *testing.T) {
	t.Parallel()

	srv, seen := newTestServer(t, statusHandler(http.StatusOK, `{}`))
	abort := errors.New("blocked")
	g := newTestGateway(t, srv.URL, storeWithToken(t, "tok"), &collaborators{},
		WithRequestInterceptor(func(context.Context, *http.Request) error { return abort }),
	)

	_, err := g.Get(context.Background(), "/x")
	assert.ErrorIs(t, err, abort)
	assert.Equal(t, 0, seen.count())
}

func TestGateway_ResponseInterceptorCannotSkipTeardown(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, statusHandler(http.StatusUnauthorized, `{}`))
	collab := &collaborators{}
	g := newTestGateway(t, srv.URL, storeWithToken(t, "tok"), collab,
		WithResponseInterceptor(func(context.Context, *Response) error { return errors.New("ignored") }),
	)

	_, err := g.Get(context.Background(), "/x")
	require.Error(t, err)
	assert.True(t, IsSessionExpired(err))

	calls, _ := collab.snapshot()
	assert.Equal(t, []string{"end_session", "navigate"}, calls)
}

func TestGateway_ResponseInterceptorCannotRewriteExpiredStatus(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, statusHandler(http.StatusForbidden, `{"message":"forbidden"}`))
	collab := &collaborators{}
	g := newTestGateway(t, srv.URL, storeWithToken(t, "tok"), collab,
		WithResponseInterceptor(func(_ context.Context, resp *Response) error {
			resp.StatusCode = http.StatusOK
			return nil
		}),
	)

	resp, err := g.Get(context.Background(), "/x")
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, IsSessionExpired(err))
	assert.Equal(t, http.StatusForbidden, StatusCode(err))

	calls, paths := collab.snapshot()
	assert.Equal(t, []string{"end_session", "navigate"}, calls)
	assert.Equal(t, []string{"/login"}, paths)
}

func TestGateway_ResponseTooLarge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		status      int
		body        string
		wantErr     error
		wantTeardown bool
	}{
		{name: "within limit", status: http.StatusOK, body: `{"a":1}`},
		{name: "success over limit", status: http.StatusOK, body: `{"amount":1234567890}`, wantErr: ErrResponseTooLarge},
		{name: "expired over limit", status: http.StatusUnauthorized, body: `{"message":"expired token"}`, wantErr: ErrSessionExpired, wantTeardown: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv, _ := newTestServer(t, statusHandler(tt.status, tt.body))
			collab := &collaborators{}
			g := newTestGateway(t, srv.URL, storeWithToken(t, "tok"), collab, WithMaxResponseBytes(10))

			resp, err := g.Get(context.Background(), "/x")
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, tt.body, string(resp.Body))
				return
			}

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			calls, _ := collab.snapshot()
			if tt.wantTeardown {
				assert.Equal(t, []string{"end_session", "navigate"}, calls)
			} else {
				assert.Empty(t, calls)
			}
		})
	}
}

func TestGateway_ConcurrentExpiry(t *testing.T) {
	t.Parallel()

	const n = 8

	tests := []struct {
		name      string
		dedup     bool
		wantCalls func(int) bool
	}{
		{name: "each response tears down", dedup: false, wantCalls: func(c int) bool { return c == n }},
		{name: "dedup collapses teardowns", dedup: true, wantCalls: func(c int) bool { return c >= 1 && c < n }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv, _ := newTestServer(t, statusHandler(http.StatusUnauthorized, `{}`))

			var ends atomic.Int32
			started := make(chan struct{}, n)
			release := make(chan struct{})
			session := SessionEnderFunc(func(context.Context) error {
				ends.Add(1)
				started <- struct{}{}
				<-release
				return nil
			})
			nav := NavigatorFunc(func(context.Context, string) error { return nil })

			g, err := New(Config{BaseURL: srv.URL}, storeWithToken(t, "tok"), session, nav, WithTeardownDedup(tt.dedup))
			require.NoError(t, err)

			var wg sync.WaitGroup
			errs := make([]error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, errs[i] = g.Get(context.Background(), "/x")
				}(i)
			}

			// Hold the first teardown open long enough for the others to arrive.
			<-started
			time.Sleep(100 * time.Millisecond)
			close(release)
			wg.Wait()

			for _, err := range errs {
				assert.True(t, IsSessionExpired(err))
			}
			assert.True(t, tt.wantCalls(int(ends.Load())), "teardowns: %d", ends.Load())
		})
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	collab := &collaborators{}
	store := credential.NewMemoryStore()

	_, err := New(Config{BaseURL: "http://localhost:5000"}, nil, collab, collab)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(Config{BaseURL: "http://localhost:5000"}, store, nil, collab)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(Config{BaseURL: "localhost:5000"}, store, collab, collab)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(Config{BaseURL: "ftp://localhost"}, store, collab, collab)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	g, err := New(Config{BaseURL: "http://localhost:5000"}, store, collab, collab)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5000", g.BaseURL())
	assert.Equal(t, DefaultLoginRoute, g.loginRoute)
	assert.Equal(t, credential.DefaultKey, g.credentialKey)
	assert.Equal(t, DefaultTimeout, g.client.Timeout)
	assert.Equal(t, "disabled", g.CircuitState())
}

func TestGateway_CustomLoginRouteAndKey(t *testing.T) {
	t.Parallel()

	srv, seen := newTestServer(t, statusHandler(http.StatusForbidden, `{}`))
	store := credential.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), "jwt", "xyz"))

	collab := &collaborators{}
	g, err := New(Config{BaseURL: srv.URL, LoginRoute: "/signin", CredentialKey: "jwt"}, store, collab, collab)
	require.NoError(t, err)

	_, err = g.Get(context.Background(), "/x")
	require.Error(t, err)

	req, _ := seen.last()
	assert.Equal(t, "Bearer xyz", req.Header.Get(HeaderAuthorization))
	_, paths := collab.snapshot()
	assert.Equal(t, []string{"/signin"}, paths)
}

func TestResponse_DecodeJSON(t *testing.T) {
	t.Parallel()

	resp := &Response{Method: http.MethodGet, Path: "/x", Body: []byte(`  `)}
	var v map[string]any
	assert.Error(t, resp.DecodeJSON(&v))

	resp.Body = []byte(`{"a":`)
	assert.Error(t, resp.DecodeJSON(&v))

	resp.Body, _ = json.Marshal(map[string]int{"a": 1})
	require.NoError(t, resp.DecodeJSON(&v))
	assert.EqualValues(t, 1, v["a"])
}

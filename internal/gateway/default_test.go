package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avabank/internal/config"
	"github.com/vyrodovalexey/avabank/internal/credential"
)

// TestInit_ConstructsOnce is the only test touching the process-wide
// instance, so it does not run in parallel with itself.
func TestInit_ConstructsOnce(t *testing.T) {
	collab := &collaborators{}
	store := credential.NewMemoryStore()

	var interceptorRegistrations int
	countingOpt := func(g *Gateway) { interceptorRegistrations++ }

	first, err := Init(Config{BaseURL: "http://localhost:5000"}, store, collab, collab, countingOpt)
	require.NoError(t, err)

	second, err := Init(Config{BaseURL: "http://other:1"}, store, collab, collab, countingOpt)
	require.NoError(t, err)

	def, err := Default()
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Same(t, first, def)
	assert.Equal(t, 1, interceptorRegistrations)
	assert.Equal(t, "http://localhost:5000", def.BaseURL())
}

func TestConfigFromClient(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.API.BaseURL = "https://bank.example"
	cfg.API.Timeout = config.Duration(5 * time.Second)
	cfg.Transport = config.TransportConfig{
		CircuitBreaker: &config.CircuitBreakerConfig{Enabled: true, Threshold: 3, Timeout: config.Duration(time.Second)},
		RateLimit:      &config.RateLimitConfig{Enabled: true, RPS: 5, Burst: 5},
		TeardownDedup:  true,
	}

	gc := ConfigFromClient(cfg)
	assert.Equal(t, "https://bank.example", gc.BaseURL)
	assert.Equal(t, 5*time.Second, gc.Timeout)
	assert.Equal(t, "/login", gc.LoginRoute)
	assert.Equal(t, credential.DefaultKey, gc.CredentialKey)

	opts := OptionsFromClient(cfg)
	assert.Len(t, opts, 3)

	collab := &collaborators{}
	g, err := New(gc, credential.NewMemoryStore(), collab, collab, opts...)
	require.NoError(t, err)
	assert.True(t, g.dedupTeardown)
	assert.Equal(t, "closed", g.CircuitState())
	assert.Equal(t, 5, g.rlRPS)

	assert.Empty(t, OptionsFromClient(config.DefaultConfig()))
}

func TestErrors(t *testing.T) {
	t.Parallel()

	resp := &Response{StatusCode: 404, Method: "GET", Path: "/accounts/getaccountbynumber/9"}
	httpErr := &HTTPError{Response: resp}
	assert.Equal(t, "GET /accounts/getaccountbynumber/9: status 404", httpErr.Error())
	assert.Equal(t, "Not Found", Message(httpErr))
	assert.Equal(t, 404, httpErr.StatusCode())

	resp.Body = []byte(`{"error":"no such account"}`)
	assert.Equal(t, "GET /accounts/getaccountbynumber/9: status 404: no such account", httpErr.Error())

	tErr := &TransportError{Method: "GET", URL: "http://x/y", Reason: ReasonNetwork, Cause: assert.AnError}
	assert.ErrorIs(t, tErr, ErrNoResponse)
	assert.ErrorIs(t, tErr, assert.AnError)
	assert.Contains(t, tErr.Error(), "no response (network)")
	assert.Equal(t, tErr.Error(), Message(tErr))

	credErr := &CredentialError{Key: "access-token", Cause: assert.AnError}
	assert.ErrorIs(t, credErr, ErrCredentialUnavailable)
	assert.Contains(t, credErr.Error(), `"access-token"`)

	assert.Equal(t, "", Message(nil))
	assert.Equal(t, 0, StatusCode(assert.AnError))
}

package gateway

import (
	"sync"

	"github.com/vyrodovalexey/avabank/internal/config"
	"github.com/vyrodovalexey/avabank/internal/credential"
)

var (
	defaultOnce    sync.Once
	defaultMu      sync.RWMutex
	defaultGateway *Gateway
	defaultErr     error
)

// Init constructs the process-wide gateway on the first call. Later calls
// return the same instance, or the same error, and ignore their arguments.
func Init(
	cfg Config,
	credentials credential.Reader,
	session SessionEnder,
	navigator Navigator,
	opts ...Option,
) (*Gateway, error) {
	defaultOnce.Do(func() {
		g, err := New(cfg, credentials, session, navigator, opts...)

		defaultMu.Lock()
		defaultGateway, defaultErr = g, err
		defaultMu.Unlock()
	})
	return Default()
}

// Default returns the gateway created by Init.
func Default() (*Gateway, error) {
	defaultMu.RLock()
	defer defaultMu.RUnlock()

	if defaultGateway == nil {
		if defaultErr != nil {
			return nil, defaultErr
		}
		return nil, ErrNotInitialized
	}
	return defaultGateway, nil
}

// ConfigFromClient extracts gateway settings from the client configuration.
func ConfigFromClient(cfg *config.ClientConfig) Config {
	return Config{
		BaseURL:       cfg.API.BaseURL,
		Timeout:       cfg.API.Timeout.Duration(),
		LoginRoute:    cfg.API.LoginRoute,
		CredentialKey: cfg.Credentials.Key,
	}
}

// OptionsFromClient returns the transport options enabled in cfg.
func OptionsFromClient(cfg *config.ClientConfig) []Option {
	var opts []Option

	t := cfg.Transport
	if cb := t.CircuitBreaker; cb != nil && cb.Enabled {
		opts = append(opts, WithCircuitBreaker(cb.Threshold, cb.Timeout.Duration()))
	}
	if rl := t.RateLimit; rl != nil && rl.Enabled {
		opts = append(opts, WithRateLimit(rl.RPS, rl.Burst))
	}
	if t.TeardownDedup {
		opts = append(opts, WithTeardownDedup(true))
	}

	return opts
}

// CircuitState returns the circuit breaker state, or "disabled".
func (g *Gateway) CircuitState() string {
	if g.breaker == nil {
		return "disabled"
	}
	return g.breaker.State().String()
}

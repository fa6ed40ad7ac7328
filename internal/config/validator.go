package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, e[i].Error())
	}
	return sb.String()
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// ValidateConfig validates a client configuration.
func ValidateConfig(cfg *ClientConfig) error {
	var errs ValidationErrors
	add := func(path, format string, args ...interface{}) {
		errs = append(errs, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if cfg == nil {
		add("", "configuration is nil")
		return errs
	}

	validateAPI(&cfg.API, add)
	validateCredentials(&cfg.Credentials, add)
	validateTransport(&cfg.Transport, add)
	validateObservability(&cfg.Observability, add)

	if errs.HasErrors() {
		return errs
	}
	return nil
}

type addFunc func(path, format string, args ...interface{})

func validateAPI(api *APIConfig, add addFunc) {
	u, err := url.Parse(api.BaseURL)
	switch {
	case api.BaseURL == "":
		add("api.baseURL", "is required")
	case err != nil:
		add("api.baseURL", "invalid URL: %v", err)
	case u.Scheme != "http" && u.Scheme != "https":
		add("api.baseURL", "scheme must be http or https, got %q", u.Scheme)
	case u.Host == "":
		add("api.baseURL", "host is required")
	}

	if api.Timeout < 0 {
		add("api.timeout", "must not be negative")
	}
	if !strings.HasPrefix(api.LoginRoute, "/") {
		add("api.loginRoute", "must be an absolute route, got %q", api.LoginRoute)
	}
	if !strings.HasPrefix(api.TokenPath, "/") {
		add("api.tokenPath", "must start with '/', got %q", api.TokenPath)
	}
}

func validateCredentials(c *CredentialStoreConfig, add addFunc) {
	if c.Key == "" {
		add("credentials.key", "is required")
	}

	switch c.Type {
	case StoreTypeMemory:
	case StoreTypeFile:
		if c.File == nil || c.File.Path == "" {
			add("credentials.file.path", "is required for file store")
		}
	case StoreTypeSQLite:
		if c.SQLite == nil || c.SQLite.Path == "" {
			add("credentials.sqlite.path", "is required for sqlite store")
		}
	case StoreTypeRedis:
		if c.Redis == nil || c.Redis.URL == "" {
			add("credentials.redis.url", "is required for redis store")
		}
	case StoreTypeVault:
		if c.Vault == nil || c.Vault.Address == "" {
			add("credentials.vault.address", "is required for vault store")
		}
	default:
		add("credentials.type", "unsupported store type %q", c.Type)
	}
}

func validateTransport(t *TransportConfig, add addFunc) {
	if cb := t.CircuitBreaker; cb != nil && cb.Enabled {
		if cb.Threshold <= 0 {
			add("transport.circuitBreaker.threshold", "must be positive")
		}
		if cb.Timeout <= 0 {
			add("transport.circuitBreaker.timeout", "must be positive")
		}
	}
	if rl := t.RateLimit; rl != nil && rl.Enabled {
		if rl.RPS <= 0 {
			add("transport.rateLimit.rps", "must be positive")
		}
		if rl.Burst <= 0 {
			add("transport.rateLimit.burst", "must be positive")
		}
	}
}

func validateObservability(o *ObservabilityConfig, add addFunc) {
	switch o.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		add("observability.logging.level", "unsupported level %q", o.Logging.Level)
	}
	switch o.Logging.Format {
	case "json", "console":
	default:
		add("observability.logging.format", "unsupported format %q", o.Logging.Format)
	}
	if r := o.Tracing.SamplingRate; r < 0 || r > 1 {
		add("observability.tracing.samplingRate", "must be between 0 and 1")
	}
}

// Package observability holds the client's logging, tracing and metrics
// exposition.
//
// Logger wraps zap. Commands print results on stdout, so logs go to stderr
// unless LogConfig.Output names another destination:
//
//	logger, err := observability.NewLogger(observability.LogConfig{Level: "debug"})
//	logger.WithContext(ctx).Info("balance fetched", observability.String("account", n))
//
// Correlation and trace IDs ride in the context and show up as log fields.
// They are never sent to the banking API.
//
// NewTracer installs an OpenTelemetry provider when tracing is enabled.
// MetricsServer serves a Prometheus registry on its own listener.
package observability

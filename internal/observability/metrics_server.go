package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Default metrics server settings.
const (
	DefaultMetricsPath         = "/metrics"
	DefaultMetricsReadTimeout  = 5 * time.Second
	DefaultMetricsWriteTimeout = 10 * time.Second
)

// MetricsServer serves a Prometheus registry over HTTP.
type MetricsServer struct {
	addr     string
	path     string
	registry *prometheus.Registry
	logger   Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	stopOnce sync.Once
}

// NewMetricsServer creates a metrics server for the registry. Go runtime and
// process collectors are added to the registry.
func NewMetricsServer(addr string, registry *prometheus.Registry, logger Logger) *MetricsServer {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if logger == nil {
		logger = NopLogger()
	}

	// Already-registered collectors are fine when the registry is reused.
	_ = registry.Register(collectors.NewGoCollector())
	_ = registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &MetricsServer{
		addr:     addr,
		path:     DefaultMetricsPath,
		registry: registry,
		logger:   logger,
	}
}

// Handler returns the HTTP handler serving the registry.
func (s *MetricsServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		ErrorHandling:     promhttp.ContinueOnError,
		EnableOpenMetrics: true,
	}))
	return mux
}

// Start begins serving in the background and returns the bound address.
func (s *MetricsServer) Start() (string, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", err
	}

	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  DefaultMetricsReadTimeout,
		WriteTimeout: DefaultMetricsWriteTimeout,
	}

	s.mu.Lock()
	s.server = srv
	s.listener = ln
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server failed", Error(err))
		}
	}()

	s.logger.Info("metrics server started",
		String("address", ln.Addr().String()),
		String("path", s.path),
	)

	return ln.Addr().String(), nil
}

// Stop shuts the server down.
func (s *MetricsServer) Stop(ctx context.Context) error {
	var stopErr error
	s.stopOnce.Do(func() {
		s.mu.Lock()
		srv := s.server
		s.mu.Unlock()
		if srv != nil {
			stopErr = srv.Shutdown(ctx)
		}
	})
	return stopErr
}

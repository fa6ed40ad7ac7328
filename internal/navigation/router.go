// Package navigation tracks the client-side route the user is on.
package navigation

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/vyrodovalexey/avabank/internal/observability"
)

// Application routes.
const (
	RouteHome           = "/"
	RouteLogin          = "/login"
	RouteSignUp         = "/signup"
	RouteDashboard      = "/dashboard"
	RouteAdmin          = "/admin"
	RouteAdminDashboard = "/admin/dashboard"
)

// DefaultHistoryLimit bounds the number of remembered routes.
const DefaultHistoryLimit = 50

// FromParam is the query parameter carrying the route a guard redirected
// away from.
const FromParam = "from"

// ErrInvalidRoute indicates a route that is not an absolute path.
var ErrInvalidRoute = errors.New("invalid route")

// Listener is called after each navigation with the previous and new route.
type Listener func(from, to string)

// Router holds the current route and a bounded history.
// It is safe for concurrent use.
type Router struct {
	logger observability.Logger
	limit  int

	mu      sync.RWMutex
	history []string

	listenersMu sync.Mutex
	listeners   map[int]Listener
	nextID      int
}

// Option is a functional option for configuring the router.
type Option func(*Router)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

// WithHistoryLimit sets the history bound.
func WithHistoryLimit(n int) Option {
	return func(r *Router) {
		if n > 0 {
			r.limit = n
		}
	}
}

// WithInitialRoute sets the starting route. It defaults to RouteHome.
func WithInitialRoute(route string) Option {
	return func(r *Router) {
		r.history = []string{route}
	}
}

// NewRouter creates a router positioned at the home route.
func NewRouter(opts ...Option) *Router {
	r := &Router{
		logger:    observability.NopLogger(),
		limit:     DefaultHistoryLimit,
		history:   []string{RouteHome},
		listeners: make(map[int]Listener),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// NavigateTo moves to route. Navigating to the current route does not add
// a history entry, so repeated redirects are harmless.
func (r *Router) NavigateTo(ctx context.Context, route string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateRoute(route); err != nil {
		return err
	}

	r.mu.Lock()
	from := r.history[len(r.history)-1]
	if from == route {
		r.mu.Unlock()
		return nil
	}
	r.history = append(r.history, route)
	if len(r.history) > r.limit {
		r.history = append([]string(nil), r.history[len(r.history)-r.limit:]...)
	}
	r.mu.Unlock()

	r.logger.Debug("navigated",
		observability.String("from", from),
		observability.String("to", route),
	)
	r.notify(from, route)

	return nil
}

// Current returns the current route.
func (r *Router) Current() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.history[len(r.history)-1]
}

// History returns the remembered routes, oldest first.
func (r *Router) History() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.history...)
}

// Back returns to the previous route. It reports false at the start of
// history.
func (r *Router) Back() (string, bool) {
	r.mu.Lock()
	if len(r.history) < 2 {
		r.mu.Unlock()
		return r.Current(), false
	}
	from := r.history[len(r.history)-1]
	r.history = r.history[:len(r.history)-1]
	to := r.history[len(r.history)-1]
	r.mu.Unlock()

	r.notify(from, to)
	return to, true
}

// OnNavigate registers fn for route changes. The returned function
// unregisters it.
func (r *Router) OnNavigate(fn Listener) func() {
	r.listenersMu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.listenersMu.Unlock()

	return func() {
		r.listenersMu.Lock()
		delete(r.listeners, id)
		r.listenersMu.Unlock()
	}
}

func (r *Router) notify(from, to string) {
	r.listenersMu.Lock()
	fns := make([]Listener, 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.listenersMu.Unlock()

	for _, fn := range fns {
		fn(from, to)
	}
}

func validateRoute(route string) error {
	if !strings.HasPrefix(route, "/") || strings.HasPrefix(route, "//") {
		return fmt.Errorf("%w: %q must start with a single /", ErrInvalidRoute, route)
	}
	if _, err := url.Parse(route); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidRoute, route, err)
	}
	return nil
}

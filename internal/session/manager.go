// Package session holds the signed-in identity and the credential that
// backs it. It is the authentication provider the request gateway calls
// when the API rejects the session.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/avabank/internal/credential"
	"github.com/vyrodovalexey/avabank/internal/observability"
)

// Default manager settings.
const (
	DefaultTokenPath = "/jwt"

	signInTimeout = 15 * time.Second
)

// Listener is called after the identity changes. It receives nil on
// sign-out.
type Listener func(user *User)

// Manager signs users in and out and tracks the current identity.
// It is safe for concurrent use.
type Manager struct {
	store     credential.Store
	key       string
	tokenURL  string
	client    *http.Client
	logger    observability.Logger
	unwatch   func()
	closeOnce sync.Once

	mu    sync.RWMutex
	user  *User
	token string

	listenersMu sync.Mutex
	listeners   map[int]Listener
	nextID      int
}

// Option is a functional option for configuring the manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithHTTPClient sets the client used for the token exchange.
func WithHTTPClient(client *http.Client) Option {
	return func(m *Manager) {
		m.client = client
	}
}

// WithCredentialKey sets the store key holding the token.
func WithCredentialKey(key string) Option {
	return func(m *Manager) {
		m.key = key
	}
}

// WithTokenPath sets the token endpoint path relative to the base URL.
func WithTokenPath(path string) Option {
	return func(m *Manager) {
		m.tokenURL = path
	}
}

// NewManager creates a manager that exchanges credentials at baseURL.
// When store implements credential.ChangeNotifier the manager follows
// sign-ins and sign-outs made by other processes.
func NewManager(baseURL string, store credential.Store, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("session: credential store is required")
	}

	m := &Manager{
		store:     store,
		key:       credential.DefaultKey,
		tokenURL:  DefaultTokenPath,
		client:    &http.Client{Timeout: signInTimeout},
		logger:    observability.NopLogger(),
		listeners: make(map[int]Listener),
	}

	for _, opt := range opts {
		opt(m)
	}

	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("session: invalid base url %q", baseURL)
	}
	m.tokenURL = strings.TrimRight(base.String(), "/") + "/" + strings.TrimLeft(m.tokenURL, "/")

	if notifier, ok := store.(credential.ChangeNotifier); ok {
		m.unwatch = notifier.OnChange(m.onStoreChange)
	}

	return m, nil
}

// SignIn exchanges email and password for a token, stores it and sets the
// current identity.
func (m *Manager) SignIn(ctx context.Context, email, password string) (User, error) {
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return User{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, bytes.NewReader(payload))
	if err != nil {
		return User{}, fmt.Errorf("sign in: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return User{}, fmt.Errorf("sign in: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return User{}, fmt.Errorf("sign in: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return User{}, ErrInvalidCredentials
	case resp.StatusCode >= http.StatusBadRequest:
		return User{}, fmt.Errorf("sign in: token endpoint returned status %d", resp.StatusCode)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &out); err != nil || out.Token == "" {
		return User{}, fmt.Errorf("%w: token endpoint returned no token", ErrInvalidToken)
	}

	user, err := ParseToken(out.Token)
	if err != nil {
		return User{}, err
	}
	if user.SessionID == "" {
		user.SessionID = uuid.NewString()
	}

	if err := m.store.Set(ctx, m.key, out.Token); err != nil {
		return User{}, fmt.Errorf("sign in: store credential: %w", err)
	}

	m.setUser(&user, out.Token)

	m.logger.Info("signed in",
		observability.String("email", user.Email),
		observability.String("role", user.Role),
		observability.String("session_id", user.SessionID),
	)

	return user, nil
}

// Restore loads the identity from a previously stored token. It reports
// false when no token is stored.
func (m *Manager) Restore(ctx context.Context) (User, bool, error) {
	token, ok, err := m.store.Get(ctx, m.key)
	if err != nil {
		return User{}, false, fmt.Errorf("restore session: %w", err)
	}
	if !ok || token == "" {
		m.setUser(nil, "")
		return User{}, false, nil
	}

	user, err := ParseToken(token)
	if err != nil {
		return User{}, false, err
	}
	if user.SessionID == "" {
		user.SessionID = uuid.NewString()
	}

	m.setUser(&user, token)
	return user, true, nil
}

// EndSession erases the stored token and clears the identity. It is safe
// to call repeatedly and concurrently. The identity is cleared even when
// the store fails.
func (m *Manager) EndSession(ctx context.Context) error {
	err := m.store.Delete(ctx, m.key)

	m.mu.RLock()
	prev := m.user
	m.mu.RUnlock()

	m.setUser(nil, "")

	if prev != nil {
		m.logger.Info("signed out",
			observability.String("email", prev.Email),
			observability.String("session_id", prev.SessionID),
		)
	}

	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

// Current returns the signed-in user.
func (m *Manager) Current() (User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return User{}, false
	}
	return *m.user, true
}

// IsAdmin reports whether the signed-in user is an admin.
func (m *Manager) IsAdmin() bool {
	u, ok := m.Current()
	return ok && u.IsAdmin()
}

// Check reports whether a user is signed in and whether that user is an
// admin. Its method value satisfies navigation.UserCheck.
func (m *Manager) Check() (signedIn, admin bool) {
	u, ok := m.Current()
	return ok, ok && u.IsAdmin()
}

// OnChange registers fn for identity changes. The returned function
// unregisters it.
func (m *Manager) OnChange(fn Listener) func() {
	m.listenersMu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.listenersMu.Unlock()

	return func() {
		m.listenersMu.Lock()
		delete(m.listeners, id)
		m.listenersMu.Unlock()
	}
}

// Close stops following store changes. The store is not closed.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		if m.unwatch != nil {
			m.unwatch()
		}
	})
}

// onStoreChange reconciles the identity with a token written or erased by
// another process.
func (m *Manager) onStoreChange() {
	ctx, cancel := context.WithTimeout(context.Background(), signInTimeout)
	defer cancel()

	token, ok, err := m.store.Get(ctx, m.key)
	if err != nil {
		m.logger.Warn("failed to read credential after change", observability.Error(err))
		return
	}

	m.mu.RLock()
	current := m.token
	m.mu.RUnlock()

	if !ok || token == "" {
		m.setUser(nil, "")
		return
	}
	if token == current {
		return
	}

	user, err := ParseToken(token)
	if err != nil {
		m.logger.Warn("ignoring unparsable credential", observability.Error(err))
		return
	}
	if user.SessionID == "" {
		user.SessionID = uuid.NewString()
	}
	m.setUser(&user, token)
}

// setUser replaces the identity and notifies listeners when it changed.
func (m *Manager) setUser(user *User, token string) {
	m.mu.Lock()
	changed := !sameUser(m.user, user) || m.token != token
	m.user = user
	m.token = token
	m.mu.Unlock()

	if !changed {
		return
	}

	m.listenersMu.Lock()
	fns := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.listenersMu.Unlock()

	for _, fn := range fns {
		if user == nil {
			fn(nil)
			continue
		}
		u := *user
		fn(&u)
	}
}

func sameUser(a, b *User) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

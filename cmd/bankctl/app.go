package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vyrodovalexey/avabank/internal/bank"
	"github.com/vyrodovalexey/avabank/internal/config"
	"github.com/vyrodovalexey/avabank/internal/credential"
	"github.com/vyrodovalexey/avabank/internal/gateway"
	"github.com/vyrodovalexey/avabank/internal/navigation"
	"github.com/vyrodovalexey/avabank/internal/observability"
	"github.com/vyrodovalexey/avabank/internal/session"
)

// newGateway builds the request gateway. Production uses the process-wide
// instance; tests replace it with gateway.New.
var newGateway = gateway.Init

const closeTimeout = 5 * time.Second

// application holds all client components.
type application struct {
	config  *config.ClientConfig
	logger  observability.Logger
	tracer  *observability.Tracer
	metrics *gateway.Metrics
	store   credential.Store
	session *session.Manager
	router  *navigation.Router
	gateway *gateway.Gateway
	bank    *bank.Client
}

// newApplication wires configuration, credential store, session manager,
// router, gateway and bank client, then restores a stored session.
func newApplication(ctx context.Context, cfg *config.ClientConfig, logger observability.Logger) (*application, error) {
	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:  cfg.Observability.Tracing.ServiceName,
		OTLPEndpoint: cfg.Observability.Tracing.OTLPEndpoint,
		SamplingRate: cfg.Observability.Tracing.SamplingRate,
		Enabled:      cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize tracer: %w", err)
	}

	store, err := credential.New(ctx, &cfg.Credentials, logger)
	if err != nil {
		_ = tracer.Shutdown(ctx)
		return nil, fmt.Errorf("open credential store: %w", err)
	}

	sess, err := session.NewManager(cfg.API.BaseURL, store,
		session.WithLogger(logger),
		session.WithCredentialKey(cfg.Credentials.Key),
		session.WithTokenPath(cfg.API.TokenPath),
	)
	if err != nil {
		_ = store.Close()
		_ = tracer.Shutdown(ctx)
		return nil, err
	}

	router := navigation.NewRouter(navigation.WithLogger(logger))

	metrics := gateway.NewMetrics(gateway.DefaultMetricsNamespace)
	metrics.Init()

	opts := append([]gateway.Option{
		gateway.WithLogger(logger),
		gateway.WithMetrics(metrics),
		gateway.WithTracerProvider(tracer.Provider()),
	}, gateway.OptionsFromClient(cfg)...)

	gw, err := newGateway(gateway.ConfigFromClient(cfg), store, sess, router, opts...)
	if err != nil {
		sess.Close()
		_ = store.Close()
		_ = tracer.Shutdown(ctx)
		return nil, fmt.Errorf("create gateway: %w", err)
	}

	client, err := bank.NewClient(gw, bank.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	app := &application{
		config:  cfg,
		logger:  logger,
		tracer:  tracer,
		metrics: metrics,
		store:   store,
		session: sess,
		router:  router,
		gateway: gw,
		bank:    client,
	}

	if _, _, err := sess.Restore(ctx); err != nil {
		logger.Warn("stored session could not be restored", observability.Error(err))
	}

	logger.Debug("client ready",
		observability.String("api", cfg.API.BaseURL),
		observability.String("credential_store", cfg.Credentials.Type),
		observability.String("circuit", gw.CircuitState()),
	)
	return app, nil
}

// close releases resources in reverse order of creation.
func (a *application) close() {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	a.session.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close credential store", observability.Error(err))
	}
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Warn("failed to shutdown tracer", observability.Error(err))
	}
}

// pendingRouteKey holds the login redirect a guard produced, so a later
// bankctl login can return to the page.
const pendingRouteKey = "login-redirect"

// errNotSignedIn is returned when a guarded command runs without the
// required identity.
var errNotSignedIn = errors.New("not signed in, run: bankctl login")

// visit moves the router to route through guard. It fails when the guard
// redirected to the login page.
func (a *application) visit(ctx context.Context, route string, guard guardFunc) error {
	var check func(string) string
	if guard != nil {
		check = func(r string) string { return guard(a.session.Check, r) }
	}
	reached, err := a.router.Visit(ctx, route, check)
	if err != nil {
		return err
	}
	if reached != route {
		a.rememberRedirect(ctx, reached)
		if _, ok := a.session.Current(); ok {
			return fmt.Errorf("%s requires an admin account", route)
		}
		return errNotSignedIn
	}
	return nil
}

// rememberRedirect persists a login redirect for the next invocation.
func (a *application) rememberRedirect(ctx context.Context, redirect string) {
	if navigation.RedirectTarget(redirect, "") == "" {
		return
	}
	if err := a.store.Set(ctx, pendingRouteKey, redirect); err != nil {
		a.logger.Warn("failed to remember login redirect", observability.Error(err))
	}
}

// takeRedirect returns the login redirect the router is on or, failing
// that, the one a previous invocation persisted. The persisted one is
// consumed.
func (a *application) takeRedirect(ctx context.Context) string {
	current := a.router.Current()

	stored, ok, err := a.store.Get(ctx, pendingRouteKey)
	if err != nil {
		a.logger.Warn("failed to read login redirect", observability.Error(err))
	}
	if ok {
		if err := a.store.Delete(ctx, pendingRouteKey); err != nil {
			a.logger.Warn("failed to clear login redirect", observability.Error(err))
		}
	}

	if navigation.RedirectTarget(current, "") != "" {
		return current
	}
	if ok {
		return stored
	}
	return current
}

// currentAccount returns the signed-in user's account.
func (a *application) currentAccount(ctx context.Context) (session.User, bank.Account, error) {
	user, ok := a.session.Current()
	if !ok {
		return session.User{}, bank.Account{}, errNotSignedIn
	}
	acct, err := a.bank.AccountByEmail(ctx, user.Email)
	if err != nil {
		return user, bank.Account{}, err
	}
	return user, acct, nil
}

// Package stubapi is an in-memory implementation of the banking API used
// for local development and end-to-end tests.
package stubapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/vyrodovalexey/avabank/internal/bank"
	"github.com/vyrodovalexey/avabank/internal/observability"
)

// Default server settings.
const (
	DefaultTokenTTL       = time.Hour
	DefaultReadTimeout    = 30 * time.Second
	DefaultWriteTimeout   = 30 * time.Second
	DefaultMaxRequestBody = 1 << 20

	firstAccountNumber = 100001
)

var ginModeOnce sync.Once

type user struct {
	Name         string
	Email        string
	Role         string
	PasswordHash []byte
}

// Server serves the banking API from memory. It is safe for concurrent use.
type Server struct {
	engine     *gin.Engine
	logger     observability.Logger
	signingKey []byte
	tokenTTL   time.Duration
	bcryptCost int
	now        func() time.Time

	mu            sync.RWMutex
	users         map[string]*user
	accounts      map[string]*bank.Account
	accountByMail map[string]string
	transactions  []bank.Transaction
	loans         []bank.LoanApplication
	cheques       []bank.ChequeBookRequest
	moneyRequests []bank.MoneyRequest
	products      []bank.Product
	nextAccount   int

	srvMu  sync.Mutex
	server *http.Server
}

// Option is a functional option for configuring the server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithSigningKey sets the HMAC key used to sign and verify tokens.
func WithSigningKey(key []byte) Option {
	return func(s *Server) {
		s.signingKey = key
	}
}

// WithTokenTTL sets how long issued tokens stay valid.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.tokenTTL = ttl
	}
}

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Server) {
		s.bcryptCost = cost
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// New creates a server with no users or accounts.
func New(opts ...Option) (*Server, error) {
	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	s := &Server{
		logger:        observability.NopLogger(),
		tokenTTL:      DefaultTokenTTL,
		bcryptCost:    bcrypt.DefaultCost,
		now:           time.Now,
		users:         make(map[string]*user),
		accounts:      make(map[string]*bank.Account),
		accountByMail: make(map[string]string),
		nextAccount:   firstAccountNumber,
	}

	for _, opt := range opts {
		opt(s)
	}

	if len(s.signingKey) < 16 {
		return nil, errors.New("stubapi: signing key must be at least 16 bytes")
	}

	s.engine = gin.New()
	s.engine.Use(recovery(s.logger), requestLogging(s.logger), maxBodySize(DefaultMaxRequestBody))
	s.routes()

	return s, nil
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	r := s.engine

	r.POST("/jwt", s.issueToken)
	r.POST("/users/signup", s.signUp)
	r.GET("/products/allproducts", s.listProducts)

	users := r.Group("/", s.requireUser())
	users.GET("/accounts/getaccount/:email", s.accountByEmail)
	users.GET("/accounts/getaccountbynumber/:number", s.accountByNumber)
	users.POST("/accounts/createaccount", s.createAccount)
	users.POST("/transactions/send-money", s.sendMoney)
	users.POST("/transactions/withdraw-money", s.withdrawMoney)
	users.GET("/transactions/history/:email", s.history)
	users.POST("/apply-loan", s.applyLoan)
	users.GET("/loans/user-loans/:email", s.userLoans)
	users.POST("/request-chequebook", s.requestChequeBook)
	users.GET("/chequebook/user-request/:email", s.userChequeRequests)
	users.POST("/request-money", s.requestMoney)

	admins := r.Group("/", s.requireUser(), requireAdmin())
	admins.GET("/accounts/allaccounts", s.allAccounts)
	admins.POST("/transactions/deposit-money", s.depositMoney)
	admins.GET("/transactions/all-transactions", s.allTransactions)
	admins.GET("/loans/all-loans", s.allLoans)
	admins.PATCH("/loan-status/:id", s.setLoanStatus)
	admins.GET("/chequebooks/all-requests", s.allChequeRequests)
	admins.PATCH("/chequebook-status/:id", s.setChequeStatus)
	admins.GET("/all-request-money", s.allMoneyRequests)
	admins.PATCH("/request-money-status/:id", s.setMoneyRequestStatus)

	r.NoRoute(func(c *gin.Context) {
		abort(c, http.StatusNotFound, "not found")
	})
}

// Start listens on addr and serves in the background. It returns the bound
// address, which differs from addr when addr uses port 0.
func (s *Server) Start(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:      s.engine,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}

	s.srvMu.Lock()
	s.server = srv
	s.srvMu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("stub api server failed", observability.Error(err))
		}
	}()

	s.logger.Info("stub api listening", observability.String("address", ln.Addr().String()))
	return ln.Addr().String(), nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.srvMu.Lock()
	srv := s.server
	s.server = nil
	s.srvMu.Unlock()

	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown stub api: %w", err)
	}
	s.logger.Info("stub api stopped")
	return nil
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"message": message})
}

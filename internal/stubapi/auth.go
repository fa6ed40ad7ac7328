package stubapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"golang.org/x/crypto/bcrypt"

	"github.com/vyrodovalexey/avabank/internal/observability"
	"github.com/vyrodovalexey/avabank/internal/session"
)

// Context keys set by requireUser.
const (
	ctxEmail = "email"
	ctxRole  = "role"
)

// ErrUserExists indicates that the email is already registered.
var ErrUserExists = errors.New("user already exists")

// AddUser registers a user with a plain text password.
func (s *Server) AddUser(name, email, password, role string) error {
	if role == "" {
		role = session.RoleUser
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	key := strings.ToLower(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[key]; ok {
		return fmt.Errorf("%w: %s", ErrUserExists, email)
	}
	s.users[key] = &user{Name: name, Email: email, Role: role, PasswordHash: hash}
	return nil
}

// IssueToken signs a token for a registered user.
func (s *Server) IssueToken(email string) (string, error) {
	s.mu.RLock()
	u, ok := s.users[strings.ToLower(email)]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown user %s", email)
	}
	return s.sign(u)
}

func (s *Server) sign(u *user) (string, error) {
	now := s.now()
	tok, err := jwt.NewBuilder().
		Subject(u.Email).
		Claim(session.ClaimEmail, u.Email).
		Claim(session.ClaimName, u.Name).
		Claim(session.ClaimRole, u.Role).
		IssuedAt(now).
		Expiration(now.Add(s.tokenTTL)).
		JwtID(uuid.NewString()).
		Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.signingKey))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return string(signed), nil
}

type credentials struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// issueToken exchanges email and password for a token.
func (s *Server) issueToken(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.RLock()
	u, ok := s.users[strings.ToLower(req.Email)]
	s.mu.RUnlock()

	if !ok || bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(req.Password)) != nil {
		abort(c, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, err := s.sign(u)
	if err != nil {
		_ = c.Error(err)
		abort(c, http.StatusInternalServerError, "could not issue token")
		return
	}

	s.logger.Info("token issued", observability.String("email", u.Email))
	c.JSON(http.StatusOK, gin.H{"token": token})
}

type signUpRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// signUp registers a user account.
func (s *Server) signUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}

	err := s.AddUser(req.Name, req.Email, req.Password, session.RoleUser)
	if errors.Is(err, ErrUserExists) {
		abort(c, http.StatusConflict, "email already registered")
		return
	}
	if err != nil {
		_ = c.Error(err)
		abort(c, http.StatusInternalServerError, "could not register user")
		return
	}

	c.JSON(http.StatusCreated, inserted(req.Email))
}

// requireUser verifies the bearer token and stores its email and role in
// the gin context.
func (s *Server) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			abort(c, http.StatusUnauthorized, "missing bearer token")
			return
		}

		tok, err := jwt.Parse([]byte(raw),
			jwt.WithKey(jwa.HS256, s.signingKey),
			jwt.WithValidate(true),
			jwt.WithClock(jwt.ClockFunc(s.now)),
		)
		if err != nil {
			abort(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		email, _ := tok.Get(session.ClaimEmail)
		role, _ := tok.Get(session.ClaimRole)
		emailStr, _ := email.(string)
		roleStr, _ := role.(string)
		if emailStr == "" {
			emailStr = tok.Subject()
		}

		s.mu.RLock()
		_, known := s.users[strings.ToLower(emailStr)]
		s.mu.RUnlock()
		if !known {
			abort(c, http.StatusUnauthorized, "unknown user")
			return
		}

		c.Set(ctxEmail, emailStr)
		c.Set(ctxRole, roleStr)
		c.Next()
	}
}

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ctxRole) != session.RoleAdmin {
			abort(c, http.StatusForbidden, "admin access required")
			return
		}
		c.Next()
	}
}

func isAdmin(c *gin.Context) bool {
	return c.GetString(ctxRole) == session.RoleAdmin
}

// allowSelf aborts with 403 unless the caller owns email or is an admin.
func allowSelf(c *gin.Context, email string) bool {
	if isAdmin(c) || strings.EqualFold(c.GetString(ctxEmail), email) {
		return true
	}
	abort(c, http.StatusForbidden, "access to another user's data is not allowed")
	return false
}

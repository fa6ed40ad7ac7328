package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Token claim names shared with the API server.
const (
	ClaimEmail = "email"
	ClaimName  = "name"
	ClaimRole  = "role"
)

// Roles carried in the role claim.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the signed-in identity derived from the session token.
type User struct {
	Email     string
	Name      string
	Role      string
	SessionID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Expired reports whether the token has an expiry in the past.
func (u User) Expired() bool {
	return u.expiredAt(time.Now())
}

func (u User) expiredAt(now time.Time) bool {
	return !u.ExpiresAt.IsZero() && !now.Before(u.ExpiresAt)
}

// ParseToken derives a User from a token without verifying its signature.
// The server remains the authority; the claims only drive local state.
func ParseToken(token string) (User, error) {
	tok, err := jwt.ParseInsecure([]byte(token))
	if err != nil {
		return User{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	u := User{
		Email:     stringClaim(tok, ClaimEmail),
		Name:      stringClaim(tok, ClaimName),
		Role:      stringClaim(tok, ClaimRole),
		SessionID: tok.JwtID(),
		IssuedAt:  tok.IssuedAt(),
		ExpiresAt: tok.Expiration(),
	}
	if u.Email == "" {
		u.Email = tok.Subject()
	}
	if u.Email == "" {
		return User{}, fmt.Errorf("%w: no email or subject claim", ErrInvalidToken)
	}
	if u.Role == "" {
		u.Role = RoleUser
	}

	return u, nil
}

func stringClaim(tok jwt.Token, name string) string {
	v, ok := tok.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Sentinel errors for session operations.
var (
	// ErrInvalidToken indicates a token that cannot be parsed.
	ErrInvalidToken = errors.New("invalid session token")

	// ErrInvalidCredentials indicates rejected sign-in credentials.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrNotSignedIn indicates that no session exists.
	ErrNotSignedIn = errors.New("not signed in")
)

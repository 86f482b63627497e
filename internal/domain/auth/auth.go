// Package auth resolves session tokens to user identities.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotAuthenticated is returned when a request carries no valid session.
// Fatal to the checkout flow; the caller must redirect to sign-in.
var ErrNotAuthenticated = errors.New("not authenticated")

// Role is the authorization level attached to a session.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Session links a hashed bearer token to a user.
type Session struct {
	TokenHash string
	UserID    string
	Role      Role
	ExpiresAt time.Time
}

// Identity is the resolved caller of a request.
type Identity struct {
	UserID string
	Role   Role
}

// Admin reports whether the identity may perform administrative operations.
func (i Identity) Admin() bool {
	return i.Role == RoleAdmin
}

// Repository provides lookup of sessions by token hash.
type Repository interface {
	FindByTokenHash(ctx context.Context, hash string) (*Session, error)
}

// Authenticator resolves raw bearer tokens to user ids. Tokens are stored
// HMAC-SHA256 hashed with a server-side pepper, so a leaked sessions table
// cannot be replayed.
type Authenticator struct {
	sessions Repository
	pepper   []byte
	now      func() time.Time
}

// NewAuthenticator creates an Authenticator with the given session repository
// and HMAC pepper.
func NewAuthenticator(sessions Repository, pepper []byte) *Authenticator {
	return &Authenticator{sessions: sessions, pepper: pepper, now: time.Now}
}

// HashToken computes the peppered HMAC-SHA256 of a raw session token.
func (a *Authenticator) HashToken(token string) string {
	mac := hmac.New(sha256.New, a.pepper)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// Identify resolves a raw session token to the caller's identity. A missing,
// unknown, or expired session reports ErrNotAuthenticated; lookup failures
// are wrapped so transient storage errors are distinguishable from a bad
// token.
func (a *Authenticator) Identify(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrNotAuthenticated
	}

	sess, err := a.sessions.FindByTokenHash(ctx, a.HashToken(token))
	if err != nil {
		if errors.Is(err, ErrNotAuthenticated) {
			return nil, ErrNotAuthenticated
		}
		return nil, errors.Wrap(err, "lookup session")
	}

	if a.now().After(sess.ExpiresAt) {
		return nil, ErrNotAuthenticated
	}

	role := sess.Role
	if role == "" {
		role = RoleCustomer
	}
	return &Identity{UserID: sess.UserID, Role: role}, nil
}

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSessionRepo struct {
	sessions map[string]*Session
	err      error
}

func (m *mockSessionRepo) FindByTokenHash(_ context.Context, hash string) (*Session, error) {
	if m.err != nil {
		return nil, m.err
	}
	sess, ok := m.sessions[hash]
	if !ok {
		return nil, ErrNotAuthenticated
	}
	return sess, nil
}

func TestHashToken(t *testing.T) {
	a := NewAuthenticator(nil, []byte("pepper"))

	h1 := a.HashToken("tok-1")
	h2 := a.HashToken("tok-1")
	assert.Equal(t, h1, h2, "hashing must be deterministic")
	assert.NotEqual(t, h1, a.HashToken("tok-2"))
	assert.Len(t, h1, 64)

	other := NewAuthenticator(nil, []byte("other-pepper"))
	assert.NotEqual(t, h1, other.HashToken("tok-1"), "pepper must change the hash")
}

func TestIdentify(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &mockSessionRepo{sessions: make(map[string]*Session)}
	a := NewAuthenticator(repo, []byte("pepper"))
	a.now = func() time.Time { return now }

	repo.sessions[a.HashToken("live-token")] = &Session{
		TokenHash: a.HashToken("live-token"),
		UserID:    "u1",
		Role:      RoleCustomer,
		ExpiresAt: now.Add(time.Hour),
	}
	repo.sessions[a.HashToken("stale-token")] = &Session{
		TokenHash: a.HashToken("stale-token"),
		UserID:    "u2",
		Role:      RoleCustomer,
		ExpiresAt: now.Add(-time.Minute),
	}
	repo.sessions[a.HashToken("admin-token")] = &Session{
		TokenHash: a.HashToken("admin-token"),
		UserID:    "staff-1",
		Role:      RoleAdmin,
		ExpiresAt: now.Add(time.Hour),
	}
	repo.sessions[a.HashToken("legacy-token")] = &Session{
		TokenHash: a.HashToken("legacy-token"),
		UserID:    "u3",
		ExpiresAt: now.Add(time.Hour),
	}

	t.Run("valid session", func(t *testing.T) {
		identity, err := a.Identify(context.Background(), "live-token")
		require.NoError(t, err)
		assert.Equal(t, "u1", identity.UserID)
		assert.False(t, identity.Admin())
	})

	t.Run("admin session", func(t *testing.T) {
		identity, err := a.Identify(context.Background(), "admin-token")
		require.NoError(t, err)
		assert.Equal(t, "staff-1", identity.UserID)
		assert.True(t, identity.Admin())
	})

	t.Run("missing role defaults to customer", func(t *testing.T) {
		identity, err := a.Identify(context.Background(), "legacy-token")
		require.NoError(t, err)
		assert.Equal(t, RoleCustomer, identity.Role)
		assert.False(t, identity.Admin())
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := a.Identify(context.Background(), "")
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := a.Identify(context.Background(), "never-issued")
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})

	t.Run("expired session", func(t *testing.T) {
		_, err := a.Identify(context.Background(), "stale-token")
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})

	t.Run("lookup failure is not a bad token", func(t *testing.T) {
		broken := &mockSessionRepo{err: errors.New("connection refused")}
		b := NewAuthenticator(broken, []byte("pepper"))

		_, err := b.Identify(context.Background(), "live-token")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotAuthenticated)
	})
}

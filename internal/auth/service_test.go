package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nice-pea/npc/internal/config"
	"github.com/nice-pea/npc/internal/database"
	"github.com/nice-pea/npc/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, ttl time.Duration) (*Service, *database.DB) {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Type: database.TypeSQLite,
		Path: filepath.Join(t.TempDir(), "auth.db"),
	}, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewService(db, NewTokenManager("secret"), ttl), db
}

func seedUser(t *testing.T, db *database.DB, name, key string) *database.User {
	t.Helper()
	ctx := context.Background()
	user, err := db.CreateUser(ctx, name)
	require.NoError(t, err)
	hash, err := HashKey(key)
	require.NoError(t, err)
	_, err = db.CreateCredential(ctx, user.ID, KeyID(key), hash)
	require.NoError(t, err)
	return user
}

func TestService_LoginAndAuthenticate(t *testing.T) {
	svc, db := newService(t, 24*time.Hour)
	user := seedUser(t, db, "alice", "alice-key-123")
	ctx := context.Background()

	login, err := svc.Login(ctx, "alice-key-123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, login.User.ID)
	assert.NotEmpty(t, login.Token)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), login.Session.ExpiresAt, time.Minute)

	authn, err := svc.Authenticate(ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, login.Session.ID, authn.Session.ID)
	assert.Equal(t, "alice", authn.User.Username)
	assert.NotEmpty(t, authn.Token)

	again, err := svc.Authenticate(ctx, authn.Token)
	require.NoError(t, err, "a refreshed token stays valid")
	assert.Equal(t, login.Session.ID, again.Session.ID)
}

func TestService_LoginUnknownKey(t *testing.T) {
	svc, db := newService(t, time.Hour)
	seedUser(t, db, "alice", "alice-key-123")

	_, err := svc.Login(context.Background(), "nobody-key-000")
	assert.ErrorIs(t, err, ErrUnknownKey)
	assert.True(t, IsUnauthorized(err))
}

func TestService_AuthenticateRejects(t *testing.T) {
	svc, db := newService(t, time.Hour)
	user := seedUser(t, db, "alice", "alice-key-123")
	ctx := context.Background()

	t.Run("Garbage", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "garbage")
		assert.True(t, IsUnauthorized(err))
	})

	t.Run("UnknownSession", func(t *testing.T) {
		token, err := svc.tokens.GenerateToken("00000000-0000-4000-8000-000000000000", user.ID, time.Now().Add(time.Hour))
		require.NoError(t, err)
		_, err = svc.Authenticate(ctx, token)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("ExpiredSession", func(t *testing.T) {
		sess, err := db.CreateSession(ctx, "00000000-0000-4000-8000-000000000001", user.ID, -time.Minute)
		require.NoError(t, err)
		// Token outlives the row so the row's expiry is what rejects it.
		token, err := svc.tokens.GenerateToken(sess.ID, user.ID, time.Now().Add(time.Hour))
		require.NoError(t, err)
		_, err = svc.Authenticate(ctx, token)
		assert.ErrorIs(t, err, ErrSessionExpired)
	})

	t.Run("UserMismatch", func(t *testing.T) {
		sess, err := db.CreateSession(ctx, "00000000-0000-4000-8000-000000000002", user.ID, time.Hour)
		require.NoError(t, err)
		token, err := svc.tokens.GenerateToken(sess.ID, user.ID+1, sess.ExpiresAt)
		require.NoError(t, err)
		_, err = svc.Authenticate(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestNewService_DefaultTTL(t *testing.T) {
	svc := NewService(nil, NewTokenManager("x"), 0)
	assert.Equal(t, 24*time.Hour, svc.sessionTTL)
}

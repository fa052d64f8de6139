package main

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/nice-pea/npc/internal/auth"
	"github.com/nice-pea/npc/internal/config"
	"github.com/nice-pea/npc/internal/database"
	"github.com/nice-pea/npc/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadConfig("", nil)
	require.NoError(t, err)
	cfg.Server.Database.Path = filepath.Join(t.TempDir(), "server.db")
	return cfg
}

func TestInitializeAPI(t *testing.T) {
	cfg := testConfig(t)

	a, db, err := initializeAPI(cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	assert.NotNil(t, a)
	assert.Equal(t, database.TypeSQLite, db.Type())

	t.Run("InvalidConfig", func(t *testing.T) {
		bad := testConfig(t)
		bad.Server.Database.Type = "mysql"
		a, db, err := initializeAPI(bad, logging.Discard())
		assert.Error(t, err)
		assert.Nil(t, a)
		assert.Nil(t, db)
	})
}

func TestSeed(t *testing.T) {
	cfg := testConfig(t)
	_, db, err := initializeAPI(cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()

	key, err := seed(ctx, db, seedOptions{User: "alice", Key: "alice-key-123", Chat: "general"})
	require.NoError(t, err)
	assert.Equal(t, "alice-key-123", key)

	svc := auth.NewService(db, auth.NewTokenManager(cfg.Server.Auth.Secret), 0)
	a, err := svc.Login(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "alice", a.User.Username)

	chats, err := db.UserChats(ctx, a.User.ID)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "general", chats[0].Name)

	// Seeding again reuses the user, the credential and the chat.
	_, err = seed(ctx, db, seedOptions{User: "alice", Key: "alice-key-123", Chat: "general"})
	require.NoError(t, err)
	chats, err = db.UserChats(ctx, a.User.ID)
	require.NoError(t, err)
	assert.Len(t, chats, 1)

	generated, err := seed(ctx, db, seedOptions{User: "alice"})
	require.NoError(t, err)
	assert.NotEqual(t, key, generated)
	_, err = svc.Login(ctx, generated)
	assert.NoError(t, err)
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "npc.yml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  database:\n    path: "+filepath.Join(dir, "npc.db")+"\n"), 0644))

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, []string{"--config", configPath, "--port", strconv.Itoa(port), "--seed-user", "bob"}, &out)
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:" + strconv.Itoa(port) + "/heartbeat")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
	assert.Contains(t, out.String(), "login key for bob: npc_")
}

func TestRun_BadFlag(t *testing.T) {
	err := run(context.Background(), []string{"--no-such-flag"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestSeed_InvalidUsername(t *testing.T) {
	_, db, err := initializeAPI(testConfig(t), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = seed(context.Background(), db, seedOptions{User: "no spaces allowed"})
	assert.ErrorIs(t, err, auth.ErrInvalidUsername)
}

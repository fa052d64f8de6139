package api

import (
	"context"
	"testing"

	"github.com/nice-pea/npc/internal/client"
	"github.com/nice-pea/npc/internal/logging"
	"github.com/nice-pea/npc/internal/session"
	"github.com/nice-pea/npc/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlow(t *testing.T, prefs store.Store) *session.Flow {
	t.Helper()
	c := client.New(client.Options{
		BaseURL: store.NewClientStore(prefs),
		Token:   store.NewAuthStore(prefs),
		Log:     logging.Discard(),
	})
	return session.New(c, prefs, logging.Discard())
}

func TestClientSessionAgainstServer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice, _ := f.user(t, "alice", "alice-key-123")
	chat, err := f.db.CreateChat(ctx, "general", alice.ID)
	require.NoError(t, err)
	for _, text := range []string{"one", "two", "three"} {
		_, err := f.db.CreateMessage(ctx, chat.ID, alice.ID, text, 0)
		require.NoError(t, err)
	}

	prefs := store.NewMemoryStore()
	flow := newFlow(t, prefs)

	res := flow.CheckAuthn(ctx)
	assert.Equal(t, session.Unauthenticated, res.State)
	assert.Equal(t, session.RouteLogin, res.Route)

	_, err = flow.Chats(ctx)
	assert.ErrorIs(t, err, client.ErrNoBaseURL)

	res = flow.Login(ctx, f.srv.URL, "wrong-key-000")
	require.Error(t, res.Err)
	assert.Equal(t, session.Unauthenticated, flow.State())

	res = flow.Login(ctx, f.srv.URL, "alice-key-123")
	require.NoError(t, res.Err)
	assert.Equal(t, session.Authenticated, res.State)
	assert.Equal(t, "alice", res.User.Username)

	token, err := prefs.Get(ctx, store.NamespaceAuth, store.KeyToken)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	key, _ := prefs.Get(ctx, store.NamespaceAuth, store.KeyKey)
	assert.Equal(t, "alice-key-123", key)
	baseURL, _ := prefs.Get(ctx, store.NamespaceClient, store.KeyBaseURL)
	assert.Equal(t, f.srv.URL, baseURL)

	// A fresh flow over the same prefs resumes the session.
	flow = newFlow(t, prefs)
	res = flow.CheckAuthn(ctx)
	require.NoError(t, res.Err)
	assert.Equal(t, session.Authenticated, res.State)
	assert.Equal(t, session.RouteChats, res.Route)

	chats, err := flow.Chats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "general", chats[0].Name)
	require.NotNil(t, chats[0].LastMessage)
	assert.Equal(t, "three", chats[0].LastMessage.Text)

	msgs, err := flow.Messages(ctx, client.MessagesQuery{ChatID: chat.ID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "two", msgs[0].Text)
	assert.Equal(t, "three", msgs[1].Text)

	older, err := flow.Messages(ctx, client.MessagesQuery{ChatID: chat.ID, BeforeID: msgs[0].ID})
	require.NoError(t, err)
	require.Len(t, older, 1)
	assert.Equal(t, "one", older[0].Text)
}

func TestClientSession_StaleTokenFailsCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	prefs := store.NewMemoryStore()
	require.NoError(t, store.SaveLogin(ctx, prefs, "stale", "some-key-123", f.srv.URL))

	res := newFlow(t, prefs).CheckAuthn(ctx)
	assert.Equal(t, session.CheckFailed, res.State)
	assert.Equal(t, session.RouteSplash, res.Route)

	var httpErr *client.HTTPError
	require.ErrorAs(t, res.Err, &httpErr)
	assert.Equal(t, 401, httpErr.StatusCode)

	token, _ := prefs.Get(ctx, store.NamespaceAuth, store.KeyToken)
	assert.Equal(t, "stale", token)
}

func TestClientSession_PaddedServerAddress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice, _ := f.user(t, "alice", "alice-key-123")
	_, err := f.db.CreateChat(ctx, "general", alice.ID)
	require.NoError(t, err)

	prefs := store.NewMemoryStore()
	flow := newFlow(t, prefs)

	res := flow.Login(ctx, " "+f.srv.URL+"/ ", "alice-key-123")
	require.NoError(t, res.Err)

	baseURL, err := prefs.Get(ctx, store.NamespaceClient, store.KeyBaseURL)
	require.NoError(t, err)
	assert.Equal(t, f.srv.URL, baseURL)

	chats, err := flow.Chats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "general", chats[0].Name)

	res = newFlow(t, prefs).CheckAuthn(ctx)
	require.NoError(t, res.Err)
	assert.Equal(t, session.Authenticated, res.State)
}

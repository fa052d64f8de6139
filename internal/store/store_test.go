package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// StoreTestSuite runs the same contract against every Store implementation.
type StoreTestSuite struct {
	suite.Suite
	open  func(t *testing.T) Store
	store Store
	ctx   context.Context
}

func (s *StoreTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.open(s.T())
}

func (s *StoreTestSuite) TearDownTest() {
	s.NoError(s.store.Close())
}

func TestSQLiteStoreSuite(t *testing.T) {
	suite.Run(t, &StoreTestSuite{open: func(t *testing.T) Store {
		st, err := OpenSQLite(filepath.Join(t.TempDir(), "prefs.db"))
		require.NoError(t, err)
		return st
	}})
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, &StoreTestSuite{open: func(t *testing.T) Store {
		return NewMemoryStore()
	}})
}

func (s *StoreTestSuite) TestGetUnsetIsEmpty() {
	v, err := s.store.Get(s.ctx, NamespaceAuth, KeyToken)
	s.NoError(err)
	s.Equal("", v)
}

func (s *StoreTestSuite) TestSetThenGet() {
	s.Require().NoError(s.store.Set(s.ctx, NamespaceAuth, KeyToken, "t1"))
	s.Require().NoError(s.store.Set(s.ctx, NamespaceAuth, KeyToken, "t2"))

	v, err := s.store.Get(s.ctx, NamespaceAuth, KeyToken)
	s.NoError(err)
	s.Equal("t2", v, "set overwrites in place")
}

func (s *StoreTestSuite) TestNamespacesAreSeparate() {
	s.Require().NoError(s.store.Set(s.ctx, NamespaceAuth, KeyBaseURL, "wrong"))
	s.Require().NoError(s.store.Set(s.ctx, NamespaceClient, KeyBaseURL, "http://10.0.2.2:7511"))

	v, err := NewClientStore(s.store).BaseURL(s.ctx)
	s.NoError(err)
	s.Equal("http://10.0.2.2:7511", v)
}

func (s *StoreTestSuite) TestTypedAccessors() {
	auth := NewAuthStore(s.store)
	s.Require().NoError(auth.SetToken(s.ctx, "tok"))
	s.Require().NoError(auth.SetKey(s.ctx, "k3y"))

	token, err := auth.Token(s.ctx)
	s.NoError(err)
	s.Equal("tok", token)

	key, err := auth.Key(s.ctx)
	s.NoError(err)
	s.Equal("k3y", key)

	client := NewClientStore(s.store)
	s.Require().NoError(client.SetBaseURL(s.ctx, "http://chat.local"))
	baseURL, err := client.BaseURL(s.ctx)
	s.NoError(err)
	s.Equal("http://chat.local", baseURL)
}

func (s *StoreTestSuite) TestSaveLogin() {
	s.Require().NoError(SaveLogin(s.ctx, s.store, "tok", "k3y", "http://chat.local"))

	for _, e := range []Entry{
		{NamespaceAuth, KeyToken, "tok"},
		{NamespaceAuth, KeyKey, "k3y"},
		{NamespaceClient, KeyBaseURL, "http://chat.local"},
	} {
		v, err := s.store.Get(s.ctx, e.Namespace, e.Key)
		s.NoError(err)
		s.Equal(e.Value, v, "%s/%s", e.Namespace, e.Key)
	}
}

func (s *StoreTestSuite) TestClosed() {
	s.Require().NoError(s.store.Close())

	_, err := s.store.Get(s.ctx, NamespaceAuth, KeyToken)
	s.ErrorIs(err, ErrClosed)
	s.ErrorIs(s.store.Set(s.ctx, NamespaceAuth, KeyToken, "x"), ErrClosed)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "prefs.db")

	st, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, NewAuthStore(st).SetToken(ctx, "durable"))
	require.NoError(t, st.Close())

	st, err = OpenSQLite(path)
	require.NoError(t, err)
	defer st.Close()

	token, err := NewAuthStore(st).Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "durable", token)
}

func TestSQLiteStore_SetManyIsAtomic(t *testing.T) {
	ctx := context.Background()
	st, err := OpenSQLite(filepath.Join(t.TempDir(), "prefs.db"))
	require.NoError(t, err)
	defer st.Close()

	// Reject the last write of a login so the whole batch has to roll back.
	_, err = st.db.Exec(`CREATE TRIGGER reject_base_url BEFORE INSERT ON prefs
		WHEN NEW.key = 'baseUrl'
		BEGIN SELECT RAISE(ABORT, 'rejected'); END`)
	require.NoError(t, err)

	err = SaveLogin(ctx, st, "tok", "k3y", "http://chat.local")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.SaveLogin")

	token, err := NewAuthStore(st).Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, token, "token must not be visible after a failed batch")

	key, err := NewAuthStore(st).Key(ctx)
	require.NoError(t, err)
	assert.Empty(t, key)
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewMemoryStore()
	assert.ErrorIs(t, m.Set(ctx, NamespaceAuth, KeyToken, "x"), context.Canceled)

	v, err := m.Get(context.Background(), NamespaceAuth, KeyToken)
	require.NoError(t, err)
	assert.Empty(t, v)
}

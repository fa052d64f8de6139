// Package store keeps the client's credentials and settings in local
// key-value preferences.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Preference namespaces and keys.
const (
	NamespaceAuth   = "auth"
	NamespaceClient = "client"

	KeyToken   = "token"
	KeyKey     = "key"
	KeyBaseURL = "baseUrl"
)

var ErrClosed = errors.New("store is closed")

// Entry is a single namespaced preference.
type Entry struct {
	Namespace string
	Key       string
	Value     string
}

// Store is durable key-value preference storage. Get returns "" for a key
// that was never set. SetMany makes all entries visible together or none.
type Store interface {
	Get(ctx context.Context, namespace, key string) (string, error)
	Set(ctx context.Context, namespace, key, value string) error
	SetMany(ctx context.Context, entries []Entry) error
	Close() error
}

// AuthStore reads and writes the auth namespace.
type AuthStore struct {
	s Store
}

func NewAuthStore(s Store) *AuthStore {
	return &AuthStore{s: s}
}

func (a *AuthStore) Token(ctx context.Context) (string, error) {
	return a.s.Get(ctx, NamespaceAuth, KeyToken)
}

func (a *AuthStore) SetToken(ctx context.Context, token string) error {
	return a.s.Set(ctx, NamespaceAuth, KeyToken, token)
}

func (a *AuthStore) Key(ctx context.Context) (string, error) {
	return a.s.Get(ctx, NamespaceAuth, KeyKey)
}

func (a *AuthStore) SetKey(ctx context.Context, key string) error {
	return a.s.Set(ctx, NamespaceAuth, KeyKey, key)
}

// ClientStore reads and writes the client namespace.
type ClientStore struct {
	s Store
}

func NewClientStore(s Store) *ClientStore {
	return &ClientStore{s: s}
}

func (c *ClientStore) BaseURL(ctx context.Context) (string, error) {
	return c.s.Get(ctx, NamespaceClient, KeyBaseURL)
}

func (c *ClientStore) SetBaseURL(ctx context.Context, baseURL string) error {
	return c.s.Set(ctx, NamespaceClient, KeyBaseURL, baseURL)
}

// SaveLogin persists the outcome of a successful login in one write.
func SaveLogin(ctx context.Context, s Store, token, key, baseURL string) error {
	const op = "store.SaveLogin"

	err := s.SetMany(ctx, []Entry{
		{Namespace: NamespaceAuth, Key: KeyToken, Value: token},
		{Namespace: NamespaceAuth, Key: KeyKey, Value: key},
		{Namespace: NamespaceClient, Key: KeyBaseURL, Value: baseURL},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

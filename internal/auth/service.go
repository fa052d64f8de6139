package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nice-pea/npc/internal/database"
)

var (
	ErrUnknownKey      = errors.New("unknown key")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session has expired")
)

// Store is the persistence the auth service needs.
type Store interface {
	GetUserByID(ctx context.Context, id int64) (*database.User, error)
	GetCredentialByKeyID(ctx context.Context, keyID string) (*database.Credential, error)
	CreateSession(ctx context.Context, id string, userID int64, ttl time.Duration) (*database.Session, error)
	GetSession(ctx context.Context, id string) (*database.Session, error)
}

// Authenticated is a user with a live session and a token for it.
type Authenticated struct {
	User    *database.User
	Session *database.Session
	Token   string
}

// Service logs users in by key and authenticates session tokens.
type Service struct {
	store      Store
	tokens     *TokenManager
	sessionTTL time.Duration
}

func NewService(store Store, tokens *TokenManager, sessionTTL time.Duration) *Service {
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &Service{store: store, tokens: tokens, sessionTTL: sessionTTL}
}

// Login opens a new session for the owner of key.
func (s *Service) Login(ctx context.Context, key string) (*Authenticated, error) {
	const op = "auth.Login"

	cred, err := s.store.GetCredentialByKeyID(ctx, KeyID(key))
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrUnknownKey
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !CheckKey(cred.KeyHash, key) {
		return nil, ErrUnknownKey
	}

	user, err := s.store.GetUserByID(ctx, cred.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	session, err := s.store.CreateSession(ctx, uuid.NewString(), user.ID, s.sessionTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	token, err := s.tokens.GenerateToken(session.ID, user.ID, session.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("%s: sign token: %w", op, err)
	}

	return &Authenticated{User: user, Session: session, Token: token}, nil
}

// Authenticate resolves a token to its live session and returns a freshly
// signed token for the same session.
func (s *Service) Authenticate(ctx context.Context, token string) (*Authenticated, error) {
	const op = "auth.Authenticate"

	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	session, err := s.store.GetSession(ctx, claims.ID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !time.Now().Before(session.ExpiresAt) {
		return nil, ErrSessionExpired
	}
	if session.UserID != claims.UserID {
		return nil, ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	refreshed, err := s.tokens.GenerateToken(session.ID, user.ID, session.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("%s: sign token: %w", op, err)
	}

	return &Authenticated{User: user, Session: session, Token: refreshed}, nil
}

// IsUnauthorized reports whether err means the caller's credentials were rejected.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnknownKey) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrExpiredToken) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrSessionExpired)
}

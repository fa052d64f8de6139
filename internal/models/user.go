package models

import "time"

// User is a chat account as the server reports it.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	CreatedAt Time   `json:"created_at"`
}

// Session is an authenticated session. Token is the opaque bearer string
// the client keeps between runs.
type Session struct {
	ID        string `json:"id"`
	UserID    int64  `json:"user_id"`
	Token     string `json:"token"`
	CreatedAt Time   `json:"created_at"`
	ExpiresAt Time   `json:"expires_at"`
}

// IsExpired reports whether the session is past its expiry at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt.Time)
}

// AuthnResult is the body of a successful /authn response.
type AuthnResult struct {
	User    User    `json:"user"`
	Session Session `json:"session"`
}

// LoginResult is the body of a successful /authn/login response.
type LoginResult struct {
	User    User    `json:"user"`
	Session Session `json:"session"`
}

package database

import (
	"database/sql"
	"time"
)

type User struct {
	ID        int64
	Username  string
	CreatedAt time.Time
}

// Credential is a login key of a user. KeyID is a non-secret lookup digest
// of the key; KeyHash is its bcrypt hash.
type Credential struct {
	ID        int64
	UserID    int64
	KeyID     string
	KeyHash   string
	CreatedAt time.Time
}

type Session struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type Chat struct {
	ID        int64
	Name      string
	CreatorID int64
	CreatedAt time.Time

	Creator     *User
	LastMessage *Message
}

type Message struct {
	ID        int64
	ChatID    int64
	AuthorID  int64
	Text      string
	ReplyToID sql.NullInt64
	CreatedAt time.Time
	EditedAt  sql.NullTime
	RemovedAt sql.NullTime

	Author  *User
	ReplyTo *Message
}

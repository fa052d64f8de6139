package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateUser inserts a user with a unique username.
func (d *DB) CreateUser(ctx context.Context, username string) (*User, error) {
	const op = "database.CreateUser"

	u := &User{Username: username, CreatedAt: time.Now().UTC()}
	err := d.conn.QueryRowContext(ctx,
		d.rebind("INSERT INTO users (username, created_at) VALUES (?, ?) RETURNING id"),
		u.Username, u.CreatedAt,
	).Scan(&u.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (d *DB) GetUserByID(ctx context.Context, id int64) (*User, error) {
	const op = "database.GetUserByID"

	u := &User{}
	err := d.conn.QueryRowContext(ctx,
		d.rebind("SELECT id, username, created_at FROM users WHERE id = ?"), id,
	).Scan(&u.ID, &u.Username, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: user %d: %w", op, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (d *DB) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	const op = "database.GetUserByUsername"

	u := &User{}
	err := d.conn.QueryRowContext(ctx,
		d.rebind("SELECT id, username, created_at FROM users WHERE username = ?"), username,
	).Scan(&u.ID, &u.Username, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: user %q: %w", op, username, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// CreateCredential stores a login key for a user. Only the lookup digest
// and the hash are stored.
func (d *DB) CreateCredential(ctx context.Context, userID int64, keyID, keyHash string) (*Credential, error) {
	const op = "database.CreateCredential"

	c := &Credential{UserID: userID, KeyID: keyID, KeyHash: keyHash, CreatedAt: time.Now().UTC()}
	err := d.conn.QueryRowContext(ctx,
		d.rebind("INSERT INTO credentials (user_id, key_id, key_hash, created_at) VALUES (?, ?, ?, ?) RETURNING id"),
		c.UserID, c.KeyID, c.KeyHash, c.CreatedAt,
	).Scan(&c.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

func (d *DB) GetCredentialByKeyID(ctx context.Context, keyID string) (*Credential, error) {
	const op = "database.GetCredentialByKeyID"

	c := &Credential{}
	err := d.conn.QueryRowContext(ctx,
		d.rebind("SELECT id, user_id, key_id, key_hash, created_at FROM credentials WHERE key_id = ?"), keyID,
	).Scan(&c.ID, &c.UserID, &c.KeyID, &c.KeyHash, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateSession stores a session with the given id.
func (d *DB) CreateSession(ctx context.Context, id string, userID int64, ttl time.Duration) (*Session, error) {
	const op = "database.CreateSession"

	now := time.Now().UTC()
	s := &Session{ID: id, UserID: userID, CreatedAt: now, ExpiresAt: now.Add(ttl)}
	_, err := d.conn.ExecContext(ctx,
		d.rebind("INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)"),
		s.ID, s.UserID, s.CreatedAt, s.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

// GetSession returns a session by id, expired or not.
func (d *DB) GetSession(ctx context.Context, id string) (*Session, error) {
	const op = "database.GetSession"

	s := &Session{}
	err := d.conn.QueryRowContext(ctx,
		d.rebind("SELECT id, user_id, created_at, expires_at FROM sessions WHERE id = ?"), id,
	).Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

// DeleteExpiredSessions removes sessions that expired before now.
func (d *DB) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	const op = "database.DeleteExpiredSessions"

	res, err := d.conn.ExecContext(ctx, d.rebind("DELETE FROM sessions WHERE expires_at < ?"), now.UTC())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return res.RowsAffected()
}

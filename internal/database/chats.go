package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateChat creates a chat and makes its creator the first member.
func (d *DB) CreateChat(ctx context.Context, name string, creatorID int64) (*Chat, error) {
	const op = "database.CreateChat"

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	c := &Chat{Name: name, CreatorID: creatorID, CreatedAt: time.Now().UTC()}
	err = tx.QueryRowContext(ctx,
		d.rebind("INSERT INTO chats (name, creator_id, created_at) VALUES (?, ?, ?) RETURNING id"),
		c.Name, c.CreatorID, c.CreatedAt,
	).Scan(&c.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx,
		d.rebind("INSERT INTO members (chat_id, user_id, created_at) VALUES (?, ?, ?)"),
		c.ID, creatorID, c.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("%s: add creator: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// FindChat returns the chat named name created by creatorID, or ErrNotFound.
// When several match the oldest wins.
func (d *DB) FindChat(ctx context.Context, name string, creatorID int64) (*Chat, error) {
	const op = "database.FindChat"

	c := &Chat{}
	err := d.conn.QueryRowContext(ctx,
		d.rebind("SELECT id, name, creator_id, created_at FROM chats WHERE name = ? AND creator_id = ? ORDER BY id LIMIT 1"),
		name, creatorID,
	).Scan(&c.ID, &c.Name, &c.CreatorID, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: chat %q: %w", op, name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// AddMember adds a user to a chat. Adding an existing member is a no-op.
func (d *DB) AddMember(ctx context.Context, chatID, userID int64) error {
	const op = "database.AddMember"

	ok, err := d.IsMember(ctx, chatID, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if ok {
		return nil
	}

	if _, err := d.conn.ExecContext(ctx,
		d.rebind("INSERT INTO members (chat_id, user_id, created_at) VALUES (?, ?, ?)"),
		chatID, userID, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (d *DB) IsMember(ctx context.Context, chatID, userID int64) (bool, error) {
	var n int
	err := d.conn.QueryRowContext(ctx,
		d.rebind("SELECT COUNT(*) FROM members WHERE chat_id = ? AND user_id = ?"), chatID, userID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("database.IsMember: %w", err)
	}
	return n > 0, nil
}

const userChatsQuery = `SELECT
	c.id, c.name, c.creator_id, c.created_at,
	u.id, u.username, u.created_at,
	m.id, m.chat_id, m.author_id, m.text, m.reply_to_id, m.created_at, m.edited_at, m.removed_at,
	a.id, a.username, a.created_at
FROM chats c
JOIN members mb ON mb.chat_id = c.id AND mb.user_id = ?
JOIN users u ON u.id = c.creator_id
LEFT JOIN messages m ON m.id = (SELECT MAX(id) FROM messages WHERE chat_id = c.id)
LEFT JOIN users a ON a.id = m.author_id
ORDER BY COALESCE(m.id, 0) DESC, c.id DESC`

// UserChats lists the chats userID is a member of, with creator and last
// message, most recently active first.
func (d *DB) UserChats(ctx context.Context, userID int64) ([]Chat, error) {
	const op = "database.UserChats"

	rows, err := d.conn.QueryContext(ctx, d.rebind(userChatsQuery), userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	chats := []Chat{}
	for rows.Next() {
		var (
			c       Chat
			creator User
			msg     nullMessage
			author  nullUser
		)
		err := rows.Scan(
			&c.ID, &c.Name, &c.CreatorID, &c.CreatedAt,
			&creator.ID, &creator.Username, &creator.CreatedAt,
			&msg.ID, &msg.ChatID, &msg.AuthorID, &msg.Text, &msg.ReplyToID, &msg.CreatedAt, &msg.EditedAt, &msg.RemovedAt,
			&author.ID, &author.Username, &author.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}

		c.Creator = &creator
		if m := msg.message(); m != nil {
			m.Author = author.user()
			c.LastMessage = m
		}
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return chats, nil
}

// CreateMessage stores a message. replyToID of 0 means no reply.
func (d *DB) CreateMessage(ctx context.Context, chatID, authorID int64, text string, replyToID int64) (*Message, error) {
	const op = "database.CreateMessage"

	m := &Message{ChatID: chatID, AuthorID: authorID, Text: text, CreatedAt: time.Now().UTC()}
	if replyToID > 0 {
		m.ReplyToID = sql.NullInt64{Int64: replyToID, Valid: true}
	}
	err := d.conn.QueryRowContext(ctx,
		d.rebind("INSERT INTO messages (chat_id, author_id, text, reply_to_id, created_at) VALUES (?, ?, ?, ?, ?) RETURNING id"),
		m.ChatID, m.AuthorID, m.Text, m.ReplyToID, m.CreatedAt,
	).Scan(&m.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return m, nil
}

// MessagesParams selects messages. Zero BeforeID and Limit mean unbounded.
type MessagesParams struct {
	ChatIDs  []int64
	BeforeID int64
	Limit    int
}

// Messages returns the newest messages matching p, in ascending id order.
func (d *DB) Messages(ctx context.Context, p MessagesParams) ([]Message, error) {
	const op = "database.Messages"

	if len(p.ChatIDs) == 0 {
		return []Message{}, nil
	}

	query := `SELECT
		m.id, m.chat_id, m.author_id, m.text, m.reply_to_id, m.created_at, m.edited_at, m.removed_at,
		a.id, a.username, a.created_at,
		r.id, r.chat_id, r.author_id, r.text, r.reply_to_id, r.created_at, r.edited_at, r.removed_at
	FROM messages m
	JOIN users a ON a.id = m.author_id
	LEFT JOIN messages r ON r.id = m.reply_to_id
	WHERE m.chat_id IN (` + placeholders(len(p.ChatIDs)) + `)`

	args := make([]any, 0, len(p.ChatIDs)+2)
	for _, id := range p.ChatIDs {
		args = append(args, id)
	}
	if p.BeforeID > 0 {
		query += " AND m.id < ?"
		args = append(args, p.BeforeID)
	}
	query += " ORDER BY m.id DESC"
	if p.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, p.Limit)
	}

	rows, err := d.conn.QueryContext(ctx, d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		var (
			m      Message
			author User
			reply  nullMessage
		)
		err := rows.Scan(
			&m.ID, &m.ChatID, &m.AuthorID, &m.Text, &m.ReplyToID, &m.CreatedAt, &m.EditedAt, &m.RemovedAt,
			&author.ID, &author.Username, &author.CreatedAt,
			&reply.ID, &reply.ChatID, &reply.AuthorID, &reply.Text, &reply.ReplyToID, &reply.CreatedAt, &reply.EditedAt, &reply.RemovedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		m.Author = &author
		m.ReplyTo = reply.message()
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Newest first from the query; callers want chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// nullMessage and nullUser scan LEFT JOIN columns.
type nullMessage struct {
	ID        sql.NullInt64
	ChatID    sql.NullInt64
	AuthorID  sql.NullInt64
	Text      sql.NullString
	ReplyToID sql.NullInt64
	CreatedAt sql.NullTime
	EditedAt  sql.NullTime
	RemovedAt sql.NullTime
}

func (n nullMessage) message() *Message {
	if !n.ID.Valid {
		return nil
	}
	return &Message{
		ID:        n.ID.Int64,
		ChatID:    n.ChatID.Int64,
		AuthorID:  n.AuthorID.Int64,
		Text:      n.Text.String,
		ReplyToID: n.ReplyToID,
		CreatedAt: n.CreatedAt.Time,
		EditedAt:  n.EditedAt,
		RemovedAt: n.RemovedAt,
	}
}

type nullUser struct {
	ID        sql.NullInt64
	Username  sql.NullString
	CreatedAt sql.NullTime
}

func (n nullUser) user() *User {
	if !n.ID.Valid {
		return nil
	}
	return &User{ID: n.ID.Int64, Username: n.Username.String, CreatedAt: n.CreatedAt.Time}
}

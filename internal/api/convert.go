package api

import (
	"github.com/nice-pea/npc/internal/database"
	"github.com/nice-pea/npc/internal/models"
)

func toUser(u *database.User) models.User {
	return models.User{ID: u.ID, Username: u.Username, CreatedAt: models.At(u.CreatedAt)}
}

func toSession(s *database.Session, token string) models.Session {
	return models.Session{
		ID:        s.ID,
		UserID:    s.UserID,
		Token:     token,
		CreatedAt: models.At(s.CreatedAt),
		ExpiresAt: models.At(s.ExpiresAt),
	}
}

func toChat(c *database.Chat) models.Chat {
	out := models.Chat{
		ID:        c.ID,
		Name:      c.Name,
		CreatedAt: models.At(c.CreatedAt),
		CreatorID: c.CreatorID,
	}
	if c.Creator != nil {
		u := toUser(c.Creator)
		out.Creator = &u
	}
	if c.LastMessage != nil {
		m := toMessage(c.LastMessage)
		out.LastMessage = &m
	}
	return out
}

func toMessage(m *database.Message) models.Message {
	out := models.Message{
		ID:        m.ID,
		ChatID:    m.ChatID,
		AuthorID:  m.AuthorID,
		Text:      m.Text,
		CreatedAt: models.At(m.CreatedAt),
	}
	if m.ReplyToID.Valid {
		id := m.ReplyToID.Int64
		out.ReplyToID = &id
	}
	if m.EditedAt.Valid {
		t := models.At(m.EditedAt.Time)
		out.EditedAt = &t
	}
	if m.RemovedAt.Valid {
		t := models.At(m.RemovedAt.Time)
		out.RemovedAt = &t
	}
	if m.Author != nil {
		u := toUser(m.Author)
		out.Author = &u
	}
	if m.ReplyTo != nil {
		r := toMessage(m.ReplyTo)
		r.ReplyTo = nil
		out.ReplyTo = &r
	}
	return out
}

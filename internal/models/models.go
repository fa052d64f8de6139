package models

// Chat is a chat summary as listed by /chats.
type Chat struct {
	ID                  int64    `json:"id"`
	Name                string   `json:"name"`
	CreatedAt           Time     `json:"created_at"`
	CreatorID           int64    `json:"creator_id"`
	Creator             *User    `json:"creator,omitempty"`
	LastMessage         *Message `json:"last_message,omitempty"`
	UnreadMessagesCount int      `json:"unread_messages_count,omitempty"`
}

// Message is a chat message. ReplyTo carries the replied message without
// its own reply, so nesting stops at one level.
type Message struct {
	ID        int64    `json:"id"`
	ChatID    int64    `json:"chat_id"`
	AuthorID  int64    `json:"author_id"`
	Text      string   `json:"text"`
	ReplyToID *int64   `json:"reply_to_id,omitempty"`
	CreatedAt Time     `json:"created_at"`
	EditedAt  *Time    `json:"edited_at,omitempty"`
	RemovedAt *Time    `json:"removed_at,omitempty"`
	Author    *User    `json:"author,omitempty"`
	ReplyTo   *Message `json:"reply_to,omitempty"`
}

// IsRemoved reports whether the message was removed.
func (m *Message) IsRemoved() bool {
	return m.RemovedAt != nil && !m.RemovedAt.IsZero()
}

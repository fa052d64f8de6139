package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Time
		wantErr bool
	}{
		{
			name: "UTC",
			in:   "2024-03-01T10:20:30Z",
			want: time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC),
		},
		{
			name: "Offset",
			in:   "2024-03-01T10:20:30+03:00",
			want: time.Date(2024, 3, 1, 7, 20, 30, 0, time.UTC),
		},
		{
			name: "FractionalSeconds",
			in:   "2024-03-01T10:20:30.123456789-05:00",
			want: time.Date(2024, 3, 1, 15, 20, 30, 123456789, time.UTC),
		},
		{
			name: "NoSeconds",
			in:   "2024-03-01T10:20+01:00",
			want: time.Date(2024, 3, 1, 9, 20, 0, 0, time.UTC),
		},
		{name: "NoOffset", in: "2024-03-01T10:20:30", wantErr: true},
		{name: "DateOnly", in: "2024-03-01", wantErr: true},
		{name: "Garbage", in: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTime(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got.Time), "want %s, got %s", tt.want, got.Time)
		})
	}
}

func TestTime_JSON(t *testing.T) {
	orig := At(time.Date(2024, 3, 1, 10, 20, 30, 500, time.FixedZone("", 3*3600)))

	b, err := json.Marshal(orig)
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-01T10:20:30.0000005+03:00"`, string(b))

	var back Time
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, orig.Equal(back.Time))

	var null Time
	require.NoError(t, json.Unmarshal([]byte("null"), &null))
	assert.True(t, null.IsZero())

	assert.Error(t, json.Unmarshal([]byte("1709288430"), &back), "numbers are not dates")
}

func TestChat_DecodeSnakeCase(t *testing.T) {
	body := `[{
		"id": 7,
		"name": "general",
		"created_at": "2024-01-02T03:04:05+00:00",
		"creator_id": 1,
		"creator": {"id": 1, "username": "alice", "created_at": "2024-01-01T00:00:00Z"},
		"last_message": {
			"id": 42,
			"chat_id": 7,
			"author_id": 2,
			"text": "hi",
			"created_at": "2024-01-03T00:00:00Z",
			"author": {"id": 2, "username": "bob", "created_at": "2024-01-01T00:00:00Z"},
			"reply_to": {"id": 41, "chat_id": 7, "author_id": 1, "text": "hello", "created_at": "2024-01-02T23:59:00Z"}
		},
		"unread_messages_count": 3
	}, {
		"id": 8,
		"name": "empty",
		"created_at": "2024-01-02T03:04:05Z",
		"creator_id": 2
	}]`

	var chats []Chat
	require.NoError(t, json.Unmarshal([]byte(body), &chats))
	require.Len(t, chats, 2)

	c := chats[0]
	assert.Equal(t, int64(7), c.ID)
	assert.Equal(t, int64(1), c.CreatorID)
	require.NotNil(t, c.Creator)
	assert.Equal(t, "alice", c.Creator.Username)
	require.NotNil(t, c.LastMessage)
	assert.Equal(t, "hi", c.LastMessage.Text)
	require.NotNil(t, c.LastMessage.ReplyTo)
	assert.Equal(t, int64(41), c.LastMessage.ReplyTo.ID)
	assert.Equal(t, 3, c.UnreadMessagesCount)

	assert.Nil(t, chats[1].Creator)
	assert.Nil(t, chats[1].LastMessage)
}

func TestChat_MalformedDateFailsDecode(t *testing.T) {
	body := `[{"id": 1, "name": "x", "created_at": "2024-01-02 03:04:05", "creator_id": 1}]`
	var chats []Chat
	assert.Error(t, json.Unmarshal([]byte(body), &chats))
}

func TestSession_IsExpired(t *testing.T) {
	now := time.Now()
	s := Session{ExpiresAt: At(now.Add(time.Hour))}
	assert.False(t, s.IsExpired(now))
	assert.True(t, s.IsExpired(now.Add(2*time.Hour)))

	var noExpiry Session
	assert.False(t, noExpiry.IsExpired(now))
}

func TestMessage_IsRemoved(t *testing.T) {
	m := Message{}
	assert.False(t, m.IsRemoved())
	removed := At(time.Now())
	m.RemovedAt = &removed
	assert.True(t, m.IsRemoved())
}

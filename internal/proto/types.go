package proto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/vovakirdan/supportchat-server/internal/store"
)

// MessageID accepts both JSON numbers and numeric strings, since clients
// echo back whatever they received in URLs and payloads.
type MessageID int64

func (id *MessageID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*id = 0
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("message id %q: %w", s, err)
		}
		*id = MessageID(n)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = MessageID(n)
	return nil
}

// Attachment is an inline file on a message.
type Attachment struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalname"`
	MimeType     string `json:"mimetype"`
	Size         int64  `json:"size"`
	Data         string `json:"data"`
}

// EditEntry is one prior version of an edited message.
type EditEntry struct {
	OriginalContent string    `json:"originalContent"`
	EditedAt        time.Time `json:"editedAt"`
	EditedBy        string    `json:"editedBy,omitempty"`
	Reason          string    `json:"reason,omitempty"`
}

// Message is the wire form of a stored message.
// UserID is only set on copies delivered to admins.
type Message struct {
	ID          int64       `json:"_id"`
	UserID      string      `json:"userId,omitempty"`
	Content     string      `json:"content"`
	SenderType  string      `json:"senderType"`
	SenderID    string      `json:"senderId,omitempty"`
	File        *Attachment `json:"file,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
	IsRead      bool        `json:"isRead"`
	UpdatedAt   *time.Time  `json:"updatedAt,omitempty"`
	IsEdited    bool        `json:"isEdited"`
	EditHistory []EditEntry `json:"editHistory,omitempty"`
}

// User is the wire form of a user.
type User struct {
	UserID          string     `json:"userId"`
	Username        string     `json:"username"`
	LastWelcomeDate string     `json:"lastWelcomeDate,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	Messages        []*Message `json:"messages,omitempty"`
}

// FromMessage converts a stored message. withUser keeps the owner id.
func FromMessage(m *store.Message, withUser bool) *Message {
	if m == nil {
		return nil
	}
	out := &Message{
		ID:         m.ID,
		Content:    m.Content,
		SenderType: string(m.SenderType),
		SenderID:   m.SenderID,
		Timestamp:  m.Timestamp,
		IsRead:     m.IsRead,
		UpdatedAt:  m.UpdatedAt,
		IsEdited:   m.IsEdited,
	}
	if withUser {
		out.UserID = m.UserID
	}
	if a := m.Attachment; a != nil {
		out.File = &Attachment{
			Filename:     a.Filename,
			OriginalName: a.OriginalName,
			MimeType:     a.MimeType,
			Size:         a.Size,
			Data:         a.Data,
		}
	}
	for _, e := range m.EditHistory {
		out.EditHistory = append(out.EditHistory, EditEntry(e))
	}
	return out
}

// FromMessages converts a transcript.
func FromMessages(ms []*store.Message) []*Message {
	out := make([]*Message, 0, len(ms))
	for _, m := range ms {
		out = append(out, FromMessage(m, false))
	}
	return out
}

// FromUser converts a stored user with an optional transcript.
func FromUser(u *store.User, messages []*store.Message) *User {
	if u == nil {
		return nil
	}
	out := &User{
		UserID:          u.UserID,
		Username:        u.Username,
		LastWelcomeDate: u.LastWelcomeDate,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
	if messages != nil {
		out.Messages = FromMessages(messages)
	}
	return out
}

// MessageReadEvent reports read receipts. Either UserID or MessageID is set.
type MessageReadEvent struct {
	UserID    string    `json:"userId,omitempty"`
	MessageID int64     `json:"messageId,omitempty"`
	AdminID   string    `json:"adminId,omitempty"`
	Count     int       `json:"count,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageDeltaEvent reports an update, edit or delete of one message.
type MessageDeltaEvent struct {
	ID          int64       `json:"_id"`
	UserID      string      `json:"userId,omitempty"`
	Action      string      `json:"action"`
	Content     string      `json:"content,omitempty"`
	UpdatedAt   *time.Time  `json:"updatedAt,omitempty"`
	EditedBy    string      `json:"editedBy,omitempty"`
	IsEdited    bool        `json:"isEdited,omitempty"`
	EditHistory []EditEntry `json:"editHistory,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// AllMessagesDeletedEvent reports a cleared conversation or a global wipe.
type AllMessagesDeletedEvent struct {
	UserID            string         `json:"userId,omitempty"`
	Action            string         `json:"action"`
	MessageCount      int            `json:"messageCount"`
	TotalMessageCount int            `json:"totalMessageCount,omitempty"`
	UserCounts        map[string]int `json:"userCounts,omitempty"`
	AdminID           string         `json:"adminId,omitempty"`
	Timestamp         time.Time      `json:"timestamp"`
}

// UserDeletedEvent reports removed users. UserID is empty for a full wipe.
type UserDeletedEvent struct {
	UserID    string    `json:"userId,omitempty"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// JoinedEvent confirms a join.
type JoinedEvent struct {
	Status string   `json:"status"`
	Room   string   `json:"room"`
	Rooms  []string `json:"rooms"`
}

// UnreadCount is one entry of the unread summary.
type UnreadCount struct {
	UserID      string `json:"userId"`
	UnreadCount int    `json:"unreadCount"`
}

// Delta actions.
const (
	ActionUpdated             = "updated"
	ActionDeleted             = "deleted"
	ActionEdited              = "edited"
	ActionAllDeleted          = "allDeleted"
	ActionAllMessagesAllUsers = "allMessagesAllUsers"
)

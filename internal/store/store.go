package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a user or message does not exist.
var ErrNotFound = errors.New("not found")

// SenderType tags the provenance of a message.
type SenderType string

const (
	SenderUser  SenderType = "user"
	SenderBot   SenderType = "bot"
	SenderAdmin SenderType = "admin"
)

// Valid reports whether t is a known sender type.
func (t SenderType) Valid() bool {
	switch t {
	case SenderUser, SenderBot, SenderAdmin:
		return true
	}
	return false
}

// User is a support conversation owner.
type User struct {
	UserID          string
	Username        string
	LastWelcomeDate string // YYYY-MM-DD in UTC, empty if never welcomed
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Attachment is a file stored inline with its message.
type Attachment struct {
	Filename     string
	OriginalName string
	MimeType     string
	Size         int64
	Data         string // data URI
}

// EditEntry records the content a message had before an edit.
type EditEntry struct {
	OriginalContent string
	EditedAt        time.Time
	EditedBy        string
	Reason          string
}

// Message is a persisted entry in a user's conversation.
type Message struct {
	ID          int64
	UserID      string
	Content     string
	SenderType  SenderType
	SenderID    string
	Attachment  *Attachment
	Timestamp   time.Time
	IsRead      bool
	UpdatedAt   *time.Time
	IsEdited    bool
	EditHistory []EditEntry
}

// Edit describes a content change that must be recorded in edit history.
type Edit struct {
	Content  string
	EditedBy string
	Reason   string
}

// UnreadCount is the number of unread user-originated messages for one user.
type UnreadCount struct {
	UserID string
	Count  int
}

// ClearResult summarizes a global message wipe.
type ClearResult struct {
	UserCounts map[string]int
	Total      int
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateOrGetUser returns the existing user or creates it. created reports which happened.
	CreateOrGetUser(ctx context.Context, userID, username string) (user *User, created bool, err error)

	// GetUser retrieves a user by external id.
	GetUser(ctx context.Context, userID string) (*User, error)

	// ListUsers returns every user ordered by creation.
	ListUsers(ctx context.Context) ([]*User, error)

	// MarkWelcomed records day as the user's last welcome date.
	// It returns false when the user was already welcomed on that day.
	MarkWelcomed(ctx context.Context, userID, day string) (bool, error)

	// DeleteUser removes a user and every message it owns.
	DeleteUser(ctx context.Context, userID string) error

	// DeleteAllUsers removes every user and message and returns the number of users removed.
	DeleteAllUsers(ctx context.Context) (int, error)
}

// MessageStore handles conversation persistence.
type MessageStore interface {
	// AppendMessage assigns an id to msg, persists it at the end of the user's sequence
	// and returns the stored record.
	AppendMessage(ctx context.Context, userID string, msg *Message) (*Message, error)

	// ListMessages returns the user's messages in insertion order.
	ListMessages(ctx context.Context, userID string) ([]*Message, error)

	// GetMessage retrieves a single message by id.
	GetMessage(ctx context.Context, messageID int64) (*Message, error)

	// FindMessageOwner returns the user id owning a message.
	FindMessageOwner(ctx context.Context, messageID int64) (string, error)

	// UpdateMessageContent replaces content and sets UpdatedAt.
	UpdateMessageContent(ctx context.Context, messageID int64, content string) (*Message, error)

	// EditMessage appends the current content to edit history, then replaces it.
	EditMessage(ctx context.Context, messageID int64, edit Edit) (*Message, error)

	// DeleteMessage physically removes a message and returns its owner.
	DeleteMessage(ctx context.Context, messageID int64) (string, error)

	// MarkUserMessagesRead flags every unread user-originated message of userID as read.
	MarkUserMessagesRead(ctx context.Context, userID string) (int, error)

	// MarkMessageRead flags one message as read.
	// ok is false when the message does not exist; that is not an error.
	MarkMessageRead(ctx context.Context, messageID int64) (msg *Message, ok bool, err error)

	// ClearMessages empties the user's conversation and returns the prior count.
	ClearMessages(ctx context.Context, userID string) (int, error)

	// ClearAllMessages empties every conversation.
	ClearAllMessages(ctx context.Context) (*ClearResult, error)

	// UnreadCounts groups unread user-originated messages by owner.
	UnreadCounts(ctx context.Context) ([]UnreadCount, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}

package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoin                  = "join"
	InboundTypeSendMessage           = "sendMessage"
	InboundTypeMarkMessagesRead      = "markMessagesRead"
	InboundTypeMarkMessageRead       = "markMessageRead"
	InboundTypeDeleteAllUserMessages = "deleteAllUserMessages"
	InboundTypeDeleteAllMessages     = "deleteAllMessages"
	InboundTypeEditMessage           = "editMessage"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
)

// JoinData subscribes the connection to a user room and/or the admin room.
type JoinData struct {
	UserID  string `json:"userId,omitempty"`
	IsAdmin bool   `json:"isAdmin,omitempty"`
}

// SendMessageData is a chat message sent over the socket.
type SendMessageData struct {
	Text      string `json:"text"`
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId,omitempty"`
	IsAdmin   bool   `json:"isAdmin,omitempty"`
	AdminID   string `json:"adminId,omitempty"`
}

// MarkMessagesReadData marks every unread message of a user.
type MarkMessagesReadData struct {
	UserID  string `json:"userId"`
	AdminID string `json:"adminId,omitempty"`
}

// MarkMessageReadData marks one message.
type MarkMessageReadData struct {
	MessageID MessageID `json:"messageId"`
	AdminID   string    `json:"adminId,omitempty"`
}

// DeleteAllUserMessagesData clears one conversation.
type DeleteAllUserMessagesData struct {
	UserID string `json:"userId"`
}

// DeleteAllMessagesData clears every conversation.
type DeleteAllMessagesData struct {
	AdminID string `json:"adminId"`
}

// EditMessageData edits a message and keeps its history.
type EditMessageData struct {
	MessageID MessageID `json:"messageId"`
	Content   string    `json:"content"`
	AdminID   string    `json:"adminId,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventJoined confirms room membership to the joining client.
	EventJoined EventKind = iota
	// EventMessage carries a newly stored message.
	EventMessage
	// EventMessageRead reports read receipts.
	EventMessageRead
	// EventMessageUpdated reports a content replacement.
	EventMessageUpdated
	// EventMessageDeleted reports a removed message.
	EventMessageDeleted
	// EventMessageEdited reports an edit with history.
	EventMessageEdited
	// EventAllMessagesDeleted reports a cleared conversation, or all of them.
	EventAllMessagesDeleted
	// EventUserDeleted reports a removed user.
	EventUserDeleted

	// Results answer the connection that issued a socket command.
	EventDeleteAllUserMessagesResult
	EventDeleteAllMessagesResult
	EventEditMessageResult
)

var eventNames = map[EventKind]string{
	EventJoined:                      "joined",
	EventMessage:                     "message",
	EventMessageRead:                 "messageRead",
	EventMessageUpdated:              "messageUpdated",
	EventMessageDeleted:              "messageDeleted",
	EventMessageEdited:               "messageEdited",
	EventAllMessagesDeleted:          "allMessagesDeleted",
	EventUserDeleted:                 "userDeleted",
	EventDeleteAllUserMessagesResult: "deleteAllUserMessagesResult",
	EventDeleteAllMessagesResult:     "deleteAllMessagesResult",
	EventEditMessageResult:           "editMessageResult",
}

// String returns the wire name of the event.
func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is sent to clients to describe what happened in the system.
// Payload is a JSON-serializable value owned by the emitter.
type Event struct {
	Kind    EventKind
	Room    string
	Payload any
}

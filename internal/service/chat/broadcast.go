package chat

import (
	"time"

	"github.com/vovakirdan/supportchat-server/internal/core"
	"github.com/vovakirdan/supportchat-server/internal/proto"
	"github.com/vovakirdan/supportchat-server/internal/store"
)

// Routing: the user room gets payloads without userId, the admin room gets
// the same payload annotated with the owner.

func (s *Service) emitMessage(m *store.Message) {
	s.hub.Emit(core.UserRoom(m.UserID), &core.Event{Kind: core.EventMessage, Payload: proto.FromMessage(m, false)})
	s.hub.Emit(core.AdminRoom, &core.Event{Kind: core.EventMessage, Payload: proto.FromMessage(m, true)})
}

func deltaFrom(m *store.Message, action, adminID string) *proto.MessageDeltaEvent {
	d := &proto.MessageDeltaEvent{
		ID:        m.ID,
		Action:    action,
		Content:   m.Content,
		UpdatedAt: m.UpdatedAt,
		EditedBy:  adminID,
		IsEdited:  m.IsEdited,
	}
	if m.UpdatedAt != nil {
		d.Timestamp = *m.UpdatedAt
	}
	for _, e := range m.EditHistory {
		d.EditHistory = append(d.EditHistory, proto.EditEntry(e))
	}
	return d
}

func (s *Service) emitDelta(kind core.EventKind, userID string, d *proto.MessageDeltaEvent) {
	if d.Timestamp.IsZero() {
		d.Timestamp = s.clock.Now().UTC()
	}
	s.hub.Emit(core.UserRoom(userID), &core.Event{Kind: kind, Payload: d})

	annotated := *d
	annotated.UserID = userID
	s.hub.Emit(core.AdminRoom, &core.Event{Kind: kind, Payload: &annotated})
}

func (s *Service) emitRead(userID string, r *proto.MessageReadEvent) {
	s.hub.Emit(core.AdminRoom, &core.Event{Kind: core.EventMessageRead, Payload: r})
	s.hub.Emit(core.UserRoom(userID), &core.Event{Kind: core.EventMessageRead, Payload: r})
}

func (s *Service) emitCleared(userID string, n int, at time.Time) {
	ev := &proto.AllMessagesDeletedEvent{
		UserID:       userID,
		Action:       proto.ActionAllDeleted,
		MessageCount: n,
		Timestamp:    at,
	}
	s.hub.Emit(core.UserRoom(userID), &core.Event{Kind: core.EventAllMessagesDeleted, Payload: ev})
	s.hub.Emit(core.AdminRoom, &core.Event{Kind: core.EventAllMessagesDeleted, Payload: ev})
}

func (s *Service) emitClearedAll(adminID string, res *store.ClearResult, at time.Time) {
	for userID, n := range res.UserCounts {
		s.hub.Emit(core.UserRoom(userID), &core.Event{Kind: core.EventAllMessagesDeleted, Payload: &proto.AllMessagesDeletedEvent{
			UserID:       userID,
			Action:       proto.ActionAllDeleted,
			MessageCount: n,
			Timestamp:    at,
		}})
	}
	s.hub.Emit(core.AdminRoom, &core.Event{Kind: core.EventAllMessagesDeleted, Payload: &proto.AllMessagesDeletedEvent{
		Action:            proto.ActionAllMessagesAllUsers,
		MessageCount:      res.Total,
		TotalMessageCount: res.Total,
		UserCounts:        res.UserCounts,
		AdminID:           adminID,
		Timestamp:         at,
	}})
}

func (s *Service) emitUserDeleted(userID string, n int) {
	s.hub.Emit(core.AdminRoom, &core.Event{Kind: core.EventUserDeleted, Payload: &proto.UserDeletedEvent{
		UserID:    userID,
		Count:     n,
		Timestamp: s.clock.Now().UTC(),
	}})
}

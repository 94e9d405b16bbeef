package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/vovakirdan/supportchat-server/internal/core"
	"github.com/vovakirdan/supportchat-server/internal/proto"
	"github.com/vovakirdan/supportchat-server/internal/store"
)

// UpdateMessage replaces the content of a message without recording history.
func (s *Service) UpdateMessage(ctx context.Context, messageID int64, content, adminID string) (*store.Message, error) {
	if messageID <= 0 || strings.TrimSpace(content) == "" {
		return nil, core.Invalid("messageId and content are required")
	}
	msg, err := s.store.UpdateMessageContent(ctx, messageID, content)
	if err != nil {
		return nil, storeErr(err, "Message not found")
	}
	s.recorder.Moderation("update")
	s.logger.Info().Int64("message_id", messageID).Str("admin_id", adminID).Msg("message updated")
	s.emitDelta(core.EventMessageUpdated, msg.UserID, deltaFrom(msg, proto.ActionUpdated, adminID))
	return msg, nil
}

// EditMessage replaces the content of a message and records the previous
// content in its edit history.
func (s *Service) EditMessage(ctx context.Context, messageID int64, content, adminID, reason string) (*store.Message, error) {
	if messageID <= 0 || strings.TrimSpace(content) == "" {
		return nil, core.Invalid("messageId and content are required")
	}
	msg, err := s.store.EditMessage(ctx, messageID, store.Edit{
		Content:  content,
		EditedBy: adminID,
		Reason:   reason,
	})
	if err != nil {
		return nil, storeErr(err, "Message not found")
	}
	s.recorder.Moderation("edit")
	s.logger.Info().Int64("message_id", messageID).Str("admin_id", adminID).Int("versions", len(msg.EditHistory)).Msg("message edited")
	s.emitDelta(core.EventMessageEdited, msg.UserID, deltaFrom(msg, proto.ActionEdited, adminID))
	return msg, nil
}

// DeleteMessage removes a message for good and returns its former owner.
func (s *Service) DeleteMessage(ctx context.Context, messageID int64) (string, error) {
	if messageID <= 0 {
		return "", core.Invalid("messageId is required")
	}
	userID, err := s.store.DeleteMessage(ctx, messageID)
	if err != nil {
		return "", storeErr(err, "Message not found")
	}
	s.recorder.Moderation("delete")
	s.emitDelta(core.EventMessageDeleted, userID, &proto.MessageDeltaEvent{
		ID:        messageID,
		Action:    proto.ActionDeleted,
		Timestamp: s.clock.Now().UTC(),
	})
	return userID, nil
}

// MarkUserRead marks every unread message the user wrote and returns how many changed.
func (s *Service) MarkUserRead(ctx context.Context, userID, adminID string) (int, error) {
	if userID == "" {
		return 0, core.Invalid("userId is required")
	}
	n, err := s.store.MarkUserMessagesRead(ctx, userID)
	if err != nil {
		return 0, storeErr(err, "User not found")
	}
	s.recorder.Moderation("mark_read")
	s.emitRead(userID, &proto.MessageReadEvent{
		UserID:    userID,
		AdminID:   orDefault(adminID),
		Count:     n,
		Timestamp: s.clock.Now().UTC(),
	})
	return n, nil
}

// MarkMessageRead marks one message. ok is false when there was no such message.
func (s *Service) MarkMessageRead(ctx context.Context, messageID int64, adminID string) (*store.Message, bool, error) {
	if messageID <= 0 {
		return nil, false, core.Invalid("messageId is required")
	}
	msg, ok, err := s.store.MarkMessageRead(ctx, messageID)
	if err != nil {
		return nil, false, fmt.Errorf("mark message read: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	s.recorder.Moderation("mark_message_read")
	s.emitRead(msg.UserID, &proto.MessageReadEvent{
		MessageID: messageID,
		AdminID:   orDefault(adminID),
		Timestamp: s.clock.Now().UTC(),
	})
	return msg, true, nil
}

// DeleteAllUserMessages clears one conversation and returns the number of messages removed.
func (s *Service) DeleteAllUserMessages(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, core.Invalid("userId is required")
	}
	unlock := s.lockUser(userID)
	n, err := s.store.ClearMessages(ctx, userID)
	unlock()
	if err != nil {
		return 0, storeErr(err, "User not found")
	}
	s.recorder.Moderation("clear_user")
	s.emitCleared(userID, n, s.clock.Now().UTC())
	return n, nil
}

// DeleteAllMessages clears every conversation. adminID is mandatory.
func (s *Service) DeleteAllMessages(ctx context.Context, adminID string) (*store.ClearResult, error) {
	if adminID == "" {
		return nil, core.Invalid("adminId is required for this operation")
	}
	res, err := s.store.ClearAllMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("clear all messages: %w", err)
	}
	s.recorder.Moderation("clear_all")
	s.logger.Warn().Str("admin_id", adminID).Int("total", res.Total).Int("users", len(res.UserCounts)).Msg("all messages deleted")
	s.emitClearedAll(adminID, res, s.clock.Now().UTC())
	return res, nil
}

// UnreadCounts returns unread user-written messages per user.
func (s *Service) UnreadCounts(ctx context.Context) ([]store.UnreadCount, error) {
	counts, err := s.store.UnreadCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("unread counts: %w", err)
	}
	return counts, nil
}

func orDefault(adminID string) string {
	if adminID == "" {
		return DefaultAdminID
	}
	return adminID
}

package chat

import (
	"context"
	"strings"

	"github.com/vovakirdan/supportchat-server/internal/bot"
	"github.com/vovakirdan/supportchat-server/internal/core"
	"github.com/vovakirdan/supportchat-server/internal/store"
)

// Role says who authored an inbound message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// IngestRequest is an inbound message from any transport.
type IngestRequest struct {
	UserID     string
	Role       Role
	Content    string
	Attachment *store.Attachment
	// AdminID marks the message as admin-authored when set.
	AdminID string
}

// IngestResult holds the stored records. UserMessage and AdminMessage are exclusive.
// BotMessage is nil when the bot stayed quiet.
type IngestResult struct {
	UserMessage  *store.Message
	AdminMessage *store.Message
	BotMessage   *store.Message
}

// Ingest stores an inbound message, asks the bot for a reply when a user wrote
// it and broadcasts whatever was stored. A user message always gets a lower id
// than its bot reply.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return nil, core.Invalid("userId and either message or file are required")
	}
	if _, err := s.store.GetUser(ctx, req.UserID); err != nil {
		return nil, storeErr(err, "User not found")
	}
	if req.Content == "" && req.Attachment == nil {
		return nil, core.Invalid("userId and either message or file are required")
	}

	if req.Role == RoleAdmin || req.AdminID != "" {
		return s.ingestAdmin(ctx, req)
	}
	return s.ingestUser(ctx, req)
}

func (s *Service) ingestAdmin(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	adminID := req.AdminID
	if adminID == "" {
		adminID = DefaultAdminID
	}

	unlock := s.lockUser(req.UserID)
	defer unlock()

	msg := s.newMessage(store.SenderAdmin, req.Content)
	msg.SenderID = adminID
	msg.Attachment = req.Attachment
	saved, err := s.store.AppendMessage(ctx, req.UserID, msg)
	if err != nil {
		return nil, storeErr(err, "User not found")
	}
	s.recorder.MessageStored(string(store.SenderAdmin))
	s.emitMessage(saved)

	s.logger.Debug().Str("user_id", req.UserID).Str("admin_id", adminID).Int64("message_id", saved.ID).Msg("admin message stored")
	return &IngestResult{AdminMessage: saved}, nil
}

func (s *Service) ingestUser(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	unlock := s.lockUser(req.UserID)
	defer unlock()

	msg := s.newMessage(store.SenderUser, req.Content)
	msg.Attachment = req.Attachment
	userMsg, err := s.store.AppendMessage(ctx, req.UserID, msg)
	if err != nil {
		return nil, storeErr(err, "User not found")
	}
	s.recorder.MessageStored(string(store.SenderUser))
	res := &IngestResult{UserMessage: userMsg}

	reply, ok, err := s.bot.Decide(ctx, req.UserID, bot.Inbound{
		Text:          req.Content,
		HasAttachment: req.Attachment != nil,
	})
	switch {
	case err != nil:
		// the user message is already stored, so deliver it without a reply
		s.recorder.BotDecision("error")
		s.logger.Error().Err(err).Str("user_id", req.UserID).Msg("bot decision failed")
	case !ok:
		s.recorder.BotDecision("silenced")
	default:
		s.recorder.BotDecision("replied")
		botMsg, err := s.store.AppendMessage(ctx, req.UserID, s.newMessage(store.SenderBot, reply))
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", req.UserID).Msg("append bot reply failed")
			break
		}
		s.recorder.MessageStored(string(store.SenderBot))
		res.BotMessage = botMsg
	}

	s.emitMessage(userMsg)
	if res.BotMessage != nil {
		s.emitMessage(res.BotMessage)
	}
	return res, nil
}

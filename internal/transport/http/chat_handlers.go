package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/supportchat-server/internal/attachment"
	"github.com/vovakirdan/supportchat-server/internal/core"
	"github.com/vovakirdan/supportchat-server/internal/proto"
	"github.com/vovakirdan/supportchat-server/internal/service/chat"
	"github.com/vovakirdan/supportchat-server/internal/store"
)

// formOverhead is the room left for form fields and multipart framing on top of
// the attachment limit.
const formOverhead = 64 << 10

// ChatHandlers provides HTTP handlers for conversation and moderation operations.
type ChatHandlers struct {
	chat    *chat.Service
	encoder *attachment.Encoder
	log     *zerolog.Logger
}

// NewChatHandlers creates a new chat handlers instance.
func NewChatHandlers(svc *chat.Service, enc *attachment.Encoder, logger *zerolog.Logger) *ChatHandlers {
	return &ChatHandlers{chat: svc, encoder: enc, log: logger}
}

// ChatRequest is the body of POST /chat, as JSON or multipart form fields.
type ChatRequest struct {
	UserID  string `json:"userId" form:"userId"`
	Message string `json:"message" form:"message"`
	AdminID string `json:"adminId" form:"adminId"`
}

// ChatResponse carries the stored records of one ingest.
type ChatResponse struct {
	UserMessage  *proto.Message `json:"userMessage"`
	AdminMessage *proto.Message `json:"adminMessage,omitempty"`
	BotMessage   *proto.Message `json:"botMessage"`
	BotResponse  string         `json:"botResponse,omitempty"`
	FileData     string         `json:"fileData,omitempty"`
}

// HistoryRequest is the body of POST /chat/history.
type HistoryRequest struct {
	UserID string `json:"userId"`
}

// UpdateMessageRequest is the body of PUT /chat/message/:messageId and its /edit variant.
type UpdateMessageRequest struct {
	Content string `json:"content"`
	AdminID string `json:"adminId"`
	Reason  string `json:"reason"`
}

// AdminRequest carries only the acting admin.
type AdminRequest struct {
	AdminID string `json:"adminId"`
}

// PostChat ingests a message with an optional file.
// POST /chat
func (h *ChatHandlers) PostChat(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.encoder.MaxBytes()+formOverhead)

	var req ChatRequest
	if err := c.ShouldBind(&req); err != nil {
		if bodyTooLarge(err) {
			writeError(c, h.log, core.TooLarge(h.encoder.TooLargeMessage()))
			return
		}
		h.log.Debug().Err(err).Msg("invalid chat request")
		writeError(c, h.log, core.Invalid("userId and either message or file are required"))
		return
	}

	att, err := h.readUpload(c)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	role := chat.RoleUser
	if req.AdminID != "" {
		role = chat.RoleAdmin
	}
	res, err := h.chat.Ingest(c.Request.Context(), chat.IngestRequest{
		UserID:     req.UserID,
		Role:       role,
		Content:    req.Message,
		Attachment: att,
		AdminID:    req.AdminID,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	resp := ChatResponse{
		UserMessage:  proto.FromMessage(res.UserMessage, false),
		AdminMessage: proto.FromMessage(res.AdminMessage, false),
		BotMessage:   proto.FromMessage(res.BotMessage, false),
	}
	if res.BotMessage != nil {
		resp.BotResponse = res.BotMessage.Content
	}
	if att != nil {
		resp.FileData = att.Data
	}
	c.JSON(http.StatusOK, resp)
}

// readUpload returns the multipart "file" field, or nil when the request has none.
func (h *ChatHandlers) readUpload(c *gin.Context) (*store.Attachment, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return nil, nil
	}
	header, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if bodyTooLarge(err) {
		return nil, core.TooLarge(h.encoder.TooLargeMessage())
	}
	if err != nil {
		return nil, core.Invalid("invalid file upload")
	}
	if header.Size > h.encoder.MaxBytes() {
		return nil, core.TooLarge(h.encoder.TooLargeMessage())
	}

	f, err := header.Open()
	if err != nil {
		return nil, core.Invalid("invalid file upload")
	}
	defer f.Close()

	return h.encoder.Read(header.Filename, header.Header.Get("Content-Type"), f)
}

func bodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	// multipart parsing does not always wrap the reader error
	return err != nil && strings.Contains(err.Error(), "http: request body too large")
}

// PostHistory returns a transcript.
// POST /chat/history
func (h *ChatHandlers) PostHistory(c *gin.Context) {
	var req HistoryRequest
	_ = c.ShouldBindJSON(&req) // an empty body is reported as a missing userId
	h.history(c, req.UserID)
}

// GetHistory returns a transcript.
// GET /chat/history/:userId
func (h *ChatHandlers) GetHistory(c *gin.Context) {
	h.history(c, c.Param("userId"))
}

func (h *ChatHandlers) history(c *gin.Context, userID string) {
	messages, err := h.chat.History(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, proto.FromMessages(messages))
}

// UpdateMessage replaces content without history.
// PUT /chat/message/:messageId
func (h *ChatHandlers) UpdateMessage(c *gin.Context) {
	id, err := parseMessageID(c)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	var req UpdateMessageRequest
	_ = c.ShouldBindJSON(&req)

	msg, err := h.chat.UpdateMessage(c.Request.Context(), id, req.Content, req.AdminID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":        "Message updated successfully",
		"updatedMessage": proto.FromMessage(msg, false),
	})
}

// EditMessage replaces content and records history.
// PUT /chat/message/:messageId/edit
func (h *ChatHandlers) EditMessage(c *gin.Context) {
	id, err := parseMessageID(c)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	var req UpdateMessageRequest
	_ = c.ShouldBindJSON(&req)

	msg, err := h.chat.EditMessage(c.Request.Context(), id, req.Content, req.AdminID, req.Reason)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, editResult(msg))
}

func editResult(msg *store.Message) gin.H {
	return gin.H{
		"success":       true,
		"message":       "Message edited successfully",
		"editedMessage": proto.FromMessage(msg, true),
	}
}

// DeleteMessage removes a message for good.
// DELETE /chat/message/:messageId
func (h *ChatHandlers) DeleteMessage(c *gin.Context) {
	id, err := parseMessageID(c)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if _, err := h.chat.DeleteMessage(c.Request.Context(), id); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Message deleted successfully",
		"messageId": id,
	})
}

// DeleteAllUserMessages clears one conversation.
// DELETE /chat/messages/user/:userId
func (h *ChatHandlers) DeleteAllUserMessages(c *gin.Context) {
	userID := c.Param("userId")
	n, err := h.chat.DeleteAllUserMessages(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, clearUserResult(userID, n))
}

func clearUserResult(userID string, n int) gin.H {
	return gin.H{
		"success":      true,
		"userId":       userID,
		"deletedCount": n,
	}
}

// DeleteAllMessages clears every conversation.
// DELETE /chat/messages/all
func (h *ChatHandlers) DeleteAllMessages(c *gin.Context) {
	var req AdminRequest
	_ = c.ShouldBindJSON(&req)
	if req.AdminID == "" {
		req.AdminID = c.Query("adminId")
	}

	res, err := h.chat.DeleteAllMessages(c.Request.Context(), req.AdminID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, clearAllResult(res))
}

func clearAllResult(res *store.ClearResult) gin.H {
	return gin.H{
		"success":              true,
		"totalMessagesDeleted": res.Total,
		"userCounts":           res.UserCounts,
	}
}

// MarkUserRead marks a user's messages as read.
// PUT /chat/read/:userId
func (h *ChatHandlers) MarkUserRead(c *gin.Context) {
	var req AdminRequest
	_ = c.ShouldBindJSON(&req)

	n, err := h.chat.MarkUserRead(c.Request.Context(), c.Param("userId"), req.AdminID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": n})
}

// MarkMessageRead marks one message as read. A missing message answers null.
// PUT /chat/read/message/:messageId
func (h *ChatHandlers) MarkMessageRead(c *gin.Context) {
	id, err := parseMessageID(c)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	var req AdminRequest
	_ = c.ShouldBindJSON(&req)

	msg, ok, err := h.chat.MarkMessageRead(c.Request.Context(), id, req.AdminID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if !ok {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, proto.FromMessage(msg, true))
}

// UnreadCounts returns unread user-written messages per user.
// GET /chat/unread-counts
func (h *ChatHandlers) UnreadCounts(c *gin.Context) {
	counts, err := h.chat.UnreadCounts(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	resp := make([]proto.UnreadCount, 0, len(counts))
	for _, uc := range counts {
		resp = append(resp, proto.UnreadCount{UserID: uc.UserID, UnreadCount: uc.Count})
	}
	c.JSON(http.StatusOK, resp)
}

package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/supportchat-server/internal/core"
	"github.com/vovakirdan/supportchat-server/internal/proto"
	"github.com/vovakirdan/supportchat-server/internal/service/chat"
)

// UserHandlers provides HTTP handlers for user operations.
type UserHandlers struct {
	chat *chat.Service
	log  *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(svc *chat.Service, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		chat: svc,
		log:  logger,
	}
}

// CreateUserRequest is the body of POST /user.
type CreateUserRequest struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// ListUsers returns every user without transcripts.
// GET /users
func (h *UserHandlers) ListUsers(c *gin.Context) {
	users, err := h.chat.ListUsers(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	resp := make([]*proto.User, 0, len(users))
	for _, u := range users {
		resp = append(resp, proto.FromUser(u, nil))
	}
	c.JSON(http.StatusOK, resp)
}

// GetUser returns a user with its transcript.
// GET /users/:userId
func (h *UserHandlers) GetUser(c *gin.Context) {
	user, messages, err := h.chat.GetUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, proto.FromUser(user, messages))
}

// CreateUser registers a user or returns the existing one.
// POST /user
func (h *UserHandlers) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create user request")
		writeError(c, h.log, core.Invalid("userId and username are required"))
		return
	}

	user, _, err := h.chat.CreateOrGetUser(c.Request.Context(), req.UserID, req.Username)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, proto.FromUser(user, nil))
}

// DeleteUser removes a user and its transcript.
// DELETE /users/:userId
func (h *UserHandlers) DeleteUser(c *gin.Context) {
	userID := c.Param("userId")
	if err := h.chat.DeleteUser(c.Request.Context(), userID); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "userId": userID})
}

// DeleteAllUsers removes every user.
// DELETE /users/all
func (h *UserHandlers) DeleteAllUsers(c *gin.Context) {
	n, err := h.chat.DeleteAllUsers(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deletedCount": n})
}

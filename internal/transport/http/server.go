package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/supportchat-server/internal/attachment"
	"github.com/vovakirdan/supportchat-server/internal/config"
	"github.com/vovakirdan/supportchat-server/internal/core"
	"github.com/vovakirdan/supportchat-server/internal/metrics"
	"github.com/vovakirdan/supportchat-server/internal/service/chat"
)

// Deps are the collaborators the HTTP layer serves.
type Deps struct {
	Chat    *chat.Service
	Hub     *core.Hub
	Encoder *attachment.Encoder
	// Metrics is optional.
	Metrics *metrics.Metrics
}

// NewServer builds an HTTP server with REST, WebSocket and ops routes.
// /ws is mounted on the mux in front of gin: gin's writer cannot be hijacked
// after the 101 response is written.
func NewServer(deps Deps, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(deps.Chat, deps.Hub, cfg, deps.Metrics, logger))
	mux.Handle("/", NewRouter(deps, cfg, logger))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter builds the gin engine for REST and ops routes. Every REST route
// is served both at the root and under /api.
func NewRouter(deps Deps, cfg config.Config, logger *zerolog.Logger) *gin.Engine {
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	if deps.Encoder == nil {
		deps.Encoder = attachment.NewEncoder(cfg.MaxUploadBytes)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.AllowedOrigins))
	if deps.Metrics != nil {
		router.Use(MetricsMiddleware(deps.Metrics))
	}
	router.MaxMultipartMemory = deps.Encoder.MaxBytes()

	router.GET("/", rootHandler)
	router.GET("/health", healthHandler)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	users := NewUserHandlers(deps.Chat, logger)
	chats := NewChatHandlers(deps.Chat, deps.Encoder, logger)
	for _, group := range []*gin.RouterGroup{router.Group(""), router.Group("/api")} {
		group.GET("/users", users.ListUsers)
		group.GET("/users/:userId", users.GetUser)
		group.POST("/user", users.CreateUser)
		group.DELETE("/users/all", users.DeleteAllUsers)
		group.DELETE("/users/:userId", users.DeleteUser)

		group.POST("/chat", chats.PostChat)
		group.POST("/chat/history", chats.PostHistory)
		group.GET("/chat/history/:userId", chats.GetHistory)
		group.PUT("/chat/message/:messageId", chats.UpdateMessage)
		group.DELETE("/chat/message/:messageId", chats.DeleteMessage)
		group.PUT("/chat/message/:messageId/edit", chats.EditMessage)
		group.DELETE("/chat/messages/user/:userId", chats.DeleteAllUserMessages)
		group.DELETE("/chat/messages/all", chats.DeleteAllMessages)
		group.PUT("/chat/read/message/:messageId", chats.MarkMessageRead)
		group.PUT("/chat/read/:userId", chats.MarkUserRead)
		group.GET("/chat/unread-counts", chats.UnreadCounts)
	}

	return router
}

func rootHandler(c *gin.Context) {
	c.JSON(stdhttp.StatusOK, gin.H{"message": "Support chat server is running"})
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}

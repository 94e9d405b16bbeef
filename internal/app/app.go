package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/supportchat-server/internal/attachment"
	"github.com/vovakirdan/supportchat-server/internal/bot"
	"github.com/vovakirdan/supportchat-server/internal/config"
	"github.com/vovakirdan/supportchat-server/internal/core"
	applog "github.com/vovakirdan/supportchat-server/internal/log"
	"github.com/vovakirdan/supportchat-server/internal/metrics"
	"github.com/vovakirdan/supportchat-server/internal/service/chat"
	"github.com/vovakirdan/supportchat-server/internal/store"
	"github.com/vovakirdan/supportchat-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/supportchat-server/internal/transport/http"
)

const redisPingTimeout = 3 * time.Second

// App wires together storage, the bot, the hub and the transport layer.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	redis           *redis.Client
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	a := &App{
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}

	silence, err := a.silenceStore(cfg)
	if err != nil {
		a.cleanup()
		return nil, err
	}

	engine := bot.NewEngine(silence,
		bot.WithWindow(cfg.SilenceWindow),
		bot.WithLogger(applog.Component(logger, "bot")),
	)

	a.hub = core.NewHub(applog.Component(logger, "hub"))

	m := metrics.New()
	m.ObserveHub(a.hub.ClientCount, func() int { return a.hub.RoomSize(core.AdminRoom) }, a.hub.Dropped)

	svc := chat.NewService(st, engine, a.hub, chat.Options{
		Welcome:  cfg.WelcomeMessage,
		Recorder: m,
		Logger:   applog.Component(logger, "chat"),
	})

	a.server = transporthttp.NewServer(transporthttp.Deps{
		Chat:    svc,
		Hub:     a.hub,
		Encoder: attachment.NewEncoder(cfg.MaxUploadBytes),
		Metrics: m,
	}, *cfg, applog.Component(logger, "http"))

	return a, nil
}

// silenceStore picks Redis when configured so silence windows survive restarts
// and are shared between instances.
func (a *App) silenceStore(cfg *config.Config) (bot.SilenceStore, error) {
	if cfg.RedisAddr == "" {
		return bot.NewMemorySilenceStore(), nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
	}

	a.redis = client
	a.log.Info().Str("redis_addr", cfg.RedisAddr).Msg("silence windows stored in redis")
	return bot.NewRedisSilenceStore(client, cfg.RedisPrefix), nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.hub.Run(ctx)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close redis client")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}

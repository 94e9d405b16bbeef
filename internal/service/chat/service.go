// Package chat implements the conversation operations shared by the REST and
// WebSocket transports: ingest with bot replies, moderation and read receipts.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/supportchat-server/internal/bot"
	"github.com/vovakirdan/supportchat-server/internal/core"
	"github.com/vovakirdan/supportchat-server/internal/store"
)

// DefaultAdminID is the sender id for admin messages that arrive without one.
const DefaultAdminID = "admin-socket"

// Decider picks the bot reply for a user message.
type Decider interface {
	Decide(ctx context.Context, userID string, msg bot.Inbound) (reply string, ok bool, err error)
}

// Broadcaster delivers events to a named room.
type Broadcaster interface {
	Emit(room string, ev *core.Event)
}

// Recorder receives counters. metrics.Metrics satisfies it.
type Recorder interface {
	MessageStored(sender string)
	BotDecision(outcome string)
	Moderation(op string)
}

type nopRecorder struct{}

func (nopRecorder) MessageStored(string) {}
func (nopRecorder) BotDecision(string)   {}
func (nopRecorder) Moderation(string)    {}

// Options tunes a Service. Zero values are usable.
type Options struct {
	// Welcome enables the once-a-day greeting on GetUser.
	Welcome  bool
	Clock    clock.Clock
	Recorder Recorder
	Logger   *zerolog.Logger
}

// Service coordinates the store, the bot and the broadcaster.
type Service struct {
	store    store.Store
	bot      Decider
	hub      Broadcaster
	clock    clock.Clock
	recorder Recorder
	logger   *zerolog.Logger
	welcome  bool

	// per-user ingest locks keep a user message and its bot reply adjacent.
	// Entries outlive user deletion so a re-created user keeps one mutex.
	locks *xsync.MapOf[string, *sync.Mutex]
}

// NewService wires a Service.
func NewService(st store.Store, decider Decider, hub Broadcaster, opts Options) *Service {
	s := &Service{
		store:    st,
		bot:      decider,
		hub:      hub,
		clock:    opts.Clock,
		recorder: opts.Recorder,
		logger:   opts.Logger,
		welcome:  opts.Welcome,
		locks:    xsync.NewMapOf[string, *sync.Mutex](),
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	if s.logger == nil {
		nop := zerolog.Nop()
		s.logger = &nop
	}
	return s
}

func (s *Service) lockUser(userID string) func() {
	mu, _ := s.locks.LoadOrCompute(userID, func() *sync.Mutex { return &sync.Mutex{} })
	mu.Lock()
	return mu.Unlock
}

func (s *Service) newMessage(sender store.SenderType, content string) *store.Message {
	return &store.Message{
		Content:    content,
		SenderType: sender,
		Timestamp:  s.clock.Now().UTC(),
	}
}

// storeErr maps store failures to domain errors. msg is shown to callers on not-found.
func storeErr(err error, msg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return core.NotFound(msg)
	}
	return err
}

// ==== Users ====

// CreateOrGetUser registers a user or returns the existing one.
func (s *Service) CreateOrGetUser(ctx context.Context, userID, username string) (*store.User, bool, error) {
	userID = strings.TrimSpace(userID)
	username = strings.TrimSpace(username)
	if userID == "" || username == "" {
		return nil, false, core.Invalid("userId and username are required")
	}
	user, created, err := s.store.CreateOrGetUser(ctx, userID, username)
	if err != nil {
		return nil, false, fmt.Errorf("create user: %w", err)
	}
	if created {
		s.logger.Info().Str("user_id", userID).Msg("user created")
	}
	return user, created, nil
}

// GetUser returns a user with the transcript. When greetings are enabled the
// first lookup of the day appends a welcome message from the bot.
func (s *Service) GetUser(ctx context.Context, userID string) (*store.User, []*store.Message, error) {
	if userID == "" {
		return nil, nil, core.Invalid("userId is required")
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, nil, storeErr(err, "User not found")
	}

	if s.welcome {
		if err := s.sendWelcome(ctx, userID); err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("welcome message failed")
		}
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, nil, storeErr(err, "User not found")
	}
	messages, err := s.store.ListMessages(ctx, userID)
	if err != nil {
		return nil, nil, storeErr(err, "User not found")
	}
	return user, messages, nil
}

func (s *Service) sendWelcome(ctx context.Context, userID string) error {
	unlock := s.lockUser(userID)
	defer unlock()

	day := s.clock.Now().UTC().Format("2006-01-02")
	first, err := s.store.MarkWelcomed(ctx, userID, day)
	if err != nil || !first {
		return err
	}

	saved, err := s.store.AppendMessage(ctx, userID, s.newMessage(store.SenderBot, bot.WelcomeMessage))
	if err != nil {
		return fmt.Errorf("append welcome: %w", err)
	}
	s.recorder.MessageStored(string(store.SenderBot))
	s.emitMessage(saved)
	return nil
}

// ListUsers returns every user without transcripts.
func (s *Service) ListUsers(ctx context.Context) ([]*store.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// History returns the user's transcript in order.
func (s *Service) History(ctx context.Context, userID string) ([]*store.Message, error) {
	if userID == "" {
		return nil, core.Invalid("userId is required")
	}
	messages, err := s.store.ListMessages(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "User not found")
	}
	return messages, nil
}

// DeleteUser removes a user and its transcript.
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	if userID == "" {
		return core.Invalid("userId is required")
	}
	unlock := s.lockUser(userID)
	err := s.store.DeleteUser(ctx, userID)
	unlock()
	if err != nil {
		return storeErr(err, "User not found")
	}

	s.recorder.Moderation("delete_user")
	s.emitUserDeleted(userID, 1)
	return nil
}

// DeleteAllUsers removes every user and returns how many there were.
func (s *Service) DeleteAllUsers(ctx context.Context) (int, error) {
	n, err := s.store.DeleteAllUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete users: %w", err)
	}

	s.recorder.Moderation("delete_all_users")
	s.emitUserDeleted("", n)
	return n, nil
}

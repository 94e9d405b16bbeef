// Package bot decides whether and how the support bot answers a user.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// Canned replies.
const (
	EscalationReply = "You're in the queue. Please wait patiently while we connect you with a live customer care agent. We appreciate your patience."
	FileAckReply    = "Hello! I received your file successfully. Thank you for sharing it"
	WelcomeMessage  = "Welcome to Cortex AI Customer Care! We're here to assist you. Please let us know how we can serve you better."
)

// DefaultSilenceWindow is how long the bot stays quiet after an escalation.
const DefaultSilenceWindow = 30 * time.Minute

// Rule maps a keyword to a reply.
type Rule struct {
	Keyword string
	Reply   string
}

// DefaultRules is the keyword table. First match wins, so order matters.
var DefaultRules = []Rule{
	{Keyword: "hello", Reply: "Hello! Welcome to Cortex AI, How may I assist you today?"},
	{Keyword: "hi", Reply: "Hi there! How may I assist you?"},
	{Keyword: "help", Reply: "I can help you with:\n1. Account Status\n2. KYC \n3. Deposit&Withdrawals\n4. Technical support\nWhat would you like to know?"},
	{Keyword: "bye", Reply: "Thank you for chatting with us. Have a great day!"},
	{Keyword: "thanks", Reply: "You're welcome! Is there anything else I can help you with?"},
}

// Inbound is the part of a user message the engine looks at.
type Inbound struct {
	Text          string
	HasAttachment bool
}

// Engine classifies user messages and tracks per-user silence windows.
type Engine struct {
	rules  []Rule
	store  SilenceStore
	clock  clock.Clock
	window time.Duration
	logger *zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithWindow sets the silence window armed by an escalation.
func WithWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.window = d
		}
	}
}

// WithRules replaces the keyword table.
func WithRules(rules []Rule) Option {
	return func(e *Engine) { e.rules = rules }
}

// WithLogger attaches a logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine builds an engine backed by store. A nil store falls back to an in-memory one.
func NewEngine(store SilenceStore, opts ...Option) *Engine {
	nop := zerolog.Nop()
	e := &Engine{
		rules:  DefaultRules,
		store:  store,
		clock:  clock.New(),
		window: DefaultSilenceWindow,
		logger: &nop,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		e.store = NewMemorySilenceStore()
	}
	return e
}

// Window returns the configured silence window.
func (e *Engine) Window() time.Duration {
	return e.window
}

// Classify returns the reply for text. When nothing matches it escalates
// and arms the silence window for userID.
func (e *Engine) Classify(ctx context.Context, userID, text string) (string, error) {
	lower := strings.ToLower(text)
	for _, r := range e.rules {
		if strings.Contains(lower, r.Keyword) {
			return r.Reply, nil
		}
	}

	until := e.clock.Now().Add(e.window)
	if err := e.store.Silence(ctx, userID, until); err != nil {
		return "", fmt.Errorf("arm silence: %w", err)
	}
	e.logger.Info().Str("user_id", userID).Time("until", until).Msg("escalated to agent")
	return EscalationReply, nil
}

// IsSilenced reports whether replies to userID are currently suppressed.
// An expired window is cleared on the way out.
func (e *Engine) IsSilenced(ctx context.Context, userID string) (bool, error) {
	until, ok, err := e.store.SilencedUntil(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load silence: %w", err)
	}
	if !ok {
		return false, nil
	}
	if e.clock.Now().Before(until) {
		return true, nil
	}
	if err := e.store.Clear(ctx, userID); err != nil {
		return false, fmt.Errorf("clear silence: %w", err)
	}
	return false, nil
}

// Decide returns the bot reply for msg. ok is false when the bot must stay quiet,
// in which case no bot message should be stored or broadcast.
func (e *Engine) Decide(ctx context.Context, userID string, msg Inbound) (reply string, ok bool, err error) {
	silenced, err := e.IsSilenced(ctx, userID)
	if err != nil {
		return "", false, err
	}
	if silenced {
		return "", false, nil
	}
	if msg.HasAttachment {
		return FileAckReply, true, nil
	}
	reply, err = e.Classify(ctx, userID, msg.Text)
	if err != nil {
		return "", false, err
	}
	return reply, true, nil
}

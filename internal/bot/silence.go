package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/redis/go-redis/v9"
)

// SilenceStore keeps the silence deadline per user.
// Expiry is decided by the Engine, stores only hold deadlines.
type SilenceStore interface {
	SilencedUntil(ctx context.Context, userID string) (time.Time, bool, error)
	Silence(ctx context.Context, userID string, until time.Time) error
	Clear(ctx context.Context, userID string) error
}

// MemorySilenceStore is a process-local SilenceStore. State is lost on restart.
type MemorySilenceStore struct {
	m *xsync.MapOf[string, time.Time]
}

// NewMemorySilenceStore returns an empty in-memory store.
func NewMemorySilenceStore() *MemorySilenceStore {
	return &MemorySilenceStore{m: xsync.NewMapOf[string, time.Time]()}
}

func (s *MemorySilenceStore) SilencedUntil(_ context.Context, userID string) (time.Time, bool, error) {
	until, ok := s.m.Load(userID)
	return until, ok, nil
}

func (s *MemorySilenceStore) Silence(_ context.Context, userID string, until time.Time) error {
	s.m.Store(userID, until)
	return nil
}

func (s *MemorySilenceStore) Clear(_ context.Context, userID string) error {
	s.m.Delete(userID)
	return nil
}

// Len returns the number of armed entries, expired ones included.
func (s *MemorySilenceStore) Len() int {
	return s.m.Size()
}

// RedisSilenceStore keeps deadlines in Redis so they survive restarts and
// are shared between processes. Keys expire on their own at the deadline.
type RedisSilenceStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisSilenceStore wraps client. Keys are namespaced with prefix.
func NewRedisSilenceStore(client redis.Cmdable, prefix string) *RedisSilenceStore {
	return &RedisSilenceStore{client: client, prefix: prefix}
}

func (s *RedisSilenceStore) key(userID string) string {
	return s.prefix + userID
}

func (s *RedisSilenceStore) SilencedUntil(ctx context.Context, userID string) (time.Time, bool, error) {
	ms, err := s.client.Get(ctx, s.key(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis get: %w", err)
	}
	return time.UnixMilli(ms).UTC(), true, nil
}

func (s *RedisSilenceStore) Silence(ctx context.Context, userID string, until time.Time) error {
	err := s.client.SetArgs(ctx, s.key(userID), until.UnixMilli(), redis.SetArgs{ExpireAt: until}).Err()
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisSilenceStore) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

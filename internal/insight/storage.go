package insight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aisti-labs/insight-engine/internal/insight/types"
	"github.com/aisti-labs/insight-engine/pkg/redis"
)

// recentMirrorSize bounds the Redis recent-event mirror
const recentMirrorSize = 100

// Store persists engine state to Redis. The buffer stays the source of
// truth; Redis only survives restarts. Every failure is logged and
// swallowed so persistence never blocks or fails an operation.
type Store struct {
	client redis.Client
	logger *slog.Logger
}

// NewStore creates a Redis-backed store
func NewStore(client redis.Client, logger *slog.Logger) *Store {
	return &Store{client: client, logger: logger}
}

// SaveBufferSnapshot writes the marshaled buffer state
func (s *Store) SaveBufferSnapshot(ctx context.Context, data []byte) error {
	if err := s.client.Set(ctx, redis.BufferSnapshotKey, data, 0); err != nil {
		return fmt.Errorf("failed to save buffer snapshot: %w", err)
	}
	return nil
}

// LoadBufferSnapshot reads the stored buffer state. Returns nil data
// without error when no snapshot exists.
func (s *Store) LoadBufferSnapshot(ctx context.Context) ([]byte, error) {
	val, err := s.client.Get(ctx, redis.BufferSnapshotKey)
	if err != nil {
		if errors.Is(err, redis.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load buffer snapshot: %w", err)
	}
	return []byte(val), nil
}

// SaveSuggestions writes the suggestion registry
func (s *Store) SaveSuggestions(ctx context.Context, suggestions []*types.SmartSuggestion) error {
	data, err := json.Marshal(suggestions)
	if err != nil {
		return fmt.Errorf("failed to marshal suggestions: %w", err)
	}
	if err := s.client.Set(ctx, redis.SuggestionSnapshotKey, data, 0); err != nil {
		return fmt.Errorf("failed to save suggestions: %w", err)
	}
	return nil
}

// LoadSuggestions reads the stored suggestion registry
func (s *Store) LoadSuggestions(ctx context.Context) ([]*types.SmartSuggestion, error) {
	val, err := s.client.Get(ctx, redis.SuggestionSnapshotKey)
	if err != nil {
		if errors.Is(err, redis.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load suggestions: %w", err)
	}
	var suggestions []*types.SmartSuggestion
	if err := json.Unmarshal([]byte(val), &suggestions); err != nil {
		return nil, fmt.Errorf("failed to parse suggestions: %w", err)
	}
	return suggestions, nil
}

// MirrorEvent pushes an event onto the recent-event list other services
// read for display. Trimmed to the mirror size on every push.
func (s *Store) MirrorEvent(ctx context.Context, event types.UserEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := s.client.LPush(ctx, redis.RecentEventsKey, data); err != nil {
		return fmt.Errorf("failed to mirror event: %w", err)
	}
	if err := s.client.LTrim(ctx, redis.RecentEventsKey, 0, recentMirrorSize-1); err != nil {
		return fmt.Errorf("failed to trim event mirror: %w", err)
	}
	return nil
}

// RecentEvents reads back the mirrored events, newest first
func (s *Store) RecentEvents(ctx context.Context, n int64) ([]types.UserEvent, error) {
	raw, err := s.client.LRange(ctx, redis.RecentEventsKey, 0, n-1)
	if err != nil {
		return nil, fmt.Errorf("failed to read event mirror: %w", err)
	}
	events := make([]types.UserEvent, 0, len(raw))
	for _, item := range raw {
		var ev types.UserEvent
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			s.logger.Warn("Skipping malformed mirrored event", "error", err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// SaveMeta records operational metadata such as the last snapshot time
func (s *Store) SaveMeta(ctx context.Context, field string, value interface{}) error {
	if err := s.client.HSet(ctx, redis.MetaKey, field, value); err != nil {
		return fmt.Errorf("failed to save meta field %s: %w", field, err)
	}
	return nil
}

// persistTimeout bounds each background save
const persistTimeout = 5 * time.Second

// background runs fn with a bounded context and logs failures. Used by
// the engine for fire-and-forget persistence.
func (s *Store) background(op string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.logger.Warn("Background persistence failed", "op", op, "error", err)
		}
	}()
}

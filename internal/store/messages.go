package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ashureev/tripflow/internal/domain"
)

// MessageLog is an append-only per-session message list stored as a single
// cache entry. Append is a read-modify-write; callers appending to the
// same session concurrently must serialize (the planner's per-session turn
// lock does this).
type MessageLog struct {
	cache Cache
	ttl   time.Duration
}

// NewMessageLog returns a message log view over cache. The ttl is applied
// to the underlying entry on every append; ttl <= 0 means the log never
// expires.
func NewMessageLog(cache Cache, ttl time.Duration) *MessageLog {
	return &MessageLog{cache: cache, ttl: ttl}
}

// Messages returns the ordered message list for a session. Unknown or
// expired sessions yield an empty list.
func (l *MessageLog) Messages(ctx context.Context, sessionID string) ([]domain.TurnEntry, error) {
	raw, err := l.cache.Get(ctx, NamespaceMessages, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get message log: %w", err)
	}
	if raw == nil {
		return []domain.TurnEntry{}, nil
	}

	var messages []domain.TurnEntry
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, fmt.Errorf("decode message log: %w", err)
	}
	return messages, nil
}

// Append adds one message at the end of a session's log.
func (l *MessageLog) Append(ctx context.Context, sessionID, role, content string) error {
	messages, err := l.Messages(ctx, sessionID)
	if err != nil {
		return err
	}

	messages = append(messages, domain.TurnEntry{Role: role, Content: content})
	raw, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encode message log: %w", err)
	}

	if err := l.cache.Set(ctx, NamespaceMessages, sessionID, raw, l.ttl); err != nil {
		return fmt.Errorf("set message log: %w", err)
	}
	return nil
}

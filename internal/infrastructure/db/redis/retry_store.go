package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/99minutos/user-management/internal/api/metrics"
	"github.com/99minutos/user-management/internal/core/domain"
)

const (
	retryKey          = "audit:retry"
	defaultMaxPending = 10000
)

// RetryStore parks audit events that failed to persist in a Redis list.
// Key format: audit:retry (RPUSH to park, LPOP to take).
type RetryStore struct {
	client *redis.Client
	maxLen int64
}

// NewRetryStore wraps client. The list keeps at most maxLen events; the oldest
// are trimmed first. A non-positive maxLen falls back to 10000.
func NewRetryStore(client *redis.Client, maxLen int) *RetryStore {
	if maxLen <= 0 {
		maxLen = defaultMaxPending
	}
	return &RetryStore{client: client, maxLen: int64(maxLen)}
}

// Park appends pending to the retry list.
func (s *RetryStore) Park(ctx context.Context, pending domain.PendingAuditEvent) error {
	payload, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("encode pending audit event: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, retryKey, payload)
		pipe.LTrim(ctx, retryKey, -s.maxLen, -1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("park audit event %s: %w", pending.Event.ID, err)
	}
	return nil
}

// Take pops up to max events. Entries that no longer decode are discarded.
func (s *RetryStore) Take(ctx context.Context, max int) ([]domain.PendingAuditEvent, error) {
	if max <= 0 {
		return nil, nil
	}

	raw, err := s.client.LPopCount(ctx, retryKey, max).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("take parked audit events: %w", err)
	}

	out := make([]domain.PendingAuditEvent, 0, len(raw))
	for _, item := range raw {
		var p domain.PendingAuditEvent
		if err := json.Unmarshal([]byte(item), &p); err != nil || p.Event.ID == "" {
			metrics.AuditRetriesTotal.WithLabelValues("discarded").Inc()
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Len reports how many events are parked.
func (s *RetryStore) Len(ctx context.Context) (int64, error) {
	n, err := s.client.LLen(ctx, retryKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count parked audit events: %w", err)
	}
	return n, nil
}

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99minutos/user-management/internal/core/domain"
)

func setupRetryStore(t *testing.T, maxLen int) (*RetryStore, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := Connect(context.Background(), Config{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewRetryStore(client, maxLen), mr
}

func pending(id string, parks int) domain.PendingAuditEvent {
	return domain.PendingAuditEvent{
		Event: domain.AuditEvent{
			ID:         id,
			Tenant:     "general",
			Action:     domain.AuditUserDeleted,
			ActorID:    1,
			TargetID:   3,
			OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		Parks: parks,
	}
}

func TestRetryStore_ParkThenTake(t *testing.T) {
	s, mr := setupRetryStore(t, 0)
	ctx := context.Background()

	require.NoError(t, s.Park(ctx, pending("ev-1", 1)))
	require.NoError(t, s.Park(ctx, pending("ev-2", 2)))
	require.NoError(t, s.Park(ctx, pending("ev-3", 1)))
	assert.True(t, mr.Exists("audit:retry"))

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	got, err := s.Take(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ev-1", got[0].Event.ID)
	assert.Equal(t, "ev-2", got[1].Event.ID)
	assert.Equal(t, 2, got[1].Parks)
	assert.Equal(t, domain.AuditUserDeleted, got[0].Event.Action)
	assert.True(t, got[0].Event.OccurredAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))

	got, err = s.Take(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ev-3", got[0].Event.ID)

	got, err = s.Take(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRetryStore_TrimsOldest(t *testing.T) {
	s, _ := setupRetryStore(t, 2)
	ctx := context.Background()

	for _, id := range []string{"ev-1", "ev-2", "ev-3"} {
		require.NoError(t, s.Park(ctx, pending(id, 1)))
	}

	got, err := s.Take(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ev-2", got[0].Event.ID)
	assert.Equal(t, "ev-3", got[1].Event.ID)
}

func TestRetryStore_DiscardsMalformed(t *testing.T) {
	s, mr := setupRetryStore(t, 0)
	ctx := context.Background()

	_, err := mr.Push("audit:retry", "not json", `{"parks":1}`)
	require.NoError(t, err)
	require.NoError(t, s.Park(ctx, pending("ev-1", 1)))

	got, err := s.Take(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ev-1", got[0].Event.ID)
	assert.False(t, mr.Exists("audit:retry"))
}

func TestRetryStore_ServerDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := Connect(context.Background(), Config{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	s := NewRetryStore(client, 0)
	mr.Close()

	assert.Error(t, s.Park(context.Background(), pending("ev-1", 1)))
	_, err = s.Take(context.Background(), 1)
	assert.Error(t, err)
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect(context.Background(), Config{Addr: "127.0.0.1:1", Timeout: 200 * time.Millisecond})
	assert.Error(t, err)
}

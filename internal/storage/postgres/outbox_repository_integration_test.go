package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderprovider/internal/domain"
)

func TestOutboxRepository_PostgresLifecycle(t *testing.T) {
	repo := NewOutboxRepository(openPostgresStoreForIntegrationTest(t))
	ctx := context.Background()
	base := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)

	generated, err := repo.Enqueue(ctx, domain.OutboxMessage{
		AggregateType: domain.AggregateTypeOrder,
		AggregateID:   "order-1",
		EventType:     domain.EventOrderCreated,
		Payload:       []byte(`{"order_id":"order-1"}`),
		CreatedAt:     base.Add(time.Second),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, generated.ID)

	fixed, err := repo.Enqueue(ctx, domain.OutboxMessage{
		ID:          "outbox-fixed",
		AggregateID: "order-2",
		EventType:   domain.EventOrderUpdated,
		CreatedAt:   base,
	})
	require.NoError(t, err)
	assert.Equal(t, "outbox-fixed", fixed.ID)

	_, err = repo.Enqueue(ctx, domain.OutboxMessage{ID: "outbox-fixed"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	pending, err := repo.PullPending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "outbox-fixed", pending[0].ID, "oldest first")
	assert.Equal(t, generated.ID, pending[1].ID)
	assert.JSONEq(t, `{"order_id":"order-1"}`, string(pending[1].Payload))
	assert.True(t, pending[1].CreatedAt.Equal(base.Add(time.Second)))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.PendingCount)
	assert.True(t, stats.OldestPendingAt.Equal(base))

	require.NoError(t, repo.MarkSent(ctx, fixed.ID))
	require.NoError(t, repo.MarkFailed(ctx, generated.ID))

	pending, err = repo.PullPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	stats, err = repo.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.PendingCount)
	assert.True(t, stats.OldestPendingAt.IsZero())
}

func TestOutboxRepository_PostgresPullLimit(t *testing.T) {
	repo := NewOutboxRepository(openPostgresStoreForIntegrationTest(t))
	ctx := context.Background()

	for i := range 3 {
		_, err := repo.Enqueue(ctx, domain.OutboxMessage{AggregateID: "order", EventType: domain.EventOrderUpdated,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Millisecond)})
		require.NoError(t, err)
	}

	pending, err := repo.PullPending(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestOutboxRepository_PostgresMissingRows(t *testing.T) {
	repo := NewOutboxRepository(openPostgresStoreForIntegrationTest(t))
	ctx := context.Background()

	assert.ErrorIs(t, repo.MarkSent(ctx, "missing"), domain.ErrOutboxRecordNotFound)
	assert.ErrorIs(t, repo.MarkFailed(ctx, "missing"), domain.ErrOutboxRecordNotFound)
}

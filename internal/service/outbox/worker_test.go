package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderprovider/internal/domain"
	"github.com/vladislavdragonenkov/orderprovider/internal/metrics"
	"github.com/vladislavdragonenkov/orderprovider/internal/storage/memory"
)

// recordingPublisher возвращает ошибки из failures по очереди, затем fallback.
type recordingPublisher struct {
	mu        sync.Mutex
	failures  []error
	fallback  error
	published []domain.OutboxMessage
	calls     int
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.OutboxMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	err := p.fallback
	if len(p.failures) > 0 {
		err, p.failures = p.failures[0], p.failures[1:]
	}
	if err == nil {
		p.published = append(p.published, event)
	}
	return err
}

func (p *recordingPublisher) snapshot() (int, []domain.OutboxMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls, append([]domain.OutboxMessage(nil), p.published...)
}

func orderEvent(orderID, eventType string) domain.OutboxMessage {
	return domain.OutboxMessage{
		AggregateType: domain.AggregateTypeOrder,
		AggregateID:   orderID,
		EventType:     eventType,
		Payload:       []byte(`{"orderId":"` + orderID + `"}`),
	}
}

func newTestWorker(t *testing.T, repo domain.OutboxRepository, publisher domain.EventPublisher, opts ...Option) (*Worker, *prometheus.Registry) {
	t.Helper()

	reg := prometheus.NewRegistry()
	base := []Option{WithMetrics(metrics.NewOutboxMetrics(reg)), WithRetryBaseDelay(0)}
	return NewWorker(repo, publisher, append(base, opts...)...), reg
}

func TestWorker_PublishesPendingEvents(t *testing.T) {
	repo := memory.NewOutboxRepository()
	for _, id := range []string{"order-a", "order-b"} {
		_, err := repo.Enqueue(context.Background(), orderEvent(id, domain.EventOrderCreated))
		require.NoError(t, err)
	}
	publisher := &recordingPublisher{}
	worker, _ := newTestWorker(t, repo, publisher)

	assert.Equal(t, 2, worker.ProcessOnce(context.Background()))

	_, published := publisher.snapshot()
	require.Len(t, published, 2)
	assert.Equal(t, "order-a", published[0].AggregateID)
	assert.Equal(t, "order-b", published[1].AggregateID)

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.PendingCount)
	assert.Zero(t, worker.ProcessOnce(context.Background()), "sent events are not republished")
}

func TestWorker_RetriesBeforeSucceeding(t *testing.T) {
	repo := memory.NewOutboxRepository()
	_, err := repo.Enqueue(context.Background(), orderEvent("order-1", domain.EventOrderUpdated))
	require.NoError(t, err)

	publisher := &recordingPublisher{failures: []error{errors.New("broker busy"), errors.New("broker busy")}}
	worker, reg := newTestWorker(t, repo, publisher, WithMaxAttempts(3))

	assert.Equal(t, 1, worker.ProcessOnce(context.Background()))
	calls, _ := publisher.snapshot()
	assert.Equal(t, 3, calls)

	series, err := testutil.GatherAndCount(reg, "orderprovider_outbox_publish_attempts_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series, "sent and retry_error series")
}

func TestWorker_DeadLettersAfterMaxAttempts(t *testing.T) {
	repo := memory.NewOutboxRepository()
	_, err := repo.Enqueue(context.Background(), orderEvent("order-2", domain.EventOrderDeleted))
	require.NoError(t, err)

	publisher := &recordingPublisher{fallback: errors.New("broker down")}
	dlq := &recordingPublisher{}
	worker, _ := newTestWorker(t, repo, publisher, WithMaxAttempts(2), WithDLQPublisher(dlq))
	failedAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	worker.now = func() time.Time { return failedAt }

	assert.Zero(t, worker.ProcessOnce(context.Background()))

	calls, _ := publisher.snapshot()
	assert.Equal(t, 2, calls)

	_, dead := dlq.snapshot()
	require.Len(t, dead, 1)
	assert.Equal(t, "order-2", dead[0].AggregateID)
	assert.Equal(t, domain.EventOrderDeleted, dead[0].EventType)

	var letter deadLetter
	require.NoError(t, json.Unmarshal(dead[0].Payload, &letter))
	assert.Contains(t, letter.Error, "broker down")
	assert.JSONEq(t, `{"orderId":"order-2"}`, string(letter.Payload))
	assert.Equal(t, failedAt, letter.FailedAt)

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.PendingCount, "failed events leave the pending backlog")
}

func TestWorker_FailureWithoutDLQ(t *testing.T) {
	repo := memory.NewOutboxRepository()
	_, err := repo.Enqueue(context.Background(), orderEvent("order-3", domain.EventOrderCreated))
	require.NoError(t, err)

	worker, _ := newTestWorker(t, repo, &recordingPublisher{fallback: errors.New("down")}, WithMaxAttempts(1))
	assert.Zero(t, worker.ProcessOnce(context.Background()))
}

func TestWorker_CancelledContextKeepsEventsPending(t *testing.T) {
	repo := memory.NewOutboxRepository()
	_, err := repo.Enqueue(context.Background(), orderEvent("order-4", domain.EventOrderCreated))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	worker, _ := newTestWorker(t, repo, &recordingPublisher{})
	assert.Zero(t, worker.ProcessOnce(ctx))

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PendingCount)
}

func TestWorker_BacklogMetrics(t *testing.T) {
	repo := memory.NewOutboxRepository()
	_, err := repo.Enqueue(context.Background(), orderEvent("order-5", domain.EventOrderCreated))
	require.NoError(t, err)

	worker, reg := newTestWorker(t, repo, &recordingPublisher{fallback: errors.New("down")}, WithMaxAttempts(1))
	worker.ProcessOnce(context.Background())

	count, err := testutil.GatherAndCount(reg, "orderprovider_outbox_publish_attempts_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "retry_error and failed series")

	count, err = testutil.GatherAndCount(reg, "orderprovider_outbox_pending_records")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestWorker_Backoff(t *testing.T) {
	worker, _ := newTestWorker(t, nil, nil, WithRetryBaseDelay(time.Second))

	assert.Equal(t, time.Second, worker.backoff(1))
	assert.Equal(t, 2*time.Second, worker.backoff(2))
	assert.Equal(t, 4*time.Second, worker.backoff(3))
	assert.Equal(t, maxRetryDelay, worker.backoff(10))

	worker.retryBaseDelay = 0
	assert.Zero(t, worker.backoff(5))
}

func TestNewWorker_Defaults(t *testing.T) {
	worker := NewWorker(nil, nil, WithBatchSize(-1), WithMaxAttempts(0), WithPollInterval(0), WithRetryBaseDelay(-time.Second))

	assert.Equal(t, defaultBatchSize, worker.batchSize)
	assert.Equal(t, defaultMaxAttempts, worker.maxAttempts)
	assert.Equal(t, defaultPollInterval, worker.pollInterval)
	assert.Zero(t, worker.retryBaseDelay)
	assert.NotNil(t, worker.logger)
	assert.NotNil(t, worker.metrics)
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	repo := memory.NewOutboxRepository()
	_, err := repo.Enqueue(context.Background(), orderEvent("order-6", domain.EventOrderCreated))
	require.NoError(t, err)
	publisher := &recordingPublisher{}
	worker, _ := newTestWorker(t, repo, publisher, WithPollInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	assert.Eventually(t, func() bool {
		_, published := publisher.snapshot()
		return len(published) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}

func TestWorker_RunWithoutPublisherReturns(t *testing.T) {
	worker, _ := newTestWorker(t, memory.NewOutboxRepository(), nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled worker should return immediately")
	}
}

package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/orderprovider/internal/domain"
)

const defaultPullLimit = 100

type deliveryState uint8

const (
	statePending deliveryState = iota
	stateSent
	stateFailed
)

type queuedEvent struct {
	msg   domain.OutboxMessage
	state deliveryState
}

// OutboxQueue — очередь событий заказа в памяти процесса.
// Порядок выдачи совпадает с порядком Enqueue.
type OutboxQueue struct {
	mu     sync.RWMutex
	events []*queuedEvent
	byID   map[string]*queuedEvent
	now    func() time.Time
}

// NewOutboxRepository создаёт пустую очередь.
func NewOutboxRepository() *OutboxQueue {
	return &OutboxQueue{
		byID: make(map[string]*queuedEvent),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (q *OutboxQueue) Enqueue(_ context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = q.now()
	}
	msg.Payload = append([]byte(nil), msg.Payload...)

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.byID[msg.ID]; exists {
		return domain.OutboxMessage{}, fmt.Errorf("%w: outbox message %s", domain.ErrConflict, msg.ID)
	}
	ev := &queuedEvent{msg: msg}
	q.events = append(q.events, ev)
	q.byID[msg.ID] = ev
	return msg, nil
}

func (q *OutboxQueue) PullPending(_ context.Context, limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = defaultPullLimit
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]domain.OutboxMessage, 0, min(limit, len(q.events)))
	for _, ev := range q.events {
		if len(out) == limit {
			break
		}
		if ev.state == statePending {
			out = append(out, ev.msg)
		}
	}
	return out, nil
}

func (q *OutboxQueue) Stats(_ context.Context) (domain.OutboxStats, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var stats domain.OutboxStats
	for _, ev := range q.events {
		if ev.state != statePending {
			continue
		}
		if stats.PendingCount == 0 {
			stats.OldestPendingAt = ev.msg.CreatedAt
		}
		stats.PendingCount++
	}
	return stats, nil
}

func (q *OutboxQueue) MarkSent(_ context.Context, id string) error {
	return q.settle(id, stateSent)
}

func (q *OutboxQueue) MarkFailed(_ context.Context, id string) error {
	return q.settle(id, stateFailed)
}

// Pending возвращает все ожидающие публикации события; удобно в тестах.
func (q *OutboxQueue) Pending() []domain.OutboxMessage {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var out []domain.OutboxMessage
	for _, ev := range q.events {
		if ev.state == statePending {
			out = append(out, ev.msg)
		}
	}
	return out
}

func (q *OutboxQueue) settle(id string, state deliveryState) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	ev, ok := q.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrOutboxRecordNotFound, id)
	}
	ev.state = state
	return nil
}

var _ domain.OutboxRepository = (*OutboxQueue)(nil)

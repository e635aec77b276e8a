package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/orderprovider/internal/domain"
)

// Timeline хранит историю заказов в памяти.
type Timeline struct {
	mu      sync.RWMutex
	byOrder map[string][]domain.TimelineEvent
}

// NewTimelineRepository создаёт пустую историю.
func NewTimelineRepository() *Timeline {
	return &Timeline{byOrder: make(map[string][]domain.TimelineEvent)}
}

// Append вставляет событие по времени; при равном Occurred сохраняется порядок добавления.
func (t *Timeline) Append(_ context.Context, event domain.TimelineEvent) error {
	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	events := t.byOrder[event.OrderID]
	pos := len(events)
	for pos > 0 && events[pos-1].Occurred.After(event.Occurred) {
		pos--
	}
	t.byOrder[event.OrderID] = slices.Insert(events, pos, event)
	return nil
}

func (t *Timeline) List(_ context.Context, orderID string) ([]domain.TimelineEvent, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return append([]domain.TimelineEvent{}, t.byOrder[orderID]...), nil
}

var _ domain.TimelineRepository = (*Timeline)(nil)

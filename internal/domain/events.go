package domain

import "time"

// Агрегат и типы событий заказа, которые уходят в брокер.
const (
	AggregateTypeOrder = "order"

	EventOrderCreated = "order.created"
	EventOrderUpdated = "order.updated"
	EventOrderDeleted = "order.deleted"
)

// OutboxMessage — событие, сохранённое вместе с изменением заказа.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// OutboxStats — размер очереди неопубликованных событий.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// Типы записей timeline.
const (
	TimelineOrderCreated       = "OrderCreated"
	TimelineOrderStatusChanged = "OrderStatusChanged"
	TimelineOrderUpdated       = "OrderUpdated"
)

// TimelineEvent — запись в истории заказа.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}

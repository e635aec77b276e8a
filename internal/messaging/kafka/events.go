package kafka

import (
	"encoding/json"
	"time"
)

// Топики событий заказа.
const (
	TopicOrderEvents     = "orderprovider.order.events"
	TopicDeadLetterQueue = "orderprovider.dlq"
)

// Заголовки сообщений.
const (
	HeaderEventType     = "x-event-type"
	HeaderOriginalTopic = "x-original-topic"
	HeaderFailedAt      = "x-failed-at"
)

// Envelope — тело сообщения в топике событий заказа.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	PublishedAt   time.Time       `json:"published_at"`
	Payload       json.RawMessage `json:"payload"`
}

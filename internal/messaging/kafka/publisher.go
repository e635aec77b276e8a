package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/orderprovider/internal/domain"
)

// TopicPublisher публикует события заказа в один топик.
// Ключом сообщения служит ID заказа: события одного заказа попадают в одну партицию.
type TopicPublisher struct {
	producer *Producer
	topic    string
	dlq      bool
	now      func() time.Time
}

// NewEventPublisher публикует в topic, по умолчанию TopicOrderEvents.
func NewEventPublisher(producer *Producer, topic string) *TopicPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &TopicPublisher{producer: producer, topic: topic, now: time.Now}
}

// NewDLQPublisher публикует в dead letter queue и добавляет заголовки исходного топика и времени сбоя.
func NewDLQPublisher(producer *Producer, topic string) *TopicPublisher {
	p := NewEventPublisher(producer, topic)
	if topic == "" {
		p.topic = TopicDeadLetterQueue
	}
	p.dlq = true
	return p
}

// Publish оборачивает событие в Envelope и отправляет его.
func (p *TopicPublisher) Publish(ctx context.Context, event domain.OutboxMessage) error {
	if p == nil {
		return errProducerClosed
	}

	now := p.now().UTC()
	payload := json.RawMessage(event.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}

	body, err := json.Marshal(Envelope{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		OccurredAt:    event.CreatedAt,
		PublishedAt:   now,
		Payload:       payload,
	})
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", event.EventType, err)
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}
	headers := map[string]string{HeaderEventType: event.EventType}
	if p.dlq {
		headers[HeaderOriginalTopic] = TopicOrderEvents
		headers[HeaderFailedAt] = now.Format(time.RFC3339Nano)
	}

	return p.producer.Send(ctx, Record{
		Topic:     p.topic,
		Key:       key,
		Value:     body,
		Headers:   headers,
		Timestamp: now,
	})
}

var _ domain.EventPublisher = (*TopicPublisher)(nil)

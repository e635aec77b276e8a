// Package order реализует сценарии работы с заказами: создание с валидацией и расчётом
// цены, выборки с учётом владельца и роли, изменение и удаление.
package order

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/orderprovider/internal/access"
	"github.com/vladislavdragonenkov/orderprovider/internal/domain"
	"github.com/vladislavdragonenkov/orderprovider/internal/metrics"
	"github.com/vladislavdragonenkov/orderprovider/internal/validation"
)

const tracerName = "github.com/vladislavdragonenkov/orderprovider/internal/service/order"

// Service — сервис заказов. Все бизнес-отказы возвращаются как ошибки домена
// (ValidationError, ErrNotFound, ErrConflict, ErrForbidden), сбои хранилища как ErrStoreUnavailable.
type Service struct {
	orders   domain.EntityStore[domain.Order]
	users    domain.EntityStore[domain.User]
	promos   domain.EntityStore[domain.PromoCode]
	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository
	pipeline *validation.Pipeline
	metrics  *metrics.OrderMetrics
	logger   *log.Entry
	tracer   trace.Tracer
	now      func() time.Time
	newID    func() string
}

// Option настраивает Service.
type Option func(*Service)

// WithOutbox включает публикацию событий заказа через transactional outbox.
func WithOutbox(repo domain.OutboxRepository) Option {
	return func(s *Service) {
		s.outbox = repo
	}
}

// WithTimeline включает запись истории статусов.
func WithTimeline(repo domain.TimelineRepository) Option {
	return func(s *Service) {
		s.timeline = repo
	}
}

// WithMetrics задаёт prometheus-метрики сервиса.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPipeline заменяет конвейер проверок создания заказа.
func WithPipeline(p *validation.Pipeline) Option {
	return func(s *Service) {
		if p != nil {
			s.pipeline = p
		}
	}
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator подменяет генератор идентификаторов заказов.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewService собирает сервис заказов поверх хранилищ заказов, пользователей и промокодов.
func NewService(
	orders domain.EntityStore[domain.Order],
	users domain.EntityStore[domain.User],
	promos domain.EntityStore[domain.PromoCode],
	opts ...Option,
) *Service {
	s := &Service{
		orders:   orders,
		users:    users,
		promos:   promos,
		pipeline: validation.NewPipeline(validation.NonNegativePrices, validation.DeliveryAddressComplete),
		logger:   log.WithField("component", "order-service"),
		tracer:   otel.Tracer(tracerName),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// startOperation открывает span и возвращает функцию завершения,
// которая пишет длительность и статус операции.
func (s *Service) startOperation(ctx context.Context, name string, req access.Requester) (context.Context, func(*error)) {
	ctx, span := s.tracer.Start(ctx, "order."+name, trace.WithAttributes(
		attribute.String("requester.id", req.ID),
		attribute.String("requester.role", string(req.Role)),
	))
	started := time.Now()

	return ctx, func(errp *error) {
		defer span.End()
		s.metrics.RecordOperationDuration(name, time.Since(started))

		if errp == nil || *errp == nil {
			span.SetStatus(codes.Ok, "")
			return
		}
		err := *errp
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if domain.IsStoreFailure(err) {
			s.metrics.RecordStoreFailure(name)
			s.logger.WithError(err).WithField("operation", name).Error("order store failure")
		}
	}
}

// orderEvent — полезная нагрузка событий заказа в outbox.
type orderEvent struct {
	OrderID    string          `json:"order_id"`
	UserID     string          `json:"user_id"`
	Status     string          `json:"status"`
	PriceTotal decimal.Decimal `json:"price_total"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// recordEvent пишет событие в outbox и timeline. Сбои не отменяют уже выполненную
// операцию над заказом и только логируются.
func (s *Service) recordEvent(ctx context.Context, o domain.Order, eventType, timelineType, reason string) {
	ctx = context.WithoutCancel(ctx)
	now := s.now()

	if s.outbox != nil {
		payload, err := json.Marshal(orderEvent{
			OrderID:    o.ID,
			UserID:     o.UserID,
			Status:     string(o.Status),
			PriceTotal: o.PriceTotal,
			OccurredAt: now,
		})
		if err == nil {
			_, err = s.outbox.Enqueue(ctx, domain.OutboxMessage{
				AggregateType: domain.AggregateTypeOrder,
				AggregateID:   o.ID,
				EventType:     eventType,
				Payload:       payload,
				CreatedAt:     now,
			})
		}
		if err != nil {
			s.logger.WithError(err).WithFields(log.Fields{
				"order_id":   o.ID,
				"event_type": eventType,
			}).Warn("failed to enqueue order event")
		} else {
			s.metrics.RecordOutboxEvent()
		}
	}

	if s.timeline != nil && timelineType != "" {
		if err := s.timeline.Append(ctx, domain.TimelineEvent{
			OrderID:  o.ID,
			Type:     timelineType,
			Reason:   reason,
			Occurred: now,
		}); err != nil {
			s.logger.WithError(err).WithField("order_id", o.ID).Warn("failed to append timeline event")
		} else {
			s.metrics.RecordTimelineEvent()
		}
	}
}

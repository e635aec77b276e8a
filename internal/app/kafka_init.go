package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderprovider/internal/domain"
	"github.com/vladislavdragonenkov/orderprovider/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orderprovider/internal/service/outbox"
)

// initKafkaProducer создаёт Kafka producer, если заданы brokers.
// Возвращает nil, nil для пустого списка brokers.
func initKafkaProducer(brokers []string, logger *log.Entry) (*kafka.Producer, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers, logger.WithField("layer", "kafka"))
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer, nil
}

// closeKafka закрывает Kafka producer если он не nil.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}

// newOutboxWorker собирает воркер публикации событий заказов.
// Без producer события остаются в outbox и воркер не создаётся.
func newOutboxWorker(repo domain.OutboxRepository, producer *kafka.Producer, cfg Config, logger *log.Entry) *outbox.Worker {
	if producer == nil || repo == nil {
		return nil
	}

	return outbox.NewWorker(
		repo,
		kafka.NewEventPublisher(producer, kafka.TopicOrderEvents),
		outbox.WithDLQPublisher(kafka.NewDLQPublisher(producer, kafka.TopicDeadLetterQueue)),
		outbox.WithLogger(logger.WithField("component", "outbox-worker")),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	)
}

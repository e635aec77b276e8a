package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func headerValue(msg *sarama.ProducerMessage, key string) string {
	for _, h := range msg.Headers {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestProducer_Send(t *testing.T) {
	sync := mocks.NewSyncProducer(t, nil)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	sync.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		value, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		if string(key) != "order-1" || string(value) != `{"ok":true}` {
			return sarama.ErrInvalidMessage
		}
		if headerValue(msg, "x-trace") != "abc" || !msg.Timestamp.Equal(at) {
			return sarama.ErrInvalidMessage
		}
		return nil
	})

	producer := newProducer(sync, nil)
	err := producer.Send(context.Background(), Record{
		Topic:     TopicOrderEvents,
		Key:       "order-1",
		Value:     []byte(`{"ok":true}`),
		Headers:   map[string]string{"x-trace": "abc"},
		Timestamp: at,
	})
	require.NoError(t, err)
	require.NoError(t, producer.Close())
}

func TestProducer_SendBrokerError(t *testing.T) {
	sync := mocks.NewSyncProducer(t, nil)
	sync.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	producer := newProducer(sync, nil)
	err := producer.Send(context.Background(), Record{Topic: TopicOrderEvents, Value: []byte(`{}`)})
	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	assert.Contains(t, err.Error(), TopicOrderEvents)
	require.NoError(t, producer.Close())
}

func TestProducer_SendCancelledContext(t *testing.T) {
	sync := mocks.NewSyncProducer(t, nil)
	producer := newProducer(sync, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := producer.Send(ctx, Record{Topic: TopicOrderEvents})
	require.True(t, errors.Is(err, context.Canceled))
	require.NoError(t, producer.Close(), "no message must reach the broker")
}

func TestProducer_NilSafe(t *testing.T) {
	var producer *Producer
	assert.ErrorIs(t, producer.Send(context.Background(), Record{}), errProducerClosed)
	assert.NoError(t, producer.Close())
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("")
	assert.Equal(t, defaultClientID, cfg.ClientID)
	assert.True(t, cfg.Producer.Idempotent)
	assert.Equal(t, sarama.WaitForAll, cfg.Producer.RequiredAcks)
	assert.Equal(t, 1, cfg.Net.MaxOpenRequests)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "checkout", NewConfig("checkout").ClientID)
}

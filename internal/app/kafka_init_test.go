package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderprovider/internal/storage/memory"
)

func TestInitKafkaProducer_EmptyBrokers(t *testing.T) {
	producer, err := initKafkaProducer(nil, quietLogger())
	require.NoError(t, err)
	assert.Nil(t, producer)

	producer, err = initKafkaProducer([]string{}, quietLogger())
	require.NoError(t, err)
	assert.Nil(t, producer)
}

func TestInitKafkaProducer_UnreachableBroker(t *testing.T) {
	if testing.Short() {
		t.Skip("dials a closed port")
	}

	producer, err := initKafkaProducer([]string{"127.0.0.1:1"}, quietLogger())
	require.Error(t, err)
	assert.Nil(t, producer)
}

func TestCloseKafka_NilProducer(t *testing.T) {
	assert.NotPanics(t, func() { closeKafka(nil, quietLogger()) })
}

func TestNewOutboxWorker_WithoutProducer(t *testing.T) {
	worker := newOutboxWorker(memory.NewOutboxRepository(), nil, DefaultConfig(), quietLogger())
	assert.Nil(t, worker)
}

func TestStartOutboxWorker_Nil(t *testing.T) {
	stop := startOutboxWorker(t.Context(), nil)
	assert.NotPanics(t, stop)
}

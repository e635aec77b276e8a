package app

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderprovider/internal/domain"
	"github.com/vladislavdragonenkov/orderprovider/internal/health"
)

func quietLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return log.NewEntry(logger)
}

func TestNewDependencies_Memory(t *testing.T) {
	deps, err := NewDependencies(context.Background(), DefaultConfig(), quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })

	assert.NotNil(t, deps.Orders)
	assert.NotNil(t, deps.Users)
	assert.NotNil(t, deps.Promos)
	assert.NotNil(t, deps.Carts)
	assert.NotNil(t, deps.Outbox)
	assert.NotNil(t, deps.Timeline)
	assert.Contains(t, deps.checkers, "outbox")
	assert.NotContains(t, deps.checkers, "postgres")
	assert.NotContains(t, deps.checkers, "redis")
}

func TestNewDependencies_NilLogger(t *testing.T) {
	deps, err := NewDependencies(context.Background(), DefaultConfig(), nil)
	require.NoError(t, err)
	assert.NotNil(t, deps.Logger)
}

func TestNewDependencies_PostgresRequiresDSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDriver = StorageDriverPostgres

	deps, err := NewDependencies(context.Background(), cfg, quietLogger())
	require.Error(t, err)
	assert.Nil(t, deps)
}

func TestNewDependencies_UnsupportedDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDriver = "cassandra"

	_, err := NewDependencies(context.Background(), cfg, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported storage driver")
}

func TestNewDependencies_SeedsPromoCodes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PromoCodes = []domain.PromoCode{
		{ID: "promo-half", Code: "HALF", DiscountPercentage: decimal.NewFromInt(50)},
	}

	deps, err := NewDependencies(context.Background(), cfg, quietLogger())
	require.NoError(t, err)

	promo, found, err := deps.Promos.GetOne(context.Background(), func(p domain.PromoCode) bool {
		return p.Code == "HALF"
	})
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, promo.DiscountPercentage.Equal(decimal.NewFromInt(50)))

	// Повторный посев не перезаписывает существующий код.
	require.NoError(t, deps.seedPromoCodes(context.Background(), []domain.PromoCode{
		{ID: "promo-half", Code: "HALF", DiscountPercentage: decimal.NewFromInt(10)},
	}))
	promo, _, err = deps.Promos.GetOne(context.Background(), domain.ByID[domain.PromoCode]("promo-half"))
	require.NoError(t, err)
	assert.True(t, promo.DiscountPercentage.Equal(decimal.NewFromInt(50)))
}

func TestDependencies_RegisterCheckers(t *testing.T) {
	deps, err := NewDependencies(context.Background(), DefaultConfig(), quietLogger())
	require.NoError(t, err)

	m := health.NewMonitor("test")
	deps.RegisterCheckers(m)

	resp := m.Report(context.Background())
	assert.Equal(t, health.StatusHealthy, resp.Status)
	assert.Contains(t, resp.Checks, "outbox")
}

func TestDependencies_CloseReverseOrder(t *testing.T) {
	var order []string
	deps := &Dependencies{}
	deps.closers = append(deps.closers,
		func() error { order = append(order, "first"); return nil },
		func() error { order = append(order, "second"); return errors.New("boom") },
	)

	err := deps.Close()
	require.Error(t, err)
	assert.Equal(t, []string{"second", "first"}, order)
	assert.NoError(t, deps.Close(), "closers run once")

	var nilDeps *Dependencies
	assert.NoError(t, nilDeps.Close())
}

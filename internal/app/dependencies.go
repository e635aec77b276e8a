package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderprovider/internal/domain"
	"github.com/vladislavdragonenkov/orderprovider/internal/health"
	"github.com/vladislavdragonenkov/orderprovider/internal/storage/memory"
	"github.com/vladislavdragonenkov/orderprovider/internal/storage/postgres"
	"github.com/vladislavdragonenkov/orderprovider/internal/storage/redisstore"
)

// outboxMaxAge — возраст самого старого неопубликованного события, после которого outbox считается degraded.
const outboxMaxAge = 5 * time.Minute

// Dependencies содержит хранилища приложения, выбранные по конфигурации.
type Dependencies struct {
	Orders   domain.EntityStore[domain.Order]
	Users    domain.EntityStore[domain.User]
	Promos   domain.EntityStore[domain.PromoCode]
	Carts    domain.CartRepository
	Outbox   domain.OutboxRepository
	Timeline domain.TimelineRepository
	Logger   *log.Entry

	checkers map[string]health.Checker
	closers  []func() error
}

// NewDependencies открывает хранилища. При ошибке уже открытые ресурсы закрываются.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{
		Logger:   logger,
		checkers: make(map[string]health.Checker),
	}
	if err := deps.init(ctx, cfg); err != nil {
		_ = deps.Close()
		return nil, err
	}
	return deps, nil
}

func (d *Dependencies) init(ctx context.Context, cfg Config) error {
	if err := d.initStorage(ctx, cfg); err != nil {
		return err
	}
	if err := d.initCarts(ctx, cfg); err != nil {
		return err
	}
	if err := d.seedPromoCodes(ctx, cfg.PromoCodes); err != nil {
		return err
	}

	outbox := d.Outbox
	d.checkers["outbox"] = health.NewBacklogChecker("outbox", func(ctx context.Context) (int, time.Time, error) {
		stats, err := outbox.Stats(ctx)
		return stats.PendingCount, stats.OldestPendingAt, err
	}, cfg.OutboxMaxPending, outboxMaxAge)
	return nil
}

func (d *Dependencies) initStorage(ctx context.Context, cfg Config) error {
	switch cfg.StorageDriver {
	case "", StorageDriverMemory:
		d.Orders = memory.NewEntityStore[domain.Order]()
		d.Users = memory.NewEntityStore[domain.User]()
		d.Promos = memory.NewEntityStore[domain.PromoCode]()
		d.Outbox = memory.NewOutboxRepository()
		d.Timeline = memory.NewTimelineRepository()
		d.Logger.Info("using in-memory storage")
		return nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return errors.New("postgres storage requires a DSN")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		d.closers = append(d.closers, store.Close)

		poolStats := store.Collector()
		if err := prometheus.Register(poolStats); err == nil {
			d.closers = append(d.closers, func() error {
				prometheus.Unregister(poolStats)
				return nil
			})
		} else {
			d.Logger.WithError(err).Warn("postgres pool metrics are not exported")
		}

		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
		}

		d.Orders = postgres.NewOrderStore(store)
		d.Users = postgres.NewUserStore(store)
		d.Promos = postgres.NewPromoCodeStore(store)
		d.Outbox = postgres.NewOutboxRepository(store)
		d.Timeline = postgres.NewTimelineRepository(store)
		d.checkers["postgres"] = health.Ping("postgres", store.Ping)
		d.Logger.WithField("auto_migrate", cfg.PostgresAutoMigrate).Info("using postgres storage")
		return nil

	default:
		return fmt.Errorf("unsupported storage driver: %q", cfg.StorageDriver)
	}
}

func (d *Dependencies) initCarts(ctx context.Context, cfg Config) error {
	if cfg.RedisAddr == "" {
		d.Carts = memory.NewCartRepository()
		return nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	d.closers = append(d.closers, rdb.Close)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
	}

	d.Carts = redisstore.NewCartRepository(rdb, cfg.CartTTL)
	d.checkers["redis"] = health.Ping("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	d.Logger.WithField("addr", cfg.RedisAddr).Info("using redis cart storage")
	return nil
}

// seedPromoCodes добавляет промокоды из конфигурации; уже существующие не перезаписываются.
func (d *Dependencies) seedPromoCodes(ctx context.Context, promos []domain.PromoCode) error {
	for _, promo := range promos {
		created, err := d.Promos.Create(ctx, promo)
		if err != nil {
			return fmt.Errorf("seed promo code %s: %w", promo.Code, err)
		}
		if created {
			d.Logger.WithField("code", promo.Code).Info("promo code registered")
		}
	}
	return nil
}

// RegisterCheckers подключает проверки хранилищ к монитору.
func (d *Dependencies) RegisterCheckers(m *health.Monitor) {
	for name, checker := range d.checkers {
		m.Register(name, checker)
	}
}

// Close освобождает подключения в обратном порядке открытия.
func (d *Dependencies) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// opTimeout ограничивает одну операцию хранилища поверх контекста вызывающего.
const opTimeout = 5 * time.Second

var errStoreNotInitialized = errors.New("postgres store is not initialized")

type poolConfig struct {
	maxOpen     int
	maxIdle     int
	maxLifetime time.Duration
	maxIdleTime time.Duration
	pingTimeout time.Duration
}

// Option настраивает пул соединений.
type Option func(*poolConfig)

// WithMaxConns задаёт верхнюю границу открытых и простаивающих соединений.
func WithMaxConns(open, idle int) Option {
	return func(c *poolConfig) {
		c.maxOpen = open
		c.maxIdle = idle
	}
}

// WithConnLifetime задаёт время жизни и простоя соединения.
func WithConnLifetime(lifetime, idle time.Duration) Option {
	return func(c *poolConfig) {
		c.maxLifetime = lifetime
		c.maxIdleTime = idle
	}
}

// WithPingTimeout ограничивает проверку соединения при Open и Ping.
func WithPingTimeout(d time.Duration) Option {
	return func(c *poolConfig) { c.pingTimeout = d }
}

// Store — пул соединений с PostgreSQL через драйвер pgx.
type Store struct {
	db          *sql.DB
	pingTimeout time.Duration
}

// Open открывает пул и проверяет, что база отвечает.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	cfg := poolConfig{
		maxOpen:     25,
		maxIdle:     25,
		maxLifetime: 30 * time.Minute,
		maxIdleTime: 5 * time.Minute,
		pingTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.maxOpen)
	db.SetMaxIdleConns(cfg.maxIdle)
	db.SetConnMaxLifetime(cfg.maxLifetime)
	db.SetConnMaxIdleTime(cfg.maxIdleTime)

	s := &Store{db: db, pingTimeout: cfg.pingTimeout}
	if err := s.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return s, nil
}

// Ping проверяет соединение; используется readiness-пробой.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, s.pingTimeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

// Collector экспортирует статистику пула в Prometheus.
func (s *Store) Collector() prometheus.Collector {
	return collectors.NewDBStatsCollector(s.db, "orderprovider")
}

// EnsureSchema применяет все up-миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// withTimeout ограничивает операцию репозитория opTimeout.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, opTimeout)
}

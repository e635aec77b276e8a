package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderprovider/internal/domain"
)

const (
	// StorageDriverMemory хранит заказы в памяти процесса.
	StorageDriverMemory = "memory"
	// StorageDriverPostgres хранит заказы в PostgreSQL.
	StorageDriverPostgres = "postgres"
)

// Переменные окружения сервиса.
const (
	envHTTPAddr            = "ORDERPROVIDER_HTTP_ADDR"
	envGRPCAddr            = "ORDERPROVIDER_GRPC_ADDR"
	envMetricsAddr         = "ORDERPROVIDER_METRICS_ADDR"
	envLogLevel            = "ORDERPROVIDER_LOG_LEVEL"
	envLogFormat           = "ORDERPROVIDER_LOG_FORMAT"
	envStorageDriver       = "ORDERPROVIDER_STORAGE_DRIVER"
	envPostgresDSN         = "ORDERPROVIDER_POSTGRES_DSN"
	envPostgresAutoMigrate = "ORDERPROVIDER_POSTGRES_AUTO_MIGRATE"
	envRedisAddr           = "ORDERPROVIDER_REDIS_ADDR"
	envRedisDB             = "ORDERPROVIDER_REDIS_DB"
	envCartTTL             = "ORDERPROVIDER_CART_TTL"
	envKafkaBrokers        = "ORDERPROVIDER_KAFKA_BROKERS"
	envOutboxPollInterval  = "ORDERPROVIDER_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize     = "ORDERPROVIDER_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts   = "ORDERPROVIDER_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay    = "ORDERPROVIDER_OUTBOX_RETRY_DELAY"
	envOutboxMaxPending    = "ORDERPROVIDER_OUTBOX_MAX_PENDING"
	envJWTSecret           = "ORDERPROVIDER_JWT_SECRET"
	envOTLPEndpoint        = "ORDERPROVIDER_OTLP_ENDPOINT"
	envOTLPInsecure        = "ORDERPROVIDER_OTLP_INSECURE"
	envTraceSampleRatio    = "ORDERPROVIDER_TRACE_SAMPLE_RATIO"
	envPromoCodes          = "ORDERPROVIDER_PROMO_CODES"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string
	LogLevel    string
	LogFormat   string // text или json

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	// Если RedisAddr пуст, корзины хранятся в памяти.
	RedisAddr string
	RedisDB   int
	CartTTL   time.Duration

	// Если KafkaBrokers пуст, события копятся в outbox без публикации.
	KafkaBrokers       []string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	// OutboxMaxPending — порог backlog, после которого /healthz сообщает degraded; 0 отключает.
	OutboxMaxPending int

	JWTSecret string

	OTLPEndpoint     string
	OTLPInsecure     bool
	TraceSampleRatio float64

	// PromoCodes засеваются в хранилище промокодов при старте.
	PromoCodes []domain.PromoCode
}

// DefaultConfig возвращает базовые настройки для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:            ":8080",
		GRPCAddr:            ":50051",
		MetricsAddr:         ":9090",
		LogLevel:            "info",
		LogFormat:           "text",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		CartTTL:             24 * time.Hour,
		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     100,
		OutboxMaxAttempts:   3,
		OutboxRetryDelay:    50 * time.Millisecond,
		OutboxMaxPending:    1000,
		JWTSecret:           "orderprovider-dev-secret",
		OTLPInsecure:        true,
		TraceSampleRatio:    1,
	}
}

// EnvLookup соответствует os.LookupEnv.
type EnvLookup func(key string) (string, bool)

// LoadConfig читает конфигурацию из окружения процесса.
func LoadConfig() (Config, []error) {
	return LoadConfigFromEnv(os.LookupEnv)
}

// LoadConfigFromEnv накладывает переменные окружения на DefaultConfig.
// Некорректное значение не прерывает загрузку: остаётся значение по умолчанию,
// а причина возвращается в списке предупреждений.
func LoadConfigFromEnv(lookup EnvLookup) (Config, []error) {
	cfg := DefaultConfig()
	var warnings []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	boolean := func(key string, dst *bool) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseBool(v)
		if err != nil {
			warnings = append(warnings, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = parsed
	}
	integer := func(key string, dst *int, valid func(int) bool, rule string) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseInt(v, valid, rule)
		if err != nil {
			warnings = append(warnings, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = parsed
	}
	duration := func(key string, dst *time.Duration, valid func(time.Duration) bool, rule string) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseDuration(v, valid, rule)
		if err != nil {
			warnings = append(warnings, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = parsed
	}

	positive := func(v int) bool { return v > 0 }
	nonNegative := func(v int) bool { return v >= 0 }
	positiveDuration := func(v time.Duration) bool { return v > 0 }
	nonNegativeDuration := func(v time.Duration) bool { return v >= 0 }

	str(envHTTPAddr, &cfg.HTTPAddr)
	str(envGRPCAddr, &cfg.GRPCAddr)
	str(envMetricsAddr, &cfg.MetricsAddr)
	str(envLogLevel, &cfg.LogLevel)
	str(envLogFormat, &cfg.LogFormat)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)

	str(envStorageDriver, &cfg.StorageDriver)
	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	str(envPostgresDSN, &cfg.PostgresDSN)
	boolean(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)

	str(envRedisAddr, &cfg.RedisAddr)
	integer(envRedisDB, &cfg.RedisDB, nonNegative, "must be >= 0")
	duration(envCartTTL, &cfg.CartTTL, positiveDuration, "must be > 0")

	if v, ok := lookup(envKafkaBrokers); ok {
		cfg.KafkaBrokers = splitList(v)
	}
	duration(envOutboxPollInterval, &cfg.OutboxPollInterval, positiveDuration, "must be > 0")
	integer(envOutboxBatchSize, &cfg.OutboxBatchSize, positive, "must be > 0")
	integer(envOutboxMaxAttempts, &cfg.OutboxMaxAttempts, positive, "must be > 0")
	duration(envOutboxRetryDelay, &cfg.OutboxRetryDelay, nonNegativeDuration, "must be >= 0")
	integer(envOutboxMaxPending, &cfg.OutboxMaxPending, nonNegative, "must be >= 0")

	str(envJWTSecret, &cfg.JWTSecret)

	str(envOTLPEndpoint, &cfg.OTLPEndpoint)
	boolean(envOTLPInsecure, &cfg.OTLPInsecure)
	if v, ok := lookup(envTraceSampleRatio); ok && strings.TrimSpace(v) != "" {
		ratio, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || ratio < 0 || ratio > 1 {
			warnings = append(warnings, fmt.Errorf("%s: must be a number in [0, 1], got %q", envTraceSampleRatio, v))
		} else {
			cfg.TraceSampleRatio = ratio
		}
	}

	if v, ok := lookup(envPromoCodes); ok && strings.TrimSpace(v) != "" {
		promos, err := parsePromoCodes(v)
		if err != nil {
			warnings = append(warnings, fmt.Errorf("%s: %w", envPromoCodes, err))
		} else {
			cfg.PromoCodes = promos
		}
	}

	return cfg, warnings
}

// Validate проверяет согласованность настроек перед запуском.
func (c Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, fmt.Errorf("%s is required for postgres storage", envPostgresDSN))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q (use %s|%s)", c.StorageDriver, StorageDriverMemory, StorageDriverPostgres))
	}
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http address is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt secret is required"))
	}
	if c.OutboxBatchSize <= 0 {
		errs = append(errs, errors.New("outbox batch size must be > 0"))
	}

	return errors.Join(errs...)
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on", "y":
		return true, nil
	case "0", "false", "no", "off", "n":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid int value %q: %w", raw, err)
	}
	if valid != nil && !valid(v) {
		return 0, fmt.Errorf("invalid int value %d: %s", v, rule)
	}
	return v, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid duration value %q: %w", raw, err)
	}
	if valid != nil && !valid(v) {
		return 0, fmt.Errorf("invalid duration value %s: %s", v, rule)
	}
	return v, nil
}

// parsePromoCodes разбирает список вида "HALF:50,WELCOME:10".
func parsePromoCodes(raw string) ([]domain.PromoCode, error) {
	var out []domain.PromoCode
	for _, item := range splitList(raw) {
		code, pct, found := strings.Cut(item, ":")
		code = strings.TrimSpace(code)
		if !found || code == "" {
			return nil, fmt.Errorf("invalid promo code entry %q (want CODE:PERCENT)", item)
		}
		discount, err := decimal.NewFromString(strings.TrimSpace(pct))
		if err != nil {
			return nil, fmt.Errorf("invalid discount in %q: %w", item, err)
		}
		promo := domain.PromoCode{ID: "promo-" + strings.ToLower(code), Code: code, DiscountPercentage: discount}
		if err := promo.Validate(); err != nil {
			return nil, fmt.Errorf("%q: %w", item, err)
		}
		out = append(out, promo)
	}
	return out, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

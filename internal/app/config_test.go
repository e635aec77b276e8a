package app

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(values map[string]string) EnvLookup {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, ":50051", cfg.GRPCAddr)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, StorageDriverMemory, cfg.StorageDriver)
	assert.True(t, cfg.PostgresAutoMigrate)
	assert.Equal(t, 24*time.Hour, cfg.CartTTL)
	assert.Equal(t, 100, cfg.OutboxBatchSize)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Empty(t, cfg.PromoCodes)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	cfg, warnings := LoadConfigFromEnv(envMap(map[string]string{
		envHTTPAddr:            "127.0.0.1:18080",
		envLogFormat:           "JSON",
		envStorageDriver:       " Postgres ",
		envPostgresDSN:         "postgres://localhost/orders",
		envPostgresAutoMigrate: "off",
		envRedisAddr:           "localhost:6379",
		envRedisDB:             "2",
		envCartTTL:             "30m",
		envKafkaBrokers:        "kafka-1:9092, kafka-2:9092,,",
		envOutboxBatchSize:     "10",
		envOutboxRetryDelay:    "0s",
		envTraceSampleRatio:    "0.25",
		envPromoCodes:          "HALF:50, WELCOME:10.5",
	}))

	require.Empty(t, warnings)
	assert.Equal(t, "127.0.0.1:18080", cfg.HTTPAddr)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, StorageDriverPostgres, cfg.StorageDriver)
	assert.Equal(t, "postgres://localhost/orders", cfg.PostgresDSN)
	assert.False(t, cfg.PostgresAutoMigrate)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 30*time.Minute, cfg.CartTTL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 10, cfg.OutboxBatchSize)
	assert.Zero(t, cfg.OutboxRetryDelay)
	assert.InDelta(t, 0.25, cfg.TraceSampleRatio, 1e-9)

	require.Len(t, cfg.PromoCodes, 2)
	assert.Equal(t, "promo-half", cfg.PromoCodes[0].ID)
	assert.Equal(t, "HALF", cfg.PromoCodes[0].Code)
	assert.True(t, cfg.PromoCodes[1].DiscountPercentage.Equal(decimal.RequireFromString("10.5")))
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnv_InvalidValuesKeepDefaults(t *testing.T) {
	cfg, warnings := LoadConfigFromEnv(envMap(map[string]string{
		envPostgresAutoMigrate: "maybe",
		envRedisDB:             "-1",
		envCartTTL:             "forever",
		envOutboxBatchSize:     "0",
		envOutboxMaxAttempts:   "three",
		envTraceSampleRatio:    "1.5",
		envPromoCodes:          "HALF:150",
	}))

	assert.Len(t, warnings, 7)
	defaults := DefaultConfig()
	assert.Equal(t, defaults.PostgresAutoMigrate, cfg.PostgresAutoMigrate)
	assert.Equal(t, defaults.RedisDB, cfg.RedisDB)
	assert.Equal(t, defaults.CartTTL, cfg.CartTTL)
	assert.Equal(t, defaults.OutboxBatchSize, cfg.OutboxBatchSize)
	assert.Equal(t, defaults.OutboxMaxAttempts, cfg.OutboxMaxAttempts)
	assert.Equal(t, defaults.TraceSampleRatio, cfg.TraceSampleRatio)
	assert.Empty(t, cfg.PromoCodes)
}

func TestLoadConfigFromEnv_BlankValuesIgnored(t *testing.T) {
	cfg, warnings := LoadConfigFromEnv(envMap(map[string]string{
		envHTTPAddr:        "   ",
		envOutboxBatchSize: "",
	}))

	assert.Empty(t, warnings)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 100, cfg.OutboxBatchSize)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults"},
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.StorageDriver = StorageDriverPostgres },
			wantErr: envPostgresDSN,
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.StorageDriver = "mongo" },
			wantErr: `unsupported storage driver "mongo"`,
		},
		{
			name:    "empty http addr",
			mutate:  func(c *Config) { c.HTTPAddr = "" },
			wantErr: "http address is required",
		},
		{
			name:    "empty jwt secret",
			mutate:  func(c *Config) { c.JWTSecret = "" },
			wantErr: "jwt secret is required",
		},
		{
			name:    "zero batch size",
			mutate:  func(c *Config) { c.OutboxBatchSize = 0 },
			wantErr: "outbox batch size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseBool(t *testing.T) {
	for _, raw := range []string{"1", "true", "YES", " on ", "y"} {
		v, err := parseBool(raw)
		require.NoError(t, err, raw)
		assert.True(t, v, raw)
	}
	for _, raw := range []string{"0", "false", "No", "off", "n"} {
		v, err := parseBool(raw)
		require.NoError(t, err, raw)
		assert.False(t, v, raw)
	}
	_, err := parseBool("enabled")
	assert.Error(t, err)
}

func TestParseInt(t *testing.T) {
	v, err := parseInt(" 42 ", nil, "")
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = parseInt("-1", func(v int) bool { return v >= 0 }, "must be >= 0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be >= 0")

	_, err = parseInt("abc", nil, "")
	assert.Error(t, err)
}

func TestParseDuration(t *testing.T) {
	v, err := parseDuration("1m30s", nil, "")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, v)

	_, err = parseDuration("0s", func(d time.Duration) bool { return d > 0 }, "must be > 0")
	assert.ErrorContains(t, err, "must be > 0")

	_, err = parseDuration("10", nil, "")
	assert.Error(t, err)
}

func TestParsePromoCodes(t *testing.T) {
	promos, err := parsePromoCodes("HALF:50")
	require.NoError(t, err)
	require.Len(t, promos, 1)
	assert.True(t, promos[0].DiscountPercentage.Equal(decimal.NewFromInt(50)))

	for _, raw := range []string{"HALF", ":50", "HALF:abc", "HALF:-5", "HALF:101"} {
		_, err := parsePromoCodes(raw)
		assert.Error(t, err, raw)
	}
}

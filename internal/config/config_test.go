package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEngineConfig() Config {
	return Config{
		InitialBuses:       10,
		MaxBuses:           100,
		SeatsPerBus:        50,
		HighLoadThreshold:  0.8,
		LowLoadThreshold:   0.2,
		ReservationTimeout: 5 * time.Minute,
		LogBatchSize:       10,
		LogFlushInterval:   5 * time.Second,
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	require.NoError(t, validEngineConfig().Validate())
}

func TestValidateRejectsBadKnobs(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero initial buses", func(c *Config) { c.InitialBuses = 0 }},
		{"cap below initial", func(c *Config) { c.MaxBuses = 5 }},
		{"zero seats", func(c *Config) { c.SeatsPerBus = 0 }},
		{"inverted thresholds", func(c *Config) { c.LowLoadThreshold = 0.9 }},
		{"threshold above one", func(c *Config) { c.HighLoadThreshold = 1.5 }},
		{"zero timeout", func(c *Config) { c.ReservationTimeout = 0 }},
		{"zero batch", func(c *Config) { c.LogBatchSize = 0 }},
		{"zero flush", func(c *Config) { c.LogFlushInterval = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validEngineConfig()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestRateLimitConfigNormalization(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")

	cfg := LoadRateLimitConfig()
	assert.Equal(t, 1, cfg.Capacity, "capacity is clamped to a usable bucket")
	assert.GreaterOrEqual(t, cfg.TTL, 5*cfg.RefillInterval, "TTL always outlives the refill window")
}

func TestCacheConfigMethodsUppercased(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")

	cfg := LoadCacheConfig()
	assert.True(t, cfg.Methods["GET"])
	assert.True(t, cfg.Methods["HEAD"])
	assert.False(t, cfg.Methods["POST"])
}

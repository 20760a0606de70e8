package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libradesk/internal/config"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "DATABASE_DRIVER", "DATABASE_CONNECT_TIMEOUT", "SUBMIT_RATE_PER_MINUTE", "CHAOS_CONCURRENCY", "OTEL_EXPORTER", "OTEL_SERVICE_NAME"} {
		t.Setenv(key, "")
	}

	cfg, err := config.FromEnv("circulation", "8082")
	require.NoError(t, err)
	assert.Equal(t, "circulation", cfg.ServiceName)
	assert.Equal(t, "8082", cfg.Port)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, 600, cfg.SubmitRatePerMinute)
	assert.Equal(t, 30*time.Second, cfg.DatabaseConnectTimeout)
	assert.Equal(t, "none", cfg.OTelExporter)
	assert.NotNil(t, cfg.SubmitLimiter())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "file:libradesk.db")
	t.Setenv("SUBMIT_RATE_PER_MINUTE", "0")
	t.Setenv("CHAOS_CONCURRENCY", "8")
	t.Setenv("DATABASE_CONNECT_TIMEOUT", "2s")

	cfg, err := config.FromEnv("membership", "8083")
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "file:libradesk.db", cfg.DatabaseURL)
	assert.Equal(t, 8, cfg.ChaosConcurrency)
	assert.Equal(t, 2*time.Second, cfg.DatabaseConnectTimeout)
	assert.Nil(t, cfg.SubmitLimiter())
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"DATABASE_DRIVER", "mysql"},
		{"SUBMIT_RATE_PER_MINUTE", "fast"},
		{"SUBMIT_RATE_PER_MINUTE", "-1"},
		{"CHAOS_CONCURRENCY", "0"},
		{"DATABASE_CONNECT_TIMEOUT", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := config.FromEnv("catalog", "8081")
			assert.Error(t, err)
		})
	}
}

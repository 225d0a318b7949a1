package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TRACKLIVE_SERVER_URL", "https://live.example.com")
}

func TestLoad_AllRequiredVarsSet(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://live.example.com", cfg.ServerURL)
	assert.Equal(t, "https", cfg.BaseURL().Scheme)
	assert.Equal(t, "live.example.com", cfg.BaseURL().Host)
}

func TestLoad_DefaultValues(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 10*time.Second, cfg.DialTimeout)
	assert.Equal(t, 5, cfg.ReconnectMaxAttempts)
	assert.Equal(t, time.Second, cfg.ReconnectInitialBackoff)
	assert.Empty(t, cfg.RedisURL)
	assert.Empty(t, cfg.StatusAddr)
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("FETCH_TIMEOUT", "3s")
	t.Setenv("STATUS_ADDR", ":9090")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("RECONNECT_MAX_ATTEMPTS", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 3*time.Second, cfg.FetchTimeout)
	assert.Equal(t, ":9090", cfg.StatusAddr)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, 2, cfg.ReconnectMaxAttempts)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"missing server URL", "TRACKLIVE_SERVER_URL", "", "TRACKLIVE_SERVER_URL is required"},
		{"websocket scheme", "TRACKLIVE_SERVER_URL", "wss://live.example.com", "must use http or https"},
		{"no host", "TRACKLIVE_SERVER_URL", "https://", "must include a host"},
		{"zero reconnect attempts", "RECONNECT_MAX_ATTEMPTS", "0", "RECONNECT_MAX_ATTEMPTS must be at least 1"},
		{"negative fetch timeout", "FETCH_TIMEOUT", "-1s", "FETCH_TIMEOUT must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigAppliesDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0:8080", cfg.Addr())
	require.Equal(t, int64(512), cfg.MaxMessageSize)
	require.Equal(t, 5, cfg.RateLimitBurst)
	require.Equal(t, time.Second, cfg.RateLimitRefillInterval)
	require.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	require.Equal(t, "INFO", cfg.LogLevel)
	require.False(t, cfg.BulletinConfigured())
}

func TestLoadConfigReadsEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", "9999")
	t.Setenv("ALLOWED_ORIGINS", "https://chat.example.com, https://staging.example.com")
	t.Setenv("BULLETIN_BASE_URL", "https://cdn.contentful.com")
	t.Setenv("BULLETIN_SPACE_ID", "space123")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1:9999", cfg.Addr())
	require.Equal(t, []string{"https://chat.example.com", "https://staging.example.com"}, cfg.Origins())
	require.True(t, cfg.BulletinConfigured())
}

func TestConfigValidateRejectsShortSecret(t *testing.T) {
	cfg := testConfig()
	cfg.JWTSecret = "short"

	require.Error(t, cfg.Validate())
}

func TestConfigValidateRejectsBadPort(t *testing.T) {
	cfg := testConfig()
	cfg.Port = 0

	require.Error(t, cfg.Validate())
}

func TestConfigOriginsSkipsEmptyEntries(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedOrigins = "http://a.example, ,http://b.example,"

	require.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Origins())
}

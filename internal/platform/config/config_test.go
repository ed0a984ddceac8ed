package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.Equal(t, "decentrakyc_profile", cfg.ProfileCookie)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "decentrakyc.notifications", cfg.Kafka.Topic)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.False(t, cfg.DemoMode)
	assert.Equal(t, 30*time.Minute, cfg.DemoSessionTTL)
	assert.Equal(t, 10000, cfg.DemoMaxSessions)
	assert.True(t, cfg.ClearsEvictedRecords())
	assert.True(t, cfg.UsesDefaultSigningKey())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DECENTRAKYC_ADDR", ":9090")
	t.Setenv("STORE_BACKEND", " Redis ")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("REDIS_RECORD_TTL", "24h")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com")
	t.Setenv("DEMO_MODE", "true")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, StoreRedis, cfg.StoreBackend)
	assert.Equal(t, 24*time.Hour, cfg.Redis.RecordTTL)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.AllowedOrigins)
	assert.True(t, cfg.DemoMode)
	assert.False(t, cfg.ClearsEvictedRecords())
}

func TestFromEnvRejectsIncompleteBackends(t *testing.T) {
	tests := []struct {
		name    string
		backend string
	}{
		{"redis without url", StoreRedis},
		{"postgres without url", StorePostgres},
		{"unknown backend", "etcd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("STORE_BACKEND", tt.backend)
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestFromEnvRejectsUnboundedDemoSessions(t *testing.T) {
	t.Setenv("DEMO_MAX_SESSIONS", "0")
	_, err := FromEnv()
	assert.Error(t, err)
}

func TestClearsEvictedRecords(t *testing.T) {
	assert.True(t, Server{StoreBackend: StoreMemory}.ClearsEvictedRecords())
	assert.False(t, Server{StoreBackend: StoreSQLite}.ClearsEvictedRecords())
	assert.True(t, Server{StoreBackend: StorePostgres, DemoClearOnEvict: true}.ClearsEvictedRecords())
}

func TestFromEnvParseError(t *testing.T) {
	t.Setenv("DEMO_MODE", "not-a-bool")
	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ADMIN_TOKEN=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("ADMIN_TOKEN") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.AdminToken)
}

func TestLoadMissingEnvFileIsIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store backends accepted by STORE_BACKEND.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// DefaultJWTSigningKey is only meant for local development.
const DefaultJWTSigningKey = "dev-secret-key-change-in-production"

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string `env:"DECENTRAKYC_ADDR" envDefault:":8080"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat     string `env:"LOG_FORMAT" envDefault:"text"`
	JWTSigningKey string `env:"JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	AdminToken    string `env:"ADMIN_TOKEN"`
	// DemoMode mounts a demo session for every profile without a login.
	DemoMode bool `env:"DEMO_MODE" envDefault:"false"`
	// Idle demo sessions are evicted after DemoSessionTTL; at most DemoMaxSessions stay live.
	DemoSessionTTL   time.Duration `env:"DEMO_SESSION_TTL" envDefault:"30m"`
	DemoMaxSessions  int           `env:"DEMO_MAX_SESSIONS" envDefault:"10000"`
	DemoClearOnEvict bool          `env:"DEMO_CLEAR_ON_EVICT" envDefault:"false"`
	AutoConfirm      bool          `env:"AUTH_AUTOCONFIRM" envDefault:"false"`
	SecureCookies    bool          `env:"SECURE_COOKIES" envDefault:"false"`
	ProfileCookie    string        `env:"PROFILE_COOKIE" envDefault:"decentrakyc_profile"`
	AllowedOrigins   []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	StoreBackend     string        `env:"STORE_BACKEND" envDefault:"memory"`
	SQLitePath       string        `env:"SQLITE_PATH" envDefault:"decentrakyc.db"`
	DatabaseURL      string        `env:"DATABASE_URL"`
	AuthRateLimit    int           `env:"AUTH_RATE_LIMIT" envDefault:"30"`
	AuthRateWindow   time.Duration `env:"AUTH_RATE_WINDOW" envDefault:"1m"`
	OtelEndpoint     string        `env:"OTEL_ENDPOINT"`
	ServiceName      string        `env:"OTEL_SERVICE_NAME" envDefault:"decentrakyc"`
	Redis            RedisConfig
	Kafka            KafkaConfig
}

// RedisConfig holds connection settings for the Redis record store.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	RecordTTL    time.Duration `env:"REDIS_RECORD_TTL" envDefault:"0s"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// KafkaConfig enables the notification stream when Brokers is set.
type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic   string   `env:"KAFKA_TOPIC" envDefault:"decentrakyc.notifications"`
}

// Load reads an optional .env file, then the environment.
func Load(envFiles ...string) (Server, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Server{}, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate checks that the selected backend has what it needs.
func (c Server) Validate() error {
	switch c.StoreBackend {
	case StoreMemory:
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
		}
	case StoreRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis store")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.JWTSigningKey == "" {
		return fmt.Errorf("JWT_SIGNING_KEY must not be empty")
	}
	if c.DemoSessionTTL <= 0 || c.DemoMaxSessions <= 0 {
		return fmt.Errorf("DEMO_SESSION_TTL and DEMO_MAX_SESSIONS must be positive")
	}
	return nil
}

// ClearsEvictedRecords reports whether evicting a demo session also deletes its
// stored record. The memory backend always does, or it would grow with every profile.
func (c Server) ClearsEvictedRecords() bool {
	return c.StoreBackend == StoreMemory || c.DemoClearOnEvict
}

// UsesDefaultSigningKey reports whether the development JWT key is in use.
func (c Server) UsesDefaultSigningKey() bool {
	return c.JWTSigningKey == DefaultJWTSigningKey
}

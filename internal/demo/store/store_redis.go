package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"decentrakyc/internal/demo/models"
	"decentrakyc/pkg/platform/sentinel"
)

var (
	redisLoadDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "decentrakyc_redis_record_load_duration_ms",
		Help:    "Latency of demo record loads from Redis in milliseconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
	})
)

// RedisStore keeps each record under "kyc-demo-user:<profile>".
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisStoreOption configures a RedisStore instance.
type RedisStoreOption func(*RedisStore)

// WithRecordTTL expires idle records after ttl. Zero keeps them forever.
func WithRecordTTL(ttl time.Duration) RedisStoreOption {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewRedisStore constructs a Redis-backed record store.
func NewRedisStore(client *redis.Client, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{client: client}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func redisKey(profile string) string {
	return RecordKey + ":" + profile
}

func (s *RedisStore) Load(ctx context.Context, profile string) (*models.DemoUser, error) {
	start := time.Now()
	defer func() {
		redisLoadDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	data, err := s.client.Get(ctx, redisKey(profile)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load demo user: %w", err)
	}
	return Decode(data)
}

func (s *RedisStore) Save(ctx context.Context, profile string, user *models.DemoUser) error {
	if err := requireProfile(profile); err != nil {
		return err
	}
	data, err := Encode(user)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisKey(profile), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save demo user: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, profile string) error {
	if err := s.client.Del(ctx, redisKey(profile)).Err(); err != nil {
		return fmt.Errorf("clear demo user: %w", err)
	}
	return nil
}

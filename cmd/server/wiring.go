package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"decentrakyc/internal/demo/service"
	"decentrakyc/internal/demo/store"
	"decentrakyc/internal/notify"
	"decentrakyc/internal/platform/config"
	"decentrakyc/internal/platform/kafka"
	"decentrakyc/internal/platform/postgres"
	platformredis "decentrakyc/internal/platform/redis"
	"decentrakyc/internal/platform/sqlite"
)

// backend is the record store selected by STORE_BACKEND together with its
// connection lifecycle.
type backend struct {
	store store.Store
	close func() error
	ping  func(context.Context) error
}

func openStore(ctx context.Context, cfg config.Server) (*backend, error) {
	switch cfg.StoreBackend {
	case config.StoreSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		st, err := store.NewSQLiteStore(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return &backend{store: st, close: db.Close, ping: db.PingContext}, nil
	case config.StoreRedis:
		client, err := platformredis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		st := store.NewRedisStore(client.Client, store.WithRecordTTL(cfg.Redis.RecordTTL))
		return &backend{store: st, close: client.Close, ping: client.Health}, nil
	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		st, err := store.NewPostgresStore(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return &backend{store: st, close: db.Close, ping: db.PingContext}, nil
	case config.StoreMemory:
		return &backend{store: store.NewInMemoryStore(), close: func() error { return nil }}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// buildNotifier fans notifications out to the log and, when brokers are
// configured, to Kafka.
func buildNotifier(ctx context.Context, cfg config.Server, log *slog.Logger) (notify.Notifier, func(), error) {
	sinks := []notify.Notifier{notify.NewLogNotifier(log)}
	client, err := kafka.New(ctx, cfg.Kafka)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		return notify.NewMulti(sinks...), func() {}, nil
	}
	sinks = append(sinks, notify.NewKafkaNotifier(client, cfg.Kafka.Topic, log))
	return notify.NewMulti(sinks...), func() {
		_ = client.Flush(context.Background())
		client.Close()
	}, nil
}

// sweepIdleSessions evicts idle demo sessions every interval until ctx ends.
func sweepIdleSessions(ctx context.Context, registry *service.Registry, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			registry.Sweep(ctx)
		}
	}
}

package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer is the subset of *kgo.Client used for publishing.
type Producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
}

const (
	breakerThreshold = 5
	breakerCooldown  = 30 * time.Second
)

// KafkaNotifier publishes notifications to a Kafka topic so other consumers
// (audit, analytics) can follow demo activity. Records are keyed by profile.
// While the broker keeps failing, notifications are dropped instead of queued.
type KafkaNotifier struct {
	producer Producer
	topic    string
	logger   *slog.Logger
	breaker  *breaker
}

func NewKafkaNotifier(producer Producer, topic string, logger *slog.Logger) *KafkaNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaNotifier{
		producer: producer,
		topic:    topic,
		logger:   logger,
		breaker:  newBreaker(breakerThreshold, breakerCooldown),
	}
}

func (k *KafkaNotifier) Notify(ctx context.Context, n Notification) {
	if !k.breaker.allow() {
		return
	}
	payload, err := json.Marshal(n)
	if err != nil {
		k.logger.ErrorContext(ctx, "failed to encode notification", "error", err)
		return
	}
	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(n.Profile),
		Value: payload,
	}
	// The request may finish before the broker acknowledges.
	ctx = context.WithoutCancel(ctx)
	k.producer.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err == nil {
			if k.breaker.recordSuccess() {
				k.logger.InfoContext(ctx, "notification stream recovered", "topic", k.topic)
			}
			return
		}
		k.logger.WarnContext(ctx, "failed to publish notification",
			"error", err,
			"topic", k.topic,
			"request_id", n.RequestID,
		)
		if k.breaker.recordFailure() {
			k.logger.ErrorContext(ctx, "notification stream unavailable, dropping notifications",
				"topic", k.topic,
				"cooldown", breakerCooldown,
			)
		}
	})
}

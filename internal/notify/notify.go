// Package notify delivers user-facing messages (the success, error and info
// toasts of the front end). Delivery is fire-and-forget: a sink that fails
// never changes application state.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"decentrakyc/pkg/requestcontext"
)

// Level is the severity of a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notification is one message emitted by a view or the session provider.
type Notification struct {
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Profile   string    `json:"profile,omitempty"`
	RequestID string    `json:"requestId,omitempty"`
	At        time.Time `json:"at"`
}

// Notifier accepts notifications. Implementations must not block the caller
// on slow sinks.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

func emit(ctx context.Context, notifier Notifier, level Level, msg string) {
	if notifier == nil {
		return
	}
	notifier.Notify(ctx, Notification{
		Level:     level,
		Message:   msg,
		Profile:   requestcontext.ProfileID(ctx),
		RequestID: requestcontext.RequestID(ctx),
		At:        requestcontext.Now(ctx),
	})
}

// Success emits a success notification.
func Success(ctx context.Context, notifier Notifier, msg string) {
	emit(ctx, notifier, LevelSuccess, msg)
}

// Error emits an error notification.
func Error(ctx context.Context, notifier Notifier, msg string) {
	emit(ctx, notifier, LevelError, msg)
}

// Info emits an info notification.
func Info(ctx context.Context, notifier Notifier, msg string) {
	emit(ctx, notifier, LevelInfo, msg)
}

// Multi fans a notification out to every sink and to the request collector
// carried by ctx, if any.
type Multi struct {
	sinks []Notifier
}

func NewMulti(sinks ...Notifier) *Multi {
	kept := make([]Notifier, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Multi{sinks: kept}
}

func (m *Multi) Notify(ctx context.Context, n Notification) {
	if c := CollectorFrom(ctx); c != nil {
		c.Notify(ctx, n)
	}
	for _, s := range m.sinks {
		s.Notify(ctx, n)
	}
}

// Collector buffers the notifications of one request so the response can
// carry them back to the browser.
type Collector struct {
	mu    sync.Mutex
	items []Notification
}

func (c *Collector) Notify(_ context.Context, n Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, n)
}

// Items returns the collected notifications in emission order.
func (c *Collector) Items() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notification{}, c.items...)
}

type collectorKey struct{}

// WithCollector attaches a fresh collector to ctx.
func WithCollector(ctx context.Context) (context.Context, *Collector) {
	c := &Collector{}
	return context.WithValue(ctx, collectorKey{}, c), c
}

// CollectorFrom returns the collector attached to ctx, or nil.
func CollectorFrom(ctx context.Context) *Collector {
	c, _ := ctx.Value(collectorKey{}).(*Collector)
	return c
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(ctx context.Context, n Notification) {
	level := slog.LevelInfo
	if n.Level == LevelError {
		level = slog.LevelWarn
	}
	l.logger.Log(ctx, level, "notification",
		"level", string(n.Level),
		"message", n.Message,
		"profile", n.Profile,
		"request_id", n.RequestID,
	)
}

package notifications

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/torrentbridge/pkg/logger"
)

// MultiNotifier fans a notification out to several notifiers. Delivery is
// best effort: failures are logged and never returned.
type MultiNotifier struct {
	notifiers []Notifier
	logger    *slog.Logger
}

// MultiNotifierOption configures a MultiNotifier.
type MultiNotifierOption func(*MultiNotifier)

// WithMultiNotifierLogger sets the logger for delivery failures.
func WithMultiNotifierLogger(l *slog.Logger) MultiNotifierOption {
	return func(m *MultiNotifier) {
		m.logger = l
	}
}

// NewMultiNotifier creates a notifier that forwards to every one of notifiers.
func NewMultiNotifier(notifiers []Notifier, opts ...MultiNotifierOption) *MultiNotifier {
	m := &MultiNotifier{
		notifiers: notifiers,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MultiNotifier) Notify(ctx context.Context, n Notification) error {
	n = fill(n)
	for i, d := range m.notifiers {
		if err := d.Notify(ctx, n); err != nil {
			m.logger.LogAttrs(ctx, slog.LevelError, "failed to deliver notification",
				slog.String("notification_id", n.ID),
				slog.Int("notifier_index", i),
				logger.Error(err),
			)
		}
	}
	return nil
}

// LogNotifier writes notifications to a structured log, which is where they
// end up when the daemon runs without any attached client.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default.
func NewLogNotifier(l *slog.Logger) *LogNotifier {
	if l == nil {
		l = slog.Default()
	}
	return &LogNotifier{logger: l}
}

func (l *LogNotifier) Notify(ctx context.Context, n Notification) error {
	level := slog.LevelInfo
	if n.Type == TypeError {
		level = slog.LevelWarn
	}
	l.logger.LogAttrs(ctx, level, n.Title,
		logger.Component("notifications"),
		slog.String("notification_id", n.ID),
		slog.String("message", n.Message),
	)
	return nil
}

// NoOpNotifier discards notifications.
type NoOpNotifier struct{}

func (NoOpNotifier) Notify(context.Context, Notification) error { return nil }

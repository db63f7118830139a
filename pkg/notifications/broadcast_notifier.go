package notifications

import (
	"context"
	"slices"
	"sync"

	"github.com/dmitrymomot/torrentbridge/pkg/broadcast"
)

// BroadcastNotifier publishes notifications to live subscribers, such as the
// daemon's event stream, and keeps the most recent ones for late readers.
type BroadcastNotifier struct {
	b *broadcast.MemoryBroadcaster[Notification]

	mu      sync.Mutex
	recent  []Notification
	history int
}

// BroadcastNotifierOption configures a BroadcastNotifier.
type BroadcastNotifierOption func(*BroadcastNotifier)

// WithHistory sets how many past notifications Recent returns. Zero disables
// history.
func WithHistory(n int) BroadcastNotifierOption {
	return func(b *BroadcastNotifier) {
		if n >= 0 {
			b.history = n
		}
	}
}

// NewBroadcastNotifier creates a notifier whose subscribers get bufferSize
// slots each.
func NewBroadcastNotifier(bufferSize int, opts ...BroadcastNotifierOption) *BroadcastNotifier {
	b := &BroadcastNotifier{
		b:       broadcast.NewMemoryBroadcaster[Notification](bufferSize),
		history: 50,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *BroadcastNotifier) Notify(ctx context.Context, n Notification) error {
	n = fill(n)

	b.mu.Lock()
	if b.history > 0 {
		b.recent = append(b.recent, n)
		if over := len(b.recent) - b.history; over > 0 {
			b.recent = slices.Delete(b.recent, 0, over)
		}
	}
	b.mu.Unlock()

	return b.b.Broadcast(ctx, broadcast.Message[Notification]{Data: n})
}

// Subscribe returns a live feed of notifications sent after the call.
func (b *BroadcastNotifier) Subscribe(ctx context.Context) broadcast.Subscriber[Notification] {
	return b.b.Subscribe(ctx)
}

// Recent returns retained notifications, oldest first.
func (b *BroadcastNotifier) Recent() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.recent)
}

// Close ends every subscription.
func (b *BroadcastNotifier) Close() error {
	return b.b.Close()
}

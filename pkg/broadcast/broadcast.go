package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
)

// Message wraps data of type T for type-safe broadcasting.
type Message[T any] struct {
	Data T
}

// Subscriber receives messages from a Broadcaster.
// Implementations must be safe for concurrent use.
type Subscriber[T any] interface {
	// Receive returns the channel messages are delivered on.
	// The channel is closed once the subscription ends.
	Receive(ctx context.Context) <-chan Message[T]

	// Dropped reports how many messages were discarded because the
	// subscriber's buffer was full.
	Dropped() uint64

	// Close ends the subscription. Close is idempotent.
	Close() error
}

// Broadcaster sends messages to multiple subscribers.
type Broadcaster[T any] interface {
	// Subscribe registers a new subscriber. The subscription is removed when
	// ctx is cancelled.
	Subscribe(ctx context.Context, opts ...SubscribeOption[T]) Subscriber[T]

	// Broadcast delivers msg to every subscriber whose filter accepts it.
	Broadcast(ctx context.Context, msg Message[T]) error

	// Close shuts down the broadcaster and closes all subscribers.
	Close() error
}

// SubscribeOption configures a single subscription.
type SubscribeOption[T any] func(*subscribeConfig[T])

type subscribeConfig[T any] struct {
	bufferSize int
	filter     func(T) bool
}

// WithFilter installs a predicate evaluated for every broadcast message.
// Messages for which it returns false are never queued for the subscriber.
func WithFilter[T any](fn func(T) bool) SubscribeOption[T] {
	return func(c *subscribeConfig[T]) {
		c.filter = fn
	}
}

// WithBufferSize overrides the broadcaster's default buffer size for one
// subscriber. Values below 1 are ignored.
func WithBufferSize[T any](n int) SubscribeOption[T] {
	return func(c *subscribeConfig[T]) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}

type subscriber[T any] struct {
	ch      chan Message[T]
	filter  func(T) bool
	closed  bool
	dropped atomic.Uint64
	mu      sync.RWMutex
}

func newSubscriber[T any](cfg subscribeConfig[T]) *subscriber[T] {
	return &subscriber[T]{
		ch:     make(chan Message[T], cfg.bufferSize),
		filter: cfg.filter,
	}
}

func (s *subscriber[T]) Receive(ctx context.Context) <-chan Message[T] {
	return s.ch
}

func (s *subscriber[T]) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *subscriber[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		close(s.ch)
		s.closed = true
	}
	return nil
}

// send queues msg without blocking. It reports false only when the
// subscriber is closed and should be forgotten.
func (s *subscriber[T]) send(msg Message[T]) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}
	if s.filter != nil && !s.filter(msg.Data) {
		return true
	}

	select {
	case s.ch <- msg:
	default:
		s.dropped.Add(1)
	}
	return true
}

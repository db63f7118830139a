package runtime

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/torrentbridge/pkg/async"
	"github.com/dmitrymomot/torrentbridge/pkg/logger"
)

// MessageHandler answers messages.
type MessageHandler interface {
	Handle(ctx context.Context, msg Message) (Reply, error)
}

// HandlerFunc adapts a function to MessageHandler.
type HandlerFunc func(ctx context.Context, msg Message) (Reply, error)

func (f HandlerFunc) Handle(ctx context.Context, msg Message) (Reply, error) {
	return f(ctx, msg)
}

// Bus is the in-process Sender. Each message is handled on its own goroutine
// so concurrent messages never wait on each other.
type Bus struct {
	handler MessageHandler
	log     *slog.Logger
}

// NewBus creates a Bus delivering to h.
func NewBus(h MessageHandler, l *slog.Logger) *Bus {
	if l == nil {
		l = slog.Default()
	}
	return &Bus{handler: h, log: l.With(logger.Component("runtime.bus"))}
}

// Send dispatches msg. The handler runs detached from ctx's cancellation, so
// a requester that stops waiting does not abort work already started.
func (b *Bus) Send(ctx context.Context, msg Message) *async.Future[Reply] {
	b.log.DebugContext(ctx, "message sent", logger.MessageType(string(msg.Type)))
	return async.Async(context.WithoutCancel(ctx), msg, b.handler.Handle)
}

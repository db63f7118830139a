package store

import "context"

// Watch calls fn for every change set touching one of keys until ctx is
// cancelled or the store is closed. It blocks; run it in its own goroutine.
func Watch(ctx context.Context, s Store, fn func(Changes), keys ...string) {
	sub := s.Subscribe(ctx, keys...)
	defer sub.Close()

	msgs := sub.Receive(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			fn(msg.Data)
		}
	}
}

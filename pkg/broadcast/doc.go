// Package broadcast provides type-safe one-to-many message delivery with
// per-subscriber filtering.
//
// It is the notification backbone for the key-value store: every committed
// write is broadcast as a change set, and each listener decides which changes
// it cares about by installing a filter at subscribe time.
//
// Basic usage:
//
//	b := broadcast.NewMemoryBroadcaster[string](10)
//	defer b.Close()
//
//	sub := b.Subscribe(ctx, broadcast.WithFilter(func(s string) bool {
//		return strings.HasPrefix(s, "user.")
//	}))
//	defer sub.Close()
//
//	_ = b.Broadcast(ctx, broadcast.Message[string]{Data: "user.created"})
//
//	for msg := range sub.Receive(ctx) {
//		fmt.Println(msg.Data)
//	}
//
// Broadcast never blocks. When a subscriber's buffer is full the message is
// dropped for that subscriber only and counted in Dropped; the subscription
// itself stays alive. Subscriptions end when their context is cancelled, when
// Close is called on them, or when the broadcaster is closed.
package broadcast

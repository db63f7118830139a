// Package store is the durable key-value layer shared by every execution
// context of the bridge.
//
// A Store holds JSON-encodable values under string keys. Writes are expressed
// as a Patch (keys to set and keys to remove) and applied as one whole-object
// merge: last write wins per key, there is no compare-and-swap and no
// multi-patch transaction. Once a patch is durable the store broadcasts the
// resulting Changes, containing only keys whose encoded value actually
// changed, to every subscriber.
//
// Subscribers may pass keys to Subscribe to receive only change sets that
// touch at least one of them. A delivered change set may still contain other
// keys; listeners must ignore what they do not care about.
//
// Three backends are provided:
//
//   - MemoryStore: process-local, for tests and single-process deployments.
//   - SQLiteStore: gorm over a pure-Go SQLite driver, durable across restarts.
//   - RedisStore: a Redis hash plus a pub/sub channel, so change sets reach
//     every process connected to the same database.
//
// Usage:
//
//	s := store.NewMemoryStore()
//	sub := s.Subscribe(ctx, "isLoggedIn")
//	_ = store.Set(ctx, s, store.Values{"isLoggedIn": true})
//	msg := <-sub.Receive(ctx)
//	fmt.Println(msg.Data["isLoggedIn"].NewValue) // true
package store

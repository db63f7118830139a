package store

import (
	"context"
	"log/slog"
	"slices"

	"github.com/dmitrymomot/torrentbridge/pkg/broadcast"
)

// Values is a set of key/value pairs read from or written to a Store.
// Values read back from a backend are JSON-decoded: booleans are bool,
// strings are string and numbers are float64.
type Values map[string]any

// Has reports whether key is present.
func (v Values) Has(key string) bool {
	_, ok := v[key]
	return ok
}

// Bool returns the value of key when it is a bool, false otherwise.
func (v Values) Bool(key string) bool {
	b, _ := v[key].(bool)
	return b
}

// String returns the value of key when it is a string, "" otherwise.
func (v Values) String(key string) string {
	s, _ := v[key].(string)
	return s
}

// Keys returns the keys of v in sorted order.
func (v Values) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Patch is a single whole-object update.
// Keys listed in Remove are deleted after Set is merged, so a key present in
// both ends up absent.
type Patch struct {
	Set    Values
	Remove []string
}

func (p Patch) empty() bool {
	return len(p.Set) == 0 && len(p.Remove) == 0
}

// Change describes how one key was modified. A nil OldValue means the key was
// absent before the write, a nil NewValue means it was removed.
type Change struct {
	Key      string `json:"key"`
	OldValue any    `json:"oldValue,omitempty"`
	NewValue any    `json:"newValue,omitempty"`
}

// Changes maps each modified key to its Change.
type Changes map[string]Change

// Has reports whether any of keys changed.
func (c Changes) Has(keys ...string) bool {
	for _, k := range keys {
		if _, ok := c[k]; ok {
			return true
		}
	}
	return false
}

// Keys returns the changed keys in sorted order.
func (c Changes) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Store is the persisted key-value store.
type Store interface {
	// Get returns the current values of keys. Absent keys are omitted from
	// the result. With no keys every stored value is returned.
	Get(ctx context.Context, keys ...string) (Values, error)

	// Update applies p as one write and then broadcasts the resulting Changes.
	Update(ctx context.Context, p Patch) error

	// Subscribe delivers every change set that touches one of keys, or every
	// change set when no keys are given. The subscription ends with ctx.
	Subscribe(ctx context.Context, keys ...string) broadcast.Subscriber[Changes]

	// Close releases the backend and closes all subscriptions.
	Close() error
}

// Set merges values into s.
func Set(ctx context.Context, s Store, values Values) error {
	return s.Update(ctx, Patch{Set: values})
}

// Remove deletes keys from s.
func Remove(ctx context.Context, s Store, keys ...string) error {
	return s.Update(ctx, Patch{Remove: keys})
}

// Option configures a Store backend.
type Option func(*options)

type options struct {
	bufferSize int
	prefix     string
	logger     *slog.Logger
}

func defaultOptions() *options {
	return &options{
		bufferSize: 64,
		prefix:     "torrentbridge",
		logger:     slog.Default(),
	}
}

// WithBufferSize sets the per-subscriber notification buffer.
func WithBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}

// WithPrefix namespaces the backend's keys or tables.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithLogger sets the logger used for backend diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func applyOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// feed fans committed change sets out to subscribers.
type feed struct {
	b *broadcast.MemoryBroadcaster[Changes]
}

func newFeed(bufferSize int) feed {
	return feed{b: broadcast.NewMemoryBroadcaster[Changes](bufferSize)}
}

func (f feed) subscribe(ctx context.Context, keys []string) broadcast.Subscriber[Changes] {
	if len(keys) == 0 {
		return f.b.Subscribe(ctx)
	}
	keys = slices.Clone(keys)
	return f.b.Subscribe(ctx, broadcast.WithFilter(func(c Changes) bool {
		return c.Has(keys...)
	}))
}

func (f feed) publish(ctx context.Context, c Changes) {
	if len(c) == 0 {
		return
	}
	_ = f.b.Broadcast(ctx, broadcast.Message[Changes]{Data: c})
}

func (f feed) close() error {
	return f.b.Close()
}

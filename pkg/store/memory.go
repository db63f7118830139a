package store

import (
	"context"
	"sync"

	"github.com/dmitrymomot/torrentbridge/pkg/broadcast"
)

// MemoryStore keeps values in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	feed   feed
	closed bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := applyOptions(opts)
	return &MemoryStore{
		data: make(map[string][]byte),
		feed: newFeed(o.bufferSize),
	}
}

func (s *MemoryStore) Get(ctx context.Context, keys ...string) (Values, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	if len(keys) == 0 {
		return decodeValues(s.data), nil
	}

	raw := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := s.data[k]; ok {
			raw[k] = v
		}
	}
	return decodeValues(raw), nil
}

func (s *MemoryStore) Update(ctx context.Context, p Patch) error {
	if p.empty() {
		return nil
	}
	ep, err := p.encode()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	prev := make(map[string][]byte)
	for _, k := range ep.keys() {
		if v, ok := s.data[k]; ok {
			prev[k] = v
		}
	}
	ep.apply(s.data)

	// Broadcast never blocks, so publishing under the lock keeps change sets
	// in commit order.
	s.feed.publish(ctx, ep.changes(prev))
	return nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, keys ...string) broadcast.Subscriber[Changes] {
	return s.feed.subscribe(ctx, keys)
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.feed.close()
}

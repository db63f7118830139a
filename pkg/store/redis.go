package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/torrentbridge/pkg/broadcast"
	"github.com/dmitrymomot/torrentbridge/pkg/logger"
)

// RedisStore keeps values in a Redis hash and publishes every committed
// change set on a pub/sub channel. Each RedisStore listens on that channel,
// so subscribers in any process sharing the database observe every write,
// including their own.
type RedisStore struct {
	client  redis.UniversalClient
	hashKey string
	channel string
	pubsub  *redis.PubSub
	feed    feed
	log     *slog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore subscribes to the change channel and returns a ready store.
// The client stays owned by the caller; Close does not close it.
func NewRedisStore(ctx context.Context, client redis.UniversalClient, opts ...Option) (*RedisStore, error) {
	o := applyOptions(opts)

	s := &RedisStore{
		client:  client,
		hashKey: o.prefix + ":store",
		channel: o.prefix + ":changes",
		feed:    newFeed(o.bufferSize),
		log:     o.logger,
		done:    make(chan struct{}),
	}

	s.pubsub = client.Subscribe(ctx, s.channel)
	if _, err := s.pubsub.Receive(ctx); err != nil {
		_ = s.pubsub.Close()
		return nil, errors.Join(ErrSubscribe, err)
	}

	go s.listen(s.pubsub.Channel())
	return s, nil
}

func (s *RedisStore) listen(ch <-chan *redis.Message) {
	defer close(s.done)
	for msg := range ch {
		var c Changes
		if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
			s.log.Warn("dropping malformed change set",
				logger.Component("store.redis"),
				logger.Error(err),
			)
			continue
		}
		s.feed.publish(context.Background(), c)
	}
}

func (s *RedisStore) Get(ctx context.Context, keys ...string) (Values, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}

	raw, err := s.read(ctx, keys)
	if err != nil {
		return nil, err
	}
	return decodeValues(raw), nil
}

func (s *RedisStore) read(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		all, err := s.client.HGetAll(ctx, s.hashKey).Result()
		if err != nil {
			return nil, err
		}
		out := make(map[string][]byte, len(all))
		for k, v := range all {
			out[k] = []byte(v)
		}
		return out, nil
	}

	vals, err := s.client.HMGet(ctx, s.hashKey, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(keys))
	for i, v := range vals {
		if str, ok := v.(string); ok {
			out[keys[i]] = []byte(str)
		}
	}
	return out, nil
}

// Update reads the touched keys, writes the patch in one MULTI/EXEC and
// publishes the change set. The read and the write are not atomic with
// respect to other processes: concurrent writers race per key and the last
// write wins.
func (s *RedisStore) Update(ctx context.Context, p Patch) error {
	if p.empty() {
		return nil
	}
	ep, err := p.encode()
	if err != nil {
		return err
	}
	if s.isClosed() {
		return ErrClosed
	}

	prev, err := s.read(ctx, ep.keys())
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(ep.set) > 0 {
			fields := make([]any, 0, len(ep.set)*2)
			for k, v := range ep.set {
				fields = append(fields, k, string(v))
			}
			pipe.HSet(ctx, s.hashKey, fields...)
		}
		if len(ep.remove) > 0 {
			pipe.HDel(ctx, s.hashKey, ep.remove...)
		}
		return nil
	})
	if err != nil {
		return err
	}

	changes := ep.changes(prev)
	if len(changes) == 0 {
		return nil
	}
	payload, err := json.Marshal(changes)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, s.channel, payload).Err()
}

func (s *RedisStore) Subscribe(ctx context.Context, keys ...string) broadcast.Subscriber[Changes] {
	return s.feed.subscribe(ctx, keys)
}

func (s *RedisStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.pubsub.Close()
	<-s.done
	return errors.Join(err, s.feed.close())
}

func (s *RedisStore) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

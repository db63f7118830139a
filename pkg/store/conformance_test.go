package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/torrentbridge/pkg/store"
)

// runConformance exercises the behaviour every backend must share.
func runConformance(t *testing.T, open func(t *testing.T) store.Store) {
	t.Run("get returns only present keys", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		require.NoError(t, store.Set(ctx, s, store.Values{"a": true, "b": "x"}))

		v, err := s.Get(ctx, "a", "b", "missing")
		require.NoError(t, err)
		assert.Equal(t, store.Values{"a": true, "b": "x"}, v)
		assert.False(t, v.Has("missing"))

		all, err := s.Get(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("update merges and removes in one change set", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, store.Set(ctx, s, store.Values{"user": "bob", "flag": true}))

		sub := s.Subscribe(ctx)
		defer sub.Close()

		require.NoError(t, s.Update(ctx, store.Patch{
			Set:    store.Values{"flag": false, "other": "y"},
			Remove: []string{"user"},
		}))

		msg := receive(t, sub.Receive(ctx))
		assert.Equal(t, []string{"flag", "other", "user"}, msg.Keys())
		assert.Equal(t, store.Change{Key: "user", OldValue: "bob"}, msg["user"])
		assert.Equal(t, store.Change{Key: "flag", OldValue: true, NewValue: false}, msg["flag"])
		assert.Equal(t, store.Change{Key: "other", NewValue: "y"}, msg["other"])

		v, err := s.Get(ctx, "user", "flag", "other")
		require.NoError(t, err)
		assert.Equal(t, store.Values{"flag": false, "other": "y"}, v)
	})

	t.Run("unchanged writes are not broadcast", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, store.Set(ctx, s, store.Values{"flag": true}))

		sub := s.Subscribe(ctx)
		defer sub.Close()

		require.NoError(t, store.Set(ctx, s, store.Values{"flag": true}))
		require.NoError(t, store.Remove(ctx, s, "never-set"))
		require.NoError(t, store.Set(ctx, s, store.Values{"flag": false}))

		msg := receive(t, sub.Receive(ctx))
		assert.Equal(t, []string{"flag"}, msg.Keys())
	})

	t.Run("keyed subscription filters unrelated writes", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		sub := s.Subscribe(ctx, "watched")
		defer sub.Close()

		require.NoError(t, store.Set(ctx, s, store.Values{"unrelated": 1}))
		require.NoError(t, store.Set(ctx, s, store.Values{"watched": "yes", "noise": 2}))

		msg := receive(t, sub.Receive(ctx))
		assert.True(t, msg.Has("watched"))
		assert.True(t, msg.Has("noise"), "change sets are delivered whole")
		assert.False(t, msg.Has("unrelated"))
	})

	t.Run("concurrent writers to disjoint keys never conflict", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		keys := []string{"k1", "k2", "k3", "k4"}
		for _, k := range keys {
			wg.Add(1)
			go func(k string) {
				defer wg.Done()
				assert.NoError(t, store.Set(ctx, s, store.Values{k: k}))
			}(k)
		}
		wg.Wait()

		v, err := s.Get(ctx, keys...)
		require.NoError(t, err)
		for _, k := range keys {
			assert.Equal(t, k, v.String(k))
		}
	})

	t.Run("closed store rejects operations", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		sub := s.Subscribe(ctx)

		require.NoError(t, s.Close())
		require.NoError(t, s.Close())

		_, err := s.Get(ctx, "a")
		assert.ErrorIs(t, err, store.ErrClosed)
		assert.ErrorIs(t, store.Set(ctx, s, store.Values{"a": 1}), store.ErrClosed)

		_, ok := <-sub.Receive(ctx)
		assert.False(t, ok)
	})
}

func receive(t *testing.T, ch <-chan broadcastMsg) store.Changes {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return msg.Data
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification")
		return nil
	}
}

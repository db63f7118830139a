package notifications_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/torrentbridge/pkg/notifications"
)

func TestNew(t *testing.T) {
	t.Parallel()

	a := notifications.New(notifications.TypeInfo, "Logged Out", "bye")
	b := notifications.New(notifications.TypeInfo, "Logged Out", "bye")
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.CreatedAt.IsZero())
}

func TestMultiNotifier_BestEffort(t *testing.T) {
	t.Parallel()

	var got []notifications.Notification
	failing := notifications.NotifierFunc(func(context.Context, notifications.Notification) error {
		return errors.New("unreachable")
	})
	recording := notifications.NotifierFunc(func(_ context.Context, n notifications.Notification) error {
		got = append(got, n)
		return nil
	})

	var logs bytes.Buffer
	m := notifications.NewMultiNotifier(
		[]notifications.Notifier{failing, recording},
		notifications.WithMultiNotifierLogger(slog.New(slog.NewTextHandler(&logs, nil))),
	)

	err := m.Notify(context.Background(), notifications.Notification{Title: "t", Message: "m"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID, "missing ID is filled in")
	assert.Contains(t, logs.String(), "failed to deliver notification")
}

func TestLogNotifier(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	n := notifications.NewLogNotifier(slog.New(slog.NewTextHandler(&logs, nil)))
	require.NoError(t, n.Notify(context.Background(), notifications.New(notifications.TypeError, "File Removal Error", "a.torrent: Could not be removed.")))

	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "File Removal Error")
	assert.Contains(t, logs.String(), "a.torrent: Could not be removed.")
}

func TestBroadcastNotifier(t *testing.T) {
	t.Parallel()

	b := notifications.NewBroadcastNotifier(4, notifications.WithHistory(2))
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := b.Subscribe(ctx)

	for _, title := range []string{"one", "two", "three"} {
		require.NoError(t, b.Notify(ctx, notifications.New(notifications.TypeInfo, title, "")))
	}

	var titles []string
	for range 3 {
		select {
		case msg := <-sub.Receive(ctx):
			titles = append(titles, msg.Data.Title)
		case <-time.After(time.Second):
			t.Fatal("notification not delivered")
		}
	}
	assert.Equal(t, []string{"one", "two", "three"}, titles)

	recent := b.Recent()
	require.Len(t, recent, 2)
	assert.Equal(t, "two", recent[0].Title)
	assert.Equal(t, "three", recent[1].Title)
}

package state_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/torrentbridge/pkg/store"
	"github.com/dmitrymomot/torrentbridge/svc/state"
)

func TestLoad(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, state.SeedServerURL(ctx, s, "https://x/"))
	require.NoError(t, store.Set(ctx, s, store.Values{
		state.KeyIsLoggedIn:          true,
		state.KeyLoggedInUsername:    "bob",
		state.KeyTorrentFilesEnabled: true,
		state.KeyRemoveAfterUpload:   true,
	}))

	snap, err := state.Load(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, "https://x", snap.ServerURL)
	assert.True(t, snap.LoggedIn())
	assert.False(t, snap.MagnetLinksEnabled)
	assert.True(t, snap.ShouldRemoveAfterUpload())
}

func TestSnapshot(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		snap     state.Snapshot
		loggedIn bool
		remove   bool
	}{
		{"empty", state.Snapshot{}, false, false},
		{"flag without username", state.Snapshot{IsLoggedIn: true}, false, false},
		{"username without flag", state.Snapshot{LoggedInUsername: "bob"}, false, false},
		{"logged in", state.Snapshot{IsLoggedIn: true, LoggedInUsername: "bob"}, true, false},
		{"remove without torrent files", state.Snapshot{RemoveAfterUpload: true}, false, false},
		{"remove with torrent files", state.Snapshot{RemoveAfterUpload: true, TorrentFilesEnabled: true}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.loggedIn, tt.snap.LoggedIn())
			assert.Equal(t, tt.remove, tt.snap.ShouldRemoveAfterUpload())
		})
	}
}

func TestFromValues_IgnoresWrongTypes(t *testing.T) {
	t.Parallel()

	snap := state.FromValues(store.Values{
		state.KeyIsLoggedIn:       "true",
		state.KeyLoggedInUsername: 42.0,
		state.KeyServerURL:        "https://x/api/",
	})
	assert.False(t, snap.IsLoggedIn)
	assert.Empty(t, snap.LoggedInUsername)
	assert.Equal(t, "https://x/api", snap.BaseURL())
}

// Package state names the persisted session and feature-flag keys and reads
// them as one consistent snapshot.
package state

import (
	"context"
	"strings"

	"github.com/dmitrymomot/torrentbridge/pkg/store"
)

// Store keys.
const (
	KeyIsLoggedIn          = "isLoggedIn"
	KeyLoggedInUsername    = "loggedInUsername"
	KeySavedUsername       = "savedUsername"
	KeySavedPassword       = "savedPassword"
	KeyServerURL           = "serverUrl"
	KeyMagnetLinksEnabled  = "magnetLinksEnabled"
	KeyTorrentFilesEnabled = "torrentFilesEnabled"
	KeyRemoveAfterUpload   = "removeTorrentAfterUpload"
)

// AllKeys lists every key the bridge persists.
var AllKeys = []string{
	KeyIsLoggedIn,
	KeyLoggedInUsername,
	KeySavedUsername,
	KeySavedPassword,
	KeyServerURL,
	KeyMagnetLinksEnabled,
	KeyTorrentFilesEnabled,
	KeyRemoveAfterUpload,
}

// FeatureKeys are the three user-toggled features.
var FeatureKeys = []string{
	KeyMagnetLinksEnabled,
	KeyTorrentFilesEnabled,
	KeyRemoveAfterUpload,
}

// Snapshot is the state read by a single Get.
type Snapshot struct {
	IsLoggedIn          bool
	LoggedInUsername    string
	SavedUsername       string
	SavedPassword       string
	ServerURL           string
	MagnetLinksEnabled  bool
	TorrentFilesEnabled bool
	RemoveAfterUpload   bool
}

// Load reads every key in one call.
func Load(ctx context.Context, s store.Store) (Snapshot, error) {
	v, err := s.Get(ctx, AllKeys...)
	if err != nil {
		return Snapshot{}, err
	}
	return FromValues(v), nil
}

// FromValues builds a Snapshot from raw store values.
func FromValues(v store.Values) Snapshot {
	return Snapshot{
		IsLoggedIn:          v.Bool(KeyIsLoggedIn),
		LoggedInUsername:    v.String(KeyLoggedInUsername),
		SavedUsername:       v.String(KeySavedUsername),
		SavedPassword:       v.String(KeySavedPassword),
		ServerURL:           v.String(KeyServerURL),
		MagnetLinksEnabled:  v.Bool(KeyMagnetLinksEnabled),
		TorrentFilesEnabled: v.Bool(KeyTorrentFilesEnabled),
		RemoveAfterUpload:   v.Bool(KeyRemoveAfterUpload),
	}
}

// LoggedIn reports a usable session: the flag is set and a username is known.
// A flag without a username is treated as logged out.
func (s Snapshot) LoggedIn() bool {
	return s.IsLoggedIn && s.LoggedInUsername != ""
}

// ShouldRemoveAfterUpload reports whether uploaded .torrent files are deleted.
// The option only applies while torrent file handling is on.
func (s Snapshot) ShouldRemoveAfterUpload() bool {
	return s.TorrentFilesEnabled && s.RemoveAfterUpload
}

// BaseURL returns the server URL without a trailing slash.
func (s Snapshot) BaseURL() string {
	return strings.TrimRight(s.ServerURL, "/")
}

// SeedServerURL stores the configured server URL, replacing whatever was there.
// The URL is fixed at install time; nothing else writes it.
func SeedServerURL(ctx context.Context, s store.Store, serverURL string) error {
	return store.Set(ctx, s, store.Values{KeyServerURL: strings.TrimRight(serverURL, "/")})
}

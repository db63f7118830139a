package session_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/torrentbridge/pkg/logger"
	"github.com/dmitrymomot/torrentbridge/pkg/notifications"
	"github.com/dmitrymomot/torrentbridge/pkg/secrets"
	"github.com/dmitrymomot/torrentbridge/pkg/store"
	"github.com/dmitrymomot/torrentbridge/svc/host"
	"github.com/dmitrymomot/torrentbridge/svc/session"
	"github.com/dmitrymomot/torrentbridge/svc/state"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, n notifications.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func titled(title string) any {
	return mock.MatchedBy(func(n notifications.Notification) bool { return n.Title == title })
}

// loginServer answers /login with status and body and counts calls.
func loginServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/login" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var creds map[string]string
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds["username"] == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newManager(t *testing.T, serverURL string, opts ...session.Option) (*session.Manager, store.Store, *mockNotifier) {
	t.Helper()
	s := store.NewMemoryStore()
	t.Cleanup(func() { _ = s.Close() })
	if serverURL != "" {
		require.NoError(t, state.SeedServerURL(context.Background(), s, serverURL))
	}
	n := new(mockNotifier)
	caps := host.Capabilities{
		Storage:       s,
		Network:       host.NewHTTPClient(0),
		Notifications: n,
	}
	opts = append([]session.Option{session.WithLogger(logger.Discard())}, opts...)
	return session.NewManager(caps, opts...), s, n
}

func TestLogin(t *testing.T) {
	t.Parallel()

	t.Run("success records session", func(t *testing.T) {
		t.Parallel()
		srv, calls := loginServer(t, http.StatusOK, `{"ok":true}`)
		m, s, _ := newManager(t, srv.URL)

		user, err := m.Login(context.Background(), "bob", "pw")
		require.NoError(t, err)
		assert.Equal(t, "bob", user)
		assert.EqualValues(t, 1, calls.Load())

		snap, err := state.Load(context.Background(), s)
		require.NoError(t, err)
		assert.True(t, snap.LoggedIn())
		assert.Equal(t, "bob", snap.LoggedInUsername)
	})

	t.Run("server error message is used verbatim", func(t *testing.T) {
		t.Parallel()
		srv, _ := loginServer(t, http.StatusUnauthorized, `{"error":"Invalid credentials"}`)
		m, s, _ := newManager(t, srv.URL)

		_, err := m.Login(context.Background(), "bob", "bad")
		le, ok := session.IsLoginError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusUnauthorized, le.Status)
		assert.Equal(t, "Invalid credentials", le.Error())

		snap, _ := state.Load(context.Background(), s)
		assert.False(t, snap.IsLoggedIn)
	})

	t.Run("status fallback message", func(t *testing.T) {
		t.Parallel()
		srv, _ := loginServer(t, http.StatusForbidden, `not json`)
		m, _, _ := newManager(t, srv.URL)

		_, err := m.Login(context.Background(), "bob", "bad")
		le, ok := session.IsLoginError(err)
		require.True(t, ok)
		assert.Equal(t, "Login failed: Forbidden (403)", le.Message)
	})

	t.Run("2xx without json is a failure", func(t *testing.T) {
		t.Parallel()
		srv, _ := loginServer(t, http.StatusOK, ``)
		m, s, _ := newManager(t, srv.URL)

		_, err := m.Login(context.Background(), "bob", "pw")
		assert.ErrorIs(t, err, session.ErrInvalidResponse)
		snap, _ := state.Load(context.Background(), s)
		assert.False(t, snap.IsLoggedIn)
	})

	t.Run("no server url", func(t *testing.T) {
		t.Parallel()
		m, _, _ := newManager(t, "")
		_, err := m.Login(context.Background(), "bob", "pw")
		assert.ErrorIs(t, err, session.ErrNoServerURL)
	})

	t.Run("missing network capability", func(t *testing.T) {
		t.Parallel()
		m := session.NewManager(host.Capabilities{Storage: store.NewMemoryStore()}, session.WithLogger(logger.Discard()))
		_, err := m.Login(context.Background(), "bob", "pw")
		assert.ErrorIs(t, err, host.ErrUnavailable)
	})

	t.Run("network failure is returned", func(t *testing.T) {
		t.Parallel()
		srv, _ := loginServer(t, http.StatusOK, `{}`)
		url := srv.URL
		srv.Close()
		m, _, _ := newManager(t, url)

		_, err := m.Login(context.Background(), "bob", "pw")
		require.Error(t, err)
		_, isLogin := session.IsLoginError(err)
		assert.False(t, isLogin)
	})
}

func TestLogout(t *testing.T) {
	t.Parallel()

	m, s, n := newManager(t, "https://x")
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, s, store.Values{
		state.KeyIsLoggedIn:          true,
		state.KeyLoggedInUsername:    "bob",
		state.KeyMagnetLinksEnabled:  true,
		state.KeyTorrentFilesEnabled: true,
		state.KeyRemoveAfterUpload:   true,
		state.KeySavedUsername:       "bob",
	}))

	m.Logout(ctx, false)
	once, err := s.Get(ctx)
	require.NoError(t, err)

	m.Logout(ctx, false)
	twice, err := s.Get(ctx)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
	assert.False(t, once.Has(state.KeyLoggedInUsername))
	assert.Equal(t, false, once[state.KeyIsLoggedIn])
	assert.Equal(t, false, once[state.KeyMagnetLinksEnabled])
	assert.Equal(t, false, once[state.KeyTorrentFilesEnabled])
	assert.Equal(t, false, once[state.KeyRemoveAfterUpload])
	assert.Equal(t, "bob", once.String(state.KeySavedUsername), "saved credentials survive logout")
	assert.Equal(t, "https://x", once.String(state.KeyServerURL))
	n.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)

	n.On("Notify", mock.Anything, titled("Logged Out")).Return(nil).Once()
	m.Logout(ctx, true)
	n.AssertExpectations(t)
}

func TestLogout_WithoutStorage(t *testing.T) {
	t.Parallel()
	m := session.NewManager(host.Capabilities{}, session.WithLogger(logger.Discard()))
	assert.NotPanics(t, func() { m.Logout(context.Background(), true) })
}

func TestAttemptReLogin(t *testing.T) {
	t.Parallel()

	t.Run("no saved credentials makes no network call", func(t *testing.T) {
		t.Parallel()
		srv, calls := loginServer(t, http.StatusOK, `{}`)
		m, s, n := newManager(t, srv.URL)
		ctx := context.Background()
		require.NoError(t, store.Set(ctx, s, store.Values{state.KeyIsLoggedIn: true, state.KeyLoggedInUsername: "bob"}))
		n.On("Notify", mock.Anything, titled("Logged Out")).Return(nil).Once()

		assert.False(t, m.AttemptReLogin(ctx))
		assert.Zero(t, calls.Load())

		snap, _ := state.Load(ctx, s)
		assert.False(t, snap.IsLoggedIn)
		assert.Empty(t, snap.LoggedInUsername)
		n.AssertExpectations(t)
	})

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		srv, calls := loginServer(t, http.StatusOK, `{"ok":true}`)
		m, s, n := newManager(t, srv.URL)
		ctx := context.Background()
		require.NoError(t, m.SaveCredentials(ctx, "alice", "pw"))

		assert.True(t, m.AttemptReLogin(ctx))
		assert.EqualValues(t, 1, calls.Load())

		snap, _ := state.Load(ctx, s)
		assert.True(t, snap.LoggedIn())
		assert.Equal(t, "alice", snap.LoggedInUsername)
		n.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
	})

	t.Run("rejected forces logout", func(t *testing.T) {
		t.Parallel()
		srv, calls := loginServer(t, http.StatusUnauthorized, `{"error":"nope"}`)
		m, s, n := newManager(t, srv.URL)
		ctx := context.Background()
		require.NoError(t, m.SaveCredentials(ctx, "alice", "pw"))
		require.NoError(t, store.Set(ctx, s, store.Values{state.KeyIsLoggedIn: true, state.KeyLoggedInUsername: "alice", state.KeyMagnetLinksEnabled: true}))
		n.On("Notify", mock.Anything, titled("Logged Out")).Return(nil).Once()

		assert.False(t, m.AttemptReLogin(ctx))
		assert.EqualValues(t, 1, calls.Load())

		snap, _ := state.Load(ctx, s)
		assert.False(t, snap.IsLoggedIn)
		assert.False(t, snap.MagnetLinksEnabled)
		n.AssertExpectations(t)
	})
}

func TestCredentials(t *testing.T) {
	t.Parallel()

	encoded, err := secrets.GenerateKey()
	require.NoError(t, err)
	master, err := secrets.ParseKey(encoded)
	require.NoError(t, err)
	box, err := secrets.NewBox(master, "credentials")
	require.NoError(t, err)

	m, s, _ := newManager(t, "https://x", session.WithCredentialsBox(box))
	ctx := context.Background()

	require.NoError(t, m.SaveCredentials(ctx, "bob", "hunter2"))

	raw, err := s.Get(ctx, state.KeySavedPassword)
	require.NoError(t, err)
	assert.True(t, secrets.IsSealed(raw.String(state.KeySavedPassword)))

	user, pass, err := m.SavedCredentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob", user)
	assert.Equal(t, "hunter2", pass)

	// A manager without the key cannot read the sealed password.
	plain := session.NewManager(host.Capabilities{Storage: s}, session.WithLogger(logger.Discard()))
	_, _, err = plain.SavedCredentials(ctx)
	assert.ErrorIs(t, err, session.ErrCredentialsLocked)

	require.NoError(t, m.ClearCredentials(ctx))
	user, pass, err = m.SavedCredentials(ctx)
	require.NoError(t, err)
	assert.Empty(t, user)
	assert.Empty(t, pass)
}

func TestServerLogout(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/logout" && r.Method == http.MethodPost {
			hits.Add(1)
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m, _, _ := newManager(t, srv.URL)
	m.ServerLogout(context.Background())
	assert.EqualValues(t, 1, hits.Load())
}

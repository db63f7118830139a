package runtime_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/torrentbridge/pkg/logger"
	"github.com/dmitrymomot/torrentbridge/pkg/store"
	"github.com/dmitrymomot/torrentbridge/svc/authfetch"
	"github.com/dmitrymomot/torrentbridge/svc/host"
	"github.com/dmitrymomot/torrentbridge/svc/runtime"
	"github.com/dmitrymomot/torrentbridge/svc/state"
)

type mockSession struct {
	mock.Mock
}

func (m *mockSession) Logout(ctx context.Context, notifyUser bool) {
	m.Called(ctx, notifyUser)
}

// magnetServer records every /add_magnet_link body and answers with status
// and body.
type magnetServer struct {
	*httptest.Server
	calls atomic.Int32
	mu    sync.Mutex
	body  map[string]string
}

func newMagnetServer(t *testing.T, status int, body string) *magnetServer {
	t.Helper()
	ms := &magnetServer{}
	ms.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ms.calls.Add(1)
		if r.URL.Path != "/add_magnet_link" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var got map[string]string
		_ = json.NewDecoder(r.Body).Decode(&got)
		ms.mu.Lock()
		ms.body = got
		ms.mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ms.Close)
	return ms
}

func (ms *magnetServer) lastBody() map[string]string {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.body
}

func loggedIn(serverURL string) store.Values {
	return store.Values{
		state.KeyServerURL:          serverURL,
		state.KeyIsLoggedIn:         true,
		state.KeyLoggedInUsername:   "alice",
		state.KeyMagnetLinksEnabled: true,
	}
}

func newRouter(t *testing.T, initial store.Values) (*runtime.Router, *mockSession) {
	t.Helper()
	s := store.NewMemoryStore()
	t.Cleanup(func() { _ = s.Close() })
	if len(initial) > 0 {
		require.NoError(t, store.Set(context.Background(), s, initial))
	}
	caps := host.Capabilities{Storage: s, Network: host.NewHTTPClient(0)}
	sess := new(mockSession)
	fetch := authfetch.New(caps, nil, authfetch.WithLogger(logger.Discard()))
	return runtime.NewRouter(caps, fetch, sess, runtime.WithRouterLogger(logger.Discard())), sess
}

const magnet = "magnet:?xt=urn:btih:abc&dn=My%20File&tr=x"

func TestMagnetName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		href string
		want string
	}{
		{magnet, "My File"},
		{"magnet:?xt=urn:btih:abc&dn=Some+Show+S01", "Some Show S01"},
		{"magnet:?dn=first&xt=urn:btih:abc", "first"},
		{"magnet:?xt=urn:btih:abc", runtime.UnknownTorrent},
		{"magnet:?xt=urn:btih:abc&dn=", runtime.UnknownTorrent},
		{"magnet:?xt=urn:btih:abc&dn=bad%zzname", runtime.UnknownTorrent},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, runtime.MagnetName(tt.href), tt.href)
	}
}

func TestRouter_Magnet(t *testing.T) {
	t.Parallel()

	t.Run("sends link to server", func(t *testing.T) {
		t.Parallel()
		srv := newMagnetServer(t, http.StatusOK, `{"ok":true}`)
		r, _ := newRouter(t, loggedIn(srv.URL+"/"))

		reply, err := r.Handle(context.Background(), runtime.Message{Type: runtime.MagnetLinkClicked, Href: magnet})
		require.NoError(t, err)
		assert.Equal(t, runtime.Reply{Success: true, Message: "My File successfully sent to server."}, reply)
		assert.Equal(t, map[string]string{"magnet_link": magnet, "target_user": "alice"}, srv.lastBody())
	})

	t.Run("server error text", func(t *testing.T) {
		t.Parallel()
		srv := newMagnetServer(t, http.StatusConflict, `{"error":"Already queued"}`)
		r, _ := newRouter(t, loggedIn(srv.URL))

		reply, err := r.Handle(context.Background(), runtime.Message{Type: runtime.MagnetLinkClicked, Href: magnet})
		require.NoError(t, err)
		assert.Equal(t, runtime.Reply{Message: "My File: Already queued"}, reply)
	})

	t.Run("status fallback", func(t *testing.T) {
		t.Parallel()
		srv := newMagnetServer(t, http.StatusBadGateway, `{}`)
		r, _ := newRouter(t, loggedIn(srv.URL))

		reply, err := r.Handle(context.Background(), runtime.Message{Type: runtime.MagnetLinkClicked, Href: magnet})
		require.NoError(t, err)
		assert.Equal(t, "My File: Server error (502)", reply.Message)
	})

	t.Run("unparseable response", func(t *testing.T) {
		t.Parallel()
		srv := newMagnetServer(t, http.StatusOK, `<html>`)
		r, _ := newRouter(t, loggedIn(srv.URL))

		reply, err := r.Handle(context.Background(), runtime.Message{Type: runtime.MagnetLinkClicked, Href: magnet})
		require.NoError(t, err)
		assert.Equal(t, runtime.Reply{Message: "My File: Error parsing server response."}, reply)
	})

	t.Run("network failure", func(t *testing.T) {
		t.Parallel()
		srv := newMagnetServer(t, http.StatusOK, `{}`)
		url := srv.URL
		srv.Close()
		r, _ := newRouter(t, loggedIn(url))

		reply, err := r.Handle(context.Background(), runtime.Message{Type: runtime.MagnetLinkClicked, Href: magnet})
		require.NoError(t, err)
		assert.False(t, reply.Success)
		assert.Contains(t, reply.Message, "My File: Processing error - ")
	})
}

func TestRouter_MagnetPreconditions(t *testing.T) {
	t.Parallel()

	srv := newMagnetServer(t, http.StatusOK, `{}`)

	tests := []struct {
		name    string
		initial store.Values
		want    string
	}{
		{
			name:    "no server url",
			initial: store.Values{state.KeyIsLoggedIn: true, state.KeyLoggedInUsername: "alice", state.KeyMagnetLinksEnabled: true},
			want:    "My File: Server URL not set.",
		},
		{
			name:    "not logged in",
			initial: store.Values{state.KeyServerURL: srv.URL, state.KeyMagnetLinksEnabled: true},
			want:    "My File: User not logged in.",
		},
		{
			name:    "flag without username",
			initial: store.Values{state.KeyServerURL: srv.URL, state.KeyIsLoggedIn: true, state.KeyMagnetLinksEnabled: true},
			want:    "My File: User not logged in.",
		},
		{
			name:    "disabled",
			initial: store.Values{state.KeyServerURL: srv.URL, state.KeyIsLoggedIn: true, state.KeyLoggedInUsername: "alice"},
			want:    "My File: Magnet link handling not enabled.",
		},
	}
	for _, tt := range tests {
		r, _ := newRouter(t, tt.initial)
		reply, err := r.Handle(context.Background(), runtime.Message{Type: runtime.MagnetLinkClicked, Href: magnet})
		require.NoError(t, err, tt.name)
		assert.Equal(t, runtime.Reply{Message: tt.want}, reply, tt.name)
	}
	assert.Zero(t, srv.calls.Load())
}

func TestRouter_NoStorage(t *testing.T) {
	t.Parallel()

	r := runtime.NewRouter(host.Capabilities{}, nil, new(mockSession), runtime.WithRouterLogger(logger.Discard()))
	reply, err := r.Handle(context.Background(), runtime.Message{Type: runtime.MagnetLinkClicked, Href: magnet})
	require.NoError(t, err)
	assert.False(t, reply.Success)
	assert.Contains(t, reply.Message, "My File: Processing error - ")
}

func TestRouter_Logout(t *testing.T) {
	t.Parallel()

	r, sess := newRouter(t, nil)
	sess.On("Logout", mock.Anything, false).Return().Twice()

	for range 2 {
		reply, err := r.Handle(context.Background(), runtime.Message{Type: runtime.UserLogoutRequested})
		require.NoError(t, err)
		assert.Equal(t, runtime.Reply{Success: true, Message: "Logout cleanup done."}, reply)
	}
	sess.AssertExpectations(t)
}

func TestRouter_InvalidMessages(t *testing.T) {
	t.Parallel()

	r, _ := newRouter(t, nil)

	_, err := r.Handle(context.Background(), runtime.Message{Type: "PING"})
	assert.ErrorIs(t, err, runtime.ErrUnknownMessage)

	_, err = r.Handle(context.Background(), runtime.Message{Type: runtime.MagnetLinkClicked})
	assert.ErrorIs(t, err, runtime.ErrMissingHref)
}

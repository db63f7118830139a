package downloads_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/torrentbridge/pkg/logger"
	"github.com/dmitrymomot/torrentbridge/pkg/notifications"
	"github.com/dmitrymomot/torrentbridge/pkg/store"
	"github.com/dmitrymomot/torrentbridge/svc/authfetch"
	"github.com/dmitrymomot/torrentbridge/svc/downloads"
	"github.com/dmitrymomot/torrentbridge/svc/host"
	"github.com/dmitrymomot/torrentbridge/svc/state"
)

type mockDownloads struct {
	mock.Mock
	deltas chan host.DownloadDelta
}

func (m *mockDownloads) Search(ctx context.Context, id string) (host.DownloadItem, bool, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(host.DownloadItem), args.Bool(1), args.Error(2)
}

func (m *mockDownloads) Open(ctx context.Context, item host.DownloadItem) (io.ReadCloser, error) {
	args := m.Called(ctx, item)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}

func (m *mockDownloads) RemoveFile(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockDownloads) Deltas() <-chan host.DownloadDelta {
	return m.deltas
}

// recorder collects notifications.
type recorder struct {
	mu  sync.Mutex
	got []notifications.Notification
}

func (r *recorder) Notify(_ context.Context, n notifications.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return nil
}

func (r *recorder) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.got {
		out = append(out, n.Title+" | "+n.Message)
	}
	return out
}

type upload struct {
	filename string
	content  string
	user     string
}

// uploadServer answers /add_torrent_file with status and body and records the
// form it received.
type uploadServer struct {
	*httptest.Server
	calls atomic.Int32
	mu    sync.Mutex
	last  upload
}

func newUploadServer(t *testing.T, status int, body string) *uploadServer {
	t.Helper()
	us := &uploadServer{}
	us.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		us.calls.Add(1)
		if r.URL.Path != "/add_torrent_file" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err == nil {
			data, _ := io.ReadAll(f)
			us.mu.Lock()
			us.last = upload{filename: hdr.Filename, content: string(data), user: r.FormValue("target_user")}
			us.mu.Unlock()
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(us.Close)
	return us
}

func (us *uploadServer) lastUpload() upload {
	us.mu.Lock()
	defer us.mu.Unlock()
	return us.last
}

func enabled(serverURL string, remove bool) store.Values {
	return store.Values{
		state.KeyServerURL:           serverURL,
		state.KeyIsLoggedIn:          true,
		state.KeyLoggedInUsername:    "alice",
		state.KeyTorrentFilesEnabled: true,
		state.KeyRemoveAfterUpload:   remove,
	}
}

func newWatcher(t *testing.T, initial store.Values) (*downloads.Watcher, *mockDownloads, *recorder) {
	t.Helper()
	s := store.NewMemoryStore()
	t.Cleanup(func() { _ = s.Close() })
	if len(initial) > 0 {
		require.NoError(t, store.Set(context.Background(), s, initial))
	}
	dl := &mockDownloads{deltas: make(chan host.DownloadDelta)}
	rec := &recorder{}
	caps := host.Capabilities{
		Storage:       s,
		Network:       host.NewHTTPClient(0),
		Notifications: rec,
		Downloads:     dl,
	}
	fetch := authfetch.New(caps, nil, authfetch.WithLogger(logger.Discard()))
	return downloads.NewWatcher(caps, fetch, downloads.WithLogger(logger.Discard())), dl, rec
}

var complete = host.DownloadDelta{ID: "report.torrent", State: host.DownloadComplete}

func torrentItem() host.DownloadItem {
	return host.DownloadItem{ID: "report.torrent", Filename: "/home/alice/Downloads/report.torrent", State: host.DownloadComplete}
}

func body(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}

func TestHandleDelta_Upload(t *testing.T) {
	t.Parallel()

	srv := newUploadServer(t, http.StatusOK, `{}`)
	w, dl, rec := newWatcher(t, enabled(srv.URL, false))
	dl.On("Search", mock.Anything, "report.torrent").Return(torrentItem(), true, nil)
	dl.On("Open", mock.Anything, torrentItem()).Return(body("d8:announce"), nil)

	w.HandleDelta(context.Background(), complete)

	assert.Equal(t, upload{filename: "report.torrent", content: "d8:announce", user: "alice"}, srv.lastUpload())
	assert.Equal(t, []string{".torrent Uploaded | report.torrent successfully uploaded."}, rec.titles())
	dl.AssertNotCalled(t, "RemoveFile", mock.Anything, mock.Anything)
}

func TestHandleDelta_RemoveAfterUpload(t *testing.T) {
	t.Parallel()

	t.Run("removed", func(t *testing.T) {
		t.Parallel()
		srv := newUploadServer(t, http.StatusOK, `{}`)
		w, dl, rec := newWatcher(t, enabled(srv.URL, true))
		dl.On("Search", mock.Anything, "report.torrent").Return(torrentItem(), true, nil)
		dl.On("Open", mock.Anything, torrentItem()).Return(body("x"), nil)
		dl.On("RemoveFile", mock.Anything, "report.torrent").Return(nil).Once()

		w.HandleDelta(context.Background(), complete)

		assert.Equal(t, []string{".torrent Uploaded | report.torrent successfully uploaded."}, rec.titles())
		dl.AssertExpectations(t)
	})

	t.Run("removal fails", func(t *testing.T) {
		t.Parallel()
		srv := newUploadServer(t, http.StatusOK, `{}`)
		w, dl, rec := newWatcher(t, enabled(srv.URL, true))
		dl.On("Search", mock.Anything, "report.torrent").Return(torrentItem(), true, nil)
		dl.On("Open", mock.Anything, torrentItem()).Return(body("x"), nil)
		dl.On("RemoveFile", mock.Anything, "report.torrent").Return(errors.New("permission denied"))

		w.HandleDelta(context.Background(), complete)

		assert.Equal(t, []string{
			".torrent Uploaded | report.torrent successfully uploaded.",
			"File Removal Error | report.torrent: Could not be removed.",
		}, rec.titles())
	})
}

func TestHandleDelta_NotComplete(t *testing.T) {
	t.Parallel()

	w, dl, rec := newWatcher(t, enabled("http://127.0.0.1:1", true))

	for _, st := range []host.DownloadState{host.DownloadInProgress, host.DownloadInterrupted} {
		w.HandleDelta(context.Background(), host.DownloadDelta{ID: "report.torrent", State: st})
	}

	dl.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
	assert.Empty(t, rec.titles())
}

func TestHandleDelta_ServerRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"server error text", http.StatusBadRequest, `{"error":"Invalid torrent"}`, ".torrent Upload Error | report.torrent: Invalid torrent"},
		{"status fallback", http.StatusInternalServerError, `{}`, ".torrent Upload Error | report.torrent: Server error (500)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := newUploadServer(t, tt.status, tt.body)
			w, dl, rec := newWatcher(t, enabled(srv.URL, true))
			dl.On("Search", mock.Anything, "report.torrent").Return(torrentItem(), true, nil)
			dl.On("Open", mock.Anything, torrentItem()).Return(body("x"), nil)

			w.HandleDelta(context.Background(), complete)

			assert.Equal(t, []string{tt.want}, rec.titles())
			dl.AssertNotCalled(t, "RemoveFile", mock.Anything, mock.Anything)
		})
	}
}

func TestHandleDelta_Ignored(t *testing.T) {
	t.Parallel()

	srv := newUploadServer(t, http.StatusOK, `{}`)

	tests := []struct {
		name    string
		initial store.Values
		item    host.DownloadItem
	}{
		{"not a torrent", enabled(srv.URL, false), host.DownloadItem{ID: "a.zip", Filename: "/dl/a.zip"}},
		{"torrent files disabled", store.Values{state.KeyServerURL: srv.URL, state.KeyIsLoggedIn: true, state.KeyLoggedInUsername: "alice"}, torrentItem()},
		{"logged out", store.Values{state.KeyServerURL: srv.URL, state.KeyTorrentFilesEnabled: true}, torrentItem()},
		{"no server url", store.Values{state.KeyIsLoggedIn: true, state.KeyLoggedInUsername: "alice", state.KeyTorrentFilesEnabled: true}, torrentItem()},
	}
	for _, tt := range tests {
		w, dl, rec := newWatcher(t, tt.initial)
		dl.On("Search", mock.Anything, tt.item.ID).Return(tt.item, true, nil)

		w.HandleDelta(context.Background(), host.DownloadDelta{ID: tt.item.ID, State: host.DownloadComplete})

		assert.Empty(t, rec.titles(), tt.name)
		dl.AssertNotCalled(t, "Open", mock.Anything, mock.Anything)
	}
	assert.Zero(t, srv.calls.Load())
}

func TestHandleDelta_SuppressedFailures(t *testing.T) {
	t.Parallel()

	t.Run("unreadable download", func(t *testing.T) {
		t.Parallel()
		srv := newUploadServer(t, http.StatusOK, `{}`)
		w, dl, rec := newWatcher(t, enabled(srv.URL, false))
		dl.On("Search", mock.Anything, "report.torrent").Return(torrentItem(), true, nil)
		dl.On("Open", mock.Anything, torrentItem()).Return(nil, host.ErrDownloadGone)

		w.HandleDelta(context.Background(), complete)

		assert.Empty(t, rec.titles())
		assert.Zero(t, srv.calls.Load())
	})

	t.Run("non-json success body", func(t *testing.T) {
		t.Parallel()
		srv := newUploadServer(t, http.StatusOK, `uploaded!`)
		w, dl, rec := newWatcher(t, enabled(srv.URL, true))
		dl.On("Search", mock.Anything, "report.torrent").Return(torrentItem(), true, nil)
		dl.On("Open", mock.Anything, torrentItem()).Return(body("x"), nil)

		w.HandleDelta(context.Background(), complete)

		assert.Empty(t, rec.titles())
		dl.AssertNotCalled(t, "RemoveFile", mock.Anything, mock.Anything)
	})

	t.Run("server unreachable", func(t *testing.T) {
		t.Parallel()
		srv := newUploadServer(t, http.StatusOK, `{}`)
		url := srv.URL
		srv.Close()
		w, dl, rec := newWatcher(t, enabled(url, false))
		dl.On("Search", mock.Anything, "report.torrent").Return(torrentItem(), true, nil)
		dl.On("Open", mock.Anything, torrentItem()).Return(body("x"), nil)

		w.HandleDelta(context.Background(), complete)

		assert.Empty(t, rec.titles())
	})
}

func TestHandleDelta_UnexpectedFailure(t *testing.T) {
	t.Parallel()

	w, dl, rec := newWatcher(t, nil)
	dl.On("Search", mock.Anything, "report.torrent").Return(host.DownloadItem{}, false, errors.New("host exploded"))

	w.HandleDelta(context.Background(), complete)

	assert.Equal(t, []string{".torrent Process Error | Error with Downloaded file: host exploded"}, rec.titles())
}

func TestKind(t *testing.T) {
	t.Parallel()

	err := &downloads.Error{Kind: downloads.KindDecode, Err: authfetch.ErrInvalidJSON}
	assert.True(t, err.Suppressed())
	assert.ErrorIs(t, err, authfetch.ErrInvalidJSON)
	assert.Equal(t, downloads.KindDecode, downloads.KindOf(err))
	assert.Equal(t, downloads.KindOther, downloads.KindOf(errors.New("boom")))
	assert.False(t, (&downloads.Error{Kind: downloads.KindOther}).Suppressed())
}

func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("without downloads capability", func(t *testing.T) {
		t.Parallel()
		w := downloads.NewWatcher(host.Capabilities{}, nil, downloads.WithLogger(logger.Discard()))
		assert.NoError(t, w.Run(context.Background()))
	})

	t.Run("consumes deltas until closed", func(t *testing.T) {
		t.Parallel()
		srv := newUploadServer(t, http.StatusOK, `{}`)
		w, dl, rec := newWatcher(t, enabled(srv.URL, false))
		dl.On("Search", mock.Anything, "report.torrent").Return(torrentItem(), true, nil)
		dl.On("Open", mock.Anything, torrentItem()).Return(body("x"), nil)

		done := make(chan error, 1)
		go func() { done <- w.Run(context.Background()) }()

		dl.deltas <- host.DownloadDelta{ID: "report.torrent", State: host.DownloadInProgress}
		dl.deltas <- complete
		close(dl.deltas)

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("Run did not return after deltas closed")
		}
		assert.Equal(t, []string{".torrent Uploaded | report.torrent successfully uploaded."}, rec.titles())
	})
}

package downloads

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/dmitrymomot/torrentbridge/pkg/logger"
	"github.com/dmitrymomot/torrentbridge/pkg/notifications"
	"github.com/dmitrymomot/torrentbridge/svc/authfetch"
	"github.com/dmitrymomot/torrentbridge/svc/host"
	"github.com/dmitrymomot/torrentbridge/svc/state"
)

// Fetcher sends authenticated requests to the server.
type Fetcher interface {
	Do(ctx context.Context, req authfetch.Request) (*http.Response, error)
}

// Watcher uploads completed .torrent downloads to the server. It needs the
// Downloads and Storage capabilities; Notifications is optional.
type Watcher struct {
	caps  host.Capabilities
	fetch Fetcher
	log   *slog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

// NewWatcher creates a Watcher.
func NewWatcher(caps host.Capabilities, fetch Fetcher, opts ...Option) *Watcher {
	w := &Watcher{caps: caps, fetch: fetch, log: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}
	w.log = w.log.With(logger.Component("downloads.watcher"))
	return w
}

// Run handles deltas until ctx is done or the delta channel closes. Without
// the Downloads capability it logs a warning and returns nil.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.caps.Require(host.Downloads); err != nil {
		w.log.WarnContext(ctx, ".torrent downloads will not be handled", logger.Error(err))
		return nil
	}

	deltas := w.caps.Downloads.Deltas()
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deltas:
			if !ok {
				return nil
			}
			w.HandleDelta(ctx, d)
		}
	}
}

// HandleDelta processes one download state transition. Only transitions to
// complete for files ending in .torrent are acted on.
func (w *Watcher) HandleDelta(ctx context.Context, d host.DownloadDelta) {
	if d.State != host.DownloadComplete {
		return
	}
	if err := w.caps.Require(host.Downloads, host.Storage); err != nil {
		w.log.WarnContext(ctx, "download not handled", logger.DownloadID(d.ID), logger.Error(err))
		return
	}

	log := w.log.With(logger.DownloadID(d.ID))
	name := "Downloaded file"

	item, found, err := w.caps.Downloads.Search(ctx, d.ID)
	if err != nil {
		w.report(ctx, log, name, err)
		return
	}
	if !found {
		log.DebugContext(ctx, "download vanished before handling")
		return
	}
	name = displayName(item)
	if !strings.HasSuffix(strings.ToLower(name), ".torrent") {
		return
	}

	if err := w.upload(ctx, log, name, item); err != nil {
		w.report(ctx, log, name, err)
	}
}

func (w *Watcher) upload(ctx context.Context, log *slog.Logger, name string, item host.DownloadItem) error {
	snap, err := state.Load(ctx, w.caps.Storage)
	if err != nil {
		return err
	}
	switch {
	case snap.ServerURL == "", !snap.TorrentFilesEnabled:
		log.DebugContext(ctx, ".torrent handling off, ignoring download")
		return nil
	case !snap.LoggedIn():
		return kindError(KindNotLoggedIn, ErrNotLoggedIn)
	}

	rc, err := w.caps.Downloads.Open(ctx, item)
	if err != nil {
		return kindError(KindFetch, err)
	}
	defer rc.Close()

	req, err := authfetch.NewMultipartRequest(snap.BaseURL()+"/add_torrent_file",
		map[string]string{"target_user": snap.LoggedInUsername}, "file", name, rc)
	if err != nil {
		return kindError(KindFetch, err)
	}

	resp, err := w.fetch.Do(ctx, req)
	if err != nil {
		return kindError(KindFetch, err)
	}
	res, err := authfetch.ReadResult(resp)
	if errors.Is(err, authfetch.ErrInvalidJSON) {
		return kindError(KindDecode, err)
	}
	if err != nil {
		return err
	}

	if !res.OK() {
		log.InfoContext(ctx, "server rejected .torrent", logger.StatusCode(res.Status))
		w.notify(ctx, notifications.New(notifications.TypeError, ".torrent Upload Error",
			fmt.Sprintf("%s: %s", name, res.ErrorMessage())))
		return nil
	}

	log.InfoContext(ctx, ".torrent uploaded", logger.Username(snap.LoggedInUsername))
	w.notify(ctx, notifications.New(notifications.TypeSuccess, ".torrent Uploaded",
		name+" successfully uploaded."))

	if snap.ShouldRemoveAfterUpload() {
		if err := w.caps.Downloads.RemoveFile(ctx, item.ID); err != nil {
			log.WarnContext(ctx, "remove uploaded .torrent", logger.Error(err))
			w.notify(ctx, notifications.New(notifications.TypeError, "File Removal Error",
				name+": Could not be removed."))
		}
	}
	return nil
}

// report logs err and notifies the user unless the failure is routine.
func (w *Watcher) report(ctx context.Context, log *slog.Logger, name string, err error) {
	var e *Error
	if errors.As(err, &e) && e.Suppressed() {
		log.DebugContext(ctx, ".torrent pipeline stopped", slog.String("kind", e.Kind.String()), logger.Error(err))
		return
	}
	log.ErrorContext(ctx, ".torrent pipeline failed", logger.Error(err))
	w.notify(ctx, notifications.New(notifications.TypeError, ".torrent Process Error",
		fmt.Sprintf("Error with %s: %v", name, err)))
}

func (w *Watcher) notify(ctx context.Context, n notifications.Notification) {
	if !w.caps.Has(host.Notifications) {
		w.log.WarnContext(ctx, "notifications unavailable", slog.String("title", n.Title))
		return
	}
	if err := w.caps.Notifications.Notify(ctx, n); err != nil {
		w.log.WarnContext(ctx, "notify", logger.Error(err))
	}
}

// displayName is the base name of the download, falling back to the last
// segment of its URL.
func displayName(item host.DownloadItem) string {
	if item.Filename != "" {
		return filepath.Base(item.Filename)
	}
	if item.URL != "" {
		return path.Base(item.URL)
	}
	return "Downloaded file"
}

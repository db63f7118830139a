package host

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dmitrymomot/torrentbridge/pkg/logger"
)

// partialSuffixes mark files a browser is still writing.
var partialSuffixes = []string{".part", ".crdownload", ".download", ".tmp"}

// DirDownloads turns a download directory into a DownloadService. Files that
// appear after Run starts are reported complete once their size and
// modification time stay unchanged for one poll interval. A file rewritten in
// place is reported again once it settles. Download IDs are
// paths relative to the directory.
type DirDownloads struct {
	dir      string
	interval time.Duration
	log      *slog.Logger
	deltas   chan DownloadDelta

	mu    sync.Mutex
	files map[string]*trackedFile
}

type trackedFile struct {
	size    int64
	modTime time.Time
	stable  bool
}

// DirDownloadsOption configures DirDownloads.
type DirDownloadsOption func(*DirDownloads)

// WithDownloadsLogger sets the logger used for scan failures.
func WithDownloadsLogger(l *slog.Logger) DirDownloadsOption {
	return func(d *DirDownloads) {
		if l != nil {
			d.log = l
		}
	}
}

// NewDirDownloads watches dir, polling every interval.
func NewDirDownloads(dir string, interval time.Duration, opts ...DirDownloadsOption) (*DirDownloads, error) {
	if interval <= 0 {
		return nil, ErrInvalidPoll
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, errors.Join(ErrDirNotPresent, err)
	}

	d := &DirDownloads{
		dir:      dir,
		interval: interval,
		log:      slog.Default(),
		deltas:   make(chan DownloadDelta, 16),
		files:    make(map[string]*trackedFile),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Run polls until ctx is done, then closes Deltas. Files already present when
// Run starts are never reported.
func (d *DirDownloads) Run(ctx context.Context) error {
	defer close(d.deltas)

	d.scan(ctx, true)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.scan(ctx, false)
		}
	}
}

func (d *DirDownloads) scan(ctx context.Context, baseline bool) {
	seen := make(map[string]struct{})
	var ready []string

	err := filepath.WalkDir(d.dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if entry.IsDir() || isPartial(entry.Name()) {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(d.dir, path)
		if err != nil {
			return nil
		}
		seen[rel] = struct{}{}

		d.mu.Lock()
		defer d.mu.Unlock()

		f, ok := d.files[rel]
		switch {
		case !ok:
			d.files[rel] = &trackedFile{size: info.Size(), modTime: info.ModTime(), stable: baseline}
		case f.size != info.Size() || !f.modTime.Equal(info.ModTime()):
			f.size, f.modTime, f.stable = info.Size(), info.ModTime(), false
		case f.stable:
		default:
			f.stable = true
			ready = append(ready, rel)
		}
		return nil
	})
	if err != nil {
		d.log.WarnContext(ctx, "download directory scan failed",
			logger.Component("host.downloads"),
			logger.Error(err),
		)
	}

	d.mu.Lock()
	for rel := range d.files {
		if _, ok := seen[rel]; !ok {
			delete(d.files, rel)
		}
	}
	d.mu.Unlock()

	for _, id := range ready {
		select {
		case d.deltas <- DownloadDelta{ID: id, State: DownloadComplete}:
		case <-ctx.Done():
			return
		}
	}
}

func (d *DirDownloads) Search(_ context.Context, id string) (DownloadItem, bool, error) {
	path, err := d.resolve(id)
	if err != nil {
		return DownloadItem{}, false, nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DownloadItem{}, false, nil
	}
	if err != nil {
		return DownloadItem{}, false, err
	}

	state := DownloadInProgress
	d.mu.Lock()
	if f, ok := d.files[id]; ok && f.stable {
		state = DownloadComplete
	}
	d.mu.Unlock()

	return DownloadItem{
		ID:       id,
		Filename: path,
		URL:      "file://" + filepath.ToSlash(path),
		Size:     info.Size(),
		State:    state,
	}, true, nil
}

func (d *DirDownloads) Open(_ context.Context, item DownloadItem) (io.ReadCloser, error) {
	path, err := d.resolve(item.ID)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

func (d *DirDownloads) RemoveFile(_ context.Context, id string) error {
	path, err := d.resolve(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return err
	}
	d.mu.Lock()
	delete(d.files, id)
	d.mu.Unlock()
	return nil
}

func (d *DirDownloads) Deltas() <-chan DownloadDelta {
	return d.deltas
}

// resolve maps an id back to a path, refusing ids that escape the directory.
func (d *DirDownloads) resolve(id string) (string, error) {
	if id == "" || !filepath.IsLocal(id) {
		return "", ErrDownloadGone
	}
	return filepath.Join(d.dir, id), nil
}

func isPartial(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range partialSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

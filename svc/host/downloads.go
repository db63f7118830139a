package host

import (
	"context"
	"io"
)

// DownloadState is the lifecycle state of a download.
type DownloadState string

const (
	DownloadInProgress  DownloadState = "in_progress"
	DownloadComplete    DownloadState = "complete"
	DownloadInterrupted DownloadState = "interrupted"
)

// DownloadItem describes one download known to the host.
type DownloadItem struct {
	ID       string        `json:"id"`
	Filename string        `json:"filename"`
	URL      string        `json:"url,omitempty"`
	Size     int64         `json:"size"`
	State    DownloadState `json:"state"`
}

// DownloadDelta reports a state transition of a download.
type DownloadDelta struct {
	ID    string        `json:"id"`
	State DownloadState `json:"state"`
}

// DownloadService is the download-event capability.
type DownloadService interface {
	// Search looks a download up by id. The bool is false when it is unknown.
	Search(ctx context.Context, id string) (DownloadItem, bool, error)
	// Open returns the downloaded bytes.
	Open(ctx context.Context, item DownloadItem) (io.ReadCloser, error)
	// RemoveFile deletes the downloaded artifact from disk.
	RemoveFile(ctx context.Context, id string) error
	// Deltas delivers state transitions. It is closed when the service stops.
	Deltas() <-chan DownloadDelta
}

package host

import "errors"

var (
	ErrUnavailable   = errors.New("host capability unavailable")
	ErrDownloadGone  = errors.New("download no longer exists")
	ErrInvalidPoll   = errors.New("download poll interval must be positive")
	ErrDirNotPresent = errors.New("download directory does not exist")
)

package runtime

import "errors"

var (
	ErrUnknownMessage = errors.New("unknown message type")
	ErrMissingHref    = errors.New("magnet link message without href")
	ErrBadReply       = errors.New("malformed reply")
)

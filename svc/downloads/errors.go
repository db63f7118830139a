package downloads

import (
	"errors"
	"fmt"
)

// Kind classifies a failure of the upload pipeline.
type Kind int

const (
	KindOther Kind = iota
	// KindFetch: the download could not be read or the server not reached.
	KindFetch
	// KindDecode: the server answered with a body that is not JSON.
	KindDecode
	// KindNotLoggedIn: no session to upload under.
	KindNotLoggedIn
)

func (k Kind) String() string {
	switch k {
	case KindFetch:
		return "fetch"
	case KindDecode:
		return "decode"
	case KindNotLoggedIn:
		return "not_logged_in"
	default:
		return "other"
	}
}

// Error is a pipeline failure tagged with its Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Suppressed reports whether the failure is routine and gets no notification.
func (e *Error) Suppressed() bool {
	switch e.Kind {
	case KindFetch, KindDecode, KindNotLoggedIn:
		return true
	default:
		return false
	}
}

func kindError(kind Kind, err error) error {
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the Kind of err, or KindOther when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindOther
}

var ErrNotLoggedIn = errors.New("user not logged in")

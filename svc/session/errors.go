package session

import (
	"errors"
	"fmt"
)

var (
	ErrNoServerURL       = errors.New("server URL not set")
	ErrInvalidResponse   = errors.New("invalid server response")
	ErrCredentialsLocked = errors.New("saved password is encrypted and no credentials key is configured")
)

// LoginError is a login rejected by the server.
type LoginError struct {
	Status  int
	Message string
}

func (e *LoginError) Error() string {
	return e.Message
}

func newLoginError(status int, statusText, serverMessage string) *LoginError {
	msg := serverMessage
	if msg == "" {
		msg = fmt.Sprintf("Login failed: %s (%d)", statusText, status)
	}
	return &LoginError{Status: status, Message: msg}
}

package authfetch

import "errors"

var (
	ErrInvalidJSON = errors.New("server response is not valid JSON")
	ErrNoMethod    = errors.New("request method is required")
)

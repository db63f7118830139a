package store

import "errors"

var (
	ErrClosed       = errors.New("store: closed")
	ErrEmptyKey     = errors.New("store: empty key")
	ErrEncodeValue  = errors.New("store: value is not JSON encodable")
	ErrOpenDatabase = errors.New("store: failed to open database")
	ErrMigrate      = errors.New("store: failed to migrate schema")
	ErrSubscribe    = errors.New("store: failed to subscribe to change channel")
)

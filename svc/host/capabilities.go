package host

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrymomot/torrentbridge/pkg/notifications"
	"github.com/dmitrymomot/torrentbridge/pkg/store"
)

// Capability names one host facility.
type Capability string

const (
	Storage       Capability = "storage"
	Network       Capability = "network"
	Notifications Capability = "notifications"
	Downloads     Capability = "downloads"
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Capabilities is the set of facilities available to a component. Any field
// may be nil, meaning the host does not provide it.
type Capabilities struct {
	Storage       store.Store
	Network       Doer
	Notifications notifications.Notifier
	Downloads     DownloadService
}

// Has reports whether c is provided.
func (caps Capabilities) Has(c Capability) bool {
	switch c {
	case Storage:
		return caps.Storage != nil
	case Network:
		return caps.Network != nil
	case Notifications:
		return caps.Notifications != nil
	case Downloads:
		return caps.Downloads != nil
	default:
		return false
	}
}

// Require returns an error wrapping ErrUnavailable for every missing
// capability in cs, or nil when all are present.
func (caps Capabilities) Require(cs ...Capability) error {
	var errs []error
	for _, c := range cs {
		if !caps.Has(c) {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnavailable, c))
		}
	}
	return errors.Join(errs...)
}

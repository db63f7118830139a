package content

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/dmitrymomot/torrentbridge/handler"
	"github.com/dmitrymomot/torrentbridge/pkg/logger"
	"github.com/dmitrymomot/torrentbridge/svc/host"
	"github.com/dmitrymomot/torrentbridge/svc/runtime"
	"github.com/dmitrymomot/torrentbridge/svc/state"
)

const unexpectedReply = "Unexpected response from extension."

var watchedKeys = []string{state.KeyIsLoggedIn, state.KeyLoggedInUsername, state.KeyMagnetLinksEnabled}

// Notice is the on-page message shown after an intercepted click.
type Notice struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Interceptor decides whether magnet link clicks are taken over and forwards
// them to the background. It needs the Storage capability; without it clicks
// are never intercepted.
type Interceptor struct {
	caps       host.Capabilities
	sender     runtime.Sender
	log        *slog.Logger
	errHandler handler.ErrorHandler
	active     atomic.Bool
}

// Option configures an Interceptor.
type Option func(*Interceptor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(i *Interceptor) {
		if l != nil {
			i.log = l
		}
	}
}

// WithErrorHandler sets the error handler used by the HTTP routes.
func WithErrorHandler(h handler.ErrorHandler) Option {
	return func(i *Interceptor) {
		i.errHandler = h
	}
}

// NewInterceptor creates an inactive Interceptor. Call Start to follow the
// session and feature flag.
func NewInterceptor(caps host.Capabilities, sender runtime.Sender, opts ...Option) *Interceptor {
	i := &Interceptor{caps: caps, sender: sender, log: slog.Default()}
	for _, opt := range opts {
		opt(i)
	}
	i.log = i.log.With(logger.Component("content.interceptor"))
	return i
}

// Start reads the current state and keeps Active in sync with changes to the
// session and magnetLinksEnabled until ctx is done. It does not block.
func (i *Interceptor) Start(ctx context.Context) {
	if err := i.caps.Require(host.Storage); err != nil {
		i.log.WarnContext(ctx, "magnet links will not be intercepted", logger.Error(err))
		return
	}

	sub := i.caps.Storage.Subscribe(ctx, watchedKeys...)
	i.refresh(ctx)

	go func() {
		defer sub.Close()
		msgs := sub.Receive(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				i.refresh(ctx)
			}
		}
	}()
}

// Active reports whether clicks are currently intercepted.
func (i *Interceptor) Active() bool {
	return i.active.Load()
}

func (i *Interceptor) refresh(ctx context.Context) {
	v, err := i.caps.Storage.Get(ctx, watchedKeys...)
	if err != nil {
		i.log.WarnContext(ctx, "read state, releasing magnet links", logger.Error(err))
		i.set(ctx, false)
		return
	}
	snap := state.FromValues(v)
	i.set(ctx, snap.LoggedIn() && snap.MagnetLinksEnabled)
}

func (i *Interceptor) set(ctx context.Context, on bool) {
	if i.active.Swap(on) != on {
		i.log.DebugContext(ctx, "magnet link interception changed", slog.Bool("active", on))
	}
}

// Click handles a click on a link. The bool is false when the click is not
// taken over and the link should be followed as usual.
func (i *Interceptor) Click(ctx context.Context, href string) (Notice, bool) {
	if !i.Active() || !strings.HasPrefix(href, "magnet:") {
		return Notice{}, false
	}

	reply, err := i.sender.Send(ctx, runtime.Message{Type: runtime.MagnetLinkClicked, Href: href}).AwaitContext(ctx)
	switch {
	case errors.Is(err, runtime.ErrBadReply):
		return Notice{Message: unexpectedReply}, true
	case err != nil:
		i.log.WarnContext(ctx, "magnet link not delivered", logger.Error(err))
		return Notice{Message: "Error: " + err.Error()}, true
	case reply.Message == "":
		return Notice{Message: unexpectedReply}, true
	}
	return Notice(reply), true
}

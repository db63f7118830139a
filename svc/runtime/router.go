package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/torrentbridge/pkg/logger"
	"github.com/dmitrymomot/torrentbridge/svc/authfetch"
	"github.com/dmitrymomot/torrentbridge/svc/host"
	"github.com/dmitrymomot/torrentbridge/svc/state"
)

// Fetcher sends authenticated requests to the server.
type Fetcher interface {
	Do(ctx context.Context, req authfetch.Request) (*http.Response, error)
}

// SessionCleaner clears the local session.
type SessionCleaner interface {
	Logout(ctx context.Context, notifyUser bool)
}

// Router is the background message handler. It needs the Storage
// capability; without it every magnet message fails with a processing error.
type Router struct {
	caps    host.Capabilities
	fetch   Fetcher
	session SessionCleaner
	log     *slog.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithRouterLogger sets the logger.
func WithRouterLogger(l *slog.Logger) RouterOption {
	return func(r *Router) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRouter creates a Router.
func NewRouter(caps host.Capabilities, fetch Fetcher, session SessionCleaner, opts ...RouterOption) *Router {
	r := &Router{
		caps:    caps,
		fetch:   fetch,
		session: session,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With(logger.Component("runtime.router"))
	return r
}

// Handle answers msg. Failures of the requested action are reported in the
// Reply; an error is returned only for messages that cannot be routed.
func (r *Router) Handle(ctx context.Context, msg Message) (Reply, error) {
	switch msg.Type {
	case MagnetLinkClicked:
		if msg.Href == "" {
			return Reply{}, ErrMissingHref
		}
		return r.handleMagnet(ctx, msg.Href), nil
	case UserLogoutRequested:
		r.session.Logout(ctx, false)
		return Reply{Success: true, Message: "Logout cleanup done."}, nil
	default:
		return Reply{}, fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}
}

func (r *Router) handleMagnet(ctx context.Context, href string) Reply {
	name := MagnetName(href)
	log := r.log.With(logger.MessageType(string(MagnetLinkClicked)), slog.String("torrent", name))

	if err := r.caps.Require(host.Storage); err != nil {
		log.WarnContext(ctx, "magnet link not handled", logger.Error(err))
		return failure(name, "Processing error - "+err.Error())
	}

	snap, err := state.Load(ctx, r.caps.Storage)
	if err != nil {
		log.ErrorContext(ctx, "read state", logger.Error(err))
		return failure(name, "Processing error - "+err.Error())
	}

	if reason := magnetPrecondition(snap); reason != "" {
		log.DebugContext(ctx, "magnet link refused", slog.String("reason", reason))
		return failure(name, reason)
	}

	req, err := authfetch.NewJSONRequest(http.MethodPost, snap.BaseURL()+"/add_magnet_link", map[string]string{
		"magnet_link": href,
		"target_user": snap.LoggedInUsername,
	})
	if err != nil {
		return failure(name, "Processing error - "+err.Error())
	}

	resp, err := r.fetch.Do(ctx, req)
	if err != nil {
		log.ErrorContext(ctx, "send magnet link", logger.Error(err))
		return failure(name, "Processing error - "+err.Error())
	}

	res, err := authfetch.ReadResult(resp)
	switch {
	case errors.Is(err, authfetch.ErrInvalidJSON):
		log.WarnContext(ctx, "unparseable server response", logger.StatusCode(res.Status))
		return failure(name, "Error parsing server response.")
	case err != nil:
		log.ErrorContext(ctx, "read server response", logger.Error(err))
		return failure(name, "Processing error - "+err.Error())
	case !res.OK():
		log.InfoContext(ctx, "server rejected magnet link", logger.StatusCode(res.Status))
		return failure(name, res.ErrorMessage())
	}

	log.InfoContext(ctx, "magnet link sent", logger.Username(snap.LoggedInUsername))
	return Reply{Success: true, Message: name + " successfully sent to server."}
}

// magnetPrecondition returns the refusal text for the first unmet
// precondition, checked in order: server URL, session, feature flag.
func magnetPrecondition(s state.Snapshot) string {
	switch {
	case s.ServerURL == "":
		return "Server URL not set."
	case !s.LoggedIn():
		return "User not logged in."
	case !s.MagnetLinksEnabled:
		return "Magnet link handling not enabled."
	default:
		return ""
	}
}

func failure(name, reason string) Reply {
	return Reply{Success: false, Message: name + ": " + reason}
}

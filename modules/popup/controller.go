package popup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/torrentbridge/handler"
	"github.com/dmitrymomot/torrentbridge/pkg/logger"
	"github.com/dmitrymomot/torrentbridge/pkg/store"
	"github.com/dmitrymomot/torrentbridge/svc/host"
	"github.com/dmitrymomot/torrentbridge/svc/runtime"
	"github.com/dmitrymomot/torrentbridge/svc/session"
	"github.com/dmitrymomot/torrentbridge/svc/state"
)

const (
	notLoggedInMessage     = "User not logged in."
	torrentFilesOffMessage = "Enable .torrent file handling first."
	loginErrorMessage      = "Login error."
)

// Session is the part of session.Manager the popup drives.
type Session interface {
	Login(ctx context.Context, username, password string) (string, error)
	ServerLogout(ctx context.Context)
	SaveCredentials(ctx context.Context, username, password string) error
	ClearCredentials(ctx context.Context) error
	SavedCredentials(ctx context.Context) (string, string, error)
}

// View is what the popup shows. Exactly one of the login form and the
// logged-in panel is relevant, selected by LoggedIn.
type View struct {
	LoggedIn bool   `json:"loggedIn"`
	Username string `json:"username,omitempty"`

	SavedUsername string `json:"savedUsername,omitempty"`
	PasswordSaved bool   `json:"passwordSaved"`

	MagnetLinks               bool `json:"magnetLinks"`
	TorrentFiles              bool `json:"torrentFiles"`
	RemoveAfterUpload         bool `json:"removeAfterUpload"`
	RemoveAfterUploadDisabled bool `json:"removeAfterUploadDisabled"`

	Message string `json:"message,omitempty"`
	IsError bool   `json:"isError,omitempty"`
}

// Controller backs the popup. It needs the Storage capability; without it
// the login view is always shown and every action fails with a message.
type Controller struct {
	caps       host.Capabilities
	session    Session
	sender     runtime.Sender
	log        *slog.Logger
	errHandler handler.ErrorHandler
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithErrorHandler sets the error handler used by the HTTP routes.
func WithErrorHandler(h handler.ErrorHandler) Option {
	return func(c *Controller) {
		c.errHandler = h
	}
}

// NewController creates a Controller.
func NewController(caps host.Capabilities, sess Session, sender runtime.Sender, opts ...Option) *Controller {
	c := &Controller{caps: caps, session: sess, sender: sender, log: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(logger.Component("popup"))
	return c
}

// View returns the logged-in panel when a session exists and the login form
// otherwise. Read failures fall back to the login form.
func (c *Controller) View(ctx context.Context) View {
	if err := c.caps.Require(host.Storage); err != nil {
		c.log.WarnContext(ctx, "showing login view", logger.Error(err))
		return View{RemoveAfterUploadDisabled: true}
	}
	snap, err := state.Load(ctx, c.caps.Storage)
	if err != nil {
		c.log.WarnContext(ctx, "read state", logger.Error(err))
		return c.loginView(ctx)
	}
	if !snap.LoggedIn() {
		return c.loginView(ctx)
	}
	return View{
		LoggedIn:                  true,
		Username:                  snap.LoggedInUsername,
		MagnetLinks:               snap.MagnetLinksEnabled,
		TorrentFiles:              snap.TorrentFilesEnabled,
		RemoveAfterUpload:         snap.RemoveAfterUpload,
		RemoveAfterUploadDisabled: !snap.TorrentFilesEnabled,
	}
}

// loginView pre-fills the saved credentials. Every toggle is off.
func (c *Controller) loginView(ctx context.Context) View {
	v := View{RemoveAfterUploadDisabled: true}
	username, password, err := c.session.SavedCredentials(ctx)
	if err != nil && !errors.Is(err, session.ErrCredentialsLocked) {
		c.log.DebugContext(ctx, "saved credentials unavailable", logger.Error(err))
		return v
	}
	v.SavedUsername = username
	v.PasswordSaved = password != "" || errors.Is(err, session.ErrCredentialsLocked)
	return v
}

// SubmitLogin saves or forgets the credentials according to save, then logs
// in. An empty password falls back to the saved one for the same user. On
// success every feature starts disabled.
func (c *Controller) SubmitLogin(ctx context.Context, username, password string, save bool) View {
	if password == "" {
		if savedUser, savedPass, err := c.session.SavedCredentials(ctx); err == nil && savedUser == username {
			password = savedPass
		}
	}

	var credErr error
	if save {
		credErr = c.session.SaveCredentials(ctx, username, password)
	} else {
		credErr = c.session.ClearCredentials(ctx)
	}
	if credErr != nil {
		c.log.WarnContext(ctx, "update saved credentials", logger.Error(credErr))
	}

	if _, err := c.session.Login(ctx, username, password); err != nil {
		v := c.loginView(ctx)
		v.IsError = true
		if le, ok := session.IsLoginError(err); ok {
			v.Message = le.Message
		} else {
			c.log.ErrorContext(ctx, "login", logger.Username(username), logger.Error(err))
			v.Message = loginErrorMessage
		}
		return v
	}

	if err := store.Set(ctx, c.caps.Storage, store.Values{
		state.KeyMagnetLinksEnabled:  false,
		state.KeyTorrentFilesEnabled: false,
		state.KeyRemoveAfterUpload:   false,
	}); err != nil {
		c.log.ErrorContext(ctx, "reset features after login", logger.Error(err))
	}
	return c.View(ctx)
}

// Logout asks the server to end the session without waiting for it, has the
// background clear local state, and returns the login view whatever happens.
func (c *Controller) Logout(ctx context.Context) View {
	go c.session.ServerLogout(context.WithoutCancel(ctx))

	reply, err := c.sender.Send(ctx, runtime.Message{Type: runtime.UserLogoutRequested}).AwaitContext(ctx)
	switch {
	case err != nil:
		c.log.WarnContext(ctx, "logout message failed", logger.Error(err))
	case !reply.Success:
		c.log.WarnContext(ctx, "logout not acknowledged", slog.String("reply", reply.Message))
	}
	return c.loginView(ctx)
}

// SetMagnetLinks turns magnet link handling on or off.
func (c *Controller) SetMagnetLinks(ctx context.Context, on bool) View {
	return c.toggle(ctx, store.Values{state.KeyMagnetLinksEnabled: on},
		"Magnet link handling "+word(on)+".")
}

// SetTorrentFiles turns .torrent handling on or off. Turning it off also
// turns off removal after upload.
func (c *Controller) SetTorrentFiles(ctx context.Context, on bool) View {
	values := store.Values{state.KeyTorrentFilesEnabled: on}
	if !on {
		values[state.KeyRemoveAfterUpload] = false
	}
	return c.toggle(ctx, values, ".torrent file handling "+word(on)+".")
}

// SetRemoveAfterUpload turns removal of uploaded .torrent files on or off. It
// is refused while .torrent handling is off.
func (c *Controller) SetRemoveAfterUpload(ctx context.Context, on bool) View {
	if view := c.View(ctx); view.LoggedIn && !view.TorrentFiles {
		return c.withMessage(view, torrentFilesOffMessage, true)
	}
	return c.toggle(ctx, store.Values{state.KeyRemoveAfterUpload: on},
		"Remove .torrent after upload "+word(on)+".")
}

func (c *Controller) toggle(ctx context.Context, values store.Values, message string) View {
	if err := c.caps.Require(host.Storage); err != nil {
		return c.withMessage(c.View(ctx), err.Error(), true)
	}
	if view := c.View(ctx); !view.LoggedIn {
		return c.withMessage(view, notLoggedInMessage, true)
	}
	if err := store.Set(ctx, c.caps.Storage, values); err != nil {
		c.log.ErrorContext(ctx, "save setting", logger.Keys(values.Keys()), logger.Error(err))
		return c.withMessage(c.View(ctx), fmt.Sprintf("Could not save setting: %v", err), true)
	}
	c.log.InfoContext(ctx, "setting changed", logger.Keys(values.Keys()))
	return c.withMessage(c.View(ctx), message, false)
}

func (c *Controller) withMessage(v View, message string, isError bool) View {
	v.Message = message
	v.IsError = isError
	return v
}

func word(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

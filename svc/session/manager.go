package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dmitrymomot/torrentbridge/pkg/logger"
	"github.com/dmitrymomot/torrentbridge/pkg/notifications"
	"github.com/dmitrymomot/torrentbridge/pkg/secrets"
	"github.com/dmitrymomot/torrentbridge/pkg/store"
	"github.com/dmitrymomot/torrentbridge/svc/host"
	"github.com/dmitrymomot/torrentbridge/svc/state"
)

const (
	loggedOutTitle   = "Logged Out"
	loggedOutMessage = "You have been logged out and features disabled."
)

// Manager implements login, logout and silent re-login.
type Manager struct {
	caps host.Capabilities
	box  *secrets.Box
	log  *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithCredentialsBox seals saved passwords with box.
func WithCredentialsBox(box *secrets.Box) Option {
	return func(m *Manager) {
		m.box = box
	}
}

// NewManager creates a Manager bound to caps.
func NewManager(caps host.Capabilities, opts ...Option) *Manager {
	m := &Manager{
		caps: caps,
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With(logger.Component("session"))
	return m
}

// Login authenticates username against the server and, on success, records
// the session. It returns the logged-in username. A rejected login is a
// *LoginError; session state is left untouched on any failure.
func (m *Manager) Login(ctx context.Context, username, password string) (string, error) {
	if err := m.caps.Require(host.Storage, host.Network); err != nil {
		return "", err
	}

	snap, err := state.Load(ctx, m.caps.Storage)
	if err != nil {
		return "", fmt.Errorf("read server url: %w", err)
	}
	if snap.ServerURL == "" {
		return "", ErrNoServerURL
	}

	if err := m.postLogin(ctx, snap.BaseURL(), username, password); err != nil {
		return "", err
	}

	if err := store.Set(ctx, m.caps.Storage, store.Values{
		state.KeyIsLoggedIn:       true,
		state.KeyLoggedInUsername: username,
	}); err != nil {
		return "", fmt.Errorf("record session: %w", err)
	}

	m.log.InfoContext(ctx, "logged in", logger.Username(username))
	return username, nil
}

// Logout clears the session and disables every feature in one write. It never
// fails: store errors are logged. With notifyUser a "Logged Out" notification
// is shown. Calling it repeatedly leaves the same state as calling it once.
func (m *Manager) Logout(ctx context.Context, notifyUser bool) {
	if !m.caps.Has(host.Storage) {
		m.log.WarnContext(ctx, "logout skipped", logger.Error(m.caps.Require(host.Storage)))
		return
	}

	err := m.caps.Storage.Update(ctx, store.Patch{
		Set: store.Values{
			state.KeyIsLoggedIn:          false,
			state.KeyMagnetLinksEnabled:  false,
			state.KeyTorrentFilesEnabled: false,
			state.KeyRemoveAfterUpload:   false,
		},
		Remove: []string{state.KeyLoggedInUsername},
	})
	if err != nil {
		m.log.ErrorContext(ctx, "logout cleanup failed", logger.Error(err))
	}

	if notifyUser {
		m.notify(ctx, notifications.New(notifications.TypeInfo, loggedOutTitle, loggedOutMessage))
	}
}

// AttemptReLogin logs in again with the saved credentials. Missing
// credentials skip the network entirely. Any failure forces a logout with a
// user notification and returns false.
func (m *Manager) AttemptReLogin(ctx context.Context) bool {
	if !m.caps.Has(host.Storage) {
		m.log.WarnContext(ctx, "re-login skipped", logger.Error(m.caps.Require(host.Storage)))
		return false
	}

	snap, err := state.Load(ctx, m.caps.Storage)
	if err != nil {
		m.log.ErrorContext(ctx, "re-login: read state", logger.Error(err))
		m.Logout(ctx, true)
		return false
	}

	password, err := m.openPassword(snap.SavedPassword)
	if err != nil {
		m.log.WarnContext(ctx, "re-login: saved password unusable", logger.Error(err))
		password = ""
	}

	if snap.SavedUsername == "" || password == "" || snap.ServerURL == "" {
		m.log.DebugContext(ctx, "re-login: no saved credentials")
		m.Logout(ctx, true)
		return false
	}

	if !m.caps.Has(host.Network) {
		m.log.WarnContext(ctx, "re-login failed", logger.Error(m.caps.Require(host.Network)))
		m.Logout(ctx, true)
		return false
	}

	if err := m.postLogin(ctx, snap.BaseURL(), snap.SavedUsername, password); err != nil {
		m.log.InfoContext(ctx, "re-login failed", logger.Username(snap.SavedUsername), logger.Error(err))
		m.Logout(ctx, true)
		return false
	}

	if err := store.Set(ctx, m.caps.Storage, store.Values{
		state.KeyIsLoggedIn:       true,
		state.KeyLoggedInUsername: snap.SavedUsername,
	}); err != nil {
		m.log.ErrorContext(ctx, "re-login: record session", logger.Error(err))
		m.Logout(ctx, true)
		return false
	}

	m.log.InfoContext(ctx, "re-login succeeded", logger.Username(snap.SavedUsername))
	return true
}

// ServerLogout tells the server to drop the session cookie. The outcome is
// ignored; local state is cleared separately by Logout.
func (m *Manager) ServerLogout(ctx context.Context) {
	if err := m.caps.Require(host.Storage, host.Network); err != nil {
		m.log.WarnContext(ctx, "server logout skipped", logger.Error(err))
		return
	}
	snap, err := state.Load(ctx, m.caps.Storage)
	if err != nil || snap.ServerURL == "" {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, snap.BaseURL()+"/logout", nil)
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.caps.Network.Do(req)
	if err != nil {
		m.log.DebugContext(ctx, "server logout request failed", logger.Error(err))
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

// postLogin performs POST /login. A 2xx answer must carry a JSON body.
func (m *Manager) postLogin(ctx context.Context, baseURL, username, password string) error {
	payload, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/login", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.caps.Network.Do(req)
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read login response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newLoginError(resp.StatusCode, statusText(resp), gjson.GetBytes(body, "error").String())
	}
	if !gjson.ValidBytes(body) {
		return ErrInvalidResponse
	}
	return nil
}

func (m *Manager) notify(ctx context.Context, n notifications.Notification) {
	if !m.caps.Has(host.Notifications) {
		m.log.WarnContext(ctx, "notification dropped",
			slog.String("title", n.Title),
			logger.Error(m.caps.Require(host.Notifications)),
		)
		return
	}
	if err := m.caps.Notifications.Notify(ctx, n); err != nil {
		m.log.ErrorContext(ctx, "notify failed", logger.Error(err))
	}
}

// statusText returns the reason phrase the server sent, falling back to the
// standard text for the code.
func statusText(resp *http.Response) string {
	if text, ok := strings.CutPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" "); ok && text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

// IsLoginError reports whether err is a rejected login and returns it.
func IsLoginError(err error) (*LoginError, bool) {
	var le *LoginError
	ok := errors.As(err, &le)
	return le, ok
}

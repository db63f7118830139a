package session

import (
	"context"

	"github.com/dmitrymomot/torrentbridge/pkg/secrets"
	"github.com/dmitrymomot/torrentbridge/pkg/store"
	"github.com/dmitrymomot/torrentbridge/svc/host"
	"github.com/dmitrymomot/torrentbridge/svc/state"
)

// SaveCredentials stores username and password for silent re-login.
func (m *Manager) SaveCredentials(ctx context.Context, username, password string) error {
	if err := m.caps.Require(host.Storage); err != nil {
		return err
	}

	stored := password
	if m.box != nil {
		sealed, err := m.box.Seal(password)
		if err != nil {
			return err
		}
		stored = sealed
	}

	return store.Set(ctx, m.caps.Storage, store.Values{
		state.KeySavedUsername: username,
		state.KeySavedPassword: stored,
	})
}

// ClearCredentials forgets saved credentials.
func (m *Manager) ClearCredentials(ctx context.Context) error {
	if err := m.caps.Require(host.Storage); err != nil {
		return err
	}
	return store.Remove(ctx, m.caps.Storage, state.KeySavedUsername, state.KeySavedPassword)
}

// SavedCredentials returns the saved username and the usable password.
// Missing values come back empty.
func (m *Manager) SavedCredentials(ctx context.Context) (string, string, error) {
	if err := m.caps.Require(host.Storage); err != nil {
		return "", "", err
	}
	snap, err := state.Load(ctx, m.caps.Storage)
	if err != nil {
		return "", "", err
	}
	password, err := m.openPassword(snap.SavedPassword)
	if err != nil {
		return snap.SavedUsername, "", err
	}
	return snap.SavedUsername, password, nil
}

// openPassword returns stored as-is when it is plaintext, so passwords saved
// before a key was configured keep working.
func (m *Manager) openPassword(stored string) (string, error) {
	if !secrets.IsSealed(stored) {
		return stored, nil
	}
	if m.box == nil {
		return "", ErrCredentialsLocked
	}
	return m.box.Open(stored)
}

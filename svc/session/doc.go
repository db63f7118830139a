// Package session owns the login state of the bridge.
//
// Manager logs in against {serverUrl}/login through the host's cookie-bearing
// client, clears session state on logout, silently re-authenticates with
// saved credentials when the server rejects a request, and keeps the saved
// credentials themselves (sealed with pkg/secrets when a key is configured).
//
// Required capabilities: Storage and Network. Notifications is optional and
// only used to tell the user about a forced logout.
package session

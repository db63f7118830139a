package runtime

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/dmitrymomot/torrentbridge/pkg/async"
)

// MessageType identifies a cross-context message.
type MessageType string

const (
	MagnetLinkClicked   MessageType = "MAGNET_LINK_CLICKED"
	UserLogoutRequested MessageType = "USER_LOGOUT_REQUESTED"
)

// Message is a request sent to the background context.
type Message struct {
	Type MessageType `json:"type"`
	Href string      `json:"href,omitempty"`
}

// Reply is the single answer to a Message.
type Reply struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Sender delivers a message to the background context.
type Sender interface {
	Send(ctx context.Context, msg Message) *async.Future[Reply]
}

// UnknownTorrent is the display name used when a magnet link has no usable dn.
const UnknownTorrent = "Unknown Torrent"

var dnPattern = regexp.MustCompile(`dn=([^&]*)`)

// MagnetName extracts the display name from a magnet link's dn parameter.
// Percent escapes are decoded and '+' becomes a space.
func MagnetName(href string) string {
	m := dnPattern.FindStringSubmatch(href)
	if m == nil || m[1] == "" {
		return UnknownTorrent
	}
	name, err := url.PathUnescape(m[1])
	if err != nil || name == "" {
		return UnknownTorrent
	}
	return strings.ReplaceAll(name, "+", " ")
}

package logger

import (
	"log/slog"
	"time"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Username records the bridge user under the key "username".
// An empty name yields an empty Attr.
func Username(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("username", name)
}

// MessageType records a cross-context message type.
func MessageType(t string) slog.Attr {
	return slog.String("message_type", t)
}

// DownloadID records a download identifier.
func DownloadID(id string) slog.Attr {
	return slog.String("download_id", id)
}

// URL records a request URL.
func URL(u string) slog.Attr {
	return slog.String("url", u)
}

// StatusCode records an HTTP status code.
func StatusCode(code int) slog.Attr {
	return slog.Int("status_code", code)
}

// Attempt records a 1-based attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

// Keys records the store keys touched by an operation.
func Keys(keys []string) slog.Attr {
	return slog.Any("keys", keys)
}

// Duration records an elapsed time under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

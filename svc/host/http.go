package host

import (
	"net/http"
	"net/http/cookiejar"
	"time"
)

// NewHTTPClient returns the client every server call goes through. Its cookie
// jar is shared by all requests, so the session cookie set by /login is sent
// with every later call.
func NewHTTPClient(timeout time.Duration) *http.Client {
	// cookiejar.New only fails on a bad PublicSuffixList, and nil is valid.
	jar, _ := cookiejar.New(nil)
	return &http.Client{
		Jar:     jar,
		Timeout: timeout,
	}
}

package authfetch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmitrymomot/torrentbridge/pkg/logger"
	"github.com/dmitrymomot/torrentbridge/svc/host"
)

// MaxRetries is the number of replays allowed after a 401.
const MaxRetries = 1

const hostLostBody = `{"error":"Host context lost"}`

// ReLoginer restores a session from saved credentials.
type ReLoginer interface {
	AttemptReLogin(ctx context.Context) bool
}

// Attempt describes one network round trip made by Do.
type Attempt struct {
	Number int // 1 for the original request
	URL    string
	Status int
	Err    error
}

// Client is the authenticated fetch pipeline.
type Client struct {
	network   host.Doer
	relogin   ReLoginer
	log       *slog.Logger
	onAttempt func(Attempt)
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithAttemptHook calls fn after every network round trip.
func WithAttemptHook(fn func(Attempt)) Option {
	return func(c *Client) {
		c.onAttempt = fn
	}
}

// New creates a Client sending through caps.Network. relogin may be nil, in
// which case a 401 is returned as is.
func New(caps host.Capabilities, relogin ReLoginer, opts ...Option) *Client {
	c := &Client{
		network: caps.Network,
		relogin: relogin,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(logger.Component("authfetch"))
	return c
}

// Do sends req. On a 401 to the original request it asks for a re-login and,
// when that succeeds, sends req once more and returns whatever that yields.
// When the re-login fails the original 401 response is returned unread.
func (c *Client) Do(ctx context.Context, req Request) (*http.Response, error) {
	if c.network == nil {
		c.log.WarnContext(ctx, "network unavailable, returning synthetic failure", logger.URL(req.URL))
		return hostLostResponse(), nil
	}

	for attempt := 0; ; attempt++ {
		httpReq, err := req.build(ctx)
		if err != nil {
			return nil, err
		}

		resp, err := c.network.Do(httpReq)
		c.record(ctx, attempt+1, req.URL, resp, err)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusUnauthorized || attempt >= MaxRetries || c.relogin == nil {
			return resp, nil
		}
		if !c.relogin.AttemptReLogin(ctx) {
			return resp, nil
		}

		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}
}

func (c *Client) record(ctx context.Context, n int, url string, resp *http.Response, err error) {
	a := Attempt{Number: n, URL: url, Err: err}
	if resp != nil {
		a.Status = resp.StatusCode
	}
	c.log.DebugContext(ctx, "server request",
		logger.URL(url),
		logger.Attempt(n),
		logger.StatusCode(a.Status),
		logger.Error(err),
	)
	if c.onAttempt != nil {
		c.onAttempt(a)
	}
}

func hostLostResponse() *http.Response {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	return &http.Response{
		Status:        "500 Host context lost",
		StatusCode:    http.StatusInternalServerError,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(strings.NewReader(hostLostBody)),
		ContentLength: int64(len(hostLostBody)),
	}
}

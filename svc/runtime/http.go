package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/tidwall/gjson"

	"github.com/dmitrymomot/torrentbridge/handler"
	"github.com/dmitrymomot/torrentbridge/pkg/async"
	"github.com/dmitrymomot/torrentbridge/pkg/binder"
	"github.com/dmitrymomot/torrentbridge/svc/host"
)

// MountPath is where the daemon mounts Handler, and MessagesPath is the
// resulting endpoint.
const (
	MountPath    = "/runtime"
	MessagesPath = MountPath + "/messages"
)

// Handler serves POST /messages, delivering each message through s and
// answering with its Reply in the data envelope. Mount it at MountPath.
func Handler(s Sender, errHandler handler.ErrorHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/messages", handler.Wrap(func(ctx handler.Context, msg Message) handler.Response {
		reply, err := s.Send(ctx, msg).AwaitContext(ctx)
		switch {
		case errors.Is(err, ErrUnknownMessage), errors.Is(err, ErrMissingHref):
			return handler.JSONError(errors.Join(handler.ErrBadRequest, err))
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return handler.JSONError(errors.Join(handler.ErrGatewayTimeout, err))
		case err != nil:
			return handler.JSONError(err)
		}
		return handler.JSON(reply)
	},
		handler.WithBinders[Message](binder.JSON()),
		handler.WithErrorHandler[Message](errHandler),
	))
	return r
}

// HTTPSender sends messages to a daemon over HTTP.
type HTTPSender struct {
	baseURL string
	client  host.Doer
}

// NewHTTPSender targets the daemon at baseURL, e.g. http://127.0.0.1:8765.
func NewHTTPSender(baseURL string, client host.Doer) *HTTPSender {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSender{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (s *HTTPSender) Send(ctx context.Context, msg Message) *async.Future[Reply] {
	return async.Async(ctx, msg, s.send)
}

func (s *HTTPSender) send(ctx context.Context, msg Message) (Reply, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return Reply{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+MessagesPath, bytes.NewReader(payload))
	if err != nil {
		return Reply{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return Reply{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Reply{}, err
	}
	if !gjson.ValidBytes(body) {
		return Reply{}, fmt.Errorf("%w: status %d", ErrBadReply, resp.StatusCode)
	}
	if msg := gjson.GetBytes(body, "error.message"); msg.Exists() {
		return Reply{}, errors.New(msg.String())
	}

	success, message := gjson.GetBytes(body, "data.success"), gjson.GetBytes(body, "data.message")
	if !success.IsBool() || message.Type != gjson.String {
		return Reply{}, ErrBadReply
	}
	return Reply{Success: success.Bool(), Message: message.String()}, nil
}

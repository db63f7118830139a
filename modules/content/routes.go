package content

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/torrentbridge/handler"
	"github.com/dmitrymomot/torrentbridge/pkg/binder"
)

type clickRequest struct {
	Href string `json:"href"`
}

// ClickResult is the answer to POST /click.
type ClickResult struct {
	Intercepted bool    `json:"intercepted"`
	Notice      *Notice `json:"notice,omitempty"`
}

// Status is the answer to GET /status.
type Status struct {
	Active bool `json:"active"`
}

// Handle returns the module's routes:
//
//	POST /click   {"href": "magnet:?..."}
//	GET  /status
func (i *Interceptor) Handle() http.Handler {
	r := chi.NewRouter()

	r.Post("/click", handler.Wrap(func(ctx handler.Context, req clickRequest) handler.Response {
		notice, ok := i.Click(ctx, req.Href)
		if !ok {
			return handler.JSON(ClickResult{})
		}
		return handler.JSON(ClickResult{Intercepted: true, Notice: &notice})
	},
		handler.WithBinders[clickRequest](binder.JSON()),
		handler.WithErrorHandler[clickRequest](i.errHandler),
	))

	r.Get("/status", handler.Wrap(func(handler.Context, struct{}) handler.Response {
		return handler.JSON(Status{Active: i.Active()})
	}, handler.WithErrorHandler[struct{}](i.errHandler)))

	return r
}

package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/torrentbridge/handler"
	"github.com/dmitrymomot/torrentbridge/pkg/broadcast"
	"github.com/dmitrymomot/torrentbridge/pkg/notifications"
	"github.com/dmitrymomot/torrentbridge/pkg/requestid"
	"github.com/dmitrymomot/torrentbridge/pkg/store"
	"github.com/dmitrymomot/torrentbridge/svc/runtime"
	"github.com/dmitrymomot/torrentbridge/svc/state"
)

// Mountable is a module exposing its own routes.
type Mountable interface {
	Handle() http.Handler
}

// API is the daemon's local HTTP surface. Nil parts are not mounted.
type API struct {
	Runtime      http.Handler
	Content      Mountable
	Popup        Mountable
	Notes        *notifications.BroadcastNotifier
	Store        store.Store
	Health       http.Handler
	ErrorHandler handler.ErrorHandler
}

// Router builds the route tree:
//
//	POST /runtime/messages
//	POST /content/click, GET /content/status
//	GET  /popup, POST /popup/login, POST /popup/logout, PUT /popup/features/{feature}
//	GET  /notifications, GET /notifications/stream
//	GET  /state/stream
//	GET  /health
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(middleware.Recoverer)

	if a.Health != nil {
		r.Method(http.MethodGet, "/health", a.Health)
	}
	if a.Runtime != nil {
		r.Mount(runtime.MountPath, a.Runtime)
	}
	if a.Content != nil {
		r.Mount("/content", a.Content.Handle())
	}
	if a.Popup != nil {
		r.Mount("/popup", a.Popup.Handle())
	}
	if a.Notes != nil {
		r.Get("/notifications", handler.Wrap(a.recentNotifications, handler.WithErrorHandler[struct{}](a.ErrorHandler)))
		r.Get("/notifications/stream", handler.Wrap(a.streamNotifications, handler.WithErrorHandler[struct{}](a.ErrorHandler)))
	}
	if a.Store != nil {
		r.Get("/state/stream", handler.Wrap(a.streamState, handler.WithErrorHandler[struct{}](a.ErrorHandler)))
	}
	return r
}

func (a *API) recentNotifications(_ handler.Context, _ struct{}) handler.Response {
	return handler.JSON(a.Notes.Recent())
}

func (a *API) streamNotifications(ctx handler.Context, _ struct{}) handler.Response {
	sub := a.Notes.Subscribe(ctx)
	return handler.SSE(func(s handler.Stream) error {
		defer sub.Close()
		return pump(s, sub, "notification", func(n notifications.Notification) any { return n })
	})
}

// stateEvent omits savedPassword values from the stream.
type stateEvent struct {
	Keys    []string                `json:"keys"`
	Changes map[string]store.Change `json:"changes"`
}

func (a *API) streamState(ctx handler.Context, _ struct{}) handler.Response {
	sub := a.Store.Subscribe(ctx)
	return handler.SSE(func(s handler.Stream) error {
		defer sub.Close()
		return pump(s, sub, "state", func(c store.Changes) any {
			ev := stateEvent{Keys: c.Keys(), Changes: make(map[string]store.Change, len(c))}
			for k, ch := range c {
				if k == state.KeySavedPassword {
					ch.OldValue, ch.NewValue = nil, nil
				}
				ev.Changes[k] = ch
			}
			return ev
		})
	})
}

// pump forwards every message of sub to the stream until the client leaves.
func pump[T any](s handler.Stream, sub broadcast.Subscriber[T], event string, render func(T) any) error {
	msgs := sub.Receive(s)
	for {
		select {
		case <-s.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := s.Send(event, render(msg.Data)); err != nil {
				return err
			}
		}
	}
}

package popup

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/torrentbridge/handler"
	"github.com/dmitrymomot/torrentbridge/pkg/binder"
)

// Feature names accepted by PUT /features/{feature}.
const (
	FeatureMagnetLinks       = "magnet-links"
	FeatureTorrentFiles      = "torrent-files"
	FeatureRemoveAfterUpload = "remove-after-upload"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Save     bool   `json:"save"`
}

type featureRequest struct {
	Feature string `path:"feature" json:"-"`
	Enabled bool   `json:"enabled"`
}

// Handle returns the popup routes:
//
//	GET  /
//	POST /login              {"username", "password", "save"}
//	POST /logout
//	PUT  /features/{feature} {"enabled"}
func (c *Controller) Handle() http.Handler {
	r := chi.NewRouter()

	r.Get("/", handler.Wrap(func(ctx handler.Context, _ struct{}) handler.Response {
		return handler.JSON(c.View(ctx))
	}, handler.WithErrorHandler[struct{}](c.errHandler)))

	r.Post("/login", handler.Wrap(func(ctx handler.Context, req loginRequest) handler.Response {
		if req.Username == "" {
			return handler.JSONError(handler.ErrUnprocessableEntity)
		}
		return handler.JSON(c.SubmitLogin(ctx, req.Username, req.Password, req.Save))
	},
		handler.WithBinders[loginRequest](binder.JSON()),
		handler.WithErrorHandler[loginRequest](c.errHandler),
	))

	r.Post("/logout", handler.Wrap(func(ctx handler.Context, _ struct{}) handler.Response {
		return handler.JSON(c.Logout(ctx))
	}, handler.WithErrorHandler[struct{}](c.errHandler)))

	r.Put("/features/{feature}", handler.Wrap(func(ctx handler.Context, req featureRequest) handler.Response {
		switch req.Feature {
		case FeatureMagnetLinks:
			return handler.JSON(c.SetMagnetLinks(ctx, req.Enabled))
		case FeatureTorrentFiles:
			return handler.JSON(c.SetTorrentFiles(ctx, req.Enabled))
		case FeatureRemoveAfterUpload:
			return handler.JSON(c.SetRemoveAfterUpload(ctx, req.Enabled))
		default:
			return handler.JSONError(handler.ErrNotFound)
		}
	},
		handler.WithBinders[featureRequest](binder.Path(chi.URLParam), binder.JSON()),
		handler.WithErrorHandler[featureRequest](c.errHandler),
	))

	return r
}

// Package binder turns HTTP requests into typed structs for handler.Wrap.
//
//	type toggleRequest struct {
//		Feature string `path:"feature"`
//		Enabled bool   `json:"enabled"`
//	}
//
//	r.Put("/features/{feature}", handler.Wrap(toggle,
//		handler.WithBinders[toggleRequest](binder.Path(chi.URLParam), binder.JSON()),
//	))
//
// A binder returns ErrBinderNotApplicable when the request carries nothing
// for it, so the same request type can serve several routes.
package binder

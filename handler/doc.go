// Package handler provides the typed HTTP handler plumbing used by the
// daemon's local API.
//
// A handler binds the request into a struct and returns a Response:
//
//	type clickRequest struct {
//		Href string `json:"href"`
//	}
//
//	func click(ctx handler.Context, req clickRequest) handler.Response {
//		if req.Href == "" {
//			return handler.JSONError(handler.ErrBadRequest)
//		}
//		return handler.JSON(result)
//	}
//
//	r.Post("/content/click", handler.Wrap(click, handler.WithBinders[clickRequest](binder.JSON())))
//
// JSON responses share one envelope, {"data": ...} on success and
// {"error": {"code", "message"}} on failure, so clients can decode every
// endpoint the same way. SSE streams server-sent events until the client goes
// away.
package handler

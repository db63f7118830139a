// Package httpserver runs the daemon's local HTTP API.
//
// Server binds its listener before serving so that address errors surface
// from Run immediately, and shuts down gracefully when the Run context is
// cancelled. Signal handling belongs to the caller. Request contexts derive
// from the Run context, so long-lived streams end as soon as shutdown starts.
//
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	err := srv.Run(ctx, router)
//
// HealthHandler builds a readiness probe from named checks.
package httpserver

package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/torrentbridge/handler"
	"github.com/dmitrymomot/torrentbridge/pkg/logger"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

// Health is the body of a health response.
type Health struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HealthHandler answers 200 {"status":"ready"} when every check passes and
// 503 {"status":"not_ready"} otherwise, reporting each check by name. With no
// checks it is a liveness probe answering {"status":"alive"}.
func HealthHandler(log *slog.Logger, timeout time.Duration, checks map[string]Check) http.HandlerFunc {
	if log == nil {
		log = logger.Discard()
	}
	return handler.Wrap(func(ctx handler.Context, _ struct{}) handler.Response {
		if len(checks) == 0 {
			return handler.JSON(Health{Status: "alive"})
		}

		cctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		h := Health{Status: "ready", Checks: make(map[string]string, len(checks))}
		for name, check := range checks {
			if err := check(cctx); err != nil {
				log.WarnContext(ctx, "readiness check failed", slog.String("check", name), logger.Error(err))
				h.Status = "not_ready"
				h.Checks[name] = err.Error()
				continue
			}
			h.Checks[name] = "ok"
		}
		if h.Status != "ready" {
			return handler.JSON(h, handler.WithJSONStatus(http.StatusServiceUnavailable))
		}
		return handler.JSON(h)
	})
}

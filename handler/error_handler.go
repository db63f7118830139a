package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/torrentbridge/pkg/logger"
)

// NewErrorHandler logs the failure, at warn for client errors and error
// otherwise, then renders it as JSON.
func NewErrorHandler(log *slog.Logger) ErrorHandler {
	if log == nil {
		log = slog.Default()
	}
	return func(ctx Context, err error) {
		status := http.StatusInternalServerError
		var httpErr HTTPError
		if errors.As(err, &httpErr) {
			status = httpErr.Code
		}

		level := slog.LevelError
		if status >= 400 && status < 500 {
			level = slog.LevelWarn
		}
		log.LogAttrs(ctx, level, "request error",
			logger.Component("http"),
			logger.Error(err),
			logger.StatusCode(status),
			slog.String("method", ctx.Request().Method),
			slog.String("path", ctx.Request().URL.Path),
		)

		_ = JSONError(err).Render(ctx.ResponseWriter(), ctx.Request())
	}
}
